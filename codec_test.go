// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"testing"
	"time"
)

func TestCodecByName(t *testing.T) {
	tests := map[string]Codec{
		"":       JSONCodec{},
		"json":   JSONCodec{},
		" CBOR ": CBORCodec{},
		"binary": BinaryCodec{},
	}
	for name, want := range tests {
		got, err := CodecByName(name)
		if err != nil {
			t.Fatalf("CodecByName(%q): %v", name, err)
		}
		if got != want {
			t.Errorf("CodecByName(%q) = %T, want %T", name, got, want)
		}
	}
	if _, err := CodecByName("xml"); err == nil {
		t.Error("expected unknown codec to fail")
	}
}

func TestBinaryCodecPassesBytes(t *testing.T) {
	data, err := Binary.Encode([]byte("raw"))
	if err != nil || string(data) != "raw" {
		t.Fatalf("got %q, %v", data, err)
	}
	var out []byte
	if err := Binary.Decode([]byte("raw"), &out); err != nil || string(out) != "raw" {
		t.Fatalf("got %q, %v", out, err)
	}
}

func TestCBORCodecOverZAP(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server, ch := startServer(t, "127.0.0.1:0", WithServerCodec(CBORCodec{}))
	client := dialServer(t, ctx, server, WithCodec(CBORCodec{}))

	var sum int
	if err := client.Call(ctx, "math", "add", addArgs{A: 4, B: 5}, &sum); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if sum != 9 {
		t.Errorf("got %d, want 9", sum)
	}

	stream, err := Subscribe[int](ctx, NewChannelClient(client, "math"), "onChange")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stream.Close()
	ch.changes.Fire(11)
	if got := recv(t, stream.Values()); got != 11 {
		t.Errorf("got %d, want 11", got)
	}
}
