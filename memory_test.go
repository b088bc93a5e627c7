// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryDialUnknownAddr(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := Dial(ctx, "memory-missing", WithTransport(TransportMemory)); err == nil {
		t.Error("expected dial to an unknown address to fail")
	}
}

func TestMemoryAddrInUse(t *testing.T) {
	server, err := Listen("shared", WithServerTransport(TransportMemory))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if _, err := Listen("shared", WithServerTransport(TransportMemory)); err == nil {
		t.Error("expected second listen on the same address to fail")
	}

	// Closing releases the address.
	server.Close()
	again, err := Listen("shared", WithServerTransport(TransportMemory))
	if err != nil {
		t.Fatalf("Listen after close: %v", err)
	}
	again.Close()
}

func TestMemoryDialAfterClose(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	server, err := Listen("", WithServerTransport(TransportMemory))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr := server.Addr()
	server.Close()

	if _, err := Dial(ctx, addr, WithTransport(TransportMemory)); err == nil {
		t.Error("expected dial to a closed listener to fail")
	}
}

func TestMemoryFrameMetadata(t *testing.T) {
	client, server, err := newMemoryPipe(newDialOptions(nil).logger)
	if err != nil {
		t.Fatalf("newMemoryPipe: %v", err)
	}
	defer client.Close()

	want := &frame{Type: MsgEvent, ID: 9, Name: "math/onChange", Payload: []byte("1")}
	done := make(chan error, 1)
	go func() { done <- client.writeFrame(context.Background(), want) }()

	got, err := server.readFrame()
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	if got.Type != want.Type || got.ID != want.ID || got.Name != want.Name || string(got.Payload) != "1" {
		t.Errorf("got %+v, want %+v", got, want)
	}

	client.Close()
	if _, err := server.readFrame(); !errors.Is(err, ErrClosed) {
		t.Errorf("got %v, want ErrClosed", err)
	}
}
