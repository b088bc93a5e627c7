//go:build grpc

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGRPCTransport(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server, ch := startServer(t, "127.0.0.1:0", WithServerTransport(TransportGRPC))
	client := dialServer(t, ctx, server, WithTransport(TransportGRPC))

	var sum int
	if err := client.Call(ctx, "math", "add", addArgs{A: 2, B: 3}, &sum); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if sum != 5 {
		t.Errorf("got %d, want 5", sum)
	}

	err := client.Call(ctx, "math", "bogus", nil, nil)
	var unknownCommand *UnknownCommandError
	if !errors.As(err, &unknownCommand) {
		t.Fatalf("expected UnknownCommandError, got %v", err)
	}

	ch.changes.Fire(1)
	stream, err := Subscribe[int](ctx, NewChannelClient(client, "math"), "onChange")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stream.Close()
	ch.changes.Fire(2)

	for want := 1; want <= 2; want++ {
		if got := recv(t, stream.Values()); got != want {
			t.Fatalf("got %d, want %d", got, want)
		}
	}
}
