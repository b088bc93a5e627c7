// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ipc is a channel layer between processes. A Server hosts named
// channels; each channel answers named calls and exposes named events. A
// Client invokes those calls and subscribes to those events without
// knowing how the bytes travel.
//
// # Transport Selection
//
// ZAP is the default transport. Alternatives are chosen with options:
//
//	ipc.Listen(":9000")                                           // ZAP over TCP
//	ipc.Listen("unix:///run/ipc.sock")                            // ZAP over a unix socket
//	ipc.Listen(":9000", ipc.WithServerTransport(ipc.TransportWS)) // WebSocket
//	ipc.Listen("", ipc.WithServerTransport(ipc.TransportMemory))  // in-process
//	ipc.Listen(":9000", ipc.WithServerTransport(ipc.TransportJSON))
//
// The gRPC transport needs a build tag:
//
//	go build -tags grpc
//
// The json transport carries calls only; Listen returns
// ErrEventsUnsupported.
//
// # Usage
//
// Server usage:
//
//	server, err := ipc.Listen(":9000")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	events := ipc.Buffer(emitter.Event(), true)
//	channel := ipc.NewTable(
//	    map[string]ipc.CallHandler{
//	        "add": ipc.Handle(func(ctx context.Context, req AddRequest) (int, error) {
//	            return req.A + req.B, nil
//	        }),
//	    },
//	    map[string]ipc.Event[any]{
//	        "onChange": ipc.Erase(events.Event()),
//	    },
//	)
//	server.RegisterChannel("math", channel)
//	server.Serve(ctx)
//
// Client usage:
//
//	client, err := ipc.Dial(ctx, "localhost:9000")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	var sum int
//	err = client.Call(ctx, "math", "add", AddRequest{A: 2, B: 3}, &sum)
//
//	stream, err := ipc.Subscribe[int](ctx, ipc.NewChannelClient(client, "math"), "onChange")
//	for v := range stream.Values() {
//	    ...
//	}
//
// # Buffered Events
//
// Buffer turns a hot event into one that keeps what was fired before the
// first listener attached and replays it, in order, ahead of live values.
// Channels wrap each of their events once at construction and own the
// adapters.
//
// # Errors
//
// Unknown commands, events and channels fail with *UnknownCommandError,
// *UnknownEventError and *UnknownChannelError on both sides of a
// connection. Any other failure of a remote channel arrives as a
// *RemoteError carrying the original message.
//
// # Architecture
//
//   - client.go: Client and Server interfaces, options
//   - event.go: Event, Emitter and the Buffer adapter
//   - channel.go: ServerChannel, typed handlers and the Table
//   - dispatcher.go: routing of calls and listens to channels
//   - protocol.go: frames, the generic client and the frame server
//   - zap.go, ws.go, memory.go, json.go, dial_grpc.go: transports
//   - subscription.go: client side event delivery
package ipc
