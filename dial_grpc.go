//go:build grpc

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/luxfi/ipc/internal/codec"
)

// grpcConnectMethod is a bidirectional stream of frames. One stream is one
// connection.
const grpcConnectMethod = "/luxfi.ipc.Channel/Connect"

func init() {
	// Register gRPC transport when build tag is enabled
	registerTransport(TransportGRPC, dialGRPC, listenGRPC)
}

// grpcFrameCodec marshals frames as CBOR in place of protobuf
type grpcFrameCodec struct{}

func (grpcFrameCodec) Marshal(v any) ([]byte, error)      { return codec.Marshal(v) }
func (grpcFrameCodec) Unmarshal(data []byte, v any) error { return codec.Unmarshal(data, v) }
func (grpcFrameCodec) Name() string                       { return "ipc-cbor" }

var grpcStreamDesc = &grpc.StreamDesc{
	StreamName:    "Connect",
	ServerStreams: true,
	ClientStreams: true,
}

// grpcStream is the part of grpc.ClientStream and grpc.ServerStream a
// connection needs
type grpcStream interface {
	SendMsg(m any) error
	RecvMsg(m any) error
}

type grpcConn struct {
	stream  grpcStream
	writeMu sync.Mutex
	once    sync.Once
	closeFn func() error
}

func (g *grpcConn) writeFrame(_ context.Context, f *frame) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	return g.stream.SendMsg(f)
}

func (g *grpcConn) readFrame() (*frame, error) {
	var f frame
	if err := g.stream.RecvMsg(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (g *grpcConn) Close() error {
	var err error
	g.once.Do(func() { err = g.closeFn() })
	return err
}

func dialGRPC(ctx context.Context, addr string, o *dialOptions) (Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(grpcFrameCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}

	// The stream outlives ctx, which only bounds the dial.
	streamCtx, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, cancel)
	stream, err := conn.NewStream(streamCtx, grpcStreamDesc, grpcConnectMethod, grpc.WaitForReady(true))
	if !stop() {
		err = ctx.Err()
	}
	if err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("grpc dial: %w", err)
	}

	gc := &grpcConn{
		stream: stream,
		closeFn: func() error {
			cancel()
			return conn.Close()
		},
	}
	return newPeerClient(gc, o), nil
}

func listenGRPC(addr string, o *serverOptions) (Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen: %w", err)
	}

	a := &grpcAcceptor{
		listener: listener,
		conns:    make(chan frameConn),
		done:     make(chan struct{}),
	}
	a.server = grpc.NewServer(
		grpc.ForceServerCodec(grpcFrameCodec{}),
		grpc.UnknownServiceHandler(a.handleStream),
	)
	go func() {
		if err := a.server.Serve(listener); err != nil {
			o.logger.Debug().Err(err).Msg("grpc server stopped")
		}
	}()
	return newFrameServer(a, o), nil
}

type grpcAcceptor struct {
	listener net.Listener
	server   *grpc.Server
	conns    chan frameConn
	done     chan struct{}
	once     sync.Once
}

// handleStream keeps the stream open until the connection is closed on
// either side.
func (a *grpcAcceptor) handleStream(_ any, stream grpc.ServerStream) error {
	method, _ := grpc.MethodFromServerStream(stream)
	if method != grpcConnectMethod {
		return status.Errorf(codes.Unimplemented, "unknown method %s", method)
	}

	closed := make(chan struct{})
	conn := &grpcConn{
		stream: stream,
		closeFn: func() error {
			close(closed)
			return nil
		},
	}

	select {
	case a.conns <- conn:
	case <-a.done:
		return status.Error(codes.Unavailable, "server closed")
	}

	select {
	case <-closed:
	case <-stream.Context().Done():
	}
	return nil
}

func (a *grpcAcceptor) accept() (frameConn, error) {
	select {
	case conn := <-a.conns:
		return conn, nil
	case <-a.done:
		return nil, ErrClosed
	}
}

func (a *grpcAcceptor) close() error {
	a.once.Do(func() { close(a.done) })
	a.server.Stop()
	return nil
}

func (a *grpcAcceptor) addr() string {
	return a.listener.Addr().String()
}
