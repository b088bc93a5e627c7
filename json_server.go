// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
)

// jsonServer implements Server over JSON-RPC 2.0. Arguments and results are
// always JSON, whatever codec was configured.
type jsonServer struct {
	*dispatcher

	listener net.Listener
	server   *http.Server
}

func listenJSON(addr string, o *serverOptions) (Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("json listen: %w", err)
	}

	jsonOpts := *o
	jsonOpts.codec = JSONCodec{}
	s := &jsonServer{
		dispatcher: newDispatcher(&jsonOpts),
		listener:   listener,
	}

	rpcServer := rpc.NewServer()
	rpcServer.RegisterCodec(json2.NewCodec(), jsonContentType)
	if err := rpcServer.RegisterService(&jsonService{dispatcher: s.dispatcher}, "Channel"); err != nil {
		listener.Close()
		return nil, fmt.Errorf("json register: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(jsonPath, rpcServer)
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: jsonHeaderWait,
	}
	return s, nil
}

func (s *jsonServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("json serve: %w", err)
	}
	return nil
}

func (s *jsonServer) Close() error {
	return s.server.Close()
}

func (s *jsonServer) Addr() string {
	return s.listener.Addr().String()
}

// jsonService is the receiver of the Channel.Call method
type jsonService struct {
	dispatcher *dispatcher
}

// Call serves one channel call. Every HTTP client address counts as one
// peer for rate limiting.
func (j *jsonService) Call(r *http.Request, args *JSONCallArgs, reply *JSONCallReply) error {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	ctx := withPeer(r.Context(), peer)

	result, err := j.dispatcher.call(ctx, peer, joinName(args.Channel, args.Command), args.Arg)
	if err != nil {
		return &json2.Error{
			Code:    json2.E_SERVER,
			Message: err.Error(),
			Data:    errorBodyFor(err),
		}
	}
	reply.Result = json.RawMessage(result)
	return nil
}
