// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	wsPath           = "/ipc"
	wsWriteTimeout   = 30 * time.Second
	wsHeaderTimeout  = 10 * time.Second
	wsHandshakeLimit = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Peers are local processes, not browsers
	},
}

// wsConn carries JSON encoded frames over a WebSocket
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (w *wsConn) writeFrame(ctx context.Context, f *frame) error {
	deadline := time.Now().Add(wsWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return w.conn.WriteJSON(f)
}

func (w *wsConn) readFrame() (*frame, error) {
	var f frame
	if err := w.conn.ReadJSON(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}

// wsURL accepts "host:port" or a full ws:// or wss:// URL.
func wsURL(addr string) string {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return addr
	}
	return "ws://" + addr + wsPath
}

func dialWS(ctx context.Context, addr string, o *dialOptions) (Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeLimit}
	conn, resp, err := dialer.DialContext(ctx, wsURL(addr), nil)
	if err != nil {
		if resp != nil {
			CleanlyCloseBody(resp.Body)
		}
		return nil, fmt.Errorf("ws dial: %w", err)
	}
	return newPeerClient(&wsConn{conn: conn}, o), nil
}

func listenWS(addr string, o *serverOptions) (Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ws listen: %w", err)
	}

	a := &wsAcceptor{
		listener: listener,
		conns:    make(chan frameConn),
		done:     make(chan struct{}),
		log:      o.logger,
	}
	mux := http.NewServeMux()
	mux.HandleFunc(wsPath, a.handleUpgrade)
	a.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: wsHeaderTimeout,
	}
	go func() {
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			o.logger.Error().Err(err).Msg("ws server stopped")
		}
	}()
	return newFrameServer(a, o), nil
}

// wsAcceptor hands upgraded connections to the frame server
type wsAcceptor struct {
	listener net.Listener
	server   *http.Server
	conns    chan frameConn
	done     chan struct{}
	once     sync.Once
	log      zerolog.Logger
}

func (a *wsAcceptor) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("ws upgrade failed")
		return
	}
	select {
	case a.conns <- &wsConn{conn: conn}:
	case <-a.done:
		conn.Close()
	}
}

func (a *wsAcceptor) accept() (frameConn, error) {
	select {
	case conn := <-a.conns:
		return conn, nil
	case <-a.done:
		return nil, ErrClosed
	}
}

func (a *wsAcceptor) close() error {
	a.once.Do(func() { close(a.done) })
	return a.server.Close()
}

func (a *wsAcceptor) addr() string {
	return a.listener.Addr().String()
}
