// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MessageType identifies frame types
type MessageType uint8

const (
	MsgRequest  MessageType = 0x01
	MsgResponse MessageType = 0x02
	MsgError    MessageType = 0x03
	MsgListen   MessageType = 0x04
	MsgEvent    MessageType = 0x05
	MsgDispose  MessageType = 0x06
)

func (t MessageType) String() string {
	switch t {
	case MsgRequest:
		return "request"
	case MsgResponse:
		return "response"
	case MsgError:
		return "error"
	case MsgListen:
		return "listen"
	case MsgEvent:
		return "event"
	case MsgDispose:
		return "dispose"
	default:
		return fmt.Sprintf("MessageType(%d)", uint8(t))
	}
}

// frame is the unit every transport carries. Requests and listens share
// one id space per connection: responses and errors answer the request or
// listen with the same id, events carry the id of the listen that
// subscribed them and dispose detaches it.
type frame struct {
	Type    MessageType `json:"type"`
	ID      uint32      `json:"id"`
	Name    string      `json:"name,omitempty"`
	Payload []byte      `json:"payload,omitempty"`
}

// frameConn is one end of a connection. writeFrame is safe for concurrent
// use; readFrame is called from a single goroutine.
type frameConn interface {
	writeFrame(ctx context.Context, f *frame) error
	readFrame() (*frame, error)
	Close() error
}

// peerClient implements Client on top of any frameConn.
type peerClient struct {
	conn    frameConn
	codec   Codec
	log     zerolog.Logger
	timeout time.Duration

	nextID   atomic.Uint32
	mu       sync.Mutex
	pending  map[uint32]chan *frame
	subs     map[uint32]*Subscription
	closed   atomic.Bool
	readDone chan struct{}
}

func newPeerClient(conn frameConn, o *dialOptions) *peerClient {
	c := &peerClient{
		conn:     conn,
		codec:    o.codec,
		log:      o.logger,
		timeout:  o.callTimeout,
		pending:  make(map[uint32]chan *frame),
		subs:     make(map[uint32]*Subscription),
		readDone: make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *peerClient) Call(ctx context.Context, channel, command string, args, reply any) error {
	var payload []byte
	if args != nil {
		var err error
		payload, err = c.codec.Encode(args)
		if err != nil {
			return fmt.Errorf("encode args: %w", err)
		}
	}

	resp, err := c.exchange(ctx, &frame{
		Type:    MsgRequest,
		ID:      c.nextID.Add(1),
		Name:    joinName(channel, command),
		Payload: payload,
	})
	if err != nil {
		return err
	}

	if reply != nil && len(resp.Payload) > 0 {
		if err := c.codec.Decode(resp.Payload, reply); err != nil {
			return fmt.Errorf("decode reply: %w", err)
		}
	}
	return nil
}

func (c *peerClient) Listen(ctx context.Context, channel, event string) (*Subscription, error) {
	id := c.nextID.Add(1)
	sub := newSubscription(func() { c.dispose(id) })

	// Registered before the listen frame goes out so no event can arrive
	// for an unknown id.
	c.mu.Lock()
	c.subs[id] = sub
	c.mu.Unlock()

	if _, err := c.exchange(ctx, &frame{Type: MsgListen, ID: id, Name: joinName(channel, event)}); err != nil {
		if errors.Is(err, ErrTimeout) || errors.Is(err, context.Canceled) {
			// The server may still attach the listener; detach it there.
			c.dispose(id)
		} else {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		}
		sub.end(err)
		return nil, err
	}
	return sub, nil
}

// exchange writes f and waits for the response or error frame with the
// same id.
func (c *peerClient) exchange(ctx context.Context, f *frame) (*frame, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	respCh := make(chan *frame, 1)
	c.mu.Lock()
	c.pending[f.ID] = respCh
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, f.ID)
		c.mu.Unlock()
	}()

	if err := c.conn.writeFrame(ctx, f); err != nil {
		if c.isClosed() {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("ipc write: %w", err)
	}

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, f.Name)
		}
		return nil, ctx.Err()
	case resp := <-respCh:
		if resp.Type == MsgError {
			return nil, decodeError(resp.Payload)
		}
		return resp, nil
	case <-c.readDone:
		return nil, ErrClosed
	}
}

// isClosed reports whether the client was closed or its connection ended.
func (c *peerClient) isClosed() bool {
	if c.closed.Load() {
		return true
	}
	select {
	case <-c.readDone:
		return true
	default:
		return false
	}
}

func (c *peerClient) dispose(id uint32) {
	c.mu.Lock()
	_, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if !ok || c.closed.Load() {
		return
	}
	if err := c.conn.writeFrame(context.Background(), &frame{Type: MsgDispose, ID: id}); err != nil {
		c.log.Debug().Err(err).Uint32("id", id).Msg("failed to write dispose")
	}
}

func (c *peerClient) readLoop() {
	defer func() {
		close(c.readDone)
		c.mu.Lock()
		subs := c.subs
		c.subs = make(map[uint32]*Subscription)
		c.mu.Unlock()
		for _, sub := range subs {
			sub.end(ErrClosed)
		}
	}()

	for {
		f, err := c.conn.readFrame()
		if err != nil {
			if !c.closed.Load() {
				c.log.Debug().Err(err).Msg("connection lost")
			}
			return
		}

		switch f.Type {
		case MsgResponse, MsgError:
			c.mu.Lock()
			respCh, ok := c.pending[f.ID]
			c.mu.Unlock()
			if ok {
				select {
				case respCh <- f:
				default:
				}
			}
		case MsgEvent:
			c.mu.Lock()
			sub := c.subs[f.ID]
			c.mu.Unlock()
			if sub != nil {
				sub.push(RawPayload(c.codec, f.Payload))
			}
		default:
			c.log.Debug().Stringer("type", f.Type).Msg("ignoring frame")
		}
	}
}

func (c *peerClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}

// acceptor yields the server ends of incoming connections.
type acceptor interface {
	accept() (frameConn, error)
	close() error
	addr() string
}

// frameServer implements Server for every frame based transport.
type frameServer struct {
	*dispatcher

	acceptor acceptor
	mu       sync.Mutex
	conns    map[frameConn]struct{}
	closed   atomic.Bool
}

func newFrameServer(a acceptor, o *serverOptions) *frameServer {
	return &frameServer{
		dispatcher: newDispatcher(o),
		acceptor:   a,
		conns:      make(map[frameConn]struct{}),
	}
}

// Serve accepts connections until ctx is cancelled or the server is closed.
func (s *frameServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	for {
		conn, err := s.acceptor.accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, ErrClosed) {
				return nil
			}
			return fmt.Errorf("ipc accept: %w", err)
		}

		s.mu.Lock()
		if s.closed.Load() {
			s.mu.Unlock()
			conn.Close()
			return nil
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		go func() {
			s.serveConn(ctx, uuid.NewString(), conn)
			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
		}()
	}
}

// Close stops accepting and closes every open connection.
func (s *frameServer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	err := s.acceptor.close()

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	return err
}

// Addr returns the listen address
func (s *frameServer) Addr() string {
	return s.acceptor.addr()
}
