// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Every memory connection owns a GoChannel with one topic per direction.
// Both subscriptions exist before the first publish, and publishing blocks
// until the peer acks, which keeps frames in order.
const (
	memoryServerTopic = "server"
	memoryClientTopic = "client"

	memoryMetaType = "type"
	memoryMetaID   = "id"
	memoryMetaName = "name"

	memoryBuffer = 64
)

var memoryListeners = struct {
	sync.Mutex
	byAddr map[string]*memoryAcceptor
}{byAddr: make(map[string]*memoryAcceptor)}

// memoryConn is one direction pair of an in-process connection
type memoryConn struct {
	pubsub *gochannel.GoChannel
	in     <-chan *message.Message
	out    string
	cancel context.CancelFunc
}

func (m *memoryConn) writeFrame(_ context.Context, f *frame) error {
	msg := message.NewMessage(watermill.NewUUID(), f.Payload)
	msg.Metadata.Set(memoryMetaType, strconv.Itoa(int(f.Type)))
	msg.Metadata.Set(memoryMetaID, strconv.FormatUint(uint64(f.ID), 10))
	msg.Metadata.Set(memoryMetaName, f.Name)
	if err := m.pubsub.Publish(m.out, msg); err != nil {
		return fmt.Errorf("memory publish: %w", err)
	}
	return nil
}

func (m *memoryConn) readFrame() (*frame, error) {
	msg, ok := <-m.in
	if !ok {
		return nil, ErrClosed
	}
	msg.Ack()
	return frameFromMessage(msg)
}

func (m *memoryConn) Close() error {
	m.cancel()
	return m.pubsub.Close()
}

func frameFromMessage(msg *message.Message) (*frame, error) {
	msgType, err := strconv.ParseUint(msg.Metadata.Get(memoryMetaType), 10, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: type: %v", ErrInvalidFrame, err)
	}
	id, err := strconv.ParseUint(msg.Metadata.Get(memoryMetaID), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: id: %v", ErrInvalidFrame, err)
	}
	return &frame{
		Type:    MessageType(msgType),
		ID:      uint32(id),
		Name:    msg.Metadata.Get(memoryMetaName),
		Payload: msg.Payload,
	}, nil
}

// newMemoryPipe returns the client and server ends of a new connection.
func newMemoryPipe(logger zerolog.Logger) (client, server *memoryConn, err error) {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            memoryBuffer,
			BlockPublishUntilSubscriberAck: true,
		},
		newWatermillLogger(logger),
	)

	ctx, cancel := context.WithCancel(context.Background())
	toServer, err := pubsub.Subscribe(ctx, memoryServerTopic)
	if err != nil {
		cancel()
		pubsub.Close()
		return nil, nil, fmt.Errorf("memory subscribe: %w", err)
	}
	toClient, err := pubsub.Subscribe(ctx, memoryClientTopic)
	if err != nil {
		cancel()
		pubsub.Close()
		return nil, nil, fmt.Errorf("memory subscribe: %w", err)
	}

	client = &memoryConn{pubsub: pubsub, in: toClient, out: memoryServerTopic, cancel: cancel}
	server = &memoryConn{pubsub: pubsub, in: toServer, out: memoryClientTopic, cancel: cancel}
	return client, server, nil
}

func dialMemory(ctx context.Context, addr string, o *dialOptions) (Client, error) {
	memoryListeners.Lock()
	a, ok := memoryListeners.byAddr[addr]
	memoryListeners.Unlock()
	if !ok {
		return nil, fmt.Errorf("memory dial: no listener at %q", addr)
	}

	client, server, err := newMemoryPipe(o.logger)
	if err != nil {
		return nil, err
	}

	select {
	case a.conns <- server:
		return newPeerClient(client, o), nil
	case <-a.done:
		client.Close()
		return nil, fmt.Errorf("memory dial: %w", ErrClosed)
	case <-ctx.Done():
		client.Close()
		return nil, ctx.Err()
	}
}

// listenMemory registers an in-process listener. An empty address picks a
// unique one.
func listenMemory(addr string, o *serverOptions) (Server, error) {
	if addr == "" {
		addr = "memory-" + uuid.NewString()
	}

	memoryListeners.Lock()
	defer memoryListeners.Unlock()
	if _, ok := memoryListeners.byAddr[addr]; ok {
		return nil, fmt.Errorf("memory listen: address %q in use", addr)
	}
	a := &memoryAcceptor{
		address: addr,
		conns:   make(chan frameConn),
		done:    make(chan struct{}),
	}
	memoryListeners.byAddr[addr] = a
	return newFrameServer(a, o), nil
}

type memoryAcceptor struct {
	address string
	conns   chan frameConn
	done    chan struct{}
	once    sync.Once
}

func (a *memoryAcceptor) accept() (frameConn, error) {
	select {
	case conn := <-a.conns:
		return conn, nil
	case <-a.done:
		return nil, ErrClosed
	}
}

func (a *memoryAcceptor) close() error {
	a.once.Do(func() {
		memoryListeners.Lock()
		delete(memoryListeners.byAddr, a.address)
		memoryListeners.Unlock()
		close(a.done)
	})
	return nil
}

func (a *memoryAcceptor) addr() string {
	return a.address
}

// watermillLogger routes watermill diagnostics into zerolog
type watermillLogger struct {
	log zerolog.Logger
}

func newWatermillLogger(l zerolog.Logger) watermill.LoggerAdapter {
	return watermillLogger{log: l.With().Str("component", "watermill").Logger()}
}

func (w watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.log.Error().Err(err).Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w watermillLogger) Info(msg string, fields watermill.LogFields) {
	w.log.Info().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w watermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.log.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w watermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.log.Trace().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return watermillLogger{log: w.log.With().Fields(map[string]interface{}(fields)).Logger()}
}
