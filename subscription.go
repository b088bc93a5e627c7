// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"sync"
)

// Subscription is the client end of a remote event. Values are delivered
// on Events in arrival order through an unbounded queue, so a slow reader
// never stalls the connection.
type Subscription struct {
	mu     sync.Mutex
	queue  []Payload
	ended  bool
	err    error
	ready  chan struct{}
	events chan Payload
	done   chan struct{}

	closeOnce sync.Once
	dispose   func()
}

func newSubscription(dispose func()) *Subscription {
	s := &Subscription{
		ready:   make(chan struct{}, 1),
		events:  make(chan Payload),
		done:    make(chan struct{}),
		dispose: dispose,
	}
	go s.pump()
	return s
}

// Events returns the channel of event payloads. It is closed when the
// subscription is closed or the connection ends.
func (s *Subscription) Events() <-chan Payload {
	return s.events
}

// Err returns the reason the subscription ended, or nil after Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close detaches the remote listener and stops delivery.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.ended = true
		s.queue = nil
		s.mu.Unlock()
		if s.dispose != nil {
			s.dispose()
		}
	})
	return nil
}

func (s *Subscription) push(p Payload) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, p)
	s.mu.Unlock()
	s.signal()
}

// end stops accepting values. Values already queued are still delivered.
func (s *Subscription) end(err error) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.err = err
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.events)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			ended := s.ended
			s.mu.Unlock()
			if ended {
				return
			}
			select {
			case <-s.ready:
			case <-s.done:
				return
			}
			continue
		}
		p := s.queue[0]
		s.queue[0] = Payload{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.events <- p:
		case <-s.done:
			return
		}
	}
}

// ChannelClient binds a Client to one channel name.
type ChannelClient struct {
	client Client
	name   string
}

// NewChannelClient returns a ChannelClient for the channel called name.
func NewChannelClient(c Client, name string) ChannelClient {
	return ChannelClient{client: c, name: name}
}

// Name returns the channel name.
func (c ChannelClient) Name() string {
	return c.name
}

// Call invokes command on the bound channel.
func (c ChannelClient) Call(ctx context.Context, command string, args, reply any) error {
	return c.client.Call(ctx, c.name, command, args, reply)
}

// Listen subscribes to event on the bound channel.
func (c ChannelClient) Listen(ctx context.Context, event string) (*Subscription, error) {
	return c.client.Listen(ctx, c.name, event)
}

// Stream decodes the payloads of a Subscription into T.
type Stream[T any] struct {
	sub    *Subscription
	values chan T

	mu  sync.Mutex
	err error
}

// Subscribe listens to event on c and decodes every value into T.
func Subscribe[T any](ctx context.Context, c ChannelClient, event string) (*Stream[T], error) {
	sub, err := c.Listen(ctx, event)
	if err != nil {
		return nil, err
	}
	s := &Stream[T]{sub: sub, values: make(chan T)}
	go s.decode()
	return s, nil
}

func (s *Stream[T]) decode() {
	defer close(s.values)
	for p := range s.sub.Events() {
		var v T
		if err := p.Decode(&v); err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			s.sub.Close()
			return
		}
		select {
		case s.values <- v:
		case <-s.sub.done:
			return
		}
	}
}

// Values returns the channel of decoded values.
func (s *Stream[T]) Values() <-chan T {
	return s.values
}

// Err returns the decode or connection error that ended the stream.
func (s *Stream[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	return s.sub.Err()
}

// Close detaches the remote listener.
func (s *Stream[T]) Close() error {
	return s.sub.Close()
}
