// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Client is the transport-agnostic side that invokes commands and
// subscribes to events on named channels of a remote Server.
type Client interface {
	// Call invokes command on channel and decodes the result into reply.
	// A nil reply discards the result.
	Call(ctx context.Context, channel, command string, args, reply any) error

	// Listen subscribes to event on channel. Unknown events are rejected
	// before a Subscription is returned.
	Listen(ctx context.Context, channel, event string) (*Subscription, error)

	// Close closes the connection and ends every open Subscription.
	Close() error
}

// Server hosts named channels.
type Server interface {
	// RegisterChannel exposes ch under name. Names are unique and may not
	// contain '/'.
	RegisterChannel(name string, ch ServerChannel) error

	// Serve starts serving requests (blocks until context cancelled)
	Serve(ctx context.Context) error

	// Close stops the server
	Close() error

	// Addr returns the server's listen address
	Addr() string
}

// Codec encodes/decodes call arguments, results and event values
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// DialOption configures client connections
type DialOption func(*dialOptions)

type dialOptions struct {
	codec       Codec
	transport   string // "zap", "ws", "memory", "json", "grpc"
	logger      zerolog.Logger
	callTimeout time.Duration
	httpOptions []Option
}

func newDialOptions(opts []DialOption) *dialOptions {
	o := &dialOptions{
		codec:     defaultCodec,
		transport: DefaultTransport,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithCodec sets a custom codec
func WithCodec(c Codec) DialOption {
	return func(o *dialOptions) { o.codec = c }
}

// WithTransport explicitly sets the transport type
func WithTransport(t string) DialOption {
	return func(o *dialOptions) { o.transport = t }
}

// WithLogger sets the logger used for connection diagnostics
func WithLogger(l zerolog.Logger) DialOption {
	return func(o *dialOptions) { o.logger = l }
}

// WithCallTimeout bounds every Call and Listen handshake. Zero means the
// caller's context is the only limit.
func WithCallTimeout(d time.Duration) DialOption {
	return func(o *dialOptions) { o.callTimeout = d }
}

// WithHTTPOptions sets request options for the json transport
func WithHTTPOptions(opts ...Option) DialOption {
	return func(o *dialOptions) { o.httpOptions = append(o.httpOptions, opts...) }
}

// ServerOption configures servers
type ServerOption func(*serverOptions)

type serverOptions struct {
	codec     Codec
	transport string
	logger    zerolog.Logger
	metrics   *Metrics
	rateLimit rateLimitConfig
}

func newServerOptions(opts []ServerOption) *serverOptions {
	o := &serverOptions{
		codec:     defaultCodec,
		transport: DefaultTransport,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithServerCodec sets a custom codec for the server
func WithServerCodec(c Codec) ServerOption {
	return func(o *serverOptions) { o.codec = c }
}

// WithServerTransport explicitly sets the transport type for the server
func WithServerTransport(t string) ServerOption {
	return func(o *serverOptions) { o.transport = t }
}

// WithServerLogger sets the server logger
func WithServerLogger(l zerolog.Logger) ServerOption {
	return func(o *serverOptions) { o.logger = l }
}

// WithMetrics records call and subscription metrics
func WithMetrics(m *Metrics) ServerOption {
	return func(o *serverOptions) { o.metrics = m }
}

// WithRateLimit limits every connection to rps requests per second with
// the given burst.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(o *serverOptions) {
		o.rateLimit = rateLimitConfig{Enabled: true, RPS: rps, Burst: burst}
	}
}
