// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// nameSeparator joins a channel name and a command or event name on the
// wire, as in "windows/openWindow".
const nameSeparator = "/"

func joinName(channel, member string) string {
	return channel + nameSeparator + member
}

func splitName(name string) (channel, member string) {
	channel, member, _ = strings.Cut(name, nameSeparator)
	return channel, member
}

type peerKey struct{}

func withPeer(ctx context.Context, peer string) context.Context {
	return context.WithValue(ctx, peerKey{}, peer)
}

// PeerFromContext returns the id of the connection a call arrived on.
func PeerFromContext(ctx context.Context) (string, bool) {
	peer, ok := ctx.Value(peerKey{}).(string)
	return peer, ok
}

// dispatcher routes decoded requests to registered channels. Every server
// transport embeds one.
type dispatcher struct {
	mu       sync.RWMutex
	channels map[string]ServerChannel

	codec   Codec
	log     zerolog.Logger
	metrics *Metrics
	limiter *rateLimiter
}

func newDispatcher(o *serverOptions) *dispatcher {
	return &dispatcher{
		channels: make(map[string]ServerChannel),
		codec:    o.codec,
		log:      o.logger,
		metrics:  o.metrics,
		limiter:  newRateLimiter(o.rateLimit),
	}
}

// RegisterChannel exposes ch under name.
func (d *dispatcher) RegisterChannel(name string, ch ServerChannel) error {
	if name == "" || strings.Contains(name, nameSeparator) {
		return fmt.Errorf("ipc: invalid channel name %q", name)
	}
	if ch == nil {
		return fmt.Errorf("ipc: channel %q is nil", name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.channels[name]; ok {
		return fmt.Errorf("ipc: channel %q already registered", name)
	}
	d.channels[name] = ch
	return nil
}

func (d *dispatcher) channel(name string) (ServerChannel, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ch, ok := d.channels[name]
	if !ok {
		return nil, &UnknownChannelError{Channel: name}
	}
	return ch, nil
}

// call serves one request and returns the encoded result.
func (d *dispatcher) call(ctx context.Context, peer, name string, arg []byte) ([]byte, error) {
	channelName, command := splitName(name)
	if !d.limiter.allow(peer, time.Now()) {
		d.metrics.observeCall(unknownLabel, unknownLabel, outcomeRateLimited, 0)
		return nil, ErrRateLimited
	}

	ch, err := d.channel(channelName)
	if err != nil {
		d.metrics.observeCall(unknownLabel, unknownLabel, outcomeUnknown, 0)
		return nil, err
	}

	start := time.Now()
	result, err := ch.Call(ctx, command, RawPayload(d.codec, arg))
	if err != nil {
		var unknown *UnknownCommandError
		if errors.As(err, &unknown) {
			d.metrics.observeCall(channelName, unknownLabel, outcomeUnknown, 0)
		} else {
			d.metrics.observeCall(channelName, command, outcomeError, time.Since(start))
		}
		return nil, err
	}
	d.metrics.observeCall(channelName, command, outcomeOK, time.Since(start))

	data, err := d.codec.Encode(result)
	if err != nil {
		d.log.Error().Err(err).Str("call", name).Msg("failed to encode result")
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return data, nil
}

// listen resolves an event by its wire name.
func (d *dispatcher) listen(ctx context.Context, peer, name string) (Event[any], error) {
	channelName, event := splitName(name)
	if !d.limiter.allow(peer, time.Now()) {
		d.metrics.observeListen(unknownLabel, unknownLabel, outcomeRateLimited)
		return nil, ErrRateLimited
	}

	ch, err := d.channel(channelName)
	if err != nil {
		d.metrics.observeListen(unknownLabel, unknownLabel, outcomeUnknown)
		return nil, err
	}
	e, err := ch.Listen(ctx, event)
	if err != nil {
		d.metrics.observeListen(channelName, unknownLabel, outcomeUnknown)
		return nil, err
	}
	d.metrics.observeListen(channelName, event, outcomeOK)
	return e, nil
}

// serveConn reads frames from conn until it fails. Calls run concurrently;
// listen and dispose frames are handled in arrival order.
func (d *dispatcher) serveConn(ctx context.Context, peer string, conn frameConn) {
	ctx, cancel := context.WithCancel(withPeer(ctx, peer))
	log := d.log.With().Str("peer", peer).Logger()
	subs := make(map[uint32]func())

	defer func() {
		cancel()
		for _, stop := range subs {
			stop()
		}
		d.limiter.forget(peer)
		conn.Close()
		log.Debug().Msg("connection closed")
	}()

	log.Debug().Msg("connection opened")
	for {
		f, err := conn.readFrame()
		if err != nil {
			if !errors.Is(err, ErrClosed) {
				log.Debug().Err(err).Msg("read failed")
			}
			return
		}

		switch f.Type {
		case MsgRequest:
			go d.serveCall(ctx, log, peer, conn, f)

		case MsgListen:
			if _, ok := subs[f.ID]; ok {
				continue
			}
			e, err := d.listen(ctx, peer, f.Name)
			if err != nil {
				if err := conn.writeFrame(ctx, &frame{Type: MsgError, ID: f.ID, Payload: encodeError(err)}); err != nil {
					return
				}
				continue
			}
			if err := conn.writeFrame(ctx, &frame{Type: MsgResponse, ID: f.ID}); err != nil {
				return
			}
			subs[f.ID] = d.attach(ctx, log, conn, f.ID, f.Name, e)

		case MsgDispose:
			if stop, ok := subs[f.ID]; ok {
				delete(subs, f.ID)
				stop()
			}

		default:
			log.Debug().Uint8("type", uint8(f.Type)).Msg("ignoring frame")
		}
	}
}

func (d *dispatcher) serveCall(ctx context.Context, log zerolog.Logger, peer string, conn frameConn, f *frame) {
	result, err := d.call(ctx, peer, f.Name, f.Payload)
	reply := &frame{Type: MsgResponse, ID: f.ID, Payload: result}
	if err != nil {
		reply = &frame{Type: MsgError, ID: f.ID, Payload: encodeError(err)}
	}
	if err := conn.writeFrame(ctx, reply); err != nil {
		log.Debug().Err(err).Str("call", f.Name).Msg("failed to write reply")
	}
}

// attach subscribes a connection to e and forwards every value as an event
// frame tagged with the listen id.
func (d *dispatcher) attach(ctx context.Context, log zerolog.Logger, conn frameConn, id uint32, name string, e Event[any]) func() {
	d.metrics.subscribed()
	unsubscribe := e(func(v any) {
		data, err := d.codec.Encode(v)
		if err != nil {
			log.Error().Err(err).Str("event", name).Msg("failed to encode event")
			return
		}
		if err := conn.writeFrame(ctx, &frame{Type: MsgEvent, ID: id, Payload: data}); err != nil {
			log.Debug().Err(err).Str("event", name).Msg("failed to write event")
		}
	})
	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			d.metrics.unsubscribed()
		})
	}
}
