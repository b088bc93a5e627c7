// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package windows

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/ipc"
	"github.com/luxfi/ipc/history"
	"github.com/luxfi/ipc/uri"
)

var _ ipc.ServerChannel = (*Channel)(nil)

// Channel serves a Service. Every service event is buffered from
// construction, so values fired before the first remote listener attaches
// reach that listener in order.
type Channel struct {
	service Service
	table   *ipc.Table

	disposeOnce sync.Once
	buffers     []interface{ Dispose() }
}

// NewChannel wraps service. The service stays owned by the caller; the
// event adapters belong to the channel and are released by Dispose.
func NewChannel(service Service) *Channel {
	c := &Channel{service: service}

	events := map[string]ipc.Event[any]{
		EventWindowOpen:           buffer(c, service.OnWindowOpen()),
		EventWindowFocus:          buffer(c, service.OnWindowFocus()),
		EventWindowBlur:           buffer(c, service.OnWindowBlur()),
		EventWindowMaximize:       buffer(c, service.OnWindowMaximize()),
		EventWindowUnmaximize:     buffer(c, service.OnWindowUnmaximize()),
		EventRecentlyOpenedChange: buffer(c, service.OnRecentlyOpenedChange()),
	}

	calls := map[string]ipc.CallHandler{
		CommandAddRecentlyOpened:                  ipc.HandleVoid(c.addRecentlyOpened),
		CommandRemoveFromRecentlyOpened:           ipc.HandleVoid(c.removeFromRecentlyOpened),
		CommandClearRecentlyOpened:                ipc.HandleNoArgVoid(service.ClearRecentlyOpened),
		CommandGetRecentlyOpened:                  ipc.Handle(service.GetRecentlyOpened),
		CommandFocusWindow:                        ipc.HandleVoid(service.FocusWindow),
		CommandIsFocused:                          ipc.Handle(service.IsFocused),
		CommandOpenWindow:                         ipc.HandleVoid(c.openWindow),
		CommandOpenExtensionDevelopmentHostWindow: ipc.HandleVoid(c.openExtensionDevelopmentHostWindow),
		CommandGetWindows:                         ipc.HandleNoArg(service.GetWindows),
		CommandGetActiveWindowID:                  ipc.HandleNoArg(c.getActiveWindowID),
	}

	c.table = ipc.NewTable(calls, events)
	return c
}

func buffer[T any](c *Channel, source ipc.Event[T]) ipc.Event[any] {
	b := ipc.Buffer(source, true)
	c.buffers = append(c.buffers, b)
	return ipc.Erase(b.Event())
}

// Call dispatches command to the service. Locator arguments are revived
// first; a malformed locator fails the call before the service runs.
func (c *Channel) Call(ctx context.Context, command string, arg ipc.Payload) (any, error) {
	return c.table.Call(ctx, command, arg)
}

// Listen returns the buffered event registered under event.
func (c *Channel) Listen(ctx context.Context, event string) (ipc.Event[any], error) {
	return c.table.Listen(ctx, event)
}

// Dispose detaches the event adapters from the service.
func (c *Channel) Dispose() {
	c.disposeOnce.Do(func() {
		for _, b := range c.buffers {
			b.Dispose()
		}
	})
}

func (c *Channel) addRecentlyOpened(ctx context.Context, wire []history.WireRecent) error {
	recents, err := history.ReviveRecents(wire)
	if err != nil {
		return err
	}
	return c.service.AddRecentlyOpened(ctx, recents)
}

func (c *Channel) removeFromRecentlyOpened(ctx context.Context, wire []uri.Components) error {
	paths, err := uri.ReviveAll(wire)
	if err != nil {
		return err
	}
	return c.service.RemoveFromRecentlyOpened(ctx, paths)
}

func (c *Channel) openWindow(ctx context.Context, req OpenWindowRequest) error {
	args, err := ReviveOpenWindow(req)
	if err != nil {
		return err
	}
	return c.service.OpenWindow(ctx, args)
}

func (c *Channel) openExtensionDevelopmentHostWindow(ctx context.Context, args ExtensionDevelopmentHostArgs) error {
	opener, ok := c.service.(ExtensionHostOpener)
	if !ok {
		return fmt.Errorf("%s: %w", CommandOpenExtensionDevelopmentHostWindow, errors.ErrUnsupported)
	}
	return opener.OpenExtensionDevelopmentHostWindow(ctx, args)
}

// getActiveWindowID answers null when no window is active.
func (c *Channel) getActiveWindowID(ctx context.Context) (*int, error) {
	id, ok, err := c.service.GetActiveWindowID(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return &id, nil
}
