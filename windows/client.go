// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package windows

import (
	"context"

	"github.com/luxfi/ipc"
	"github.com/luxfi/ipc/history"
	"github.com/luxfi/ipc/uri"
)

var (
	_ Operations          = (*Client)(nil)
	_ ExtensionHostOpener = (*Client)(nil)
)

// Client is the proxy of a remote windows channel. Arguments are sent in
// their wire form; results decode straight into revived types.
type Client struct {
	channel ipc.ChannelClient
}

// NewClient returns a proxy for the windows channel served over c.
func NewClient(c ipc.Client) *Client {
	return &Client{channel: ipc.NewChannelClient(c, ChannelName)}
}

// AddRecentlyOpened sends recents in their tagged wire form.
func (c *Client) AddRecentlyOpened(ctx context.Context, recents []history.Recent) error {
	return c.channel.Call(ctx, CommandAddRecentlyOpened, history.WireRecents(recents), nil)
}

// RemoveFromRecentlyOpened drops the entries at paths. Nil paths are skipped.
func (c *Client) RemoveFromRecentlyOpened(ctx context.Context, paths []*uri.URI) error {
	return c.channel.Call(ctx, CommandRemoveFromRecentlyOpened, uri.WireAll(paths), nil)
}

// ClearRecentlyOpened empties the history.
func (c *Client) ClearRecentlyOpened(ctx context.Context) error {
	return c.channel.Call(ctx, CommandClearRecentlyOpened, nil, nil)
}

// GetRecentlyOpened returns the history as seen from windowID.
func (c *Client) GetRecentlyOpened(ctx context.Context, windowID int) (history.RecentlyOpened, error) {
	var recent history.RecentlyOpened
	err := c.channel.Call(ctx, CommandGetRecentlyOpened, windowID, &recent)
	return recent, err
}

// FocusWindow focuses windowID.
func (c *Client) FocusWindow(ctx context.Context, windowID int) error {
	return c.channel.Call(ctx, CommandFocusWindow, windowID, nil)
}

// IsFocused reports whether windowID has focus.
func (c *Client) IsFocused(ctx context.Context, windowID int) (bool, error) {
	var focused bool
	err := c.channel.Call(ctx, CommandIsFocused, windowID, &focused)
	return focused, err
}

// OpenWindow sends args as the positional openWindow request.
func (c *Client) OpenWindow(ctx context.Context, args OpenWindowArgs) error {
	return c.channel.Call(ctx, CommandOpenWindow, args.Wire(), nil)
}

// OpenExtensionDevelopmentHostWindow opens an extension development host.
func (c *Client) OpenExtensionDevelopmentHostWindow(ctx context.Context, args ExtensionDevelopmentHostArgs) error {
	return c.channel.Call(ctx, CommandOpenExtensionDevelopmentHostWindow, args, nil)
}

// GetWindows lists the open windows.
func (c *Client) GetWindows(ctx context.Context) ([]WindowInfo, error) {
	var windows []WindowInfo
	err := c.channel.Call(ctx, CommandGetWindows, nil, &windows)
	return windows, err
}

// GetActiveWindowID returns the focused window, with ok false when none is.
func (c *Client) GetActiveWindowID(ctx context.Context) (int, bool, error) {
	var id *int
	if err := c.channel.Call(ctx, CommandGetActiveWindowID, nil, &id); err != nil {
		return 0, false, err
	}
	if id == nil {
		return 0, false, nil
	}
	return *id, true, nil
}

// OnWindowOpen streams the ids of opened windows.
func (c *Client) OnWindowOpen(ctx context.Context) (*ipc.Stream[int], error) {
	return ipc.Subscribe[int](ctx, c.channel, EventWindowOpen)
}

// OnWindowFocus streams the ids of focused windows.
func (c *Client) OnWindowFocus(ctx context.Context) (*ipc.Stream[int], error) {
	return ipc.Subscribe[int](ctx, c.channel, EventWindowFocus)
}

// OnWindowBlur streams the ids of windows that lost focus.
func (c *Client) OnWindowBlur(ctx context.Context) (*ipc.Stream[int], error) {
	return ipc.Subscribe[int](ctx, c.channel, EventWindowBlur)
}

// OnWindowMaximize streams the ids of maximized windows.
func (c *Client) OnWindowMaximize(ctx context.Context) (*ipc.Stream[int], error) {
	return ipc.Subscribe[int](ctx, c.channel, EventWindowMaximize)
}

// OnWindowUnmaximize streams the ids of windows restored from maximized.
func (c *Client) OnWindowUnmaximize(ctx context.Context) (*ipc.Stream[int], error) {
	return ipc.Subscribe[int](ctx, c.channel, EventWindowUnmaximize)
}

// OnRecentlyOpenedChange streams one value per change of the history.
func (c *Client) OnRecentlyOpenedChange(ctx context.Context) (*ipc.Stream[struct{}], error) {
	return ipc.Subscribe[struct{}](ctx, c.channel, EventRecentlyOpenedChange)
}
