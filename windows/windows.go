// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package windows exposes a window management service over an ipc channel.
//
// The server side wraps a Service in a Channel and registers it under
// ChannelName:
//
//	ch := windows.NewChannel(service)
//	defer ch.Dispose()
//	server.RegisterChannel(windows.ChannelName, ch)
//
// The client side talks to it through a Client, which has the same method
// names as the service:
//
//	c := windows.NewClient(client)
//	err := c.OpenWindow(ctx, windows.OpenWindowArgs{...})
//
// Locators cross the connection in their wire form and are revived by the
// channel before the service sees them.
package windows

import (
	"context"

	"github.com/luxfi/ipc"
	"github.com/luxfi/ipc/history"
	"github.com/luxfi/ipc/uri"
	"github.com/luxfi/ipc/workspace"
)

// ChannelName is the name the windows channel is registered under.
const ChannelName = "windows"

// Commands understood by the windows channel. Names are case-sensitive.
const (
	CommandAddRecentlyOpened                  = "addRecentlyOpened"
	CommandRemoveFromRecentlyOpened           = "removeFromRecentlyOpened"
	CommandClearRecentlyOpened                = "clearRecentlyOpened"
	CommandGetRecentlyOpened                  = "getRecentlyOpened"
	CommandFocusWindow                        = "focusWindow"
	CommandIsFocused                          = "isFocused"
	CommandOpenWindow                         = "openWindow"
	CommandOpenExtensionDevelopmentHostWindow = "openExtensionDevelopmentHostWindow"
	CommandGetWindows                         = "getWindows"
	CommandGetActiveWindowID                  = "getActiveWindowId"
)

// Events exposed by the windows channel.
const (
	EventWindowOpen           = "onWindowOpen"
	EventWindowFocus          = "onWindowFocus"
	EventWindowBlur           = "onWindowBlur"
	EventWindowMaximize       = "onWindowMaximize"
	EventWindowUnmaximize     = "onWindowUnmaximize"
	EventRecentlyOpenedChange = "onRecentlyOpenedChange"
)

var (
	// Commands lists every command of the channel.
	Commands = []string{
		CommandAddRecentlyOpened,
		CommandRemoveFromRecentlyOpened,
		CommandClearRecentlyOpened,
		CommandGetRecentlyOpened,
		CommandFocusWindow,
		CommandIsFocused,
		CommandOpenWindow,
		CommandOpenExtensionDevelopmentHostWindow,
		CommandGetWindows,
		CommandGetActiveWindowID,
	}

	// Events lists every event of the channel.
	Events = []string{
		EventWindowOpen,
		EventWindowFocus,
		EventWindowBlur,
		EventWindowMaximize,
		EventWindowUnmaximize,
		EventRecentlyOpenedChange,
	}
)

// WindowInfo describes an open window.
type WindowInfo struct {
	ID        int                   `json:"id"`
	Workspace *workspace.Identifier `json:"workspace,omitempty"`
	FolderURI *uri.URI              `json:"folderUri,omitempty"`
	Title     string                `json:"title"`
	Filename  string                `json:"filename,omitempty"`
}

// Operations are the calls shared by a Service and the Client proxy.
type Operations interface {
	AddRecentlyOpened(ctx context.Context, recents []history.Recent) error
	RemoveFromRecentlyOpened(ctx context.Context, paths []*uri.URI) error
	ClearRecentlyOpened(ctx context.Context) error
	GetRecentlyOpened(ctx context.Context, windowID int) (history.RecentlyOpened, error)
	FocusWindow(ctx context.Context, windowID int) error
	IsFocused(ctx context.Context, windowID int) (bool, error)
	OpenWindow(ctx context.Context, args OpenWindowArgs) error
	GetWindows(ctx context.Context) ([]WindowInfo, error)

	// GetActiveWindowID reports false when no window is active.
	GetActiveWindowID(ctx context.Context) (int, bool, error)
}

// Service is the window management service behind a Channel. Each event
// method must return the same source on every call.
type Service interface {
	Operations

	OnWindowOpen() ipc.Event[int]
	OnWindowFocus() ipc.Event[int]
	OnWindowBlur() ipc.Event[int]
	OnWindowMaximize() ipc.Event[int]
	OnWindowUnmaximize() ipc.Event[int]
	OnRecentlyOpenedChange() ipc.Event[struct{}]
}

// ExtensionHostOpener is implemented by services that can open an
// extension development host window.
type ExtensionHostOpener interface {
	OpenExtensionDevelopmentHostWindow(ctx context.Context, args ExtensionDevelopmentHostArgs) error
}
