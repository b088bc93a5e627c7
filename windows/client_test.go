// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package windows

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/ipc"
	"github.com/luxfi/ipc/history"
	"github.com/luxfi/ipc/uri"
)

func serveWindows(t *testing.T, transport, addr string) (*Client, *MemoryService) {
	t.Helper()

	service := NewMemoryService(zerolog.Nop())
	ch := NewChannel(service)

	server, err := ipc.Listen(addr, ipc.WithServerTransport(transport))
	require.NoError(t, err)
	require.NoError(t, server.RegisterChannel(ChannelName, ch))

	ctx, cancel := context.WithCancel(context.Background())
	go server.Serve(ctx)

	conn, err := ipc.Dial(ctx, server.Addr(), ipc.WithTransport(transport))
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cancel()
		server.Close()
		ch.Dispose()
		service.Dispose()
	})
	return NewClient(conn), service
}

func next[T any](t *testing.T, s *ipc.Stream[T]) T {
	t.Helper()
	select {
	case v, ok := <-s.Values():
		require.True(t, ok, "stream ended: %v", s.Err())
		return v
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for event")
	}
	var zero T
	return zero
}

func TestClientCalls(t *testing.T) {
	for _, transport := range []string{ipc.TransportMemory, ipc.TransportZAP, ipc.TransportJSON} {
		t.Run(transport, func(t *testing.T) {
			addr := "127.0.0.1:0"
			if transport == ipc.TransportMemory {
				addr = ""
			}
			client, _ := serveWindows(t, transport, addr)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			_, ok, err := client.GetActiveWindowID(ctx)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, client.OpenWindow(ctx, OpenWindowArgs{
				URIsToOpen: []URIToOpen{FolderToOpen(uri.File("/src"), "")},
				Options:    OpenSettings{WaitMarkerFileURI: uri.File("/tmp/marker")},
			}))

			windows, err := client.GetWindows(ctx)
			require.NoError(t, err)
			require.Len(t, windows, 1)
			assert.Equal(t, "src", windows[0].Title)
			assert.True(t, uri.File("/src").Equal(windows[0].FolderURI))

			id, ok, err := client.GetActiveWindowID(ctx)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, windows[0].ID, id)

			focused, err := client.IsFocused(ctx, id)
			require.NoError(t, err)
			assert.True(t, focused)

			recent, err := client.GetRecentlyOpened(ctx, id)
			require.NoError(t, err)
			require.Len(t, recent.Workspaces, 1)
			assert.True(t, recent.Workspaces[0].IsFolder())
			assert.True(t, uri.File("/src").Equal(recent.Workspaces[0].FolderURI()))

			require.NoError(t, client.AddRecentlyOpened(ctx, []history.Recent{
				history.NewRecentFile(uri.File("/a.txt"), "a"),
			}))
			recent, err = client.GetRecentlyOpened(ctx, id)
			require.NoError(t, err)
			require.Len(t, recent.Files, 1)
			assert.Equal(t, "a", recent.Files[0].Label())

			require.NoError(t, client.RemoveFromRecentlyOpened(ctx, []*uri.URI{uri.File("/a.txt")}))
			recent, err = client.GetRecentlyOpened(ctx, id)
			require.NoError(t, err)
			assert.Empty(t, recent.Files)
			assert.Len(t, recent.Workspaces, 1)

			require.NoError(t, client.ClearRecentlyOpened(ctx))
			recent, err = client.GetRecentlyOpened(ctx, id)
			require.NoError(t, err)
			assert.Empty(t, recent.Workspaces)

			err = client.FocusWindow(ctx, 99)
			var remote *ipc.RemoteError
			require.ErrorAs(t, err, &remote)
			assert.Contains(t, remote.Message, "unknown window")
		})
	}
}

func TestClientEvents(t *testing.T) {
	client, service := serveWindows(t, ipc.TransportMemory, "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opened, err := client.OnWindowOpen(ctx)
	require.NoError(t, err)
	defer opened.Close()
	focused, err := client.OnWindowFocus(ctx)
	require.NoError(t, err)
	defer focused.Close()
	blurred, err := client.OnWindowBlur(ctx)
	require.NoError(t, err)
	defer blurred.Close()
	changes, err := client.OnRecentlyOpenedChange(ctx)
	require.NoError(t, err)
	defer changes.Close()

	require.NoError(t, client.OpenWindow(ctx, OpenWindowArgs{
		URIsToOpen: []URIToOpen{
			FileToOpen(uri.File("/a.txt"), ""),
			FileToOpen(uri.File("/b.txt"), ""),
		},
	}))
	assert.Equal(t, 1, next(t, opened))
	assert.Equal(t, 2, next(t, opened))
	assert.Equal(t, 2, next(t, focused))
	next(t, changes)

	require.NoError(t, client.FocusWindow(ctx, 1))
	assert.Equal(t, 2, next(t, blurred))
	assert.Equal(t, 1, next(t, focused))

	// Fired before anyone listens: replayed to the first subscriber.
	require.NoError(t, service.MaximizeWindow(1))
	require.NoError(t, service.UnmaximizeWindow(1))
	maximized, err := client.OnWindowMaximize(ctx)
	require.NoError(t, err)
	defer maximized.Close()
	assert.Equal(t, 1, next(t, maximized))

	unmaximized, err := client.OnWindowUnmaximize(ctx)
	require.NoError(t, err)
	defer unmaximized.Close()
	assert.Equal(t, 1, next(t, unmaximized))
}

func TestClientExtensionHost(t *testing.T) {
	client, _ := serveWindows(t, ipc.TransportMemory, "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.OpenExtensionDevelopmentHostWindow(ctx, ExtensionDevelopmentHostArgs{
		Args: map[string]any{"extensionDevelopmentPath": []any{"/ext"}},
		Env:  map[string]string{"HOME": "/home/dev"},
	}))
	windows, err := client.GetWindows(ctx)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, extensionHostTitle, windows[0].Title)
}

func TestClientUnknownEvent(t *testing.T) {
	client, _ := serveWindows(t, ipc.TransportMemory, "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.channel.Listen(ctx, "bogus")
	assert.EqualError(t, err, "Event not found: bogus")

	err = client.channel.Call(ctx, "bogus", map[string]any{}, nil)
	assert.EqualError(t, err, "Call not found: bogus")
}

func TestClientMissingLocations(t *testing.T) {
	client, _ := serveWindows(t, ipc.TransportMemory, "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.RemoveFromRecentlyOpened(ctx, []*uri.URI{nil}))

	err := client.AddRecentlyOpened(ctx, []history.Recent{history.NewRecentWorkspace(nil, "gone")})
	var remote *ipc.RemoteError
	require.ErrorAs(t, err, &remote)

	recent, err := client.GetRecentlyOpened(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recent.Workspaces)
}
