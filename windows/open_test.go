// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package windows

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/ipc/internal/codec"
	"github.com/luxfi/ipc/uri"
)

func fileComponents(path string) *uri.Components {
	return &uri.Components{Scheme: uri.FileScheme, Path: path}
}

func TestReviveURIToOpenTags(t *testing.T) {
	tests := []struct {
		name string
		wire WireURIToOpen
		kind Kind
		path string
	}{
		{"workspace", WireURIToOpen{WorkspaceURI: fileComponents("/w.code-workspace")}, KindWorkspace, "/w.code-workspace"},
		{"folder", WireURIToOpen{FolderURI: fileComponents("/src")}, KindFolder, "/src"},
		{"file", WireURIToOpen{FileURI: fileComponents("/a.txt")}, KindFile, "/a.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReviveURIToOpen(tt.wire)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.path, got.URI.Path())

			// The wire form round trips to the same tag only.
			assert.Equal(t, tt.wire, got.Wire())
		})
	}
}

func TestReviveURIToOpenRejectsAmbiguous(t *testing.T) {
	_, err := ReviveURIToOpen(WireURIToOpen{
		WorkspaceURI: fileComponents("/w.code-workspace"),
		FileURI:      fileComponents("/a.txt"),
	})
	assert.ErrorIs(t, err, ErrAmbiguousURIToOpen)

	_, err = ReviveURIToOpen(WireURIToOpen{Label: "nothing"})
	assert.ErrorIs(t, err, ErrEmptyURIToOpen)
}

func TestReviveURIsToOpenAllOrNothing(t *testing.T) {
	got, err := ReviveURIsToOpen([]WireURIToOpen{
		{FileURI: fileComponents("/a.txt")},
		{FolderURI: &uri.Components{Scheme: "bad scheme", Path: "/x"}},
	})
	require.Error(t, err)
	assert.True(t, uri.IsError(err))
	assert.Nil(t, got)
}

func TestReviveOpenSettingsMarker(t *testing.T) {
	s, err := ReviveOpenSettings(WireOpenSettings{
		ForceNewWindow:    true,
		WaitMarkerFileURI: fileComponents("/tmp/marker"),
	})
	require.NoError(t, err)
	assert.True(t, s.ForceNewWindow)
	require.NotNil(t, s.WaitMarkerFileURI)
	assert.Equal(t, "/tmp/marker", s.WaitMarkerFileURI.Path())

	s, err = ReviveOpenSettings(WireOpenSettings{DiffMode: true})
	require.NoError(t, err)
	assert.Nil(t, s.WaitMarkerFileURI)
	assert.Nil(t, s.Wire().WaitMarkerFileURI)
}

func TestOpenWindowRequestPositionalJSON(t *testing.T) {
	data := []byte(`[7,[{"fileUri":{"scheme":"file","path":"/a.txt"}}],{"waitMarkerFileURI":{"scheme":"file","path":"/tmp/marker"}}]`)

	var req OpenWindowRequest
	require.NoError(t, json.Unmarshal(data, &req))
	assert.Equal(t, 7, req.WindowID)
	require.Len(t, req.URIsToOpen, 1)

	args, err := ReviveOpenWindow(req)
	require.NoError(t, err)
	assert.Equal(t, 7, args.WindowID)
	require.Len(t, args.URIsToOpen, 1)
	assert.Equal(t, KindFile, args.URIsToOpen[0].Kind)
	assert.True(t, uri.File("/a.txt").Equal(args.URIsToOpen[0].URI))
	require.NotNil(t, args.Options.WaitMarkerFileURI)
	assert.True(t, uri.File("/tmp/marker").Equal(args.Options.WaitMarkerFileURI))

	out, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(out))
}

func TestOpenWindowRequestWithoutMarker(t *testing.T) {
	var req OpenWindowRequest
	require.NoError(t, json.Unmarshal([]byte(`[1,[{"folderUri":{"scheme":"file","path":"/src"}}],{}]`), &req))

	args, err := ReviveOpenWindow(req)
	require.NoError(t, err)
	assert.Nil(t, args.Options.WaitMarkerFileURI)

	// The options element may be left out entirely.
	require.NoError(t, json.Unmarshal([]byte(`[1,[]]`), &req))
	args, err = ReviveOpenWindow(req)
	require.NoError(t, err)
	assert.Nil(t, args.Options.WaitMarkerFileURI)
	assert.Empty(t, args.URIsToOpen)
}

func TestOpenWindowRequestArity(t *testing.T) {
	var req OpenWindowRequest
	assert.Error(t, json.Unmarshal([]byte(`[1]`), &req))
	assert.Error(t, json.Unmarshal([]byte(`[1,[],{},"extra"]`), &req))
	assert.Error(t, json.Unmarshal([]byte(`{"windowId":1}`), &req))
}

func TestOpenWindowRequestCBOR(t *testing.T) {
	in := OpenWindowArgs{
		WindowID:   3,
		URIsToOpen: []URIToOpen{FolderToOpen(uri.File("/src"), "src")},
		Options:    OpenSettings{ForceReuseWindow: true, WaitMarkerFileURI: uri.File("/tmp/m")},
	}.Wire()

	data, err := codec.Marshal(in)
	require.NoError(t, err)

	var out OpenWindowRequest
	require.NoError(t, codec.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestExtensionDevelopmentHostArgsPositional(t *testing.T) {
	var args ExtensionDevelopmentHostArgs
	require.NoError(t, json.Unmarshal([]byte(`[{"extensionDevelopmentPath":["/ext"]},{"HOME":"/home/dev"}]`), &args))
	assert.Equal(t, map[string]string{"HOME": "/home/dev"}, args.Env)
	assert.Contains(t, args.Args, "extensionDevelopmentPath")

	require.NoError(t, json.Unmarshal([]byte(`[{"verbose":true}]`), &args))
	assert.Nil(t, args.Env)

	out, err := json.Marshal(ExtensionDevelopmentHostArgs{Env: map[string]string{"A": "1"}})
	require.NoError(t, err)
	assert.JSONEq(t, `[null,{"A":"1"}]`, string(out))
}
