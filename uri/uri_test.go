// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package uri

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/ipc/internal/codec"
)

func TestReviveNilStaysAbsent(t *testing.T) {
	u, err := Revive(nil)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestReviveComponents(t *testing.T) {
	u, err := Revive(&Components{Scheme: "file", Path: "/home/user/a.txt"})
	require.NoError(t, err)
	assert.Equal(t, "file", u.Scheme())
	assert.Equal(t, "/home/user/a.txt", u.Path())
	assert.Equal(t, "file:///home/user/a.txt", u.String())
}

func TestReviveIsIdempotent(t *testing.T) {
	original := MustParse("vscode-remote://ssh+box/home/user/project?x=1#top")

	revived, err := Revive(original.Wire())
	require.NoError(t, err)
	assert.True(t, original.Equal(revived))

	again, err := Revive(revived.Wire())
	require.NoError(t, err)
	assert.True(t, original.Equal(again))
	assert.Same(t, original, original.Revive())
}

func TestReviveRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   Components
	}{
		{name: "missing scheme", in: Components{Path: "/a"}},
		{name: "illegal scheme", in: Components{Scheme: "fi le", Path: "/a"}},
		{name: "relative path with authority", in: Components{Scheme: "http", Authority: "host", Path: "a"}},
		{name: "double slash without authority", in: Components{Scheme: "file", Path: "//a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Revive(&tt.in)
			require.Error(t, err)
			assert.True(t, IsError(err))
		})
	}
}

func TestReviveAll(t *testing.T) {
	us, err := ReviveAll([]Components{
		{Scheme: "file", Path: "/a"},
		{Scheme: "file", Path: "/b"},
	})
	require.NoError(t, err)
	require.Len(t, us, 2)
	assert.Equal(t, "/b", us[1].Path())

	_, err = ReviveAll([]Components{{Scheme: "file", Path: "/a"}, {Path: "/b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "element 1")
}

func TestParse(t *testing.T) {
	u, err := Parse("https://user@example.com:8080/a%20b?q=1#frag")
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme())
	assert.Equal(t, "user@example.com:8080", u.Authority())
	assert.Equal(t, "/a b", u.Path())
	assert.Equal(t, "q=1", u.Query())
	assert.Equal(t, "frag", u.Fragment())
	assert.Equal(t, "https://user@example.com:8080/a%20b?q=1#frag", u.String())

	_, err = Parse("/no/scheme")
	require.Error(t, err)
}

func TestFile(t *testing.T) {
	u := File("/tmp/x.txt")
	assert.Equal(t, "file:///tmp/x.txt", u.String())
	assert.Equal(t, "/tmp/x.txt", u.Path())
}

func TestWith(t *testing.T) {
	u := File("/tmp/x.txt")
	changed, err := u.With(Components{Path: "/tmp/y.txt"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/y.txt", changed.Path())
	assert.Equal(t, "/tmp/x.txt", u.Path())
}

func TestJSONEncodesComponents(t *testing.T) {
	u := File("/tmp/x.txt")
	data, err := json.Marshal(u)
	require.NoError(t, err)
	assert.JSONEq(t, `{"scheme":"file","path":"/tmp/x.txt"}`, string(data))

	var decoded URI
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, u.Equal(&decoded))

	var fromString URI
	require.NoError(t, json.Unmarshal([]byte(`"file:///tmp/x.txt"`), &fromString))
	assert.True(t, u.Equal(&fromString))

	var holder struct {
		Marker *URI `json:"marker,omitempty"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{}`), &holder))
	assert.Nil(t, holder.Marker)

	err = json.Unmarshal([]byte(`{"path":"/x"}`), &decoded)
	assert.True(t, IsError(err))
}

func TestCBOREncodesComponents(t *testing.T) {
	u := MustParse("git://host/repo?ref=main")
	data, err := codec.Marshal(u)
	require.NoError(t, err)

	var c Components
	require.NoError(t, codec.Unmarshal(data, &c))
	assert.Equal(t, u.Components(), c)

	var decoded URI
	require.NoError(t, codec.Unmarshal(data, &decoded))
	assert.True(t, u.Equal(&decoded))

	text, err := codec.Marshal("file:///tmp/x.txt")
	require.NoError(t, err)
	var fromString URI
	require.NoError(t, codec.Unmarshal(text, &fromString))
	assert.Equal(t, "/tmp/x.txt", fromString.Path())
}

func TestWireAllSkipsNil(t *testing.T) {
	var absent *URI
	assert.Equal(t, Components{}, absent.Components())
	assert.Nil(t, WireAll(nil))

	got := WireAll([]*URI{nil, File("/a.txt"), nil})
	require.Len(t, got, 1)
	assert.Equal(t, "/a.txt", got[0].Path)
}
