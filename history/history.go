// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package history defines recently opened entries and their wire form.
//
// A Recent is a tagged union of a file, a folder or a workspace. The tag is
// fixed by the constructor. On the wire the tag is implied by which location
// field is present; ReviveRecent checks fileUri first, then folderUri, and
// falls back to workspace.
package history

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luxfi/ipc/internal/codec"
	"github.com/luxfi/ipc/uri"
	"github.com/luxfi/ipc/workspace"
)

var (
	// ErrAmbiguousRecent is returned for wire entries with more than one
	// location field populated.
	ErrAmbiguousRecent = errors.New("history: recent entry has more than one location")
	// ErrEmptyRecent is returned for wire entries with no location.
	ErrEmptyRecent = errors.New("history: recent entry has no location")
)

// Kind is the discriminant of a Recent.
type Kind uint8

const (
	KindFile Kind = iota + 1
	KindFolder
	KindWorkspace
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	case KindWorkspace:
		return "workspace"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Recent is a previously opened file, folder or workspace.
type Recent struct {
	kind      Kind
	location  *uri.URI
	workspace *workspace.Identifier
	label     string
}

// NewRecentFile returns a file entry.
func NewRecentFile(fileURI *uri.URI, label string) Recent {
	return Recent{kind: KindFile, location: fileURI, label: label}
}

// NewRecentFolder returns a folder entry.
func NewRecentFolder(folderURI *uri.URI, label string) Recent {
	return Recent{kind: KindFolder, location: folderURI, label: label}
}

// NewRecentWorkspace returns a workspace entry.
func NewRecentWorkspace(id *workspace.Identifier, label string) Recent {
	return Recent{kind: KindWorkspace, workspace: id, label: label}
}

// Kind returns the discriminant of r.
func (r Recent) Kind() Kind { return r.kind }

// Label returns the display label, which may be empty.
func (r Recent) Label() string { return r.label }

// IsZero reports whether r was built without a constructor.
func (r Recent) IsZero() bool { return r.kind == 0 }

// IsFile reports whether r is a file entry.
func (r Recent) IsFile() bool { return r.kind == KindFile }

// IsFolder reports whether r is a folder entry.
func (r Recent) IsFolder() bool { return r.kind == KindFolder }

// IsWorkspace reports whether r is a workspace entry.
func (r Recent) IsWorkspace() bool { return r.kind == KindWorkspace }

// FileURI returns the location of a file entry and nil for other kinds.
func (r Recent) FileURI() *uri.URI {
	if r.kind != KindFile {
		return nil
	}
	return r.location
}

// FolderURI returns the location of a folder entry and nil for other kinds.
func (r Recent) FolderURI() *uri.URI {
	if r.kind != KindFolder {
		return nil
	}
	return r.location
}

// Workspace returns the identifier of a workspace entry and nil for other
// kinds.
func (r Recent) Workspace() *workspace.Identifier {
	if r.kind != KindWorkspace {
		return nil
	}
	return r.workspace
}

// Equal reports whether r and other describe the same entry.
func (r Recent) Equal(other Recent) bool {
	return r.kind == other.kind &&
		r.label == other.label &&
		r.location.Equal(other.location) &&
		r.workspace.Equal(other.workspace)
}

// WireRecent is the wire form of a Recent.
type WireRecent struct {
	FileURI   *uri.Components       `json:"fileUri,omitempty"`
	FolderURI *uri.Components       `json:"folderUri,omitempty"`
	Workspace *workspace.Serialized `json:"workspace,omitempty"`
	Label     string                `json:"label,omitempty"`
}

// IsRecentFile reports whether w is tagged as a file.
func IsRecentFile(w WireRecent) bool {
	return w.FileURI != nil
}

// IsRecentFolder reports whether w is tagged as a folder.
func IsRecentFolder(w WireRecent) bool {
	return w.FolderURI != nil
}

func locationCount(w WireRecent) int {
	n := 0
	if w.FileURI != nil {
		n++
	}
	if w.FolderURI != nil {
		n++
	}
	if w.Workspace != nil {
		n++
	}
	return n
}

// ReviveRecent reconstructs a Recent from its wire form. Exactly one
// location field is revived, chosen by the tag.
func ReviveRecent(w WireRecent) (Recent, error) {
	switch locationCount(w) {
	case 0:
		return Recent{}, ErrEmptyRecent
	case 1:
	default:
		return Recent{}, ErrAmbiguousRecent
	}

	if IsRecentFile(w) {
		fileURI, err := uri.Revive(w.FileURI)
		if err != nil {
			return Recent{}, fmt.Errorf("fileUri: %w", err)
		}
		return NewRecentFile(fileURI, w.Label), nil
	} else if IsRecentFolder(w) {
		folderURI, err := uri.Revive(w.FolderURI)
		if err != nil {
			return Recent{}, fmt.Errorf("folderUri: %w", err)
		}
		return NewRecentFolder(folderURI, w.Label), nil
	}
	id, err := workspace.ReviveIdentifier(w.Workspace)
	if err != nil {
		return Recent{}, fmt.Errorf("workspace: %w", err)
	}
	return NewRecentWorkspace(id, w.Label), nil
}

// ReviveRecents revives every entry of ws. It fails on the first malformed
// entry and returns no partial result.
func ReviveRecents(ws []WireRecent) ([]Recent, error) {
	if ws == nil {
		return nil, nil
	}
	out := make([]Recent, len(ws))
	for i := range ws {
		r, err := ReviveRecent(ws[i])
		if err != nil {
			return nil, fmt.Errorf("recent %d: %w", i, err)
		}
		out[i] = r
	}
	return out, nil
}

// Wire returns the wire form of r.
func (r Recent) Wire() WireRecent {
	w := WireRecent{Label: r.label}
	switch r.kind {
	case KindFile:
		w.FileURI = r.location.Wire()
	case KindFolder:
		w.FolderURI = r.location.Wire()
	case KindWorkspace:
		w.Workspace = r.workspace.Wire()
	}
	return w
}

// WireRecents returns the wire form of every entry in rs.
func WireRecents(rs []Recent) []WireRecent {
	if rs == nil {
		return nil
	}
	out := make([]WireRecent, len(rs))
	for i, r := range rs {
		out[i] = r.Wire()
	}
	return out
}

func (r Recent) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Wire())
}

func (r *Recent) UnmarshalJSON(data []byte) error {
	var w WireRecent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	revived, err := ReviveRecent(w)
	if err != nil {
		return err
	}
	*r = revived
	return nil
}

func (r Recent) MarshalCBOR() ([]byte, error) {
	return codec.Marshal(r.Wire())
}

func (r *Recent) UnmarshalCBOR(data []byte) error {
	var w WireRecent
	if err := codec.Unmarshal(data, &w); err != nil {
		return err
	}
	revived, err := ReviveRecent(w)
	if err != nil {
		return err
	}
	*r = revived
	return nil
}

// RecentlyOpened is the history returned to a window: workspaces and
// folders in one list, files in another, most recent first.
type RecentlyOpened struct {
	Workspaces []Recent `json:"workspaces"`
	Files      []Recent `json:"files"`
}
