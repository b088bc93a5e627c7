// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package windows

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luxfi/ipc/uri"
)

var (
	// ErrAmbiguousURIToOpen is returned for wire entries with more than one
	// location field populated.
	ErrAmbiguousURIToOpen = errors.New("windows: uri to open has more than one location")
	// ErrEmptyURIToOpen is returned for wire entries with no location.
	ErrEmptyURIToOpen = errors.New("windows: uri to open has no location")
)

// Kind is the discriminant of a URIToOpen.
type Kind uint8

const (
	KindWorkspace Kind = iota + 1
	KindFolder
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindWorkspace:
		return "workspace"
	case KindFolder:
		return "folder"
	case KindFile:
		return "file"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// URIToOpen is a workspace, folder or file to open in a window.
type URIToOpen struct {
	Kind  Kind
	URI   *uri.URI
	Label string
}

// WorkspaceToOpen returns a workspace target. u locates the workspace
// configuration file.
func WorkspaceToOpen(u *uri.URI, label string) URIToOpen {
	return URIToOpen{Kind: KindWorkspace, URI: u, Label: label}
}

// FolderToOpen returns a folder target.
func FolderToOpen(u *uri.URI, label string) URIToOpen {
	return URIToOpen{Kind: KindFolder, URI: u, Label: label}
}

// FileToOpen returns a file target.
func FileToOpen(u *uri.URI, label string) URIToOpen {
	return URIToOpen{Kind: KindFile, URI: u, Label: label}
}

// WireURIToOpen is the wire form of a URIToOpen.
type WireURIToOpen struct {
	WorkspaceURI *uri.Components `json:"workspaceUri,omitempty"`
	FolderURI    *uri.Components `json:"folderUri,omitempty"`
	FileURI      *uri.Components `json:"fileUri,omitempty"`
	Label        string          `json:"label,omitempty"`
}

// IsWorkspaceToOpen reports whether w is tagged as a workspace.
func IsWorkspaceToOpen(w WireURIToOpen) bool {
	return w.WorkspaceURI != nil
}

// IsFolderToOpen reports whether w is tagged as a folder.
func IsFolderToOpen(w WireURIToOpen) bool {
	return w.FolderURI != nil
}

// ReviveURIToOpen reconstructs a URIToOpen. The tag is checked in the
// order workspace, folder, file, and only the tagged field is revived.
func ReviveURIToOpen(w WireURIToOpen) (URIToOpen, error) {
	populated := 0
	for _, c := range []*uri.Components{w.WorkspaceURI, w.FolderURI, w.FileURI} {
		if c != nil {
			populated++
		}
	}
	switch {
	case populated == 0:
		return URIToOpen{}, ErrEmptyURIToOpen
	case populated > 1:
		return URIToOpen{}, ErrAmbiguousURIToOpen
	}

	var (
		kind  Kind
		field string
		c     *uri.Components
	)
	switch {
	case IsWorkspaceToOpen(w):
		kind, field, c = KindWorkspace, "workspaceUri", w.WorkspaceURI
	case IsFolderToOpen(w):
		kind, field, c = KindFolder, "folderUri", w.FolderURI
	default:
		kind, field, c = KindFile, "fileUri", w.FileURI
	}
	u, err := uri.Revive(c)
	if err != nil {
		return URIToOpen{}, fmt.Errorf("%s: %w", field, err)
	}
	return URIToOpen{Kind: kind, URI: u, Label: w.Label}, nil
}

// ReviveURIsToOpen revives every entry of ws with no partial result.
func ReviveURIsToOpen(ws []WireURIToOpen) ([]URIToOpen, error) {
	if ws == nil {
		return nil, nil
	}
	out := make([]URIToOpen, len(ws))
	for i := range ws {
		u, err := ReviveURIToOpen(ws[i])
		if err != nil {
			return nil, fmt.Errorf("uri to open %d: %w", i, err)
		}
		out[i] = u
	}
	return out, nil
}

// Wire returns the wire form of u.
func (u URIToOpen) Wire() WireURIToOpen {
	w := WireURIToOpen{Label: u.Label}
	switch u.Kind {
	case KindWorkspace:
		w.WorkspaceURI = u.URI.Wire()
	case KindFolder:
		w.FolderURI = u.URI.Wire()
	case KindFile:
		w.FileURI = u.URI.Wire()
	}
	return w
}

// OpenSettings control how targets are opened. WaitMarkerFileURI is nil
// unless the caller supplied one.
type OpenSettings struct {
	ForceNewWindow    bool
	ForceReuseWindow  bool
	DiffMode          bool
	AddMode           bool
	GotoLineMode      bool
	NoRecentEntry     bool
	WaitMarkerFileURI *uri.URI
	Args              map[string]any
}

// WireOpenSettings is the wire form of OpenSettings.
type WireOpenSettings struct {
	ForceNewWindow    bool            `json:"forceNewWindow,omitempty"`
	ForceReuseWindow  bool            `json:"forceReuseWindow,omitempty"`
	DiffMode          bool            `json:"diffMode,omitempty"`
	AddMode           bool            `json:"addMode,omitempty"`
	GotoLineMode      bool            `json:"gotoLineMode,omitempty"`
	NoRecentEntry     bool            `json:"noRecentEntry,omitempty"`
	WaitMarkerFileURI *uri.Components `json:"waitMarkerFileURI,omitempty"`
	Args              map[string]any  `json:"args,omitempty"`
}

// ReviveOpenSettings revives the wait marker when present.
func ReviveOpenSettings(w WireOpenSettings) (OpenSettings, error) {
	marker, err := uri.Revive(w.WaitMarkerFileURI)
	if err != nil {
		return OpenSettings{}, fmt.Errorf("waitMarkerFileURI: %w", err)
	}
	return OpenSettings{
		ForceNewWindow:    w.ForceNewWindow,
		ForceReuseWindow:  w.ForceReuseWindow,
		DiffMode:          w.DiffMode,
		AddMode:           w.AddMode,
		GotoLineMode:      w.GotoLineMode,
		NoRecentEntry:     w.NoRecentEntry,
		WaitMarkerFileURI: marker,
		Args:              w.Args,
	}, nil
}

// Wire returns the wire form of s.
func (s OpenSettings) Wire() WireOpenSettings {
	return WireOpenSettings{
		ForceNewWindow:    s.ForceNewWindow,
		ForceReuseWindow:  s.ForceReuseWindow,
		DiffMode:          s.DiffMode,
		AddMode:           s.AddMode,
		GotoLineMode:      s.GotoLineMode,
		NoRecentEntry:     s.NoRecentEntry,
		WaitMarkerFileURI: s.WaitMarkerFileURI.Wire(),
		Args:              s.Args,
	}
}

// OpenWindowArgs are the revived arguments of openWindow.
type OpenWindowArgs struct {
	WindowID   int
	URIsToOpen []URIToOpen
	Options    OpenSettings
}

// Wire returns the wire form of a.
func (a OpenWindowArgs) Wire() OpenWindowRequest {
	req := OpenWindowRequest{WindowID: a.WindowID, Options: a.Options.Wire()}
	if a.URIsToOpen != nil {
		req.URIsToOpen = make([]WireURIToOpen, len(a.URIsToOpen))
		for i, u := range a.URIsToOpen {
			req.URIsToOpen[i] = u.Wire()
		}
	}
	return req
}

// OpenWindowRequest is the wire argument of openWindow. It travels as the
// positional array [windowId, urisToOpen, options].
type OpenWindowRequest struct {
	_          struct{} `cbor:",toarray"`
	WindowID   int
	URIsToOpen []WireURIToOpen
	Options    WireOpenSettings
}

func (r OpenWindowRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{r.WindowID, r.URIsToOpen, r.Options})
}

// UnmarshalJSON accepts the options element as optional.
func (r *OpenWindowRequest) UnmarshalJSON(data []byte) error {
	var req OpenWindowRequest
	if err := unmarshalPositional(data, CommandOpenWindow, 2, &req.WindowID, &req.URIsToOpen, &req.Options); err != nil {
		return err
	}
	*r = req
	return nil
}

// ReviveOpenWindow revives every locator of r. Nothing is returned when any
// of them is malformed.
func ReviveOpenWindow(r OpenWindowRequest) (OpenWindowArgs, error) {
	urisToOpen, err := ReviveURIsToOpen(r.URIsToOpen)
	if err != nil {
		return OpenWindowArgs{}, err
	}
	options, err := ReviveOpenSettings(r.Options)
	if err != nil {
		return OpenWindowArgs{}, err
	}
	return OpenWindowArgs{WindowID: r.WindowID, URIsToOpen: urisToOpen, Options: options}, nil
}

// ExtensionDevelopmentHostArgs are the arguments of
// openExtensionDevelopmentHostWindow: the parsed command line of the host
// and its environment. It travels as the positional array [args, env].
type ExtensionDevelopmentHostArgs struct {
	_    struct{} `cbor:",toarray"`
	Args map[string]any
	Env  map[string]string
}

func (a ExtensionDevelopmentHostArgs) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{a.Args, a.Env})
}

func (a *ExtensionDevelopmentHostArgs) UnmarshalJSON(data []byte) error {
	var out ExtensionDevelopmentHostArgs
	if err := unmarshalPositional(data, CommandOpenExtensionDevelopmentHostWindow, 1, &out.Args, &out.Env); err != nil {
		return err
	}
	*a = out
	return nil
}

// unmarshalPositional decodes a JSON array into fields by index. At least
// required elements must be present.
func unmarshalPositional(data []byte, command string, required int, fields ...any) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("windows: %s arguments: %w", command, err)
	}
	if len(parts) < required || len(parts) > len(fields) {
		return fmt.Errorf("windows: %s takes %d to %d arguments, got %d", command, required, len(fields), len(parts))
	}
	for i, part := range parts {
		if err := json.Unmarshal(part, fields[i]); err != nil {
			return fmt.Errorf("windows: %s argument %d: %w", command, i, err)
		}
	}
	return nil
}
