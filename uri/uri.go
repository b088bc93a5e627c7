// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package uri implements the locator type that crosses the channel boundary.
//
// A URI travels as plain Components (scheme, authority, path, query,
// fragment) and is revived into an immutable *URI on the receiving side:
//
//	u, err := uri.Revive(&components)
//
// Revive treats a nil input as absent and returns nil, so optional locator
// fields stay absent after revival. Reviving the Components of an existing
// URI yields an equal URI.
package uri

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/luxfi/ipc/internal/codec"
)

// FileScheme is the scheme of local file system locators.
const FileScheme = "file"

var schemePattern = regexp.MustCompile(`^\w[\w\d+.-]*$`)

// Components is the wire form of a URI.
type Components struct {
	Scheme    string `json:"scheme"`
	Authority string `json:"authority,omitempty"`
	Path      string `json:"path,omitempty"`
	Query     string `json:"query,omitempty"`
	Fragment  string `json:"fragment,omitempty"`
}

// Error reports a malformed locator.
type Error struct {
	Components Components
	Reason     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("uri: %s: {scheme: %q, authority: %q, path: %q, query: %q, fragment: %q}",
		e.Reason,
		e.Components.Scheme,
		e.Components.Authority,
		e.Components.Path,
		e.Components.Query,
		e.Components.Fragment,
	)
}

// URI is an immutable, revived locator.
type URI struct {
	scheme    string
	authority string
	path      string
	query     string
	fragment  string
}

// From validates c and returns the URI it describes.
func From(c Components) (*URI, error) {
	if err := validate(c); err != nil {
		return nil, err
	}
	return &URI{
		scheme:    c.Scheme,
		authority: c.Authority,
		path:      c.Path,
		query:     c.Query,
		fragment:  c.Fragment,
	}, nil
}

// Parse parses a URI string such as "file:///tmp/a.txt" or
// "vscode-remote://ssh+host/home/user".
func Parse(s string) (*URI, error) {
	parsed, err := url.Parse(s)
	if err != nil {
		return nil, &Error{Components: Components{Path: s}, Reason: err.Error()}
	}
	c := Components{
		Scheme:    parsed.Scheme,
		Authority: parsed.Host,
		Path:      parsed.Path,
		Query:     parsed.RawQuery,
		Fragment:  parsed.Fragment,
	}
	if parsed.User != nil {
		c.Authority = parsed.User.String() + "@" + parsed.Host
	}
	if parsed.Opaque != "" {
		c.Path = parsed.Opaque
	}
	return From(c)
}

// MustParse is like Parse but panics on malformed input.
func MustParse(s string) *URI {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// File returns a file URI for a local path.
func File(path string) *URI {
	path = filepath.ToSlash(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &URI{scheme: FileScheme, path: path}
}

func validate(c Components) error {
	if c.Scheme == "" {
		return &Error{Components: c, Reason: "scheme is missing"}
	}
	if !schemePattern.MatchString(c.Scheme) {
		return &Error{Components: c, Reason: "scheme contains illegal characters"}
	}
	if c.Path == "" {
		return nil
	}
	if c.Authority != "" {
		if !strings.HasPrefix(c.Path, "/") {
			return &Error{Components: c, Reason: "path must be empty or begin with a slash when an authority is present"}
		}
	} else if strings.HasPrefix(c.Path, "//") {
		return &Error{Components: c, Reason: "path cannot begin with two slashes without an authority"}
	}
	return nil
}

// Scheme returns the scheme of u, for example "file".
func (u *URI) Scheme() string { return u.scheme }

// Authority returns the authority of u, empty for most file URIs.
func (u *URI) Authority() string { return u.authority }

// Path returns the decoded path of u.
func (u *URI) Path() string { return u.path }

// Query returns the query of u without the leading '?'.
func (u *URI) Query() string { return u.query }

// Fragment returns the fragment of u without the leading '#'.
func (u *URI) Fragment() string { return u.fragment }

// FSPath returns the platform path of a file URI.
func (u *URI) FSPath() string {
	if u.authority != "" && u.scheme == FileScheme {
		return filepath.FromSlash("//" + u.authority + u.path)
	}
	return filepath.FromSlash(u.path)
}

// Components returns the wire form of u.
func (u *URI) Components() Components {
	if u == nil {
		return Components{}
	}
	return Components{
		Scheme:    u.scheme,
		Authority: u.authority,
		Path:      u.path,
		Query:     u.query,
		Fragment:  u.fragment,
	}
}

// Wire returns the wire form of u, or nil when u is nil.
func (u *URI) Wire() *Components {
	if u == nil {
		return nil
	}
	c := u.Components()
	return &c
}

// Revive returns u. Reviving a URI that is already revived is a no-op.
func (u *URI) Revive() *URI {
	return u
}

// Equal reports whether u and other denote the same locator. Two nil URIs
// are equal.
func (u *URI) Equal(other *URI) bool {
	if u == nil || other == nil {
		return u == other
	}
	return *u == *other
}

// With returns a copy of u with the non-empty fields of change applied.
func (u *URI) With(change Components) (*URI, error) {
	c := u.Components()
	if change.Scheme != "" {
		c.Scheme = change.Scheme
	}
	if change.Authority != "" {
		c.Authority = change.Authority
	}
	if change.Path != "" {
		c.Path = change.Path
	}
	if change.Query != "" {
		c.Query = change.Query
	}
	if change.Fragment != "" {
		c.Fragment = change.Fragment
	}
	return From(c)
}

// String returns the encoded form of u, or "" for a nil URI.
func (u *URI) String() string {
	if u == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(u.scheme)
	b.WriteByte(':')
	if u.authority != "" || u.scheme == FileScheme {
		b.WriteString("//")
		b.WriteString(u.authority)
	}
	b.WriteString((&url.URL{Path: u.path}).EscapedPath())
	if u.query != "" {
		b.WriteByte('?')
		b.WriteString(u.query)
	}
	if u.fragment != "" {
		b.WriteByte('#')
		b.WriteString((&url.URL{Fragment: u.fragment}).EscapedFragment())
	}
	return b.String()
}

// MarshalJSON encodes u as its Components.
func (u *URI) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Components())
}

// UnmarshalJSON revives u from Components or from a URI string.
func (u *URI) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var revived *URI
	var err error
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		revived, err = Parse(s)
	} else {
		var c Components
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		revived, err = From(c)
	}
	if err != nil {
		return err
	}
	*u = *revived
	return nil
}

// MarshalCBOR encodes u as its Components.
func (u *URI) MarshalCBOR() ([]byte, error) {
	return codec.Marshal(u.Components())
}

// UnmarshalCBOR revives u from Components or from a URI string.
func (u *URI) UnmarshalCBOR(data []byte) error {
	var revived *URI
	var err error
	if codec.IsText(data) {
		var s string
		if err := codec.Unmarshal(data, &s); err != nil {
			return err
		}
		revived, err = Parse(s)
	} else {
		var c Components
		if err := codec.Unmarshal(data, &c); err != nil {
			return err
		}
		revived, err = From(c)
	}
	if err != nil {
		return err
	}
	*u = *revived
	return nil
}

// IsError reports whether err is a malformed locator error.
func IsError(err error) bool {
	var uriErr *Error
	return errors.As(err, &uriErr)
}
