// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package workspace defines the structured workspace identifier and its wire
// form.
package workspace

import (
	"errors"
	"fmt"

	"github.com/luxfi/ipc/uri"
)

// ErrMissingConfigPath is returned when a serialized identifier carries no
// configuration path.
var ErrMissingConfigPath = errors.New("workspace: identifier has no configPath")

// Identifier names a multi-root workspace by id and the location of its
// configuration file.
type Identifier struct {
	ID         string   `json:"id"`
	ConfigPath *uri.URI `json:"configPath"`
}

// Serialized is the wire form of an Identifier.
type Serialized struct {
	ID         string          `json:"id"`
	ConfigPath *uri.Components `json:"configPath"`
}

// ReviveIdentifier reconstructs an Identifier from its wire form. A nil
// input yields nil.
func ReviveIdentifier(s *Serialized) (*Identifier, error) {
	if s == nil {
		return nil, nil
	}
	if s.ConfigPath == nil {
		return nil, fmt.Errorf("%w (id %q)", ErrMissingConfigPath, s.ID)
	}
	configPath, err := uri.Revive(s.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("workspace %q: %w", s.ID, err)
	}
	return &Identifier{ID: s.ID, ConfigPath: configPath}, nil
}

// Wire returns the wire form of id, or nil when id is nil.
func (id *Identifier) Wire() *Serialized {
	if id == nil {
		return nil
	}
	return &Serialized{ID: id.ID, ConfigPath: id.ConfigPath.Wire()}
}

// Equal reports whether id and other name the same workspace.
func (id *Identifier) Equal(other *Identifier) bool {
	if id == nil || other == nil {
		return id == other
	}
	return id.ID == other.ID && id.ConfigPath.Equal(other.ConfigPath)
}
