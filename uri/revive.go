// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package uri

import "fmt"

// Revive reconstructs a URI from its wire form. A nil input yields a nil
// URI and no error.
func Revive(c *Components) (*URI, error) {
	if c == nil {
		return nil, nil
	}
	return From(*c)
}

// ReviveAll revives every element of cs. It fails on the first malformed
// element and returns no partial result.
func ReviveAll(cs []Components) ([]*URI, error) {
	if cs == nil {
		return nil, nil
	}
	out := make([]*URI, len(cs))
	for i := range cs {
		u, err := From(cs[i])
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = u
	}
	return out, nil
}

// WireAll returns the wire form of every non-nil URI in us.
func WireAll(us []*URI) []Components {
	if us == nil {
		return nil
	}
	out := make([]Components, 0, len(us))
	for _, u := range us {
		if u != nil {
			out = append(out, u.Components())
		}
	}
	return out
}
