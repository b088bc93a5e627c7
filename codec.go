// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/luxfi/ipc/internal/codec"
)

// Codec names accepted by CodecByName
const (
	CodecJSON   = "json"
	CodecCBOR   = "cbor"
	CodecBinary = "binary"
)

// JSONCodec is a JSON-based codec
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// defaultCodec is used when no codec is specified
var defaultCodec Codec = JSONCodec{}

// CBORCodec encodes with deterministic CBOR. Types carrying locators
// implement cbor.Marshaler and travel in their wire form.
type CBORCodec struct{}

func (CBORCodec) Encode(v any) ([]byte, error) {
	return codec.Marshal(v)
}

func (CBORCodec) Decode(data []byte, v any) error {
	return codec.Unmarshal(data, v)
}

// BinaryCodec passes bytes through unchanged (for pre-encoded data)
type BinaryCodec struct{}

func (BinaryCodec) Encode(v any) ([]byte, error) {
	if b, ok := v.([]byte); ok {
		return b, nil
	}
	if b, ok := v.(*[]byte); ok {
		return *b, nil
	}
	return json.Marshal(v)
}

func (BinaryCodec) Decode(data []byte, v any) error {
	if b, ok := v.(*[]byte); ok {
		*b = data
		return nil
	}
	return json.Unmarshal(data, v)
}

// Binary is a codec that passes bytes through unchanged
var Binary Codec = BinaryCodec{}

// CodecByName returns the codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CodecJSON:
		return JSONCodec{}, nil
	case CodecCBOR:
		return CBORCodec{}, nil
	case CodecBinary:
		return BinaryCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec: %s", name)
	}
}
