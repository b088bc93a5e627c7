// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

// Payload is an encoded value together with the codec that produced it.
// Call arguments reach a ServerChannel as a Payload and event values reach
// a Subscription as one, so each side decodes into its own types.
type Payload struct {
	Data  []byte
	codec Codec
}

// NewPayload encodes v with c. A nil codec selects JSON.
func NewPayload(c Codec, v any) (Payload, error) {
	if c == nil {
		c = defaultCodec
	}
	if v == nil {
		return Payload{codec: c}, nil
	}
	data, err := c.Encode(v)
	if err != nil {
		return Payload{}, err
	}
	return Payload{Data: data, codec: c}, nil
}

// RawPayload wraps data that was already encoded with c.
func RawPayload(c Codec, data []byte) Payload {
	return Payload{Data: data, codec: c}
}

// IsEmpty reports whether the payload carries no value.
func (p Payload) IsEmpty() bool {
	return len(p.Data) == 0
}

// Decode decodes the payload into v. Decoding an empty payload leaves v
// untouched.
func (p Payload) Decode(v any) error {
	if p.IsEmpty() {
		return nil
	}
	c := p.codec
	if c == nil {
		c = defaultCodec
	}
	return c.Decode(p.Data, v)
}
