// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package observation

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// ErrMalformedPayload marks envelopes that cannot be decoded.
// The router drops these without retry; a malformed payload cannot become
// valid by retrying.
var ErrMalformedPayload = errors.New("malformed payload")

// Codec encodes and decodes the wire envelope: a UTF-8 JSON object whose
// only conventional field is event_type. All other fields pass through as
// observation fields.
type Codec struct{}

// NewCodec creates a new envelope codec.
func NewCodec() *Codec {
	return &Codec{}
}

// Decode parses a wire payload into an Observation.
// Failures wrap ErrMalformedPayload.
func (c *Codec) Decode(payload []byte) (Observation, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}

	var obs Observation
	if err := json.Unmarshal(payload, &obs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if obs == nil {
		return nil, fmt.Errorf("%w: null payload", ErrMalformedPayload)
	}

	return obs, nil
}

// Encode serializes an Observation to the wire envelope.
func (c *Codec) Encode(obs Observation) ([]byte, error) {
	data, err := json.Marshal(obs)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}
