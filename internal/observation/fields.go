// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package observation

import (
	"strconv"
	"time"
)

// Typed accessors for the pipeline's insert builders. JSON decoding
// turns every number into float64; probes occasionally send numerics
// as strings, so string forms are parsed too.

// Float returns a field as float64. Missing or unconvertible fields
// yield zero.
func (o Observation) Float(key string) float64 {
	switch v := o[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Int returns a field as int64. Missing or unconvertible fields yield
// zero; float values are truncated.
func (o Observation) Int(key string) int64 {
	switch v := o[key].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// Bool returns a field as bool. Missing or unconvertible fields yield
// false.
func (o Observation) Bool(key string) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false
		}
		return b
	case float64:
		return v != 0
	default:
		return false
	}
}

// Time parses a field as a timestamp. The second return is false when
// the field is absent or unparsable.
func (o Observation) Time(key string) (time.Time, bool) {
	s, ok := o.Field(key)
	if !ok {
		return time.Time{}, false
	}
	return ParseTimestamp(s)
}

// ObservedAt resolves the observation's own timestamp: the first
// parsable candidate timestamp field, or the current UTC time when
// none is present. The second return is false on fallback.
func (o Observation) ObservedAt() (time.Time, bool) {
	raw, ok := o.TimestampValue()
	if !ok {
		return time.Now().UTC(), false
	}
	ts, ok := ParseTimestamp(raw)
	if !ok {
		return time.Now().UTC(), false
	}
	return ts, true
}
