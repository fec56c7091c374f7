// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

// Package observation defines the monitoring sample type exchanged between
// probes, the event router, and the ingestion pipeline, together with its
// wire envelope codec and the fixed pub/sub channel names.
package observation

import (
	"fmt"
	"time"
)

// Field names with meaning to the ingestion core. Probes may attach any
// additional fields; the core carries them through untouched.
const (
	FieldEventType  = "event_type"
	FieldDBID       = "db_id"
	FieldTableName  = "table_name"
	FieldQueryHash  = "query_hash"
	FieldIndexName  = "index_name"
	FieldColumnName = "column_name"
)

// EventTypeUnknown is substituted when an envelope carries no event_type.
const EventTypeUnknown = "unknown"

// timestampFields are the candidate timestamp keys, probed in order.
// The first present, non-empty one wins.
var timestampFields = []string{"timestamp", "executed_at", "recorded_at", "measured_at"}

// Observation is one monitoring sample: a mapping from field name to value.
// Observations are transient; they are decoded from an envelope, consumed
// once by the pipeline, and not retained after the admission decision.
type Observation map[string]any

// Field returns the string form of a field value and whether the field is
// present and non-empty. Non-string values are formatted the way probes
// would have serialized them (numbers without decoration).
func (o Observation) Field(key string) (string, bool) {
	v, ok := o[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprintf("%v", v)
	}
	if s == "" {
		return "", false
	}
	return s, true
}

// EventType returns the observation's event type, or EventTypeUnknown when
// the field is absent. Used by the router for logging and by the pipeline
// for hypertable routing.
func (o Observation) EventType() string {
	if s, ok := o.Field(FieldEventType); ok {
		return s
	}
	return EventTypeUnknown
}

// DBID returns the monitored database identifier, empty when absent.
func (o Observation) DBID() string {
	s, _ := o.Field(FieldDBID)
	return s
}

// TimestampValue returns the raw string form of the first timestamp
// candidate field present on the observation. The raw form is what
// exact-match fingerprinting concatenates; bucketed fingerprinting parses
// it separately.
func (o Observation) TimestampValue() (string, bool) {
	for _, key := range timestampFields {
		if s, ok := o.Field(key); ok {
			return s, true
		}
	}
	return "", false
}

// timestampLayouts are accepted on parse, tried in order. Naive layouts
// (no offset) are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a raw timestamp string into UTC.
// Returns false when no layout matches; callers decide the fallback.
func ParseTimestamp(raw string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Clone returns a shallow copy. Handlers that mutate an observation must
// clone first; the router delivers the same map to every subscriber.
func (o Observation) Clone() Observation {
	dup := make(Observation, len(o))
	for k, v := range o {
		dup[k] = v
	}
	return dup
}
