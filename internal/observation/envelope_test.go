// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package observation

import (
	"errors"
	"testing"
)

func TestDecodeEnvelope(t *testing.T) {
	codec := NewCodec()

	obs, err := codec.Decode([]byte(`{"event_type":"slow_query","db_id":"db1","execution_time_ms":131.5}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if obs.EventType() != "slow_query" {
		t.Errorf("event type = %q", obs.EventType())
	}
	if obs.DBID() != "db1" {
		t.Errorf("db_id = %q", obs.DBID())
	}
	if v, ok := obs.Field("execution_time_ms"); !ok || v != "131.5" {
		t.Errorf("execution_time_ms = (%q, %v)", v, ok)
	}
}

func TestDecodeMissingEventType(t *testing.T) {
	codec := NewCodec()

	obs, err := codec.Decode([]byte(`{"db_id":"db1"}`))
	if err != nil {
		t.Fatalf("missing event_type must not fail decode: %v", err)
	}
	if obs.EventType() != EventTypeUnknown {
		t.Errorf("event type = %q, want %q", obs.EventType(), EventTypeUnknown)
	}
}

func TestDecodeMalformed(t *testing.T) {
	codec := NewCodec()

	tests := []struct {
		name    string
		payload string
	}{
		{"truncated", `{"event_type": "slow`},
		{"not json", `hello`},
		{"array", `[1,2,3]`},
		{"null", `null`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode([]byte(tt.payload))
			if !errors.Is(err, ErrMalformedPayload) {
				t.Errorf("Decode(%q) err = %v, want ErrMalformedPayload", tt.payload, err)
			}
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	codec := NewCodec()
	in := Observation{"event_type": "table_stats", "db_id": "db1", "total_rows": float64(100)}

	payload, err := codec.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := codec.Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.EventType() != "table_stats" || out.DBID() != "db1" {
		t.Errorf("round trip lost fields: %#v", out)
	}
}
