// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

//go:build !spool

package spool

import (
	"context"

	"github.com/rs/zerolog"
)

// Replayer re-runs one journaled observation's insert. Satisfied by
// the ingestion pipeline.
type Replayer interface {
	Replay(ctx context.Context, entry Entry) error
}

// BadgerSpool is unavailable without the spool build tag.
type BadgerSpool struct{}

// Open fails when dbvigil is built without the spool tag.
func Open(_ Config, _ zerolog.Logger) (*BadgerSpool, error) {
	return nil, ErrSpoolDisabled
}

func (s *BadgerSpool) Append(context.Context, Entry) error   { return ErrSpoolDisabled }
func (s *BadgerSpool) Confirm(context.Context, string) error { return ErrSpoolDisabled }
func (s *BadgerSpool) Pending(context.Context) ([]Entry, error) {
	return nil, ErrSpoolDisabled
}
func (s *BadgerSpool) Stats() Stats { return Stats{} }
func (s *BadgerSpool) Close() error { return nil }

// RetryLoop is unavailable without the spool build tag.
type RetryLoop struct{}

// NewRetryLoop returns an inert loop.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRetryLoop(_ *BadgerSpool, _ Replayer, _ zerolog.Logger) *RetryLoop {
	return &RetryLoop{}
}

// Run fails immediately so a misconfigured supervisor surfaces the
// missing build tag instead of spinning.
func (r *RetryLoop) Run(context.Context) error { return ErrSpoolDisabled }
