// dbvigil - Database Monitoring Agent Ingestion Core
// Copyright 2026 dbvigil contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbvigil/dbvigil

package observation

// Channel names used by convention between the agents. The router accepts
// arbitrary channel names; these are the ones the stock agents speak.
const (
	// ChannelMonitoring carries raw probe observations.
	ChannelMonitoring = "monitoring_events"
	// ChannelPerformance carries performance findings (slow queries, regressions).
	ChannelPerformance = "performance_events"
	// ChannelSemantic carries discovered schema relationships.
	ChannelSemantic = "semantic_events"
	// ChannelApproval carries action proposals awaiting operator approval.
	ChannelApproval = "approval_events"
)

// Channels returns the conventional channel set in a stable order.
func Channels() []string {
	return []string{
		ChannelMonitoring,
		ChannelPerformance,
		ChannelSemantic,
		ChannelApproval,
	}
}
