// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Trigger identifies what started a pipeline run.
type Trigger string

// Run triggers.
const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
	TriggerCLI       Trigger = "cli"
)

// Run is one entry of the local run history.
type Run struct {
	ID         string       `json:"id"`
	Trigger    Trigger      `json:"trigger"`
	TargetDate string       `json:"date"`
	State      string       `json:"state"`
	Action     UpsertResult `json:"action,omitempty"`
	Error      string       `json:"error,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}
