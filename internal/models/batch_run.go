package models

import "time"

// RunStatus is the lifecycle status of a batch extraction run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusFailed    RunStatus = "failed"
)

// BatchRun is the persisted summary of one pipeline run
type BatchRun struct {
	ID          string       `json:"id"`
	Status      RunStatus    `json:"status"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at,omitempty"`
	AuthMode    bool         `json:"auth_mode"`
	Outcome     BatchOutcome `json:"outcome"`
	Error       string       `json:"error,omitempty"`
	RecordsJSON []byte       `json:"-"` // augmented records, JSON encoded
}
