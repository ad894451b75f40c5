package model

import "time"

// SyncRunStatus is the terminal outcome of a recorded sync run.
type SyncRunStatus string

const (
	RunStatusCompleted SyncRunStatus = "completed"
	RunStatusFailed    SyncRunStatus = "failed"
)

// SyncRun is the locally recorded history entry for one wizard run.
type SyncRun struct {
	ID          int64
	SessionID   string
	Status      SyncRunStatus
	Parsed      int
	Queued      int
	Skipped     int
	Warnings    []string
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
}
