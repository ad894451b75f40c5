package model

import "time"

// SyncPhase is one state of the external-account synchronization wizard.
type SyncPhase string

const (
	PhaseChecking   SyncPhase = "checking"
	PhaseValidating SyncPhase = "validating"
	PhaseSyncing    SyncPhase = "syncing"
	PhaseComplete   SyncPhase = "complete"
	PhaseFailed     SyncPhase = "failed"
)

// Terminal reports whether the phase ends the current wizard invocation.
func (p SyncPhase) Terminal() bool {
	return p == PhaseComplete
}

// CanTransition reports whether moving from one phase to another is legal.
// Forward progress is monotonic; the only backward edges run through
// PhaseFailed, whose retry target depends on where the failure occurred.
func CanTransition(from, to SyncPhase) bool {
	switch from {
	case PhaseChecking:
		return to == PhaseValidating || to == PhaseFailed || to == PhaseChecking
	case PhaseValidating:
		return to == PhaseSyncing || to == PhaseFailed || to == PhaseValidating
	case PhaseSyncing:
		return to == PhaseComplete || to == PhaseFailed
	case PhaseFailed:
		return to == PhaseChecking || to == PhaseValidating
	case PhaseComplete:
		return to == PhaseChecking
	}
	return false
}

// RetryPhase returns the phase a failure in the given phase retries into.
// A failure while syncing does not force re-checking credentials.
func RetryPhase(failedDuring SyncPhase) SyncPhase {
	switch failedDuring {
	case PhaseChecking:
		return PhaseChecking
	case PhaseSyncing:
		return PhaseValidating
	default:
		return PhaseValidating
	}
}

// ValidationResult is the remote credential-validation response.
type ValidationResult struct {
	Valid    bool   `json:"valid"`
	Username string `json:"username"`
	Error    string `json:"error,omitempty"`
}

// CategoryStats counts sync outcomes within one item category.
type CategoryStats struct {
	Queued  int `json:"queued"`
	Skipped int `json:"skipped"`
}

// SyncResult is the remote full-synchronization response for one run.
// Warnings carry per-item failures that never abort the run.
type SyncResult struct {
	SessionID  string                   `json:"session_id"`
	Parsed     int                      `json:"parsed"`
	Queued     int                      `json:"queued"`
	Skipped    int                      `json:"skipped"`
	Categories map[string]CategoryStats `json:"categories"`
	Warnings   []string                 `json:"warnings"`
}

// SyncSession is one paused or in-progress server-side sync session, as
// returned by the session-listing endpoint.
type SyncSession struct {
	SessionID string    `json:"session_id"`
	State     string    `json:"state"`
	Pending   int       `json:"pending"`
	Completed int       `json:"completed"`
	Failed    int       `json:"failed"`
	CreatedAt time.Time `json:"created_at"`
}

// CSVReport is the remote response to a CSV parse or CSV sync request.
type CSVReport struct {
	Rows     int      `json:"rows"`
	Parsed   int      `json:"parsed"`
	Queued   int      `json:"queued"`
	Warnings []string `json:"warnings"`
}
