// Package application contains use-case orchestration services.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"figpanel/internal/domain/model"
	"figpanel/internal/domain/port/driven"
)

// CacheInvalidator is notified when a completed run queued items, so
// dependent views can drop and refetch their local mirror.
type CacheInvalidator interface {
	Invalidate(queued int)
}

// WizardState is an immutable snapshot of the wizard for the driving adapter.
type WizardState struct {
	Phase           model.SyncPhase   `json:"phase"`
	NeedsCredential bool              `json:"needs_credential"`
	Identity        string            `json:"identity,omitempty"`
	Failure         string            `json:"failure,omitempty"`
	RetryPhase      model.SyncPhase   `json:"retry_phase,omitempty"`
	SessionID       string            `json:"session_id,omitempty"`
	Stats           *model.QueueStats `json:"stats,omitempty"`
	Result          *model.SyncResult `json:"result,omitempty"`
}

// Wizard drives the external-account synchronization workflow through its
// four phases: checking credentials, validating them against the remote,
// running the sync while polling queue statistics, and completing.
//
// All state mutation happens under one mutex. The statistics poller and the
// outstanding sync call are the only concurrent operations; both carry the
// generation current when they started and their late responses are
// discarded once the generation moves on.
type Wizard struct {
	creds       driven.CredentialStore
	client      driven.RemoteClient
	runs        driven.SyncRunStore
	invalidator CacheInvalidator
	cookieNames []string
	pollEvery   time.Duration

	mu         sync.Mutex
	phase      model.SyncPhase
	generation uint64
	needsCred  bool
	identity   string
	failure    string
	retryPhase model.SyncPhase
	parsed     *model.ParsedCredential
	sessionID  string
	startedAt  time.Time
	stats      *model.QueueStats
	result     *model.SyncResult
	pollCancel context.CancelFunc
}

// NewWizard creates a Wizard with all required dependencies. cookieNames are
// the cookie names a pasted credential must carry; pollEvery is the queue
// statistics interval while syncing.
func NewWizard(
	creds driven.CredentialStore,
	client driven.RemoteClient,
	runs driven.SyncRunStore,
	invalidator CacheInvalidator,
	cookieNames []string,
	pollEvery time.Duration,
) *Wizard {
	return &Wizard{
		creds:       creds,
		client:      client,
		runs:        runs,
		invalidator: invalidator,
		cookieNames: cookieNames,
		pollEvery:   pollEvery,
		phase:       model.PhaseChecking,
	}
}

// Open resets the wizard to the checking phase and runs the credential
// check. A parseable credential auto-advances into validation; a missing or
// unparseable one leaves the wizard in checking, asking for (re-)entry.
func (w *Wizard) Open(ctx context.Context) (WizardState, error) {
	w.mu.Lock()
	w.resetLocked()
	w.mu.Unlock()

	return w.runCheck(ctx)
}

// Retry re-runs the phase a failure pointed back to. It is only legal from
// the failed phase.
func (w *Wizard) Retry(ctx context.Context) (WizardState, error) {
	w.mu.Lock()
	if w.phase != model.PhaseFailed {
		state := w.snapshotLocked()
		w.mu.Unlock()
		return state, fmt.Errorf("retry is only legal from %q, wizard is %q", model.PhaseFailed, state.Phase)
	}
	target := w.retryPhase
	w.failure = ""
	w.mu.Unlock()

	switch target {
	case model.PhaseChecking:
		w.mu.Lock()
		w.resetLocked()
		w.mu.Unlock()
		return w.runCheck(ctx)
	default:
		// A syncing or validating failure retries validation with the
		// already-parsed credential, without re-checking the store.
		w.mu.Lock()
		if w.parsed == nil {
			w.resetLocked()
			w.mu.Unlock()
			return w.runCheck(ctx)
		}
		w.setPhaseLocked(model.PhaseFailed, model.PhaseValidating)
		cred := *w.parsed
		gen := w.generation
		w.mu.Unlock()
		return w.runValidation(ctx, cred, gen)
	}
}

// Proceed advances a validated wizard into the syncing phase: it generates
// the run's session id, fires the sync call, and starts the statistics
// poller. It returns immediately; progress arrives via State.
func (w *Wizard) Proceed(ctx context.Context) (WizardState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.phase != model.PhaseValidating || w.identity == "" {
		return w.snapshotLocked(), fmt.Errorf("proceed requires a validated credential, wizard is %q", w.phase)
	}
	if w.parsed == nil {
		return w.snapshotLocked(), fmt.Errorf("proceed without a parsed credential")
	}

	w.setPhaseLocked(w.phase, model.PhaseSyncing)
	w.sessionID = NewSessionID()
	w.startedAt = time.Now().UTC()
	w.stats = nil
	gen := w.generation
	cred := *w.parsed
	sessionID := w.sessionID

	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.pollCancel = cancel

	go w.runSync(cred, sessionID, gen)
	go w.pollStats(pollCtx, gen)

	slog.Info("sync started", "session_id", sessionID)
	return w.snapshotLocked(), nil
}

// Close stops the statistics poller and resets the wizard so the next Open
// starts from checking. The in-flight remote sync, if any, is left to finish
// server-side; its eventual response is discarded.
func (w *Wizard) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
}

// State returns the current snapshot.
func (w *Wizard) State() WizardState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// runCheck performs the checking phase: retrieve, parse, and on success
// auto-advance into validation.
func (w *Wizard) runCheck(ctx context.Context) (WizardState, error) {
	raw, err := w.creds.Retrieve(ctx)
	if err != nil {
		w.mu.Lock()
		w.failLocked(model.PhaseChecking, fmt.Sprintf("reading stored credential: %v", err))
		state := w.snapshotLocked()
		w.mu.Unlock()
		return state, nil
	}

	if raw == "" {
		w.mu.Lock()
		w.needsCred = true
		state := w.snapshotLocked()
		w.mu.Unlock()
		return state, nil
	}

	cred, err := model.ParseCredential(raw, w.cookieNames)
	if err != nil {
		// An unparseable blob is treated exactly like a missing one.
		slog.Warn("stored credential failed to parse", "error", err)
		w.mu.Lock()
		w.needsCred = true
		state := w.snapshotLocked()
		w.mu.Unlock()
		return state, nil
	}

	w.mu.Lock()
	w.needsCred = false
	w.parsed = &cred
	w.setPhaseLocked(model.PhaseChecking, model.PhaseValidating)
	gen := w.generation
	w.mu.Unlock()

	return w.runValidation(ctx, cred, gen)
}

// runValidation performs the validating phase against the remote. The
// response is discarded when the wizard moved past generation gen while the
// call was in flight.
func (w *Wizard) runValidation(ctx context.Context, cred model.ParsedCredential, gen uint64) (WizardState, error) {
	result, err := w.client.ValidateCredential(ctx, cred)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.generation != gen {
		return w.snapshotLocked(), nil
	}

	if err != nil {
		w.failLocked(model.PhaseValidating, err.Error())
		return w.snapshotLocked(), nil
	}
	if !result.Valid {
		// Surface the backend's message verbatim.
		msg := result.Error
		if msg == "" {
			msg = "credential rejected"
		}
		w.failLocked(model.PhaseValidating, msg)
		return w.snapshotLocked(), nil
	}

	w.identity = result.Username
	return w.snapshotLocked(), nil
}

// runSync carries the syncing phase's one outstanding remote call. The
// wizard never cancels it; once started, the run is the server's to finish.
func (w *Wizard) runSync(cred model.ParsedCredential, sessionID string, gen uint64) {
	result, err := w.client.StartSync(context.Background(), cred, sessionID)

	w.mu.Lock()
	if w.generation != gen {
		// The wizard was closed or moved on; this response belongs to a
		// superseded invocation.
		w.mu.Unlock()
		return
	}

	w.stopPollLocked()

	if err != nil {
		w.failLocked(model.PhaseSyncing, err.Error())
		run := model.SyncRun{
			SessionID:   sessionID,
			Status:      model.RunStatusFailed,
			Error:       err.Error(),
			StartedAt:   w.startedAt,
			CompletedAt: time.Now().UTC(),
		}
		w.mu.Unlock()
		w.recordRun(run)
		slog.Error("sync failed", "session_id", sessionID, "error", err)
		return
	}

	w.result = result
	w.stats = nil
	w.setPhaseLocked(model.PhaseSyncing, model.PhaseComplete)
	run := model.SyncRun{
		SessionID:   sessionID,
		Status:      model.RunStatusCompleted,
		Parsed:      result.Parsed,
		Queued:      result.Queued,
		Skipped:     result.Skipped,
		Warnings:    result.Warnings,
		StartedAt:   w.startedAt,
		CompletedAt: time.Now().UTC(),
	}
	queued := result.Queued
	w.mu.Unlock()

	w.recordRun(run)
	slog.Info("sync complete",
		"session_id", sessionID,
		"parsed", result.Parsed,
		"queued", result.Queued,
		"skipped", result.Skipped,
		"warnings", len(result.Warnings),
	)

	if w.invalidator != nil && queued > 0 {
		w.invalidator.Invalidate(queued)
	}
}

// pollStats polls queue statistics on the fixed interval for as long as the
// wizard stays in the syncing phase of generation gen. Responses landing
// after the phase moved on are discarded.
func (w *Wizard) pollStats(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(w.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		stats, err := w.client.QueueStats(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Display-only data: log and keep the last good snapshot.
			slog.Debug("queue stats poll failed", "error", err)
			continue
		}

		w.mu.Lock()
		if w.generation == gen && w.phase == model.PhaseSyncing {
			w.stats = stats
		}
		w.mu.Unlock()
	}
}

// failLocked moves the wizard into the failed phase with the retry target
// derived from where the failure occurred. Caller holds w.mu.
func (w *Wizard) failLocked(during model.SyncPhase, msg string) {
	w.stopPollLocked()
	w.stats = nil
	w.setPhaseLocked(w.phase, model.PhaseFailed)
	w.failure = msg
	w.retryPhase = model.RetryPhase(during)
}

// setPhaseLocked performs a checked transition. Caller holds w.mu.
func (w *Wizard) setPhaseLocked(from, to model.SyncPhase) {
	if !model.CanTransition(from, to) {
		// Transitions are all internal; a bad one is a programming error.
		panic(fmt.Sprintf("illegal wizard transition %s -> %s", from, to))
	}
	w.phase = to
	w.generation++
}

// stopPollLocked cancels the statistics poller if one is running. Caller holds w.mu.
func (w *Wizard) stopPollLocked() {
	if w.pollCancel != nil {
		w.pollCancel()
		w.pollCancel = nil
	}
}

// resetLocked returns all phase state to a fresh checking phase. Caller holds w.mu.
func (w *Wizard) resetLocked() {
	w.stopPollLocked()
	w.phase = model.PhaseChecking
	w.generation++
	w.needsCred = false
	w.identity = ""
	w.failure = ""
	w.retryPhase = ""
	w.parsed = nil
	w.sessionID = ""
	w.stats = nil
	w.result = nil
}

// recordRun persists a finished run; history is best-effort and never fails
// the wizard. Called without w.mu held so a slow insert cannot stall State
// or the poller.
func (w *Wizard) recordRun(run model.SyncRun) {
	if w.runs == nil {
		return
	}
	if err := w.runs.Insert(context.Background(), run); err != nil {
		slog.Error("record sync run failed", "session_id", run.SessionID, "error", err)
	}
}

// snapshotLocked builds a WizardState copy. Caller holds w.mu.
func (w *Wizard) snapshotLocked() WizardState {
	return WizardState{
		Phase:           w.phase,
		NeedsCredential: w.needsCred,
		Identity:        w.identity,
		Failure:         w.failure,
		RetryPhase:      w.retryPhase,
		SessionID:       w.sessionID,
		Stats:           w.stats,
		Result:          w.result,
	}
}

// NewSessionID returns a correlation key unique per run: unix milliseconds
// plus random entropy. It is not a security token.
func NewSessionID() string {
	entropy := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), entropy)
}
