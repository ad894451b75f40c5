package driven

import (
	"context"
	"errors"
	"io"

	"figpanel/internal/domain/model"
)

// ErrCredentialInvalid is returned by remote calls that the service rejected
// because the borrowed session credential is expired or wrong. Recoverable:
// the wizard prompts for re-entry instead of showing a transport error.
var ErrCredentialInvalid = errors.New("remote service rejected the credential")

// RemoteClient defines the driven port for the remote hobby-database sync
// and scrape API. Implementations attach bearer auth and perform the
// single-flight token-refresh-then-retry on 401; callers never
// re-authenticate themselves.
type RemoteClient interface {
	// ValidateCredential checks the borrowed credential against the remote
	// account. A well-formed {valid:false} response is returned as a result,
	// not an error.
	ValidateCredential(ctx context.Context, cred model.ParsedCredential) (*model.ValidationResult, error)

	// StartSync initiates a full synchronization run under the given session
	// id and blocks until the remote reports the run's outcome.
	StartSync(ctx context.Context, cred model.ParsedCredential, sessionID string) (*model.SyncResult, error)

	// QueueStats returns a snapshot of the remote sync queue.
	QueueStats(ctx context.Context) (*model.QueueStats, error)

	// ScrapeItem fetches structured data for one remote item page.
	ScrapeItem(ctx context.Context, remoteID int64) (*model.ScrapedItem, error)

	// FetchCollection returns the account's full collection from the remote.
	FetchCollection(ctx context.Context) ([]model.Figure, error)

	// ParseCSV uploads a CSV export for parse-only validation.
	ParseCSV(ctx context.Context, csv io.Reader) (*model.CSVReport, error)

	// SyncCSV uploads a CSV export and queues its rows under the session id.
	SyncCSV(ctx context.Context, cred model.ParsedCredential, csv io.Reader, sessionID string) (*model.CSVReport, error)

	// ListSessions returns paused or in-progress server-side sync sessions.
	ListSessions(ctx context.Context) ([]model.SyncSession, error)

	// ResumeSession resumes a paused server-side session.
	ResumeSession(ctx context.Context, sessionID string) error

	// CancelFailed discards the failed items of a session so the rest can finish.
	CancelFailed(ctx context.Context, sessionID string) error
}
