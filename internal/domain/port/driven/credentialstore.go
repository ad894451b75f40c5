package driven

import (
	"context"
	"errors"

	"figpanel/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned by persistent-tier credential operations
// when FIGPANEL_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set FIGPANEL_SECRET_KEY")

// CredentialStore defines the driven port for the tiered session credential.
// At most one credential is held at a time; storing into any tier replaces
// whatever the other tiers held. Adapters own obfuscation; this interface
// operates on plaintext values at the domain boundary.
type CredentialStore interface {
	// Store saves the credential into the given tier, clearing the others.
	// The persistent tier returns ErrEncryptionKeyNotSet when no key is configured.
	Store(ctx context.Context, value string, tier model.CredentialTier) error

	// Retrieve returns the current credential, or ("", nil) when none exists
	// or the holding tier's lifecycle has expired.
	Retrieve(ctx context.Context) (string, error)

	// CurrentTier returns the tier holding the credential and false when empty.
	CurrentTier(ctx context.Context) (model.CredentialTier, bool, error)

	// HasValue reports whether Retrieve would return a non-empty value.
	HasValue(ctx context.Context) (bool, error)

	// Clear removes the credential from every tier. Clearing an empty store
	// is not an error.
	Clear(ctx context.Context) error

	// ClearSession removes the credential only if the session tier holds it.
	// Wired to the logout path.
	ClearSession(ctx context.Context) error
}

// PersistentCredentialStore is the long-lived backend the tiered store
// delegates the persistent tier to.
type PersistentCredentialStore interface {
	Set(ctx context.Context, plaintext string) error
	Get(ctx context.Context) (string, error)
	Delete(ctx context.Context) error
}
