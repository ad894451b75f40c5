// Package credstore implements the tiered CredentialStore port. The
// ephemeral and session tiers live in process memory; the persistent tier
// delegates to a long-lived encrypted backend.
package credstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"figpanel/internal/domain/model"
	"figpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*Store)(nil)

// Store holds at most one credential in exactly one tier. Writes are
// whole-value replacements; storing into any tier clears the others.
type Store struct {
	mu         sync.RWMutex
	persistent driven.PersistentCredentialStore

	memValue string
	memTier  model.CredentialTier // TierEphemeral or TierSession when memValue is set
}

// New creates a Store backed by the given persistent tier backend.
func New(persistent driven.PersistentCredentialStore) *Store {
	return &Store{persistent: persistent}
}

// Store saves the credential into the given tier, clearing the others.
func (s *Store) Store(ctx context.Context, value string, tier model.CredentialTier) error {
	if !model.ValidTier(tier) {
		return fmt.Errorf("unknown credential tier %q", tier)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch tier {
	case model.TierPersistent:
		if err := s.persistent.Set(ctx, value); err != nil {
			return err
		}
		s.memValue = ""
		s.memTier = ""
	default:
		// Memory tier replaces whatever persistent held.
		if err := s.persistent.Delete(ctx); err != nil {
			return fmt.Errorf("clear persistent tier: %w", err)
		}
		s.memValue = value
		s.memTier = tier
	}

	return nil
}

// Retrieve returns the current credential, or "" when none exists.
// Memory tiers take priority; they are only populated when persistent is not.
func (s *Store) Retrieve(ctx context.Context) (string, error) {
	s.mu.RLock()
	memValue := s.memValue
	s.mu.RUnlock()

	if memValue != "" {
		return memValue, nil
	}

	value, err := s.persistent.Get(ctx)
	if errors.Is(err, driven.ErrEncryptionKeyNotSet) {
		// Persistent tier disabled; behave as empty rather than failing reads.
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// CurrentTier returns the tier holding the credential and false when empty.
func (s *Store) CurrentTier(ctx context.Context) (model.CredentialTier, bool, error) {
	s.mu.RLock()
	memValue, memTier := s.memValue, s.memTier
	s.mu.RUnlock()

	if memValue != "" {
		return memTier, true, nil
	}

	value, err := s.persistent.Get(ctx)
	if errors.Is(err, driven.ErrEncryptionKeyNotSet) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if value == "" {
		return "", false, nil
	}
	return model.TierPersistent, true, nil
}

// HasValue reports whether Retrieve would return a non-empty value.
func (s *Store) HasValue(ctx context.Context) (bool, error) {
	value, err := s.Retrieve(ctx)
	if err != nil {
		return false, err
	}
	return value != "", nil
}

// Clear removes the credential from every tier. Never errors on empty.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.memValue = ""
	s.memTier = ""
	s.mu.Unlock()

	if err := s.persistent.Delete(ctx); err != nil {
		return fmt.Errorf("clear persistent tier: %w", err)
	}
	return nil
}

// ClearSession removes the credential only when the session tier holds it.
// Ephemeral and persistent credentials survive logout.
func (s *Store) ClearSession(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.memTier == model.TierSession {
		s.memValue = ""
		s.memTier = ""
	}
	return nil
}
