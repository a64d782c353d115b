// Package token persists the opaque change cursor the pull reconciler
// resumes delta fetches from.
package token

import (
	"context"
	"fmt"

	"github.com/MKhiriev/cloudsync/internal/statestore"
	"github.com/MKhiriev/cloudsync/models"
)

// Store holds the committed change token for one zone. The token only
// advances via Set and is cleared (forcing a full resync) when the
// remote store reports it expired.
type Store struct {
	state statestore.StateStore
	key   string
}

// NewStore constructs a Store persisting under the given key. The key is
// derived once by the configuration layer (zone name + suffix), never
// recomputed here.
func NewStore(state statestore.StateStore, key string) *Store {
	return &Store{state: state, key: key}
}

// Get returns the committed token, or the zero token when none has been
// committed yet.
func (s *Store) Get(ctx context.Context) (models.ChangeToken, error) {
	value, ok, err := s.state.Get(ctx, s.key)
	if err != nil {
		return "", fmt.Errorf("get change token: %w", err)
	}
	if !ok {
		return "", nil
	}
	return models.ChangeToken(value), nil
}

// Set commits the token. Callers invoke this only after the changes
// associated with the token have been durably processed.
func (s *Store) Set(ctx context.Context, t models.ChangeToken) error {
	if err := s.state.Set(ctx, s.key, []byte(t)); err != nil {
		return fmt.Errorf("set change token: %w", err)
	}
	return nil
}

// Clear removes the committed token so the next pull fetches from the
// beginning.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.state.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear change token: %w", err)
	}
	return nil
}
