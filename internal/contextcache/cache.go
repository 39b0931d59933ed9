// Package contextcache holds the immutable-after-load snapshot of a user's
// plan data for the lifetime of one voice session. Loading happens exactly
// once before the session starts; every read after that is a pure pointer
// dereference that never touches storage.
package contextcache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"voicecoach/internal/logging"
	"voicecoach/internal/types"
)

var (
	// ErrNotFound indicates the user has no stored profile data.
	ErrNotFound = errors.New("user context not found")

	// ErrStoreUnavailable indicates the storage backend failed the load.
	ErrStoreUnavailable = errors.New("context store unavailable")

	// ErrNotLoaded indicates Get was called before a successful Load.
	ErrNotLoaded = errors.New("context cache not loaded")
)

// Cache is the per-session context snapshot holder.
//
// The snapshot is swapped atomically: in-flight readers that already called
// Get keep their old snapshot, new readers see the replacement. No locking
// is needed because a snapshot is never mutated in place.
type Cache struct {
	store    types.ContextStore
	snapshot atomic.Pointer[types.UserContext]
}

// New creates an empty cache backed by the given store.
func New(store types.ContextStore) *Cache {
	return &Cache{store: store}
}

// Load performs the one-time snapshot read for userID.
// Any failure is fatal to session start: the cache stays empty, nothing is
// partially initialized, and the caller must abort the session.
func (c *Cache) Load(ctx context.Context, userID string) (*types.UserContext, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrNotFound)
	}

	start := time.Now()
	snap, err := c.store.LoadUserContext(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
	}

	c.snapshot.Store(snap)
	logging.Cache("Loaded context for %s in %v (plan=%q, meal=%q)",
		userID, time.Since(start), snap.WorkoutPlan.Name, snap.MealPlan.Name)
	return snap, nil
}

// Get returns the current snapshot. It is non-blocking, allocation-free,
// and never touches storage.
func (c *Cache) Get() (*types.UserContext, error) {
	snap := c.snapshot.Load()
	if snap == nil {
		return nil, ErrNotLoaded
	}
	return snap, nil
}

// Refresh loads a fresh snapshot for the already-loaded user and swaps it in
// atomically. Readers holding the old snapshot are unaffected.
func (c *Cache) Refresh(ctx context.Context) error {
	current := c.snapshot.Load()
	if current == nil {
		return ErrNotLoaded
	}

	snap, err := c.store.LoadUserContext(ctx, current.UserID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if snap == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, current.UserID)
	}

	c.snapshot.Store(snap)
	logging.Cache("Refreshed context for %s", current.UserID)
	return nil
}
