// memory based implementation for testing purposes
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/cyp0633/librecur/recur/store"
)

// Store implements store.Store using an in-memory map
type Store struct {
	mu          sync.RWMutex
	checkpoints map[string]*store.Checkpoint // key: series ID
}

// New creates a new in-memory store
func New() *Store {
	return &Store{
		checkpoints: make(map[string]*store.Checkpoint),
	}
}

func (s *Store) SaveCheckpoint(_ context.Context, cp *store.Checkpoint) error {
	if err := store.Validate(cp); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := *cp
	saved.State = append([]byte(nil), cp.State...)
	if existing, ok := s.checkpoints[cp.SeriesID]; ok {
		saved.ID = existing.ID
	}
	saved.UpdatedAt = time.Now()
	s.checkpoints[cp.SeriesID] = &saved
	cp.ID, cp.UpdatedAt = saved.ID, saved.UpdatedAt

	return nil
}

func (s *Store) LoadCheckpoint(_ context.Context, seriesID string) (*store.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.checkpoints[seriesID]
	if !ok {
		return nil, &store.Error{
			Type:    store.ErrNotFound,
			Message: "checkpoint not found",
		}
	}

	out := *cp
	out.State = append([]byte(nil), cp.State...)
	return &out, nil
}

func (s *Store) DeleteCheckpoint(_ context.Context, seriesID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.checkpoints[seriesID]; !ok {
		return &store.Error{
			Type:    store.ErrNotFound,
			Message: "checkpoint not found",
		}
	}
	delete(s.checkpoints, seriesID)

	return nil
}

var _ store.Store = (*Store)(nil)
