package store

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockStore implements the Store interface for testing
type MockStore struct {
	mock.Mock
}

// SaveCheckpoint implements the Store interface
func (m *MockStore) SaveCheckpoint(ctx context.Context, cp *Checkpoint) error {
	args := m.Called(ctx, cp)
	return args.Error(0)
}

// LoadCheckpoint implements the Store interface
func (m *MockStore) LoadCheckpoint(ctx context.Context, seriesID string) (*Checkpoint, error) {
	args := m.Called(ctx, seriesID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Checkpoint), args.Error(1)
}

// DeleteCheckpoint implements the Store interface
func (m *MockStore) DeleteCheckpoint(ctx context.Context, seriesID string) error {
	args := m.Called(ctx, seriesID)
	return args.Error(0)
}

var _ Store = (*MockStore)(nil)
