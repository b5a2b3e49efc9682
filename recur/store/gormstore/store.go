// Package gormstore keeps checkpoints in any database gorm supports.
package gormstore

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cyp0633/librecur/recur/store"
)

// Store implements store.Store on a gorm connection.
type Store struct {
	db *gorm.DB
}

// New wraps db. Call Migrate once before use.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the checkpoint table.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&store.Checkpoint{})
}

func (s *Store) SaveCheckpoint(ctx context.Context, cp *store.Checkpoint) error {
	if err := store.Validate(cp); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "series_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "format", "state", "updated_at"}),
	}).Create(cp).Error
	if err != nil {
		return &store.Error{Type: store.ErrInternal, Message: "failed to save checkpoint", Err: err}
	}
	return nil
}

func (s *Store) LoadCheckpoint(ctx context.Context, seriesID string) (*store.Checkpoint, error) {
	var cp store.Checkpoint
	err := s.db.WithContext(ctx).Where("series_id = ?", seriesID).First(&cp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &store.Error{Type: store.ErrNotFound, Message: "checkpoint not found"}
	}
	if err != nil {
		return nil, &store.Error{Type: store.ErrInternal, Message: "failed to load checkpoint", Err: err}
	}
	return &cp, nil
}

func (s *Store) DeleteCheckpoint(ctx context.Context, seriesID string) error {
	res := s.db.WithContext(ctx).Where("series_id = ?", seriesID).Delete(&store.Checkpoint{})
	if res.Error != nil {
		return &store.Error{Type: store.ErrInternal, Message: "failed to delete checkpoint", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return &store.Error{Type: store.ErrNotFound, Message: "checkpoint not found"}
	}
	return nil
}

var _ store.Store = (*Store)(nil)
