// Package store persists iterator and expansion checkpoints so a
// long-running series can be resumed where it stopped.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cyp0633/librecur/recur"
)

// Error types
type ErrorType string

const (
	ErrNotFound     ErrorType = "not_found"
	ErrInvalidInput ErrorType = "invalid_input"
	ErrInternal     ErrorType = "internal"
)

// Error represents a storage-related error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a missing checkpoint.
func IsNotFound(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrNotFound
}

// IsInternal reports whether err is a backend failure rather than a problem
// with the checkpoint itself.
func IsInternal(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrInternal
}

// Kind tells which state a checkpoint holds.
type Kind string

const (
	KindIterator  Kind = "iterator"
	KindExpansion Kind = "expansion"
)

// Checkpoint is one saved state, keyed by the series it belongs to.
type Checkpoint struct {
	ID        string    `gorm:"primaryKey;size:36"`
	SeriesID  string    `gorm:"uniqueIndex;not null"`
	Kind      Kind      `gorm:"size:16;not null"`
	Format    string    `gorm:"size:8;not null"`
	State     []byte    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Store interface connects checkpoint persistence with a backend.
type Store interface {
	// SaveCheckpoint inserts or replaces the checkpoint of cp.SeriesID.
	SaveCheckpoint(ctx context.Context, cp *Checkpoint) error
	// LoadCheckpoint returns the checkpoint of a series or an ErrNotFound error.
	LoadCheckpoint(ctx context.Context, seriesID string) (*Checkpoint, error)
	// DeleteCheckpoint removes the checkpoint of a series.
	DeleteCheckpoint(ctx context.Context, seriesID string) error
}

// Validate checks cp and assigns an ID when it has none. Backends call it
// before writing.
func Validate(cp *Checkpoint) error {
	if cp == nil || cp.SeriesID == "" {
		return &Error{Type: ErrInvalidInput, Message: "checkpoint needs a series ID"}
	}
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	return nil
}

// SaveIterator encodes the state of it with codec and stores it.
func SaveIterator(ctx context.Context, s Store, seriesID string, it *recur.Iterator, codec recur.Codec) error {
	return save(ctx, s, seriesID, KindIterator, it.State(), codec)
}

// SaveExpansion encodes the state of e with codec and stores it.
func SaveExpansion(ctx context.Context, s Store, seriesID string, e *recur.Expansion, codec recur.Codec) error {
	return save(ctx, s, seriesID, KindExpansion, e.State(), codec)
}

func save(ctx context.Context, s Store, seriesID string, kind Kind, state any, codec recur.Codec) error {
	if codec == nil {
		codec = recur.JSONCodec
	}
	data, err := codec.Marshal(state)
	if err != nil {
		return &Error{Type: ErrInvalidInput, Message: "failed to encode state", Err: err}
	}
	return s.SaveCheckpoint(ctx, &Checkpoint{
		SeriesID: seriesID,
		Kind:     kind,
		Format:   codec.Name(),
		State:    data,
	})
}

// LoadIterator restores the iterator saved for seriesID.
func LoadIterator(ctx context.Context, s Store, seriesID string, opts recur.Options) (*recur.Iterator, error) {
	var state recur.IteratorState
	if err := load(ctx, s, seriesID, KindIterator, &state); err != nil {
		return nil, err
	}
	return recur.RestoreIterator(state, opts)
}

// LoadExpansion restores the expansion saved for seriesID.
func LoadExpansion(ctx context.Context, s Store, seriesID string, opts recur.Options) (*recur.Expansion, error) {
	var state recur.ExpansionState
	if err := load(ctx, s, seriesID, KindExpansion, &state); err != nil {
		return nil, err
	}
	return recur.RestoreExpansion(state, opts)
}

func load(ctx context.Context, s Store, seriesID string, kind Kind, into any) error {
	cp, err := s.LoadCheckpoint(ctx, seriesID)
	if err != nil {
		return err
	}
	if cp.Kind != kind {
		return &Error{Type: ErrInvalidInput, Message: fmt.Sprintf("checkpoint %s holds %s state, not %s", seriesID, cp.Kind, kind)}
	}
	codec, err := recur.CodecByName(cp.Format)
	if err != nil {
		return &Error{Type: ErrInvalidInput, Message: "unknown checkpoint format", Err: err}
	}
	if err := codec.Unmarshal(cp.State, into); err != nil {
		return &Error{Type: ErrInvalidInput, Message: "failed to decode state", Err: err}
	}
	return nil
}
