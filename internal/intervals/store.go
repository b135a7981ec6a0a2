// Package intervals edits the interval list and tempo set of one user.
//
// Every mutation loads the current document, applies the edit and writes the
// whole document back, so the stored list is always the one the caller saw.
package intervals

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hperssn/dojo/internal/domain"
	"github.com/hperssn/dojo/internal/log"
	"github.com/hperssn/dojo/internal/metrics"
	"github.com/hperssn/dojo/internal/storage"
)

var ErrIndexOutOfRange = errors.New("interval index out of range")

type Store struct {
	mu     sync.Mutex
	docs   storage.Store
	logger zerolog.Logger
}

func NewStore(docs storage.Store) *Store {
	return &Store{
		docs:   docs,
		logger: log.WithComponent("intervals"),
	}
}

// List returns the stored intervals, or the built-in template when nothing
// usable is stored or the read fails.
func (s *Store) List(ctx context.Context) []domain.IntervalDefinition {
	defs, err := s.Load(ctx)
	if err != nil {
		return domain.DefaultIntervals()
	}
	return defs
}

// Load is List without the fallback for failed reads: a missing, malformed
// or invalid document still yields the template, any other error is
// returned.
func (s *Store) Load(ctx context.Context) ([]domain.IntervalDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Save replaces the whole list.
func (s *Store) Save(ctx context.Context, defs []domain.IntervalDefinition) ([]domain.IntervalDefinition, error) {
	if err := domain.ValidateAll(defs); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.IntervalDefinition, len(defs))
	for i, d := range defs {
		out[i] = withID(d)
	}
	if err := s.save(ctx, out); err != nil {
		return nil, err
	}
	return domain.CloneIntervals(out), nil
}

// Add appends def after normalizing it.
func (s *Store) Add(ctx context.Context, def domain.IntervalDefinition) ([]domain.IntervalDefinition, error) {
	return s.mutate(ctx, func(defs []domain.IntervalDefinition) ([]domain.IntervalDefinition, error) {
		def = def.Normalize()
		if err := def.Validate(); err != nil {
			return nil, err
		}
		def.ID = uuid.New().String()
		return append(defs, def), nil
	})
}

// Update replaces the interval at index, keeping its id.
func (s *Store) Update(ctx context.Context, index int, def domain.IntervalDefinition) ([]domain.IntervalDefinition, error) {
	return s.mutate(ctx, func(defs []domain.IntervalDefinition) ([]domain.IntervalDefinition, error) {
		if err := checkIndex(defs, index); err != nil {
			return nil, err
		}
		def = def.Normalize()
		if err := def.Validate(); err != nil {
			return nil, err
		}
		def.ID = defs[index].ID
		defs[index] = withID(def)
		return defs, nil
	})
}

func (s *Store) Delete(ctx context.Context, index int) ([]domain.IntervalDefinition, error) {
	return s.mutate(ctx, func(defs []domain.IntervalDefinition) ([]domain.IntervalDefinition, error) {
		if err := checkIndex(defs, index); err != nil {
			return nil, err
		}
		return append(defs[:index], defs[index+1:]...), nil
	})
}

// Move takes the interval at from and reinserts it at to.
func (s *Store) Move(ctx context.Context, from, to int) ([]domain.IntervalDefinition, error) {
	return s.mutate(ctx, func(defs []domain.IntervalDefinition) ([]domain.IntervalDefinition, error) {
		if err := checkIndex(defs, from); err != nil {
			return nil, err
		}
		if err := checkIndex(defs, to); err != nil {
			return nil, err
		}
		return moveItem(defs, from, to), nil
	})
}

// Copy inserts a duplicate of the interval at index right after it.
func (s *Store) Copy(ctx context.Context, index int) ([]domain.IntervalDefinition, error) {
	return s.mutate(ctx, func(defs []domain.IntervalDefinition) ([]domain.IntervalDefinition, error) {
		if err := checkIndex(defs, index); err != nil {
			return nil, err
		}
		dup := defs[index]
		dup.ID = uuid.New().String()

		out := make([]domain.IntervalDefinition, 0, len(defs)+1)
		out = append(out, defs[:index+1]...)
		out = append(out, dup)
		return append(out, defs[index+1:]...), nil
	})
}

func (s *Store) mutate(ctx context.Context, edit func([]domain.IntervalDefinition) ([]domain.IntervalDefinition, error)) ([]domain.IntervalDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defs, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	next, err := edit(defs)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, next); err != nil {
		return nil, err
	}
	return domain.CloneIntervals(next), nil
}

func (s *Store) load(ctx context.Context) ([]domain.IntervalDefinition, error) {
	defs, err := storage.LoadJSON[[]domain.IntervalDefinition](ctx, s.docs, storage.KeyIntervals)
	switch {
	case err == nil:
	case storage.IsNotFound(err):
		return domain.DefaultIntervals(), nil
	case storage.IsDecode(err):
		metrics.IncPersistenceError("load_intervals")
		s.logger.Warn().Err(err).Str(log.FieldKey, storage.KeyIntervals).Msg("stored intervals unreadable, using default template")
		return domain.DefaultIntervals(), nil
	default:
		metrics.IncPersistenceError("load_intervals")
		s.logger.Error().Err(err).Str(log.FieldKey, storage.KeyIntervals).Msg("failed to load intervals")
		return nil, err
	}

	if err := domain.ValidateAll(defs); err != nil {
		s.logger.Warn().Err(err).Msg("stored intervals invalid, using default template")
		return domain.DefaultIntervals(), nil
	}
	if defs == nil {
		defs = []domain.IntervalDefinition{}
	}
	return defs, nil
}

func (s *Store) save(ctx context.Context, defs []domain.IntervalDefinition) error {
	if err := storage.SaveJSON(ctx, s.docs, storage.KeyIntervals, defs); err != nil {
		metrics.IncPersistenceError("save_intervals")
		s.logger.Error().Err(err).Msg("failed to save intervals")
		return err
	}
	return nil
}

func withID(d domain.IntervalDefinition) domain.IntervalDefinition {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return d
}

func checkIndex(defs []domain.IntervalDefinition, index int) error {
	if index < 0 || index >= len(defs) {
		return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(defs))
	}
	return nil
}

func moveItem[T any](items []T, from, to int) []T {
	item := items[from]
	out := make([]T, 0, len(items))
	out = append(out, items[:from]...)
	out = append(out, items[from+1:]...)

	out = append(out[:to], append([]T{item}, out[to:]...)...)
	return out
}
