package intervals

import (
	"context"

	"github.com/google/uuid"

	"github.com/hperssn/dojo/internal/domain"
	"github.com/hperssn/dojo/internal/log"
	"github.com/hperssn/dojo/internal/metrics"
	"github.com/hperssn/dojo/internal/storage"
)

// Tempos returns the stored tempo set. Unreadable documents and failed reads
// yield an empty set.
func (s *Store) Tempos(ctx context.Context) domain.TempoSet {
	set, err := s.LoadTempos(ctx)
	if err != nil {
		return domain.TempoSet{}
	}
	return set
}

// LoadTempos returns failed reads instead of an empty set.
func (s *Store) LoadTempos(ctx context.Context) (domain.TempoSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadTempos(ctx)
}

// AddTempo assigns an id when missing. A bpm already in the set is rejected
// with domain.ErrDuplicateBPM.
func (s *Store) AddTempo(ctx context.Context, t domain.Tempo) (domain.TempoSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	set, err := s.loadTempos(ctx)
	if err != nil {
		return nil, err
	}
	next, err := set.Add(t)
	if err != nil {
		return nil, err
	}
	if err := s.saveTempos(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// DeleteTempo removes the tempo and clears every interval reference to it.
// The rewritten interval list is returned when any reference was cleared.
func (s *Store) DeleteTempo(ctx context.Context, id string) (domain.TempoSet, []domain.IntervalDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.loadTempos(ctx)
	if err != nil {
		return nil, nil, err
	}
	defs, err := s.load(ctx)
	if err != nil {
		return nil, nil, err
	}

	next, err := set.Remove(id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.saveTempos(ctx, next); err != nil {
		return nil, nil, err
	}

	changed := false
	for i := range defs {
		if defs[i].TempoID == id {
			defs[i].TempoID = ""
			changed = true
		}
	}
	if !changed {
		return next, nil, nil
	}
	if err := s.save(ctx, defs); err != nil {
		return nil, nil, err
	}
	return next, domain.CloneIntervals(defs), nil
}

func (s *Store) loadTempos(ctx context.Context) (domain.TempoSet, error) {
	set, err := storage.LoadJSON[domain.TempoSet](ctx, s.docs, storage.KeyTempos)
	switch {
	case err == nil:
	case storage.IsNotFound(err):
		return domain.TempoSet{}, nil
	case storage.IsDecode(err):
		metrics.IncPersistenceError("load_tempos")
		s.logger.Warn().Err(err).Str(log.FieldKey, storage.KeyTempos).Msg("stored tempos unreadable, using empty set")
		return domain.TempoSet{}, nil
	default:
		metrics.IncPersistenceError("load_tempos")
		s.logger.Error().Err(err).Str(log.FieldKey, storage.KeyTempos).Msg("failed to load tempos")
		return nil, err
	}

	if set == nil {
		set = domain.TempoSet{}
	}
	return set, nil
}

func (s *Store) saveTempos(ctx context.Context, set domain.TempoSet) error {
	if err := storage.SaveJSON(ctx, s.docs, storage.KeyTempos, set); err != nil {
		metrics.IncPersistenceError("save_tempos")
		s.logger.Error().Err(err).Msg("failed to save tempos")
		return err
	}
	return nil
}
