// Package recorder keeps the append-only history of finished runs.
package recorder

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hperssn/dojo/internal/domain"
	"github.com/hperssn/dojo/internal/log"
	"github.com/hperssn/dojo/internal/metrics"
	"github.com/hperssn/dojo/internal/storage"
)

var ErrEmptySession = errors.New("session has no intervals")

type Recorder struct {
	mu     sync.Mutex
	docs   storage.Store
	now    func() time.Time
	logger zerolog.Logger
}

func New(docs storage.Store) *Recorder {
	return &Recorder{
		docs:   docs,
		now:    time.Now,
		logger: log.WithComponent("recorder"),
	}
}

// WithClock replaces the time source, for tests.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Record appends a finished run to the session history.
func (r *Recorder) Record(ctx context.Context, intervals []domain.IntervalDefinition, completed map[string]int) (*domain.SessionHistoryEntry, error) {
	if len(intervals) == 0 {
		return nil, ErrEmptySession
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	history, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	entry := domain.NewHistoryEntry(intervals, completed, r.now())
	history = append(history, entry)

	if err := storage.SaveJSON(ctx, r.docs, storage.KeySessionHistory, history); err != nil {
		metrics.IncPersistenceError("save_history")
		return nil, err
	}

	r.logger.Info().
		Str(log.FieldSessionID, entry.ID).
		Int("intervals", len(entry.Intervals)).
		Int("training_seconds", entry.TrainingSeconds()).
		Msg("session recorded")

	return &entry, nil
}

// History returns entries recorded at or after since, newest first. A zero
// since returns everything.
func (r *Recorder) History(ctx context.Context, since time.Time) ([]domain.SessionHistoryEntry, error) {
	r.mu.Lock()
	history, err := r.load(ctx)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]domain.SessionHistoryEntry, 0, len(history))
	for _, e := range history {
		if since.IsZero() || !e.Date.Before(since) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}

func (r *Recorder) Stats(ctx context.Context) (domain.HistoryStats, error) {
	history, err := r.History(ctx, time.Time{})
	if err != nil {
		return domain.HistoryStats{}, err
	}
	return domain.ComputeStats(history), nil
}

// load reads the stored history. A missing or malformed document is an empty
// history; any other failure is returned so nothing gets written over data
// that could not be read.
func (r *Recorder) load(ctx context.Context) ([]domain.SessionHistoryEntry, error) {
	history, err := storage.LoadJSON[[]domain.SessionHistoryEntry](ctx, r.docs, storage.KeySessionHistory)
	switch {
	case err == nil:
		return history, nil
	case storage.IsNotFound(err):
		return nil, nil
	case storage.IsDecode(err):
		metrics.IncPersistenceError("load_history")
		r.logger.Warn().Err(err).Str(log.FieldKey, storage.KeySessionHistory).Msg("session history unreadable, starting empty")
		return nil, nil
	default:
		metrics.IncPersistenceError("load_history")
		r.logger.Error().Err(err).Str(log.FieldKey, storage.KeySessionHistory).Msg("failed to load session history")
		return nil, err
	}
}
