package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hperssn/dojo/internal/domain"
	"github.com/hperssn/dojo/internal/intervals"
	"github.com/hperssn/dojo/internal/log"
	"github.com/hperssn/dojo/internal/metrics"
	"github.com/hperssn/dojo/internal/recorder"
	"github.com/hperssn/dojo/internal/storage"
)

var (
	ErrRunnerClosed  = errors.New("runner is closed")
	ErrManagerClosed = errors.New("manager is closed")
	ErrNoUser        = errors.New("user id required")
)

type Options struct {
	TickInterval    time.Duration
	IdleTimeout     time.Duration // runners idle for longer are evicted; zero keeps them
	CleanupInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		TickInterval:    DefaultTickInterval,
		IdleTimeout:     time.Hour,
		CleanupInterval: 5 * time.Minute,
	}
}

// userSession bundles everything the service holds for one user.
type userSession struct {
	intervals *intervals.Store
	recorder  *recorder.Recorder
	runner    *Runner
}

// Manager keeps one runner per user, created on first use from the user's
// stored intervals and tempos.
type Manager struct {
	mu       sync.Mutex
	docs     storage.Store
	opts     Options
	sessions map[string]*userSession
	closed   bool

	stop chan struct{}
	done chan struct{}

	logger zerolog.Logger
}

func NewManager(docs storage.Store, opts Options) *Manager {
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultOptions().CleanupInterval
	}

	m := &Manager{
		docs:     docs,
		opts:     opts,
		sessions: make(map[string]*userSession),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		logger:   log.WithComponent("manager"),
	}

	go m.cleanupLoop()

	return m
}

func (m *Manager) cleanupLoop() {
	defer close(m.done)

	ticker := time.NewTicker(m.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupIdle(time.Now())
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) cleanupIdle(now time.Time) {
	if m.opts.IdleTimeout <= 0 {
		return
	}
	cutoff := now.Add(-m.opts.IdleTimeout)

	m.mu.Lock()
	var evicted []*Runner
	for id, s := range m.sessions {
		if s.runner.Idle(cutoff) {
			evicted = append(evicted, s.runner)
			delete(m.sessions, id)
			m.logger.Debug().Str(log.FieldUserID, id).Msg("evicting idle runner")
		}
	}
	metrics.SetActiveRunners(len(m.sessions))
	m.mu.Unlock()

	for _, r := range evicted {
		r.Close()
	}
}

func (m *Manager) session(ctx context.Context, userID string) (*userSession, error) {
	if userID == "" {
		return nil, ErrNoUser
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	if s, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	// Load without holding m.mu so a slow backend only delays this user. The
	// request may go away; the first load of a runner should still finish.
	loadCtx := context.WithoutCancel(ctx)
	docs := storage.Namespace(m.docs, storage.UserNamespace(userID))
	store := intervals.NewStore(docs)

	defs, err := store.Load(loadCtx)
	if err != nil {
		return nil, err
	}
	tempos, err := store.LoadTempos(loadCtx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	// another request loaded the user meanwhile
	if s, ok := m.sessions[userID]; ok {
		return s, nil
	}

	rec := recorder.New(docs)
	s := &userSession{
		intervals: store,
		recorder:  rec,
		runner: NewRunner(Config{
			UserID:       userID,
			Intervals:    defs,
			Tempos:       tempos,
			Recorder:     rec,
			TickInterval: m.opts.TickInterval,
		}),
	}
	m.sessions[userID] = s
	metrics.SetActiveRunners(len(m.sessions))

	return s, nil
}

// Runner returns the user's runner, loading it on first use.
func (m *Manager) Runner(ctx context.Context, userID string) (*Runner, error) {
	s, err := m.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.runner, nil
}

func (m *Manager) Intervals(ctx context.Context, userID string) (*intervals.Store, error) {
	s, err := m.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.intervals, nil
}

func (m *Manager) Recorder(ctx context.Context, userID string) (*recorder.Recorder, error) {
	s, err := m.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.recorder, nil
}

// EditIntervals applies a stored-list edit and restarts the user's run with
// the result. Saving a list always restarts the sequencer.
func (m *Manager) EditIntervals(ctx context.Context, userID string, edit func(*intervals.Store) ([]domain.IntervalDefinition, error)) ([]domain.IntervalDefinition, error) {
	s, err := m.session(ctx, userID)
	if err != nil {
		return nil, err
	}

	defs, err := edit(s.intervals)
	if err != nil {
		return nil, err
	}
	s.runner.Restart(defs)
	return defs, nil
}

// EditTempos applies a tempo edit and hands the new set to the runner.
func (m *Manager) EditTempos(ctx context.Context, userID string, edit func(*intervals.Store) (domain.TempoSet, error)) (domain.TempoSet, error) {
	s, err := m.session(ctx, userID)
	if err != nil {
		return nil, err
	}

	set, err := edit(s.intervals)
	if err != nil {
		return nil, err
	}
	s.runner.SetTempos(set)
	return set, nil
}

// DeleteTempo removes a tempo. When intervals referenced it, the rewritten
// list is saved and the run restarts like any other interval edit.
func (m *Manager) DeleteTempo(ctx context.Context, userID, tempoID string) (domain.TempoSet, error) {
	s, err := m.session(ctx, userID)
	if err != nil {
		return nil, err
	}

	set, rewritten, err := s.intervals.DeleteTempo(ctx, tempoID)
	if err != nil {
		return nil, err
	}
	s.runner.SetTempos(set)
	if rewritten != nil {
		s.runner.Restart(rewritten)
	}
	return set, nil
}

// Len returns the number of loaded runners.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops the cleanup loop and every runner.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*userSession)
	m.mu.Unlock()

	close(m.stop)
	<-m.done

	for _, s := range sessions {
		s.runner.Close()
	}
	metrics.SetActiveRunners(0)
}
