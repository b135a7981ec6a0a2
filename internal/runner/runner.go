package runner

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hperssn/dojo/internal/domain"
	"github.com/hperssn/dojo/internal/log"
	"github.com/hperssn/dojo/internal/metrics"
	"github.com/hperssn/dojo/internal/playback"
	"github.com/hperssn/dojo/internal/pubsub"
	"github.com/hperssn/dojo/internal/sequencer"
)

const DefaultTickInterval = time.Second

// SessionRecorder persists a finished run.
type SessionRecorder interface {
	Record(ctx context.Context, intervals []domain.IntervalDefinition, completed map[string]int) (*domain.SessionHistoryEntry, error)
}

type Config struct {
	UserID       string
	Intervals    []domain.IntervalDefinition
	Tempos       domain.TempoSet
	Recorder     SessionRecorder // optional
	TickInterval time.Duration   // defaults to DefaultTickInterval
}

// Runner drives one sequencer in real time. It is the only owner of the
// countdown and interval timers; at most one of them is armed at a time and
// both are dropped on every transition that stops ticking.
type Runner struct {
	mu sync.Mutex

	machine   *sequencer.Machine
	metronome *playback.Metronome
	recorder  SessionRecorder
	broker    *pubsub.Broker[Event]

	tickInterval   time.Duration
	countdownTimer *time.Timer
	intervalTimer  *time.Timer
	generation     uint64

	ctx        context.Context
	cancel     context.CancelFunc
	recordings sync.WaitGroup
	closed     bool
	lastActive time.Time

	logger zerolog.Logger
}

func NewRunner(cfg Config) *Runner {
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = DefaultTickInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		metronome:    playback.NewMetronome(cfg.Tempos),
		recorder:     cfg.Recorder,
		broker:       pubsub.NewBroker[Event](),
		tickInterval: tick,
		ctx:          ctx,
		cancel:       cancel,
		lastActive:   time.Now(),
		logger:       log.WithComponent("runner").With().Str(log.FieldUserID, cfg.UserID).Logger(),
	}
	r.machine = sequencer.New(cfg.Intervals, r.metronome, sessionSink{r})

	// Runs under r.mu: every metronome change comes from a machine call.
	r.metronome.OnChange(func(s playback.State) {
		r.broker.Publish(Event{Type: EventMetronome, State: r.machine.Snapshot(), Metronome: s})
	})

	return r
}

func (r *Runner) Start() error {
	return r.command("start", func() error {
		return r.machine.Start()
	})
}

func (r *Runner) Pause() {
	_ = r.command("pause", func() error {
		r.machine.Pause()
		return nil
	})
}

func (r *Runner) Skip() error {
	return r.command("skip", func() error {
		return r.machine.Skip()
	})
}

// Restart resets the run. A nil list keeps the current intervals.
func (r *Runner) Restart(intervals []domain.IntervalDefinition) {
	_ = r.command("restart", func() error {
		r.machine.Restart(intervals)
		return nil
	})
}

// SetTempos changes the tempo set used from the next metronome start on.
func (r *Runner) SetTempos(tempos domain.TempoSet) {
	r.metronome.SetTempos(tempos)
}

func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Subscribe streams events until ctx is cancelled or the runner closes.
func (r *Runner) Subscribe(ctx context.Context) <-chan pubsub.Message[Event] {
	return r.broker.Subscribe(ctx)
}

// Idle reports whether the runner is not ticking and was last used before cutoff.
func (r *Runner) Idle(cutoff time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.machine.Snapshot().IsRunning && r.lastActive.Before(cutoff)
}

// Close stops the timers, waits for pending recordings and closes all
// subscriptions. The runner is unusable afterwards.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.stopTimersLocked()
	r.machine.Pause()
	r.mu.Unlock()

	r.recordings.Wait()
	r.cancel()
	r.broker.Shutdown()
}

func (r *Runner) command(name string, fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRunnerClosed
	}

	before := r.machine.Phase()
	err := fn()
	metrics.RecordCommand(name, err == nil)
	r.lastActive = time.Now()
	if err != nil {
		r.logger.Debug().Err(err).Str(log.FieldEvent, name).Msg("command rejected")
		return err
	}

	r.rearmLocked()
	r.publishLocked(EventState)
	r.notePhaseLocked(before)
	r.logger.Debug().Str(log.FieldEvent, name).Str(log.FieldNewPhase, r.machine.Phase().String()).Msg("command applied")
	return nil
}

func (r *Runner) onTick(generation uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || generation != r.generation {
		return
	}

	before := r.machine.Phase()
	r.machine.Tick()
	metrics.IncTick()

	r.rearmLocked()
	r.publishLocked(EventTick)
	r.notePhaseLocked(before)
}

// rearmLocked drops any armed timer and arms the one the current phase needs.
func (r *Runner) rearmLocked() {
	r.stopTimersLocked()

	gen := r.generation
	switch r.machine.Phase() {
	case sequencer.PhaseCountingDown:
		r.countdownTimer = time.AfterFunc(r.tickInterval, func() { r.onTick(gen) })
	case sequencer.PhaseRunning:
		r.intervalTimer = time.AfterFunc(r.tickInterval, func() { r.onTick(gen) })
	}
}

func (r *Runner) stopTimersLocked() {
	r.generation++
	if r.countdownTimer != nil {
		r.countdownTimer.Stop()
		r.countdownTimer = nil
	}
	if r.intervalTimer != nil {
		r.intervalTimer.Stop()
		r.intervalTimer = nil
	}
}

func (r *Runner) notePhaseLocked(before sequencer.Phase) {
	after := r.machine.Phase()
	if after == before {
		return
	}

	metrics.RecordTransition(after.String())
	r.logger.Info().
		Str(log.FieldOldPhase, before.String()).
		Str(log.FieldNewPhase, after.String()).
		Msg("phase changed")

	if after == sequencer.PhaseFinished {
		metrics.IncSessionsFinished()
		r.publishLocked(EventFinished)
		return
	}
	r.publishLocked(EventPhase)
}

func (r *Runner) publishLocked(t EventType) {
	s := r.snapshotLocked()
	r.broker.Publish(Event{Type: t, State: s.Timer, Metronome: s.Metronome})
}

func (r *Runner) snapshotLocked() Snapshot {
	return Snapshot{
		Timer:     r.machine.Snapshot(),
		Metronome: r.metronome.State(),
	}
}

// sessionSink hands finished runs to the recorder without blocking the
// caller, which holds r.mu.
type sessionSink struct {
	r *Runner
}

func (s sessionSink) RecordSession(intervals []domain.IntervalDefinition, completed map[string]int) {
	r := s.r
	if r.recorder == nil {
		return
	}

	r.recordings.Add(1)
	go func() {
		defer r.recordings.Done()

		entry, err := r.recorder.Record(r.ctx, intervals, completed)
		if err != nil {
			r.logger.Warn().Err(err).Msg("failed to record session")
			r.broker.Publish(Event{Type: EventRecordFailed, Error: err.Error()})
			return
		}
		r.broker.Publish(Event{Type: EventRecorded, Entry: entry})
	}()
}
