// Package sequencer implements the interval timer state machine.
//
// A Machine walks an ordered list of intervals, visiting each one RepeatCount
// times, and counts every repeat down one Tick at a time. It performs no I/O
// and owns no timers: callers drive it with Tick once per second and serialize
// access to it. Metronome and session recording side effects go through the
// Notifier and Recorder it was built with.
package sequencer

import (
	"errors"

	"github.com/hperssn/dojo/internal/domain"
)

var (
	ErrNoIntervals = errors.New("no intervals configured")
	ErrFinished    = errors.New("program finished, restart required")
)

// Notifier drives the metronome.
type Notifier interface {
	Play(interval domain.IntervalDefinition)
	Stop()
}

// Recorder receives a finished run. It must not block.
type Recorder interface {
	RecordSession(intervals []domain.IntervalDefinition, completed map[string]int)
}

type Machine struct {
	intervals []domain.IntervalDefinition

	intervalIdx        int
	repeatIdx          int
	countdownRemaining int
	timeLeft           int
	running            bool
	firstRun           bool
	finished           bool
	completed          map[string]int

	notifier Notifier
	recorder Recorder
}

// New builds a machine positioned at the start of intervals. A nil notifier
// or recorder is replaced with a no-op.
func New(intervals []domain.IntervalDefinition, notifier Notifier, recorder Recorder) *Machine {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}

	m := &Machine{
		notifier: notifier,
		recorder: recorder,
	}
	m.Restart(intervals)
	return m
}

// Restart returns to Idle at position zero. A nil list keeps the current
// intervals; any other list replaces them.
func (m *Machine) Restart(intervals []domain.IntervalDefinition) {
	if intervals != nil {
		m.intervals = domain.CloneIntervals(intervals)
	}

	m.intervalIdx = 0
	m.repeatIdx = 0
	m.running = false
	m.firstRun = true
	m.finished = false
	m.completed = make(map[string]int)
	m.countdownRemaining = 0
	m.timeLeft = 0

	if len(m.intervals) > 0 {
		first := m.intervals[0]
		m.countdownRemaining = first.CountdownSeconds
		m.timeLeft = first.DurationSeconds
	}

	m.notifier.Stop()
}

// CanStart reports whether Start would succeed.
func (m *Machine) CanStart() bool {
	return len(m.intervals) > 0 && !m.finished
}

// Start begins or resumes ticking. The first interval's countdown applies only
// on the first Start of a run.
func (m *Machine) Start() error {
	if len(m.intervals) == 0 {
		return ErrNoIntervals
	}
	if m.finished {
		return ErrFinished
	}
	if m.running {
		return nil
	}

	m.running = true
	m.firstRun = false

	if m.countdownRemaining == 0 {
		m.beginRunning()
	}
	return nil
}

// Pause stops ticking without losing the position.
func (m *Machine) Pause() {
	if !m.running {
		return
	}
	m.running = false
	m.notifier.Stop()
}

// Tick advances the clock by one second. It is a no-op unless running.
func (m *Machine) Tick() {
	if !m.running {
		return
	}

	if m.countdownRemaining > 0 {
		m.countdownRemaining--
		if m.countdownRemaining == 0 {
			m.beginRunning()
		}
		return
	}

	if m.timeLeft > 0 {
		m.timeLeft--
	}
	if m.timeLeft == 0 {
		m.advance()
		m.settle()
	}
}

// Skip completes the current repeat immediately. It moves forward exactly one
// step: next repeat, next interval or finish.
func (m *Machine) Skip() error {
	if len(m.intervals) == 0 {
		return ErrNoIntervals
	}
	if m.finished {
		return ErrFinished
	}

	// the pre-roll belongs to the first interval
	m.countdownRemaining = 0
	m.advance()
	if m.running {
		m.settle()
	}
	return nil
}

// beginRunning is the CountingDown -> Running edge.
func (m *Machine) beginRunning() {
	cur := m.intervals[m.intervalIdx]
	if m.timeLeft == 0 {
		m.timeLeft = cur.DurationSeconds
	}
	m.notify(cur)
	m.settle()
}

// settle completes zero-length repeats so they consume no ticks.
func (m *Machine) settle() {
	for m.running && !m.finished && m.countdownRemaining == 0 && m.timeLeft == 0 {
		m.advance()
	}
}

func (m *Machine) advance() {
	cur := m.intervals[m.intervalIdx]
	m.completed[cur.Name]++

	switch {
	case m.repeatIdx < cur.RepeatCount-1:
		m.repeatIdx++
		m.timeLeft = cur.DurationSeconds
		if m.running {
			m.notify(cur)
		}

	case m.intervalIdx < len(m.intervals)-1:
		m.intervalIdx++
		m.repeatIdx = 0
		next := m.intervals[m.intervalIdx]
		m.timeLeft = next.DurationSeconds
		if m.running {
			m.notify(next)
		}

	default:
		m.timeLeft = 0
		m.running = false
		m.finished = true
		m.notifier.Stop()
		m.recorder.RecordSession(domain.CloneIntervals(m.intervals), m.completedCopy())
	}
}

func (m *Machine) notify(interval domain.IntervalDefinition) {
	if interval.Kind == domain.KindAction {
		m.notifier.Play(interval)
		return
	}
	m.notifier.Stop()
}

func (m *Machine) completedCopy() map[string]int {
	out := make(map[string]int, len(m.completed))
	for k, v := range m.completed {
		out[k] = v
	}
	return out
}

type nopNotifier struct{}

func (nopNotifier) Play(domain.IntervalDefinition) {}
func (nopNotifier) Stop()                          {}

type nopRecorder struct{}

func (nopRecorder) RecordSession([]domain.IntervalDefinition, map[string]int) {}
