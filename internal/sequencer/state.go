package sequencer

import (
	"fmt"

	"github.com/hperssn/dojo/internal/domain"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCountingDown
	PhaseRunning
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCountingDown:
		return "counting_down"
	case PhaseRunning:
		return "running"
	case PhaseFinished:
		return "finished"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

type TimelineStatus string

const (
	StatusPast     TimelineStatus = "past"
	StatusCurrent  TimelineStatus = "current"
	StatusUpcoming TimelineStatus = "upcoming"
)

// TimelineEntry describes one interval for the read-only timeline view.
type TimelineEntry struct {
	Index       int            `json:"index"`
	Name        string         `json:"name"`
	Kind        domain.Kind    `json:"kind"`
	Status      TimelineStatus `json:"status"`
	RepeatCount int            `json:"repeatCount"`
	RepeatsDone int            `json:"repeatsDone"`
}

// State is a copy of the machine's observable state.
type State struct {
	Phase                Phase                       `json:"phase"`
	Intervals            []domain.IntervalDefinition `json:"intervals"`
	CurrentIntervalIndex int                         `json:"currentIntervalIndex"`
	CurrentRepeatIndex   int                         `json:"currentRepeatIndex"`
	CountdownRemaining   int                         `json:"countdownRemaining"`
	TimeLeft             int                         `json:"timeLeft"`
	IsRunning            bool                        `json:"isRunning"`
	IsFirstRun           bool                        `json:"isFirstRun"`
	Finished             bool                        `json:"finished"`
	CanStart             bool                        `json:"canStart"`
	CompletedRepeats     map[string]int              `json:"completedRepeats"`
	ElapsedSeconds       int                         `json:"elapsedSeconds"`
	RemainingSeconds     int                         `json:"remainingSeconds"`
	Timeline             []TimelineEntry             `json:"timeline"`
}

// Current returns the interval under the pointer.
func (s State) Current() (domain.IntervalDefinition, bool) {
	if s.CurrentIntervalIndex < 0 || s.CurrentIntervalIndex >= len(s.Intervals) {
		return domain.IntervalDefinition{}, false
	}
	return s.Intervals[s.CurrentIntervalIndex], true
}

func (m *Machine) Phase() Phase {
	switch {
	case m.finished:
		return PhaseFinished
	case !m.running:
		return PhaseIdle
	case m.countdownRemaining > 0:
		return PhaseCountingDown
	default:
		return PhaseRunning
	}
}

func (m *Machine) Snapshot() State {
	total := domain.TotalSeconds(m.intervals)
	elapsed := m.elapsed(total)

	return State{
		Phase:                m.Phase(),
		Intervals:            domain.CloneIntervals(m.intervals),
		CurrentIntervalIndex: m.intervalIdx,
		CurrentRepeatIndex:   m.repeatIdx,
		CountdownRemaining:   m.countdownRemaining,
		TimeLeft:             m.timeLeft,
		IsRunning:            m.running,
		IsFirstRun:           m.firstRun,
		Finished:             m.finished,
		CanStart:             m.CanStart(),
		CompletedRepeats:     m.completedCopy(),
		ElapsedSeconds:       elapsed,
		RemainingSeconds:     total - elapsed,
		Timeline:             m.timeline(),
	}
}

func (m *Machine) elapsed(total int) int {
	if m.finished {
		return total
	}
	if len(m.intervals) == 0 {
		return 0
	}

	elapsed := 0
	for _, d := range m.intervals[:m.intervalIdx] {
		elapsed += d.TotalSeconds()
	}
	cur := m.intervals[m.intervalIdx]
	elapsed += m.repeatIdx * cur.DurationSeconds
	if m.timeLeft <= cur.DurationSeconds {
		elapsed += cur.DurationSeconds - m.timeLeft
	}
	return elapsed
}

func (m *Machine) timeline() []TimelineEntry {
	entries := make([]TimelineEntry, len(m.intervals))
	for i, d := range m.intervals {
		entry := TimelineEntry{
			Index:       i,
			Name:        d.Name,
			Kind:        d.Kind,
			RepeatCount: d.RepeatCount,
		}

		switch {
		case m.finished || i < m.intervalIdx:
			entry.Status = StatusPast
			entry.RepeatsDone = d.RepeatCount
		case i == m.intervalIdx:
			entry.Status = StatusCurrent
			entry.RepeatsDone = m.repeatIdx
		default:
			entry.Status = StatusUpcoming
		}
		entries[i] = entry
	}
	return entries
}
