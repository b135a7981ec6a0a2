package runner

import (
	"github.com/hperssn/dojo/internal/domain"
	"github.com/hperssn/dojo/internal/playback"
	"github.com/hperssn/dojo/internal/sequencer"
)

type EventType string

const (
	EventState        EventType = "state"     // after a user command
	EventTick         EventType = "tick"      // one second elapsed
	EventPhase        EventType = "phase"     // phase changed during a tick
	EventMetronome    EventType = "metronome" // metronome started, stopped or changed bpm
	EventFinished     EventType = "finished"
	EventRecorded     EventType = "recorded"
	EventRecordFailed EventType = "record_failed"
)

type Event struct {
	Type      EventType                   `json:"type"`
	State     sequencer.State             `json:"state"`
	Metronome playback.State              `json:"metronome"`
	Entry     *domain.SessionHistoryEntry `json:"entry,omitempty"`
	Error     string                      `json:"error,omitempty"`
}

// Snapshot is the combined timer and metronome state.
type Snapshot struct {
	Timer     sequencer.State `json:"timer"`
	Metronome playback.State  `json:"metronome"`
}
