// Package playback keeps the metronome state that an audio client follows.
package playback

import (
	"sync"
	"time"

	"github.com/hperssn/dojo/internal/domain"
	"github.com/hperssn/dojo/internal/metrics"
)

// TempoResolver looks up a tempo by id.
type TempoResolver interface {
	Resolve(id string) (domain.Tempo, bool)
}

// State is what the audio client needs to click along.
type State struct {
	Playing    bool          `json:"isMetronomePlaying"`
	BPM        int           `json:"currentBPM"`
	BeatPeriod time.Duration `json:"beatPeriodNs"`
	TempoID    string        `json:"tempoId,omitempty"`
}

// Metronome implements sequencer.Notifier.
type Metronome struct {
	mu       sync.Mutex
	tempos   TempoResolver
	state    State
	onChange func(State)
}

func NewMetronome(tempos TempoResolver) *Metronome {
	if tempos == nil {
		tempos = domain.TempoSet(nil)
	}
	return &Metronome{
		tempos: tempos,
		state: State{
			BPM:        domain.DefaultBPM,
			BeatPeriod: domain.BeatPeriod(domain.DefaultBPM),
		},
	}
}

// OnChange registers fn to run after every state change, outside the lock.
func (m *Metronome) OnChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// SetTempos swaps the tempo set used for later Play calls.
func (m *Metronome) SetTempos(tempos TempoResolver) {
	if tempos == nil {
		tempos = domain.TempoSet(nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tempos = tempos
}

// Play starts the click at the interval's tempo. Unresolved tempos fall back
// to domain.DefaultBPM.
func (m *Metronome) Play(interval domain.IntervalDefinition) {
	m.mu.Lock()
	bpm := domain.DefaultBPM
	tempoID := ""
	if t, ok := m.tempos.Resolve(interval.TempoID); ok && t.BPM > 0 {
		bpm = t.BPM
		tempoID = t.ID
	}

	wasPlaying := m.state.Playing
	m.state = State{
		Playing:    true,
		BPM:        bpm,
		BeatPeriod: domain.BeatPeriod(bpm),
		TempoID:    tempoID,
	}
	next, fn := m.state, m.onChange
	m.mu.Unlock()

	if !wasPlaying {
		metrics.MetronomeStarted()
	}
	if fn != nil {
		fn(next)
	}
}

func (m *Metronome) Stop() {
	m.mu.Lock()
	if !m.state.Playing {
		m.mu.Unlock()
		return
	}
	m.state.Playing = false
	next, fn := m.state, m.onChange
	m.mu.Unlock()

	metrics.MetronomeStopped()
	if fn != nil {
		fn(next)
	}
}

func (m *Metronome) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
