package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultBPM is used when an interval's tempo cannot be resolved.
const DefaultBPM = 60

var (
	ErrDuplicateBPM  = errors.New("tempo with this bpm already exists")
	ErrTempoNotFound = errors.New("tempo not found")
	ErrInvalidTempo  = errors.New("invalid tempo")
)

type Tempo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	BPM   int    `json:"bpm"`
}

func (t Tempo) Validate() error {
	if t.BPM <= 0 {
		return fmt.Errorf("%w: bpm must be positive", ErrInvalidTempo)
	}
	return nil
}

// BeatPeriod is the time between two clicks at bpm.
func BeatPeriod(bpm int) time.Duration {
	if bpm <= 0 {
		bpm = DefaultBPM
	}
	return time.Minute / time.Duration(bpm)
}

// TempoSet is an ordered set of tempos with unique ids and bpm values.
type TempoSet []Tempo

// Add returns a new set including t, rejecting a bpm that is already taken.
func (s TempoSet) Add(t Tempo) (TempoSet, error) {
	if err := t.Validate(); err != nil {
		return s, err
	}
	t.Label = strings.TrimSpace(t.Label)
	for _, existing := range s {
		if existing.BPM == t.BPM {
			return s, fmt.Errorf("%w: %d", ErrDuplicateBPM, t.BPM)
		}
		if existing.ID == t.ID {
			return s, fmt.Errorf("%w: duplicate id %q", ErrInvalidTempo, t.ID)
		}
	}
	out := make(TempoSet, 0, len(s)+1)
	out = append(out, s...)
	return append(out, t), nil
}

// Remove returns a new set without the tempo id.
func (s TempoSet) Remove(id string) (TempoSet, error) {
	for i, t := range s {
		if t.ID == id {
			out := make(TempoSet, 0, len(s)-1)
			out = append(out, s[:i]...)
			return append(out, s[i+1:]...), nil
		}
	}
	return s, fmt.Errorf("%w: %s", ErrTempoNotFound, id)
}

// Resolve looks a tempo up by id.
func (s TempoSet) Resolve(id string) (Tempo, bool) {
	if id == "" {
		return Tempo{}, false
	}
	for _, t := range s {
		if t.ID == id {
			return t, true
		}
	}
	return Tempo{}, false
}

// BPMFor returns the bpm for an interval, DefaultBPM when unresolved.
func (s TempoSet) BPMFor(d IntervalDefinition) int {
	if t, ok := s.Resolve(d.TempoID); ok && t.BPM > 0 {
		return t.BPM
	}
	return DefaultBPM
}
