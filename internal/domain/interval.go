package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidInterval = errors.New("invalid interval")

// Kind classifies an interval.
type Kind int

const (
	KindAction Kind = iota
	KindPause
	KindCountDown
)

var kindNames = map[Kind]string{
	KindAction:    "Action",
	KindPause:     "Pause",
	KindCountDown: "CountDown",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind accepts the kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidInterval, s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("%w: unknown kind %d", ErrInvalidInterval, int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// IntervalDefinition is one named phase of a training run.
type IntervalDefinition struct {
	ID               string `json:"id" yaml:"id,omitempty"`
	Name             string `json:"name" yaml:"name"`
	DurationSeconds  int    `json:"durationSeconds" yaml:"duration"`
	CountdownSeconds int    `json:"countdownSeconds" yaml:"countdown,omitempty"`
	RepeatCount      int    `json:"repeatCount" yaml:"repeat"`
	Kind             Kind   `json:"kind" yaml:"kind"`
	TempoID          string `json:"tempoId,omitempty" yaml:"tempo,omitempty"`
}

// UnmarshalJSON defaults a missing repeat count to one.
func (d *IntervalDefinition) UnmarshalJSON(data []byte) error {
	type plain IntervalDefinition
	p := plain{RepeatCount: 1}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = IntervalDefinition(p)
	return nil
}

// Validate checks the numeric invariants of a definition.
func (d IntervalDefinition) Validate() error {
	switch {
	case d.DurationSeconds < 0:
		return fmt.Errorf("%w: duration must not be negative", ErrInvalidInterval)
	case d.CountdownSeconds < 0:
		return fmt.Errorf("%w: countdown must not be negative", ErrInvalidInterval)
	case d.RepeatCount < 1:
		return fmt.Errorf("%w: repeat count must be at least 1", ErrInvalidInterval)
	}
	if _, ok := kindNames[d.Kind]; !ok {
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidInterval, int(d.Kind))
	}
	if d.Kind == KindAction && strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: action interval needs a name", ErrInvalidInterval)
	}
	return nil
}

// Normalize returns the definition as it is stored after an edit: non-Action
// intervals are named after their kind and carry no tempo.
func (d IntervalDefinition) Normalize() IntervalDefinition {
	d.Name = strings.TrimSpace(d.Name)
	if d.Kind != KindAction {
		d.Name = d.Kind.String()
		d.TempoID = ""
	}
	return d
}

// TotalSeconds is the running time of all repeats.
func (d IntervalDefinition) TotalSeconds() int {
	return d.DurationSeconds * d.RepeatCount
}

// ValidateAll validates every definition of a list.
func ValidateAll(defs []IntervalDefinition) error {
	for i, d := range defs {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("interval %d: %w", i, err)
		}
	}
	return nil
}

// TotalSeconds sums the running time of a list, countdown excluded.
func TotalSeconds(defs []IntervalDefinition) int {
	total := 0
	for _, d := range defs {
		total += d.TotalSeconds()
	}
	return total
}

// CloneIntervals returns a copy that does not share the backing array.
func CloneIntervals(defs []IntervalDefinition) []IntervalDefinition {
	if defs == nil {
		return nil
	}
	out := make([]IntervalDefinition, len(defs))
	copy(out, defs)
	return out
}

// DefaultIntervals is the built-in template used when nothing is stored.
func DefaultIntervals() []IntervalDefinition {
	return []IntervalDefinition{
		{ID: "default-warm-up", Name: "Warm-up", DurationSeconds: 60, CountdownSeconds: 3, RepeatCount: 1, Kind: KindAction},
		{ID: "default-exercise", Name: "Exercise", DurationSeconds: 120, RepeatCount: 3, Kind: KindAction},
		{ID: "default-rest", Name: "Rest", DurationSeconds: 60, RepeatCount: 2, Kind: KindPause},
	}
}
