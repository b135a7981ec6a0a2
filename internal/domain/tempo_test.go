package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTempoSetRejectsDuplicateBPM(t *testing.T) {
	var set TempoSet
	set, err := set.Add(Tempo{ID: "slow", Label: "Slow", BPM: 60})
	require.NoError(t, err)

	_, err = set.Add(Tempo{ID: "also-slow", Label: "Also slow", BPM: 60})
	assert.ErrorIs(t, err, ErrDuplicateBPM)

	_, err = set.Add(Tempo{ID: "zero", BPM: 0})
	assert.ErrorIs(t, err, ErrInvalidTempo)

	set, err = set.Add(Tempo{ID: "fast", Label: "Fast", BPM: 120})
	require.NoError(t, err)
	assert.Len(t, set, 2)
}

func TestTempoSetRemoveAndResolve(t *testing.T) {
	set := TempoSet{{ID: "a", BPM: 80}, {ID: "b", BPM: 100}}

	assert.Equal(t, 100, set.BPMFor(IntervalDefinition{TempoID: "b"}))
	assert.Equal(t, DefaultBPM, set.BPMFor(IntervalDefinition{TempoID: "missing"}))
	assert.Equal(t, DefaultBPM, set.BPMFor(IntervalDefinition{}))

	rest, err := set.Remove("a")
	require.NoError(t, err)
	assert.Len(t, rest, 1)
	assert.Len(t, set, 2, "original set must not change")

	_, err = rest.Remove("a")
	assert.ErrorIs(t, err, ErrTempoNotFound)
}

func TestBeatPeriod(t *testing.T) {
	assert.Equal(t, time.Second, BeatPeriod(60))
	assert.Equal(t, 500*time.Millisecond, BeatPeriod(120))
	assert.Equal(t, time.Second, BeatPeriod(0))
}
