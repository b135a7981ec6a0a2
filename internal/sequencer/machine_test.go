package sequencer_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/hperssn/dojo/internal/domain"
	"github.com/hperssn/dojo/internal/sequencer"
)

type fakeNotifier struct {
	playing bool
	plays   []string
	stops   int
}

func (f *fakeNotifier) Play(d domain.IntervalDefinition) {
	f.playing = true
	f.plays = append(f.plays, d.Name)
}

func (f *fakeNotifier) Stop() {
	f.playing = false
	f.stops++
}

type fakeRecorder struct {
	runs      int
	intervals []domain.IntervalDefinition
	completed map[string]int
}

func (f *fakeRecorder) RecordSession(intervals []domain.IntervalDefinition, completed map[string]int) {
	f.runs++
	f.intervals = intervals
	f.completed = completed
}

func exampleIntervals() []domain.IntervalDefinition {
	return []domain.IntervalDefinition{
		{Name: "Warm-up", DurationSeconds: 60, RepeatCount: 1, CountdownSeconds: 3, Kind: domain.KindAction},
		{Name: "Exercise", DurationSeconds: 120, RepeatCount: 3, Kind: domain.KindAction},
		{Name: "Rest", DurationSeconds: 60, RepeatCount: 2, Kind: domain.KindPause},
	}
}

func newMachine(defs []domain.IntervalDefinition) (*sequencer.Machine, *fakeNotifier, *fakeRecorder) {
	n := &fakeNotifier{}
	r := &fakeRecorder{}
	return sequencer.New(defs, n, r), n, r
}

type fataler interface {
	Fatalf(format string, args ...any)
}

func runToEnd(t fataler, m *sequencer.Machine, limit int) int {
	ticks := 0
	for m.Phase() != sequencer.PhaseFinished {
		if ticks > limit {
			t.Fatalf("machine did not finish within %d ticks", limit)
		}
		m.Tick()
		ticks++
	}
	return ticks
}

func TestMachine_ExampleRun(t *testing.T) {
	m, n, r := newMachine(exampleIntervals())

	require.NoError(t, m.Start())
	assert.Equal(t, sequencer.PhaseCountingDown, m.Phase())

	ticks := runToEnd(t, m, 10_000)

	assert.Equal(t, 3+60+3*120+2*60, ticks)
	assert.Equal(t, map[string]int{"Warm-up": 1, "Exercise": 3, "Rest": 2}, m.Snapshot().CompletedRepeats)
	assert.Equal(t, 1, r.runs)
	assert.Equal(t, map[string]int{"Warm-up": 1, "Exercise": 3, "Rest": 2}, r.completed)
	assert.Len(t, r.intervals, 3)
	assert.False(t, n.playing)
	assert.Equal(t, []string{"Warm-up", "Exercise", "Exercise", "Exercise"}, n.plays)

	s := m.Snapshot()
	assert.False(t, s.IsRunning)
	assert.True(t, s.Finished)
	assert.False(t, s.CanStart)
	assert.Equal(t, 540, s.ElapsedSeconds)
	assert.Zero(t, s.RemainingSeconds)
}

func TestMachine_CountdownAppliesOnce(t *testing.T) {
	m, n, _ := newMachine(exampleIntervals())

	s := m.Snapshot()
	assert.Equal(t, sequencer.PhaseIdle, s.Phase)
	assert.True(t, s.IsFirstRun)
	assert.Equal(t, 3, s.CountdownRemaining)
	assert.Equal(t, 60, s.TimeLeft)

	require.NoError(t, m.Start())
	assert.False(t, m.Snapshot().IsFirstRun)
	assert.Empty(t, n.plays, "metronome waits for the countdown")

	for i := 0; i < 3; i++ {
		assert.Equal(t, 60, m.Snapshot().TimeLeft)
		m.Tick()
	}
	s = m.Snapshot()
	assert.Equal(t, sequencer.PhaseRunning, s.Phase)
	assert.Zero(t, s.CountdownRemaining)
	assert.Equal(t, 60, s.TimeLeft)
	assert.Equal(t, []string{"Warm-up"}, n.plays)

	// pause and resume must not bring the countdown back
	m.Tick()
	m.Pause()
	require.NoError(t, m.Start())
	s = m.Snapshot()
	assert.Equal(t, sequencer.PhaseRunning, s.Phase)
	assert.Zero(t, s.CountdownRemaining)
	assert.Equal(t, 59, s.TimeLeft)
}

func TestMachine_PauseFreezesClock(t *testing.T) {
	m, n, _ := newMachine(exampleIntervals())
	require.NoError(t, m.Start())
	for i := 0; i < 10; i++ {
		m.Tick()
	}
	before := m.Snapshot()
	require.True(t, n.playing)

	m.Pause()
	assert.False(t, n.playing)
	for i := 0; i < 5; i++ {
		m.Tick()
	}

	after := m.Snapshot()
	assert.Equal(t, sequencer.PhaseIdle, after.Phase)
	assert.Equal(t, before.TimeLeft, after.TimeLeft)
	assert.Equal(t, before.CountdownRemaining, after.CountdownRemaining)
	assert.Equal(t, before.CurrentIntervalIndex, after.CurrentIntervalIndex)

	require.NoError(t, m.Start())
	assert.True(t, n.playing)
	m.Tick()
	assert.Equal(t, before.TimeLeft-1, m.Snapshot().TimeLeft)
}

func TestMachine_PauseDuringCountdown(t *testing.T) {
	m, _, _ := newMachine(exampleIntervals())
	require.NoError(t, m.Start())
	m.Tick()

	m.Pause()
	m.Tick()
	assert.Equal(t, 2, m.Snapshot().CountdownRemaining)

	require.NoError(t, m.Start())
	assert.Equal(t, sequencer.PhaseCountingDown, m.Phase())
	m.Tick()
	assert.Equal(t, 1, m.Snapshot().CountdownRemaining)
}

func TestMachine_SkipSteps(t *testing.T) {
	tests := []struct {
		name       string
		skips      int
		wantIdx    int
		wantRepeat int
		wantLeft   int
		finished   bool
	}{
		{name: "one skip leaves warm-up", skips: 1, wantIdx: 1, wantRepeat: 0, wantLeft: 120},
		{name: "second skip is next repeat", skips: 2, wantIdx: 1, wantRepeat: 1, wantLeft: 120},
		{name: "into rest", skips: 4, wantIdx: 2, wantRepeat: 0, wantLeft: 60},
		{name: "last repeat of rest", skips: 5, wantIdx: 2, wantRepeat: 1, wantLeft: 60},
		{name: "finish", skips: 6, wantIdx: 2, wantRepeat: 1, wantLeft: 0, finished: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, r := newMachine(exampleIntervals())
			require.NoError(t, m.Start())
			m.Tick()

			for i := 0; i < tt.skips; i++ {
				require.NoError(t, m.Skip())
			}

			s := m.Snapshot()
			assert.Equal(t, tt.wantIdx, s.CurrentIntervalIndex)
			assert.Equal(t, tt.wantRepeat, s.CurrentRepeatIndex)
			assert.Equal(t, tt.wantLeft, s.TimeLeft)
			assert.Equal(t, tt.finished, s.Finished)
			assert.Zero(t, s.CountdownRemaining, "skip consumes the countdown")
			if tt.finished {
				assert.Equal(t, 1, r.runs)
				assert.ErrorIs(t, m.Skip(), sequencer.ErrFinished)
			} else {
				assert.Zero(t, r.runs)
				assert.True(t, s.IsRunning)
			}
		})
	}
}

func TestMachine_SkipWhileIdleDoesNotStart(t *testing.T) {
	m, n, _ := newMachine(exampleIntervals())

	require.NoError(t, m.Skip())
	s := m.Snapshot()
	assert.False(t, s.IsRunning)
	assert.Equal(t, 1, s.CurrentIntervalIndex)
	assert.Equal(t, map[string]int{"Warm-up": 1}, s.CompletedRepeats)
	assert.Empty(t, n.plays)

	require.NoError(t, m.Start())
	assert.Equal(t, sequencer.PhaseRunning, m.Phase())
	assert.Equal(t, []string{"Exercise"}, n.plays)
}

func TestMachine_MetronomeFollowsKind(t *testing.T) {
	defs := []domain.IntervalDefinition{
		{Name: "Kihon", DurationSeconds: 2, RepeatCount: 2, Kind: domain.KindAction, TempoID: "fast"},
		{Name: "Pause", DurationSeconds: 1, RepeatCount: 1, Kind: domain.KindPause},
		{Name: "Kata", DurationSeconds: 1, RepeatCount: 1, Kind: domain.KindAction},
	}
	m, n, _ := newMachine(defs)
	require.NoError(t, m.Start())
	assert.True(t, n.playing)

	m.Tick()
	m.Tick() // second repeat of Kihon
	assert.True(t, n.playing)
	assert.Equal(t, []string{"Kihon", "Kihon"}, n.plays)

	m.Tick()
	m.Tick() // into Pause
	assert.False(t, n.playing)

	m.Tick() // into Kata
	assert.True(t, n.playing)

	m.Tick()
	assert.False(t, n.playing)
	assert.Equal(t, sequencer.PhaseFinished, m.Phase())
}

func TestMachine_Restart(t *testing.T) {
	m, n, _ := newMachine(exampleIntervals())
	require.NoError(t, m.Start())
	for i := 0; i < 100; i++ {
		m.Tick()
	}
	require.NoError(t, m.Skip())
	require.True(t, n.playing)

	m.Restart(nil)

	s := m.Snapshot()
	assert.Equal(t, sequencer.PhaseIdle, s.Phase)
	assert.Zero(t, s.CurrentIntervalIndex)
	assert.Zero(t, s.CurrentRepeatIndex)
	assert.Equal(t, 60, s.TimeLeft)
	assert.Equal(t, 3, s.CountdownRemaining)
	assert.True(t, s.IsFirstRun)
	assert.Empty(t, s.CompletedRepeats)
	assert.False(t, n.playing)
	assert.Len(t, s.Intervals, 3)
}

func TestMachine_RestartWithNewList(t *testing.T) {
	m, _, _ := newMachine(exampleIntervals())
	require.NoError(t, m.Start())
	for i := 0; i < 70; i++ {
		m.Tick()
	}

	next := []domain.IntervalDefinition{{Name: "Kumite", DurationSeconds: 90, RepeatCount: 4, CountdownSeconds: 5}}
	m.Restart(next)
	next[0].Name = "mutated"

	s := m.Snapshot()
	require.Len(t, s.Intervals, 1)
	assert.Equal(t, "Kumite", s.Intervals[0].Name)
	assert.Equal(t, 90, s.TimeLeft)
	assert.Equal(t, 5, s.CountdownRemaining)
	assert.False(t, s.IsRunning)
}

func TestMachine_FinishedBlocksStart(t *testing.T) {
	m, _, r := newMachine([]domain.IntervalDefinition{{Name: "Bow", DurationSeconds: 1, RepeatCount: 1}})
	require.NoError(t, m.Start())
	m.Tick()
	require.Equal(t, sequencer.PhaseFinished, m.Phase())

	assert.ErrorIs(t, m.Start(), sequencer.ErrFinished)
	assert.False(t, m.CanStart())

	m.Restart(nil)
	require.NoError(t, m.Start())
	m.Tick()
	assert.Equal(t, 2, r.runs)
}

func TestMachine_EmptyList(t *testing.T) {
	m, _, _ := newMachine(nil)

	assert.ErrorIs(t, m.Start(), sequencer.ErrNoIntervals)
	assert.ErrorIs(t, m.Skip(), sequencer.ErrNoIntervals)
	m.Tick()

	s := m.Snapshot()
	assert.False(t, s.CanStart)
	assert.Equal(t, sequencer.PhaseIdle, s.Phase)
	assert.Empty(t, s.Timeline)
	_, ok := s.Current()
	assert.False(t, ok)
}

func TestMachine_ZeroDurationConsumesNoTicks(t *testing.T) {
	defs := []domain.IntervalDefinition{
		{Name: "Bow", DurationSeconds: 0, RepeatCount: 2},
		{Name: "Kata", DurationSeconds: 3, RepeatCount: 1},
		{Name: "Bow out", DurationSeconds: 0, RepeatCount: 1},
	}
	m, _, r := newMachine(defs)
	require.NoError(t, m.Start())

	s := m.Snapshot()
	assert.Equal(t, 1, s.CurrentIntervalIndex)
	assert.Equal(t, 2, s.CompletedRepeats["Bow"])

	assert.Equal(t, 3, runToEnd(t, m, 10))
	assert.Equal(t, 1, r.completed["Bow out"])

	allZero, _, r2 := newMachine([]domain.IntervalDefinition{{Name: "Nothing", RepeatCount: 3}})
	require.NoError(t, allZero.Start())
	assert.Equal(t, sequencer.PhaseFinished, allZero.Phase())
	assert.Equal(t, 1, r2.runs)
}

func TestMachine_Timeline(t *testing.T) {
	m, _, _ := newMachine(exampleIntervals())
	require.NoError(t, m.Skip())
	require.NoError(t, m.Skip())

	s := m.Snapshot()
	require.Len(t, s.Timeline, 3)
	assert.Equal(t, sequencer.StatusPast, s.Timeline[0].Status)
	assert.Equal(t, sequencer.StatusCurrent, s.Timeline[1].Status)
	assert.Equal(t, 1, s.Timeline[1].RepeatsDone)
	assert.Equal(t, sequencer.StatusUpcoming, s.Timeline[2].Status)
	assert.Equal(t, 60+120, s.ElapsedSeconds)
	assert.Equal(t, 540-180, s.RemainingSeconds)
}

func genIntervals(t *rapid.T) []domain.IntervalDefinition {
	n := rapid.IntRange(1, 6).Draw(t, "n")
	defs := make([]domain.IntervalDefinition, n)
	for i := range defs {
		defs[i] = domain.IntervalDefinition{
			Name:             fmt.Sprintf("interval-%d", i),
			DurationSeconds:  rapid.IntRange(0, 20).Draw(t, "duration"),
			CountdownSeconds: rapid.IntRange(0, 5).Draw(t, "countdown"),
			RepeatCount:      rapid.IntRange(1, 4).Draw(t, "repeat"),
			Kind:             domain.Kind(rapid.IntRange(0, 2).Draw(t, "kind")),
		}
	}
	return defs
}

func TestMachine_RunLengthProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		defs := genIntervals(rt)
		m, n, r := newMachine(defs)

		if err := m.Start(); err != nil {
			rt.Fatalf("start: %v", err)
		}
		ticks := runToEnd(rt, m, 10_000)

		want := domain.TotalSeconds(defs) + defs[0].CountdownSeconds
		if ticks != want {
			rt.Fatalf("ticks = %d, want %d", ticks, want)
		}
		for _, d := range defs {
			if got := r.completed[d.Name]; got != d.RepeatCount {
				rt.Fatalf("completed[%s] = %d, want %d", d.Name, got, d.RepeatCount)
			}
		}
		if r.runs != 1 {
			rt.Fatalf("recorder called %d times", r.runs)
		}
		if n.playing {
			rt.Fatalf("metronome still playing after finish")
		}
	})
}

func position(defs []domain.IntervalDefinition, s sequencer.State) int {
	pos := 0
	for _, d := range defs[:s.CurrentIntervalIndex] {
		pos += d.RepeatCount
	}
	return pos + s.CurrentRepeatIndex
}

func TestMachine_SkipProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		defs := genIntervals(rt)
		for i := range defs {
			// zero-length repeats collapse while running, keep the step count exact
			if defs[i].DurationSeconds == 0 {
				defs[i].DurationSeconds = 1
			}
		}
		m, _, _ := newMachine(defs)
		if rapid.Bool().Draw(rt, "started") {
			_ = m.Start()
		}
		for i := rapid.IntRange(0, 10).Draw(rt, "ticks"); i > 0; i-- {
			m.Tick()
		}

		steps := 0
		for _, d := range defs {
			steps += d.RepeatCount
		}

		for m.Phase() != sequencer.PhaseFinished {
			before := position(defs, m.Snapshot())
			if err := m.Skip(); err != nil {
				rt.Fatalf("skip: %v", err)
			}
			s := m.Snapshot()
			if s.Finished {
				if before != steps-1 {
					rt.Fatalf("finished from position %d of %d", before, steps)
				}
				continue
			}
			if after := position(defs, s); after != before+1 {
				rt.Fatalf("skip moved from %d to %d", before, after)
			}
		}
	})
}
