package session

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)

func at(seconds float64) time.Time {
	return t0.Add(time.Duration(seconds * float64(time.Second)))
}

func TestAccumulator_FocusedTimeAndPercent(t *testing.T) {
	acc := New()
	acc.Start(t0)

	require.NoError(t, acc.Observe(at(1), true, 0.3))
	require.NoError(t, acc.Observe(at(3), true, 0.3))
	require.NoError(t, acc.Observe(at(3.5), false, 0.1))

	report, err := acc.Stop(at(4))
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, report.FocusedTime)
	assert.Equal(t, 4*time.Second, report.TotalElapsed)
	assert.InDelta(t, 75.0, report.FocusPercent, 1e-9)
	assert.Equal(t, BandMedium, report.Band())
	assert.Len(t, report.History, 3)
	assert.Equal(t, Completed, acc.State())
}

func TestAccumulator_StateMachine(t *testing.T) {
	t.Run("zero value is idle", func(t *testing.T) {
		var acc Accumulator
		assert.Equal(t, Idle, acc.State())
	})

	t.Run("observe before start", func(t *testing.T) {
		acc := New()
		assert.ErrorIs(t, acc.Observe(t0, true, 0.3), ErrNotRunning)
	})

	t.Run("stop before start", func(t *testing.T) {
		acc := New()
		_, err := acc.Stop(t0)
		assert.ErrorIs(t, err, ErrNotRunning)
	})

	t.Run("progress before start", func(t *testing.T) {
		acc := New()
		_, _, err := acc.ElapsedAndRemaining(t0, time.Minute)
		assert.ErrorIs(t, err, ErrNotRunning)
	})

	t.Run("observe after stop", func(t *testing.T) {
		acc := New()
		acc.Start(t0)
		_, err := acc.Stop(at(1))
		require.NoError(t, err)

		assert.ErrorIs(t, acc.Observe(at(2), true, 0.3), ErrNotRunning)
	})

	t.Run("stop twice returns identical report", func(t *testing.T) {
		acc := New()
		acc.Start(t0)
		require.NoError(t, acc.Observe(at(1), true, 0.3))
		require.NoError(t, acc.Observe(at(2), false, 0.1))

		first, err := acc.Stop(at(3))
		require.NoError(t, err)
		second, err := acc.Stop(at(10))
		require.NoError(t, err)

		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("second Stop() report mismatch (-first +second):\n%s", diff)
		}
	})

	t.Run("report history cannot be altered by callers", func(t *testing.T) {
		acc := New()
		acc.Start(t0)
		require.NoError(t, acc.Observe(at(1), true, 0.3))

		first, err := acc.Stop(at(2))
		require.NoError(t, err)
		first.History[0].Focused = false

		second, err := acc.Stop(at(2))
		require.NoError(t, err)
		assert.True(t, second.History[0].Focused)
	})

	t.Run("start while running restarts", func(t *testing.T) {
		acc := New()
		acc.Start(t0)
		require.NoError(t, acc.Observe(at(5), true, 0.3))

		acc.Start(at(10))
		assert.Equal(t, Running, acc.State())
		assert.Equal(t, time.Duration(0), acc.FocusedTime())
		assert.Equal(t, 0, acc.Len())
		assert.Equal(t, at(10), acc.StartTime())

		report, err := acc.Stop(at(12))
		require.NoError(t, err)
		assert.Equal(t, 2*time.Second, report.TotalElapsed)
		assert.Empty(t, report.History)
	})

	t.Run("start after completion begins a new session", func(t *testing.T) {
		acc := New()
		acc.Start(t0)
		_, err := acc.Stop(at(1))
		require.NoError(t, err)

		acc.Start(at(2))
		require.NoError(t, acc.Observe(at(3), true, 0.3))
		report, err := acc.Stop(at(4))
		require.NoError(t, err)
		assert.Equal(t, time.Second, report.FocusedTime)
	})
}

func TestAccumulator_History(t *testing.T) {
	acc := New()
	acc.Start(t0)

	const n = 25
	for i := 1; i <= n; i++ {
		require.NoError(t, acc.Observe(at(float64(i)*0.2), i%3 != 0, float64(i)/100))
	}

	history := acc.History()
	require.Len(t, history, n)
	assert.Equal(t, n, acc.Len())

	for i := 1; i < len(history); i++ {
		assert.GreaterOrEqual(t, history[i].Offset, history[i-1].Offset, "offsets must be non-decreasing")
	}
	for i, o := range history {
		assert.InDelta(t, float64(i+1)/100, o.Ratio, 1e-12, "observation %d out of call order", i)
	}
}

func TestAccumulator_NonMonotonicClock(t *testing.T) {
	acc := New()
	acc.Start(t0)

	require.NoError(t, acc.Observe(at(10), true, 0.3))
	before := acc.FocusedTime()

	// clock steps back five seconds
	require.NoError(t, acc.Observe(at(5), true, 0.3))
	assert.Equal(t, before, acc.FocusedTime(), "a backwards step must not change focused time")

	require.NoError(t, acc.Observe(at(11), true, 0.3))
	assert.Equal(t, 11*time.Second, acc.FocusedTime())

	history := acc.History()
	for i := 1; i < len(history); i++ {
		assert.GreaterOrEqual(t, history[i].Offset, history[i-1].Offset)
	}

	report, err := acc.Stop(at(8))
	require.NoError(t, err)
	assert.LessOrEqual(t, report.FocusedTime, report.TotalElapsed)
	assert.LessOrEqual(t, report.FocusPercent, 100.0)
}

func TestAccumulator_FocusedNeverExceedsElapsed(t *testing.T) {
	acc := New()
	acc.Start(t0)

	offsets := []float64{0.5, 0.4, 1.2, 1.2, 3, 2.9, 7}
	for _, off := range offsets {
		require.NoError(t, acc.Observe(at(off), true, 0.3))
		last := acc.History()[acc.Len()-1]
		assert.LessOrEqual(t, acc.FocusedTime(), last.Offset)
	}
}

func TestAccumulator_ZeroElapsed(t *testing.T) {
	acc := New()
	acc.Start(t0)

	report, err := acc.Stop(t0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, report.FocusPercent)
	assert.Equal(t, BandLow, report.Band())
}

func TestAccumulator_ElapsedAndRemaining(t *testing.T) {
	acc := New()
	acc.Start(t0)
	target := 10 * time.Minute

	tests := []struct {
		name          string
		now           time.Time
		wantElapsed   time.Duration
		wantRemaining time.Duration
	}{
		{name: "at start", now: t0, wantElapsed: 0, wantRemaining: target},
		{name: "midway", now: at(120), wantElapsed: 2 * time.Minute, wantRemaining: 8 * time.Minute},
		{name: "past target", now: at(900), wantElapsed: 15 * time.Minute, wantRemaining: 0},
		{name: "clock before start", now: at(-3), wantElapsed: 0, wantRemaining: target},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			elapsed, remaining, err := acc.ElapsedAndRemaining(tt.now, target)
			require.NoError(t, err)
			assert.Equal(t, tt.wantElapsed, elapsed)
			assert.Equal(t, tt.wantRemaining, remaining)
		})
	}

	assert.Equal(t, 0, acc.Len(), "progress queries must not record observations")
	assert.Equal(t, Running, acc.State())
}
