package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmitWithinBudget(t *testing.T) {
	l := New()
	budget := Budget{RPM: 3, RPD: 100}
	for i := 0; i < 3; i++ {
		outcome, waited := l.Admit("model-a", budget, false)
		require.Equal(t, Admitted, outcome)
		require.Zero(t, waited)
		l.RecordCall("model-a")
	}

	outcome, _ := l.Admit("model-a", budget, false)
	assert.Equal(t, Blocked, outcome, "4th call within the minute should be refused in non-blocking mode")
}

func TestAdmitNeverExceedsRPMInWindow(t *testing.T) {
	l := New()
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }
	budget := Budget{RPM: 5}

	for i := 0; i < 5; i++ {
		outcome, _ := l.Admit("m", budget, false)
		require.Equal(t, Admitted, outcome)
		l.RecordCall("m")
	}
	outcome, _ := l.Admit("m", budget, false)
	assert.Equal(t, Blocked, outcome)

	// Advance past the 60s window; the limiter must re-admit.
	fixed = fixed.Add(61 * time.Second)
	outcome, _ = l.Admit("m", budget, false)
	assert.Equal(t, Admitted, outcome)
}

func TestDailyLimitReached(t *testing.T) {
	l := New()
	budget := Budget{RPD: 2}
	l.RecordCall("m")
	l.RecordCall("m")
	outcome, _ := l.Admit("m", budget, false)
	assert.Equal(t, DailyLimitReached, outcome)
}

func TestDailyLimitResetsOnNewUTCDay(t *testing.T) {
	l := New()
	day1 := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return day1 }
	budget := Budget{RPD: 1}
	l.RecordCall("m")
	outcome, _ := l.Admit("m", budget, false)
	require.Equal(t, DailyLimitReached, outcome)

	day2 := time.Date(2026, 1, 2, 0, 1, 0, 0, time.UTC)
	l.now = func() time.Time { return day2 }
	outcome, _ = l.Admit("m", budget, false)
	assert.Equal(t, Admitted, outcome)
}

func TestBlockUntilAndLazyExpiry(t *testing.T) {
	l := New()
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	l.BlockUntil("m", fixed.Add(30*time.Second), "daily quota reached")
	outcome, _ := l.Admit("m", Budget{RPM: 100}, false)
	assert.Equal(t, Blocked, outcome)

	l.now = func() time.Time { return fixed.Add(31 * time.Second) }
	outcome, _ = l.Admit("m", Budget{RPM: 100}, false)
	assert.Equal(t, Admitted, outcome)
}

func TestAdmitBlockingSleepsUntilWindowClears(t *testing.T) {
	l := New()
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	var slept time.Duration
	l.sleep = func(d time.Duration) {
		slept += d
		fixed = fixed.Add(d) // simulate wall-clock advancing past the window
	}

	budget := Budget{RPM: 1}
	l.RecordCall("m")

	outcome, waited := l.Admit("m", budget, true)

	require.Equal(t, Admitted, outcome)
	assert.Equal(t, 60*time.Second, waited)
	assert.Equal(t, 60*time.Second, slept)
}

func TestWaitTokensIsNoopForUnconstrainedBudget(t *testing.T) {
	l := New()
	err := l.WaitTokens(context.Background(), "m", 0, 1000)
	assert.NoError(t, err)
}

func TestWaitTokensAdmitsWithinBurst(t *testing.T) {
	l := New()
	err := l.WaitTokens(context.Background(), "m", 10000, 500)
	assert.NoError(t, err)
}

func TestWaitTokensRespectsContextCancellation(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Exhaust the burst first so the next call would otherwise have to wait.
	require.NoError(t, l.WaitTokens(context.Background(), "m", 60, 60))
	err := l.WaitTokens(ctx, "m", 60, 60)
	assert.Error(t, err)
}
