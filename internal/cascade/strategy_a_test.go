package cascade

import (
	"context"
	"testing"
	"time"

	"github.com/bbiangul/legalpipe/internal/llm"
	"github.com/bbiangul/legalpipe/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func modelWithBudget(name string, rpm, rpd int) *Model {
	return &Model{
		Name: name,
		Tier: "remote",
		Config: llm.Config{
			Model: name,
			RPM:   rpm,
			RPD:   rpd,
		},
	}
}

func TestStrategyAPrefersFirstModelWhileAdmissible(t *testing.T) {
	limiter := ratelimit.New()
	models := []*Model{
		modelWithBudget("primary", 10, 1000),
		modelWithBudget("secondary", 10, 1000),
	}
	sa := NewStrategyA(models, limiter)

	m, err := sa.NextModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "primary", m.Name)
}

func TestStrategyAFallsThroughWhenDailyLimitReached(t *testing.T) {
	limiter := ratelimit.New()
	models := []*Model{
		modelWithBudget("primary", 10, 1),
		modelWithBudget("fallback", 0, 0),
	}
	sa := NewStrategyA(models, limiter)

	limiter.RecordCall("primary") // exhausts the RPD=1 budget

	m, err := sa.NextModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fallback", m.Name)
}

func TestStrategyARecordFailureAppliesRateLimitBlockUntil(t *testing.T) {
	limiter := ratelimit.New()
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.SetClock(func() time.Time { return fixed })

	models := []*Model{modelWithBudget("primary", 100, 1000), modelWithBudget("fallback", 0, 0)}
	sa := NewStrategyA(models, limiter)
	sa.now = func() time.Time { return fixed }

	sa.RecordFailure("primary", &llm.RateLimitError{Model: "primary", RetryAfter: 30 * time.Second})

	outcome, _ := limiter.Admit("primary", ratelimit.Budget{RPM: 100}, false)
	assert.Equal(t, ratelimit.Blocked, outcome)

	m, err := sa.NextModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fallback", m.Name, "primary is blocked, cascade should fall through")
}
