package cascade

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bbiangul/legalpipe/internal/llm"
	"github.com/bbiangul/legalpipe/internal/ratelimit"
)

// preferredRetryInterval is how often, while running on a fallback tier,
// StrategyA re-checks whether the preferred (first) tier has become
// admissible again.
const preferredRetryInterval = 10 * time.Minute

// StrategyA is the rate-limit-driven cascade: a static, config-declared
// model order (local fallback last), admission gated by a
// ratelimit.Limiter per model.
type StrategyA struct {
	mu      sync.Mutex
	models  []*Model
	budgets map[string]ratelimit.Budget
	limiter *ratelimit.Limiter

	lastPreferredCheck time.Time
	onPreferredTier    bool
	now                func() time.Time
}

// NewStrategyA builds a Strategy A cascade over models in priority order.
// Each model's RPM/RPD/TPM budget is taken from its Config; a zero limit
// is treated as unconstrained.
func NewStrategyA(models []*Model, limiter *ratelimit.Limiter) *StrategyA {
	budgets := make(map[string]ratelimit.Budget, len(models))
	for _, m := range models {
		budgets[m.Name] = ratelimit.Budget{RPM: m.Config.RPM, RPD: m.Config.RPD, TPM: m.Config.TPM}
	}
	return &StrategyA{
		models:          models,
		budgets:         budgets,
		limiter:         limiter,
		onPreferredTier: true,
		now:             time.Now,
	}
}

// NextModel returns the first model (in priority order) currently
// admissible under the rate limiter, blocking on the first admissible-
// but-momentarily-throttled model rather than skipping past it, since
// skipping would abandon priority order. If every model is exhausted
// (DailyLimitReached or explicitly blocked), it falls through to the
// local fallback (the last entry), which carries no budget.
//
// Once the cascade has fallen off the preferred (first) model, it does
// not re-check that model on every single call — an exhausted daily quota
// won't clear until tomorrow regardless — but re-checks it at most once
// per preferredRetryInterval.
func (s *StrategyA) NextModel(ctx context.Context) (*Model, error) {
	s.mu.Lock()
	candidates := make([]*Model, len(s.models))
	copy(candidates, s.models)
	skipPreferred := len(s.models) > 1 && !s.onPreferredTier &&
		s.now().Sub(s.lastPreferredCheck) < preferredRetryInterval
	if !skipPreferred && len(s.models) > 0 {
		s.lastPreferredCheck = s.now()
	}
	s.mu.Unlock()

	start := 0
	if skipPreferred {
		start = 1
	}

	for i := start; i < len(candidates); i++ {
		m := candidates[i]
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		budget := s.budgets[m.Name]
		outcome, _ := s.limiter.Admit(m.Name, budget, true)
		switch outcome {
		case ratelimit.Admitted:
			s.noteTier(i == 0)
			return m, nil
		case ratelimit.DailyLimitReached, ratelimit.Blocked:
			continue
		}
	}

	return nil, ErrCascadeExhausted
}

func (s *StrategyA) noteTier(onPreferred bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPreferredTier = onPreferred
}

// RecordSuccess records the call against the limiter's per-minute/per-day
// counters.
func (s *StrategyA) RecordSuccess(model string) {
	s.limiter.RecordCall(model)
}

// WaitTokens gates a call against model's TPM budget, implementing
// cascade.TokenGater so Cascade.attemptModel can throttle large prompts
// before dispatch.
func (s *StrategyA) WaitTokens(ctx context.Context, model string, tokens int) error {
	return s.limiter.WaitTokens(ctx, model, s.budgets[model].TPM, tokens)
}

// RecordFailure applies a *llm.RateLimitError's retry hint to the
// limiter's BlockUntil: a DailyReset takes precedence (the model is dead
// for the rest of the UTC day), otherwise RetryAfter blocks the model for
// that window.
func (s *StrategyA) RecordFailure(model string, err error) {
	var rle *llm.RateLimitError
	if !errors.As(err, &rle) {
		return
	}
	now := s.now()
	if !rle.DailyReset.IsZero() {
		s.limiter.BlockUntil(model, rle.DailyReset, "daily quota reached")
		return
	}
	s.limiter.BlockUntil(model, now.Add(rle.RetryAfter), "rate limited")
}
