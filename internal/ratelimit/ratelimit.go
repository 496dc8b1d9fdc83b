// Package ratelimit implements Strategy A's per-model admission control:
// a sliding-window requests-per-minute counter, a UTC-calendar-date-keyed
// requests-per-day counter, and an explicit block_until mechanism for
// providers that return a 429 with a retry hint.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Budget is the admission budget for one model. Zero RPM/RPD/TPM means
// unconstrained, appropriate for a local fallback provider.
type Budget struct {
	RPM int
	RPD int
	TPM int
}

type tracker struct {
	minuteCalls []time.Time
	dayCalls    int
	dayStart    string // UTC date, YYYY-MM-DD
}

// Limiter tracks per-model call windows and explicit blocks. All state is
// guarded by a single mutex; Admit releases it before sleeping so other
// goroutines can keep progressing.
type Limiter struct {
	mu          sync.Mutex
	trackers    map[string]*tracker
	blocks      map[string]time.Time
	tpmLimiters map[string]*rate.Limiter
	now         func() time.Time
	sleep       func(time.Duration)
}

// New creates an empty Limiter.
func New() *Limiter {
	return &Limiter{
		trackers:    map[string]*tracker{},
		blocks:      map[string]time.Time{},
		tpmLimiters: map[string]*rate.Limiter{},
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// WaitTokens gates a call of the given estimated token size against
// model's TPM budget, blocking until the token bucket has capacity. TPM
// is smoothed with a continuous token bucket (golang.org/x/time/rate)
// rather than the exact sliding/calendar windows the RPM/RPD trackers
// keep; token counts are estimates anyway, so an exact window boundary
// buys nothing. A zero TPM budget is unconstrained and returns
// immediately.
func (l *Limiter) WaitTokens(ctx context.Context, model string, tpm, tokens int) error {
	if tpm <= 0 || tokens <= 0 {
		return nil
	}

	l.mu.Lock()
	lim, ok := l.tpmLimiters[model]
	if !ok {
		burst := tpm
		if tokens > burst {
			burst = tokens
		}
		lim = rate.NewLimiter(rate.Limit(float64(tpm)/60.0), burst)
		l.tpmLimiters[model] = lim
	}
	l.mu.Unlock()

	return lim.WaitN(ctx, tokens)
}

// SetClock overrides the Limiter's time source. Exposed for callers that
// need deterministic tests across package boundaries; production code
// never needs to call this.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *Limiter) getTracker(model string) *tracker {
	today := l.now().UTC().Format("2006-01-02")
	t, ok := l.trackers[model]
	if !ok {
		t = &tracker{dayStart: today}
		l.trackers[model] = t
	}
	if t.dayStart != today {
		t.dayCalls = 0
		t.dayStart = today
	}
	return t
}

// Outcome is the result of an Admit call.
type Outcome int

const (
	// Admitted means the caller may proceed immediately.
	Admitted Outcome = iota
	// Blocked means the model is under an explicit BlockUntil and the
	// cascade should skip to the next model.
	Blocked
	// DailyLimitReached means RPD is exhausted for today; the cascade
	// should skip to the next model.
	DailyLimitReached
)

// Admit checks model against its budget. If the minute window is full and
// block is true, Admit sleeps (outside the lock) until the oldest call in
// the window ages out, then re-checks. If block is false it returns
// Blocked immediately instead of sleeping.
//
// Returns (outcome, waited). waited is the total time spent sleeping.
func (l *Limiter) Admit(model string, budget Budget, block bool) (Outcome, time.Duration) {
	var waited time.Duration
	for {
		if until, ok := l.isBlocked(model); ok {
			_ = until
			return Blocked, waited
		}

		l.mu.Lock()
		now := l.now()
		t := l.getTracker(model)

		cutoff := now.Add(-60 * time.Second)
		live := t.minuteCalls[:0]
		for _, c := range t.minuteCalls {
			if c.After(cutoff) {
				live = append(live, c)
			}
		}
		t.minuteCalls = live

		if budget.RPD > 0 && t.dayCalls >= budget.RPD {
			tomorrow := now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
			wait := tomorrow.Sub(now)
			if block && wait > 0 {
				l.blockLocked(model, now.Add(wait))
			}
			l.mu.Unlock()
			return DailyLimitReached, waited
		}

		if budget.RPM > 0 && len(t.minuteCalls) >= budget.RPM {
			oldest := t.minuteCalls[0]
			for _, c := range t.minuteCalls {
				if c.Before(oldest) {
					oldest = c
				}
			}
			wait := 60*time.Second - now.Sub(oldest)
			if wait < 0 {
				wait = 0
			}
			l.mu.Unlock()

			if !block {
				return Blocked, waited
			}
			if wait > 0 {
				l.sleep(wait)
				waited += wait
			}
			continue
		}

		l.mu.Unlock()
		return Admitted, waited
	}
}

// RecordCall records a successful call against model's windows.
func (l *Limiter) RecordCall(model string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.getTracker(model)
	t.minuteCalls = append(t.minuteCalls, l.now())
	t.dayCalls++
}

// BlockUntil explicitly blocks model until ts, e.g. because a provider's
// 429 carried a retryDelay or X-RateLimit-Reset. reason is carried only
// for logging by the caller.
func (l *Limiter) BlockUntil(model string, ts time.Time, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blockLocked(model, ts)
	_ = reason
}

func (l *Limiter) blockLocked(model string, ts time.Time) {
	l.blocks[model] = ts
}

// isBlocked reports whether model is still under an explicit block,
// lazily clearing it once it has expired.
func (l *Limiter) isBlocked(model string) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	until, ok := l.blocks[model]
	if !ok {
		return time.Time{}, false
	}
	if !l.now().Before(until) {
		delete(l.blocks, model)
		return time.Time{}, false
	}
	return until, true
}
