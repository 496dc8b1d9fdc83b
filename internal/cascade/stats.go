package cascade

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// TierSwitch records one transition from one model to another.
type TierSwitch struct {
	From      string
	To        string
	Reason    string
	Timestamp time.Time
}

type modelCounters struct {
	calls    int
	success  int
	failures int
}

// Stats collects per-model and per-tier counters behind one mutex.
type Stats struct {
	mu sync.Mutex

	counters map[string]*modelCounters
	tierTime map[string]time.Duration
	switches []TierSwitch

	currentModel string
	currentTier  string
	tierStarted  time.Time
	now          func() time.Time
}

// NewStats creates an empty Stats tracker.
func NewStats() *Stats {
	return &Stats{
		counters: map[string]*modelCounters{},
		tierTime: map[string]time.Duration{},
		now:      time.Now,
	}
}

func (s *Stats) counterFor(model string) *modelCounters {
	c, ok := s.counters[model]
	if !ok {
		c = &modelCounters{}
		s.counters[model] = c
	}
	return c
}

// RecordCall notes an attempt against model, belonging to tier.
func (s *Stats) RecordCall(model, tier, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counterFor(model).calls++

	if s.currentModel != model {
		now := s.now()
		if s.currentModel != "" {
			// The elapsed segment belongs to the tier being left.
			s.tierTime[s.currentTier] += now.Sub(s.tierStarted)
			s.switches = append(s.switches, TierSwitch{
				From: s.currentModel, To: model, Reason: reason, Timestamp: now,
			})
		}
		s.currentModel = model
		s.currentTier = tier
		s.tierStarted = now
	}
}

// RecordSuccess notes model succeeded.
func (s *Stats) RecordSuccess(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counterFor(model).success++
}

// RecordFailure notes model failed.
func (s *Stats) RecordFailure(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counterFor(model).failures++
}

// Snapshot is an immutable copy of the current statistics, safe to format
// or compare without holding the Stats lock.
type Snapshot struct {
	Calls    map[string]int
	Success  map[string]int
	Failures map[string]int
	TierTime map[string]time.Duration
	Switches []TierSwitch
}

// Snapshot returns a deep copy of the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Calls:    map[string]int{},
		Success:  map[string]int{},
		Failures: map[string]int{},
		TierTime: map[string]time.Duration{},
	}
	for model, c := range s.counters {
		snap.Calls[model] = c.calls
		snap.Success[model] = c.success
		snap.Failures[model] = c.failures
	}
	for tier, d := range s.tierTime {
		snap.TierTime[tier] = d
	}
	if s.currentModel != "" {
		// Fold in the still-open segment so a snapshot taken mid-run
		// accounts for all elapsed time.
		snap.TierTime[s.currentTier] += s.now().Sub(s.tierStarted)
	}
	snap.Switches = append(snap.Switches, s.switches...)
	return snap
}

// Summary renders a human-readable terminal summary, printed at stage
// shutdown.
func (snap Snapshot) Summary() string {
	var b strings.Builder
	b.WriteString("cascade statistics:\n")
	for model, calls := range snap.Calls {
		fmt.Fprintf(&b, "  %-40s calls=%-5d success=%-5d failures=%-5d\n",
			model, calls, snap.Success[model], snap.Failures[model])
	}
	for tier, d := range snap.TierTime {
		fmt.Fprintf(&b, "  tier %-12s time=%s\n", tier, d.Round(time.Second))
	}
	fmt.Fprintf(&b, "  tier switches: %d\n", len(snap.Switches))
	return b.String()
}
