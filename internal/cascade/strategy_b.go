package cascade

import (
	"context"
	"sync"
)

// retryAfterAttempts is how far the global attempt counter must advance
// past a model's failedAtAttempt before the model becomes retry-eligible.
const retryAfterAttempts = 100

type failedEntry struct {
	model       *Model
	failedAt    int
	numFailures int
}

// StrategyB is the error-driven cascade: an ordered active list plus a
// failed FIFO queue. A success moves its model to the head of the active
// list; a failure moves it to the back of the failed queue, retry-eligible
// again once retryAfterAttempts global attempts have passed.
type StrategyB struct {
	mu sync.Mutex

	active []*Model
	failed []failedEntry

	totalAttempts int
	retryK        int

	byName map[string]*Model
}

// NewStrategyB builds an error-driven cascade over models in priority
// order.
func NewStrategyB(models []*Model) *StrategyB {
	active := make([]*Model, len(models))
	copy(active, models)

	byName := make(map[string]*Model, len(models))
	for _, m := range models {
		byName[m.Name] = m
	}

	return &StrategyB{
		active: active,
		byName: byName,
		retryK: retryAfterAttempts,
	}
}

// NextModel pops the first retry-eligible failed entry (FIFO) if one
// exists, otherwise returns the head of the active list.
func (s *StrategyB) NextModel(ctx context.Context) (*Model, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalAttempts++

	for i, fe := range s.failed {
		if s.totalAttempts-fe.failedAt >= s.retryK {
			s.failed = append(s.failed[:i:i], s.failed[i+1:]...)
			return fe.model, nil
		}
	}

	if len(s.active) > 0 {
		return s.active[0], nil
	}

	return nil, ErrCascadeExhausted
}

// RecordSuccess removes model from the failed queue if present and moves
// it to the front of the active list.
func (s *StrategyB) RecordSuccess(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeFromFailedLocked(model)
	s.removeFromActiveLocked(model)

	if m, ok := s.byName[model]; ok {
		s.active = append([]*Model{m}, s.active...)
	}
}

// RecordFailure removes model from the active list and appends/updates it
// in the failed FIFO queue with the current attempt counter.
func (s *StrategyB) RecordFailure(model string, _ error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeFromActiveLocked(model)

	for i := range s.failed {
		if s.failed[i].model.Name == model {
			s.failed[i].failedAt = s.totalAttempts
			s.failed[i].numFailures++
			return
		}
	}

	m, ok := s.byName[model]
	if !ok {
		return
	}
	s.failed = append(s.failed, failedEntry{model: m, failedAt: s.totalAttempts, numFailures: 1})
}

func (s *StrategyB) removeFromActiveLocked(model string) {
	out := s.active[:0]
	for _, m := range s.active {
		if m.Name != model {
			out = append(out, m)
		}
	}
	s.active = out
}

func (s *StrategyB) removeFromFailedLocked(model string) {
	out := s.failed[:0]
	for _, fe := range s.failed {
		if fe.model.Name != model {
			out = append(out, fe)
		}
	}
	s.failed = out
}
