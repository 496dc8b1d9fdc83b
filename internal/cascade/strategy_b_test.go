package cascade

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModels(names ...string) []*Model {
	var ms []*Model
	for _, n := range names {
		ms = append(ms, &Model{Name: n, Tier: "t"})
	}
	return ms
}

func TestStrategyBTriesActiveListInOrder(t *testing.T) {
	sb := NewStrategyB(newTestModels("a", "b", "c"))

	m, err := sb.NextModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", m.Name)
}

func TestStrategyBMovesFailedModelToQueueAndSuccessToFront(t *testing.T) {
	sb := NewStrategyB(newTestModels("a", "b", "c"))

	sb.RecordFailure("a", nil)
	m, err := sb.NextModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", m.Name, "a should have moved out of the active list")

	sb.RecordSuccess("c")
	m, err = sb.NextModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "c", m.Name, "a successful model moves to the head of the active list")
}

func TestStrategyBRetriesFailedModelAfterKAttempts(t *testing.T) {
	sb := NewStrategyB(newTestModels("a", "b"))

	sb.RecordFailure("a", nil) // failed at attempt 0: RecordFailure does not advance the counter

	var last *Model
	for i := 0; i < retryAfterAttempts; i++ {
		m, err := sb.NextModel(context.Background())
		require.NoError(t, err)
		last = m
	}
	// By the time totalAttempts - failedAt >= retryAfterAttempts, "a"
	// should be offered again ahead of the active list.
	assert.Equal(t, "a", last.Name)
}

func TestStrategyBNeverLoopsIndefinitelyAcrossAllFailSequence(t *testing.T) {
	sb := NewStrategyB(newTestModels("a", "b", "c"))
	attemptsPerModel := map[string]int{}

	const n = 500
	for i := 0; i < n; i++ {
		m, err := sb.NextModel(context.Background())
		if err != nil {
			// Every model is in the failed queue and none is
			// retry-eligible yet; totalAttempts still advanced, so this
			// can't recur forever. Not a same-model bound violation.
			continue
		}
		attemptsPerModel[m.Name]++
		sb.RecordFailure(m.Name, nil)
	}

	maxExpected := n/retryAfterAttempts + 1
	for name, count := range attemptsPerModel {
		assert.LessOrEqualf(t, count, maxExpected, "model %s attempted %d times, expected at most %d", name, count, maxExpected)
	}
}

func TestStrategyBExhaustedWhenNoModelsConfigured(t *testing.T) {
	sb := NewStrategyB(nil)
	_, err := sb.NextModel(context.Background())
	assert.ErrorIs(t, err, ErrCascadeExhausted)
}
