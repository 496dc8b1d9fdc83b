package cascade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsRecordsCallsSuccessAndFailures(t *testing.T) {
	s := NewStats()
	s.RecordCall("a", "tier1", "")
	s.RecordSuccess("a")
	s.RecordCall("a", "tier1", "")
	s.RecordFailure("a")

	snap := s.Snapshot()
	assert.Equal(t, 2, snap.Calls["a"])
	assert.Equal(t, 1, snap.Success["a"])
	assert.Equal(t, 1, snap.Failures["a"])
}

func TestStatsRecordsTierSwitches(t *testing.T) {
	s := NewStats()
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	s.RecordCall("a", "tier1", "")
	fixed = fixed.Add(5 * time.Second)
	s.RecordCall("b", "tier2", "primary exhausted")

	snap := s.Snapshot()
	assert.Len(t, snap.Switches, 1)
	assert.Equal(t, "a", snap.Switches[0].From)
	assert.Equal(t, "b", snap.Switches[0].To)
	assert.Equal(t, "primary exhausted", snap.Switches[0].Reason)
	assert.Equal(t, 5*time.Second, snap.TierTime["tier1"])
}

func TestSnapshotSummaryIsNonEmpty(t *testing.T) {
	s := NewStats()
	s.RecordCall("a", "tier1", "")
	s.RecordSuccess("a")
	summary := s.Snapshot().Summary()
	assert.Contains(t, summary, "cascade statistics")
	assert.Contains(t, summary, "a")
}
