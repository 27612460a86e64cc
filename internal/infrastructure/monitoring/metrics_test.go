package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCollector_RecordsPerType(t *testing.T) {
	c := NewMetricsCollector()

	c.RecordJobStarted("CELL_SEGMENTATION")
	c.RecordJobStarted("CELL_SEGMENTATION")
	c.RecordJobSucceeded("CELL_SEGMENTATION", 100*time.Millisecond)
	c.RecordJobFailed("CELL_SEGMENTATION", 300*time.Millisecond)
	c.RecordJobCancelled("TISSUE_MASK")

	snap := c.Snapshot()
	seg := snap["CELL_SEGMENTATION"]
	require.NotZero(t, seg)
	assert.Equal(t, 2, seg.StartedCount)
	assert.Equal(t, 1, seg.SuccessCount)
	assert.Equal(t, 1, seg.FailureCount)
	assert.Equal(t, 400*time.Millisecond, seg.TotalDuration)
	assert.Equal(t, 200*time.Millisecond, seg.AverageDuration)
	assert.Equal(t, 100*time.Millisecond, seg.MinDuration)
	assert.Equal(t, 300*time.Millisecond, seg.MaxDuration)
	assert.False(t, seg.LastFinishedAt.IsZero())

	mask := snap["TISSUE_MASK"]
	assert.Equal(t, 1, mask.CancelledCount)
	assert.Zero(t, mask.StartedCount)
}

func TestMetricsCollector_SnapshotIsCopy(t *testing.T) {
	c := NewMetricsCollector()
	c.RecordJobStarted("TISSUE_MASK")

	snap := c.Snapshot()
	entry := snap["TISSUE_MASK"]
	entry.StartedCount = 99
	snap["TISSUE_MASK"] = entry

	assert.Equal(t, 1, c.Snapshot()["TISSUE_MASK"].StartedCount)
}
