package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spot-price-panel/internal/pricing"
)

func hourlySlots(start time.Time, hours int, price float64) []pricing.PriceSlot {
	slots := make([]pricing.PriceSlot, 0, hours)
	for i := 0; i < hours; i++ {
		slots = append(slots, pricing.PriceSlot{
			StartsAt: start.Add(time.Duration(i) * time.Hour).Format("2006-01-02T15:04:05"),
			Price:    price,
		})
	}
	return slots
}

func TestWindowForResolution(t *testing.T) {
	assert.Equal(t, 72, WindowForResolution(60))
	assert.Equal(t, 144, WindowForResolution(30))
	assert.Equal(t, 288, WindowForResolution(15))
	assert.Equal(t, 72, WindowForResolution(45), "unsupported resolutions normalize to hourly")
}

func TestRecordAverage(t *testing.T) {
	record := NewRecord(60)
	assert.Equal(t, 0.0, record.Average(), "empty record has no average")

	record.Append(1.0)
	record.Append(2.0)
	record.Append(3.0)
	assert.InDelta(t, 2.0, record.Average(), 1e-9)
}

func TestRecordAppendOverwritesOldest(t *testing.T) {
	record := NewRecord(60)
	window := int(record.WindowSamples)
	require.Equal(t, 72, window)

	for i := 1; i <= window+1; i++ {
		record.Append(float64(i))
	}

	assert.Equal(t, uint16(window), record.Count, "count saturates at the window")
	assert.Equal(t, uint16(1), record.Head, "cursor wraps past the first sample")

	// Sample 1 was overwritten by sample 73; the mean covers 2..73.
	assert.InDelta(t, 37.5, record.Average(), 1e-6)
}

func TestRecordIngest(t *testing.T) {
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	record := NewRecord(60)

	require.True(t, record.Ingest(hourlySlots(start, 24, 1.0), 60))
	assert.Equal(t, uint16(24), record.Count)
	assert.Equal(t, "2025-03-10T23", record.LastKey())

	// Replaying the exact same day must not double-count.
	assert.False(t, record.Ingest(hourlySlots(start, 24, 1.0), 60))
	assert.Equal(t, uint16(24), record.Count)

	// An overlapping fetch only contributes the slots past the watermark.
	require.True(t, record.Ingest(hourlySlots(start.Add(12*time.Hour), 24, 2.0), 60))
	assert.Equal(t, uint16(36), record.Count)
	assert.Equal(t, "2025-03-11T11", record.LastKey())
	assert.InDelta(t, (24*1.0+12*2.0)/36, record.Average(), 1e-6)
}

func TestRecordIngestSkipsBadTimestamps(t *testing.T) {
	record := NewRecord(60)
	slots := []pricing.PriceSlot{
		{StartsAt: "garbage", Price: 99},
		{StartsAt: "2025-03-10T05:00:00", Price: 1},
	}

	require.True(t, record.Ingest(slots, 60))
	assert.Equal(t, uint16(1), record.Count)
	assert.Equal(t, "2025-03-10T05", record.LastKey())
}

func TestRecordMatchesResolution(t *testing.T) {
	record := NewRecord(60)
	assert.True(t, record.MatchesResolution(60))
	assert.True(t, record.MatchesResolution(45), "45 normalizes to 60")
	assert.False(t, record.MatchesResolution(15))
	assert.False(t, NewRecord(15).MatchesResolution(60))
}
