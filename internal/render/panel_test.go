package render

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spot-price-panel/internal/pricing"
)

func panelState(hours int) *pricing.PriceState {
	state := pricing.NewPriceState("NORDPOOL", 60)
	start := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	for i := 0; i < hours; i++ {
		state.Slots = append(state.Slots, pricing.PriceSlot{
			StartsAt: start.Add(time.Duration(i) * time.Hour).Format("2006-01-02T15:04:05"),
			Tier:     pricing.TierNormal,
			Price:    1.0 + 0.1*float64(i%6),
		})
	}
	state.OK = true
	state.HasAverage = true
	state.Average = 1.25
	state.SetCurrent(2)
	return state
}

func drawToTempFile(t *testing.T, state *pricing.PriceState) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "panel.png")
	panel := NewPanel(Options{Path: path, Width: 640, Height: 360}, zerolog.Nop())
	require.NoError(t, panel.Draw(state))
	return path
}

func TestPanelDraw(t *testing.T) {
	path := drawToTempFile(t, panelState(24))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestPanelDrawErrorState(t *testing.T) {
	state := pricing.NewPriceState("NORDPOOL", 60)
	state.Fail("upstream down")

	path := drawToTempFile(t, state)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestPanelDrawSingleSlot(t *testing.T) {
	// One slot is below the charting minimum and uses the placeholder.
	path := drawToTempFile(t, panelState(1))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestPanelDrawCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "panel.png")
	panel := NewPanel(Options{Path: path}, zerolog.Nop())
	require.NoError(t, panel.Draw(panelState(24)))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestSeriesPointsKeepSlotAlignment(t *testing.T) {
	state := panelState(5)
	state.Slots[1].StartsAt = "garbage"
	state.SetCurrent(3)

	xs, ys, colors, idxs := seriesPoints(state)
	require.Len(t, xs, 4)
	require.Len(t, ys, 4)
	require.Len(t, colors, 4)
	assert.Equal(t, []int{0, 2, 3, 4}, idxs)

	// The skipped slot must not shift the current-slot annotation.
	i := chartPointFor(idxs, state.CurrentIndex)
	require.GreaterOrEqual(t, i, 0)
	assert.Equal(t, state.Slots[3].Price, ys[i])
	assert.Equal(t, 3, idxs[i])

	assert.Equal(t, -1, chartPointFor(idxs, 1), "skipped slots have no chart point")
	assert.Equal(t, -1, chartPointFor(idxs, -1))
}

func TestPanelDrawSkipsUnparsableSlot(t *testing.T) {
	state := panelState(24)
	state.Slots[0].StartsAt = "garbage"
	state.SetCurrent(5)

	path := drawToTempFile(t, state)
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestTierColor(t *testing.T) {
	assert.NotEqual(t, TierColor(pricing.TierVeryCheap), TierColor(pricing.TierVeryExpensive))
	assert.Equal(t, TierColor(pricing.TierUnknown), TierColor(pricing.Tier("bogus")))
}
