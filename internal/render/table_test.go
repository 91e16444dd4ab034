package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spot-price-panel/internal/pricing"
)

func tableState() *pricing.PriceState {
	state := pricing.NewPriceState("NORDPOOL", 60)
	state.Slots = []pricing.PriceSlot{
		{StartsAt: "2026-08-28T10:00:00", Tier: pricing.TierNormal, Price: 1.1},
		{StartsAt: "2026-08-28T11:00:00", Tier: pricing.TierCheap, Price: 0.8},
	}
	state.OK = true
	state.HasAverage = true
	state.Average = 1.05
	state.SetCurrent(1)
	return state
}

func TestWriteTable(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, WriteTable(&buf, tableState()))
	out := buf.String()

	assert.Contains(t, out, "Current: 0.80 SEK/kWh")
	assert.Contains(t, out, "72h avg 1.05")
	assert.Contains(t, out, "2026-08-28T10:00:00")
	assert.Contains(t, out, "2026-08-28T11:00:00")
	assert.Contains(t, out, "<--")
	assert.Contains(t, out, string(pricing.TierCheap))
}

func TestWriteTableErrorState(t *testing.T) {
	state := pricing.NewPriceState("NORDPOOL", 60)
	state.Fail("no network")

	var buf strings.Builder
	require.NoError(t, WriteTable(&buf, state))

	assert.Contains(t, buf.String(), "NORDPOOL: ERROR no network")
	assert.NotContains(t, buf.String(), "Current:")
}

func TestWriteTableSanitizesTimestamps(t *testing.T) {
	state := tableState()
	state.Slots[0].StartsAt = "2026-08-28T10:00:00\nINJECTED"

	var buf strings.Builder
	require.NoError(t, WriteTable(&buf, state))

	assert.NotContains(t, buf.String(), "\nINJECTED")
}
