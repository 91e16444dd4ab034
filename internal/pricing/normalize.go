package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tariff markup constants. Business-specific, applied in minor units (öre) to
// avoid the rounding artifacts of operating on major units directly.
var (
	markupFactor    = decimal.NewFromFloat(1.25)
	markupOffsetOre = decimal.NewFromFloat(84.225)
	minorPerMajor   = decimal.NewFromInt(100)
)

// ApplyMarkup converts a raw per-kWh energy price into the consumer tariff:
// adjusted = (1.25 * raw_in_minor_units + 84.225) / 100.
func ApplyMarkup(rawPerKWh float64) float64 {
	rawOre := decimal.NewFromFloat(rawPerKWh).Mul(minorPerMajor)
	adjustedOre := markupFactor.Mul(rawOre).Add(markupOffsetOre)
	result, _ := adjustedOre.Div(minorPerMajor).Float64()
	return result
}

// RawEntry is one provider price entry before normalization.
type RawEntry struct {
	// StartsAt is the upstream timestamp string for the slot start.
	StartsAt string
	// Price is the raw energy price in the provider's unit.
	Price float64
}

// NormalizeOptions describe how a provider's raw entries map onto slots.
type NormalizeOptions struct {
	// UnitDivisor converts the provider unit to major-currency-per-kWh
	// (1000 for per-MWh feeds, 1 for per-kWh feeds).
	UnitDivisor float64
	// Location, when set, means entry timestamps are UTC and must be
	// converted to this local zone at slot granularity. When nil the
	// timestamps are taken as already local.
	Location *time.Location
}

// AppendNormalized converts raw entries into tariff slots and appends them to
// the state's sequence. Insertion stops silently once MaxSlots is reached.
// Tiers start unknown; classification happens once an average is available.
func (s *PriceState) AppendNormalized(entries []RawEntry, opts NormalizeOptions) {
	divisor := opts.UnitDivisor
	if divisor <= 0 {
		divisor = 1
	}

	for _, entry := range entries {
		if len(s.Slots) >= MaxSlots {
			return
		}
		s.Slots = append(s.Slots, PriceSlot{
			StartsAt: localSlotTimestamp(entry.StartsAt, opts.Location),
			Tier:     TierUnknown,
			Price:    ApplyMarkup(entry.Price / divisor),
		})
	}
}

// localSlotTimestamp rewrites a UTC ISO timestamp as a local slot-start
// timestamp. Unparsable input passes through untouched so its slot key still
// derives from whatever the provider sent.
func localSlotTimestamp(utcISO string, loc *time.Location) string {
	if loc == nil || len(utcISO) < len("2006-01-02T15:04:05") {
		return utcISO
	}
	parsed, err := time.ParseInLocation("2006-01-02T15:04:05", utcISO[:19], time.UTC)
	if err != nil {
		return utcISO
	}
	return parsed.In(loc).Format("2006-01-02T15:04:05")
}
