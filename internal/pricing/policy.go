package pricing

import (
	"math"
	"time"

	"spot-price-panel/internal/interval"
)

// priceTolerance bounds the float drift under which two slot prices count as
// the same published price.
const priceTolerance = 0.0005

// SameSlot reports whether two slots carry the same published data.
func SameSlot(a, b PriceSlot) bool {
	return a.StartsAt == b.StartsAt && a.Tier == b.Tier && math.Abs(a.Price-b.Price) < priceTolerance
}

// HasNewContent reports whether fetched carries anything the held state does
// not already show. A failed or empty fetch is never new.
func HasNewContent(fetched, held *PriceState) bool {
	if !fetched.OK || len(fetched.Slots) == 0 {
		return false
	}
	if !held.OK || len(held.Slots) == 0 {
		return true
	}
	if len(fetched.Slots) != len(held.Slots) {
		return true
	}
	for i := range fetched.Slots {
		if !SameSlot(fetched.Slots[i], held.Slots[i]) {
			return true
		}
	}
	return false
}

// WouldReduceCoverage reports whether adopting fetched would regress the
// display: fewer slots, or fewer distinct calendar days, than currently held.
// Upstream sometimes returns partial data before tomorrow's prices publish.
func WouldReduceCoverage(fetched, held *PriceState) bool {
	if !fetched.OK || !held.OK || len(held.Slots) == 0 {
		return false
	}
	if len(fetched.Slots) < len(held.Slots) {
		return true
	}
	return fetched.CoverageDays() < held.CoverageDays()
}

// ShouldCatchUpMissedDailyUpdate reports whether the held state looks like it
// missed a scheduled daily refresh: the wall clock is past today's fetch time
// but the sequence does not yet reach into tomorrow.
func ShouldCatchUpMissedDailyUpdate(held *PriceState, now time.Time, fetchHour, fetchMinute int) bool {
	if !interval.ClockSynced(now) {
		return false
	}
	if held == nil || !held.OK || len(held.Slots) == 0 {
		return false
	}

	todayTrigger := time.Date(now.Year(), now.Month(), now.Day(), fetchHour, fetchMinute, 0, 0, now.Location())
	if now.Before(todayTrigger) {
		return false
	}

	tomorrow := now.Add(24 * time.Hour).Format("2006-01-02")
	return !held.ContainsDay(tomorrow)
}
