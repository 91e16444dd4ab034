// Package pricing holds the normalized price data model: the slot sequence, the
// tier classifier, the feed normalizer, and the current-slot tracker.
package pricing

import (
	"time"

	"spot-price-panel/internal/interval"
)

// MaxSlots bounds the slot sequence. Two days of hourly prices fit; at finer
// resolutions a two-day fetch truncates. Known limitation, consumers depend on
// this bound.
const MaxSlots = 60

// PriceSlot is one scheduling interval of the consumer tariff.
type PriceSlot struct {
	StartsAt string  `json:"startsAt"`
	Tier     Tier    `json:"tier"`
	Price    float64 `json:"price"`
}

// PriceState is a snapshot of the price world at one evaluation instant.
// When OK is false only Err and Source are meaningful.
type PriceState struct {
	OK                bool
	Err               string
	Source            string
	ResolutionMinutes int
	Currency          string
	HasAverage        bool
	Average           float64
	Slots             []PriceSlot

	CurrentIndex    int
	CurrentStartsAt string
	CurrentTier     Tier
	CurrentPrice    float64
}

// NewPriceState returns an empty, not-OK state for the given source.
func NewPriceState(source string, resolutionMinutes int) *PriceState {
	return &PriceState{
		Source:            source,
		ResolutionMinutes: interval.NormalizeResolution(resolutionMinutes),
		Currency:          DefaultCurrency,
		CurrentTier:       TierUnknown,
		CurrentIndex:      -1,
	}
}

// DefaultCurrency is assumed until a fetch reports otherwise.
const DefaultCurrency = "SEK"

// Fail marks the state as unusable with a message.
func (s *PriceState) Fail(msg string) {
	s.OK = false
	s.Err = msg
}

// SetCurrent records idx as the active slot and denormalizes its fields for
// display. An out-of-range index clears the current slot instead.
func (s *PriceState) SetCurrent(idx int) {
	if idx < 0 || idx >= len(s.Slots) {
		s.CurrentIndex = -1
		s.CurrentStartsAt = ""
		s.CurrentTier = TierUnknown
		s.CurrentPrice = 0
		return
	}
	s.CurrentIndex = idx
	s.CurrentStartsAt = s.Slots[idx].StartsAt
	s.CurrentTier = s.Slots[idx].Tier
	s.CurrentPrice = s.Slots[idx].Price
}

// ApplyTiers reclassifies every slot against the given rolling average.
func (s *PriceState) ApplyTiers(average float64) {
	for i := range s.Slots {
		s.Slots[i].Tier = Classify(s.Slots[i].Price, average)
	}
}

// FindSlotIndex returns the index of the first slot whose key matches
// slotKey, or -1. An empty key always misses.
func (s *PriceState) FindSlotIndex(slotKey string) int {
	if slotKey == "" {
		return -1
	}
	for i := range s.Slots {
		if interval.SlotKey(s.Slots[i].StartsAt, s.ResolutionMinutes) == slotKey {
			return i
		}
	}
	return -1
}

// CurrentSlotIndex locates the slot covering wall-clock now, or -1 when the
// clock is unsynchronized or the sequence does not cover now. It never guesses;
// the index-0 fallback after a fresh fetch is the caller's policy.
func (s *PriceState) CurrentSlotIndex(now time.Time) int {
	return s.FindSlotIndex(interval.CurrentSlotKey(s.ResolutionMinutes, now))
}

// CoverageDays counts the distinct calendar dates the slot sequence spans.
func (s *PriceState) CoverageDays() int {
	if !s.OK || len(s.Slots) == 0 {
		return 0
	}
	days := 0
	last := ""
	for i := range s.Slots {
		day := interval.DayOf(s.Slots[i].StartsAt)
		if day == "" {
			continue
		}
		if day != last {
			last = day
			days++
		}
	}
	return days
}

// ContainsDay reports whether any slot falls on the given calendar date.
func (s *PriceState) ContainsDay(day string) bool {
	if day == "" {
		return false
	}
	for i := range s.Slots {
		if interval.DayOf(s.Slots[i].StartsAt) == day {
			return true
		}
	}
	return false
}
