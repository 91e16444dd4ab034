// Package history maintains the rolling price average: a fixed-capacity
// circular sample buffer that accumulates across fetches and reboots.
package history

import (
	"spot-price-panel/internal/interval"
	"spot-price-panel/internal/pricing"
)

const (
	// Magic tags the persisted record format ("NPMA").
	Magic uint32 = 0x4E504D41
	// Version of the persisted record format.
	Version uint16 = 2

	// WindowHours is the fixed trailing lookback. Long enough to smooth
	// single-day spikes, short enough to follow real trend changes.
	WindowHours = 72

	// maxWindowSamples is the worst-case window: 72h at 15-minute slots.
	maxWindowSamples = WindowHours * 4

	lastKeyLen = 20
)

// WindowForResolution derives the sample capacity for a slot resolution.
func WindowForResolution(resolutionMinutes int) int {
	return WindowHours * 60 / interval.NormalizeResolution(resolutionMinutes)
}

// Record is the rolling-average state. Its layout mirrors the persisted
// binary format exactly: fixed-width fields, fixed-length key buffer, and a
// sample array sized for the worst-case window.
type Record struct {
	Magic             uint32
	Version           uint16
	ResolutionMinutes uint16
	WindowSamples     uint16
	Count             uint16
	Head              uint16
	LastSlotKey       [lastKeyLen]byte
	Values            [maxWindowSamples]float32
}

// NewRecord returns an empty record sized for the given resolution.
func NewRecord(resolutionMinutes int) *Record {
	resolution := interval.NormalizeResolution(resolutionMinutes)
	return &Record{
		Magic:             Magic,
		Version:           Version,
		ResolutionMinutes: uint16(resolution),
		WindowSamples:     uint16(WindowForResolution(resolution)),
	}
}

// LastKey returns the last-processed slot key watermark.
func (r *Record) LastKey() string {
	n := 0
	for n < lastKeyLen && r.LastSlotKey[n] != 0 {
		n++
	}
	return string(r.LastSlotKey[:n])
}

func (r *Record) setLastKey(key string) {
	var buf [lastKeyLen]byte
	copy(buf[:], key)
	r.LastSlotKey = buf
}

// Append inserts one sample at the write cursor, overwriting the oldest
// sample once the window is full.
func (r *Record) Append(price float64) {
	if r.WindowSamples == 0 || r.WindowSamples > maxWindowSamples {
		r.WindowSamples = uint16(WindowForResolution(int(r.ResolutionMinutes)))
	}

	r.Values[r.Head] = float32(price)
	r.Head = (r.Head + 1) % r.WindowSamples
	if r.Count < r.WindowSamples {
		r.Count++
	}
}

// Average returns the arithmetic mean of the held samples, or 0 when empty.
// Callers must treat the empty case separately: 0 is also a valid price.
func (r *Record) Average() float64 {
	if r.Count == 0 {
		return 0
	}

	sum := float64(0)
	for i := uint16(0); i < r.Count; i++ {
		sum += float64(r.Values[i])
	}
	return sum / float64(r.Count)
}

// Ingest appends samples for every slot whose key is strictly beyond the
// last-processed watermark, advancing the watermark as it goes. Replaying the
// same or older slots is a no-op, so overlapping daily fetches never
// double-count. Returns whether the record changed.
func (r *Record) Ingest(slots []pricing.PriceSlot, resolutionMinutes int) bool {
	changed := false
	last := r.LastKey()
	for i := range slots {
		key := interval.SlotKey(slots[i].StartsAt, resolutionMinutes)
		if !interval.IsSlotKey(key) {
			continue
		}
		if interval.IsSlotKey(last) && key <= last {
			continue
		}

		r.Append(slots[i].Price)
		r.setLastKey(key)
		last = key
		changed = true
	}
	return changed
}

// MatchesResolution reports whether the record was accumulated at the given
// resolution with the matching window. A mismatch means the history must be
// reset rather than resampled.
func (r *Record) MatchesResolution(resolutionMinutes int) bool {
	resolution := interval.NormalizeResolution(resolutionMinutes)
	return int(r.ResolutionMinutes) == resolution &&
		int(r.WindowSamples) == WindowForResolution(resolution)
}
