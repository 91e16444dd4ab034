// Package interval converts timestamps into canonical price-slot keys.
//
// A slot key identifies the scheduling interval a timestamp falls in at a
// given resolution: "2024-02-14T13" for 60-minute slots, "2024-02-14T13:30"
// for 15- or 30-minute slots. Keys are fixed width and zero padded, so
// lexicographic order matches chronological order.
package interval

import (
	"fmt"
	"strconv"
	"time"
)

// validEpoch is the sanity threshold below which the wall clock is treated
// as not yet synchronized (roughly 2023-11-14).
const validEpoch int64 = 1_700_000_000

const (
	hourKeyLen = len("2006-01-02T15")
	slotKeyLen = len("2006-01-02T15:04")
)

// NormalizeResolution maps any resolution to one of the supported slot
// resolutions. 15, 30 and 60 pass through; everything else becomes 60.
func NormalizeResolution(minutes int) int {
	switch minutes {
	case 15, 30, 60:
		return minutes
	}
	return 60
}

// SlotKey derives the slot key for an ISO-8601-like local timestamp. A
// malformed or too-short timestamp yields "", which never matches a valid
// key.
func SlotKey(iso string, resolutionMinutes int) string {
	if len(iso) < hourKeyLen {
		return ""
	}

	resolution := NormalizeResolution(resolutionMinutes)
	if resolution >= 60 || len(iso) < slotKeyLen {
		return iso[:hourKeyLen]
	}

	minute, err := strconv.Atoi(iso[14:16])
	if err != nil || minute < 0 || minute > 59 {
		return ""
	}
	return fmt.Sprintf("%s:%02d", iso[:hourKeyLen], minute-minute%resolution)
}

// CurrentSlotKey returns the slot key wall-clock now falls in, using now's
// location as local time. It returns "" while the clock is unsynchronized.
func CurrentSlotKey(resolutionMinutes int, now time.Time) string {
	if !ClockSynced(now) {
		return ""
	}

	resolution := NormalizeResolution(resolutionMinutes)
	if resolution >= 60 {
		return now.Format("2006-01-02T15")
	}
	minute := now.Minute()
	return fmt.Sprintf("%s:%02d", now.Format("2006-01-02T15"), minute-minute%resolution)
}

// IsSlotKey reports whether s has the shape of a valid slot key.
func IsSlotKey(s string) bool {
	return len(s) == hourKeyLen || len(s) == slotKeyLen
}

// DayOf extracts the calendar date prefix of a slot timestamp, or "" when
// the timestamp is too short to carry one.
func DayOf(iso string) string {
	if len(iso) < len("2006-01-02") {
		return ""
	}
	return iso[:len("2006-01-02")]
}

// ClockSynced reports whether now has reached the sanity epoch.
func ClockSynced(now time.Time) bool {
	return now.Unix() >= validEpoch
}

// NextDailyFetch computes the next occurrence of hour:minute local time
// strictly after now. It returns the zero time while the clock is
// unsynchronized.
func NextDailyFetch(now time.Time, hour, minute int) time.Time {
	if !ClockSynced(now) {
		return time.Time{}
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
