// Package cache persists the latest successful price snapshot so a restart
// can show a reasonable price before any network fetch completes.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"spot-price-panel/internal/interval"
	"spot-price-panel/internal/pricing"
)

const snapshotVersion = 1

var (
	// ErrNoSnapshot indicates no usable snapshot exists (missing, corrupt,
	// wrong version/source/resolution, or empty).
	ErrNoSnapshot = errors.New("cache: no usable snapshot")
	// ErrStale indicates a valid snapshot that does not cover the current
	// slot; only strict loads report it.
	ErrStale = errors.New("cache: snapshot does not cover current slot")
)

// LoadMode selects how picky a snapshot load is.
type LoadMode int

const (
	// LoadStrict accepts a snapshot only when it covers the current slot.
	LoadStrict LoadMode = iota
	// LoadLenient accepts the best available snapshot, falling back to the
	// first slot when the current one is not covered.
	LoadLenient
)

type snapshotDoc struct {
	Version           int                 `json:"version"`
	Source            string              `json:"source"`
	Currency          string              `json:"currency"`
	ResolutionMinutes int                 `json:"resolutionMinutes"`
	HasAverage        bool                `json:"hasRunningAverage"`
	Average           float64             `json:"runningAverage"`
	Slots             []pricing.PriceSlot `json:"points"`
}

// Store reads and writes the snapshot file.
type Store struct {
	path   string
	logger zerolog.Logger
}

// NewStore creates a snapshot store writing to path.
func NewStore(path string, logger zerolog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger.With().Str("component", "price_cache").Logger(),
	}
}

// Save persists the state. Failed or empty states are never written.
func (s *Store) Save(state *pricing.PriceState) error {
	if !state.OK || len(state.Slots) == 0 {
		return errors.New("cache: refusing to persist unusable state")
	}

	doc := snapshotDoc{
		Version:           snapshotVersion,
		Source:            state.Source,
		Currency:          state.Currency,
		ResolutionMinutes: state.ResolutionMinutes,
		HasAverage:        state.HasAverage,
		Average:           state.Average,
		Slots:             state.Slots,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot and rebuilds a PriceState for the expected source
// and resolution. Any structural problem is a soft ErrNoSnapshot failure.
func (s *Store) Load(mode LoadMode, expectedSource string, resolutionMinutes int, now time.Time) (*pricing.PriceState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, ErrNoSnapshot
	}

	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn().Err(err).Msg("snapshot parse failed")
		return nil, ErrNoSnapshot
	}
	if doc.Version != snapshotVersion {
		return nil, ErrNoSnapshot
	}
	if expectedSource != "" && doc.Source != expectedSource {
		return nil, ErrNoSnapshot
	}

	resolution := interval.NormalizeResolution(resolutionMinutes)
	if interval.NormalizeResolution(doc.ResolutionMinutes) != resolution {
		return nil, ErrNoSnapshot
	}

	state := pricing.NewPriceState(doc.Source, resolution)
	if doc.Currency != "" {
		state.Currency = doc.Currency
	}
	state.HasAverage = doc.HasAverage
	state.Average = doc.Average
	for _, slot := range doc.Slots {
		if slot.StartsAt == "" {
			continue
		}
		if len(state.Slots) >= pricing.MaxSlots {
			break
		}
		slot.Tier = pricing.ParseTier(string(slot.Tier))
		state.Slots = append(state.Slots, slot)
	}
	if len(state.Slots) == 0 {
		return nil, ErrNoSnapshot
	}

	idx := state.CurrentSlotIndex(now)
	if idx < 0 {
		if mode == LoadStrict {
			return nil, ErrStale
		}
		idx = 0
	}
	state.SetCurrent(idx)
	state.OK = true
	return state, nil
}
