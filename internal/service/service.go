// Package service runs the price pipeline: fetch, normalize, accumulate
// history, classify, track the current slot, persist, and hand the resulting
// snapshot to the display.
//
// Everything happens on one goroutine. The loop polls wall-clock time and
// connectivity once per iteration; fetches and storage writes block the loop
// until complete. There is exactly one tenant and no competing work.
package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"spot-price-panel/internal/cache"
	"spot-price-panel/internal/history"
	"spot-price-panel/internal/interval"
	"spot-price-panel/internal/pricefeed"
	"spot-price-panel/internal/pricing"
)

// DefaultAverage stands in for the rolling average until history holds at
// least one sample, so the first boot still shows tiers.
const DefaultAverage = 1.0

// offlineSourceLabel overlays the snapshot's source while disconnected.
const offlineSourceLabel = "no network"

// Display consumes finished snapshots read-only. Implementations must handle
// failed states (render the error), empty-but-ok states, and the general case.
type Display interface {
	Draw(state *pricing.PriceState) error
}

// Options tune the orchestration loop.
type Options struct {
	ResolutionMinutes int
	DailyHour         int
	DailyMinute       int
	RetryCooldown     time.Duration
	ErrorRetry        time.Duration
	PollInterval      time.Duration
	// Location is the wall-clock timezone for slot selection and
	// scheduling. Defaults to the process-local zone.
	Location *time.Location
	// Clock overrides the time source. Defaults to time.Now.
	Clock func() time.Time
}

// Service owns the long-lived price state and drives the daily fetch cycle.
type Service struct {
	opts         Options
	source       pricefeed.Source
	historyStore *history.Store
	cacheStore   *cache.Store
	display      Display
	prober       Prober
	logger       zerolog.Logger

	state          *pricing.PriceState
	nextDailyFetch time.Time
	lastFetchAt    time.Time
	lastMinuteTick int64
	catchUpPending bool
	wasOnline      bool
}

// New constructs the orchestration service. prober may be nil, in which case
// connectivity is assumed.
func New(opts Options, source pricefeed.Source, historyStore *history.Store, cacheStore *cache.Store, display Display, prober Prober, logger zerolog.Logger) *Service {
	if opts.RetryCooldown <= 0 {
		opts.RetryCooldown = 10 * time.Minute
	}
	if opts.ErrorRetry <= 0 {
		opts.ErrorRetry = 30 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	opts.ResolutionMinutes = interval.NormalizeResolution(opts.ResolutionMinutes)

	return &Service{
		opts:         opts,
		source:       source,
		historyStore: historyStore,
		cacheStore:   cacheStore,
		display:      display,
		prober:       prober,
		logger:       logger.With().Str("component", "service").Logger(),
		state:        pricing.NewPriceState(source.Name(), opts.ResolutionMinutes),
		wasOnline:    true,
	}
}

// State exposes the current snapshot. The caller must treat it read-only.
func (s *Service) State() *pricing.PriceState {
	return s.state
}

func (s *Service) now() time.Time {
	return s.opts.Clock().In(s.opts.Location)
}

// Run boots from cache and then loops until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.Bootstrap(ctx)

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Bootstrap adopts persisted state for instant display before the first
// network fetch: strictly current cache first, then any cached data, then a
// live fetch as the last resort.
func (s *Service) Bootstrap(ctx context.Context) {
	now := s.now()
	s.scheduleDailyFetch(now)

	if state, err := s.cacheStore.Load(cache.LoadStrict, s.source.Name(), s.opts.ResolutionMinutes, now); err == nil {
		// The cached slots may extend past the last history watermark;
		// re-run the pipeline so the average and tiers stay fresh.
		s.finishPipeline(state, now)
		s.state = state
		if err := s.cacheStore.Save(state); err != nil {
			s.logger.Warn().Err(err).Msg("snapshot re-save failed")
		}
		s.catchUpPending = true
		s.draw()
		s.logger.Info().Int("slots", len(state.Slots)).Msg("adopted current snapshot from cache")
		return
	}

	if state, err := s.cacheStore.Load(cache.LoadLenient, s.source.Name(), s.opts.ResolutionMinutes, now); err == nil {
		// Possibly stale; shown until a fetch succeeds, not re-persisted.
		s.state = state
		s.catchUpPending = true
		s.draw()
		s.logger.Info().Int("slots", len(state.Slots)).Msg("adopted stale snapshot from cache")
		return
	}

	s.fetchAndApply(ctx, now)
}

// Tick runs one loop iteration: pending catch-up first, then clock-driven
// slot updates, then the daily trigger, then the error retry.
func (s *Service) Tick(ctx context.Context) {
	now := s.now()

	s.checkConnectivity(ctx, now)

	if s.catchUpPending {
		s.catchUpPending = false
		if pricing.ShouldCatchUpMissedDailyUpdate(s.state, now, s.opts.DailyHour, s.opts.DailyMinute) {
			s.logger.Info().Msg("missed daily update detected, fetching now")
			s.fetchAndApply(ctx, now)
			return
		}
	}

	s.handleMinuteTick(now)
	s.handleDailyTrigger(ctx, now)

	if !s.state.OK && now.Sub(s.lastFetchAt) >= s.opts.ErrorRetry {
		s.logger.Info().Msg("retrying fetch from error state")
		s.fetchAndApply(ctx, now)
	}
}

// handleMinuteTick re-selects the current slot on minute boundaries only,
// bounding clock-driven redraws to one per minute.
func (s *Service) handleMinuteTick(now time.Time) {
	if !interval.ClockSynced(now) {
		return
	}

	minuteTick := now.Unix() / 60
	if minuteTick == s.lastMinuteTick {
		return
	}
	s.lastMinuteTick = minuteTick

	if !s.state.OK || len(s.state.Slots) == 0 {
		return
	}
	idx := s.state.CurrentSlotIndex(now)
	if idx < 0 || idx == s.state.CurrentIndex {
		return
	}

	s.state.SetCurrent(idx)
	s.logger.Info().Int("index", idx).Float64("price", s.state.CurrentPrice).Msg("slot boundary crossed")
	s.draw()
}

func (s *Service) handleDailyTrigger(ctx context.Context, now time.Time) {
	if s.nextDailyFetch.IsZero() {
		s.scheduleDailyFetch(now)
	}
	if s.nextDailyFetch.IsZero() || now.Before(s.nextDailyFetch) {
		return
	}

	s.logger.Info().Msg("daily fetch trigger")
	fetched := s.fetchPipeline(ctx, now)

	if !fetched.OK {
		s.logger.Warn().Str("error", fetched.Err).Msg("daily fetch failed, will retry")
		s.apply(fetched, now)
		s.retryAfterCooldown(now)
		return
	}

	if pricing.WouldReduceCoverage(fetched, s.state) {
		s.logger.Warn().
			Int("fetched_slots", len(fetched.Slots)).
			Int("held_slots", len(s.state.Slots)).
			Msg("fetch has less coverage than held state, keeping existing")
		s.retryAfterCooldown(now)
		return
	}

	if pricing.HasNewContent(fetched, s.state) {
		s.logger.Info().Int("slots", len(fetched.Slots)).Msg("daily fetch returned updated prices")
		s.apply(fetched, now)
		s.scheduleDailyFetch(now)
		return
	}

	// Tomorrow's prices may simply not be published yet.
	s.logger.Info().Msg("daily fetch unchanged, will retry")
	s.retryAfterCooldown(now)
}

func (s *Service) scheduleDailyFetch(now time.Time) {
	s.nextDailyFetch = interval.NextDailyFetch(now, s.opts.DailyHour, s.opts.DailyMinute)
	if !s.nextDailyFetch.IsZero() {
		s.logger.Info().Time("next_fetch", s.nextDailyFetch).Msg("daily fetch scheduled")
	}
}

func (s *Service) retryAfterCooldown(now time.Time) {
	s.nextDailyFetch = now.Add(s.opts.RetryCooldown)
	s.logger.Info().Time("next_fetch", s.nextDailyFetch).Msg("retry scheduled")
}

// fetchPipeline fetches from the source and, on success, runs the rest of the
// pipeline: history ingestion, tier classification, current-slot selection.
func (s *Service) fetchPipeline(ctx context.Context, now time.Time) *pricing.PriceState {
	fetched := s.source.Fetch(ctx, now)
	if fetched.OK && len(fetched.Slots) > 0 {
		s.finishPipeline(fetched, now)
	}
	return fetched
}

// finishPipeline updates the rolling history from the slots, classifies every
// slot against the average, and selects the current slot with the index-0
// fallback so a fresh state always shows something.
func (s *Service) finishPipeline(state *pricing.PriceState, now time.Time) {
	average := s.updateHistory(state)

	state.HasAverage = true
	state.Average = average
	state.ApplyTiers(average)

	idx := state.CurrentSlotIndex(now)
	if idx < 0 {
		idx = 0
	}
	state.SetCurrent(idx)
}

// updateHistory ingests the state's slots into the persisted rolling-average
// record and returns the average to classify against.
func (s *Service) updateHistory(state *pricing.PriceState) float64 {
	record, err := s.historyStore.Load()
	if err != nil {
		record = history.NewRecord(state.ResolutionMinutes)
	}
	if !record.MatchesResolution(state.ResolutionMinutes) {
		// Switching resolution discards history rather than resampling.
		s.logger.Info().
			Int("stored", int(record.ResolutionMinutes)).
			Int("configured", state.ResolutionMinutes).
			Msg("resolution changed, resetting rolling history")
		record = history.NewRecord(state.ResolutionMinutes)
	}

	if record.Ingest(state.Slots, state.ResolutionMinutes) {
		if err := s.historyStore.Save(record); err != nil {
			s.logger.Warn().Err(err).Msg("rolling history save failed")
		}
	}

	average := record.Average()
	if record.Count == 0 || average <= 0.0001 {
		average = DefaultAverage
	}
	return average
}

// FetchOnce performs a single fetch cycle and returns the resulting held
// state. Used by the one-shot CLI commands.
func (s *Service) FetchOnce(ctx context.Context) *pricing.PriceState {
	s.fetchAndApply(ctx, s.now())
	return s.state
}

// fetchAndApply performs a full fetch cycle outside the daily trigger.
func (s *Service) fetchAndApply(ctx context.Context, now time.Time) {
	s.apply(s.fetchPipeline(ctx, now), now)
}

// apply folds a fetch result into the held state: successes replace it and
// persist, failures keep held data and only overlay the error when nothing is
// held at all.
func (s *Service) apply(fetched *pricing.PriceState, now time.Time) {
	switch {
	case fetched.OK:
		s.state = fetched
		if err := s.cacheStore.Save(fetched); err != nil {
			s.logger.Warn().Err(err).Msg("snapshot save failed")
		}
	case len(s.state.Slots) > 0:
		s.state.Err = fetched.Err
	default:
		s.state = fetched
	}

	s.lastFetchAt = now
	s.draw()
}

func (s *Service) draw() {
	if s.display == nil {
		return
	}
	if err := s.display.Draw(s.state); err != nil {
		s.logger.Error().Err(err).Msg("display update failed")
	}
}

// checkConnectivity flags the state while offline and performs a one-shot
// reinitialization (reschedule plus immediate fetch) when the network comes
// back.
func (s *Service) checkConnectivity(ctx context.Context, now time.Time) {
	if s.prober == nil {
		return
	}

	online := s.prober.Online(ctx)
	if online == s.wasOnline {
		return
	}
	s.wasOnline = online

	if !online {
		s.logger.Warn().Msg("connectivity lost")
		// Keep held prices, flag the source so the display can show it.
		s.state.Source = offlineSourceLabel
		s.draw()
		return
	}

	s.logger.Info().Msg("connectivity restored, reinitializing")
	s.state.Source = s.source.Name()
	s.scheduleDailyFetch(now)
	s.catchUpPending = true
	s.fetchAndApply(ctx, now)
}
