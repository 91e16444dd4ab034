// Package app aggregates configuration and shared dependencies for the CLI
// commands.
package app

import (
	"context"
	"errors"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"spot-price-panel/internal/cache"
	"spot-price-panel/internal/config"
	"spot-price-panel/internal/history"
	"spot-price-panel/internal/pricefeed"
	"spot-price-panel/internal/pricing"
	"spot-price-panel/internal/render"
	"spot-price-panel/internal/service"
)

// App holds the wired application handle.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) location() *time.Location {
	loc, err := time.LoadLocation(pricefeed.TimezoneForArea(a.Config.NordPool.Area))
	if err != nil {
		a.Logger.Warn().Err(err).Msg("timezone load failed, using process-local zone")
		return time.Local
	}
	return loc
}

func (a *App) newSource() pricefeed.Source {
	if a.Config.Provider.Source == "tibber" {
		return pricefeed.NewTibber(pricefeed.TibberOptions{
			URL:               a.Config.Tibber.URL,
			Token:             a.Config.Tibber.Token,
			ResolutionMinutes: a.Config.Fetch.ResolutionMinutes,
			Timeout:           a.Config.Tibber.RequestTimeout,
			UserAgent:         a.Config.NordPool.UserAgent,
		}, a.Logger)
	}

	return pricefeed.NewNordPool(pricefeed.NordPoolOptions{
		BaseURL:           a.Config.NordPool.BaseURL,
		Area:              a.Config.NordPool.Area,
		Currency:          a.Config.NordPool.Currency,
		ResolutionMinutes: a.Config.Fetch.ResolutionMinutes,
		Timeout:           a.Config.NordPool.RequestTimeout,
		UserAgent:         a.Config.NordPool.UserAgent,
		Location:          a.location(),
	}, a.Logger)
}

func (a *App) newStores() (*history.Store, *cache.Store) {
	return history.NewStore(a.Config.HistoryPath(), a.Logger),
		cache.NewStore(a.Config.SnapshotPath(), a.Logger)
}

// newDisplay composes the configured display sinks: always the logging sink,
// plus the PNG panel when a path is configured.
func (a *App) newDisplay() service.Display {
	displays := []service.Display{logDisplay{logger: a.Logger}}
	if a.Config.Render.PNGPath != "" {
		displays = append(displays, render.NewPanel(render.Options{
			Path:   a.Config.Render.PNGPath,
			Width:  a.Config.Render.Width,
			Height: a.Config.Render.Height,
		}, a.Logger))
	}
	return compositeDisplay{displays: displays}
}

func (a *App) newProber() service.Prober {
	parsed, err := url.Parse(a.Config.NordPool.BaseURL)
	if err != nil || parsed.Host == "" {
		return nil
	}
	host := parsed.Hostname()
	port := parsed.Port()
	if port == "" {
		port = "443"
	}
	return service.DialProber{Address: host + ":" + port, Timeout: 5 * time.Second}
}

func (a *App) newService() *service.Service {
	historyStore, cacheStore := a.newStores()
	return service.New(service.Options{
		ResolutionMinutes: a.Config.Fetch.ResolutionMinutes,
		DailyHour:         a.Config.Fetch.DailyHour,
		DailyMinute:       a.Config.Fetch.DailyMinute,
		RetryCooldown:     a.Config.Fetch.RetryCooldown,
		ErrorRetry:        a.Config.Fetch.ErrorRetry,
		PollInterval:      a.Config.Fetch.PollInterval,
		Location:          a.location(),
	}, a.newSource(), historyStore, cacheStore, a.newDisplay(), a.newProber(), a.Logger)
}

// Run executes the long-running display loop.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a.Logger.Info().
		Str("source", a.Config.Provider.Source).
		Str("area", a.Config.NordPool.Area).
		Int("resolution", a.Config.Fetch.ResolutionMinutes).
		Msg("starting price panel")

	err := a.newService().Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("price panel stopped")
	return nil
}

// logDisplay reports snapshot changes to the log.
type logDisplay struct {
	logger zerolog.Logger
}

func (d logDisplay) Draw(state *pricing.PriceState) error {
	if !state.OK {
		d.logger.Warn().Str("source", state.Source).Str("error", state.Err).Msg("state updated with error")
		return nil
	}
	d.logger.Info().
		Str("source", state.Source).
		Int("slots", len(state.Slots)).
		Float64("price", state.CurrentPrice).
		Str("tier", string(state.CurrentTier)).
		Float64("average", state.Average).
		Msg("state updated")
	return nil
}

type compositeDisplay struct {
	displays []service.Display
}

func (d compositeDisplay) Draw(state *pricing.PriceState) error {
	var errs []error
	for _, display := range d.displays {
		if err := display.Draw(state); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
