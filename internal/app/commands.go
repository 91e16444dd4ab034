package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"spot-price-panel/internal/cache"
	"spot-price-panel/internal/pricefeed"
	"spot-price-panel/internal/render"
)

// FetchOnce performs a single fetch-classify-persist cycle and prints the
// resulting snapshot.
func (a *App) FetchOnce(ctx context.Context) error {
	state := a.newService().FetchOnce(ctx)
	if err := render.WriteTable(os.Stdout, state); err != nil {
		return err
	}
	if !state.OK {
		return fmt.Errorf("fetch failed: %s", state.Err)
	}
	return nil
}

// Show prints the cached snapshot without touching the network.
func (a *App) Show(ctx context.Context) error {
	_, cacheStore := a.newStores()
	state, err := cacheStore.Load(cache.LoadLenient, a.sourceName(), a.Config.Fetch.ResolutionMinutes, time.Now().In(a.location()))
	if err != nil {
		if errors.Is(err, cache.ErrNoSnapshot) {
			fmt.Fprintln(os.Stdout, "no cached prices")
			return nil
		}
		return err
	}
	return render.WriteTable(os.Stdout, state)
}

// RenderOptions configure the render command.
type RenderOptions struct {
	PNGPath string
}

// Render writes the PNG panel from the cached snapshot.
func (a *App) Render(ctx context.Context, opts RenderOptions) error {
	path := opts.PNGPath
	if path == "" {
		path = a.Config.Render.PNGPath
	}
	if path == "" {
		return errors.New("no output path; set --png or render.png_path")
	}

	_, cacheStore := a.newStores()
	state, err := cacheStore.Load(cache.LoadLenient, a.sourceName(), a.Config.Fetch.ResolutionMinutes, time.Now().In(a.location()))
	if err != nil {
		return fmt.Errorf("no cached prices to render: %w", err)
	}

	panel := render.NewPanel(render.Options{
		Path:   path,
		Width:  a.Config.Render.Width,
		Height: a.Config.Render.Height,
	}, a.Logger)
	if err := panel.Draw(state); err != nil {
		return err
	}

	a.Logger.Info().Str("path", path).Msg("panel written")
	return nil
}

func (a *App) sourceName() string {
	if a.Config.Provider.Source == "tibber" {
		return pricefeed.SourceTibber
	}
	return pricefeed.SourceNordPool
}
