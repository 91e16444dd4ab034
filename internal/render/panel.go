// Package render turns a finished price snapshot into a PNG panel and a
// terminal table. It consumes the snapshot read-only and never mutates it.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"spot-price-panel/internal/pricing"
)

// Options parameterise the PNG panel.
type Options struct {
	Path   string
	Width  int
	Height int
}

// Panel renders the price state as a PNG chart: the upcoming price series,
// the rolling-average reference line, and a marker on the current slot.
type Panel struct {
	opts   Options
	logger zerolog.Logger
}

// NewPanel constructs a PNG panel renderer.
func NewPanel(opts Options, logger zerolog.Logger) *Panel {
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 720
	}
	return &Panel{opts: opts, logger: logger.With().Str("component", "panel").Logger()}
}

var tierColors = map[pricing.Tier]drawing.Color{
	pricing.TierVeryCheap:     {R: 170, G: 255, B: 170, A: 255},
	pricing.TierCheap:         {R: 96, G: 210, B: 110, A: 255},
	pricing.TierNormal:        {R: 245, G: 190, B: 70, A: 255},
	pricing.TierExpensive:     {R: 185, G: 55, B: 35, A: 255},
	pricing.TierVeryExpensive: {R: 100, G: 0, B: 0, A: 255},
}

// TierColor returns the display color for a tier; unknown tiers render white.
func TierColor(tier pricing.Tier) drawing.Color {
	if c, ok := tierColors[tier]; ok {
		return c
	}
	return drawing.ColorWhite
}

// Draw writes the panel PNG. Failed states render a title-only error panel;
// states without slots render only the current price.
func (p *Panel) Draw(state *pricing.PriceState) error {
	graph := p.buildChart(state)

	if err := ensureDir(p.opts.Path); err != nil {
		return err
	}
	file, err := os.Create(p.opts.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := graph.Render(chart.PNG, file); err != nil {
		return fmt.Errorf("render panel: %w", err)
	}
	p.logger.Debug().Str("path", p.opts.Path).Msg("panel rendered")
	return nil
}

func (p *Panel) buildChart(state *pricing.PriceState) chart.Chart {
	graph := chart.Chart{
		Title:  panelTitle(state),
		Width:  p.opts.Width,
		Height: p.opts.Height,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("02/01 15:04"),
		},
		YAxis: chart.YAxis{
			Name: fmt.Sprintf("Price (%s/kWh)", state.Currency),
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
	}

	xs, ys, colors, idxs := seriesPoints(state)
	if len(xs) < 2 {
		// Not enough slots for a chart; a flat placeholder keeps the
		// title (error message or bare current price) renderable.
		now := time.Now()
		xs = []time.Time{now, now.Add(time.Hour)}
		ys = []float64{0, 1}
		graph.Series = []chart.Series{chart.TimeSeries{
			XValues: xs,
			YValues: ys,
			Style:   chart.Style{StrokeColor: drawing.ColorTransparent},
		}}
		return graph
	}

	graph.Series = []chart.Series{
		chart.TimeSeries{
			Name:    "Tariff",
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: chart.ColorBlue,
				StrokeWidth: 2,
			},
		},
	}

	if state.HasAverage {
		avg := make([]float64, len(xs))
		for i := range avg {
			avg[i] = state.Average
		}
		graph.Series = append(graph.Series, chart.TimeSeries{
			Name:    "72h average",
			XValues: xs,
			YValues: avg,
			Style: chart.Style{
				StrokeColor:     chart.ColorCyan,
				StrokeDashArray: []float64{5.0, 5.0},
			},
		})
	}

	if i := chartPointFor(idxs, state.CurrentIndex); i >= 0 {
		graph.Series = append(graph.Series, chart.AnnotationSeries{
			Annotations: []chart.Value2{{
				XValue: float64(xs[i].UnixNano()),
				YValue: ys[i],
				Label:  fmt.Sprintf("now %.2f", ys[i]),
			}},
			Style: chart.Style{StrokeColor: colors[i], FillColor: colors[i].WithAlpha(64)},
		})
	}

	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph
}

func panelTitle(state *pricing.PriceState) string {
	if !state.OK {
		msg := state.Err
		if msg == "" {
			msg = "no data"
		}
		return fmt.Sprintf("%s: ERROR %s", state.Source, msg)
	}
	return fmt.Sprintf("%.2f %s  %s  (%s)", state.CurrentPrice, state.Currency, state.CurrentTier, state.Source)
}

// seriesPoints extracts chartable slots; unparsable timestamps are skipped.
// idxs maps each kept point back to its slot index, so the current-slot
// annotation stays on the right point even after skips.
func seriesPoints(state *pricing.PriceState) ([]time.Time, []float64, []drawing.Color, []int) {
	if !state.OK {
		return nil, nil, nil, nil
	}

	xs := make([]time.Time, 0, len(state.Slots))
	ys := make([]float64, 0, len(state.Slots))
	colors := make([]drawing.Color, 0, len(state.Slots))
	idxs := make([]int, 0, len(state.Slots))
	for i := range state.Slots {
		ts, ok := parseSlotTime(state.Slots[i].StartsAt)
		if !ok {
			continue
		}
		xs = append(xs, ts)
		ys = append(ys, state.Slots[i].Price)
		colors = append(colors, TierColor(state.Slots[i].Tier))
		idxs = append(idxs, i)
	}
	return xs, ys, colors, idxs
}

// chartPointFor finds the kept-point position for a slot index, or -1.
func chartPointFor(idxs []int, slotIdx int) int {
	if slotIdx < 0 {
		return -1
	}
	for i, idx := range idxs {
		if idx == slotIdx {
			return i
		}
	}
	return -1
}

func parseSlotTime(startsAt string) (time.Time, bool) {
	if len(startsAt) < len("2006-01-02T15:04:05") {
		if len(startsAt) >= len("2006-01-02T15") {
			ts, err := time.Parse("2006-01-02T15", startsAt[:len("2006-01-02T15")])
			return ts, err == nil
		}
		return time.Time{}, false
	}
	ts, err := time.Parse("2006-01-02T15:04:05", startsAt[:19])
	return ts, err == nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
