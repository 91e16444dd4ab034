package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"spot-price-panel/internal/interval"
	"spot-price-panel/internal/pricing"
)

const (
	// SourceNordPool labels snapshots produced by the day-ahead index feed.
	SourceNordPool = "NORDPOOL"

	defaultNordPoolBaseURL = "https://dataportal-api.nordpoolgroup.com/api/DayAheadPriceIndices"
)

// TimezoneForArea maps a Nord Pool grid area to its IANA delivery timezone.
func TimezoneForArea(area string) string {
	switch area {
	case "FI", "EE", "LV", "LT":
		return "Europe/Helsinki"
	}
	return "Europe/Stockholm"
}

// NordPoolOptions parameterise the day-ahead index fetcher.
type NordPoolOptions struct {
	BaseURL           string
	Area              string
	Currency          string
	ResolutionMinutes int
	Timeout           time.Duration
	UserAgent         string
	// Location is the delivery timezone entries get converted into. Defaults
	// to the area's zone.
	Location *time.Location
}

// NordPool fetches day-ahead index prices for one grid area. The feed prices
// in currency per MWh with UTC delivery timestamps; both get normalized away.
type NordPool struct {
	opts    NordPoolOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	loc     *time.Location
}

// NewNordPool constructs a Nord Pool fetcher.
func NewNordPool(opts NordPoolOptions, logger zerolog.Logger) *NordPool {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultNordPoolBaseURL
	}

	opts.ResolutionMinutes = interval.NormalizeResolution(opts.ResolutionMinutes)

	loc := opts.Location
	if loc == nil {
		var err error
		loc, err = time.LoadLocation(TimezoneForArea(opts.Area))
		if err != nil {
			loc = time.Local
		}
	}

	return &NordPool{
		opts:    opts,
		logger:  logger.With().Str("component", "nordpool_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		loc:     loc,
	}
}

// Name identifies the provider.
func (n *NordPool) Name() string { return SourceNordPool }

// Fetch retrieves today's and tomorrow's day-ahead prices. Tomorrow is often
// unpublished earlier in the day; a failed or empty tomorrow keeps today's
// slots and does not fail the fetch.
func (n *NordPool) Fetch(ctx context.Context, now time.Time) *pricing.PriceState {
	state := pricing.NewPriceState(SourceNordPool, n.opts.ResolutionMinutes)
	if !interval.ClockSynced(now) {
		state.Fail("clock not synced")
		return state
	}

	local := now.In(n.loc)
	today := local.Format("2006-01-02")
	tomorrow := local.Add(24 * time.Hour).Format("2006-01-02")

	if err := n.fetchDate(ctx, today, state); err != nil {
		state.Fail(err.Error())
		return state
	}

	if err := n.fetchDate(ctx, tomorrow, state); err != nil {
		n.logger.Warn().Err(err).Str("date", tomorrow).Msg("tomorrow fetch failed")
		if len(state.Slots) == 0 {
			state.Fail(err.Error())
			return state
		}
	}

	if len(state.Slots) == 0 {
		state.Fail("no prices")
		return state
	}

	state.OK = true
	state.Err = ""
	return state
}

type nordPoolResponse struct {
	Title             string          `json:"title"`
	Currency          string          `json:"currency"`
	MultiIndexEntries []nordPoolEntry `json:"multiIndexEntries"`
}

type nordPoolEntry struct {
	DeliveryStart string             `json:"deliveryStart"`
	EntryPerArea  map[string]float64 `json:"entryPerArea"`
}

// fetchDate pulls one delivery date and appends its slots to state. A 204
// means the date is not published yet and is not an error.
func (n *NordPool) fetchDate(ctx context.Context, date string, state *pricing.PriceState) error {
	query := url.Values{}
	query.Set("date", date)
	query.Set("market", "DayAhead")
	query.Set("indexNames", n.opts.Area)
	query.Set("currency", n.opts.Currency)
	query.Set("resolutionInMinutes", strconv.Itoa(n.opts.ResolutionMinutes))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(n.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("nordpool request: %w", err)
	}
	defer resp.Body.Close()

	n.logger.Debug().Str("date", date).Int("status", resp.StatusCode).Msg("day-ahead index fetched")
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("nordpool api error (%d)", resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read nordpool response: %w", err)
	}
	if len(payload) == 0 {
		return fmt.Errorf("empty response body")
	}

	var doc nordPoolResponse
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("parse nordpool response: %w", err)
	}
	if doc.Title == "Unauthorized" {
		return fmt.Errorf("nordpool api unauthorized")
	}
	if doc.Currency != "" {
		state.Currency = doc.Currency
	}

	entries := make([]pricing.RawEntry, 0, len(doc.MultiIndexEntries))
	for _, entry := range doc.MultiIndexEntries {
		price, ok := entry.EntryPerArea[n.opts.Area]
		if !ok {
			continue
		}
		entries = append(entries, pricing.RawEntry{StartsAt: entry.DeliveryStart, Price: price})
	}

	state.AppendNormalized(entries, pricing.NormalizeOptions{
		UnitDivisor: 1000, // index prices are currency/MWh
		Location:    n.loc,
	})
	return nil
}

var _ Source = (*NordPool)(nil)
