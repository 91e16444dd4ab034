package pricefeed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"spot-price-panel/internal/interval"
	"spot-price-panel/internal/pricing"
)

const (
	// SourceTibber labels snapshots produced by the retail subscription API.
	SourceTibber = "TIBBER"

	defaultTibberURL = "https://api.tibber.com/v1-beta/gql"
)

const tibberPriceQuery = `{"query":"{viewer{homes{currentSubscription{priceInfo{current{energy startsAt currency} today{energy startsAt} tomorrow{energy startsAt}}}}}}"}`

// TibberOptions parameterise the retail subscription fetcher.
type TibberOptions struct {
	URL               string
	Token             string
	ResolutionMinutes int
	Timeout           time.Duration
	UserAgent         string
}

// Tibber fetches subscription prices over the Tibber GraphQL API. Prices
// arrive in major units per kWh with local timestamps; the provider's own
// cheapness levels are discarded in favor of local classification.
type Tibber struct {
	opts   TibberOptions
	logger zerolog.Logger
	client *http.Client
	apiURL string
}

// NewTibber constructs a Tibber fetcher.
func NewTibber(opts TibberOptions, logger zerolog.Logger) *Tibber {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	apiURL := strings.TrimSpace(opts.URL)
	if apiURL == "" {
		apiURL = defaultTibberURL
	}

	opts.ResolutionMinutes = interval.NormalizeResolution(opts.ResolutionMinutes)

	return &Tibber{
		opts:   opts,
		logger: logger.With().Str("component", "tibber_fetcher").Logger(),
		client: &http.Client{Timeout: timeout},
		apiURL: apiURL,
	}
}

// Name identifies the provider.
func (t *Tibber) Name() string { return SourceTibber }

type tibberPricePoint struct {
	Energy   float64 `json:"energy"`
	StartsAt string  `json:"startsAt"`
	Currency string  `json:"currency"`
}

type tibberResponse struct {
	Errors []json.RawMessage `json:"errors"`
	Data   struct {
		Viewer struct {
			Homes []struct {
				CurrentSubscription struct {
					PriceInfo struct {
						Current  *tibberPricePoint  `json:"current"`
						Today    []tibberPricePoint `json:"today"`
						Tomorrow []tibberPricePoint `json:"tomorrow"`
					} `json:"priceInfo"`
				} `json:"currentSubscription"`
			} `json:"homes"`
		} `json:"viewer"`
	} `json:"data"`
}

// Fetch retrieves today's and tomorrow's subscription prices.
func (t *Tibber) Fetch(ctx context.Context, now time.Time) *pricing.PriceState {
	state := pricing.NewPriceState(SourceTibber, t.opts.ResolutionMinutes)

	doc, err := t.query(ctx)
	if err != nil {
		state.Fail(err.Error())
		return state
	}

	homes := doc.Data.Viewer.Homes
	if len(homes) == 0 {
		state.Fail("no price info")
		return state
	}

	priceInfo := homes[0].CurrentSubscription.PriceInfo
	if priceInfo.Current == nil {
		state.Fail("no current tariff")
		return state
	}
	if priceInfo.Current.Currency != "" {
		state.Currency = priceInfo.Current.Currency
	}

	state.AppendNormalized(toRawEntries(priceInfo.Today), pricing.NormalizeOptions{UnitDivisor: 1})
	state.AppendNormalized(toRawEntries(priceInfo.Tomorrow), pricing.NormalizeOptions{UnitDivisor: 1})
	if len(state.Slots) == 0 {
		state.Fail("no hourly prices")
		return state
	}

	state.OK = true
	return state
}

func (t *Tibber) query(ctx context.Context) (*tibberResponse, error) {
	if strings.TrimSpace(t.opts.Token) == "" {
		return nil, errors.New("missing tibber api token")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL, bytes.NewReader([]byte(tibberPriceQuery)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.opts.Token)
	if ua := strings.TrimSpace(t.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tibber request: %w", err)
	}
	defer resp.Body.Close()

	t.logger.Debug().Int("status", resp.StatusCode).Msg("price info fetched")
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tibber api error (%d)", resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tibber response: %w", err)
	}

	var doc tibberResponse
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("parse tibber response: %w", err)
	}
	if len(doc.Errors) > 0 {
		return nil, errors.New("tibber api error")
	}
	return &doc, nil
}

func toRawEntries(points []tibberPricePoint) []pricing.RawEntry {
	entries := make([]pricing.RawEntry, 0, len(points))
	for _, p := range points {
		if p.StartsAt == "" {
			continue
		}
		entries = append(entries, pricing.RawEntry{StartsAt: p.StartsAt, Price: p.Energy})
	}
	return entries
}

var _ Source = (*Tibber)(nil)
