package pricefeed

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func nordPoolDay(start time.Time, hours int, pricePerMWh float64) map[string]any {
	entries := make([]map[string]any, 0, hours)
	for i := 0; i < hours; i++ {
		entries = append(entries, map[string]any{
			"deliveryStart": start.Add(time.Duration(i) * time.Hour).Format("2006-01-02T15:04:05Z"),
			"entryPerArea":  map[string]float64{"SE3": pricePerMWh},
		})
	}
	return map[string]any{
		"currency":          "SEK",
		"multiIndexEntries": entries,
	}
}

func newNordPoolForTest(baseURL string) *NordPool {
	return NewNordPool(NordPoolOptions{
		BaseURL:           baseURL,
		Area:              "SE3",
		Currency:          "SEK",
		ResolutionMinutes: 60,
		Timeout:           time.Second,
		Location:          time.UTC,
	}, noopLogger())
}

func TestNordPoolFetchSuccess(t *testing.T) {
	today := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("market"); got != "DayAhead" {
			t.Fatalf("unexpected market param: %s", got)
		}
		if got := r.URL.Query().Get("indexNames"); got != "SE3" {
			t.Fatalf("unexpected indexNames param: %s", got)
		}
		switch r.URL.Query().Get("date") {
		case "2026-08-28":
			_ = json.NewEncoder(w).Encode(nordPoolDay(today, 24, 1000))
		case "2026-08-29":
			_ = json.NewEncoder(w).Encode(nordPoolDay(today.AddDate(0, 0, 1), 24, 2000))
		default:
			t.Fatalf("unexpected date param: %s", r.URL.Query().Get("date"))
		}
	}))
	defer srv.Close()

	now := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)
	state := newNordPoolForTest(srv.URL).Fetch(context.Background(), now)

	if !state.OK {
		t.Fatalf("fetch should succeed: %s", state.Err)
	}
	if len(state.Slots) != 48 {
		t.Fatalf("expected 48 slots, got %d", len(state.Slots))
	}
	if state.Currency != "SEK" {
		t.Fatalf("currency should come from the response, got %s", state.Currency)
	}
	if state.Slots[0].StartsAt != "2026-08-28T00:00:00" {
		t.Fatalf("unexpected first slot start: %s", state.Slots[0].StartsAt)
	}
	// 1000 SEK/MWh -> 1 kr/kWh -> (1.25*100 + 84.225)/100 tariff.
	if math.Abs(state.Slots[0].Price-2.09225) > 1e-9 {
		t.Fatalf("unexpected tariff price: %v", state.Slots[0].Price)
	}
}

func TestNordPoolFetchTomorrowUnpublished(t *testing.T) {
	today := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("date") == "2026-08-28" {
			_ = json.NewEncoder(w).Encode(nordPoolDay(today, 24, 1000))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	state := newNordPoolForTest(srv.URL).Fetch(context.Background(), now)

	if !state.OK {
		t.Fatalf("204 for tomorrow must not fail the fetch: %s", state.Err)
	}
	if len(state.Slots) != 24 {
		t.Fatalf("expected today's 24 slots, got %d", len(state.Slots))
	}
}

func TestNordPoolFetchTomorrowErrorKeepsToday(t *testing.T) {
	today := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("date") == "2026-08-28" {
			_ = json.NewEncoder(w).Encode(nordPoolDay(today, 24, 1000))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	state := newNordPoolForTest(srv.URL).Fetch(context.Background(), now)

	if !state.OK || len(state.Slots) != 24 {
		t.Fatalf("tomorrow failure must keep today's slots: ok=%v slots=%d err=%s", state.OK, len(state.Slots), state.Err)
	}
}

func TestNordPoolFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	state := newNordPoolForTest(srv.URL).Fetch(context.Background(), now)

	if state.OK {
		t.Fatal("HTTP 500 for today should fail the fetch")
	}
	if state.Err == "" {
		t.Fatal("failed fetch should carry a message")
	}
}

func TestNordPoolFetchUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"title": "Unauthorized"})
	}))
	defer srv.Close()

	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	state := newNordPoolForTest(srv.URL).Fetch(context.Background(), now)

	if state.OK {
		t.Fatal("unauthorized response should fail the fetch")
	}
}

func TestNordPoolFetchUnsyncedClock(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	state := newNordPoolForTest(srv.URL).Fetch(context.Background(), time.Unix(100, 0))

	if state.OK {
		t.Fatal("an unsynchronized clock should fail the fetch")
	}
	if requests != 0 {
		t.Fatalf("no request should be sent before the clock syncs, got %d", requests)
	}
}

func TestTimezoneForArea(t *testing.T) {
	for _, area := range []string{"FI", "EE", "LV", "LT"} {
		if got := TimezoneForArea(area); got != "Europe/Helsinki" {
			t.Fatalf("area %s: expected Europe/Helsinki, got %s", area, got)
		}
	}
	for _, area := range []string{"SE3", "NO1", "DK2", "SYS", ""} {
		if got := TimezoneForArea(area); got != "Europe/Stockholm" {
			t.Fatalf("area %s: expected Europe/Stockholm, got %s", area, got)
		}
	}
}
