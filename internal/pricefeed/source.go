// Package pricefeed implements the upstream price providers. Every provider
// yields the same normalized PriceState contract regardless of its wire shape.
package pricefeed

import (
	"context"
	"time"

	"spot-price-panel/internal/pricing"
)

// Source fetches upstream prices and produces a normalized snapshot. The
// returned state is always non-nil; fetch failures surface as OK=false plus a
// message rather than an error value, so callers always have a renderable
// state to fall back on.
type Source interface {
	Name() string
	Fetch(ctx context.Context, now time.Time) *pricing.PriceState
}
