// Package interfaces defines service contracts for folio
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/folio/internal/models"
)

// MarketDataSource supplies daily bars, dividends and live quotes for a symbol.
// A date absent from a returned range means no trading that day, not an error.
type MarketDataSource interface {
	// FetchPrices retrieves daily closes for [from, to] inclusive
	FetchPrices(ctx context.Context, symbol string, from, to time.Time) ([]models.PricePoint, error)

	// FetchDividends retrieves per-share dividends by ex-date for [from, to] inclusive
	FetchDividends(ctx context.Context, symbol string, from, to time.Time) ([]models.DividendPoint, error)

	// FetchRealtime retrieves the latest (possibly delayed) quote
	FetchRealtime(ctx context.Context, symbol string) (*models.RealtimeQuote, error)
}
