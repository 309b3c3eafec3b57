// Package fx resolves exchange rates through pluggable providers with a
// two-tier cache: a short-lived in-memory tier and a longer-lived tier
// persisted as ExchangeRate records.
package fx

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnavailable is returned when no provider could resolve a rate after
// retries. Callers must treat this as an expected, recoverable condition:
// the transaction processor queues the intent instead of failing it.
var ErrUnavailable = errors.New("fx: exchange rate unavailable")

// ErrUnsupportedPair is returned by providers for pairs outside their class.
var ErrUnsupportedPair = errors.New("fx: unsupported currency pair")

// Rate is a resolved exchange rate for a currency pair.
type Rate struct {
	Pair      string          `json:"pair"`
	Value     decimal.Decimal `json:"value"`
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Provider fetches the current rate for a currency pair from an external source.
type Provider interface {
	// Name returns the provider's display name (e.g., "DolarAPI", "CoinGecko").
	Name() string

	// Supports returns true if this provider can quote the given pair.
	Supports(base, quote string) bool

	// FetchRate fetches the current base→quote rate. It returns the rate
	// value and a source identifier recorded alongside the cached rate.
	FetchRate(ctx context.Context, base, quote string) (decimal.Decimal, string, error)
}
