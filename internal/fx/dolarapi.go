package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

const dolarAPIBaseURL = "https://dolarapi.com/v1/dolares"

// dolarAPIVariants maps a rate variant to its dolarapi.com path segment and
// the source identifier stored with cached rates. ARS has several published
// USD rates; which one applies is an operator decision.
var dolarAPIVariants = map[string]struct {
	path   string
	source string
}{
	"blue":     {path: "blue", source: "dolarapi_blue"},
	"official": {path: "oficial", source: "dolarapi_official"},
	"mep":      {path: "bolsa", source: "dolarapi_mep"},
}

// dolarAPIResponse is the relevant part of a dolarapi.com quote.
type dolarAPIResponse struct {
	Venta decimal.Decimal `json:"venta"`
}

// DolarAPIProvider fetches USD/ARS rates from dolarapi.com with a selectable
// source variant (blue, official, mep).
type DolarAPIProvider struct {
	httpClient *http.Client
	baseURL    string // overridable for tests
	variant    string
}

// NewDolarAPIProvider creates a DolarAPIProvider for the given rate variant.
// Unknown variants fall back to "blue".
func NewDolarAPIProvider(httpClient *http.Client, variant string) *DolarAPIProvider {
	if _, ok := dolarAPIVariants[variant]; !ok {
		variant = "blue"
	}
	return &DolarAPIProvider{
		httpClient: httpClient,
		baseURL:    dolarAPIBaseURL,
		variant:    variant,
	}
}

// Name returns the provider's display name.
func (p *DolarAPIProvider) Name() string { return "DolarAPI" }

// Supports returns true for the USD/ARS pair in either direction.
func (p *DolarAPIProvider) Supports(base, quote string) bool {
	return (base == "USD" && quote == "ARS") || (base == "ARS" && quote == "USD")
}

// FetchRate fetches the USD/ARS rate for the configured variant.
// The ARS/USD direction is returned as the reciprocal.
func (p *DolarAPIProvider) FetchRate(ctx context.Context, base, quote string) (decimal.Decimal, string, error) {
	if !p.Supports(base, quote) {
		return decimal.Zero, "", ErrUnsupportedPair
	}

	variant := dolarAPIVariants[p.variant]
	url := p.baseURL + "/" + variant.path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("building dolarapi request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("dolarapi request for %s: %w", variant.path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, "", fmt.Errorf("dolarapi request for %s: unexpected status %d", variant.path, resp.StatusCode)
	}

	var quoteResp dolarAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&quoteResp); err != nil {
		return decimal.Zero, "", fmt.Errorf("decoding dolarapi response for %s: %w", variant.path, err)
	}

	if !quoteResp.Venta.IsPositive() {
		return decimal.Zero, "", fmt.Errorf("invalid dolarapi rate for %s: %s", variant.path, quoteResp.Venta)
	}

	rate := quoteResp.Venta
	if base == "ARS" {
		rate = decimal.NewFromInt(1).Div(rate)
	}

	return rate, variant.source, nil
}
