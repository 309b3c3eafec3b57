package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

const coinGeckoBaseURL = "https://api.coingecko.com/api/v3/simple/price"

// coinGeckoIDs maps crypto symbols to CoinGecko coin IDs.
var coinGeckoIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"USDT": "tether",
	"USDC": "usd-coin",
	"DAI":  "dai",
	"BUSD": "binance-usd",
}

// coinGeckoFiats contains the fiat currencies CoinGecko can quote against.
var coinGeckoFiats = map[string]bool{
	"USD": true, "EUR": true, "ARS": true, "BRL": true,
}

// CoinGeckoProvider fetches crypto and stablecoin rates from CoinGecko.
// It handles crypto→fiat directly, fiat→crypto via reciprocal, and
// crypto→crypto via a USD cross rate.
type CoinGeckoProvider struct {
	httpClient *http.Client
	baseURL    string // overridable for tests
}

// NewCoinGeckoProvider creates a new CoinGecko rate provider.
func NewCoinGeckoProvider(httpClient *http.Client) *CoinGeckoProvider {
	return &CoinGeckoProvider{httpClient: httpClient, baseURL: coinGeckoBaseURL}
}

// Name returns the provider's display name.
func (p *CoinGeckoProvider) Name() string { return "CoinGecko" }

// Supports returns true for pairs with at least one supported crypto leg.
func (p *CoinGeckoProvider) Supports(base, quote string) bool {
	_, baseCrypto := coinGeckoIDs[base]
	_, quoteCrypto := coinGeckoIDs[quote]
	switch {
	case baseCrypto && quoteCrypto:
		return true
	case baseCrypto:
		return coinGeckoFiats[quote]
	case quoteCrypto:
		return coinGeckoFiats[base]
	default:
		return false
	}
}

// FetchRate fetches the base→quote rate from CoinGecko.
func (p *CoinGeckoProvider) FetchRate(ctx context.Context, base, quote string) (decimal.Decimal, string, error) {
	_, baseCrypto := coinGeckoIDs[base]
	_, quoteCrypto := coinGeckoIDs[quote]

	switch {
	case baseCrypto && quoteCrypto:
		// Cross rate through USD.
		baseUSD, _, err := p.fetchCryptoFiat(ctx, base, "USD")
		if err != nil {
			return decimal.Zero, "", err
		}
		quoteUSD, _, err := p.fetchCryptoFiat(ctx, quote, "USD")
		if err != nil {
			return decimal.Zero, "", err
		}
		return baseUSD.Div(quoteUSD), "coingecko", nil

	case baseCrypto && coinGeckoFiats[quote]:
		return p.fetchCryptoFiat(ctx, base, quote)

	case quoteCrypto && coinGeckoFiats[base]:
		rate, source, err := p.fetchCryptoFiat(ctx, quote, base)
		if err != nil {
			return decimal.Zero, "", err
		}
		return decimal.NewFromInt(1).Div(rate), source, nil

	default:
		return decimal.Zero, "", ErrUnsupportedPair
	}
}

// fetchCryptoFiat fetches the price of one crypto unit in the given fiat currency.
func (p *CoinGeckoProvider) fetchCryptoFiat(ctx context.Context, crypto, fiat string) (decimal.Decimal, string, error) {
	coinID := coinGeckoIDs[crypto]
	vs := strings.ToLower(fiat)

	query := url.Values{}
	query.Set("ids", coinID)
	query.Set("vs_currencies", vs)
	reqURL := p.baseURL + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("building coingecko request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("coingecko request for %s/%s: %w", crypto, fiat, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, "", fmt.Errorf("coingecko request for %s/%s: unexpected status %d", crypto, fiat, resp.StatusCode)
	}

	var prices map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&prices); err != nil {
		return decimal.Zero, "", fmt.Errorf("decoding coingecko response for %s/%s: %w", crypto, fiat, err)
	}

	rate, ok := prices[coinID][vs]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, "", fmt.Errorf("no coingecko price for %s/%s", crypto, fiat)
	}

	return rate, "coingecko", nil
}
