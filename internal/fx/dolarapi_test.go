package fx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDolarAPIProvider_Supports(t *testing.T) {
	p := NewDolarAPIProvider(http.DefaultClient, "blue")

	if !p.Supports("USD", "ARS") {
		t.Error("expected Supports(USD, ARS) = true")
	}
	if !p.Supports("ARS", "USD") {
		t.Error("expected Supports(ARS, USD) = true")
	}
	if p.Supports("USD", "EUR") {
		t.Error("expected Supports(USD, EUR) = false")
	}
	if p.Supports("BTC", "ARS") {
		t.Error("expected Supports(BTC, ARS) = false")
	}
}

func TestDolarAPIProvider_FetchRate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/blue" {
			t.Errorf("expected path /blue, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"compra": 1180, "venta": 1200.50}`))
	}))
	defer server.Close()

	p := &DolarAPIProvider{httpClient: server.Client(), baseURL: server.URL, variant: "blue"}

	rate, source, err := p.FetchRate(context.Background(), "USD", "ARS")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source != "dolarapi_blue" {
		t.Errorf("expected source dolarapi_blue, got %s", source)
	}
	if !rate.Equal(decimal.RequireFromString("1200.50")) {
		t.Errorf("expected rate 1200.50, got %s", rate)
	}
}

func TestDolarAPIProvider_FetchRate_Reciprocal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"venta": 1000}`))
	}))
	defer server.Close()

	p := &DolarAPIProvider{httpClient: server.Client(), baseURL: server.URL, variant: "blue"}

	rate, _, err := p.FetchRate(context.Background(), "ARS", "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("0.001")) {
		t.Errorf("expected rate 0.001, got %s", rate)
	}
}

func TestDolarAPIProvider_FetchRate_VariantPath(t *testing.T) {
	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"venta": 1150}`))
	}))
	defer server.Close()

	p := NewDolarAPIProvider(server.Client(), "mep")
	p.baseURL = server.URL

	_, source, err := p.FetchRate(context.Background(), "USD", "ARS")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requestedPath != "/bolsa" {
		t.Errorf("expected mep variant to request /bolsa, got %s", requestedPath)
	}
	if source != "dolarapi_mep" {
		t.Errorf("expected source dolarapi_mep, got %s", source)
	}
}

func TestDolarAPIProvider_FetchRate_UnsupportedPair(t *testing.T) {
	p := NewDolarAPIProvider(http.DefaultClient, "blue")

	_, _, err := p.FetchRate(context.Background(), "EUR", "ARS")
	if !errors.Is(err, ErrUnsupportedPair) {
		t.Fatalf("expected ErrUnsupportedPair, got %v", err)
	}
}

func TestDolarAPIProvider_FetchRate_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	p := &DolarAPIProvider{httpClient: server.Client(), baseURL: server.URL, variant: "blue"}

	_, _, err := p.FetchRate(context.Background(), "USD", "ARS")
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestNewDolarAPIProvider_UnknownVariantFallsBack(t *testing.T) {
	p := NewDolarAPIProvider(http.DefaultClient, "nonsense")
	if p.variant != "blue" {
		t.Errorf("expected unknown variant to fall back to blue, got %s", p.variant)
	}
}
