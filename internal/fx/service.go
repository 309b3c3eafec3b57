package fx

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"plata/internal/logger"
	"plata/internal/metrics"
	"plata/internal/models"
)

// Options configures cache freshness and fetch behavior of a Service.
type Options struct {
	MemoryTTL   time.Duration // in-memory tier freshness, default 5m
	StoredTTL   time.Duration // persisted tier freshness, default 1h
	Timeout     time.Duration // per-attempt bound on provider calls, default 10s
	Attempts    int           // fetch attempts per provider, default 3
	BackoffBase time.Duration // first retry delay, doubled per attempt, default 1s
}

func (o *Options) defaults() {
	if o.MemoryTTL <= 0 {
		o.MemoryTTL = 5 * time.Minute
	}
	if o.StoredTTL <= 0 {
		o.StoredTTL = time.Hour
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = time.Second
	}
}

// Service is the rate cache and provider registry. It owns the in-memory
// cache tier; the persisted tier lives in the exchange_rates table. Safe for
// concurrent use; in-memory writes are last-writer-wins.
type Service struct {
	db        *gorm.DB
	providers []Provider
	opts      Options

	mu    sync.RWMutex
	cache map[string]Rate

	now func() time.Time // overridable for tests
}

// NewService creates a rate service backed by the given providers, consulted
// in order for the first whose Supports matches the requested pair.
func NewService(db *gorm.DB, providers []Provider, opts Options) *Service {
	opts.defaults()
	return &Service{
		db:        db,
		providers: providers,
		opts:      opts,
		cache:     make(map[string]Rate),
		now:       time.Now,
	}
}

// GetRate resolves the base→quote rate: in-memory tier first, then the
// persisted tier, then a provider fetch with retry and backoff. A provider
// miss falls back to the reverse pair's reciprocal. Exhaustion returns
// ErrUnavailable, which callers must treat as recoverable.
func (s *Service) GetRate(ctx context.Context, base, quote string) (*Rate, error) {
	base = models.NormalizeCurrency(base)
	quote = models.NormalizeCurrency(quote)

	if base == quote {
		return &Rate{Pair: base + "/" + quote, Value: decimal.NewFromInt(1), Source: "identity", FetchedAt: s.now()}, nil
	}

	pair := base + "/" + quote

	if rate, ok := s.fromMemory(pair); ok {
		metrics.RateCacheHitsTotal.WithLabelValues("memory").Inc()
		return rate, nil
	}

	if rate, ok := s.fromStore(pair); ok {
		metrics.RateCacheHitsTotal.WithLabelValues("store").Inc()
		s.remember(*rate)
		return rate, nil
	}

	rate, err := s.fetch(ctx, base, quote)
	if err == nil {
		s.remember(*rate)
		s.persist(*rate)
		return rate, nil
	}
	if !errors.Is(err, ErrUnavailable) {
		return nil, err
	}

	// Reverse pair reciprocal fallback.
	reverse, err := s.fetch(ctx, quote, base)
	if err != nil {
		return nil, err
	}
	rate = &Rate{
		Pair:      pair,
		Value:     decimal.NewFromInt(1).Div(reverse.Value),
		Source:    reverse.Source,
		FetchedAt: reverse.FetchedAt,
	}
	s.remember(*rate)
	s.persist(*rate)
	return rate, nil
}

// fromMemory returns a fresh rate from the in-memory tier.
func (s *Service) fromMemory(pair string) (*Rate, bool) {
	s.mu.RLock()
	rate, ok := s.cache[pair]
	s.mu.RUnlock()
	if !ok || s.now().Sub(rate.FetchedAt) >= s.opts.MemoryTTL {
		return nil, false
	}
	return &rate, true
}

// fromStore returns a fresh rate from the persisted tier.
func (s *Service) fromStore(pair string) (*Rate, bool) {
	var record models.ExchangeRate
	err := s.db.Where("pair = ?", pair).Order("fetched_at DESC").First(&record).Error
	if err != nil {
		return nil, false
	}
	if s.now().Sub(record.FetchedAt) >= s.opts.StoredTTL {
		return nil, false
	}
	return &Rate{Pair: pair, Value: record.Value, Source: record.Source, FetchedAt: record.FetchedAt}, true
}

func (s *Service) remember(rate Rate) {
	s.mu.Lock()
	s.cache[rate.Pair] = rate
	s.mu.Unlock()
}

// persist appends the rate to the exchange_rates table. A persistence error
// here only degrades the cache, so it is logged and swallowed.
func (s *Service) persist(rate Rate) {
	record := models.ExchangeRate{
		Pair:      rate.Pair,
		Value:     rate.Value,
		Source:    rate.Source,
		FetchedAt: rate.FetchedAt,
	}
	if err := s.db.Create(&record).Error; err != nil {
		logger.Get().Warnw("failed to persist exchange rate", "pair", rate.Pair, "error", err)
	}
}

// fetch asks the registry for the first provider supporting the pair and
// retries with exponential backoff. Returns ErrUnavailable when no provider
// supports the pair or all attempts fail.
func (s *Service) fetch(ctx context.Context, base, quote string) (*Rate, error) {
	provider := s.pick(base, quote)
	if provider == nil {
		return nil, ErrUnavailable
	}

	pair := base + "/" + quote
	backoff := s.opts.BackoffBase

	var lastErr error
	for attempt := 1; attempt <= s.opts.Attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		value, source, err := provider.FetchRate(attemptCtx, base, quote)
		cancel()

		if err == nil {
			metrics.RateFetchesTotal.WithLabelValues(source, "success").Inc()
			return &Rate{Pair: pair, Value: value, Source: source, FetchedAt: s.now()}, nil
		}
		if errors.Is(err, ErrUnsupportedPair) {
			return nil, ErrUnavailable
		}

		lastErr = err
		metrics.RateFetchesTotal.WithLabelValues(provider.Name(), "error").Inc()
		logger.Get().Warnw("rate fetch failed",
			"provider", provider.Name(),
			"pair", pair,
			"attempt", attempt,
			"error", err,
		)

		if attempt == s.opts.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ErrUnavailable
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	logger.Get().Infow("rate unavailable after retries", "pair", pair, "error", lastErr)
	return nil, ErrUnavailable
}

// pick returns the first registered provider that supports the pair.
func (s *Service) pick(base, quote string) Provider {
	for _, p := range s.providers {
		if p.Supports(base, quote) {
			return p
		}
	}
	return nil
}
