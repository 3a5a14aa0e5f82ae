package marketdata

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	exchangeCacheName = "exchange_rate"

	// Plausibility band for USD to INR. Values outside it are treated as
	// extraction noise, not market moves.
	rateSanityMin = 40.0
	rateSanityMax = 150.0
)

var defaultExchangeRateURLs = []string{
	"https://open.er-api.com/v6/latest/USD",
	"https://query1.finance.yahoo.com/v8/finance/chart/USDINR=X",
}

// ExchangeRateQuote is the provider's answer for the current USD to INR rate.
type ExchangeRateQuote struct {
	Rate      float64
	Base      string
	Quote     string
	Source    string
	FetchedAt time.Time
}

// ExchangeProviderConfig carries the provider's tunables.
type ExchangeProviderConfig struct {
	URLs         []string
	DefaultRate  float64
	FetchTimeout time.Duration
	CacheTTL     time.Duration
}

// ExchangeRateProvider serves the USD to INR conversion rate with the same
// staleness-over-latency policy as the gold provider. With nothing cached
// and the fetch failing it serves the configured default rate.
type ExchangeRateProvider struct {
	cache       *Cache[float64]
	defaultRate float64
	logger      *zap.Logger

	cacheOpts []CacheOption[float64]
}

// ExchangeOption customises ExchangeRateProvider behaviour.
type ExchangeOption func(*ExchangeRateProvider)

// WithExchangeLogger sets the provider logger.
func WithExchangeLogger(logger *zap.Logger) ExchangeOption {
	return func(p *ExchangeRateProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithExchangeCacheOptions forwards options to the underlying cache.
func WithExchangeCacheOptions(opts ...CacheOption[float64]) ExchangeOption {
	return func(p *ExchangeRateProvider) {
		p.cacheOpts = append(p.cacheOpts, opts...)
	}
}

// NewExchangeRateProvider constructs the provider.
func NewExchangeRateProvider(cfg ExchangeProviderConfig, opts ...ExchangeOption) *ExchangeRateProvider {
	provider := &ExchangeRateProvider{
		defaultRate: cfg.DefaultRate,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}

	urls := cfg.URLs
	if len(urls) == 0 {
		urls = defaultExchangeRateURLs
	}

	fetcher := newHTTPFetcher(urls, cfg.FetchTimeout, nil, provider.logger)
	chain := NewChain(
		func(v float64) bool { return v >= rateSanityMin && v <= rateSanityMax },
		NewJSONPathExtractor("erapi_inr", "rates.INR"),
		NewJSONPathExtractor("yahoo_regular_market", "chart.result.0.meta.regularMarketPrice"),
		NewJSONPathExtractor("generic_rate", "rate"),
	)

	fetch := func(ctx context.Context) (Entry[float64], error) {
		body, url, err := fetcher.fetch(ctx)
		if err != nil {
			return Entry[float64]{}, err
		}
		rate, extractor, err := chain.Extract(body)
		if err != nil {
			return Entry[float64]{}, err
		}
		provider.logger.Info("exchange rate fetched",
			zap.Float64("rate", rate),
			zap.String("url", url),
			zap.String("extractor", extractor),
		)
		return Entry[float64]{Value: rate, Source: SourceLive}, nil
	}

	provider.cache = NewCache(exchangeCacheName, cfg.CacheTTL, fetch, provider.cacheOpts...)
	return provider
}

// Current returns the best available rate, falling back to the configured
// default when nothing else is known. It never fails outright.
func (p *ExchangeRateProvider) Current(ctx context.Context) ExchangeRateQuote {
	entry, freshness, err := p.cache.Get(ctx)
	if err != nil {
		fallback := Entry[float64]{Value: p.defaultRate, Source: SourceDefault}
		p.cache.Store(ctx, fallback)
		p.logger.Warn("exchange rate unavailable, serving configured default",
			zap.Float64("rate", fallback.Value),
			zap.Error(err),
		)
		stored, _ := p.cache.Peek()
		return p.quote(stored, Fresh)
	}
	return p.quote(entry, freshness)
}

// Refresh forces a live fetch, bypassing the TTL.
func (p *ExchangeRateProvider) Refresh(ctx context.Context) (ExchangeRateQuote, error) {
	entry, err := p.cache.Refresh(ctx)
	if err != nil {
		return ExchangeRateQuote{}, err
	}
	return p.quote(entry, Fresh), nil
}

// Seed installs a restored snapshot value.
func (p *ExchangeRateProvider) Seed(entry Entry[float64]) {
	p.cache.Seed(entry)
}

// Peek exposes the cached entry for readiness checks.
func (p *ExchangeRateProvider) Peek() (Entry[float64], bool) {
	return p.cache.Peek()
}

// DefaultRate reports the configured fallback rate.
func (p *ExchangeRateProvider) DefaultRate() float64 {
	return p.defaultRate
}

func (p *ExchangeRateProvider) quote(entry Entry[float64], freshness Freshness) ExchangeRateQuote {
	source := entry.Source
	if freshness != Fresh && source != SourceDefault {
		source = SourceCache
	}
	return ExchangeRateQuote{
		Rate:      entry.Value,
		Base:      "USD",
		Quote:     "INR",
		Source:    source,
		FetchedAt: entry.FetchedAt,
	}
}
