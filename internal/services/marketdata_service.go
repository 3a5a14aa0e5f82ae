package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aurumcraft/api/internal/marketdata"
)

// ErrUnknownRefreshTarget indicates a force-refresh request for a target
// this service does not manage.
var ErrUnknownRefreshTarget = errors.New("marketdata: unknown refresh target")

// Refresh targets accepted by ForceRefresh.
const (
	RefreshTargetGold         = "gold"
	RefreshTargetExchangeRate = "exchange-rate"
	RefreshTargetAll          = "all"
)

// RefreshOutcome reports the result of one forced provider refresh.
type RefreshOutcome struct {
	Target    string
	Succeeded bool
	Value     float64
	Source    string
	FetchedAt time.Time
	Error     string
}

// GoldRefresher forces a gold price fetch. Implemented by marketdata.GoldPriceProvider.
type GoldRefresher interface {
	Refresh(ctx context.Context) (marketdata.GoldPriceQuote, error)
}

// RateRefresher forces an exchange rate fetch. Implemented by marketdata.ExchangeRateProvider.
type RateRefresher interface {
	Refresh(ctx context.Context) (marketdata.ExchangeRateQuote, error)
}

// MarketDataService exposes administrative market-data operations.
type MarketDataService interface {
	ForceRefresh(ctx context.Context, target string) ([]RefreshOutcome, error)
}

// MarketDataServiceDeps wires the market-data service collaborators.
type MarketDataServiceDeps struct {
	Gold   GoldRefresher
	Rates  RateRefresher
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type marketDataService struct {
	gold  GoldRefresher
	rates RateRefresher
	log   func(ctx context.Context, event string, fields map[string]any)
}

// NewMarketDataService constructs the market-data service.
func NewMarketDataService(deps MarketDataServiceDeps) (MarketDataService, error) {
	if deps.Gold == nil {
		return nil, errors.New("services: gold refresher is required")
	}
	if deps.Rates == nil {
		return nil, errors.New("services: rate refresher is required")
	}
	if deps.Logger == nil {
		deps.Logger = func(context.Context, string, map[string]any) {}
	}
	return &marketDataService{
		gold:  deps.Gold,
		rates: deps.Rates,
		log:   deps.Logger,
	}, nil
}

// ForceRefresh refreshes the selected providers immediately, bypassing the
// TTL. A failed fetch is reported per target, not returned as an error: the
// providers keep serving their last-good values either way.
func (s *marketDataService) ForceRefresh(ctx context.Context, target string) ([]RefreshOutcome, error) {
	var outcomes []RefreshOutcome

	switch target {
	case RefreshTargetGold:
		outcomes = append(outcomes, s.refreshGold(ctx))
	case RefreshTargetExchangeRate:
		outcomes = append(outcomes, s.refreshRate(ctx))
	case RefreshTargetAll:
		outcomes = append(outcomes, s.refreshGold(ctx), s.refreshRate(ctx))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRefreshTarget, target)
	}

	return outcomes, nil
}

func (s *marketDataService) refreshGold(ctx context.Context) RefreshOutcome {
	quote, err := s.gold.Refresh(ctx)
	if err != nil {
		s.log(ctx, "forced_gold_refresh_failed", map[string]any{"error": err.Error()})
		return RefreshOutcome{Target: RefreshTargetGold, Error: err.Error()}
	}
	return RefreshOutcome{
		Target:    RefreshTargetGold,
		Succeeded: true,
		Value:     quote.Price,
		Source:    quote.Source,
		FetchedAt: quote.FetchedAt,
	}
}

func (s *marketDataService) refreshRate(ctx context.Context) RefreshOutcome {
	quote, err := s.rates.Refresh(ctx)
	if err != nil {
		s.log(ctx, "forced_rate_refresh_failed", map[string]any{"error": err.Error()})
		return RefreshOutcome{Target: RefreshTargetExchangeRate, Error: err.Error()}
	}
	return RefreshOutcome{
		Target:    RefreshTargetExchangeRate,
		Succeeded: true,
		Value:     quote.Rate,
		Source:    quote.Source,
		FetchedAt: quote.FetchedAt,
	}
}
