package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aurumcraft/api/internal/marketdata"
)

type fakeGoldRefresher struct {
	quote marketdata.GoldPriceQuote
	err   error
	calls int
}

func (f *fakeGoldRefresher) Refresh(context.Context) (marketdata.GoldPriceQuote, error) {
	f.calls++
	return f.quote, f.err
}

type fakeRateRefresher struct {
	quote marketdata.ExchangeRateQuote
	err   error
	calls int
}

func (f *fakeRateRefresher) Refresh(context.Context) (marketdata.ExchangeRateQuote, error) {
	f.calls++
	return f.quote, f.err
}

func newTestMarketDataService(t *testing.T, gold *fakeGoldRefresher, rates *fakeRateRefresher) MarketDataService {
	t.Helper()
	svc, err := NewMarketDataService(MarketDataServiceDeps{Gold: gold, Rates: rates})
	if err != nil {
		t.Fatalf("NewMarketDataService error: %v", err)
	}
	return svc
}

func TestMarketDataServiceRefreshesSingleTarget(t *testing.T) {
	gold := &fakeGoldRefresher{quote: marketdata.GoldPriceQuote{
		Price: 7512, Source: marketdata.SourceLive, FetchedAt: time.Now(),
	}}
	rates := &fakeRateRefresher{}
	svc := newTestMarketDataService(t, gold, rates)

	outcomes, err := svc.ForceRefresh(context.Background(), RefreshTargetGold)
	if err != nil {
		t.Fatalf("ForceRefresh error: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("expected one outcome, got %d", len(outcomes))
	}
	if !outcomes[0].Succeeded || outcomes[0].Value != 7512 || outcomes[0].Target != RefreshTargetGold {
		t.Fatalf("unexpected outcome: %+v", outcomes[0])
	}
	if rates.calls != 0 {
		t.Fatalf("exchange rate must not refresh for the gold target")
	}
}

func TestMarketDataServiceRefreshesAllTargets(t *testing.T) {
	gold := &fakeGoldRefresher{quote: marketdata.GoldPriceQuote{Price: 7512, Source: marketdata.SourceLive}}
	rates := &fakeRateRefresher{quote: marketdata.ExchangeRateQuote{Rate: 83.4, Source: marketdata.SourceLive}}
	svc := newTestMarketDataService(t, gold, rates)

	outcomes, err := svc.ForceRefresh(context.Background(), RefreshTargetAll)
	if err != nil {
		t.Fatalf("ForceRefresh error: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected two outcomes, got %d", len(outcomes))
	}
	if gold.calls != 1 || rates.calls != 1 {
		t.Fatalf("expected both providers refreshed, got gold=%d rates=%d", gold.calls, rates.calls)
	}
}

func TestMarketDataServiceReportsFailuresPerTarget(t *testing.T) {
	gold := &fakeGoldRefresher{err: errors.New("upstream down")}
	rates := &fakeRateRefresher{quote: marketdata.ExchangeRateQuote{Rate: 83.4, Source: marketdata.SourceLive}}
	svc := newTestMarketDataService(t, gold, rates)

	outcomes, err := svc.ForceRefresh(context.Background(), RefreshTargetAll)
	if err != nil {
		t.Fatalf("per-target failures must not fail the call, got %v", err)
	}
	if outcomes[0].Succeeded || outcomes[0].Error == "" {
		t.Fatalf("expected failed gold outcome, got %+v", outcomes[0])
	}
	if !outcomes[1].Succeeded {
		t.Fatalf("expected successful rate outcome, got %+v", outcomes[1])
	}
}

func TestMarketDataServiceRejectsUnknownTarget(t *testing.T) {
	svc := newTestMarketDataService(t, &fakeGoldRefresher{}, &fakeRateRefresher{})

	if _, err := svc.ForceRefresh(context.Background(), "silver"); !errors.Is(err, ErrUnknownRefreshTarget) {
		t.Fatalf("expected ErrUnknownRefreshTarget, got %v", err)
	}
}
