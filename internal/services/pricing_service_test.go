package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aurumcraft/api/internal/domain"
	"github.com/aurumcraft/api/internal/marketdata"
)

type fakeCatalog struct {
	metals map[string]domain.MetalType
	stones map[string]domain.StoneType
}

func (f *fakeCatalog) ResolveMetalType(_ context.Context, id string) (domain.MetalType, error) {
	metal, ok := f.metals[id]
	if !ok {
		return domain.MetalType{}, fmt.Errorf("%w: %s", ErrMetalTypeNotFound, id)
	}
	return metal, nil
}

func (f *fakeCatalog) ResolveStoneType(_ context.Context, id string) (domain.StoneType, error) {
	stone, ok := f.stones[id]
	if !ok {
		return domain.StoneType{}, fmt.Errorf("%w: %s", ErrStoneTypeNotFound, id)
	}
	return stone, nil
}

func (f *fakeCatalog) ListMetalTypes(context.Context) ([]domain.MetalType, error) {
	out := make([]domain.MetalType, 0, len(f.metals))
	for _, m := range f.metals {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeCatalog) ListStoneTypes(context.Context) ([]domain.StoneType, error) {
	out := make([]domain.StoneType, 0, len(f.stones))
	for _, s := range f.stones {
		out = append(out, s)
	}
	return out, nil
}

type fakeGoldSource struct {
	quote marketdata.GoldPriceQuote
	calls int
}

func (f *fakeGoldSource) Current(context.Context) marketdata.GoldPriceQuote {
	f.calls++
	return f.quote
}

type fakeRateSource struct {
	quote marketdata.ExchangeRateQuote
}

func (f *fakeRateSource) Current(context.Context) marketdata.ExchangeRateQuote {
	return f.quote
}

func (f *fakeRateSource) DefaultRate() float64 { return 83 }

type recordedObservation struct {
	elapsed time.Duration
	outcome string
}

type fakeObserver struct {
	observations []recordedObservation
}

func (f *fakeObserver) ObserveCalculation(_ context.Context, elapsed time.Duration, outcome string) {
	f.observations = append(f.observations, recordedObservation{elapsed: elapsed, outcome: outcome})
}

func newTestPricingService(t *testing.T, observer CalculationObserver) (PricingService, *fakeGoldSource) {
	t.Helper()

	catalog := &fakeCatalog{
		metals: map[string]domain.MetalType{
			"gold-18k": {ID: "gold-18k", Name: "18K Gold", PurityFactor: 0.75, TypeMultiplier: 1.0, Active: true},
		},
		stones: map[string]domain.StoneType{
			"diamond": {ID: "diamond", Name: "Diamond", Category: "precious", PricePerCarat: 56000, Active: true},
			"ruby":    {ID: "ruby", Name: "Ruby", Category: "precious", PricePerCarat: 12000, Active: true},
		},
	}
	gold := &fakeGoldSource{quote: marketdata.GoldPriceQuote{
		Price: 7500, Currency: "INR", Source: marketdata.SourceLive, FetchedAt: time.Now(),
	}}
	rates := &fakeRateSource{quote: marketdata.ExchangeRateQuote{
		Rate: 83, Base: "USD", Quote: "INR", Source: marketdata.SourceLive, FetchedAt: time.Now(),
	}}

	svc, err := NewPricingService(PricingServiceDeps{
		Catalog: catalog,
		Gold:    gold,
		Rates:   rates,
		Clock:   time.Now,
		Metrics: observer,
		QuoteID: func() string { return "01TESTQUOTE" },
	})
	if err != nil {
		t.Fatalf("NewPricingService error: %v", err)
	}
	return svc, gold
}

func TestPricingServiceCalculatesReferencePiece(t *testing.T) {
	observer := &fakeObserver{}
	svc, _ := newTestPricingService(t, observer)

	result, err := svc.CalculatePrice(context.Background(), CalculatePriceCommand{
		MetalTypeID:      "gold-18k",
		MetalWeightGrams: 10,
		PrimaryStone:     &StoneSelection{StoneTypeID: "diamond", CaratWeight: 1},
	})
	if err != nil {
		t.Fatalf("CalculatePrice error: %v", err)
	}

	if result.QuoteID != "01TESTQUOTE" {
		t.Fatalf("expected injected quote id, got %q", result.QuoteID)
	}
	if result.Quote.INR.Price != 140313 {
		t.Fatalf("INR price: want 140313, got %v", result.Quote.INR.Price)
	}
	if result.Quote.USD.Price != 1691 {
		t.Fatalf("USD price: want 1691, got %v", result.Quote.USD.Price)
	}

	inputs := result.Inputs
	if inputs.MetalTypeName != "18K Gold" || inputs.MetalWeightGrams != 10 {
		t.Fatalf("unexpected metal inputs: %+v", inputs)
	}
	if inputs.PrimaryStoneName != "Diamond" || inputs.PrimaryStoneCarat != 1 {
		t.Fatalf("unexpected stone inputs: %+v", inputs)
	}
	if inputs.GoldPrice != 7500 || inputs.GoldPriceSource != marketdata.SourceLive {
		t.Fatalf("unexpected gold inputs: %+v", inputs)
	}
	if inputs.ExchangeRate != 83 || inputs.ExchangeRateSource != marketdata.SourceLive {
		t.Fatalf("unexpected rate inputs: %+v", inputs)
	}

	if len(observer.observations) != 1 || observer.observations[0].outcome != "success" {
		t.Fatalf("expected one success observation, got %+v", observer.observations)
	}
}

func TestPricingServiceRejectsUnknownMetalType(t *testing.T) {
	observer := &fakeObserver{}
	svc, _ := newTestPricingService(t, observer)

	_, err := svc.CalculatePrice(context.Background(), CalculatePriceCommand{
		MetalTypeID:      "titanium",
		MetalWeightGrams: 10,
	})
	if !errors.Is(err, ErrMetalTypeNotFound) {
		t.Fatalf("expected ErrMetalTypeNotFound, got %v", err)
	}
	if len(observer.observations) != 1 || observer.observations[0].outcome != "rejected" {
		t.Fatalf("expected a rejected observation, got %+v", observer.observations)
	}
}

func TestPricingServiceRejectsUnknownStoneType(t *testing.T) {
	svc, _ := newTestPricingService(t, nil)

	_, err := svc.CalculatePrice(context.Background(), CalculatePriceCommand{
		MetalTypeID:      "gold-18k",
		MetalWeightGrams: 10,
		PrimaryStone:     &StoneSelection{StoneTypeID: "opal", CaratWeight: 1},
	})
	if !errors.Is(err, ErrStoneTypeNotFound) {
		t.Fatalf("expected ErrStoneTypeNotFound, got %v", err)
	}
}

func TestPricingServiceTreatsNoneSelectedAsEmptySlot(t *testing.T) {
	svc, _ := newTestPricingService(t, nil)

	result, err := svc.CalculatePrice(context.Background(), CalculatePriceCommand{
		MetalTypeID:      "gold-18k",
		MetalWeightGrams: 10,
		PrimaryStone:     &StoneSelection{StoneTypeID: domain.StoneNoneSelected, CaratWeight: 1},
		OtherStone:       &StoneSelection{StoneTypeID: "diamond", CaratWeight: 0},
	})
	if err != nil {
		t.Fatalf("CalculatePrice error: %v", err)
	}
	if result.Quote.INR.Breakdown.PrimaryStoneCost != 0 || result.Quote.INR.Breakdown.OtherStoneCost != 0 {
		t.Fatalf("expected empty slots to price as zero, got %+v", result.Quote.INR.Breakdown)
	}
	if result.Inputs.PrimaryStoneName != "" {
		t.Fatalf("expected no stone echoed, got %q", result.Inputs.PrimaryStoneName)
	}
}

func TestPricingServiceRejectsNegativeCarat(t *testing.T) {
	svc, _ := newTestPricingService(t, nil)

	_, err := svc.CalculatePrice(context.Background(), CalculatePriceCommand{
		MetalTypeID:      "gold-18k",
		MetalWeightGrams: 10,
		PrimaryStone:     &StoneSelection{StoneTypeID: "diamond", CaratWeight: -0.5},
	})
	if !errors.Is(err, ErrPricingInvalidInput) {
		t.Fatalf("expected ErrPricingInvalidInput, got %v", err)
	}
}

func TestPricingServiceRejectsMissingMetalType(t *testing.T) {
	svc, _ := newTestPricingService(t, nil)

	_, err := svc.CalculatePrice(context.Background(), CalculatePriceCommand{MetalWeightGrams: 10})
	if !errors.Is(err, ErrPricingInvalidInput) {
		t.Fatalf("expected ErrPricingInvalidInput, got %v", err)
	}
}

func TestPricingServiceSumsSecondaryStones(t *testing.T) {
	svc, _ := newTestPricingService(t, nil)

	result, err := svc.CalculatePrice(context.Background(), CalculatePriceCommand{
		MetalTypeID:      "gold-18k",
		MetalWeightGrams: 5,
		SecondaryStones: []StoneSelection{
			{StoneTypeID: "ruby", CaratWeight: 0.5},
			{StoneTypeID: "ruby", CaratWeight: 0.25},
		},
	})
	if err != nil {
		t.Fatalf("CalculatePrice error: %v", err)
	}
	// 0.75 ct of ruby at ₹12,000/ct.
	if result.Quote.INR.Breakdown.SecondaryStoneCost != 9000 {
		t.Fatalf("secondary stone cost: want 9000, got %v", result.Quote.INR.Breakdown.SecondaryStoneCost)
	}
}

func TestPricingServicePassthroughQuotes(t *testing.T) {
	svc, gold := newTestPricingService(t, nil)

	quote := svc.GoldPrice(context.Background())
	if quote.Price != 7500 {
		t.Fatalf("expected provider quote passthrough, got %v", quote.Price)
	}
	if gold.calls != 1 {
		t.Fatalf("expected one provider call, got %d", gold.calls)
	}

	rate := svc.ExchangeRate(context.Background())
	if rate.Rate != 83 {
		t.Fatalf("expected rate passthrough, got %v", rate.Rate)
	}
}
