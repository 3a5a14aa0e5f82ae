package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aurumcraft/api/internal/domain"
	"github.com/aurumcraft/api/internal/marketdata"
)

var (
	// ErrPricingInvalidInput indicates a malformed calculation request.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
	// ErrPricingUnavailable indicates an internal failure no fallback could absorb.
	ErrPricingUnavailable = errors.New("pricing: temporarily unavailable")
)

// StoneSelection selects one stone slot in a calculation request.
type StoneSelection struct {
	StoneTypeID string
	CaratWeight float64
}

// CalculatePriceCommand is the validated boundary input for a price calculation.
type CalculatePriceCommand struct {
	MetalTypeID      string
	MetalWeightGrams float64
	PrimaryStone     *StoneSelection
	SecondaryStones  []StoneSelection
	OtherStone       *StoneSelection
}

// PriceInputs echoes the resolved inputs back to the caller so storefront
// surfaces can render what the quote was based on.
type PriceInputs struct {
	MetalTypeName      string
	MetalWeightGrams   float64
	PrimaryStoneName   string
	PrimaryStoneCarat  float64
	GoldPrice          float64
	GoldPriceSource    string
	ExchangeRate       float64
	ExchangeRateSource string
}

// PriceResult is a priced quote with its identifiers and input echo.
type PriceResult struct {
	QuoteID  string
	Quote    domain.PriceQuote
	Inputs   PriceInputs
	QuotedAt time.Time
}

// CalculationObserver records calculation outcomes and latency.
// Implemented by observability.Metrics.
type CalculationObserver interface {
	ObserveCalculation(ctx context.Context, elapsed time.Duration, outcome string)
}

// GoldPriceSource supplies the current gold price. Implemented by
// marketdata.GoldPriceProvider.
type GoldPriceSource interface {
	Current(ctx context.Context) marketdata.GoldPriceQuote
}

// ExchangeRateSource supplies the current USD to INR rate. Implemented by
// marketdata.ExchangeRateProvider.
type ExchangeRateSource interface {
	Current(ctx context.Context) marketdata.ExchangeRateQuote
	DefaultRate() float64
}

// PricingService prices configured jewelry pieces in INR and USD.
type PricingService interface {
	CalculatePrice(ctx context.Context, cmd CalculatePriceCommand) (PriceResult, error)
	GoldPrice(ctx context.Context) marketdata.GoldPriceQuote
	ExchangeRate(ctx context.Context) marketdata.ExchangeRateQuote
}

// PricingServiceDeps wires the pricing service collaborators.
type PricingServiceDeps struct {
	Catalog CatalogService
	Gold    GoldPriceSource
	Rates   ExchangeRateSource
	Clock   func() time.Time
	Logger  func(ctx context.Context, event string, fields map[string]any)
	Metrics CalculationObserver
	QuoteID func() string
}

type pricingService struct {
	catalog CatalogService
	gold    GoldPriceSource
	rates   ExchangeRateSource
	now     func() time.Time
	log     func(ctx context.Context, event string, fields map[string]any)
	metrics CalculationObserver
	quoteID func() string
}

// NewPricingService constructs the pricing service.
func NewPricingService(deps PricingServiceDeps) (PricingService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("services: catalog service is required")
	}
	if deps.Gold == nil {
		return nil, errors.New("services: gold price source is required")
	}
	if deps.Rates == nil {
		return nil, errors.New("services: exchange rate source is required")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = func(context.Context, string, map[string]any) {}
	}
	if deps.QuoteID == nil {
		deps.QuoteID = func() string { return ulid.Make().String() }
	}
	return &pricingService{
		catalog: deps.Catalog,
		gold:    deps.Gold,
		rates:   deps.Rates,
		now:     deps.Clock,
		log:     deps.Logger,
		metrics: deps.Metrics,
		quoteID: deps.QuoteID,
	}, nil
}

func (s *pricingService) CalculatePrice(ctx context.Context, cmd CalculatePriceCommand) (PriceResult, error) {
	start := s.now()

	result, err := s.calculate(ctx, cmd)
	if s.metrics != nil {
		outcome := "success"
		switch {
		case errors.Is(err, ErrPricingInvalidInput),
			errors.Is(err, ErrMetalTypeNotFound),
			errors.Is(err, ErrStoneTypeNotFound):
			outcome = "rejected"
		case err != nil:
			outcome = "error"
		}
		s.metrics.ObserveCalculation(ctx, s.now().Sub(start), outcome)
	}
	return result, err
}

func (s *pricingService) calculate(ctx context.Context, cmd CalculatePriceCommand) (PriceResult, error) {
	if strings.TrimSpace(cmd.MetalTypeID) == "" {
		return PriceResult{}, fmt.Errorf("%w: metalTypeId is required", ErrPricingInvalidInput)
	}
	if cmd.MetalWeightGrams < 0 {
		return PriceResult{}, fmt.Errorf("%w: metalWeight must not be negative", ErrPricingInvalidInput)
	}

	metal, err := s.catalog.ResolveMetalType(ctx, cmd.MetalTypeID)
	if err != nil {
		return PriceResult{}, s.wrapResolveError(err)
	}

	primary, err := s.resolveStone(ctx, cmd.PrimaryStone)
	if err != nil {
		return PriceResult{}, err
	}
	other, err := s.resolveStone(ctx, cmd.OtherStone)
	if err != nil {
		return PriceResult{}, err
	}
	var secondary []ResolvedStone
	for _, selection := range cmd.SecondaryStones {
		stone, err := s.resolveStone(ctx, &selection)
		if err != nil {
			return PriceResult{}, err
		}
		if stone != nil {
			secondary = append(secondary, *stone)
		}
	}

	// Market lookups never block on a slow upstream: the providers serve
	// cached, fallback, or estimated values instead.
	goldQuote := s.gold.Current(ctx)
	rateQuote := s.rates.Current(ctx)

	quote, err := CalculateQuote(CalculationInput{
		Metal:           ResolvedMetal{Type: metal, WeightGrams: cmd.MetalWeightGrams},
		PrimaryStone:    primary,
		SecondaryStones: secondary,
		OtherStone:      other,
		GoldPrice:       goldQuote.Price,
		ExchangeRate:    rateQuote.Rate,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidCalculation) {
			return PriceResult{}, fmt.Errorf("%w: %v", ErrPricingInvalidInput, err)
		}
		s.log(ctx, "price_calculation_failed", map[string]any{"error": err.Error()})
		return PriceResult{}, fmt.Errorf("%w: %v", ErrPricingUnavailable, err)
	}

	result := PriceResult{
		QuoteID:  s.quoteID(),
		Quote:    quote,
		QuotedAt: s.now().UTC(),
		Inputs: PriceInputs{
			MetalTypeName:      metal.Name,
			MetalWeightGrams:   cmd.MetalWeightGrams,
			GoldPrice:          goldQuote.Price,
			GoldPriceSource:    goldQuote.Source,
			ExchangeRate:       rateQuote.Rate,
			ExchangeRateSource: rateQuote.Source,
		},
	}
	if primary != nil {
		result.Inputs.PrimaryStoneName = primary.Type.Name
		result.Inputs.PrimaryStoneCarat = primary.CaratWeight
	}

	s.log(ctx, "price_calculated", map[string]any{
		"quote_id":    result.QuoteID,
		"metal_type":  metal.ID,
		"inr_price":   quote.INR.Price,
		"usd_price":   quote.USD.Price,
		"gold_source": goldQuote.Source,
		"rate_source": rateQuote.Source,
	})
	return result, nil
}

// resolveStone maps an optional selection to a priced stone. Empty slots
// (nil, "none_selected", or zero carats) resolve to nil and price as zero.
func (s *pricingService) resolveStone(ctx context.Context, selection *StoneSelection) (*ResolvedStone, error) {
	if selection == nil {
		return nil, nil
	}
	spec := domain.StoneSpec{StoneTypeID: selection.StoneTypeID, CaratWeight: selection.CaratWeight}
	if spec.Empty() {
		return nil, nil
	}
	if selection.CaratWeight < 0 {
		return nil, fmt.Errorf("%w: caratWeight must not be negative", ErrPricingInvalidInput)
	}

	stone, err := s.catalog.ResolveStoneType(ctx, selection.StoneTypeID)
	if err != nil {
		return nil, s.wrapResolveError(err)
	}
	return &ResolvedStone{Type: stone, CaratWeight: selection.CaratWeight}, nil
}

// wrapResolveError keeps not-found errors intact for the handler layer and
// maps transient catalog outages to the generic unavailable error.
func (s *pricingService) wrapResolveError(err error) error {
	if errors.Is(err, ErrMetalTypeNotFound) || errors.Is(err, ErrStoneTypeNotFound) {
		return err
	}
	if errors.Is(err, ErrCatalogUnavailable) {
		return fmt.Errorf("%w: %v", ErrPricingUnavailable, err)
	}
	return err
}

func (s *pricingService) GoldPrice(ctx context.Context) marketdata.GoldPriceQuote {
	return s.gold.Current(ctx)
}

func (s *pricingService) ExchangeRate(ctx context.Context) marketdata.ExchangeRateQuote {
	return s.rates.Current(ctx)
}
