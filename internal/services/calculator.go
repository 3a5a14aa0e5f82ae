package services

import (
	"errors"
	"fmt"
	"math"

	"github.com/aurumcraft/api/internal/domain"
)

// ErrInvalidCalculation indicates inputs that can never price: negative
// weights, non-positive market values, or NaN/Inf contamination.
var ErrInvalidCalculation = errors.New("pricing: invalid calculation input")

// ResolvedMetal pairs a catalog metal with the requested weight.
type ResolvedMetal struct {
	Type        domain.MetalType
	WeightGrams float64
}

// ResolvedStone pairs a catalog stone with the requested carat weight.
type ResolvedStone struct {
	Type        domain.StoneType
	CaratWeight float64
}

// CalculationInput is the fully resolved input to the pure calculator.
// Nil stone slots price as zero.
type CalculationInput struct {
	Metal           ResolvedMetal
	PrimaryStone    *ResolvedStone
	SecondaryStones []ResolvedStone
	OtherStone      *ResolvedStone
	GoldPrice       float64
	ExchangeRate    float64
}

// CalculateQuote computes the dual-currency price for one configured piece.
// It is deterministic and performs no I/O: identical inputs always produce
// identical quotes.
//
// Metal cost is weight × spot price × purity factor × type multiplier,
// optionally adjusted by the catalog's price modifier percent. Each stone
// slot contributes carat weight × price per carat; multiple secondary
// stones are summed into the one secondary slot. Overhead is a fixed 25%
// of metal plus stones. INR components are rounded to whole rupees and the
// INR price is their exact sum. The USD view is derived from the rounded
// INR view, never computed independently.
func CalculateQuote(input CalculationInput) (domain.PriceQuote, error) {
	if err := validateCalculation(input); err != nil {
		return domain.PriceQuote{}, err
	}

	purity, multiplier := input.Metal.Type.Factors()
	metalCost := input.Metal.WeightGrams * input.GoldPrice * purity * multiplier
	if modifier := input.Metal.Type.PriceModifierPercent; modifier != 0 {
		metalCost *= 1 + modifier/100
	}

	breakdown := domain.PriceBreakdown{
		MetalCost:          metalCost,
		PrimaryStoneCost:   stoneCost(input.PrimaryStone),
		SecondaryStoneCost: stonesCost(input.SecondaryStones),
		OtherStoneCost:     stoneCost(input.OtherStone),
	}
	breakdown.Overhead = domain.OverheadRate * (breakdown.MetalCost +
		breakdown.PrimaryStoneCost + breakdown.SecondaryStoneCost + breakdown.OtherStoneCost)

	inrBreakdown := breakdown.Round()
	inr := domain.CurrencyAmount{
		Currency:  "INR",
		Price:     inrBreakdown.Total(),
		Breakdown: inrBreakdown,
	}
	usd := domain.CurrencyAmount{
		Currency:  "USD",
		Price:     math.Round(inr.Price / input.ExchangeRate),
		Breakdown: inrBreakdown.Convert(input.ExchangeRate),
	}

	return domain.PriceQuote{
		INR:          inr,
		USD:          usd,
		GoldPrice:    input.GoldPrice,
		ExchangeRate: input.ExchangeRate,
	}, nil
}

func validateCalculation(input CalculationInput) error {
	if input.GoldPrice <= 0 || !isFinite(input.GoldPrice) {
		return fmt.Errorf("%w: gold price must be positive", ErrInvalidCalculation)
	}
	if input.ExchangeRate <= 0 || !isFinite(input.ExchangeRate) {
		return fmt.Errorf("%w: exchange rate must be positive", ErrInvalidCalculation)
	}
	if input.Metal.WeightGrams < 0 || !isFinite(input.Metal.WeightGrams) {
		return fmt.Errorf("%w: metal weight must not be negative", ErrInvalidCalculation)
	}

	purity, multiplier := input.Metal.Type.Factors()
	if purity <= 0 || multiplier <= 0 {
		return fmt.Errorf("%w: metal factors must be positive", ErrInvalidCalculation)
	}

	stones := make([]*ResolvedStone, 0, 2+len(input.SecondaryStones))
	stones = append(stones, input.PrimaryStone, input.OtherStone)
	for i := range input.SecondaryStones {
		stones = append(stones, &input.SecondaryStones[i])
	}
	for _, stone := range stones {
		if stone == nil {
			continue
		}
		if stone.CaratWeight < 0 || !isFinite(stone.CaratWeight) {
			return fmt.Errorf("%w: carat weight must not be negative", ErrInvalidCalculation)
		}
		if stone.Type.PricePerCarat < 0 {
			return fmt.Errorf("%w: price per carat must not be negative", ErrInvalidCalculation)
		}
	}

	return nil
}

func stoneCost(stone *ResolvedStone) float64 {
	if stone == nil {
		return 0
	}
	return stone.CaratWeight * stone.Type.PricePerCarat
}

func stonesCost(stones []ResolvedStone) float64 {
	var total float64
	for _, stone := range stones {
		total += stone.CaratWeight * stone.Type.PricePerCarat
	}
	return total
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
