package services

import (
	"errors"
	"math"
	"testing"

	"github.com/aurumcraft/api/internal/domain"
)

func gold18K() domain.MetalType {
	return domain.MetalType{ID: "gold-18k", Name: "18K Gold", PurityFactor: 0.75, TypeMultiplier: 1.0, Active: true}
}

func diamondStone() domain.StoneType {
	return domain.StoneType{ID: "diamond", Name: "Diamond", Category: "precious", PricePerCarat: 56000, Active: true}
}

func TestCalculateQuoteReferencePiece(t *testing.T) {
	// 10g of 18K gold at ₹7,500/g plus a 1ct diamond at ₹56,000/ct:
	// metal 56,250 + stone 56,000 + 25% overhead 28,062.5 rounded to 28,063.
	quote, err := CalculateQuote(CalculationInput{
		Metal:        ResolvedMetal{Type: gold18K(), WeightGrams: 10},
		PrimaryStone: &ResolvedStone{Type: diamondStone(), CaratWeight: 1},
		GoldPrice:    7500,
		ExchangeRate: 83,
	})
	if err != nil {
		t.Fatalf("CalculateQuote error: %v", err)
	}

	if quote.INR.Price != 140313 {
		t.Fatalf("INR price: want 140313, got %v", quote.INR.Price)
	}
	if quote.INR.Breakdown.MetalCost != 56250 {
		t.Fatalf("metal cost: want 56250, got %v", quote.INR.Breakdown.MetalCost)
	}
	if quote.INR.Breakdown.PrimaryStoneCost != 56000 {
		t.Fatalf("primary stone cost: want 56000, got %v", quote.INR.Breakdown.PrimaryStoneCost)
	}
	if quote.INR.Breakdown.Overhead != 28063 {
		t.Fatalf("overhead: want 28063, got %v", quote.INR.Breakdown.Overhead)
	}
	if quote.USD.Price != 1691 {
		t.Fatalf("USD price: want 1691, got %v", quote.USD.Price)
	}
	if quote.USD.Currency != "USD" || quote.INR.Currency != "INR" {
		t.Fatalf("currency labels wrong: %q / %q", quote.INR.Currency, quote.USD.Currency)
	}
}

func TestCalculateQuoteZeroInputsPriceToZero(t *testing.T) {
	quote, err := CalculateQuote(CalculationInput{
		Metal:        ResolvedMetal{Type: gold18K(), WeightGrams: 0},
		GoldPrice:    7500,
		ExchangeRate: 83,
	})
	if err != nil {
		t.Fatalf("CalculateQuote error: %v", err)
	}
	if quote.INR.Price != 0 || quote.USD.Price != 0 {
		t.Fatalf("expected zero prices, got INR=%v USD=%v", quote.INR.Price, quote.USD.Price)
	}
	if quote.INR.Breakdown != (domain.PriceBreakdown{}) {
		t.Fatalf("expected all-zero breakdown, got %+v", quote.INR.Breakdown)
	}
}

func TestCalculateQuoteSumsSecondaryStones(t *testing.T) {
	ruby := domain.StoneType{ID: "ruby", Name: "Ruby", PricePerCarat: 12000, Active: true}
	emerald := domain.StoneType{ID: "emerald", Name: "Emerald", PricePerCarat: 18000, Active: true}

	quote, err := CalculateQuote(CalculationInput{
		Metal: ResolvedMetal{Type: gold18K(), WeightGrams: 5},
		SecondaryStones: []ResolvedStone{
			{Type: ruby, CaratWeight: 0.5},
			{Type: emerald, CaratWeight: 0.25},
		},
		GoldPrice:    7500,
		ExchangeRate: 83,
	})
	if err != nil {
		t.Fatalf("CalculateQuote error: %v", err)
	}

	// 0.5 × 12,000 + 0.25 × 18,000
	if quote.INR.Breakdown.SecondaryStoneCost != 10500 {
		t.Fatalf("secondary stone cost: want 10500, got %v", quote.INR.Breakdown.SecondaryStoneCost)
	}
}

func TestCalculateQuoteAppliesPriceModifier(t *testing.T) {
	metal := gold18K()
	metal.PriceModifierPercent = 10

	quote, err := CalculateQuote(CalculationInput{
		Metal:        ResolvedMetal{Type: metal, WeightGrams: 10},
		GoldPrice:    7500,
		ExchangeRate: 83,
	})
	if err != nil {
		t.Fatalf("CalculateQuote error: %v", err)
	}
	if quote.INR.Breakdown.MetalCost != 61875 {
		t.Fatalf("modified metal cost: want 61875, got %v", quote.INR.Breakdown.MetalCost)
	}
}

func TestCalculateQuoteINRPriceEqualsBreakdownSum(t *testing.T) {
	quote, err := CalculateQuote(CalculationInput{
		Metal:        ResolvedMetal{Type: gold18K(), WeightGrams: 7.3},
		PrimaryStone: &ResolvedStone{Type: diamondStone(), CaratWeight: 0.37},
		GoldPrice:    7219.4,
		ExchangeRate: 83.42,
	})
	if err != nil {
		t.Fatalf("CalculateQuote error: %v", err)
	}

	b := quote.INR.Breakdown
	sum := b.MetalCost + b.PrimaryStoneCost + b.SecondaryStoneCost + b.OtherStoneCost + b.Overhead
	if quote.INR.Price != sum {
		t.Fatalf("INR price %v does not equal breakdown sum %v", quote.INR.Price, sum)
	}
	if quote.USD.Price != math.Round(quote.INR.Price/83.42) {
		t.Fatalf("USD price %v is not derived from rounded INR %v", quote.USD.Price, quote.INR.Price)
	}
}

func TestCalculateQuoteCostsNeverDecreaseWithWeight(t *testing.T) {
	weights := []float64{0, 0.5, 1, 2.5, 5, 10, 25, 100}

	prevMetal := -1.0
	for _, w := range weights {
		quote, err := CalculateQuote(CalculationInput{
			Metal:        ResolvedMetal{Type: gold18K(), WeightGrams: w},
			GoldPrice:    7500,
			ExchangeRate: 83,
		})
		if err != nil {
			t.Fatalf("CalculateQuote error at weight %v: %v", w, err)
		}
		if quote.INR.Breakdown.MetalCost < prevMetal {
			t.Fatalf("metal cost fell from %v to %v as weight rose to %vg",
				prevMetal, quote.INR.Breakdown.MetalCost, w)
		}
		prevMetal = quote.INR.Breakdown.MetalCost
	}

	carats := []float64{0, 0.1, 0.25, 0.5, 1, 2, 5}

	prevStone := -1.0
	for _, ct := range carats {
		quote, err := CalculateQuote(CalculationInput{
			Metal:        ResolvedMetal{Type: gold18K(), WeightGrams: 10},
			PrimaryStone: &ResolvedStone{Type: diamondStone(), CaratWeight: ct},
			GoldPrice:    7500,
			ExchangeRate: 83,
		})
		if err != nil {
			t.Fatalf("CalculateQuote error at %vct: %v", ct, err)
		}
		if quote.INR.Breakdown.PrimaryStoneCost < prevStone {
			t.Fatalf("stone cost fell from %v to %v as carat weight rose to %vct",
				prevStone, quote.INR.Breakdown.PrimaryStoneCost, ct)
		}
		prevStone = quote.INR.Breakdown.PrimaryStoneCost
	}
}

func TestCalculateQuoteIsDeterministic(t *testing.T) {
	input := CalculationInput{
		Metal:        ResolvedMetal{Type: gold18K(), WeightGrams: 12.5},
		PrimaryStone: &ResolvedStone{Type: diamondStone(), CaratWeight: 1.5},
		GoldPrice:    7480.25,
		ExchangeRate: 82.77,
	}

	first, err := CalculateQuote(input)
	if err != nil {
		t.Fatalf("CalculateQuote error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := CalculateQuote(input)
		if err != nil {
			t.Fatalf("CalculateQuote error on run %d: %v", i, err)
		}
		if again != first {
			t.Fatalf("quotes diverge on run %d: %+v vs %+v", i, again, first)
		}
	}
}

func TestCalculateQuoteRejectsInvalidInputs(t *testing.T) {
	base := func() CalculationInput {
		return CalculationInput{
			Metal:        ResolvedMetal{Type: gold18K(), WeightGrams: 10},
			GoldPrice:    7500,
			ExchangeRate: 83,
		}
	}

	tests := []struct {
		name   string
		mutate func(*CalculationInput)
	}{
		{name: "zero gold price", mutate: func(in *CalculationInput) { in.GoldPrice = 0 }},
		{name: "negative gold price", mutate: func(in *CalculationInput) { in.GoldPrice = -1 }},
		{name: "nan gold price", mutate: func(in *CalculationInput) { in.GoldPrice = math.NaN() }},
		{name: "zero exchange rate", mutate: func(in *CalculationInput) { in.ExchangeRate = 0 }},
		{name: "infinite exchange rate", mutate: func(in *CalculationInput) { in.ExchangeRate = math.Inf(1) }},
		{name: "negative weight", mutate: func(in *CalculationInput) { in.Metal.WeightGrams = -0.1 }},
		{name: "negative carat", mutate: func(in *CalculationInput) {
			in.PrimaryStone = &ResolvedStone{Type: diamondStone(), CaratWeight: -1}
		}},
		{name: "negative price per carat", mutate: func(in *CalculationInput) {
			in.OtherStone = &ResolvedStone{Type: domain.StoneType{ID: "bad", PricePerCarat: -5}, CaratWeight: 1}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := base()
			tt.mutate(&input)
			if _, err := CalculateQuote(input); !errors.Is(err, ErrInvalidCalculation) {
				t.Fatalf("expected ErrInvalidCalculation, got %v", err)
			}
		})
	}
}
