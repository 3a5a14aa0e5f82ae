package domain

import (
	"math"
	"testing"
)

func TestDeriveMetalFactors(t *testing.T) {
	tests := []struct {
		name       string
		metal      string
		purity     float64
		multiplier float64
	}{
		{name: "18k gold", metal: "18K Gold", purity: 0.75, multiplier: 1.0},
		{name: "22 kt spaced", metal: "22 kt Yellow Gold", purity: 22.0 / 24, multiplier: 1.0},
		{name: "24 karat", metal: "24 Karat Gold", purity: 1.0, multiplier: 1.0},
		{name: "white gold premium", metal: "18K White Gold", purity: 0.75, multiplier: 1.1},
		{name: "platinum", metal: "Platinum 950", purity: 0.95, multiplier: 1.45},
		{name: "silver", metal: "Sterling Silver", purity: 0.925, multiplier: 0.05},
		{name: "unknown name", metal: "Mystery Alloy", purity: 0.75, multiplier: 1.0},
		{name: "empty name", metal: "", purity: 0.75, multiplier: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			purity, multiplier := DeriveMetalFactors(tt.metal)
			if math.Abs(purity-tt.purity) > 1e-9 {
				t.Fatalf("purity: want %v, got %v", tt.purity, purity)
			}
			if math.Abs(multiplier-tt.multiplier) > 1e-9 {
				t.Fatalf("multiplier: want %v, got %v", tt.multiplier, multiplier)
			}
		})
	}
}

func TestMetalTypeFactorsPrefersStoredValues(t *testing.T) {
	metal := MetalType{Name: "Platinum", PurityFactor: 0.9, TypeMultiplier: 1.2}
	purity, multiplier := metal.Factors()
	if purity != 0.9 || multiplier != 1.2 {
		t.Fatalf("expected stored factors, got purity=%v multiplier=%v", purity, multiplier)
	}
}

func TestMetalTypeFactorsFillsMissingFromName(t *testing.T) {
	metal := MetalType{Name: "22K Gold", TypeMultiplier: 1.3}
	purity, multiplier := metal.Factors()
	if math.Abs(purity-22.0/24) > 1e-9 {
		t.Fatalf("expected derived purity, got %v", purity)
	}
	if multiplier != 1.3 {
		t.Fatalf("expected stored multiplier, got %v", multiplier)
	}
}

func TestStoneSpecEmpty(t *testing.T) {
	tests := []struct {
		name  string
		spec  StoneSpec
		empty bool
	}{
		{name: "blank id", spec: StoneSpec{CaratWeight: 1}, empty: true},
		{name: "none selected", spec: StoneSpec{StoneTypeID: StoneNoneSelected, CaratWeight: 1}, empty: true},
		{name: "zero carats", spec: StoneSpec{StoneTypeID: "diamond"}, empty: true},
		{name: "selected", spec: StoneSpec{StoneTypeID: "diamond", CaratWeight: 0.5}, empty: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.spec.Empty(); got != tt.empty {
				t.Fatalf("Empty() = %v, want %v", got, tt.empty)
			}
		})
	}
}

func TestPriceBreakdownRoundAndTotal(t *testing.T) {
	breakdown := PriceBreakdown{
		MetalCost:          56250,
		PrimaryStoneCost:   56000,
		SecondaryStoneCost: 0,
		OtherStoneCost:     0,
		Overhead:           28062.5,
	}

	rounded := breakdown.Round()
	if rounded.Overhead != 28063 {
		t.Fatalf("expected overhead rounded to 28063, got %v", rounded.Overhead)
	}
	if got := rounded.Total(); got != 140313 {
		t.Fatalf("expected total 140313, got %v", got)
	}
}

func TestPriceBreakdownConvert(t *testing.T) {
	breakdown := PriceBreakdown{MetalCost: 56250, PrimaryStoneCost: 56000, Overhead: 28063}
	usd := breakdown.Convert(83)

	if usd.MetalCost != math.Round(56250.0/83) {
		t.Fatalf("metal cost conversion mismatch: got %v", usd.MetalCost)
	}
	if usd.PrimaryStoneCost != math.Round(56000.0/83) {
		t.Fatalf("primary stone conversion mismatch: got %v", usd.PrimaryStoneCost)
	}
	if usd.SecondaryStoneCost != 0 || usd.OtherStoneCost != 0 {
		t.Fatalf("expected zero components to stay zero, got %+v", usd)
	}
}
