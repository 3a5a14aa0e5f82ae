package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// StoneNoneSelected is the sentinel stone identifier used by storefront
// clients to mark an empty stone slot. Slots carrying it price as zero.
const StoneNoneSelected = "none_selected"

// OverheadRate is the fixed making/overhead charge applied on top of the
// combined metal and stone cost.
const OverheadRate = 0.25

// MetalType is an admin-managed catalog row describing a sellable metal.
//
// PurityFactor and TypeMultiplier drive the metal cost formula. When a row
// ships without explicit factors, DeriveMetalFactors infers them from the
// display name; the stored values are authoritative whenever present.
type MetalType struct {
	ID                   string
	Name                 string
	PurityFactor         float64
	TypeMultiplier       float64
	PriceModifierPercent float64
	Active               bool
}

// Factors returns the effective purity factor and type multiplier,
// falling back to name-based inference for rows missing explicit values.
func (m MetalType) Factors() (purity, multiplier float64) {
	purity = m.PurityFactor
	multiplier = m.TypeMultiplier
	if purity > 0 && multiplier > 0 {
		return purity, multiplier
	}
	derivedPurity, derivedMultiplier := DeriveMetalFactors(m.Name)
	if purity <= 0 {
		purity = derivedPurity
	}
	if multiplier <= 0 {
		multiplier = derivedMultiplier
	}
	return purity, multiplier
}

// StoneType is an admin-managed catalog row describing a gemstone.
type StoneType struct {
	ID            string
	Name          string
	Category      string
	PricePerCarat float64
	Active        bool
}

// MetalSpec selects a catalog metal and a weight for a calculation.
type MetalSpec struct {
	MetalTypeID string
	WeightGrams float64
}

// StoneSpec selects a catalog stone and a carat weight for one slot.
type StoneSpec struct {
	StoneTypeID string
	CaratWeight float64
}

// Empty reports whether the slot carries no priceable stone.
func (s StoneSpec) Empty() bool {
	id := strings.TrimSpace(s.StoneTypeID)
	return id == "" || id == StoneNoneSelected || s.CaratWeight == 0
}

// PriceBreakdown holds the cost components of a quote in a single currency.
type PriceBreakdown struct {
	MetalCost          float64
	PrimaryStoneCost   float64
	SecondaryStoneCost float64
	OtherStoneCost     float64
	Overhead           float64
}

// Total sums the breakdown components.
func (b PriceBreakdown) Total() float64 {
	return b.MetalCost + b.PrimaryStoneCost + b.SecondaryStoneCost + b.OtherStoneCost + b.Overhead
}

// Round returns the breakdown with every component rounded to whole units.
func (b PriceBreakdown) Round() PriceBreakdown {
	return PriceBreakdown{
		MetalCost:          math.Round(b.MetalCost),
		PrimaryStoneCost:   math.Round(b.PrimaryStoneCost),
		SecondaryStoneCost: math.Round(b.SecondaryStoneCost),
		OtherStoneCost:     math.Round(b.OtherStoneCost),
		Overhead:           math.Round(b.Overhead),
	}
}

// Convert divides every component by rate and rounds to whole units.
func (b PriceBreakdown) Convert(rate float64) PriceBreakdown {
	return PriceBreakdown{
		MetalCost:          math.Round(b.MetalCost / rate),
		PrimaryStoneCost:   math.Round(b.PrimaryStoneCost / rate),
		SecondaryStoneCost: math.Round(b.SecondaryStoneCost / rate),
		OtherStoneCost:     math.Round(b.OtherStoneCost / rate),
		Overhead:           math.Round(b.Overhead / rate),
	}
}

// CurrencyAmount is the rounded per-currency view of a quote.
type CurrencyAmount struct {
	Currency  string
	Price     float64
	Breakdown PriceBreakdown
}

// PriceQuote is a dual-currency price for one configured piece. INR is the
// base currency; the USD view is always derived from the rounded INR view.
type PriceQuote struct {
	INR          CurrencyAmount
	USD          CurrencyAmount
	GoldPrice    float64
	ExchangeRate float64
}

// MarketSnapshot is the persisted form of a market-data cache entry. It
// survives restarts so a fresh process can serve a last-good value before
// its first live fetch completes.
type MarketSnapshot struct {
	Key       string
	Value     float64
	Source    string
	FetchedAt time.Time
	UpdatedAt time.Time
}

var karatPattern = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:k|kt|karat)\b`)

// Default factors applied when a metal name matches no known convention.
// 18K yellow gold is the storefront's most common alloy.
const (
	defaultPurityFactor   = 0.75
	defaultTypeMultiplier = 1.0
)

// DeriveMetalFactors infers purity factor and type multiplier from a metal
// display name. Karat markers ("18K", "22 kt") map to karat/24; platinum and
// silver carry their own purity and price multipliers relative to the gold
// spot price. White gold carries a small premium for rhodium finishing.
func DeriveMetalFactors(name string) (purity, multiplier float64) {
	normalized := strings.ToLower(strings.TrimSpace(name))

	purity = defaultPurityFactor
	multiplier = defaultTypeMultiplier

	if match := karatPattern.FindStringSubmatch(normalized); match != nil {
		if karat, err := strconv.Atoi(match[1]); err == nil && karat > 0 && karat <= 24 {
			purity = float64(karat) / 24
		}
	}

	switch {
	case strings.Contains(normalized, "platinum"):
		purity = 0.95
		multiplier = 1.45
	case strings.Contains(normalized, "silver"):
		purity = 0.925
		multiplier = 0.05
	case strings.Contains(normalized, "white gold"):
		multiplier = 1.1
	}

	return purity, multiplier
}
