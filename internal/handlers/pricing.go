package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aurumcraft/api/internal/domain"
	"github.com/aurumcraft/api/internal/marketdata"
	"github.com/aurumcraft/api/internal/platform/httpx"
	"github.com/aurumcraft/api/internal/services"
)

// PricingHandlers exposes the storefront pricing endpoints.
type PricingHandlers struct {
	pricing services.PricingService
	catalog services.CatalogService
}

// NewPricingHandlers constructs handlers over the pricing and catalog services.
func NewPricingHandlers(pricing services.PricingService, catalog services.CatalogService) *PricingHandlers {
	return &PricingHandlers{
		pricing: pricing,
		catalog: catalog,
	}
}

// Routes wires the /pricing endpoints onto the provided router.
func (h *PricingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/calculate-price", h.calculatePrice)
	r.Get("/gold-price", h.goldPrice)
	r.Get("/exchange-rate", h.exchangeRate)
	r.Get("/metal-types", h.listMetalTypes)
	r.Get("/stone-types", h.listStoneTypes)
}

type stoneSelectionPayload struct {
	StoneTypeID string  `json:"stoneTypeId"`
	CaratWeight float64 `json:"caratWeight"`
}

type calculatePriceRequest struct {
	MetalTypeID     string                  `json:"metalTypeId"`
	MetalWeight     float64                 `json:"metalWeight"`
	PrimaryStone    *stoneSelectionPayload  `json:"primaryStone"`
	SecondaryStones []stoneSelectionPayload `json:"secondaryStones"`
	OtherStone      *stoneSelectionPayload  `json:"otherStone"`
}

type breakdownPayload struct {
	MetalCost          float64 `json:"metalCost"`
	PrimaryStoneCost   float64 `json:"primaryStoneCost"`
	SecondaryStoneCost float64 `json:"secondaryStoneCost"`
	OtherStoneCost     float64 `json:"otherStoneCost"`
	Overhead           float64 `json:"overhead"`
}

type currencyPayload struct {
	Price     float64          `json:"price"`
	Currency  string           `json:"currency"`
	Display   string           `json:"display"`
	Breakdown breakdownPayload `json:"breakdown"`
}

type calculatePriceResponse struct {
	Success bool            `json:"success"`
	QuoteID string          `json:"quoteId"`
	INR     currencyPayload `json:"inr"`
	USD     currencyPayload `json:"usd"`
	Inputs  inputsPayload   `json:"inputs"`
}

type inputsPayload struct {
	MetalType          string  `json:"metalType"`
	MetalWeight        float64 `json:"metalWeight"`
	PrimaryStone       string  `json:"primaryStone,omitempty"`
	GoldPrice          float64 `json:"goldPrice"`
	GoldPriceSource    string  `json:"goldPriceSource"`
	ExchangeRate       float64 `json:"exchangeRate"`
	ExchangeRateSource string  `json:"exchangeRateSource"`
}

func (h *PricingHandlers) calculatePrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req calculatePriceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.CalculatePriceCommand{
		MetalTypeID:      req.MetalTypeID,
		MetalWeightGrams: req.MetalWeight,
		PrimaryStone:     stoneSelection(req.PrimaryStone),
		OtherStone:       stoneSelection(req.OtherStone),
	}
	for _, stone := range req.SecondaryStones {
		cmd.SecondaryStones = append(cmd.SecondaryStones, services.StoneSelection{
			StoneTypeID: stone.StoneTypeID,
			CaratWeight: stone.CaratWeight,
		})
	}

	result, err := h.pricing.CalculatePrice(ctx, cmd)
	if err != nil {
		writePricingError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, calculatePriceResponse{
		Success: true,
		QuoteID: result.QuoteID,
		INR:     currencyView(result.Quote.INR, formatINR),
		USD:     currencyView(result.Quote.USD, formatUSD),
		Inputs: inputsPayload{
			MetalType:          result.Inputs.MetalTypeName,
			MetalWeight:        result.Inputs.MetalWeightGrams,
			PrimaryStone:       primaryStoneLabel(result.Inputs),
			GoldPrice:          result.Inputs.GoldPrice,
			GoldPriceSource:    result.Inputs.GoldPriceSource,
			ExchangeRate:       result.Inputs.ExchangeRate,
			ExchangeRateSource: result.Inputs.ExchangeRateSource,
		},
	})
}

func (h *PricingHandlers) goldPrice(w http.ResponseWriter, r *http.Request) {
	quote := h.pricing.GoldPrice(r.Context())
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success":   true,
		"price":     quote.Price,
		"currency":  quote.Currency,
		"unit":      quote.Unit,
		"karat":     quote.Karat,
		"location":  quote.Location,
		"source":    quote.Source,
		"timestamp": formatTime(quote.FetchedAt),
	})
}

func (h *PricingHandlers) exchangeRate(w http.ResponseWriter, r *http.Request) {
	quote := h.pricing.ExchangeRate(r.Context())
	payload := map[string]any{
		"success":   true,
		"rate":      quote.Rate,
		"base":      quote.Base,
		"quote":     quote.Quote,
		"source":    quote.Source,
		"timestamp": formatTime(quote.FetchedAt),
	}
	if quote.Source == marketdata.SourceDefault {
		payload["fallbackRate"] = quote.Rate
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *PricingHandlers) listMetalTypes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	metals, err := h.catalog.ListMetalTypes(ctx)
	if err != nil {
		writePricingError(ctx, w, err)
		return
	}

	items := make([]map[string]any, 0, len(metals))
	for _, metal := range metals {
		purity, multiplier := metal.Factors()
		items = append(items, map[string]any{
			"id":             metal.ID,
			"name":           metal.Name,
			"purityFactor":   purity,
			"typeMultiplier": multiplier,
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"success": true, "metalTypes": items})
}

func (h *PricingHandlers) listStoneTypes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stones, err := h.catalog.ListStoneTypes(ctx)
	if err != nil {
		writePricingError(ctx, w, err)
		return
	}

	items := make([]map[string]any, 0, len(stones))
	for _, stone := range stones {
		items = append(items, map[string]any{
			"id":            stone.ID,
			"name":          stone.Name,
			"category":      stone.Category,
			"pricePerCarat": stone.PricePerCarat,
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"success": true, "stoneTypes": items})
}

func stoneSelection(payload *stoneSelectionPayload) *services.StoneSelection {
	if payload == nil {
		return nil
	}
	return &services.StoneSelection{
		StoneTypeID: payload.StoneTypeID,
		CaratWeight: payload.CaratWeight,
	}
}

func currencyView(amount domain.CurrencyAmount, format func(float64) string) currencyPayload {
	return currencyPayload{
		Price:    amount.Price,
		Currency: amount.Currency,
		Display:  format(amount.Price),
		Breakdown: breakdownPayload{
			MetalCost:          amount.Breakdown.MetalCost,
			PrimaryStoneCost:   amount.Breakdown.PrimaryStoneCost,
			SecondaryStoneCost: amount.Breakdown.SecondaryStoneCost,
			OtherStoneCost:     amount.Breakdown.OtherStoneCost,
			Overhead:           amount.Breakdown.Overhead,
		},
	}
}

func primaryStoneLabel(inputs services.PriceInputs) string {
	if inputs.PrimaryStoneName == "" {
		return ""
	}
	return fmt.Sprintf("%s (%.2f ct)", inputs.PrimaryStoneName, inputs.PrimaryStoneCarat)
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("request_too_large", "request body exceeds limit", http.StatusRequestEntityTooLarge))
	case errors.Is(err, errEmptyBody):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read request body", http.StatusBadRequest))
	}
}

func writePricingError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrPricingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrMetalTypeNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_metal_type", "metal type not found", http.StatusBadRequest))
	case errors.Is(err, services.ErrStoneTypeNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_stone_type", "stone type not found", http.StatusBadRequest))
	case errors.Is(err, services.ErrPricingUnavailable), errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("pricing_unavailable", "pricing is temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
	}
}
