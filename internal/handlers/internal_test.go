package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aurumcraft/api/internal/services"
)

type fakeMarketDataService struct {
	outcomes   []services.RefreshOutcome
	err        error
	lastTarget string
}

func (f *fakeMarketDataService) ForceRefresh(_ context.Context, target string) ([]services.RefreshOutcome, error) {
	f.lastTarget = target
	if f.err != nil {
		return nil, f.err
	}
	return f.outcomes, nil
}

func newInternalTestRouter(svc services.MarketDataService) http.Handler {
	h := NewInternalHandlers(svc)
	return NewRouter(WithInternalRoutes(h.Routes))
}

func TestRefreshMarketDataSingleTarget(t *testing.T) {
	svc := &fakeMarketDataService{outcomes: []services.RefreshOutcome{
		{Target: services.RefreshTargetGold, Succeeded: true, Value: 7512, Source: "live", FetchedAt: time.Now()},
	}}
	router := newInternalTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/market-data/refresh", strings.NewReader(`{"target":"gold"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastTarget != services.RefreshTargetGold {
		t.Fatalf("expected gold target forwarded, got %q", svc.lastTarget)
	}

	var payload struct {
		Success  bool `json:"success"`
		Outcomes []struct {
			Target    string  `json:"target"`
			Succeeded bool    `json:"succeeded"`
			Value     float64 `json:"value"`
			Source    string  `json:"source"`
		} `json:"outcomes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.Success || len(payload.Outcomes) != 1 || payload.Outcomes[0].Value != 7512 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestRefreshMarketDataDefaultsToAll(t *testing.T) {
	svc := &fakeMarketDataService{outcomes: []services.RefreshOutcome{
		{Target: services.RefreshTargetGold, Succeeded: true},
		{Target: services.RefreshTargetExchangeRate, Succeeded: true},
	}}
	router := newInternalTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/market-data/refresh", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for an empty body, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastTarget != services.RefreshTargetAll {
		t.Fatalf("expected all target by default, got %q", svc.lastTarget)
	}
}

func TestRefreshMarketDataUnknownTarget(t *testing.T) {
	svc := &fakeMarketDataService{err: services.ErrUnknownRefreshTarget}
	router := newInternalTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/market-data/refresh", strings.NewReader(`{"target":"silver"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload["error"] != "invalid_request" {
		t.Fatalf("expected invalid_request, got %v", payload["error"])
	}
}

func TestRefreshMarketDataReportsPartialFailure(t *testing.T) {
	svc := &fakeMarketDataService{outcomes: []services.RefreshOutcome{
		{Target: services.RefreshTargetGold, Succeeded: false, Error: "upstream down"},
		{Target: services.RefreshTargetExchangeRate, Succeeded: true, Value: 83.4, Source: "live"},
	}}
	router := newInternalTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/market-data/refresh", strings.NewReader(`{"target":"all"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for partial failure, got %d", rec.Code)
	}
	var payload struct {
		Success  bool `json:"success"`
		Outcomes []struct {
			Succeeded bool   `json:"succeeded"`
			Error     string `json:"error"`
		} `json:"outcomes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Success {
		t.Fatalf("expected success=false when any target failed")
	}
	if payload.Outcomes[0].Error != "upstream down" {
		t.Fatalf("expected error surfaced, got %+v", payload.Outcomes[0])
	}
}
