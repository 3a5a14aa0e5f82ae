package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aurumcraft/api/internal/platform/httpx"
	"github.com/aurumcraft/api/internal/services"
)

// InternalHandlers exposes operator-only endpoints behind service authentication.
type InternalHandlers struct {
	marketData services.MarketDataService
}

// NewInternalHandlers constructs handlers over the market data service.
func NewInternalHandlers(marketData services.MarketDataService) *InternalHandlers {
	return &InternalHandlers{marketData: marketData}
}

// Routes wires the internal endpoints onto the provided router.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/market-data/refresh", h.refreshMarketData)
}

type refreshRequest struct {
	Target string `json:"target"`
}

type refreshOutcomePayload struct {
	Target    string  `json:"target"`
	Succeeded bool    `json:"succeeded"`
	Value     float64 `json:"value,omitempty"`
	Source    string  `json:"source,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
	Error     string  `json:"error,omitempty"`
}

func (h *InternalHandlers) refreshMarketData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}

	req := refreshRequest{Target: services.RefreshTargetAll}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
			return
		}
		if req.Target == "" {
			req.Target = services.RefreshTargetAll
		}
	}

	outcomes, err := h.marketData.ForceRefresh(ctx, req.Target)
	if err != nil {
		if errors.Is(err, services.ErrUnknownRefreshTarget) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown refresh target", http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "refresh failed", http.StatusInternalServerError))
		return
	}

	payload := make([]refreshOutcomePayload, 0, len(outcomes))
	allSucceeded := true
	for _, outcome := range outcomes {
		item := refreshOutcomePayload{
			Target:    outcome.Target,
			Succeeded: outcome.Succeeded,
			Value:     outcome.Value,
			Source:    outcome.Source,
			Timestamp: formatTime(outcome.FetchedAt),
			Error:     outcome.Error,
		}
		if !outcome.Succeeded {
			allSucceeded = false
		}
		payload = append(payload, item)
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success":  allSucceeded,
		"outcomes": payload,
	})
}
