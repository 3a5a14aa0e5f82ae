package pricingclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	calculatePricePath = "/api/v1/pricing/calculate-price"

	defaultRequestTimeout = 15 * time.Second
	maxResponseBodyBytes  = 1 << 20
	clientUserAgentHeader = "aurumcraft-pricingclient/1.0"
	contentTypeJSONHeader = "application/json"
)

// StoneSelection identifies one stone choice on a quote request.
type StoneSelection struct {
	StoneTypeID string  `json:"stoneTypeId"`
	CaratWeight float64 `json:"caratWeight"`
}

// QuoteRequest carries the pricing parameters for one product configuration.
type QuoteRequest struct {
	MetalTypeID     string           `json:"metalTypeId"`
	MetalWeight     float64          `json:"metalWeight"`
	PrimaryStone    *StoneSelection  `json:"primaryStone,omitempty"`
	SecondaryStones []StoneSelection `json:"secondaryStones,omitempty"`
	OtherStone      *StoneSelection  `json:"otherStone,omitempty"`
}

// Breakdown itemises a quoted price in one currency.
type Breakdown struct {
	MetalCost          float64 `json:"metalCost"`
	PrimaryStoneCost   float64 `json:"primaryStoneCost"`
	SecondaryStoneCost float64 `json:"secondaryStoneCost"`
	OtherStoneCost     float64 `json:"otherStoneCost"`
	Overhead           float64 `json:"overhead"`
}

// CurrencyQuote is a quoted price in one currency with a display string.
type CurrencyQuote struct {
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	Display   string    `json:"display"`
	Breakdown Breakdown `json:"breakdown"`
}

// QuoteInputs echoes the resolved inputs the server priced against.
type QuoteInputs struct {
	MetalType          string  `json:"metalType"`
	MetalWeight        float64 `json:"metalWeight"`
	PrimaryStone       string  `json:"primaryStone"`
	GoldPrice          float64 `json:"goldPrice"`
	GoldPriceSource    string  `json:"goldPriceSource"`
	ExchangeRate       float64 `json:"exchangeRate"`
	ExchangeRateSource string  `json:"exchangeRateSource"`
}

// QuoteResponse is the successful calculate-price payload.
type QuoteResponse struct {
	Success bool          `json:"success"`
	QuoteID string        `json:"quoteId"`
	INR     CurrencyQuote `json:"inr"`
	USD     CurrencyQuote `json:"usd"`
	Inputs  QuoteInputs   `json:"inputs"`
}

// APIError is the server's JSON error envelope surfaced as a Go error.
type APIError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pricing api: %s (%s, status %d)", e.Message, e.Code, e.Status)
}

// Client is a thin HTTP client for the pricing API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption customises the client before construction completes.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient constructs a pricing API client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("pricingclient: base URL is required")
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CalculatePrice requests a quote for the given product configuration.
func (c *Client) CalculatePrice(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("pricingclient: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+calculatePricePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("pricingclient: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentTypeJSONHeader)
	httpReq.Header.Set("User-Agent", clientUserAgentHeader)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("pricingclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("pricingclient: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(payload, apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = "unexpected_response"
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		if apiErr.Status == 0 {
			apiErr.Status = resp.StatusCode
		}
		return nil, apiErr
	}

	var quote QuoteResponse
	if err := json.Unmarshal(payload, &quote); err != nil {
		return nil, fmt.Errorf("pricingclient: decode response: %w", err)
	}
	return &quote, nil
}
