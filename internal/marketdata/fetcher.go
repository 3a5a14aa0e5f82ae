package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
)

const (
	fetchUserAgent   = "aurumcraft-pricing/1.0"
	maxResponseBytes = 1 << 20
)

// httpFetcher retrieves a raw payload from a list of upstream endpoints.
// Endpoints are tried in order; a full pass failing is retried with
// exponential backoff until the attempt budget or context deadline runs out.
type httpFetcher struct {
	client      *http.Client
	urls        []string
	headers     map[string]string
	maxAttempts int
	logger      *zap.Logger
}

func newHTTPFetcher(urls []string, timeout time.Duration, headers map[string]string, logger *zap.Logger) *httpFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &httpFetcher{
		client:      &http.Client{Timeout: timeout},
		urls:        urls,
		headers:     headers,
		maxAttempts: 3,
		logger:      logger,
	}
}

// fetch returns the first successfully retrieved body along with its URL.
func (f *httpFetcher) fetch(ctx context.Context) ([]byte, string, error) {
	if len(f.urls) == 0 {
		return nil, "", fmt.Errorf("marketdata: no endpoints configured")
	}

	backoff := gax.Backoff{
		Initial:    200 * time.Millisecond,
		Max:        2 * time.Second,
		Multiplier: 2,
	}

	var lastErr error
	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := gax.Sleep(ctx, backoff.Pause()); err != nil {
				return nil, "", err
			}
		}

		for _, url := range f.urls {
			body, err := f.fetchOne(ctx, url)
			if err == nil {
				return body, url, nil
			}
			lastErr = err
			f.logger.Debug("market data endpoint failed",
				zap.String("url", url),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
		}
	}

	return nil, "", fmt.Errorf("marketdata: all endpoints failed: %w", lastErr)
}

func (f *httpFetcher) fetchOne(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	for key, value := range f.headers {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	return body, nil
}
