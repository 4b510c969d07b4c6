package pricing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"order_go/internal/domain"
	"order_go/internal/infra"
)

const maxQuoteBody = 64 << 10

// HTTPSource fetches quotes from the pricing service: GET {base}/v1/prices/{symbol}.
type HTTPSource struct {
	baseURL     string
	httpClient  *http.Client
	maxAttempts int
	backoff     infra.Backoff
}

var _ domain.PriceSource = (*HTTPSource)(nil)

// NewHTTPSource creates a client for the pricing service.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		maxAttempts: 2,
		backoff:     infra.Backoff{Base: 50 * time.Millisecond, Max: 200 * time.Millisecond},
	}
}

// Quote fetches the current price of symbol. Transient failures are retried once
// within the caller's deadline.
func (s *HTTPSource) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	var lastErr error
	for i := 0; i < s.maxAttempts; i++ {
		if i > 0 {
			delay := s.backoff.Delay(i - 1)
			select {
			case <-ctx.Done():
				return domain.Quote{}, fmt.Errorf("%w: %v", domain.ErrPriceUnavailable, lastErr)
			case <-time.After(delay):
			}
		}

		q, err := s.doFetch(ctx, symbol)
		if err == nil {
			return q, nil
		}
		lastErr = err
		if !domain.IsRetriable(err) {
			break
		}
		slog.Warn("Price fetch attempt failed",
			slog.String("symbol", symbol),
			slog.Int("attempt", i+1),
			slog.Any("error", err),
		)
	}
	return domain.Quote{}, fmt.Errorf("%w: %w", domain.ErrPriceUnavailable, lastErr)
}

func (s *HTTPSource) doFetch(ctx context.Context, symbol string) (domain.Quote, error) {
	endpoint := s.baseURL + "/v1/prices/" + url.PathEscape(symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Quote{}, domain.NewFatalNetworkError("quote", err)
	}
	req.Header.Set("User-Agent", infra.DefaultUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.Quote{}, domain.NewFatalNetworkError("quote", err)
		}
		return domain.Quote{}, domain.NewNetworkError("quote", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxQuoteBody))
	if err != nil {
		return domain.Quote{}, domain.NewNetworkError("quote", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return domain.Quote{}, domain.NewNetworkError("quote", fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	default:
		return domain.Quote{}, domain.NewFatalNetworkError("quote", fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	q, err := decodeQuote(body, "http", time.Time{})
	if err != nil {
		return domain.Quote{}, domain.NewFatalNetworkError("quote", err)
	}
	if q.Symbol == "" {
		q.Symbol = symbol
	}
	return q, nil
}
