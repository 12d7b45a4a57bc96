// Package upstream performs the opaque fetch against the external trends
// data provider. The provider's own protocol is treated as a black box: one
// HTTP call per keyword/timeframe/region triple that either yields a raw
// score series, throttles us, or fails.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"trends-proxy/internal/circuitbreaker"
	"trends-proxy/internal/common/errors"
	"trends-proxy/internal/common/logging"
	"trends-proxy/internal/trends"
)

// Config holds upstream client configuration.
type Config struct {
	// BaseURL is the provider endpoint root
	BaseURL string
	// Timeout bounds each HTTP request
	Timeout time.Duration
	// MaxRequestsPerSecond floors the pacing below the quota governor;
	// zero disables the smoother
	MaxRequestsPerSecond float64
}

// DefaultConfig returns default upstream client configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:              baseURL,
		Timeout:              30 * time.Second,
		MaxRequestsPerSecond: 1,
	}
}

// interestResponse is the provider's payload for an interest-over-time query.
type interestResponse struct {
	Keyword string `json:"keyword"`
	Points  []int  `json:"points"`
}

// Client fetches raw keyword interest series over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *circuitbreaker.Breaker
	smoother   *rate.Limiter
	logger     logging.Logger
}

// New creates an upstream client.
func New(config Config, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	var smoother *rate.Limiter
	if config.MaxRequestsPerSecond > 0 {
		smoother = rate.NewLimiter(rate.Limit(config.MaxRequestsPerSecond), 1)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		baseURL:  config.BaseURL,
		breaker:  circuitbreaker.New("upstream-provider", circuitbreaker.DefaultConfig(), logger),
		smoother: smoother,
		logger:   logger.WithFields(logging.Field{Key: "component", Value: "upstream"}),
	}
}

// Fetch performs one provider call. Returned error kinds drive the retry
// controller: upstream_throttled for quota signals, connection/timeout/
// internal for transient failures, validation for hard request errors.
// An empty series is a valid result.
func (c *Client) Fetch(ctx context.Context, req trends.Request) (trends.Series, error) {
	if c.smoother != nil {
		if err := c.smoother.Wait(ctx); err != nil {
			return nil, errors.TimeoutError("upstream pacing wait")
		}
	}

	var series trends.Series
	err := c.breaker.Execute(ctx, func() error {
		var fetchErr error
		series, fetchErr = c.fetchOnce(ctx, req)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	return series, nil
}

// fetchOnce executes a single HTTP request attempt.
func (c *Client) fetchOnce(ctx context.Context, req trends.Request) (trends.Series, error) {
	start := time.Now()

	u, err := url.Parse(c.baseURL + "/interest-over-time")
	if err != nil {
		return nil, errors.ConfigError("invalid upstream base URL: " + c.baseURL)
	}
	q := u.Query()
	q.Set("keyword", req.Keyword)
	q.Set("timeframe", req.Timeframe)
	q.Set("geo", req.Geo)
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.InternalError("failed to create upstream request", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.TimeoutError("upstream fetch")
		}
		return nil, errors.ConnectionError("upstream request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.InternalError("failed to read upstream response", err)
	}

	c.logger.Debug("Upstream fetch completed",
		logging.String("keyword", req.Keyword),
		logging.Int("status", resp.StatusCode),
		logging.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.UpstreamThrottledError(
			fmt.Sprintf("provider throttled request: HTTP %d", resp.StatusCode), nil)
	case resp.StatusCode >= 500:
		return nil, errors.InternalError(
			fmt.Sprintf("provider returned HTTP %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, errors.ValidationError(
			fmt.Sprintf("provider rejected request: HTTP %d: %s", resp.StatusCode, truncate(body, 200)))
	}

	var parsed interestResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.InternalError("failed to parse upstream response", err)
	}

	if parsed.Points == nil {
		return trends.Series{}, nil
	}
	return trends.Series(parsed.Points), nil
}

// BreakerState exposes the circuit state for status reporting.
func (c *Client) BreakerState() string {
	return c.breaker.State()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
