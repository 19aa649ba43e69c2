package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"kpidash/internal/domain"
	"kpidash/pkg/logger"
	"kpidash/pkg/metrics"

	"golang.org/x/time/rate"
)

// HTTPClient is the rate-limited, instrumented transport shared by every
// upstream client.
type HTTPClient struct {
	client      *http.Client
	logger      *logger.Logger
	metrics     *metrics.Metrics
	rateLimiter *rate.Limiter
}

// creates a new HTTP client
func NewHTTPClient(timeout time.Duration, ratePerSecond int, logger *logger.Logger, metrics *metrics.Metrics) *HTTPClient {
	if ratePerSecond < 1 {
		ratePerSecond = 1
	}
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger:      logger,
		metrics:     metrics,
		rateLimiter: rate.NewLimiter(rate.Limit(ratePerSecond), ratePerSecond),
	}
}

// upstreamError decodes the error body an upstream returned, if any.
type upstreamError func(body []byte) string

// GetJSON issues a GET and decodes a 200 response into out. Numbers are
// decoded as json.Number so amounts keep their exact decimal text.
func (c *HTTPClient) GetJSON(ctx context.Context, api, url string, header http.Header, out any, describe upstreamError) error {
	body, err := c.do(ctx, api, http.MethodGet, url, header, nil, describe)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		c.metrics.RecordExternalAPIFailure(api, "json_parse")
		return &domain.SourceError{Source: api, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}

// PostJSON sends payload and accepts any 2xx response.
func (c *HTTPClient) PostJSON(ctx context.Context, api, url string, header http.Header, payload []byte) error {
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Type", "application/json")
	_, err := c.do(ctx, api, http.MethodPost, url, header, payload, nil)
	return err
}

func (c *HTTPClient) do(ctx context.Context, api, method, url string, header http.Header, payload []byte, describe upstreamError) ([]byte, error) {
	start := time.Now()

	// Apply rate limiting
	if err := c.rateLimiter.Wait(ctx); err != nil {
		c.metrics.RecordExternalAPIFailure(api, "rate_limit")
		return nil, fmt.Errorf("rate limit wait: %w", waitError(ctx, err))
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		c.metrics.RecordExternalAPIFailure(api, "request_creation")
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// The caller gave up; this is not an upstream failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				c.metrics.RecordExternalAPIFailure(api, "timeout")
			}
			return nil, fmt.Errorf("%s request: %w", api, ctxErr)
		}
		c.metrics.RecordExternalAPIFailure(api, "network_error")
		return nil, &domain.SourceError{Source: api, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	if err != nil {
		c.metrics.RecordExternalAPIFailure(api, "read_body")
		return nil, &domain.SourceError{Source: api, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.RecordExternalAPICall(api, fmt.Sprintf("error_%d", resp.StatusCode), duration)
		msg := http.StatusText(resp.StatusCode)
		if describe != nil {
			if m := describe(body); m != "" {
				msg = m
			}
		}
		return nil, &domain.SourceError{Source: api, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	c.metrics.RecordExternalAPICall(api, "success", duration)

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"api":      api,
		"method":   method,
		"duration": duration,
		"bytes":    len(body),
	}).Debug("Upstream call succeeded")

	return body, nil
}

// waitError reports a limiter refusal as the context error it anticipates.
// Wait fails early when the next token would arrive after the deadline.
func waitError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}
