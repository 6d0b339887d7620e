package adapter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/feral-file/ff-mint-reconciler/internal/logger"
)

// HTTPResponse is a fully read HTTP response
type HTTPResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// HTTPClient defines an interface for HTTP client operations
type HTTPClient interface {
	// PostJSON sends body as a JSON POST request with the given headers.
	// Any status code is returned as a response; only transport failures are errors.
	PostJSON(ctx context.Context, url string, headers map[string]string, body []byte) (*HTTPResponse, error)
}

// RealHTTPClient implements HTTPClient using the standard http package
type RealHTTPClient struct {
	client *http.Client
	// maxRateLimitWait bounds the total time spent retrying 429 responses
	maxRateLimitWait time.Duration
}

// NewHTTPClient creates a new real HTTP client
func NewHTTPClient(timeout time.Duration) HTTPClient {
	return &RealHTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		maxRateLimitWait: 30 * time.Second,
	}
}

// PostJSON performs a POST request.
// A 429 response means the request was not processed, so it is retried with exponential
// backoff until the context expires. Other responses are returned to the caller as is.
func (c *RealHTTPClient) PostJSON(ctx context.Context, url string, headers map[string]string, body []byte) (*HTTPResponse, error) {
	var response *HTTPResponse

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to perform request: %w", err))
		}
		defer func() {
			if err := resp.Body.Close(); err != nil {
				logger.WarnCtx(ctx, "failed to close response body", zap.Error(err), zap.String("url", url))
			}
		}()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to read response body: %w", err))
		}

		response = &HTTPResponse{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       respBody,
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("rate limited (429)")
		}

		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = c.maxRateLimitWait
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.5

	err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), func(err error, d time.Duration) {
		logger.WarnCtx(ctx, "rate limited, retrying with backoff",
			zap.String("url", url),
			zap.Duration("retry_in", d))
	})
	if err != nil {
		// Retries ran out on a 429, hand the last response back
		if response != nil && response.StatusCode == http.StatusTooManyRequests {
			return response, nil
		}
		return nil, err
	}

	return response, nil
}
