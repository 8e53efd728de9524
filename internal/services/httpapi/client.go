// Package httpapi holds the JSON request plumbing shared by every external
// service client: authenticated requests, transient-error retry and an
// optional per-client response cache.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// ErrNotFound marks a definitive 404 from the upstream service, letting
// callers tell "this resource is gone" apart from transient failures.
var ErrNotFound = errors.New("resource not found")

// Client performs JSON requests against one external service instance.
type Client struct {
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	cache      *gocache.Cache
	logger     *logrus.Logger
}

// NewClient creates a client for the given base URL. Every request carries
// the supplied headers. The cache may be nil to disable response caching.
func NewClient(baseURL string, headers map[string]string, cache *gocache.Cache, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		headers:    headers,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache,
		logger:     logger,
	}
}

// GetJSON performs a GET request and decodes the JSON response
func (c *Client) GetJSON(ctx context.Context, path string, result any) error {
	body, err := c.doWithRetry(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// GetJSONCached performs a GET request, serving and populating the client's
// response cache with the given TTL. Falls back to an uncached request when
// no cache is configured.
func (c *Client) GetJSONCached(ctx context.Context, path string, ttl time.Duration, result any) error {
	if c.cache == nil {
		return c.GetJSON(ctx, path, result)
	}

	if cached, ok := c.cache.Get(path); ok {
		if err := json.Unmarshal(cached.([]byte), result); err == nil {
			return nil
		}
		// fall through on a decode failure and refetch
	}

	body, err := c.doWithRetry(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	c.cache.Set(path, body, ttl)

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// DoJSON performs a request with an optional JSON body and decodes the
// JSON response into result when non-nil.
func (c *Client) DoJSON(ctx context.Context, method, path string, requestBody, result any) error {
	var encoded []byte
	if requestBody != nil {
		data, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		encoded = data
	}

	body, err := c.doWithRetry(ctx, method, path, encoded)
	if err != nil {
		return err
	}
	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// doWithRetry performs the request, retrying transient failures (network
// errors and 5xx responses) with exponential backoff.
func (c *Client) doWithRetry(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var responseBody []byte

	operation := func() error {
		data, err := c.do(ctx, method, path, body)
		if err != nil {
			return err
		}
		responseBody = data
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return responseBody, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	fullURL := c.baseURL + path
	c.logger.WithFields(logrus.Fields{
		"method": method,
		"url":    fullURL,
	}).Debug("Making API request")

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(responseBody))
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, backoff.Permanent(fmt.Errorf("API request failed with status 404: %w", ErrNotFound))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, backoff.Permanent(fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(responseBody)))
	}

	return responseBody, nil
}
