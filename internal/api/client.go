package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "github.com/auralis/auralis-go/internal/errors"
	"github.com/auralis/auralis-go/internal/monitoring"
	"github.com/auralis/auralis-go/internal/network"
	"golang.org/x/time/rate"
)

// ServerClient handles all interactions with the media server API
type ServerClient struct {
	// httpClient serves short JSON calls; streamClient carries track and
	// artwork bodies without an overall deadline
	httpClient   *http.Client
	streamClient *http.Client
	baseURL      string
	rateLimiter  *rate.Limiter

	mu    sync.RWMutex
	token string
}

// NewServerClient creates a client for the media server with connection pooling
func NewServerClient(baseURL string, timeout time.Duration) *ServerClient {
	config := network.DefaultClientConfig()
	config.Timeout = timeout

	return &ServerClient{
		httpClient:   network.NewClient(config),
		streamClient: network.GetStreamingClient(),
		baseURL:      strings.TrimRight(baseURL, "/"),
		rateLimiter:  rate.NewLimiter(rate.Every(100*time.Millisecond), 10), // 10 requests per second
	}
}

// SetToken installs the bearer token used on subsequent requests
func (c *ServerClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *ServerClient) authHeaders() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + c.token}
}

// doJSON performs a rate-limited request and decodes a JSON response body
// into out when out is non-nil. HTTP statuses are mapped onto the error
// taxonomy so callers can branch on retryability.
func (c *ServerClient) doJSON(ctx context.Context, method, endpoint string, payload, out interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return apperrors.NewNetworkError("rate limiter interrupted", err)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return apperrors.NewValidationError(fmt.Sprintf("failed to encode request: %v", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("failed to create request: %v", err))
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.authHeaders() {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		monitoring.RecordAPIRequest(endpoint, "error", time.Since(start))
		return apperrors.NewNetworkError("request failed", err)
	}
	defer resp.Body.Close()
	monitoring.RecordAPIRequest(endpoint, fmt.Sprintf("%d", resp.StatusCode), time.Since(start))

	if err := statusToError(resp.StatusCode, endpoint); err != nil {
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.NewNetworkError("failed to decode response", err)
		}
	}
	return nil
}

// statusToError maps non-2xx statuses to typed errors. 5xx and 429 are
// retryable; 4xx are not.
func statusToError(status int, endpoint string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return apperrors.NewNotFoundError(fmt.Sprintf("not found: %s", endpoint))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.NewPermissionError(fmt.Sprintf("access denied: %s", endpoint), nil)
	case status == http.StatusTooManyRequests || status >= 500:
		return apperrors.NewNetworkError(fmt.Sprintf("server error %d: %s", status, endpoint), nil)
	default:
		return apperrors.NewValidationError(fmt.Sprintf("unexpected status %d: %s", status, endpoint))
	}
}
