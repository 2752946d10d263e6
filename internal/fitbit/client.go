// ABOUTME: REST client for the Fitbit Web API with per-user bearer tokens.
// ABOUTME: Wraps oauth2 transport, records upstream metrics, and decodes JSON responses.
package fitbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/harperreed/bloom/internal/metrics"
)

// DefaultBaseURL is the public Fitbit Web API root.
const DefaultBaseURL = "https://api.fitbit.com"

// ErrUpstream marks every failure talking to the wearable API.
var ErrUpstream = errors.New("upstream unavailable")

// APIError is a non-2xx response from the wearable API.
type APIError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fitbit %s: status %d: %s", e.Endpoint, e.Status, e.Body)
}

// Unwrap lets callers match any API error against ErrUpstream.
func (e *APIError) Unwrap() error { return ErrUpstream }

// Client calls the wearable API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// get issues an authenticated GET for path and decodes the body into out.
// endpoint is the low-cardinality label used for metrics and errors.
func (c *Client) get(ctx context.Context, token, endpoint, path string, out any) error {
	timer := time.Now()
	defer func() {
		metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(timer).Seconds())
	}()

	// oauth2.NewClient reuses c.http's transport and timeout when passed through the context.
	httpClient := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, c.http),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("fitbit %s: %w: %w", endpoint, ErrUpstream, err)
	}
	defer resp.Body.Close()
	metrics.UpstreamRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{Endpoint: endpoint, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w: %w", endpoint, ErrUpstream, err)
	}
	return nil
}
