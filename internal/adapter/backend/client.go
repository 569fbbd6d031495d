// Package backend provides the HTTP client for the task and spreadsheet API.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Strob0t/TaskDesk/internal/domain"
	"github.com/Strob0t/TaskDesk/internal/logger"
	"github.com/Strob0t/TaskDesk/internal/resilience"
)

// apiPrefix is prepended to every endpoint path.
const apiPrefix = "/api/v1"

// Client talks to the backend API. It implements taskapi.TaskClient and
// taskapi.JobClient and never caches.
type Client struct {
	baseURL    string
	token      func() string
	timeout    time.Duration
	jobTimeout time.Duration
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// Option configures a Client.
type Option func(*Client)

// WithToken forwards token as a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = func() string { return token } }
}

// WithTokenSource reads the bearer token from src on every request, so a
// rotated token is picked up without rebuilding the client.
func WithTokenSource(src func() string) Option {
	return func(c *Client) { c.token = src }
}

// WithTimeouts sets the per-request timeout and the spreadsheet upload timeout.
func WithTimeouts(request, job time.Duration) Option {
	return func(c *Client) {
		if request > 0 {
			c.timeout = request
		}
		if job > 0 {
			c.jobTimeout = job
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a backend client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    10 * time.Second,
		jobTimeout: 2 * time.Minute,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls. Only
// network and server errors count towards opening it.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b.TripOn(tripsBreaker)
}

func tripsBreaker(err error) bool {
	apiErr, ok := domain.AsAPIError(err)
	if !ok {
		return true
	}
	return apiErr.Kind == domain.KindNetwork || apiErr.Kind == domain.KindServer
}

// request describes one backend call.
type request struct {
	method      string
	path        string
	query       url.Values
	contentType string
	body        []byte
	timeout     time.Duration
}

// do performs req and returns the response body of a 2xx answer. Any other
// outcome is returned as *domain.APIError.
func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	var result []byte
	call := func() error {
		data, err := c.roundTrip(ctx, req)
		if err != nil {
			return err
		}
		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			if errors.Is(err, resilience.ErrCircuitOpen) {
				return nil, domain.NewNetworkError(err)
			}
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) roundTrip(ctx context.Context, req request) ([]byte, error) {
	timeout := req.timeout
	if timeout == 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, requestID := logger.EnsureRequestID(ctx)

	u := c.baseURL + apiPrefix + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var bodyReader io.Reader
	if req.body != nil {
		bodyReader = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if token := c.bearer(); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		slog.Debug("backend request failed", "method", req.method, "path", req.path, "request_id", requestID, "error", err)
		return nil, domain.NewNetworkError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewNetworkError(fmt.Errorf("read response: %w", err))
	}

	slog.Debug("backend request",
		"method", req.method,
		"path", req.path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", requestID,
	)

	if resp.StatusCode >= 400 {
		return nil, parseError(resp.StatusCode, data)
	}
	return data, nil
}

func (c *Client) bearer() string {
	if c.token == nil {
		return ""
	}
	return c.token()
}
