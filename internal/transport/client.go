// Package transport is the REST client for the booking backend. It sends JSON
// bodies, or multipart/form-data when a draft carries file uploads, and guards
// every call with a client-side rate limiter and a circuit breaker.
package transport

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

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/example/roombooking/internal/domain"
	"github.com/example/roombooking/internal/metrics"
)

// ErrCircuitOpen is returned while the circuit breaker rejects requests.
var ErrCircuitOpen = errors.New("transport: circuit breaker is open")

const maxResponseBytes = 16 << 20

// StatusError reports a non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	msg := fmt.Sprintf("transport: %s %s: status %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Temporary reports whether the failure is on the backend side.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Config describes how to reach the backend.
type Config struct {
	BaseURL string
	// Token is sent as a bearer token when set.
	Token   string
	Timeout time.Duration
	// RateLimit is the sustained request rate per second. Zero disables limiting.
	RateLimit float64
	RateBurst int
	// BreakerMaxFailures is the number of consecutive failures that opens the breaker.
	BreakerMaxFailures uint32
	// BreakerTimeout is how long the breaker stays open before probing again.
	BreakerTimeout time.Duration
	// Endpoints overrides collection paths per kind.
	Endpoints map[domain.Kind]string
}

// DefaultEndpoints returns the collection path of every kind.
func DefaultEndpoints() map[domain.Kind]string {
	return map[domain.Kind]string{
		domain.KindRoom:       "/rooms",
		domain.KindFeature:    "/features",
		domain.KindUser:       "/users",
		domain.KindMeeting:    "/meetings",
		domain.KindAttendee:   "/meeting-attendees",
		domain.KindMinutes:    "/minutes",
		domain.KindActionItem: "/action-items",
	}
}

// Options carries optional collaborators.
type Options struct {
	HTTPClient *http.Client
	// NewID generates X-Request-ID and Idempotency-Key values.
	NewID   func() string
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Client talks to the backend REST API.
type Client struct {
	base      *url.URL
	token     string
	http      *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	endpoints map[domain.Kind]string
	newID     func() string
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// New builds a client with default options.
func New(cfg Config) (*Client, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions builds a client for cfg.
func NewWithOptions(cfg Config, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("transport: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("transport: base url %q must be http or https", cfg.BaseURL)
	}
	base.Path = strings.TrimRight(base.Path, "/")

	endpoints := DefaultEndpoints()
	for kind, path := range cfg.Endpoints {
		if !kind.Valid() {
			return nil, fmt.Errorf("transport: endpoint for unknown kind %q", kind)
		}
		if path = strings.TrimSpace(path); path != "" {
			endpoints[kind] = "/" + strings.Trim(path, "/")
		}
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	burst := cfg.RateBurst
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		if burst <= 0 {
			burst = 1
		}
	}

	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		base:      base,
		token:     cfg.Token,
		http:      httpClient,
		limiter:   rate.NewLimiter(limit, burst),
		endpoints: endpoints,
		newID:     newID,
		logger:    logger.With("component", "transport"),
		metrics:   opts.Metrics,
	}
	c.breaker = newBreaker(cfg, c.logger, opts.Metrics)
	return c, nil
}

func newBreaker(cfg Config, logger *slog.Logger, m *metrics.Metrics) *gobreaker.CircuitBreaker {
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	timeout := cfg.BreakerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	const name = "backend"
	m.BreakerState(name, gobreaker.StateClosed.String())
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// Rejections of the request itself say nothing about backend health.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var statusErr *StatusError
			return errors.As(err, &statusErr) && !statusErr.Temporary()
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			m.BreakerState(name, to.String())
		},
	})
}

// Endpoint returns the collection path used for kind.
func (c *Client) Endpoint(kind domain.Kind) (string, bool) {
	path, ok := c.endpoints[kind]
	return path, ok
}

// List fetches the raw collection payload of kind.
func (c *Client) List(ctx context.Context, kind domain.Kind) ([]byte, error) {
	path, err := c.collectionPath(kind)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodGet, path, nil)
}

// Create posts a new entity of kind.
func (c *Client) Create(ctx context.Context, kind domain.Kind, fields map[string]any, files []domain.Upload) ([]byte, error) {
	path, err := c.collectionPath(kind)
	if err != nil {
		return nil, err
	}
	body, err := encodeBody(fields, files)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, path, body)
}

// Update replaces the entity of kind with id.
func (c *Client) Update(ctx context.Context, kind domain.Kind, id domain.ID, fields map[string]any, files []domain.Upload) ([]byte, error) {
	path, err := c.entityPath(kind, id)
	if err != nil {
		return nil, err
	}
	body, err := encodeBody(fields, files)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPut, path, body)
}

// Delete removes the entity of kind with id.
func (c *Client) Delete(ctx context.Context, kind domain.Kind, id domain.ID) error {
	path, err := c.entityPath(kind, id)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodDelete, path, nil)
	return err
}

func (c *Client) collectionPath(kind domain.Kind) (string, error) {
	path, ok := c.endpoints[kind]
	if !ok {
		return "", fmt.Errorf("transport: no endpoint for kind %q", kind)
	}
	return path, nil
}

func (c *Client) entityPath(kind domain.Kind, id domain.ID) (string, error) {
	if id.IsZero() {
		return "", errors.New("transport: id is required")
	}
	path, err := c.collectionPath(kind)
	if err != nil {
		return "", err
	}
	return path + "/" + url.PathEscape(id.String()), nil
}

func (c *Client) do(ctx context.Context, method, path string, body *requestBody) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("transport: rate limit: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, method, path, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.metrics.BackendRequest(method, "circuit_open")
		return nil, fmt.Errorf("%w: %s %s", ErrCircuitOpen, method, path)
	}
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body *requestBody) ([]byte, error) {
	target, err := url.Parse(c.base.String() + path)
	if err != nil {
		return nil, fmt.Errorf("transport: build url: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body.data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}

	requestID := c.newID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", body.contentType)
	}
	if method == http.MethodPost {
		req.Header.Set("Idempotency-Key", c.newID())
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	logger := c.logger.With("method", method, "path", path, "request_id", requestID)
	start := time.Now()

	res, err := c.http.Do(req)
	if err != nil {
		c.metrics.BackendRequest(method, "network")
		logger.WarnContext(ctx, "backend request failed", "error", err)
		return nil, fmt.Errorf("transport: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		c.metrics.BackendRequest(method, "network")
		return nil, fmt.Errorf("transport: read %s %s: %w", method, path, err)
	}

	c.metrics.BackendRequest(method, fmt.Sprintf("%dxx", res.StatusCode/100))
	logger.DebugContext(ctx, "backend request completed", "status", res.StatusCode, "duration", time.Since(start))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet := strings.TrimSpace(string(data))
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, &StatusError{Method: method, Path: path, StatusCode: res.StatusCode, Body: snippet}
	}
	return data, nil
}
