// Package homeassistant provides a [backend.Provider] backed by the Home
// Assistant REST API.
//
// Endpoints used:
//
//	GET  /api/                          Ping
//	GET  /api/states                    Entities (filtered by domain prefix)
//	GET  /api/states/<entity_id>        State
//	POST /api/services/<domain>/<svc>   Trigger
//
// Requests authenticate with a long-lived access token as a bearer token.
// Every call runs through a circuit breaker; once it opens, calls fail fast
// with [backend.ErrUnavailable] until the reset timeout elapses.
//
// Example usage:
//
//	c, err := homeassistant.New("http://homeassistant.local:8123", token,
//	    homeassistant.WithTimeout(10*time.Second))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	lights, err := c.Entities(ctx, "light")
package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/voicehac/internal/observe"
	"github.com/MrWong99/voicehac/internal/resilience"
	"github.com/MrWong99/voicehac/pkg/provider/backend"
)

// DefaultTimeout is the per-request HTTP timeout used when none is configured.
const DefaultTimeout = 10 * time.Second

// errServer marks 5xx answers. They count towards the circuit breaker.
var errServer = errors.New("server error")

var _ backend.Provider = (*Client)(nil)

// Client implements [backend.Provider] against a Home Assistant instance.
//
// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	metrics    *observe.Metrics
}

type config struct {
	timeout    time.Duration
	httpClient *http.Client
	breaker    resilience.CircuitBreakerConfig
	metrics    *observe.Metrics
}

// Option is a functional option for [Client].
type Option func(*config)

// WithTimeout sets the per-request HTTP timeout. Default: [DefaultTimeout].
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client. The client is copied,
// so the timeout set by [WithTimeout] never leaks back to the caller.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// WithBreaker tunes the circuit breaker. Name and Counts are always set by
// the client.
func WithBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *config) {
		c.breaker = cfg
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// New constructs a Home Assistant client.
//
// baseURL is the instance root, e.g. "http://homeassistant.local:8123". A
// trailing slash is stripped. token is the long-lived access token; an empty
// token is allowed (useful behind an authenticating proxy) but every request
// is then sent without an Authorization header.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("homeassistant: base URL must not be empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("homeassistant: invalid base URL %q", baseURL)
	}

	cfg := &config{timeout: DefaultTimeout}
	for _, o := range opts {
		o(cfg)
	}

	// The caller's client may be shared; configure a copy.
	hc := &http.Client{}
	if cfg.httpClient != nil {
		c := *cfg.httpClient
		hc = &c
	}
	if cfg.timeout > 0 {
		hc.Timeout = cfg.timeout
	}
	if cfg.metrics == nil {
		cfg.metrics = observe.DefaultMetrics()
	}

	bcfg := cfg.breaker
	bcfg.Name = "homeassistant"
	bcfg.Counts = countsAsFailure

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: hc,
		breaker:    resilience.NewCircuitBreaker(bcfg),
		metrics:    cfg.metrics,
	}, nil
}

// stateResponse is one element of GET /api/states and the body of
// GET /api/states/<id>.
type stateResponse struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

func (s stateResponse) entity() backend.Entity {
	attrs := s.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	return backend.Entity{
		ID:    s.EntityID,
		State: backend.State{State: s.State, Attributes: attrs},
	}
}

// Entities implements [backend.Provider]. Home Assistant has no per-domain
// listing, so all states are fetched and filtered by the "<domain>." prefix.
func (c *Client) Entities(ctx context.Context, domain string) (map[string]backend.Entity, error) {
	var states []stateResponse
	if err := c.do(ctx, "entities", http.MethodGet, "/api/states", nil, &states); err != nil {
		return nil, fmt.Errorf("homeassistant: list %s entities: %w", domain, err)
	}
	prefix := domain + "."
	out := make(map[string]backend.Entity)
	for _, s := range states {
		if strings.HasPrefix(s.EntityID, prefix) {
			out[s.EntityID] = s.entity()
		}
	}
	return out, nil
}

// State implements [backend.Provider].
func (c *Client) State(ctx context.Context, id string) (backend.Entity, error) {
	var s stateResponse
	if err := c.do(ctx, "state", http.MethodGet, "/api/states/"+url.PathEscape(id), nil, &s); err != nil {
		return backend.Entity{}, fmt.Errorf("homeassistant: state of %s: %w", id, err)
	}
	if s.EntityID == "" {
		s.EntityID = id
	}
	return s.entity(), nil
}

// Trigger implements [backend.Provider] by calling the service with
// entity_id merged into params.
func (c *Client) Trigger(ctx context.Context, domain, service, id string, params map[string]any) error {
	data := make(map[string]any, len(params)+1)
	for k, v := range params {
		data[k] = v
	}
	data["entity_id"] = id

	path := "/api/services/" + url.PathEscape(domain) + "/" + url.PathEscape(service)
	if err := c.do(ctx, "trigger", http.MethodPost, path, data, nil); err != nil {
		return fmt.Errorf("homeassistant: call %s.%s on %s: %w", domain, service, id, err)
	}
	return nil
}

// Ping implements [backend.Provider] using the API root, which answers
// {"message": "API running."} when the token is valid.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.do(ctx, "ping", http.MethodGet, "/api/", nil, nil); err != nil {
		return fmt.Errorf("homeassistant: ping: %w", err)
	}
	return nil
}

// BreakerState reports the circuit breaker state, for readiness probes.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// do runs one request through the circuit breaker and records telemetry.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	ctx, span := observe.StartSpan(ctx, "homeassistant."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.path", path)),
	)
	defer span.End()

	start := time.Now()
	err := c.breaker.Execute(func() error {
		return c.roundTrip(ctx, method, path, body, out)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		err = fmt.Errorf("%w: %w", backend.ErrUnavailable, err)
	}

	status := statusOf(err)
	c.metrics.RecordBackendRequest(ctx, op, status, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		observe.Logger(ctx).Debug("homeassistant: request failed", "op", op, "path", path, "status", status, "err", err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return backend.ErrNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d", errServer, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return classifyTransport(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// classifyTransport maps transport failures onto the backend sentinels.
// Cancellation by the caller is passed through untouched.
func classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %w", backend.ErrTimeout, err)
	}
	var ue *url.Error
	var oe *net.OpError
	if errors.As(err, &ue) || errors.As(err, &oe) {
		return fmt.Errorf("%w: %w", backend.ErrUnavailable, err)
	}
	return err
}

func countsAsFailure(err error) bool {
	return backend.IsConnectivity(err) || errors.Is(err, errServer)
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, backend.ErrTimeout):
		return "timeout"
	case errors.Is(err, backend.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, backend.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
