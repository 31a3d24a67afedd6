// Package randstr fetches random strings from a plain-text HTTP service
// (random.org's strings API or a compatible endpoint).
package randstr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/xraph/abacus/arith"
)

// Default configuration values.
const (
	DefaultBaseURL = "https://www.random.org/strings/"
	DefaultLength  = 10
	DefaultTimeout = 10 * time.Second

	maxLength   = 20
	maxBodySize = 4 << 20
)

// ErrUpstreamStatus is returned when the service answers with a non-2xx
// status.
var ErrUpstreamStatus = errors.New("randstr: unexpected upstream status")

// Config configures a Client.
type Config struct {
	BaseURL string        `json:"base_url" mapstructure:"base_url" yaml:"base_url"`
	Length  int           `json:"length"   mapstructure:"length"   yaml:"length"`
	Timeout time.Duration `json:"timeout"  mapstructure:"timeout"  yaml:"timeout"`

	// Breaker trips after this many consecutive failures. Zero uses 5.
	BreakerFailures uint32        `json:"breaker_failures" mapstructure:"breaker_failures" yaml:"breaker_failures"`
	BreakerTimeout  time.Duration `json:"breaker_timeout"  mapstructure:"breaker_timeout"  yaml:"breaker_timeout"`
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		Length:          DefaultLength,
		Timeout:         DefaultTimeout,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// Client implements arith.Generator over HTTP. Calls go through a circuit
// breaker so a failing upstream is rejected without waiting for timeouts.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

var _ arith.Generator = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a Client. Zero fields of cfg take their defaults.
func New(cfg Config, opts ...Option) (*Client, error) {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Length == 0 {
		cfg.Length = def.Length
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = def.BreakerFailures
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = def.BreakerTimeout
	}
	if cfg.Length < 1 || cfg.Length > maxLength {
		return nil, fmt.Errorf("randstr: length must be between 1 and %d, got %d", maxLength, cfg.Length)
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	failures := cfg.BreakerFailures
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "randstr",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("randstr: circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return c, nil
}

// URL returns the request URL for count strings.
func (c *Client) URL(count int) string {
	return fmt.Sprintf("%s?num=%d&len=%d&digits=off&upperalpha=on&loweralpha=on&unique=on&format=plain&rnd=new",
		c.cfg.BaseURL, count, c.cfg.Length)
}

// Generate fetches count strings, one per line, as returned by the service.
func (c *Client) Generate(ctx context.Context, count int) (string, error) {
	if count < 0 || count > arith.MaxRandomStrings {
		return "", fmt.Errorf("%w: got %d", arith.ErrInvalidCount, count)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, count)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (c *Client) fetch(ctx context.Context, count int) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(count), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/plain")

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close() //nolint:errcheck // read-only body

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return "", err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", fmt.Errorf("%w: %d %s", ErrUpstreamStatus, res.StatusCode, strings.TrimSpace(string(body)))
	}

	c.logger.Debug("randstr: fetched",
		"count", count,
		"elapsed", time.Since(start),
	)
	return string(body), nil
}

// State returns the circuit breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}
