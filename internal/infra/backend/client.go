// Package backend fetches the read-only status documents the monitor polls.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http2"
)

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 4 << 20

// Paths are the endpoint paths relative to the base URL.
type Paths struct {
	Health    string `yaml:"health"`
	APIStatus string `yaml:"api_status"`
	Channel   string `yaml:"channel"`
	Metrics   string `yaml:"metrics"`
	Pacing    string `yaml:"pacing"`
}

// DefaultPaths returns the backend's standard routes.
func DefaultPaths() Paths {
	return Paths{
		Health:    "/health",
		APIStatus: "/api/status",
		Channel:   "/api/whatsapp/status",
		Metrics:   "/metrics",
		Pacing:    "/api/pacing",
	}
}

// Config holds backend connection settings.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
	HTTP2   bool          `yaml:"http2"`
	Paths   Paths         `yaml:"paths"`
	Metrics MetricsFormat `yaml:"metrics_format"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GET %s: http %d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("GET %s: http %d: %s", e.Path, e.StatusCode, e.Body)
}

// ErrUnhealthy is returned when an endpoint answers but reports itself down.
var ErrUnhealthy = errors.New("endpoint reported unhealthy")

// Client performs GET requests against the backend.
type Client struct {
	base       *url.URL
	token      string
	paths      Paths
	format     MetricsFormat
	httpClient *http.Client
}

// NewClient creates a new backend client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("backend: base url required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("backend: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend: unsupported scheme %q", base.Scheme)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if cfg.HTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, fmt.Errorf("backend: configure http2: %w", err)
		}
	}

	paths := cfg.Paths
	defaults := DefaultPaths()
	if paths.Health == "" {
		paths.Health = defaults.Health
	}
	if paths.APIStatus == "" {
		paths.APIStatus = defaults.APIStatus
	}
	if paths.Channel == "" {
		paths.Channel = defaults.Channel
	}
	if paths.Metrics == "" {
		paths.Metrics = defaults.Metrics
	}
	if paths.Pacing == "" {
		paths.Pacing = defaults.Pacing
	}

	return &Client{
		base:   base,
		token:  cfg.Token,
		paths:  paths,
		format: cfg.Metrics.withDefaults(),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) resolve(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return strings.TrimRight(c.base.String(), "/") + path
	}
	return c.base.ResolveReference(ref).String()
}

// get performs a GET and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, path, accept string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(path), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, nil, &StatusError{Path: path, StatusCode: resp.StatusCode, Body: snippet}
	}

	return body, resp.Header, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, _, err := c.get(ctx, path, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
