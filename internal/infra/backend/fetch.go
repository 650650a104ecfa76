package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/vietddude/opswatch/internal/core/domain"
)

// Reachability fetches the core server health document.
func (c *Client) Reachability(ctx context.Context) (domain.ReachabilityPayload, error) {
	var p domain.ReachabilityPayload
	if err := c.getJSON(ctx, c.paths.Health, &p); err != nil {
		return p, err
	}
	if !healthyWord(p.Status) {
		return p, fmt.Errorf("%s: status %q: %w", c.paths.Health, p.Status, ErrUnhealthy)
	}
	return p, nil
}

// APIStatus fetches the API runtime status document.
func (c *Client) APIStatus(ctx context.Context) (domain.APIStatusPayload, error) {
	var p domain.APIStatusPayload
	if err := c.getJSON(ctx, c.paths.APIStatus, &p); err != nil {
		return p, err
	}
	if !healthyWord(p.Status) {
		return p, fmt.Errorf("%s: status %q: %w", c.paths.APIStatus, p.Status, ErrUnhealthy)
	}
	return p, nil
}

// Channel fetches the messaging-channel connectivity document. A reachable
// endpoint reporting a disconnected channel is a successful fetch.
func (c *Client) Channel(ctx context.Context) (domain.ChannelPayload, error) {
	var p domain.ChannelPayload
	err := c.getJSON(ctx, c.paths.Channel, &p)
	return p, err
}

// Pacing fetches the outbound pacing counters.
func (c *Client) Pacing(ctx context.Context) (domain.PacingPayload, error) {
	var p domain.PacingPayload
	if err := c.getJSON(ctx, c.paths.Pacing, &p); err != nil {
		return p, err
	}
	if p.CapPerMinute < 0 || p.SentThisMinute < 0 {
		return p, fmt.Errorf("%s: negative pacing counters", c.paths.Pacing)
	}
	return p, nil
}

// Metrics fetches operational counters as JSON or Prometheus text.
func (c *Client) Metrics(ctx context.Context) (domain.MetricsSnapshot, error) {
	body, header, err := c.get(ctx, c.paths.Metrics, "application/json;q=0.9, text/plain;q=0.8")
	if err != nil {
		return domain.MetricsSnapshot{}, err
	}
	m, err := DecodeMetrics(body, header.Get("Content-Type"), c.format)
	if err != nil {
		return domain.MetricsSnapshot{}, fmt.Errorf("decode %s: %w", c.paths.Metrics, err)
	}
	return m, nil
}

// healthyWord accepts the status spellings the backend uses for "up".
// An empty status is treated as healthy since the 2xx already says so.
func healthyWord(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "", "ok", "healthy", "up", "running", "online":
		return true
	default:
		return false
	}
}
