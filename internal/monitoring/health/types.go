// Package health derives the System Health View and the Composite Health
// Status from polled snapshots and operational counters.
package health

import (
	"time"

	"github.com/vietddude/opswatch/internal/core/domain"
)

// Overall is the backend usability verdict.
type Overall string

const (
	OverallHealthy   Overall = "healthy"
	OverallUnhealthy Overall = "unhealthy"
)

// ChannelStatus is the messaging-channel connectivity verdict.
type ChannelStatus string

const (
	ChannelConnected    ChannelStatus = "connected"
	ChannelDisconnected ChannelStatus = "disconnected"
)

// CompositeStatus is the three-level classification of operational counters.
type CompositeStatus string

const (
	StatusOK        CompositeStatus = "ok"
	StatusAttention CompositeStatus = "attention"
	StatusCritical  CompositeStatus = "critical"
)

// Level maps the status to a numeric gauge value.
func (s CompositeStatus) Level() int {
	switch s {
	case StatusCritical:
		return 2
	case StatusAttention:
		return 1
	default:
		return 0
	}
}

// View is the read-only System Health View.
type View struct {
	Overall             Overall              `json:"overall"`
	Reachability        domain.EndpointState `json:"reachability"`
	API                 domain.EndpointState `json:"api"`
	Channel             ChannelStatus        `json:"channel"`
	ConsecutiveFailures int                  `json:"consecutive_failures"`
	MaxRetries          int                  `json:"max_retries"`
	Reconnecting        bool                 `json:"reconnecting"`
	ReconnectAttempt    int                  `json:"reconnect_attempt,omitempty"`
	Version             string               `json:"version,omitempty"`
	Environment         string               `json:"environment,omitempty"`
	ChannelInstance     string               `json:"channel_instance,omitempty"`
	ChannelPhone        string               `json:"channel_phone,omitempty"`
	CheckedAt           time.Time            `json:"checked_at"`
}

// Rates are the derived operational rates used for classification.
type Rates struct {
	InboundRate      float64 `json:"inbound_rate"`
	ProposalSuccess  float64 `json:"proposal_success"`
	ConfirmationRate float64 `json:"confirmation_rate"`
	ErrorRate        float64 `json:"error_rate"`
}

// Composite bundles a classification with the rates it came from.
type Composite struct {
	Status CompositeStatus `json:"status"`
	Rates  Rates           `json:"rates"`
}
