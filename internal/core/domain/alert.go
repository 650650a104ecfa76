package domain

import "time"

// AlertKind names a threshold-crossing event.
type AlertKind string

const (
	AlertFailureSpike     AlertKind = "failure_spike"
	AlertInboundDrop      AlertKind = "inbound_drop"
	AlertLatencyBreach    AlertKind = "latency_breach"
	AlertPacingSaturation AlertKind = "pacing_saturation"
)

// AlertKinds lists every kind in evaluation order.
var AlertKinds = []AlertKind{
	AlertFailureSpike,
	AlertInboundDrop,
	AlertLatencyBreach,
	AlertPacingSaturation,
}

// AlertRecord is an ephemeral notification. It is emitted once and not retained.
type AlertRecord struct {
	ID      string    `json:"id"`
	Kind    AlertKind `json:"kind"`
	Message string    `json:"message"`
	Value   float64   `json:"value"`
	FiredAt time.Time `json:"fired_at"`
}
