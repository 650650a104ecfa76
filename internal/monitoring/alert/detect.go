package alert

import (
	"fmt"
	"time"

	"github.com/vietddude/opswatch/internal/core/domain"
)

// Thresholds configures crossing detection and per-kind cooldown.
type Thresholds struct {
	FailureDelta int           // failure counter growth between polls
	DropPercent  float64       // inbound drop relative to the previous poll
	LatencyMs    float64       // p95 latency ceiling
	Cooldown     time.Duration // minimum time between two alerts of one kind
}

// DefaultThresholds returns sensible defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FailureDelta: 5,
		DropPercent:  50,
		LatencyMs:    2000,
		Cooldown:     5 * time.Minute,
	}
}

// Crossing is a detected threshold crossing before cooldown is applied.
type Crossing struct {
	Kind    domain.AlertKind
	Value   float64
	Message string
}

// Detect compares two consecutive snapshots. Kinds are evaluated
// independently and returned in a fixed order.
func Detect(previous, current domain.MetricsSnapshot, th Thresholds) []Crossing {
	var out []Crossing

	if delta := current.Failures() - previous.Failures(); delta >= th.FailureDelta {
		out = append(out, Crossing{
			Kind:    domain.AlertFailureSpike,
			Value:   float64(delta),
			Message: fmt.Sprintf("%d new proposal failures since last poll", delta),
		})
	}

	if prev := previous.Inbound(); prev > 0 {
		drop := float64(prev-current.Inbound()) / float64(prev) * 100
		if drop >= th.DropPercent {
			out = append(out, Crossing{
				Kind:    domain.AlertInboundDrop,
				Value:   drop,
				Message: fmt.Sprintf("inbound volume dropped %.0f%% (%d -> %d)", drop, prev, current.Inbound()),
			})
		}
	}

	if p95 := current.P95LatencyMs; p95 != nil && *p95 > th.LatencyMs {
		out = append(out, Crossing{
			Kind:    domain.AlertLatencyBreach,
			Value:   *p95,
			Message: fmt.Sprintf("p95 latency %.0fms exceeds %.0fms", *p95, th.LatencyMs),
		})
	}

	return out
}
