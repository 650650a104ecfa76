package domain

import (
	"testing"
	"time"
)

func TestSnapshot_StateAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	payload := &ReachabilityPayload{Status: "ok"}

	tests := []struct {
		name       string
		snap       Snapshot[ReachabilityPayload]
		staleAfter time.Duration
		expected   EndpointState
	}{
		{
			name:       "never polled",
			snap:       Snapshot[ReachabilityPayload]{},
			staleAfter: time.Minute,
			expected:   StateUnknown,
		},
		{
			name:       "fresh ok",
			snap:       Snapshot[ReachabilityPayload]{OK: true, Payload: payload, ObservedAt: now.Add(-10 * time.Second)},
			staleAfter: time.Minute,
			expected:   StateUp,
		},
		{
			name:       "fresh failure",
			snap:       Snapshot[ReachabilityPayload]{OK: false, ObservedAt: now.Add(-10 * time.Second)},
			staleAfter: time.Minute,
			expected:   StateDown,
		},
		{
			name:       "stale ok is unknown",
			snap:       Snapshot[ReachabilityPayload]{OK: true, Payload: payload, ObservedAt: now.Add(-2 * time.Minute)},
			staleAfter: time.Minute,
			expected:   StateUnknown,
		},
		{
			name:       "zero budget never stale",
			snap:       Snapshot[ReachabilityPayload]{OK: true, Payload: payload, ObservedAt: now.Add(-24 * time.Hour)},
			staleAfter: 0,
			expected:   StateUp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.StateAt(now, tt.staleAfter); got != tt.expected {
				t.Errorf("StateAt() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestMetricsSnapshot_CloneIsDeep(t *testing.T) {
	latency := 1500.0
	m := MetricsSnapshot{
		InboundTotal: map[string]int{ChannelWhatsApp: 10},
		P95LatencyMs: &latency,
	}

	c := m.Clone()
	m.InboundTotal[ChannelWhatsApp] = 99
	*m.P95LatencyMs = 1

	if c.InboundTotal[ChannelWhatsApp] != 10 {
		t.Errorf("clone shares inbound map: got %d", c.InboundTotal[ChannelWhatsApp])
	}
	if *c.P95LatencyMs != 1500 {
		t.Errorf("clone shares latency pointer: got %v", *c.P95LatencyMs)
	}
	if c.ProposalTotal != nil {
		t.Errorf("expected nil proposal map to stay nil")
	}
}
