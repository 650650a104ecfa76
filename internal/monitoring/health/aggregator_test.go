package health

import (
	"testing"
	"time"

	"github.com/vietddude/opswatch/internal/core/domain"
)

// =============================================================================
// Stubs
// =============================================================================

type stubSource[T any] struct {
	snap domain.Snapshot[T]
}

func (s *stubSource[T]) Snapshot() domain.Snapshot[T] { return s.snap }

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func okReach(at time.Time) domain.Snapshot[domain.ReachabilityPayload] {
	return domain.Snapshot[domain.ReachabilityPayload]{
		Endpoint:   domain.EndpointReachability,
		OK:         true,
		Payload:    &domain.ReachabilityPayload{Status: "ok", Version: "1.4.0"},
		ObservedAt: at,
	}
}

// =============================================================================
// Tests
// =============================================================================

func TestCompose_HealthyWhenReachable(t *testing.T) {
	in := Inputs{
		Reachability: okReach(testNow.Add(-5 * time.Second)),
		API: domain.Snapshot[domain.APIStatusPayload]{
			OK:         true,
			Payload:    &domain.APIStatusPayload{Status: "running", Environment: "production", Version: "1.4.1"},
			ObservedAt: testNow,
		},
		Channel: domain.Snapshot[domain.ChannelPayload]{
			OK:         true,
			Payload:    &domain.ChannelPayload{Connected: true, Instance: "sales-1", PhoneNumber: "+5511999990000"},
			ObservedAt: testNow,
		},
	}

	v := Compose(testNow, in, time.Minute, 5)

	if v.Overall != OverallHealthy {
		t.Errorf("expected healthy, got %s", v.Overall)
	}
	if v.Channel != ChannelConnected {
		t.Errorf("expected connected, got %s", v.Channel)
	}
	if v.Version != "1.4.1" || v.Environment != "production" {
		t.Errorf("unexpected metadata: version=%s env=%s", v.Version, v.Environment)
	}
	if v.ChannelInstance != "sales-1" {
		t.Errorf("expected channel instance, got %q", v.ChannelInstance)
	}
	if v.Reconnecting {
		t.Error("expected not reconnecting")
	}
}

func TestCompose_UnhealthyWhenReachabilityDown(t *testing.T) {
	reach := okReach(testNow)
	reach.OK = false
	reach.ConsecutiveFailures = 6

	v := Compose(testNow, Inputs{Reachability: reach}, time.Minute, 5)

	if v.Overall != OverallUnhealthy {
		t.Errorf("expected unhealthy, got %s", v.Overall)
	}
	if v.Reconnecting {
		t.Error("expected retries exhausted, not reconnecting")
	}
	if v.ConsecutiveFailures != 6 {
		t.Errorf("expected 6 failures, got %d", v.ConsecutiveFailures)
	}
}

func TestCompose_ReconnectingKeepsHealthy(t *testing.T) {
	reach := okReach(testNow.Add(-10 * time.Second))
	reach.ConsecutiveFailures = 2

	v := Compose(testNow, Inputs{Reachability: reach}, time.Minute, 5)

	if v.Overall != OverallHealthy {
		t.Errorf("expected healthy while retrying, got %s", v.Overall)
	}
	if !v.Reconnecting || v.ReconnectAttempt != 2 || v.MaxRetries != 5 {
		t.Errorf("expected reconnecting attempt 2/5, got %v %d/%d", v.Reconnecting, v.ReconnectAttempt, v.MaxRetries)
	}
}

func TestCompose_StaleReachabilityIsNotHealthy(t *testing.T) {
	v := Compose(testNow, Inputs{Reachability: okReach(testNow.Add(-2 * time.Minute))}, time.Minute, 5)

	if v.Overall != OverallUnhealthy {
		t.Errorf("expected stale snapshot to be unhealthy, got %s", v.Overall)
	}
	if v.Reachability != domain.StateUnknown {
		t.Errorf("expected unknown reachability, got %s", v.Reachability)
	}
}

func TestCompose_ChannelFailClosed(t *testing.T) {
	tests := []struct {
		name    string
		channel domain.Snapshot[domain.ChannelPayload]
	}{
		{
			name:    "never polled",
			channel: domain.Snapshot[domain.ChannelPayload]{},
		},
		{
			name: "reported disconnected",
			channel: domain.Snapshot[domain.ChannelPayload]{
				OK:         true,
				Payload:    &domain.ChannelPayload{Connected: false},
				ObservedAt: testNow,
			},
		},
		{
			name: "stale connected",
			channel: domain.Snapshot[domain.ChannelPayload]{
				OK:         true,
				Payload:    &domain.ChannelPayload{Connected: true},
				ObservedAt: testNow.Add(-time.Hour),
			},
		},
		{
			name: "fetch failed",
			channel: domain.Snapshot[domain.ChannelPayload]{
				OK:         false,
				Payload:    &domain.ChannelPayload{Connected: true},
				ObservedAt: testNow,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Compose(testNow, Inputs{Reachability: okReach(testNow), Channel: tt.channel}, time.Minute, 5)
			if v.Channel != ChannelDisconnected {
				t.Errorf("expected disconnected, got %s", v.Channel)
			}
		})
	}
}

func TestAggregator_ReadsSources(t *testing.T) {
	reach := &stubSource[domain.ReachabilityPayload]{snap: okReach(testNow)}
	api := &stubSource[domain.APIStatusPayload]{}
	channel := &stubSource[domain.ChannelPayload]{}

	agg := NewAggregator(reach, api, channel, time.Minute, 5)

	if v := agg.View(testNow); v.Overall != OverallHealthy {
		t.Errorf("expected healthy, got %s", v.Overall)
	}

	// Next success resets the counter immediately.
	reach.snap.ConsecutiveFailures = 3
	if v := agg.View(testNow); v.ConsecutiveFailures != 3 {
		t.Errorf("expected 3 failures, got %d", v.ConsecutiveFailures)
	}
	reach.snap = okReach(testNow)
	if v := agg.View(testNow); v.ConsecutiveFailures != 0 {
		t.Errorf("expected reset to 0, got %d", v.ConsecutiveFailures)
	}
}
