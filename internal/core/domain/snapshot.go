package domain

import "time"

// EndpointName identifies a polled backend endpoint.
type EndpointName string

const (
	EndpointReachability EndpointName = "reachability"
	EndpointAPIStatus    EndpointName = "api_status"
	EndpointChannel      EndpointName = "channel"
	EndpointMetrics      EndpointName = "metrics"
	EndpointPacing       EndpointName = "pacing"
)

// EndpointState is the read-time classification of a snapshot.
type EndpointState string

const (
	StateUp      EndpointState = "up"
	StateDown    EndpointState = "down"
	StateUnknown EndpointState = "unknown"
)

// Snapshot is the result of the latest poll of one endpoint.
// It is replaced wholesale on every poll and never mutated in place.
type Snapshot[T any] struct {
	Endpoint            EndpointName `json:"endpoint"`
	OK                  bool         `json:"ok"`
	Payload             *T           `json:"payload,omitempty"`
	ObservedAt          time.Time    `json:"observed_at"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	LastError           string       `json:"last_error,omitempty"`
}

// Polled reports whether the endpoint has been observed at least once.
func (s Snapshot[T]) Polled() bool {
	return !s.ObservedAt.IsZero()
}

// Stale reports whether the snapshot is older than the freshness budget.
// A zero budget disables staleness.
func (s Snapshot[T]) Stale(now time.Time, staleAfter time.Duration) bool {
	if !s.Polled() {
		return true
	}
	if staleAfter <= 0 {
		return false
	}
	return now.Sub(s.ObservedAt) > staleAfter
}

// StateAt classifies the snapshot at read time.
//   - never polled or stale: unknown
//   - ok: up
//   - otherwise: down
func (s Snapshot[T]) StateAt(now time.Time, staleAfter time.Duration) EndpointState {
	if s.Stale(now, staleAfter) {
		return StateUnknown
	}
	if s.OK {
		return StateUp
	}
	return StateDown
}
