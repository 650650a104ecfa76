package domain

// Inbound channel keys used by the composite rate computation.
const (
	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
)

// MetricsSnapshot holds the operational counters reported by the backend.
// Only the current and the immediately previous snapshot are ever retained.
type MetricsSnapshot struct {
	InboundTotal   map[string]int `json:"inbound_total"`
	ProposalTotal  map[string]int `json:"proposal_total"`
	ConfirmedTotal map[string]int `json:"confirmed_total"`
	FailureTotal   map[string]int `json:"failure_total"`
	P95LatencyMs   *float64       `json:"p95_latency_ms,omitempty"`
}

// Sum adds up every value of a counter map.
func Sum(counters map[string]int) int {
	total := 0
	for _, v := range counters {
		total += v
	}
	return total
}

// Inbound returns the total inbound count across all channels.
func (m MetricsSnapshot) Inbound() int { return Sum(m.InboundTotal) }

// Proposals returns the total proposal count across all kinds.
func (m MetricsSnapshot) Proposals() int { return Sum(m.ProposalTotal) }

// Confirmed returns the total confirmation count across all kinds.
func (m MetricsSnapshot) Confirmed() int { return Sum(m.ConfirmedTotal) }

// Failures returns the total failure count across all kinds.
func (m MetricsSnapshot) Failures() int { return Sum(m.FailureTotal) }

// Clone returns a deep copy so callers can retain it across polls.
func (m MetricsSnapshot) Clone() MetricsSnapshot {
	out := MetricsSnapshot{
		InboundTotal:   cloneCounters(m.InboundTotal),
		ProposalTotal:  cloneCounters(m.ProposalTotal),
		ConfirmedTotal: cloneCounters(m.ConfirmedTotal),
		FailureTotal:   cloneCounters(m.FailureTotal),
	}
	if m.P95LatencyMs != nil {
		v := *m.P95LatencyMs
		out.P95LatencyMs = &v
	}
	return out
}

func cloneCounters(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
