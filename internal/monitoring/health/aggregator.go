package health

import (
	"time"

	"github.com/vietddude/opswatch/internal/core/domain"
)

// SnapshotSource exposes the latest snapshot of one endpoint.
type SnapshotSource[T any] interface {
	Snapshot() domain.Snapshot[T]
}

// Inputs are the three snapshots a View is composed from.
type Inputs struct {
	Reachability domain.Snapshot[domain.ReachabilityPayload]
	API          domain.Snapshot[domain.APIStatusPayload]
	Channel      domain.Snapshot[domain.ChannelPayload]
}

// Aggregator composes the reachability, API runtime and messaging channel
// snapshots into a View. It holds no state of its own.
type Aggregator struct {
	reachability SnapshotSource[domain.ReachabilityPayload]
	api          SnapshotSource[domain.APIStatusPayload]
	channel      SnapshotSource[domain.ChannelPayload]
	staleAfter   time.Duration
	maxRetries   int
}

// NewAggregator creates a new aggregator over three snapshot sources.
func NewAggregator(
	reachability SnapshotSource[domain.ReachabilityPayload],
	api SnapshotSource[domain.APIStatusPayload],
	channel SnapshotSource[domain.ChannelPayload],
	staleAfter time.Duration,
	maxRetries int,
) *Aggregator {
	return &Aggregator{
		reachability: reachability,
		api:          api,
		channel:      channel,
		staleAfter:   staleAfter,
		maxRetries:   maxRetries,
	}
}

// View reads the current snapshots and composes them.
func (a *Aggregator) View(now time.Time) View {
	return Compose(now, Inputs{
		Reachability: a.reachability.Snapshot(),
		API:          a.api.Snapshot(),
		Channel:      a.channel.Snapshot(),
	}, a.staleAfter, a.maxRetries)
}

// Compose builds a View from raw snapshots. Staleness is evaluated against now.
//
// Rules:
//   - Overall is healthy only if the reachability snapshot is ok and fresh
//   - the failure counter comes from reachability and resets with it
//   - the channel is connected only if a fresh ok snapshot says so
func Compose(now time.Time, in Inputs, staleAfter time.Duration, maxRetries int) View {
	v := View{
		Overall:             OverallUnhealthy,
		Reachability:        in.Reachability.StateAt(now, staleAfter),
		API:                 in.API.StateAt(now, staleAfter),
		Channel:             ChannelDisconnected,
		ConsecutiveFailures: in.Reachability.ConsecutiveFailures,
		MaxRetries:          maxRetries,
		CheckedAt:           now,
	}

	if v.Reachability == domain.StateUp {
		v.Overall = OverallHealthy
	}

	if cf := v.ConsecutiveFailures; cf > 0 && cf <= maxRetries {
		v.Reconnecting = true
		v.ReconnectAttempt = cf
	}

	if p := in.Reachability.Payload; p != nil {
		v.Version = p.Version
	}
	if p := in.API.Payload; p != nil {
		v.Environment = p.Environment
		if p.Version != "" {
			v.Version = p.Version
		}
	}

	if p := in.Channel.Payload; p != nil {
		v.ChannelInstance = p.Instance
		v.ChannelPhone = p.PhoneNumber
		if in.Channel.StateAt(now, staleAfter) == domain.StateUp && p.Connected {
			v.Channel = ChannelConnected
		}
	}

	return v
}
