package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/vietddude/opswatch/internal/core/domain"
	"github.com/vietddude/opswatch/internal/monitoring/metrics"
)

// =============================================================================
// Helpers
// =============================================================================

type recordingNotifier struct {
	mu   sync.Mutex
	recs []domain.AlertRecord
	err  error
}

func (r *recordingNotifier) Notify(ctx context.Context, rec domain.AlertRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return r.err
}

func (r *recordingNotifier) kinds() []domain.AlertKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AlertKind, len(r.recs))
	for i, rec := range r.recs {
		out[i] = rec.Kind
	}
	return out
}

func snapshot(inbound, failures int, p95 *float64) domain.MetricsSnapshot {
	return domain.MetricsSnapshot{
		InboundTotal:   map[string]int{domain.ChannelWhatsApp: inbound},
		ProposalTotal:  map[string]int{"quote": 100},
		ConfirmedTotal: map[string]int{"quote": 90},
		FailureTotal:   map[string]int{"quote": failures},
		P95LatencyMs:   p95,
	}
}

func latency(v float64) *float64 { return &v }

var t0 = time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

// =============================================================================
// Tests
// =============================================================================

func TestDispatcher_FirstSnapshotIsBaseline(t *testing.T) {
	n := &recordingNotifier{}
	d := NewDispatcher(DefaultThresholds(), n)

	// Values that would cross every threshold against an empty baseline.
	fired := d.Observe(context.Background(), t0, snapshot(0, 1000, latency(9000)))

	if len(fired) != 0 || len(n.kinds()) != 0 {
		t.Errorf("expected no alerts on first snapshot, got %v", n.kinds())
	}
}

func TestDispatcher_FailureSpikeCooldown(t *testing.T) {
	n := &recordingNotifier{}
	d := NewDispatcher(DefaultThresholds(), n)
	ctx := context.Background()

	d.Observe(ctx, t0, snapshot(100, 0, nil))

	if fired := d.Observe(ctx, t0.Add(time.Minute), snapshot(100, 5, nil)); len(fired) != 1 || fired[0].Kind != domain.AlertFailureSpike {
		t.Fatalf("expected failure spike, got %+v", fired)
	}

	// Same delta within cooldown.
	if fired := d.Observe(ctx, t0.Add(3*time.Minute), snapshot(100, 10, nil)); len(fired) != 0 {
		t.Errorf("expected cooldown to suppress, got %+v", fired)
	}
	if !d.CoolingDown(domain.AlertFailureSpike, t0.Add(3*time.Minute)) {
		t.Error("expected failure spike to be cooling down")
	}

	// Same delta once cooldown elapsed.
	fired := d.Observe(ctx, t0.Add(6*time.Minute), snapshot(100, 15, nil))
	if len(fired) != 1 || fired[0].Kind != domain.AlertFailureSpike {
		t.Errorf("expected re-fire after cooldown, got %+v", fired)
	}
	if fired[0].ID == "" {
		t.Error("expected alert id")
	}
	if got := len(n.kinds()); got != 2 {
		t.Errorf("expected 2 notifications, got %d", got)
	}
}

func TestDispatcher_CooldownBoundaryInclusive(t *testing.T) {
	d := NewDispatcher(DefaultThresholds(), nil)
	ctx := context.Background()

	d.Observe(ctx, t0, snapshot(100, 0, nil))
	d.Observe(ctx, t0, snapshot(100, 5, nil))

	if fired := d.Observe(ctx, t0.Add(5*time.Minute), snapshot(100, 10, nil)); len(fired) != 1 {
		t.Errorf("expected fire exactly at cooldown end, got %d", len(fired))
	}
}

func TestDispatcher_InboundDrop(t *testing.T) {
	tests := []struct {
		name     string
		previous int
		current  int
		expected bool
	}{
		{name: "drop of 50 percent", previous: 100, current: 50, expected: true},
		{name: "drop of 49 percent", previous: 100, current: 51, expected: false},
		{name: "total collapse", previous: 40, current: 0, expected: true},
		{name: "growth", previous: 40, current: 80, expected: false},
		{name: "zero previous", previous: 0, current: 0, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher(DefaultThresholds(), nil)
			ctx := context.Background()
			d.Observe(ctx, t0, snapshot(tt.previous, 0, nil))
			fired := d.Observe(ctx, t0.Add(time.Minute), snapshot(tt.current, 0, nil))

			got := len(fired) == 1 && fired[0].Kind == domain.AlertInboundDrop
			if got != tt.expected {
				t.Errorf("inbound drop fired=%v, want %v (%+v)", got, tt.expected, fired)
			}
		})
	}
}

func TestDispatcher_LatencyBreach(t *testing.T) {
	d := NewDispatcher(DefaultThresholds(), nil)
	ctx := context.Background()

	d.Observe(ctx, t0, snapshot(10, 0, nil))

	if fired := d.Observe(ctx, t0.Add(time.Minute), snapshot(10, 0, latency(2000))); len(fired) != 0 {
		t.Errorf("expected no alert at threshold, got %+v", fired)
	}
	fired := d.Observe(ctx, t0.Add(2*time.Minute), snapshot(10, 0, latency(2500)))
	if len(fired) != 1 || fired[0].Kind != domain.AlertLatencyBreach || fired[0].Value != 2500 {
		t.Errorf("expected latency breach, got %+v", fired)
	}
}

func TestDispatcher_KindsAreIndependent(t *testing.T) {
	n := &recordingNotifier{}
	d := NewDispatcher(DefaultThresholds(), n)
	ctx := context.Background()

	d.Observe(ctx, t0, snapshot(100, 0, nil))
	d.Observe(ctx, t0.Add(time.Minute), snapshot(100, 5, nil)) // failure spike cooling down

	fired := d.Observe(ctx, t0.Add(2*time.Minute), snapshot(10, 20, latency(3000)))

	if len(fired) != 2 {
		t.Fatalf("expected 2 alerts, got %+v", fired)
	}
	if fired[0].Kind != domain.AlertInboundDrop || fired[1].Kind != domain.AlertLatencyBreach {
		t.Errorf("unexpected kinds %v, %v", fired[0].Kind, fired[1].Kind)
	}
	if got := n.kinds(); len(got) != 3 {
		t.Errorf("expected 3 total notifications, got %v", got)
	}
}

func TestDispatcher_NotifierErrorDoesNotPropagate(t *testing.T) {
	var calls int
	n := NotifierFunc(func(ctx context.Context, rec domain.AlertRecord) error {
		calls++
		return errors.New("toast surface gone")
	})
	d := NewDispatcher(DefaultThresholds(), n)
	ctx := context.Background()

	d.Observe(ctx, t0, snapshot(100, 0, nil))
	if fired := d.Observe(ctx, t0.Add(time.Minute), snapshot(100, 9, nil)); len(fired) != 1 {
		t.Errorf("expected alert despite notifier error, got %d", len(fired))
	}
	if calls != 1 {
		t.Errorf("expected notifier called once, got %d", calls)
	}
}

func TestNewDispatcher_RegistersEveryKind(t *testing.T) {
	d := NewDispatcher(Thresholds{FailureDelta: 3, Cooldown: -time.Second}, nil)

	if th := d.Thresholds(); th.FailureDelta != 3 || th.Cooldown != 0 {
		t.Errorf("expected negative cooldown clamped to 0, got %+v", th)
	}
	if got := testutil.CollectAndCount(metrics.AlertsFiredTotal); got < len(domain.AlertKinds) {
		t.Errorf("expected a series per alert kind, got %d", got)
	}
}

func TestDispatcher_ObserveSaturation(t *testing.T) {
	n := &recordingNotifier{}
	d := NewDispatcher(DefaultThresholds(), n)
	ctx := context.Background()
	s := domain.PacingSample{Time: "08:00:00", Sent: 30, Limit: 30}

	if _, ok := d.ObserveSaturation(ctx, t0, s); !ok {
		t.Fatal("expected saturation alert")
	}
	if _, ok := d.ObserveSaturation(ctx, t0.Add(time.Minute), s); ok {
		t.Error("expected cooldown to suppress second saturation alert")
	}
	if _, ok := d.ObserveSaturation(ctx, t0.Add(5*time.Minute), s); !ok {
		t.Error("expected saturation alert after cooldown")
	}
}

func TestDispatcher_Reset(t *testing.T) {
	d := NewDispatcher(DefaultThresholds(), nil)
	ctx := context.Background()

	d.Observe(ctx, t0, snapshot(100, 0, nil))
	d.Reset()

	if fired := d.Observe(ctx, t0.Add(time.Minute), snapshot(100, 50, nil)); len(fired) != 0 {
		t.Errorf("expected new baseline after reset, got %+v", fired)
	}
}
