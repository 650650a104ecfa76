// Package alert detects threshold crossings between consecutive metrics
// snapshots and emits cooldown-gated notifications.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vietddude/opswatch/internal/core/domain"
	"github.com/vietddude/opswatch/internal/monitoring/metrics"
)

// Dispatcher owns the previous snapshot and the cooldown state of one
// metrics stream. Each kind moves idle -> fired -> idle once its cooldown
// has elapsed.
type Dispatcher struct {
	thresholds Thresholds
	notifier   Notifier
	newID      func() string
	log        *slog.Logger

	mu        sync.Mutex
	previous  *domain.MetricsSnapshot
	lastFired map[domain.AlertKind]time.Time
}

// NewDispatcher creates a dispatcher that delivers to notifier.
func NewDispatcher(thresholds Thresholds, notifier Notifier) *Dispatcher {
	if thresholds.Cooldown < 0 {
		thresholds.Cooldown = 0
	}
	// Expose every kind at zero before its first alert.
	for _, kind := range domain.AlertKinds {
		metrics.AlertsFiredTotal.WithLabelValues(string(kind))
	}
	return &Dispatcher{
		thresholds: thresholds,
		notifier:   notifier,
		newID:      func() string { return uuid.New().String() },
		log:        slog.Default().With("component", "alert"),
		lastFired:  make(map[domain.AlertKind]time.Time),
	}
}

// Thresholds returns the configured thresholds.
func (d *Dispatcher) Thresholds() Thresholds {
	return d.thresholds
}

// Observe feeds the newest metrics snapshot. The first snapshot only
// records a baseline. It returns the alerts that were emitted.
func (d *Dispatcher) Observe(ctx context.Context, now time.Time, current domain.MetricsSnapshot) []domain.AlertRecord {
	d.mu.Lock()
	previous := d.previous
	cur := current.Clone()
	d.previous = &cur
	if previous == nil {
		d.mu.Unlock()
		d.log.Debug("Recorded metrics baseline")
		return nil
	}

	var fired []domain.AlertRecord
	for _, c := range Detect(*previous, cur, d.thresholds) {
		if rec, ok := d.tryFireLocked(now, c); ok {
			fired = append(fired, rec)
		}
	}
	d.mu.Unlock()

	d.deliver(ctx, fired)
	return fired
}

// ObserveSaturation emits a pacing alert when sustained saturation starts.
func (d *Dispatcher) ObserveSaturation(ctx context.Context, now time.Time, latest domain.PacingSample) (domain.AlertRecord, bool) {
	c := Crossing{
		Kind:    domain.AlertPacingSaturation,
		Value:   float64(latest.Sent),
		Message: fmt.Sprintf("outbound pacing saturated at %d/%d per minute", latest.Sent, latest.Limit),
	}

	d.mu.Lock()
	rec, ok := d.tryFireLocked(now, c)
	d.mu.Unlock()

	if ok {
		d.deliver(ctx, []domain.AlertRecord{rec})
	}
	return rec, ok
}

// CoolingDown reports whether kind is inside its cooldown window at now.
func (d *Dispatcher) CoolingDown(kind domain.AlertKind, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.readyLocked(kind, now)
}

// Reset forgets the baseline and all cooldowns.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.previous = nil
	d.lastFired = make(map[domain.AlertKind]time.Time)
}

func (d *Dispatcher) readyLocked(kind domain.AlertKind, now time.Time) bool {
	last, ok := d.lastFired[kind]
	if !ok {
		return true
	}
	return !now.Before(last.Add(d.thresholds.Cooldown))
}

func (d *Dispatcher) tryFireLocked(now time.Time, c Crossing) (domain.AlertRecord, bool) {
	if !d.readyLocked(c.Kind, now) {
		d.log.Debug("Alert suppressed by cooldown", "kind", c.Kind)
		return domain.AlertRecord{}, false
	}
	d.lastFired[c.Kind] = now
	return domain.AlertRecord{
		ID:      d.newID(),
		Kind:    c.Kind,
		Message: c.Message,
		Value:   c.Value,
		FiredAt: now,
	}, true
}

func (d *Dispatcher) deliver(ctx context.Context, recs []domain.AlertRecord) {
	for _, rec := range recs {
		metrics.AlertsFiredTotal.WithLabelValues(string(rec.Kind)).Inc()
		if d.notifier == nil {
			continue
		}
		if err := d.notifier.Notify(ctx, rec); err != nil {
			d.log.Warn("Failed to deliver alert", "kind", rec.Kind, "error", err)
		}
	}
}
