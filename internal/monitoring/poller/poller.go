// Package poller runs recurring fetches against a single backend endpoint.
//
// Each Poller owns one Endpoint Snapshot. A poll cycle is one attempt plus up
// to MaxRetries retries under exponential backoff; the next cycle starts
// Interval after the previous one ends. Failures never escape the poller:
// they are recorded in the snapshot.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/vietddude/opswatch/internal/core/domain"
	"github.com/vietddude/opswatch/internal/monitoring/metrics"
)

// FetchFunc performs one request and returns its decoded payload.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Config holds polling behavior for one endpoint.
type Config struct {
	Interval   time.Duration // Time between the end of one cycle and the start of the next
	MaxRetries int           // Retries per cycle before the snapshot turns ok:false
	StaleAfter time.Duration // Freshness budget applied by readers
	Backoff    Backoff
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:   10 * time.Second,
		MaxRetries: 5,
		StaleAfter: 60 * time.Second,
		Backoff:    DefaultBackoff,
	}
}

// Poller keeps an Endpoint Snapshot up to date.
type Poller[T any] struct {
	name     domain.EndpointName
	cfg      Config
	fetch    FetchFunc[T]
	onUpdate func(domain.Snapshot[T])
	now      func() time.Time
	log      *slog.Logger

	// deliver serializes publish and the update callback.
	deliver sync.Mutex
	mu      sync.RWMutex
	snap    domain.Snapshot[T]
	issued  uint64 // generation of the most recently initiated cycle
	started bool
	closed  bool

	refresh chan struct{}
	cancel  context.CancelFunc
	stopped chan struct{}
	cycles  sync.WaitGroup
}

// New creates a poller. Start must be called to begin polling.
func New[T any](name domain.EndpointName, cfg Config, fetch FetchFunc[T]) (*Poller[T], error) {
	if name == "" {
		return nil, errors.New("poller: endpoint name required")
	}
	if fetch == nil {
		return nil, fmt.Errorf("poller %s: fetch func required", name)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("poller %s: interval must be > 0", name)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("poller %s: max retries must be >= 0", name)
	}

	return &Poller[T]{
		name:    name,
		cfg:     cfg,
		fetch:   fetch,
		now:     time.Now,
		log:     slog.Default().With("endpoint", string(name)),
		snap:    domain.Snapshot[T]{Endpoint: name},
		refresh: make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}, nil
}

// SetUpdateCallback registers fn to receive every published snapshot.
// It must be called before Start. Calls never overlap and arrive in the
// order the snapshots were applied; fn must not call Stop.
func (p *Poller[T]) SetUpdateCallback(fn func(domain.Snapshot[T])) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onUpdate = fn
}

// Name returns the endpoint this poller watches.
func (p *Poller[T]) Name() domain.EndpointName {
	return p.name
}

// Config returns the poller configuration.
func (p *Poller[T]) Config() Config {
	return p.cfg
}

// Snapshot returns the latest published snapshot.
func (p *Poller[T]) Snapshot() domain.Snapshot[T] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Start begins polling immediately. It is a no-op if already started.
func (p *Poller[T]) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.closed {
		p.mu.Unlock()
		return
	}
	p.started = true
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	go p.run(ctx)
}

// Refresh starts a new cycle now, superseding any cycle in flight.
func (p *Poller[T]) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Stop cancels the schedule and any in-flight request and waits for them.
// No snapshot is published after Stop returns.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	started := p.started
	cancel := p.cancel
	p.mu.Unlock()

	if !started {
		return
	}
	cancel()
	<-p.stopped
	p.cycles.Wait()
}

func (p *Poller[T]) run(ctx context.Context) {
	defer close(p.stopped)

	timer := time.NewTimer(0)
	defer timer.Stop()

	cancelCycle := context.CancelFunc(func() {})
	defer func() { cancelCycle() }()

	done := make(chan uint64, 1)

	for {
		select {
		case <-ctx.Done():
			return
		case gen := <-done:
			if gen == p.generation() {
				timer.Reset(p.cfg.Interval)
			}
			continue
		case <-p.refresh:
			timer.Stop()
		case <-timer.C:
		}

		// Supersede whatever is still running.
		cancelCycle()
		var cycleCtx context.Context
		cycleCtx, cancelCycle = context.WithCancel(ctx)
		gen := p.begin()

		p.cycles.Add(1)
		go func() {
			defer p.cycles.Done()
			p.cycle(cycleCtx, gen)
			select {
			case done <- gen:
			case <-ctx.Done():
			}
		}()
	}
}

func (p *Poller[T]) begin() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.issued++
	return p.issued
}

func (p *Poller[T]) generation() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.issued
}

func (p *Poller[T]) cycle(ctx context.Context, gen uint64) {
	var lastErr error

	err := retry.Do(ctx, p.cfg.Backoff.Policy(p.cfg.MaxRetries), func(ctx context.Context) error {
		payload, err := p.fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			metrics.PollAttemptsTotal.WithLabelValues(string(p.name), "failure").Inc()
			p.recordFailure(gen, err)
			return retry.RetryableError(err)
		}
		metrics.PollAttemptsTotal.WithLabelValues(string(p.name), "success").Inc()
		p.recordSuccess(gen, payload)
		return nil
	})

	if err != nil && lastErr != nil && ctx.Err() == nil {
		p.recordExhausted(gen, lastErr)
	}
}

func (p *Poller[T]) recordSuccess(gen uint64, payload T) {
	p.publish(gen, func(prev domain.Snapshot[T]) domain.Snapshot[T] {
		return domain.Snapshot[T]{
			Endpoint:   p.name,
			OK:         true,
			Payload:    &payload,
			ObservedAt: p.now(),
		}
	})
}

// recordFailure keeps the last verdict while retries are pending.
func (p *Poller[T]) recordFailure(gen uint64, err error) {
	published := p.publish(gen, func(prev domain.Snapshot[T]) domain.Snapshot[T] {
		next := prev
		next.ConsecutiveFailures++
		next.LastError = err.Error()
		return next
	})
	if published {
		p.log.Debug("Fetch failed", "error", err, "consecutive_failures", p.Snapshot().ConsecutiveFailures)
	}
}

func (p *Poller[T]) recordExhausted(gen uint64, err error) {
	published := p.publish(gen, func(prev domain.Snapshot[T]) domain.Snapshot[T] {
		next := prev
		next.OK = false
		next.ObservedAt = p.now()
		next.LastError = err.Error()
		return next
	})
	if published {
		p.log.Warn("Endpoint unreachable after retries",
			"retries", p.cfg.MaxRetries,
			"error", err,
		)
	}
}

// publish applies mutate to the current snapshot unless the cycle was
// superseded or the poller was stopped, then notifies the callback.
func (p *Poller[T]) publish(gen uint64, mutate func(domain.Snapshot[T]) domain.Snapshot[T]) bool {
	// A superseded cycle must not be delivered after a newer one, so the
	// generation check, the write and the callback happen under one lock.
	p.deliver.Lock()
	defer p.deliver.Unlock()

	p.mu.Lock()
	if p.closed || gen != p.issued {
		p.mu.Unlock()
		metrics.PollDiscardedTotal.WithLabelValues(string(p.name)).Inc()
		return false
	}
	p.snap = mutate(p.snap)
	snap := p.snap
	onUpdate := p.onUpdate
	p.mu.Unlock()

	metrics.EndpointConsecutiveFailures.WithLabelValues(string(p.name)).Set(float64(snap.ConsecutiveFailures))
	if snap.OK {
		metrics.EndpointUp.WithLabelValues(string(p.name)).Set(1)
	} else {
		metrics.EndpointUp.WithLabelValues(string(p.name)).Set(0)
	}

	if onUpdate != nil {
		onUpdate(snap)
	}
	return true
}
