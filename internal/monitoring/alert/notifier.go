package alert

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vietddude/opswatch/internal/core/domain"
)

// Notifier delivers alert records to a presentation surface.
type Notifier interface {
	Notify(ctx context.Context, rec domain.AlertRecord) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, rec domain.AlertRecord) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, rec domain.AlertRecord) error {
	return f(ctx, rec)
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs the alert at warn level.
func (n LogNotifier) Notify(ctx context.Context, rec domain.AlertRecord) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.WarnContext(ctx, "Alert fired",
		"id", rec.ID,
		"kind", rec.Kind,
		"value", rec.Value,
		"message", rec.Message,
	)
	return nil
}

// FanOut delivers to every notifier and reports the first error.
type FanOut []Notifier

// Notify delivers rec to all notifiers even if some fail.
func (f FanOut) Notify(ctx context.Context, rec domain.AlertRecord) error {
	var firstErr error
	for _, n := range f {
		if err := n.Notify(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Broadcaster streams alerts to live subscribers. Nothing is retained:
// a subscriber only sees alerts fired while it is subscribed.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan domain.AlertRecord
	nextID int
	buffer int
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broadcaster{
		subs:   make(map[int]chan domain.AlertRecord),
		buffer: buffer,
	}
}

// Subscribe returns a channel of alerts and a func to unsubscribe.
func (b *Broadcaster) Subscribe() (<-chan domain.AlertRecord, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan domain.AlertRecord, b.buffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// Notify sends rec to every subscriber. Slow subscribers miss alerts
// instead of blocking the dispatcher.
func (b *Broadcaster) Notify(ctx context.Context, rec domain.AlertRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- rec:
		default:
			slog.Debug("Dropping alert for slow subscriber", "subscriber", id, "kind", rec.Kind)
		}
	}
	return nil
}

// Subscribers returns the number of live subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
