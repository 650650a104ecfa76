package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/vietddude/opswatch/internal/core/config"
	"github.com/vietddude/opswatch/internal/core/domain"
	"github.com/vietddude/opswatch/internal/infra/backend"
	"github.com/vietddude/opswatch/internal/monitoring/alert"
	"github.com/vietddude/opswatch/internal/monitoring/health"
	"github.com/vietddude/opswatch/internal/monitoring/metrics"
	"github.com/vietddude/opswatch/internal/monitoring/pacing"
	"github.com/vietddude/opswatch/internal/monitoring/poller"
)

// Config holds the monitor configuration.
type Config struct {
	Port     int
	GRPCPort int // 0 = disabled
	Backend  backend.Config
	Polling  config.PollingConfig
	Pacing   config.PacingConfig
	Alerts   config.AlertsConfig
}

// FromAppConfig maps the loaded file configuration onto a monitor Config.
func FromAppConfig(app *config.AppConfig) Config {
	return Config{
		Port:     app.Server.Port,
		GRPCPort: app.Server.GRPCPort,
		Backend:  app.Backend,
		Polling:  app.Polling,
		Pacing:   app.Pacing,
		Alerts:   app.Alerts,
	}
}

// Backend is the set of fetches the monitor polls.
type Backend interface {
	Reachability(ctx context.Context) (domain.ReachabilityPayload, error)
	APIStatus(ctx context.Context) (domain.APIStatusPayload, error)
	Channel(ctx context.Context) (domain.ChannelPayload, error)
	Metrics(ctx context.Context) (domain.MetricsSnapshot, error)
	Pacing(ctx context.Context) (domain.PacingPayload, error)
}

type endpointPoller interface {
	Name() domain.EndpointName
	Config() poller.Config
	Start(ctx context.Context)
	Refresh()
	Stop()
}

// update is one published snapshot handed to the control loop.
type update struct {
	endpoint domain.EndpointName
	metrics  *domain.Snapshot[domain.MetricsSnapshot]
	pacing   *domain.Snapshot[domain.PacingPayload]
}

// Monitor wires the pollers to the aggregator, the pacing tracker and the
// alert dispatcher. Snapshot consumers run on a single control loop.
type Monitor struct {
	cfg    Config
	client Backend
	closer func() error

	reachability *poller.Poller[domain.ReachabilityPayload]
	api          *poller.Poller[domain.APIStatusPayload]
	channel      *poller.Poller[domain.ChannelPayload]
	metrics      *poller.Poller[domain.MetricsSnapshot]
	pacing       *poller.Poller[domain.PacingPayload]
	pollers      []endpointPoller

	aggregator  *health.Aggregator
	tracker     *pacing.Tracker
	dispatcher  *alert.Dispatcher
	broadcaster *alert.Broadcaster
	server      *health.Server
	grpc        *grpcHealth

	updates chan update
	now     func() time.Time
	log     *slog.Logger

	mu        sync.RWMutex
	composite *health.Composite
	running   bool
	stopped   bool
	cancel    context.CancelFunc
	loopDone  chan struct{}
}

// NewMonitor creates a Monitor talking to the configured backend.
func NewMonitor(cfg Config) (*Monitor, error) {
	client, err := backend.NewClient(cfg.Backend)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}
	m, err := newMonitor(cfg, client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	m.closer = client.Close
	return m, nil
}

func newMonitor(cfg Config, client Backend) (*Monitor, error) {
	m := &Monitor{
		cfg:     cfg,
		client:  client,
		updates: make(chan update, 64),
		now:     time.Now,
		log:     slog.Default().With("component", "monitor"),
	}

	var err error
	if m.reachability, err = newPoller(cfg.Polling, domain.EndpointReachability, client.Reachability); err != nil {
		return nil, err
	}
	if m.api, err = newPoller(cfg.Polling, domain.EndpointAPIStatus, client.APIStatus); err != nil {
		return nil, err
	}
	if m.channel, err = newPoller(cfg.Polling, domain.EndpointChannel, client.Channel); err != nil {
		return nil, err
	}
	if m.metrics, err = newPoller(cfg.Polling, domain.EndpointMetrics, client.Metrics); err != nil {
		return nil, err
	}
	if m.pacing, err = newPoller(cfg.Polling, domain.EndpointPacing, client.Pacing); err != nil {
		return nil, err
	}
	m.pollers = []endpointPoller{m.reachability, m.api, m.channel, m.metrics, m.pacing}

	m.metrics.SetUpdateCallback(func(s domain.Snapshot[domain.MetricsSnapshot]) {
		m.enqueue(update{endpoint: domain.EndpointMetrics, metrics: &s})
	})
	m.pacing.SetUpdateCallback(func(s domain.Snapshot[domain.PacingPayload]) {
		m.enqueue(update{endpoint: domain.EndpointPacing, pacing: &s})
	})
	m.reachability.SetUpdateCallback(func(domain.Snapshot[domain.ReachabilityPayload]) {
		m.enqueue(update{endpoint: domain.EndpointReachability})
	})
	m.api.SetUpdateCallback(func(domain.Snapshot[domain.APIStatusPayload]) {
		m.enqueue(update{endpoint: domain.EndpointAPIStatus})
	})
	m.channel.SetUpdateCallback(func(domain.Snapshot[domain.ChannelPayload]) {
		m.enqueue(update{endpoint: domain.EndpointChannel})
	})

	m.aggregator = health.NewAggregator(m.reachability, m.api, m.channel, cfg.Polling.StaleAfter, cfg.Polling.MaxRetries)
	m.tracker = pacing.NewTracker(cfg.Pacing.Window, cfg.Pacing.SaturationRun)

	m.broadcaster = alert.NewBroadcaster(cfg.Alerts.StreamBuffer)
	m.dispatcher = alert.NewDispatcher(alert.Thresholds{
		FailureDelta: cfg.Alerts.FailureDelta,
		DropPercent:  cfg.Alerts.DropPercent,
		LatencyMs:    cfg.Alerts.LatencyMs,
		Cooldown:     cfg.Alerts.Cooldown,
	}, alert.FanOut{alert.LogNotifier{}, m.broadcaster})

	m.server = health.NewServer(m, m.broadcaster, cfg.Port)
	if cfg.GRPCPort != 0 {
		m.grpc = newGRPCHealth(cfg.GRPCPort)
	}

	return m, nil
}

func newPoller[T any](pc config.PollingConfig, name domain.EndpointName, fetch poller.FetchFunc[T]) (*poller.Poller[T], error) {
	return poller.New(name, poller.Config{
		Interval:   pc.IntervalFor(string(name)),
		MaxRetries: pc.MaxRetries,
		StaleAfter: pc.StaleAfter,
		Backoff:    poller.Backoff{Base: pc.BaseDelay, Max: pc.MaxDelay},
	}, fetch)
}

// Start launches the control loop, the pollers and the servers.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running || m.stopped {
		m.mu.Unlock()
		return fmt.Errorf("monitor already started")
	}
	m.running = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.loopDone = make(chan struct{})
	m.mu.Unlock()

	go func() {
		if err := m.server.Start(); err != nil {
			m.log.Error("Status server failed", "error", err)
		}
	}()
	if m.grpc != nil {
		go func() {
			if err := m.grpc.Start(); err != nil {
				m.log.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	go m.loop(ctx)

	th := m.dispatcher.Thresholds()
	m.log.Info("Alert thresholds",
		"failure_delta", th.FailureDelta,
		"drop_percent", th.DropPercent,
		"latency_ms", th.LatencyMs,
		"cooldown", th.Cooldown,
	)

	for _, p := range m.pollers {
		pc := p.Config()
		m.log.Info("Starting poller",
			"endpoint", p.Name(),
			"interval", pc.Interval,
			"max_retries", pc.MaxRetries,
		)
		p.Start(ctx)
	}
	return nil
}

// Stop halts the pollers first so no snapshot arrives after the loop exits,
// then stops the loop and the servers.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.stopped = true
	cancel := m.cancel
	loopDone := m.loopDone
	m.mu.Unlock()

	m.log.Info("Stopping monitor...")

	for _, p := range m.pollers {
		p.Stop()
	}
	cancel()
	<-loopDone

	if m.grpc != nil {
		m.grpc.Stop()
	}
	if m.closer != nil {
		if err := m.closer(); err != nil {
			m.log.Warn("Failed to close backend client", "error", err)
		}
	}
	return m.server.Stop(ctx)
}

// Refresh supersedes every in-flight poll with a new one.
func (m *Monitor) Refresh() {
	for _, p := range m.pollers {
		p.Refresh()
	}
}

// View returns the current System Health View.
func (m *Monitor) View() health.View {
	return m.aggregator.View(m.now())
}

// Composite returns the classification of the latest metrics, if any.
func (m *Monitor) Composite() (health.Composite, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.composite == nil {
		return health.Composite{}, false
	}
	return *m.composite, true
}

// PacingWindow returns the retained pacing samples, oldest first.
func (m *Monitor) PacingWindow() []domain.PacingSample {
	return m.tracker.Snapshot()
}

// PacingSaturated reports sustained pacing saturation.
func (m *Monitor) PacingSaturated() bool {
	return m.tracker.Saturated()
}

// Alerts returns the live alert feed.
func (m *Monitor) Alerts() *alert.Broadcaster {
	return m.broadcaster
}

// Handler exposes the status server routes.
func (m *Monitor) Handler() http.Handler {
	return m.server.Handler()
}

func (m *Monitor) enqueue(u update) {
	m.mu.RLock()
	done := m.loopDone
	m.mu.RUnlock()

	select {
	case m.updates <- u:
	case <-done:
	}
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.loopDone)

	// Staleness changes the view without any new snapshot.
	recheck := m.cfg.Polling.StaleAfter / 2
	if recheck <= 0 {
		recheck = 30 * time.Second
	}
	ticker := time.NewTicker(recheck)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.publishServing()
		case u := <-m.updates:
			m.handle(ctx, u)
		}
	}
}

func (m *Monitor) handle(ctx context.Context, u update) {
	switch {
	case u.metrics != nil:
		m.handleMetrics(ctx, *u.metrics)
	case u.pacing != nil:
		m.handlePacing(ctx, *u.pacing)
	default:
		m.publishServing()
	}
}

// handleMetrics acts on fresh successes only. Retry updates carry the
// previous payload and must not be compared against it again.
func (m *Monitor) handleMetrics(ctx context.Context, s domain.Snapshot[domain.MetricsSnapshot]) {
	if !s.OK || s.ConsecutiveFailures != 0 || s.Payload == nil {
		return
	}
	snap := s.Payload.Clone()

	c := health.Evaluate(snap)
	m.mu.Lock()
	m.composite = &c
	m.mu.Unlock()
	metrics.CompositeStatus.Set(float64(c.Status.Level()))

	for _, rec := range m.dispatcher.Observe(ctx, s.ObservedAt, snap) {
		m.log.Debug("Alert dispatched", "id", rec.ID, "kind", rec.Kind)
	}
}

func (m *Monitor) handlePacing(ctx context.Context, s domain.Snapshot[domain.PacingPayload]) {
	if !s.OK || s.ConsecutiveFailures != 0 || s.Payload == nil {
		return
	}
	sample := pacing.SampleFromPayload(s.ObservedAt, *s.Payload)
	metrics.PacingSent.Set(float64(sample.Sent))
	metrics.PacingLimit.Set(float64(sample.Limit))

	switch m.tracker.Append(sample) {
	case pacing.TransitionEntered:
		m.log.Warn("Outbound pacing saturated", "sent", sample.Sent, "limit", sample.Limit)
		m.dispatcher.ObserveSaturation(ctx, s.ObservedAt, sample)
	case pacing.TransitionCleared:
		m.log.Info("Outbound pacing recovered", "sent", sample.Sent, "limit", sample.Limit)
	}
}

func (m *Monitor) publishServing() {
	if m.grpc == nil {
		return
	}
	now := m.now()
	view := m.aggregator.View(now)
	m.grpc.SetOverall(view.Overall == health.OverallHealthy)
	m.grpc.SetEndpoint(domain.EndpointReachability, view.Reachability == domain.StateUp)
	m.grpc.SetEndpoint(domain.EndpointAPIStatus, view.API == domain.StateUp)
	m.grpc.SetEndpoint(domain.EndpointChannel, view.Channel == health.ChannelConnected)
}
