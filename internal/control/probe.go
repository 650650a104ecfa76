package control

import (
	"context"
	"time"

	"github.com/vietddude/opswatch/internal/core/domain"
	"github.com/vietddude/opswatch/internal/monitoring/health"
	"github.com/vietddude/opswatch/internal/monitoring/pacing"
	"golang.org/x/sync/errgroup"
)

// Report is the result of a one-shot probe of every endpoint.
type Report struct {
	View      health.View
	Composite *health.Composite
	Pacing    *domain.PacingSample
	Errors    map[domain.EndpointName]string
}

// Probe fetches every endpoint once, in parallel, without retries.
func Probe(ctx context.Context, b Backend, staleAfter time.Duration) Report {
	var (
		in      health.Inputs
		metrics domain.Snapshot[domain.MetricsSnapshot]
		pace    domain.Snapshot[domain.PacingPayload]
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		in.Reachability = probeOnce(ctx, domain.EndpointReachability, b.Reachability)
		return nil
	})
	g.Go(func() error {
		in.API = probeOnce(ctx, domain.EndpointAPIStatus, b.APIStatus)
		return nil
	})
	g.Go(func() error {
		in.Channel = probeOnce(ctx, domain.EndpointChannel, b.Channel)
		return nil
	})
	g.Go(func() error {
		metrics = probeOnce(ctx, domain.EndpointMetrics, b.Metrics)
		return nil
	})
	g.Go(func() error {
		pace = probeOnce(ctx, domain.EndpointPacing, b.Pacing)
		return nil
	})
	_ = g.Wait()

	now := time.Now()
	r := Report{
		View:   health.Compose(now, in, staleAfter, 0),
		Errors: make(map[domain.EndpointName]string),
	}
	if metrics.OK {
		c := health.Evaluate(*metrics.Payload)
		r.Composite = &c
	}
	if pace.OK {
		s := pacing.SampleFromPayload(pace.ObservedAt, *pace.Payload)
		r.Pacing = &s
	}

	for _, e := range []struct {
		name domain.EndpointName
		err  string
	}{
		{domain.EndpointReachability, in.Reachability.LastError},
		{domain.EndpointAPIStatus, in.API.LastError},
		{domain.EndpointChannel, in.Channel.LastError},
		{domain.EndpointMetrics, metrics.LastError},
		{domain.EndpointPacing, pace.LastError},
	} {
		if e.err != "" {
			r.Errors[e.name] = e.err
		}
	}
	return r
}

func probeOnce[T any](ctx context.Context, name domain.EndpointName, fetch func(context.Context) (T, error)) domain.Snapshot[T] {
	payload, err := fetch(ctx)
	if err != nil {
		return domain.Snapshot[T]{
			Endpoint:            name,
			ObservedAt:          time.Now(),
			ConsecutiveFailures: 1,
			LastError:           err.Error(),
		}
	}
	return domain.Snapshot[T]{
		Endpoint:   name,
		OK:         true,
		Payload:    &payload,
		ObservedAt: time.Now(),
	}
}
