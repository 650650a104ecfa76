package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PollAttemptsTotal tracks fetch attempts per endpoint and result
	PollAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opswatch_poll_attempts_total",
			Help: "Total number of endpoint fetch attempts",
		},
		[]string{"endpoint", "result"},
	)

	// PollDiscardedTotal tracks responses dropped because a newer poll superseded them
	PollDiscardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opswatch_poll_discarded_total",
			Help: "Total number of superseded or post-teardown poll results discarded",
		},
		[]string{"endpoint"},
	)

	// EndpointConsecutiveFailures tracks the current failure streak per endpoint
	EndpointConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "opswatch_endpoint_consecutive_failures",
			Help: "Consecutive failed fetches of the endpoint",
		},
		[]string{"endpoint"},
	)

	// EndpointUp is 1 when the last snapshot of the endpoint is ok
	EndpointUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "opswatch_endpoint_up",
			Help: "Whether the endpoint's latest snapshot is ok (1) or not (0)",
		},
		[]string{"endpoint"},
	)

	// CompositeStatus exposes the composite health status (0=ok, 1=attention, 2=critical)
	CompositeStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "opswatch_composite_status",
			Help: "Composite health status: 0 ok, 1 attention, 2 critical",
		},
	)

	// PacingSent tracks messages sent in the current pacing minute
	PacingSent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "opswatch_pacing_sent",
			Help: "Outbound messages sent this minute",
		},
	)

	// PacingLimit tracks the outbound cap per minute
	PacingLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "opswatch_pacing_limit",
			Help: "Outbound message cap per minute",
		},
	)

	// AlertsFiredTotal tracks emitted alerts per kind
	AlertsFiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opswatch_alerts_fired_total",
			Help: "Total number of alerts emitted",
		},
		[]string{"kind"},
	)
)
