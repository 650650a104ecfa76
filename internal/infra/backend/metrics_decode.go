package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"mime"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
	"github.com/vietddude/opswatch/internal/core/domain"
)

// MetricsFormat maps Prometheus metric families onto the counter maps.
type MetricsFormat struct {
	InboundFamily   string `yaml:"inbound_family"`
	ProposalFamily  string `yaml:"proposal_family"`
	ConfirmedFamily string `yaml:"confirmed_family"`
	FailureFamily   string `yaml:"failure_family"`
	LatencyFamily   string `yaml:"latency_family"`
	ChannelLabel    string `yaml:"channel_label"`
	KindLabel       string `yaml:"kind_label"`
}

// DefaultMetricsFormat returns the family names the backend exports.
func DefaultMetricsFormat() MetricsFormat {
	return MetricsFormat{
		InboundFamily:   "inbound_messages_total",
		ProposalFamily:  "proposals_total",
		ConfirmedFamily: "proposals_confirmed_total",
		FailureFamily:   "proposals_failed_total",
		LatencyFamily:   "http_request_duration_p95_ms",
		ChannelLabel:    "channel",
		KindLabel:       "kind",
	}
}

func (f MetricsFormat) withDefaults() MetricsFormat {
	d := DefaultMetricsFormat()
	if f.InboundFamily == "" {
		f.InboundFamily = d.InboundFamily
	}
	if f.ProposalFamily == "" {
		f.ProposalFamily = d.ProposalFamily
	}
	if f.ConfirmedFamily == "" {
		f.ConfirmedFamily = d.ConfirmedFamily
	}
	if f.FailureFamily == "" {
		f.FailureFamily = d.FailureFamily
	}
	if f.LatencyFamily == "" {
		f.LatencyFamily = d.LatencyFamily
	}
	if f.ChannelLabel == "" {
		f.ChannelLabel = d.ChannelLabel
	}
	if f.KindLabel == "" {
		f.KindLabel = d.KindLabel
	}
	return f
}

// DecodeMetrics decodes a metrics document. JSON bodies are decoded
// directly; anything else is parsed as Prometheus text exposition.
func DecodeMetrics(body []byte, contentType string, f MetricsFormat) (domain.MetricsSnapshot, error) {
	if isJSON(contentType, body) {
		var m domain.MetricsSnapshot
		if err := json.Unmarshal(body, &m); err != nil {
			return domain.MetricsSnapshot{}, fmt.Errorf("json: %w", err)
		}
		return m, nil
	}
	return decodeExposition(body, f.withDefaults())
}

func isJSON(contentType string, body []byte) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
	}
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func decodeExposition(body []byte, f MetricsFormat) (domain.MetricsSnapshot, error) {
	parser := expfmt.NewTextParser(model.UTF8Validation)
	families, err := parser.TextToMetricFamilies(bytes.NewReader(body))
	if err != nil {
		return domain.MetricsSnapshot{}, fmt.Errorf("exposition: %w", err)
	}

	m := domain.MetricsSnapshot{
		InboundTotal:   sumByLabel(families[f.InboundFamily], f.ChannelLabel),
		ProposalTotal:  sumByLabel(families[f.ProposalFamily], f.KindLabel),
		ConfirmedTotal: sumByLabel(families[f.ConfirmedFamily], f.KindLabel),
		FailureTotal:   sumByLabel(families[f.FailureFamily], f.KindLabel),
	}

	if mf, ok := families[f.LatencyFamily]; ok {
		if v, ok := p95(mf); ok {
			if strings.HasSuffix(f.LatencyFamily, "_seconds") {
				v *= 1000
			}
			m.P95LatencyMs = &v
		}
	}

	return m, nil
}

// sumByLabel folds every sample of a family into a map keyed by label.
// Samples without the label are counted under "unknown".
func sumByLabel(mf *dto.MetricFamily, label string) map[string]int {
	out := make(map[string]int)
	if mf == nil {
		return out
	}
	for _, metric := range mf.GetMetric() {
		key := "unknown"
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == label {
				key = lp.GetValue()
				break
			}
		}
		v, ok := scalar(metric)
		if !ok {
			continue
		}
		out[key] += int(math.Round(v))
	}
	return out
}

func scalar(metric *dto.Metric) (float64, bool) {
	var v float64
	switch {
	case metric.Counter != nil:
		v = metric.GetCounter().GetValue()
	case metric.Gauge != nil:
		v = metric.GetGauge().GetValue()
	case metric.Untyped != nil:
		v = metric.GetUntyped().GetValue()
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// p95 reads the latency family: a gauge value, or the 0.95 quantile of a summary.
func p95(mf *dto.MetricFamily) (float64, bool) {
	for _, metric := range mf.GetMetric() {
		if s := metric.GetSummary(); s != nil {
			for _, q := range s.GetQuantile() {
				if q.GetQuantile() == 0.95 && !math.IsNaN(q.GetValue()) {
					return q.GetValue(), true
				}
			}
			continue
		}
		if v, ok := scalar(metric); ok {
			return v, true
		}
	}
	return 0, false
}
