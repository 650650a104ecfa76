package health

import "github.com/vietddude/opswatch/internal/core/domain"

// Classification thresholds. Evaluated critical first.
const (
	criticalErrorRate         = 15.0
	criticalConfirmationRate  = 60.0
	attentionErrorRate        = 5.0
	attentionConfirmationRate = 80.0

	inboundWindowMinutes = 60.0
	errorWindowHours     = 24.0
)

// ComputeRates derives the classification rates from a metrics snapshot.
// Percentages are 0 when no proposals were made.
func ComputeRates(m domain.MetricsSnapshot) Rates {
	proposals := float64(m.Proposals())
	failures := float64(m.Failures())

	r := Rates{
		InboundRate: float64(m.InboundTotal[domain.ChannelWhatsApp]+m.InboundTotal[domain.ChannelEmail]) / inboundWindowMinutes,
		ErrorRate:   failures / errorWindowHours,
	}
	if proposals > 0 {
		r.ProposalSuccess = (proposals - failures) / proposals * 100
		r.ConfirmationRate = float64(m.Confirmed()) / proposals * 100
	}
	return r
}

// ClassifyRates applies the fixed thresholds. First match wins.
func ClassifyRates(r Rates) CompositeStatus {
	switch {
	case r.ErrorRate > criticalErrorRate || r.ConfirmationRate < criticalConfirmationRate:
		return StatusCritical
	case r.ErrorRate > attentionErrorRate || r.ConfirmationRate < attentionConfirmationRate:
		return StatusAttention
	default:
		return StatusOK
	}
}

// Classify returns the composite status for a metrics snapshot.
func Classify(m domain.MetricsSnapshot) CompositeStatus {
	return ClassifyRates(ComputeRates(m))
}

// Evaluate returns both the status and the rates behind it.
func Evaluate(m domain.MetricsSnapshot) Composite {
	r := ComputeRates(m)
	return Composite{Status: ClassifyRates(r), Rates: r}
}
