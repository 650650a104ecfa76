package domain

// PacingSample is one point of the outbound pacing time series.
type PacingSample struct {
	Time  string `json:"time"`
	Sent  int    `json:"sent"`
	Limit int    `json:"limit"`
}

// Saturated reports whether the sample reached its cap.
// A non-positive limit means the backend reported no cap.
func (s PacingSample) Saturated() bool {
	return s.Limit > 0 && s.Sent >= s.Limit
}
