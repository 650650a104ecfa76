package domain

// ReachabilityPayload is returned by the core server health endpoint.
type ReachabilityPayload struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// APIStatusPayload is returned by the API runtime status endpoint.
type APIStatusPayload struct {
	Status        string  `json:"status"`
	Environment   string  `json:"environment,omitempty"`
	Version       string  `json:"version,omitempty"`
	UptimeSeconds float64 `json:"uptime_seconds,omitempty"`
}

// ChannelPayload is returned by the messaging-channel status endpoint.
type ChannelPayload struct {
	Connected   bool   `json:"connected"`
	State       string `json:"state,omitempty"`
	Instance    string `json:"instance,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// PacingPayload is returned by the outbound pacing endpoint.
type PacingPayload struct {
	CapPerMinute   int `json:"cap_per_minute"`
	SentThisMinute int `json:"sent_this_minute"`
}
