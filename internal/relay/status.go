package relay

// Status is the snapshot consumed by the dashboard, produced on demand
// and on every state change.
type Status struct {
	CarrierActive     bool        `json:"carrier_active"`
	Mode              string      `json:"mode"`
	InputGain         float64     `json:"input_gain"`
	OutputGain        float64     `json:"output_gain"`
	IdentEnabled      bool        `json:"ident_enabled"`
	IdentInterval     int         `json:"ident_interval"`
	IdentClipPresent  bool        `json:"ident_clip_present"`
	HardwareConnected bool        `json:"hardware_connected"`
	CaptureHealthy    bool        `json:"capture_healthy"`
	Stats             StatusStats `json:"stats"`
}

// StatusStats is the statistics block of a status snapshot.
type StatusStats struct {
	TotalReceptions    uint64 `json:"total_receptions"`
	TotalTransmissions uint64 `json:"total_transmissions"`
	TotalAnnouncements uint64 `json:"total_announcements"`
	Uptime             string `json:"uptime"`
	LastActivity       string `json:"last_activity"`
	NextIdent          string `json:"next_ident"`
}
