package api

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// StatusResponse is the payload of /api/v1/status.
type StatusResponse struct {
	Uptime         string `json:"uptime"`
	Enabled        bool   `json:"enabled"`
	NumVFs         int    `json:"num_vfs"`
	TrafficClasses int    `json:"traffic_classes"`
	MaxVFs         int    `json:"max_vfs"`
	LinkUp         bool   `json:"link_up"`
	LinkMbps       int    `json:"link_mbps"`
	MACSlotsUsed   int    `json:"mac_slots_used"`
	MACSlotsTotal  int    `json:"mac_slots_total"`
	VLANFree       int    `json:"vlan_entries_free"`
	VLANTotal      int    `json:"vlan_entries_total"`
	MacvlanFree    int    `json:"macvlan_slots_free"`
	MacvlanTotal   int    `json:"macvlan_slots_total"`
}

// CountRequest sets the VF count; zero disables capacity.
type CountRequest struct {
	NumVFs int `json:"num_vfs"`
}

// MACRequest assigns or clears a VF's administrative address.
type MACRequest struct {
	MAC string `json:"mac"`
}

// VLANRequest sets or clears a VF's administrative VLAN.
type VLANRequest struct {
	VLAN uint16 `json:"vlan"`
	QoS  uint8  `json:"qos"`
}

// BoolRequest carries a single toggle.
type BoolRequest struct {
	Enabled bool `json:"enabled"`
}

// RateRequest caps a VF's transmit rate; zero removes the cap.
type RateRequest struct {
	RateMbps int `json:"rate_mbps"`
}

// LinkRequest sets a VF's link mode: "auto", "enable" or "disable".
type LinkRequest struct {
	State string `json:"state"`
}
