package domain

import "time"

// RoutingDevice is a node in the visual patch graph: a device with named
// input/output ports that routes can connect to.
type RoutingDevice struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	Name      string    `json:"name"`
	Inputs    []string  `json:"inputs"`
	Outputs   []string  `json:"outputs"`
	Metadata  JSON      `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Route is a directed edge in the patch graph. PresetID is nil for the
// active (live) patch; routes saved into a preset carry that preset's id.
type Route struct {
	ID         string    `json:"id"`
	FromDevice string    `json:"from_device"`
	FromPort   string    `json:"from_port"`
	ToDevice   string    `json:"to_device"`
	ToPort     string    `json:"to_port"`
	PresetID   *string   `json:"preset_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RoutePreset is a named, saved snapshot of the patch graph. At most one
// preset is marked active at a time.
type RoutePreset struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
