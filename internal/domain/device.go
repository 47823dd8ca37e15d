package domain

import "time"

// Device status values.
const (
	DeviceOnline      = "online"
	DeviceOffline     = "offline"
	DeviceError       = "error"
	DeviceMaintenance = "maintenance"
)

// Device is a physical or logical piece of hardware registered with
// Maestra: an ESP32 panel, a DAW, an SDR box.
type Device struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	DeviceType      string    `json:"device_type"`
	HardwareID      string    `json:"hardware_id"`
	FirmwareVersion string    `json:"firmware_version,omitempty"`
	IPAddress       string    `json:"ip_address,omitempty"`
	Location        JSON      `json:"location"`
	Metadata        JSON      `json:"metadata"`
	Status          string    `json:"status"`
	LastSeen        time.Time `json:"last_seen"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
