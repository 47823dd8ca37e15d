package domain

import "time"

// Proxyable stream types are low-bandwidth enough for the SSE preview proxy
// to decode and re-emit sample-by-sample. ConnectionInfo types are
// point-to-point and high-bandwidth; the proxy only advertises where to
// connect directly for those.
var (
	ProxyableStreamTypes = map[string]bool{
		"sensor": true,
		"data":   true,
		"osc":    true,
		"midi":   true,
		"audio":  true,
	}

	ConnectionInfoStreamTypes = map[string]bool{
		"video":   true,
		"ndi":     true,
		"srt":     true,
		"texture": true,
		"spout":   true,
		"syphon":  true,
	}
)

// Stream is an ephemeral advertisement of a data-plane endpoint served by
// some publisher. It lives only while its TTL (in the ephemeral registry)
// is fresh.
type Stream struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	StreamType     string    `json:"stream_type"`
	PublisherID    string    `json:"publisher_id"`
	Protocol       string    `json:"protocol"`
	Address        string    `json:"address"`
	Port           int       `json:"port"`
	EntityID       string    `json:"entity_id,omitempty"`
	DeviceID       string    `json:"device_id,omitempty"`
	Config         JSON      `json:"config"`
	Metadata       JSON      `json:"metadata"`
	AdvertisedAt   time.Time `json:"advertised_at"`
	LastHeartbeat  time.Time `json:"last_heartbeat"`
	ActiveSessions int       `json:"active_sessions"`
}

// Session statuses.
const (
	SessionActive  = "active"
	SessionStopped = "stopped"
)

// Session is a consumer's accounted attachment to a stream.
type Session struct {
	SessionID         string    `json:"session_id"`
	StreamID          string    `json:"stream_id"`
	PublisherID       string    `json:"publisher_id"`
	PublisherAddress  string    `json:"publisher_address"`
	PublisherPort     int       `json:"publisher_port"`
	ConsumerID        string    `json:"consumer_id"`
	ConsumerAddress   string    `json:"consumer_address"`
	Protocol          string    `json:"protocol"`
	TransportConfig   JSON      `json:"transport_config"`
	StartedAt         time.Time `json:"started_at"`
	Status            string    `json:"status"`
}

// NegotiationOffer is what the negotiator hands back to a consumer after a
// successful request: enough information for the consumer to open the
// actual data-plane connection itself.
type NegotiationOffer struct {
	SessionID        string `json:"session_id"`
	StreamID         string `json:"stream_id"`
	StreamName       string `json:"stream_name"`
	StreamType       string `json:"stream_type"`
	Protocol         string `json:"protocol"`
	PublisherAddress string `json:"publisher_address"`
	PublisherPort    int    `json:"publisher_port"`
	TransportConfig  JSON   `json:"transport_config"`
}

// NegotiationRequest is the payload sent on maestra.stream.request.<id>.
type NegotiationRequest struct {
	ConsumerID      string `json:"consumer_id"`
	ConsumerAddress string `json:"consumer_address"`
	ConsumerPort    int    `json:"consumer_port,omitempty"`
	Config          JSON   `json:"config,omitempty"`
}

// NegotiationReply is the publisher's response to a NegotiationRequest.
type NegotiationReply struct {
	Accepted        bool   `json:"accepted"`
	Reason          string `json:"reason,omitempty"`
	TransportConfig JSON   `json:"transport_config,omitempty"`
}
