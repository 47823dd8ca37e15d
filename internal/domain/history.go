package domain

import "time"

// SessionHistory is the durable, append-only record of a negotiated
// session, written on negotiation and updated on stop.
type SessionHistory struct {
	SessionID        string     `json:"session_id"`
	StreamID         string     `json:"stream_id"`
	PublisherID      string     `json:"publisher_id"`
	ConsumerID       string     `json:"consumer_id"`
	Protocol         string     `json:"protocol"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	DurationSeconds  float64    `json:"duration_seconds,omitempty"`
	BytesTransferred int64      `json:"bytes_transferred,omitempty"`
	Status           string     `json:"status"`
	ErrorMessage     string     `json:"error_message,omitempty"`
}

// StateHistory is the durable, append-only record of one entity state
// transition. PreviousState is empty unless the effective verbosity for
// this entity is "verbose".
type StateHistory struct {
	Time          time.Time `json:"time"`
	EntityID      string    `json:"entity_id"`
	Slug          string    `json:"slug"`
	Type          string    `json:"type"`
	Path          string    `json:"path"`
	State         JSON      `json:"state"`
	PreviousState JSON      `json:"previous_state,omitempty"`
	ChangedKeys   []string  `json:"changed_keys"`
	Source        string    `json:"source,omitempty"`
}

// Verbosity controls how much of a state transition CollectionConfig asks
// the state engine to persist to history.
type Verbosity string

const (
	VerbosityMinimal  Verbosity = "minimal"
	VerbosityStandard Verbosity = "standard"
	VerbosityVerbose  Verbosity = "verbose"
)

// CollectionScope is the kind of key a CollectionConfig entry is keyed by.
type CollectionScope string

const (
	ScopeGlobal     CollectionScope = "global"
	ScopeEntityType CollectionScope = "entity_type"
	ScopeDevice     CollectionScope = "device"
)

// CollectionConfig resolves history verbosity for a given scope. Lookup
// order is device > entity_type > global; default is "standard".
type CollectionConfig struct {
	ID        string          `json:"id"`
	Scope     CollectionScope `json:"scope"`
	ScopeKey  string          `json:"scope_key,omitempty"` // device id or entity type name; empty for global
	Verbosity Verbosity       `json:"verbosity"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Annotation is an analytics annotation: a durable, user-authored note
// pinned to a point or range in time.
type Annotation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	EntityID  string    `json:"entity_id,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Metadata  JSON      `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
