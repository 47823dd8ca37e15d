// Package domain holds the data model shared by every Maestra subsystem:
// entity types, entities, devices, the routing patch graph, ephemeral
// streams/sessions, and their durable history records.
package domain

import "time"

// JSON is Maestra's free-form state value: an object of string keys to
// recursively nested values (object, array, string, number, bool, null).
// State is intentionally unschematized; see the Variable validation helpers
// for the opt-in, advisory-only type checking this domain allows instead.
type JSON = map[string]interface{}

// EntityType is an immutable-name catalog entry describing a class of
// entity (e.g. "light", "sensor") and the default state new entities of
// that type start with.
type EntityType struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Icon        string    `json:"icon,omitempty"`
	DefaultState JSON     `json:"default_state"`
	StateSchema  JSON     `json:"state_schema,omitempty"`
	Metadata     JSON     `json:"metadata"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Entity is a node in the entity forest: a logical thing with reactive
// state and, optionally, a parent.
type Entity struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	TypeID         string    `json:"type_id"`
	ParentID       *string   `json:"parent_id,omitempty"`
	Path           string    `json:"path"`
	Status         string    `json:"status"`
	State          JSON      `json:"state"`
	StateUpdatedAt time.Time `json:"state_updated_at"`
	Description    string    `json:"description,omitempty"`
	Tags           []string  `json:"tags"`
	Metadata       JSON      `json:"metadata"`
	DeviceID       *string   `json:"device_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

const (
	EntityStatusActive = "active"
)

// VariableDirection is the direction of a variable definition.
type VariableDirection string

const (
	DirectionInput  VariableDirection = "input"
	DirectionOutput VariableDirection = "output"
)

// VariableType enumerates the advisory value shapes a variable definition
// may declare.
type VariableType string

const (
	VarString  VariableType = "string"
	VarNumber  VariableType = "number"
	VarBoolean VariableType = "boolean"
	VarArray   VariableType = "array"
	VarColor   VariableType = "color"
	VarVector2 VariableType = "vector2"
	VarVector3 VariableType = "vector3"
	VarRange   VariableType = "range"
	VarEnum    VariableType = "enum"
	VarObject  VariableType = "object"
)

// VariableDefinition describes one input or output port of an entity's
// behaviour, stored under entity.Metadata["variables"].
type VariableDefinition struct {
	Name         string            `json:"name"`
	Type         VariableType      `json:"type"`
	Direction    VariableDirection `json:"direction"`
	Description  string            `json:"description,omitempty"`
	DefaultValue interface{}       `json:"defaultValue,omitempty"`
	Required     bool              `json:"required"`
	Config       JSON              `json:"config,omitempty"`
}

// VariableSet is the parsed form of entity.Metadata["variables"]: ordered
// input and output lists, names unique across both.
type VariableSet struct {
	Inputs  []VariableDefinition `json:"inputs"`
	Outputs []VariableDefinition `json:"outputs"`
}

// ValidationResult is the outcome of validating an entity's state against
// its VariableSet. Validation never mutates state; it only reports.
type ValidationResult struct {
	Warnings        []string `json:"warnings"`
	MissingRequired []string `json:"missing_required"`
	UndefinedKeys   []string `json:"undefined_keys"`
}
