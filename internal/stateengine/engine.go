package stateengine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jordansnyder/maestra-core/internal/domain"
	"github.com/jordansnyder/maestra-core/internal/logger"
)

// Store is what the state engine needs from the durable catalog: entity
// and entity-type lookups, and a compare-and-write state update.
type Store interface {
	GetEntity(ctx context.Context, id string) (*domain.Entity, error)
	GetEntityBySlug(ctx context.Context, slug string) (*domain.Entity, error)
	GetEntityType(ctx context.Context, typeID string) (*domain.EntityType, error)
	UpdateEntityState(ctx context.Context, entityID string, state domain.JSON, updatedAt time.Time) error
	WriteStateHistory(ctx context.Context, rec domain.StateHistory) error
	ResolveVerbosity(ctx context.Context, deviceID, entityTypeName string) (domain.Verbosity, error)
}

// Bus is what the state engine needs from the fan-out bus: best-effort
// publishes on both trees. Neither method returns an error — publish
// failures are logged by the implementation and must never fail a state
// write.
type Bus interface {
	PublishSubject(subject string, payload []byte)
	PublishTopic(topic string, payload []byte)
}

// Engine implements C4: deep-merge state updates, change detection,
// history recording, lifecycle and state-change events.
type Engine struct {
	store Store
	bus   Bus
	log   logger.Logger
}

func New(store Store, bus Bus, log logger.Logger) *Engine {
	return &Engine{store: store, bus: bus, log: log}
}

// stateChangedEvent is the payload emitted on a non-empty state change.
type stateChangedEvent struct {
	Type          string      `json:"type"`
	EntityID      string      `json:"entity_id"`
	EntitySlug    string      `json:"entity_slug"`
	EntityType    string      `json:"entity_type"`
	PreviousState domain.JSON `json:"previous_state"`
	CurrentState  domain.JSON `json:"current_state"`
	ChangedKeys   []string    `json:"changed_keys"`
	Source        string      `json:"source,omitempty"`
	Timestamp     string      `json:"timestamp"`
}

// GetState returns an entity's full state plus state_updated_at, or a
// projection of it if paths is non-empty. Unresolved paths are omitted.
func (e *Engine) GetState(ctx context.Context, entityID string, paths []string) (domain.JSON, time.Time, error) {
	entity, err := e.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, time.Time{}, err
	}

	if len(paths) == 0 {
		return entity.State, entity.StateUpdatedAt, nil
	}

	projected := make(domain.JSON, len(paths))

	for _, p := range paths {
		if v, ok := resolvePath(entity.State, p); ok {
			projected[p] = v
		}
	}

	return projected, entity.StateUpdatedAt, nil
}

// PatchState applies a recursive deep merge of partial onto the entity's
// stored state and commits the result if any top-level key changed.
func (e *Engine) PatchState(ctx context.Context, entityID string, partial domain.JSON, source string) (domain.Entity, error) {
	entity, err := e.store.GetEntity(ctx, entityID)
	if err != nil {
		return domain.Entity{}, err
	}

	merged := DeepMerge(entity.State, partial)

	return e.commitState(ctx, entity, merged, source)
}

// PutState replaces the entity's entire stored state object.
func (e *Engine) PutState(ctx context.Context, entityID string, newState domain.JSON, source string) (domain.Entity, error) {
	entity, err := e.store.GetEntity(ctx, entityID)
	if err != nil {
		return domain.Entity{}, err
	}

	return e.commitState(ctx, entity, newState, source)
}

// BulkUpdateResult is the per-slug outcome of a bulk state update; bulk
// updates never roll back on partial failure.
type BulkUpdateResult struct {
	Slug   string `json:"slug"`
	Status string `json:"status"` // "updated" | "not_found"
}

// BulkUpdate applies updates[slug] as a PATCH (deep merge) to each named
// entity independently; one slug's failure does not affect the others.
func (e *Engine) BulkUpdate(ctx context.Context, updates map[string]domain.JSON, source string) []BulkUpdateResult {
	results := make([]BulkUpdateResult, 0, len(updates))

	for slug, partial := range updates {
		entity, err := e.store.GetEntityBySlug(ctx, slug)
		if err != nil {
			results = append(results, BulkUpdateResult{Slug: slug, Status: "not_found"})

			continue
		}

		merged := DeepMerge(entity.State, partial)

		if _, err := e.commitState(ctx, *entity, merged, source); err != nil {
			e.log.Error().Err(err).Str("slug", slug).Msg("bulk update: commit failed")
			results = append(results, BulkUpdateResult{Slug: slug, Status: "not_found"})

			continue
		}

		results = append(results, BulkUpdateResult{Slug: slug, Status: "updated"})
	}

	return results
}

// BulkGet resolves the current state of each named slug, independently.
func (e *Engine) BulkGet(ctx context.Context, slugs []string) map[string]domain.JSON {
	out := make(map[string]domain.JSON, len(slugs))

	for _, slug := range slugs {
		entity, err := e.store.GetEntityBySlug(ctx, slug)
		if err != nil {
			continue
		}

		out[slug] = entity.State
	}

	return out
}

func (e *Engine) commitState(ctx context.Context, entity domain.Entity, newState domain.JSON, source string) (domain.Entity, error) {
	changed := ChangedKeys(entity.State, newState)

	now := time.Now().UTC()

	if len(changed) == 0 {
		// Idempotent update: bump nothing, emit nothing (§4.1 rule).
		return entity, nil
	}

	if err := e.store.UpdateEntityState(ctx, entity.ID, newState, now); err != nil {
		return domain.Entity{}, fmt.Errorf("update entity state: %w", err)
	}

	previous := entity.State
	entity.State = newState
	entity.StateUpdatedAt = now

	e.recordHistory(ctx, entity, previous, changed, source)
	e.emitStateChanged(entity, previous, changed, source, now)

	return entity, nil
}

func (e *Engine) recordHistory(ctx context.Context, entity domain.Entity, previous domain.JSON, changed []string, source string) {
	entityType, err := e.store.GetEntityType(ctx, entity.TypeID)
	typeName := ""

	if err == nil {
		typeName = entityType.Name
	}

	verbosity, err := e.store.ResolveVerbosity(ctx, derefOrEmpty(entity.DeviceID), typeName)
	if err != nil {
		verbosity = domain.VerbosityStandard
	}

	if verbosity == domain.VerbosityMinimal {
		return
	}

	rec := domain.StateHistory{
		Time:        entity.StateUpdatedAt,
		EntityID:    entity.ID,
		Slug:        entity.Slug,
		Type:        typeName,
		Path:        entity.Path,
		State:       entity.State,
		ChangedKeys: changed,
		Source:      source,
	}

	if verbosity == domain.VerbosityVerbose {
		rec.PreviousState = previous
	} else {
		rec.PreviousState = domain.JSON{}
	}

	// History failures are logged, never surfaced: a bus or store outage
	// here must not fail the state update itself (§7 propagation policy).
	if err := e.store.WriteStateHistory(ctx, rec); err != nil {
		e.log.Error().Err(err).Str("entity_id", entity.ID).Msg("failed to write state history")
	}
}

func (e *Engine) emitStateChanged(entity domain.Entity, previous domain.JSON, changed []string, source string, at time.Time) {
	entityType, _ := e.store.GetEntityType(context.Background(), entity.TypeID)

	typeName := ""
	if entityType != nil {
		typeName = entityType.Name
	}

	evt := stateChangedEvent{
		Type:          "state_changed",
		EntityID:      entity.ID,
		EntitySlug:    entity.Slug,
		EntityType:    typeName,
		PreviousState: previous,
		CurrentState:  entity.State,
		ChangedKeys:   changed,
		Source:        source,
		Timestamp:     at.Format("2006-01-02T15:04:05.000Z"),
	}

	body, err := json.Marshal(evt)
	if err != nil {
		e.log.Error().Err(err).Msg("failed to encode state_changed event")

		return
	}

	subjects := []string{
		"maestra.entity.state",
		"maestra.entity.state." + typeName,
		"maestra.entity.state." + typeName + "." + entity.Slug,
	}
	topics := []string{
		"maestra/entity/state",
		"maestra/entity/state/" + typeName,
		"maestra/entity/state/" + typeName + "/" + entity.Slug,
	}

	for _, s := range subjects {
		e.bus.PublishSubject(s, body)
	}

	for _, t := range topics {
		e.bus.PublishTopic(t, body)
	}
}

// lifecycleEvent is the payload for entity_created|updated|deleted events.
type lifecycleEvent struct {
	Type       string      `json:"type"`
	EntityID   string      `json:"entity_id"`
	EntitySlug string      `json:"entity_slug"`
	EntityType string      `json:"entity_type"`
	Data       domain.JSON `json:"data,omitempty"`
	Timestamp  string      `json:"timestamp"`
}

// EmitLifecycle publishes an entity_created|updated|deleted event on the
// global and per-type fan-outs, both trees.
func (e *Engine) EmitLifecycle(eventType, entityID, slug, typeName string, data domain.JSON) {
	evt := lifecycleEvent{
		Type:       eventType,
		EntityID:   entityID,
		EntitySlug: slug,
		EntityType: typeName,
		Data:       data,
		Timestamp:  time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
	}

	body, err := json.Marshal(evt)
	if err != nil {
		e.log.Error().Err(err).Msg("failed to encode lifecycle event")

		return
	}

	subjects := []string{
		"maestra.entity." + eventType,
		"maestra.entity." + eventType + "." + typeName,
	}
	topics := []string{
		"maestra/entity/" + eventType,
		"maestra/entity/" + eventType + "/" + typeName,
	}

	for _, s := range subjects {
		e.bus.PublishSubject(s, body)
	}

	for _, t := range topics {
		e.bus.PublishTopic(t, body)
	}
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

// resolvePath resolves a dotted path like "a.b.c" against a JSON object.
func resolvePath(state domain.JSON, path string) (interface{}, bool) {
	var (
		current interface{} = state
		key     string
	)

	for _, r := range path {
		if r == '.' {
			m, ok := current.(domain.JSON)
			if !ok {
				return nil, false
			}

			next, ok := m[key]
			if !ok {
				return nil, false
			}

			current = next
			key = ""

			continue
		}

		key += string(r)
	}

	m, ok := current.(domain.JSON)
	if !ok {
		return nil, false
	}

	v, ok := m[key]

	return v, ok
}

