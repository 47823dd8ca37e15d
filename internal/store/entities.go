package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jordansnyder/maestra-core/internal/apperr"
	"github.com/jordansnyder/maestra-core/internal/domain"
)

// CreateEntityType inserts a new, immutable-named entity type.
func (s *Store) CreateEntityType(ctx context.Context, et *domain.EntityType) error {
	if et.ID == "" {
		et.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	et.CreatedAt, et.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO entity_types (id, name, display_name, icon, default_state, state_schema, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		et.ID, et.Name, et.DisplayName, nullIfEmpty(et.Icon), toJSONB(et.DefaultState), toJSONBPtr(et.StateSchema), toJSONB(et.Metadata), et.CreatedAt, et.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflictf("entity type %q already exists", et.Name)
		}

		return fmt.Errorf("create entity type: %w", err)
	}

	return nil
}

func (s *Store) GetEntityType(ctx context.Context, id string) (*domain.EntityType, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, display_name, COALESCE(icon, ''), default_state, state_schema, metadata, created_at, updated_at
		FROM entity_types WHERE id = $1`, id)

	return scanEntityType(row)
}

func (s *Store) GetEntityTypeByName(ctx context.Context, name string) (*domain.EntityType, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, display_name, COALESCE(icon, ''), default_state, state_schema, metadata, created_at, updated_at
		FROM entity_types WHERE name = $1`, name)

	return scanEntityType(row)
}

func (s *Store) ListEntityTypes(ctx context.Context) ([]domain.EntityType, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, display_name, COALESCE(icon, ''), default_state, state_schema, metadata, created_at, updated_at
		FROM entity_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list entity types: %w", err)
	}
	defer rows.Close()

	var out []domain.EntityType

	for rows.Next() {
		et, err := scanEntityType(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *et)
	}

	return out, rows.Err()
}

func scanEntityType(row pgx.Row) (*domain.EntityType, error) {
	var (
		et             domain.EntityType
		defaultState   []byte
		stateSchema    []byte
		metadata       []byte
	)

	if err := row.Scan(&et.ID, &et.Name, &et.DisplayName, &et.Icon, &defaultState, &stateSchema, &metadata, &et.CreatedAt, &et.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("entity type not found")
		}

		return nil, fmt.Errorf("scan entity type: %w", err)
	}

	_ = json.Unmarshal(defaultState, &et.DefaultState)

	if stateSchema != nil {
		_ = json.Unmarshal(stateSchema, &et.StateSchema)
	}

	_ = json.Unmarshal(metadata, &et.Metadata)

	return &et, nil
}

// CreateEntity inserts a new entity. Path is computed from the parent's
// path (forming the materialized dotted ancestor chain); a cycle (an
// entity naming itself, directly or transitively, as its own ancestor) is
// impossible on creation since the entity does not exist yet; computePath
// still checks for it. No operation changes an existing entity's parent.
func (s *Store) CreateEntity(ctx context.Context, e *domain.Entity) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	if e.Status == "" {
		e.Status = domain.EntityStatusActive
	}

	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt, e.StateUpdatedAt = now, now, now
	e.Tags = normalizeTags(e.Tags)

	path, err := s.computePath(ctx, e.ParentID, e.ID)
	if err != nil {
		return err
	}

	e.Path = path

	_, err = s.pool.Exec(ctx, `
		INSERT INTO entities (id, name, slug, type_id, parent_id, path, status, state, state_updated_at,
			description, tags, metadata, device_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		e.ID, e.Name, e.Slug, e.TypeID, e.ParentID, e.Path, e.Status, toJSONB(e.State), e.StateUpdatedAt,
		nullIfEmpty(e.Description), e.Tags, toJSONB(e.Metadata), e.DeviceID, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflictf("entity slug %q already exists", e.Slug)
		}

		return fmt.Errorf("create entity: %w", err)
	}

	return nil
}

// computePath builds the materialized dotted ancestor chain for a new
// entity under parentID, rejecting a cycle (an entity cannot be its own
// ancestor — checked by walking up from parentID and refusing if it ever
// equals selfID, which matters only on reparenting since selfID is new on
// create).
func (s *Store) computePath(ctx context.Context, parentID *string, selfID string) (string, error) {
	if parentID == nil {
		return selfID, nil
	}

	parent, err := s.GetEntity(ctx, *parentID)
	if err != nil {
		return "", apperr.Validationf("parent entity %q not found", *parentID)
	}

	for _, seg := range strings.Split(parent.Path, ".") {
		if seg == selfID {
			return "", apperr.Validation("cycle detected: entity cannot be its own ancestor")
		}
	}

	return parent.Path + "." + selfID, nil
}

func (s *Store) GetEntity(ctx context.Context, id string) (*domain.Entity, error) {
	row := s.pool.QueryRow(ctx, entitySelectSQL+" WHERE id = $1", id)

	return scanEntity(row)
}

func (s *Store) GetEntityBySlug(ctx context.Context, slug string) (*domain.Entity, error) {
	row := s.pool.QueryRow(ctx, entitySelectSQL+" WHERE slug = $1", slug)

	return scanEntity(row)
}

// EntityFilter narrows ListEntities by the query parameters the HTTP front
// exposes: type, parent, tags, and a free-text search over name/slug/
// description.
type EntityFilter struct {
	TypeID   string
	ParentID string
	Tags     []string
	Search   string
	Limit    int
	Offset   int
}

func (s *Store) ListEntities(ctx context.Context, f EntityFilter) ([]domain.Entity, error) {
	query := entitySelectSQL + " WHERE true"

	args := make([]interface{}, 0, 6)

	if f.TypeID != "" {
		args = append(args, f.TypeID)
		query += fmt.Sprintf(" AND type_id = $%d", len(args))
	}

	if f.ParentID != "" {
		args = append(args, f.ParentID)
		query += fmt.Sprintf(" AND parent_id = $%d", len(args))
	}

	if len(f.Tags) > 0 {
		args = append(args, f.Tags)
		query += fmt.Sprintf(" AND tags && $%d", len(args))
	}

	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		query += fmt.Sprintf(" AND (name ILIKE $%d OR slug ILIKE $%d OR description ILIKE $%d)", len(args), len(args), len(args))
	}

	query += " ORDER BY name"

	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var out []domain.Entity

	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *e)
	}

	return out, rows.Err()
}

// Ancestors returns e's parent chain, root first, by splitting its
// materialized path.
func (s *Store) Ancestors(ctx context.Context, id string) ([]domain.Entity, error) {
	e, err := s.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}

	ids := strings.Split(e.Path, ".")
	if len(ids) <= 1 {
		return nil, nil
	}

	ids = ids[:len(ids)-1] // drop self

	rows, err := s.pool.Query(ctx, entitySelectSQL+" WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("ancestors: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.Entity, len(ids))

	for rows.Next() {
		ent, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}

		byID[ent.ID] = *ent
	}

	ordered := make([]domain.Entity, 0, len(ids))

	for _, id := range ids {
		if ent, ok := byID[id]; ok {
			ordered = append(ordered, ent)
		}
	}

	return ordered, rows.Err()
}

// Descendants returns all entities whose path starts with e's path,
// bounded to maxDepth levels below e (0 = unbounded).
func (s *Store) Descendants(ctx context.Context, id string, maxDepth int) ([]domain.Entity, error) {
	e, err := s.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, entitySelectSQL+" WHERE path LIKE $1 AND id != $2", e.Path+".%", id)
	if err != nil {
		return nil, fmt.Errorf("descendants: %w", err)
	}
	defer rows.Close()

	selfDepth := strings.Count(e.Path, ".")

	var out []domain.Entity

	for rows.Next() {
		d, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}

		if maxDepth > 0 && strings.Count(d.Path, ".")-selfDepth > maxDepth {
			continue
		}

		out = append(out, *d)
	}

	return out, rows.Err()
}

// Siblings returns entities sharing e's parent, excluding e itself.
func (s *Store) Siblings(ctx context.Context, id string) ([]domain.Entity, error) {
	e, err := s.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		rows pgx.Rows
		qerr error
	)

	if e.ParentID == nil {
		rows, qerr = s.pool.Query(ctx, entitySelectSQL+" WHERE parent_id IS NULL AND id != $1", id)
	} else {
		rows, qerr = s.pool.Query(ctx, entitySelectSQL+" WHERE parent_id = $1 AND id != $2", *e.ParentID, id)
	}

	if qerr != nil {
		return nil, fmt.Errorf("siblings: %w", qerr)
	}
	defer rows.Close()

	var out []domain.Entity

	for rows.Next() {
		d, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *d)
	}

	return out, rows.Err()
}

// UpdateEntityState writes a new state object and bumps state_updated_at.
// Used exclusively by the state engine; it does not compute change sets or
// emit events itself.
func (s *Store) UpdateEntityState(ctx context.Context, entityID string, state domain.JSON, updatedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE entities SET state = $1, state_updated_at = $2, updated_at = $2 WHERE id = $3`,
		toJSONB(state), updatedAt, entityID)
	if err != nil {
		return fmt.Errorf("update entity state: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("entity %q not found", entityID)
	}

	return nil
}

// UpdateEntity replaces an entity's mutable fields (not state — see
// UpdateEntityState).
func (s *Store) UpdateEntity(ctx context.Context, e *domain.Entity) error {
	e.UpdatedAt = time.Now().UTC()
	e.Tags = normalizeTags(e.Tags)

	tag, err := s.pool.Exec(ctx, `
		UPDATE entities SET name=$1, description=$2, tags=$3, metadata=$4, device_id=$5, status=$6, updated_at=$7
		WHERE id = $8`,
		e.Name, nullIfEmpty(e.Description), e.Tags, toJSONB(e.Metadata), e.DeviceID, e.Status, e.UpdatedAt, e.ID)
	if err != nil {
		return fmt.Errorf("update entity: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("entity %q not found", e.ID)
	}

	return nil
}

// DeleteEntity removes an entity. If cascade, all descendants (by path
// prefix) are removed in the same statement — a single recursive delete,
// not N application-level queries. If not cascade, children are orphaned
// (their parent_id set to null) first.
func (s *Store) DeleteEntity(ctx context.Context, id string, cascade bool) error {
	e, err := s.GetEntity(ctx, id)
	if err != nil {
		return err
	}

	if cascade {
		_, err := s.pool.Exec(ctx, `DELETE FROM entities WHERE path = $1 OR path LIKE $2`, e.Path, e.Path+".%")
		if err != nil {
			return fmt.Errorf("cascade delete entity: %w", err)
		}

		return nil
	}

	batch := &pgx.Batch{}
	batch.Queue(`UPDATE entities SET parent_id = NULL WHERE parent_id = $1`, id)
	batch.Queue(`DELETE FROM entities WHERE id = $1`, id)

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	if _, err := br.Exec(); err != nil {
		return fmt.Errorf("orphan children: %w", err)
	}

	if _, err := br.Exec(); err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}

	return nil
}

const entitySelectSQL = `
	SELECT id, name, slug, type_id, parent_id, path, status, state, state_updated_at,
		COALESCE(description, ''), tags, metadata, device_id, created_at, updated_at
	FROM entities`

func scanEntity(row pgx.Row) (*domain.Entity, error) {
	var (
		e        domain.Entity
		state    []byte
		metadata []byte
	)

	if err := row.Scan(&e.ID, &e.Name, &e.Slug, &e.TypeID, &e.ParentID, &e.Path, &e.Status, &state, &e.StateUpdatedAt,
		&e.Description, &e.Tags, &metadata, &e.DeviceID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("entity not found")
		}

		return nil, fmt.Errorf("scan entity: %w", err)
	}

	_ = json.Unmarshal(state, &e.State)
	_ = json.Unmarshal(metadata, &e.Metadata)

	return &e, nil
}

// normalizeTags dedupes while preserving first-seen order; duplicates are
// allowed on write per §3 but normalized, not rejected.
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))

	for _, t := range tags {
		if seen[t] {
			continue
		}

		seen[t] = true
		out = append(out, t)
	}

	return out
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}

	return s
}

func toJSONB(v domain.JSON) []byte {
	if v == nil {
		v = domain.JSON{}
	}

	b, _ := json.Marshal(v)

	return b
}

func toJSONBPtr(v domain.JSON) interface{} {
	if v == nil {
		return nil
	}

	b, _ := json.Marshal(v)

	return b
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}
