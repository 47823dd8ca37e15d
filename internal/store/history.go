package store

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jordansnyder/maestra-core/internal/apperr"
	"github.com/jordansnyder/maestra-core/internal/domain"
)

// WriteStateHistory appends one entity state transition. Satisfies
// stateengine.Store.
func (s *Store) WriteStateHistory(ctx context.Context, rec domain.StateHistory) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO state_history (time, entity_id, slug, type, path, state, previous_state, changed_keys, source)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		rec.Time, rec.EntityID, rec.Slug, rec.Type, rec.Path, toJSONB(rec.State), toJSONB(rec.PreviousState), rec.ChangedKeys, nullIfEmpty(rec.Source))
	if err != nil {
		return fmt.Errorf("write state history: %w", err)
	}

	return nil
}

// ResolveVerbosity implements the device > entity_type > global lookup
// order, defaulting to standard when nothing is configured. Satisfies
// stateengine.Store.
func (s *Store) ResolveVerbosity(ctx context.Context, deviceID, entityTypeName string) (domain.Verbosity, error) {
	if deviceID != "" {
		v, ok, err := s.lookupVerbosity(ctx, domain.ScopeDevice, deviceID)
		if err != nil {
			return "", err
		}

		if ok {
			return v, nil
		}
	}

	if entityTypeName != "" {
		v, ok, err := s.lookupVerbosity(ctx, domain.ScopeEntityType, entityTypeName)
		if err != nil {
			return "", err
		}

		if ok {
			return v, nil
		}
	}

	v, ok, err := s.lookupVerbosity(ctx, domain.ScopeGlobal, "")
	if err != nil {
		return "", err
	}

	if ok {
		return v, nil
	}

	return domain.VerbosityStandard, nil
}

func (s *Store) lookupVerbosity(ctx context.Context, scope domain.CollectionScope, scopeKey string) (domain.Verbosity, bool, error) {
	var v domain.Verbosity

	err := s.pool.QueryRow(ctx, `SELECT verbosity FROM collection_configs WHERE scope = $1 AND scope_key = $2`, scope, scopeKey).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("resolve verbosity: %w", err)
	}

	return v, true, nil
}

// UpsertCollectionConfig creates or replaces the verbosity for a scope.
func (s *Store) UpsertCollectionConfig(ctx context.Context, cc *domain.CollectionConfig) error {
	if cc.ID == "" {
		cc.ID = uuid.NewString()
	}

	cc.UpdatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO collection_configs (id, scope, scope_key, verbosity, updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (scope, scope_key) DO UPDATE SET verbosity = $4, updated_at = $5`,
		cc.ID, cc.Scope, cc.ScopeKey, cc.Verbosity, cc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert collection config: %w", err)
	}

	return nil
}

func (s *Store) ListCollectionConfigs(ctx context.Context) ([]domain.CollectionConfig, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, scope, scope_key, verbosity, updated_at FROM collection_configs ORDER BY scope, scope_key`)
	if err != nil {
		return nil, fmt.Errorf("list collection configs: %w", err)
	}
	defer rows.Close()

	var out []domain.CollectionConfig

	for rows.Next() {
		var cc domain.CollectionConfig
		if err := rows.Scan(&cc.ID, &cc.Scope, &cc.ScopeKey, &cc.Verbosity, &cc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan collection config: %w", err)
		}

		out = append(out, cc)
	}

	return out, rows.Err()
}

// WriteSessionHistory inserts the initial session record at negotiation
// time.
func (s *Store) WriteSessionHistory(ctx context.Context, rec domain.SessionHistory) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO session_history (session_id, stream_id, publisher_id, consumer_id, protocol, started_at, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rec.SessionID, rec.StreamID, rec.PublisherID, rec.ConsumerID, rec.Protocol, rec.StartedAt, rec.Status)
	if err != nil {
		return fmt.Errorf("write session history: %w", err)
	}

	return nil
}

// ListSessionHistory returns the durable session ledger for sessions
// started in [since, until], most recent first.
func (s *Store) ListSessionHistory(ctx context.Context, since, until time.Time) ([]domain.SessionHistory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT session_id, stream_id, publisher_id, consumer_id, protocol, started_at, ended_at,
			COALESCE(duration_seconds, 0), COALESCE(bytes_transferred, 0), status, COALESCE(error_message, '')
		FROM session_history WHERE started_at BETWEEN $1 AND $2 ORDER BY started_at DESC`, since, until)
	if err != nil {
		return nil, fmt.Errorf("list session history: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionHistory

	for rows.Next() {
		var rec domain.SessionHistory

		if err := rows.Scan(&rec.SessionID, &rec.StreamID, &rec.PublisherID, &rec.ConsumerID, &rec.Protocol,
			&rec.StartedAt, &rec.EndedAt, &rec.DurationSeconds, &rec.BytesTransferred, &rec.Status, &rec.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan session history: %w", err)
		}

		out = append(out, rec)
	}

	return out, rows.Err()
}

// CloseSessionHistory fills in the end-of-life fields on session stop.
func (s *Store) CloseSessionHistory(ctx context.Context, sessionID, status, errMessage string, endedAt time.Time, bytesTransferred int64) error {
	var startedAt time.Time

	if err := s.pool.QueryRow(ctx, `SELECT started_at FROM session_history WHERE session_id = $1`, sessionID).Scan(&startedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFoundf("session history %q not found", sessionID)
		}

		return fmt.Errorf("close session history: lookup: %w", err)
	}

	duration := endedAt.Sub(startedAt).Seconds()

	_, err := s.pool.Exec(ctx, `
		UPDATE session_history SET ended_at = $1, duration_seconds = $2, bytes_transferred = $3, status = $4, error_message = $5
		WHERE session_id = $6`,
		endedAt, duration, bytesTransferred, status, nullIfEmpty(errMessage), sessionID)
	if err != nil {
		return fmt.Errorf("close session history: %w", err)
	}

	return nil
}

func (s *Store) CreateAnnotation(ctx context.Context, a *domain.Annotation) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	a.Tags = normalizeTags(a.Tags)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO annotations (id, title, body, entity_id, tags, metadata, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.Title, nullIfEmpty(a.Body), nullIfEmpty(a.EntityID), a.Tags, toJSONB(a.Metadata), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create annotation: %w", err)
	}

	return nil
}

// UpdateAnnotation replaces a's mutable fields in place, preserving its
// created_at.
func (s *Store) UpdateAnnotation(ctx context.Context, a *domain.Annotation) error {
	a.UpdatedAt = time.Now().UTC()
	a.Tags = normalizeTags(a.Tags)

	tag, err := s.pool.Exec(ctx, `
		UPDATE annotations SET title = $1, body = $2, entity_id = $3, tags = $4, metadata = $5, updated_at = $6
		WHERE id = $7`,
		a.Title, nullIfEmpty(a.Body), nullIfEmpty(a.EntityID), a.Tags, toJSONB(a.Metadata), a.UpdatedAt, a.ID)
	if err != nil {
		return fmt.Errorf("update annotation: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("annotation %q not found", a.ID)
	}

	return nil
}

func (s *Store) ListAnnotations(ctx context.Context) ([]domain.Annotation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, COALESCE(body, ''), COALESCE(entity_id, ''), tags, metadata, created_at, updated_at
		FROM annotations ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	defer rows.Close()

	var out []domain.Annotation

	for rows.Next() {
		var (
			a        domain.Annotation
			metadata []byte
		)

		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &a.EntityID, &a.Tags, &metadata, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}

		_ = json.Unmarshal(metadata, &a.Metadata)
		out = append(out, a)
	}

	return out, rows.Err()
}

func (s *Store) DeleteAnnotation(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM annotations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete annotation: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("annotation %q not found", id)
	}

	return nil
}

// InsertMetric and InsertEvent are the sinks for the ingest endpoints; the
// payload is stored as-is, opaque to the catalog.
func (s *Store) InsertMetric(ctx context.Context, payload domain.JSON) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO metrics (payload) VALUES ($1)`, toJSONB(payload))
	if err != nil {
		return fmt.Errorf("insert metric: %w", err)
	}

	return nil
}

func (s *Store) InsertEvent(ctx context.Context, payload domain.JSON) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO events (payload) VALUES ($1)`, toJSONB(payload))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	return nil
}

// AnalyticsSummary is the aggregate counts backing GET /analytics/summary.
type AnalyticsSummary struct {
	MetricCount     int64 `json:"metric_count"`
	EventCount      int64 `json:"event_count"`
	StateChangeCount int64 `json:"state_change_count"`
	SessionCount    int64 `json:"session_count"`
	AnnotationCount int64 `json:"annotation_count"`
}

func (s *Store) AnalyticsSummary(ctx context.Context, since, until time.Time) (*AnalyticsSummary, error) {
	var sum AnalyticsSummary

	row := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM metrics WHERE received_at BETWEEN $1 AND $2),
			(SELECT COUNT(*) FROM events WHERE received_at BETWEEN $1 AND $2),
			(SELECT COUNT(*) FROM state_history WHERE time BETWEEN $1 AND $2),
			(SELECT COUNT(*) FROM session_history WHERE started_at BETWEEN $1 AND $2),
			(SELECT COUNT(*) FROM annotations WHERE created_at BETWEEN $1 AND $2)`,
		since, until)

	if err := row.Scan(&sum.MetricCount, &sum.EventCount, &sum.StateChangeCount, &sum.SessionCount, &sum.AnnotationCount); err != nil {
		return nil, fmt.Errorf("analytics summary: %w", err)
	}

	return &sum, nil
}

// ExportKind names the table backing GET /analytics/export/{kind}.
type ExportKind string

const (
	ExportMetrics     ExportKind = "metrics"
	ExportEvents      ExportKind = "events"
	ExportStates      ExportKind = "states"
	ExportAnnotations ExportKind = "annotations"
)

// ExportRows streams back the raw rows for kind between since and until,
// each as a flat string map suitable for either JSON or CSV encoding.
func (s *Store) ExportRows(ctx context.Context, kind ExportKind, since, until time.Time) ([]map[string]string, error) {
	switch kind {
	case ExportMetrics:
		return s.exportJSONBTable(ctx, "metrics", "received_at", since, until)
	case ExportEvents:
		return s.exportJSONBTable(ctx, "events", "received_at", since, until)
	case ExportStates:
		return s.exportStateHistory(ctx, since, until)
	case ExportAnnotations:
		return s.exportAnnotations(ctx, since, until)
	default:
		return nil, apperr.Validationf("unknown export kind %q", kind)
	}
}

func (s *Store) exportJSONBTable(ctx context.Context, table, timeCol string, since, until time.Time) ([]map[string]string, error) {
	query := fmt.Sprintf(`SELECT id, %s, payload FROM %s WHERE %s BETWEEN $1 AND $2 ORDER BY %s`, timeCol, table, timeCol, timeCol)

	rows, err := s.pool.Query(ctx, query, since, until)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", table, err)
	}
	defer rows.Close()

	var out []map[string]string

	for rows.Next() {
		var (
			id      int64
			at      time.Time
			payload []byte
		)

		if err := rows.Scan(&id, &at, &payload); err != nil {
			return nil, fmt.Errorf("scan export row: %w", err)
		}

		out = append(out, map[string]string{
			"id":      strconv.FormatInt(id, 10),
			timeCol:   at.Format(time.RFC3339),
			"payload": string(payload),
		})
	}

	return out, rows.Err()
}

func (s *Store) exportStateHistory(ctx context.Context, since, until time.Time) ([]map[string]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT time, entity_id, slug, type, path, changed_keys FROM state_history
		WHERE time BETWEEN $1 AND $2 ORDER BY time`, since, until)
	if err != nil {
		return nil, fmt.Errorf("export states: %w", err)
	}
	defer rows.Close()

	var out []map[string]string

	for rows.Next() {
		var (
			at          time.Time
			entityID    string
			slug        string
			typ         string
			path        string
			changedKeys []string
		)

		if err := rows.Scan(&at, &entityID, &slug, &typ, &path, &changedKeys); err != nil {
			return nil, fmt.Errorf("scan state history row: %w", err)
		}

		out = append(out, map[string]string{
			"time":         at.Format(time.RFC3339),
			"entity_id":    entityID,
			"slug":         slug,
			"type":         typ,
			"path":         path,
			"changed_keys": strings.Join(changedKeys, ";"),
		})
	}

	return out, rows.Err()
}

func (s *Store) exportAnnotations(ctx context.Context, since, until time.Time) ([]map[string]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, COALESCE(body, ''), COALESCE(entity_id, ''), tags, created_at FROM annotations
		WHERE created_at BETWEEN $1 AND $2 ORDER BY created_at`, since, until)
	if err != nil {
		return nil, fmt.Errorf("export annotations: %w", err)
	}
	defer rows.Close()

	var out []map[string]string

	for rows.Next() {
		var (
			id, title, body, entityID string
			tags                      []string
			createdAt                 time.Time
		)

		if err := rows.Scan(&id, &title, &body, &entityID, &tags, &createdAt); err != nil {
			return nil, fmt.Errorf("scan annotation export row: %w", err)
		}

		out = append(out, map[string]string{
			"id":         id,
			"title":      title,
			"body":       body,
			"entity_id":  entityID,
			"tags":       strings.Join(tags, ";"),
			"created_at": createdAt.Format(time.RFC3339),
		})
	}

	return out, rows.Err()
}

// EncodeExportCSV writes rows as CSV with a header row drawn from the
// first row's keys, in a stable order.
func EncodeExportCSV(w *csv.Writer, rows []map[string]string) error {
	if len(rows) == 0 {
		return nil
	}

	header := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		header = append(header, k)
	}

	sort.Strings(header)

	if err := w.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, row := range rows {
		rec := make([]string, len(header))
		for i, k := range header {
			rec[i] = row[k]
		}

		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()

	return w.Error()
}
