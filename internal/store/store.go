// Package store implements C1, the durable catalog: entity types, entities,
// devices, the routing patch graph, and the append-only history sinks,
// backed by PostgreSQL via pgx.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jordansnyder/maestra-core/internal/logger"
)

// Store wraps a pgx connection pool with the queries every other Maestra
// subsystem needs from the durable catalog.
type Store struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

// Connect dials databaseURL and verifies connectivity with a ping.
func Connect(ctx context.Context, databaseURL string, log logger.Logger) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: parse database url: %w", err)
	}

	poolConfig.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return &Store{pool: pool, log: log}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate applies the catalog's schema. It is idempotent: every statement
// is CREATE ... IF NOT EXISTS, so it is safe to run on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}

	return nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS entity_types (
	id            TEXT PRIMARY KEY,
	name          TEXT UNIQUE NOT NULL,
	display_name  TEXT NOT NULL,
	icon          TEXT,
	default_state JSONB NOT NULL DEFAULT '{}',
	state_schema  JSONB,
	metadata      JSONB NOT NULL DEFAULT '{}',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS devices (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	device_type      TEXT NOT NULL,
	hardware_id      TEXT UNIQUE NOT NULL,
	firmware_version TEXT,
	ip_address       TEXT,
	location         JSONB NOT NULL DEFAULT '{}',
	metadata         JSONB NOT NULL DEFAULT '{}',
	status           TEXT NOT NULL DEFAULT 'offline',
	last_seen        TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS entities (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	slug             TEXT UNIQUE NOT NULL,
	type_id          TEXT NOT NULL REFERENCES entity_types(id),
	parent_id        TEXT REFERENCES entities(id),
	path             TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'active',
	state            JSONB NOT NULL DEFAULT '{}',
	state_updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	description      TEXT,
	tags             TEXT[] NOT NULL DEFAULT '{}',
	metadata         JSONB NOT NULL DEFAULT '{}',
	device_id        TEXT REFERENCES devices(id),
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_entities_path ON entities USING btree (path text_pattern_ops);
CREATE INDEX IF NOT EXISTS idx_entities_parent ON entities (parent_id);
CREATE INDEX IF NOT EXISTS idx_entities_type ON entities (type_id);

CREATE TABLE IF NOT EXISTS routing_devices (
	id         TEXT PRIMARY KEY,
	device_id  TEXT NOT NULL REFERENCES devices(id),
	name       TEXT NOT NULL,
	inputs     TEXT[] NOT NULL DEFAULT '{}',
	outputs    TEXT[] NOT NULL DEFAULT '{}',
	metadata   JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS route_presets (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	active     BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS routes (
	id          TEXT PRIMARY KEY,
	from_device TEXT NOT NULL,
	from_port   TEXT NOT NULL,
	to_device   TEXT NOT NULL,
	to_port     TEXT NOT NULL,
	preset_id   TEXT REFERENCES route_presets(id),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_routes_active_unique
	ON routes (from_device, from_port, to_device, to_port)
	WHERE preset_id IS NULL;

CREATE TABLE IF NOT EXISTS session_history (
	session_id         TEXT PRIMARY KEY,
	stream_id          TEXT NOT NULL,
	publisher_id       TEXT NOT NULL,
	consumer_id        TEXT NOT NULL,
	protocol           TEXT NOT NULL,
	started_at         TIMESTAMPTZ NOT NULL,
	ended_at           TIMESTAMPTZ,
	duration_seconds   DOUBLE PRECISION,
	bytes_transferred  BIGINT,
	status             TEXT NOT NULL,
	error_message      TEXT
);

CREATE TABLE IF NOT EXISTS state_history (
	time           TIMESTAMPTZ NOT NULL,
	entity_id      TEXT NOT NULL,
	slug           TEXT NOT NULL,
	type           TEXT NOT NULL,
	path           TEXT NOT NULL DEFAULT '',
	state          JSONB NOT NULL,
	previous_state JSONB NOT NULL DEFAULT '{}',
	changed_keys   TEXT[] NOT NULL DEFAULT '{}',
	source         TEXT
);
CREATE INDEX IF NOT EXISTS idx_state_history_entity ON state_history (entity_id, time DESC);

CREATE TABLE IF NOT EXISTS collection_configs (
	id         TEXT PRIMARY KEY,
	scope      TEXT NOT NULL,
	scope_key  TEXT NOT NULL DEFAULT '',
	verbosity  TEXT NOT NULL DEFAULT 'standard',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_collection_configs_scope ON collection_configs (scope, scope_key);

CREATE TABLE IF NOT EXISTS annotations (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	body       TEXT,
	entity_id  TEXT,
	tags       TEXT[] NOT NULL DEFAULT '{}',
	metadata   JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS metrics (
	id          BIGSERIAL PRIMARY KEY,
	received_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	payload     JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id          BIGSERIAL PRIMARY KEY,
	received_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	payload     JSONB NOT NULL
);
`
