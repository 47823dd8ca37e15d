package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jordansnyder/maestra-core/internal/apperr"
	"github.com/jordansnyder/maestra-core/internal/domain"
)

const routingDeviceSelectSQL = `
	SELECT id, device_id, name, inputs, outputs, metadata, created_at, updated_at FROM routing_devices`

func (s *Store) CreateRoutingDevice(ctx context.Context, rd *domain.RoutingDevice) error {
	if rd.ID == "" {
		rd.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	rd.CreatedAt, rd.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO routing_devices (id, device_id, name, inputs, outputs, metadata, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		rd.ID, rd.DeviceID, rd.Name, rd.Inputs, rd.Outputs, toJSONB(rd.Metadata), rd.CreatedAt, rd.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create routing device: %w", err)
	}

	return nil
}

func (s *Store) ListRoutingDevices(ctx context.Context) ([]domain.RoutingDevice, error) {
	rows, err := s.pool.Query(ctx, routingDeviceSelectSQL+" ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list routing devices: %w", err)
	}
	defer rows.Close()

	var out []domain.RoutingDevice

	for rows.Next() {
		rd, err := scanRoutingDevice(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *rd)
	}

	return out, rows.Err()
}

func (s *Store) GetRoutingDevice(ctx context.Context, id string) (*domain.RoutingDevice, error) {
	row := s.pool.QueryRow(ctx, routingDeviceSelectSQL+" WHERE id = $1", id)

	return scanRoutingDevice(row)
}

func scanRoutingDevice(row pgx.Row) (*domain.RoutingDevice, error) {
	var (
		rd       domain.RoutingDevice
		metadata []byte
	)

	if err := row.Scan(&rd.ID, &rd.DeviceID, &rd.Name, &rd.Inputs, &rd.Outputs, &metadata, &rd.CreatedAt, &rd.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("routing device not found")
		}

		return nil, fmt.Errorf("scan routing device: %w", err)
	}

	_ = json.Unmarshal(metadata, &rd.Metadata)

	return &rd, nil
}

// portDeclared checks port is among a routing device's declared inputs (if
// wantInput) or outputs.
func (s *Store) portDeclared(ctx context.Context, deviceID, port string, wantInput bool) (bool, error) {
	rows, err := s.pool.Query(ctx, routingDeviceSelectSQL+" WHERE device_id = $1", deviceID)
	if err != nil {
		return false, fmt.Errorf("port lookup: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rd, err := scanRoutingDevice(rows)
		if err != nil {
			return false, err
		}

		ports := rd.Outputs
		if wantInput {
			ports = rd.Inputs
		}

		for _, p := range ports {
			if p == port {
				return true, nil
			}
		}
	}

	return false, rows.Err()
}

// CreateRoute inserts an active route (preset_id NULL). Violates §3's
// uniqueness invariant on the active-route tuple as a Conflict; an
// undeclared port as a Validation error.
func (s *Store) CreateRoute(ctx context.Context, r *domain.Route) error {
	outOK, err := s.portDeclared(ctx, r.FromDevice, r.FromPort, false)
	if err != nil {
		return err
	}

	if !outOK {
		return apperr.Validationf("port %q not declared as output on device %q", r.FromPort, r.FromDevice)
	}

	inOK, err := s.portDeclared(ctx, r.ToDevice, r.ToPort, true)
	if err != nil {
		return err
	}

	if !inOK {
		return apperr.Validationf("port %q not declared as input on device %q", r.ToPort, r.ToDevice)
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	r.CreatedAt = time.Now().UTC()

	_, err = s.pool.Exec(ctx, `
		INSERT INTO routes (id, from_device, from_port, to_device, to_port, preset_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		r.ID, r.FromDevice, r.FromPort, r.ToDevice, r.ToPort, r.PresetID, r.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("an active route with this (from_device, from_port, to_device, to_port) already exists")
		}

		return fmt.Errorf("create route: %w", err)
	}

	return nil
}

func (s *Store) DeleteRoute(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM routes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete route: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("route %q not found", id)
	}

	return nil
}

// ActiveRoutes returns the current patch: all routes with preset_id NULL.
func (s *Store) ActiveRoutes(ctx context.Context) ([]domain.Route, error) {
	return s.queryRoutes(ctx, `SELECT id, from_device, from_port, to_device, to_port, preset_id, created_at FROM routes WHERE preset_id IS NULL`)
}

func (s *Store) queryRoutes(ctx context.Context, query string, args ...interface{}) ([]domain.Route, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()

	var out []domain.Route

	for rows.Next() {
		var r domain.Route
		if err := rows.Scan(&r.ID, &r.FromDevice, &r.FromPort, &r.ToDevice, &r.ToPort, &r.PresetID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}

		out = append(out, r)
	}

	return out, rows.Err()
}

func (s *Store) CreatePreset(ctx context.Context, p *domain.RoutePreset) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx, `INSERT INTO route_presets (id, name, active, created_at, updated_at) VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.Name, p.Active, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create preset: %w", err)
	}

	return nil
}

func (s *Store) ListPresets(ctx context.Context) ([]domain.RoutePreset, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, active, created_at, updated_at FROM route_presets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	defer rows.Close()

	var out []domain.RoutePreset

	for rows.Next() {
		var p domain.RoutePreset
		if err := rows.Scan(&p.ID, &p.Name, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan preset: %w", err)
		}

		out = append(out, p)
	}

	return out, rows.Err()
}

// SavePreset replaces presetID's routes with a snapshot of the current
// active patch.
func (s *Store) SavePreset(ctx context.Context, presetID string) error {
	active, err := s.ActiveRoutes(ctx)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save preset: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM routes WHERE preset_id = $1`, presetID); err != nil {
		return fmt.Errorf("save preset: clear old snapshot: %w", err)
	}

	for _, r := range active {
		if _, err := tx.Exec(ctx, `
			INSERT INTO routes (id, from_device, from_port, to_device, to_port, preset_id, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			uuid.NewString(), r.FromDevice, r.FromPort, r.ToDevice, r.ToPort, presetID, time.Now().UTC()); err != nil {
			return fmt.Errorf("save preset: snapshot route: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// RecallPreset replaces the active patch with presetID's snapshot and
// flips the active flag, deactivating whichever preset was previously
// active. Per the binding Open Question decision, this does not emit
// per-route lifecycle events — callers should emit a single
// routing_preset_recalled event after this returns.
func (s *Store) RecallPreset(ctx context.Context, presetID string) error {
	snapshot, err := s.queryRoutes(ctx, `SELECT id, from_device, from_port, to_device, to_port, preset_id, created_at FROM routes WHERE preset_id = $1`, presetID)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("recall preset: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM routes WHERE preset_id IS NULL`); err != nil {
		return fmt.Errorf("recall preset: clear active: %w", err)
	}

	for _, r := range snapshot {
		if _, err := tx.Exec(ctx, `
			INSERT INTO routes (id, from_device, from_port, to_device, to_port, preset_id, created_at)
			VALUES ($1,$2,$3,$4,$5,NULL,$6)`,
			uuid.NewString(), r.FromDevice, r.FromPort, r.ToDevice, r.ToPort, time.Now().UTC()); err != nil {
			return fmt.Errorf("recall preset: restore active: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE route_presets SET active = false, updated_at = $1`, time.Now().UTC()); err != nil {
		return fmt.Errorf("recall preset: deactivate others: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE route_presets SET active = true, updated_at = $1 WHERE id = $2`, time.Now().UTC(), presetID); err != nil {
		return fmt.Errorf("recall preset: activate: %w", err)
	}

	return tx.Commit(ctx)
}
