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

const deviceSelectSQL = `
	SELECT id, name, device_type, hardware_id, COALESCE(firmware_version, ''), COALESCE(ip_address, ''),
		location, metadata, status, last_seen, created_at, updated_at
	FROM devices`

// RegisterDevice inserts a new device, rejecting a duplicate hardware_id
// as a Conflict (§6: "409 on duplicate hardware_id").
func (s *Store) RegisterDevice(ctx context.Context, d *domain.Device) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}

	if d.Status == "" {
		d.Status = domain.DeviceOffline
	}

	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt, d.LastSeen = now, now, now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO devices (id, name, device_type, hardware_id, firmware_version, ip_address, location, metadata, status, last_seen, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		d.ID, d.Name, d.DeviceType, d.HardwareID, nullIfEmpty(d.FirmwareVersion), nullIfEmpty(d.IPAddress),
		toJSONB(d.Location), toJSONB(d.Metadata), d.Status, d.LastSeen, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflictf("device with hardware_id %q already registered", d.HardwareID)
		}

		return fmt.Errorf("register device: %w", err)
	}

	return nil
}

// Heartbeat marks a device online and bumps last_seen, looked up by
// hardware_id (the identifier the device itself knows).
func (s *Store) Heartbeat(ctx context.Context, hardwareID string) (*domain.Device, error) {
	now := time.Now().UTC()

	tag, err := s.pool.Exec(ctx, `UPDATE devices SET status = $1, last_seen = $2, updated_at = $2 WHERE hardware_id = $3`,
		domain.DeviceOnline, now, hardwareID)
	if err != nil {
		return nil, fmt.Errorf("heartbeat device: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return nil, apperr.NotFoundf("device with hardware_id %q not found", hardwareID)
	}

	row := s.pool.QueryRow(ctx, deviceSelectSQL+" WHERE hardware_id = $1", hardwareID)

	return scanDevice(row)
}

func (s *Store) GetDevice(ctx context.Context, id string) (*domain.Device, error) {
	row := s.pool.QueryRow(ctx, deviceSelectSQL+" WHERE id = $1", id)

	return scanDevice(row)
}

func (s *Store) ListDevices(ctx context.Context) ([]domain.Device, error) {
	rows, err := s.pool.Query(ctx, deviceSelectSQL+" ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var out []domain.Device

	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *d)
	}

	return out, rows.Err()
}

func (s *Store) DeleteDevice(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("device %q not found", id)
	}

	return nil
}

func scanDevice(row pgx.Row) (*domain.Device, error) {
	var (
		d        domain.Device
		location []byte
		metadata []byte
	)

	if err := row.Scan(&d.ID, &d.Name, &d.DeviceType, &d.HardwareID, &d.FirmwareVersion, &d.IPAddress,
		&location, &metadata, &d.Status, &d.LastSeen, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("device not found")
		}

		return nil, fmt.Errorf("scan device: %w", err)
	}

	_ = json.Unmarshal(location, &d.Location)
	_ = json.Unmarshal(metadata, &d.Metadata)

	return &d, nil
}
