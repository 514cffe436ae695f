package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/passkit-server/internal/errs"
	"github.com/and161185/passkit-server/internal/model"
	"github.com/gofrs/uuid/v5"
)

// RegistrationRepo implements RegistrationRepository using PostgreSQL.
type RegistrationRepo struct{ db *DB }

// NewRegistrationRepo constructs a registration repository.
func NewRegistrationRepo(db *DB) *RegistrationRepo { return &RegistrationRepo{db: db} }

// CreateIfAbsent relies on the (device_library_identifier, pass_id) unique
// constraint so concurrent registrations of the same pair store one row.
func (r *RegistrationRepo) CreateIfAbsent(ctx context.Context, reg *model.Registration) (bool, error) {
	if reg.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return false, err
		}
		reg.ID = id
	}
	const q = `
INSERT INTO registrations (id, device_library_identifier, push_token, pass_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT (device_library_identifier, pass_id) DO NOTHING`
	tag, err := r.db.Pool.Exec(ctx, q, reg.ID, reg.DeviceID, reg.PushToken, reg.PassID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, errs.ErrNotFound
		}
		return false, fmt.Errorf("create registration: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes the device's registrations for a pass.
func (r *RegistrationRepo) Delete(ctx context.Context, deviceID string, passID int64) ([]string, error) {
	const q = `
DELETE FROM registrations
WHERE device_library_identifier=$1 AND pass_id=$2
RETURNING push_token`
	rows, err := r.db.Pool.Query(ctx, q, deviceID, passID)
	if err != nil {
		return nil, fmt.Errorf("delete registrations: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var tok string
		if err = rows.Scan(&tok); err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, rows.Err()
}

// PassesForDevice returns stamps of passes of passTypeID registered to deviceID.
func (r *RegistrationRepo) PassesForDevice(ctx context.Context, deviceID, passTypeID string) ([]model.PassStamp, error) {
	const q = `
SELECT DISTINCT p.serial_number, p.updated_at
FROM passes p
JOIN registrations r ON r.pass_id = p.id
WHERE r.device_library_identifier=$1 AND p.pass_type_identifier=$2
ORDER BY p.serial_number ASC`
	rows, err := r.db.Pool.Query(ctx, q, deviceID, passTypeID)
	if err != nil {
		return nil, fmt.Errorf("passes for device: %w", err)
	}
	defer rows.Close()

	var out []model.PassStamp
	for rows.Next() {
		var (
			serial string
			ts     time.Time
		)
		if err = rows.Scan(&serial, &ts); err != nil {
			return nil, err
		}
		out = append(out, model.PassStamp{SerialNumber: serial, UpdatedAt: ts})
	}
	return out, rows.Err()
}
