package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/passkit-server/internal/errs"
	"github.com/and161185/passkit-server/internal/model"
	"github.com/jackc/pgx/v5"
)

// PassRepo implements PassRepository using PostgreSQL.
type PassRepo struct{ db *DB }

// NewPassRepo constructs a pass repository.
func NewPassRepo(db *DB) *PassRepo { return &PassRepo{db: db} }

// FindPass selects a pass by (pass_type_identifier, serial_number).
func (r *PassRepo) FindPass(ctx context.Context, passTypeID, serial string) (*model.Pass, error) {
	const q = `
SELECT id, pass_type_identifier, serial_number, authentication_token, data, updated_at
FROM passes WHERE pass_type_identifier=$1 AND serial_number=$2`
	row := r.db.Pool.QueryRow(ctx, q, passTypeID, serial)
	var p model.Pass
	if err := row.Scan(&p.ID, &p.PassTypeID, &p.SerialNumber, &p.AuthenticationToken, &p.Data, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("find pass: %w", err)
	}
	return &p, nil
}
