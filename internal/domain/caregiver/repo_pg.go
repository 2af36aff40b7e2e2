package caregiver

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mhr/mhr/internal/platform/db"
)

type repoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository {
	return &repoPG{q: q}
}

const caregiverCols = `id, mother_id, name, email, mobile_number, password, confirm_password, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, c *Caregiver) error {
	c.ID = uuid.New()
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := r.q.Exec(ctx, `
		INSERT INTO mothers (`+caregiverCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		c.ID, c.MotherID, c.Name, c.Email, c.MobileNumber, c.Password, c.ConfirmPassword,
		c.CreatedAt, c.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *repoPG) GetByMotherID(ctx context.Context, motherID int64) (*Caregiver, error) {
	var c Caregiver
	err := r.q.QueryRow(ctx, `SELECT `+caregiverCols+` FROM mothers WHERE mother_id = $1`, motherID).
		Scan(&c.ID, &c.MotherID, &c.Name, &c.Email, &c.MobileNumber, &c.Password, &c.ConfirmPassword,
			&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
