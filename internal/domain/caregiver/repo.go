package caregiver

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("mother not found")
	ErrDuplicate = errors.New("mother with this id, email or mobile number already exists")
)

// Repository persists caregivers. Create reports ErrDuplicate when the mother
// id, email or mobile number is taken; GetByMotherID reports ErrNotFound.
type Repository interface {
	Create(ctx context.Context, c *Caregiver) error
	GetByMotherID(ctx context.Context, motherID int64) (*Caregiver, error)
}
