package pregnancy

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("pregnancy record not found")

// Repository stores records append-only. LatestByMotherID reports ErrNotFound
// when the caregiver has no records; ListByMotherID returns newest first.
type Repository interface {
	Create(ctx context.Context, r *Record) error
	LatestByMotherID(ctx context.Context, motherID int64) (*Record, error)
	ListByMotherID(ctx context.Context, motherID int64, limit, offset int) ([]*Record, int, error)
}
