package chat

import "context"

// Repository stores conversation turns. ListByMotherID returns newest first;
// a limit of zero or less returns every turn.
type Repository interface {
	Create(ctx context.Context, t *Turn) error
	ListByMotherID(ctx context.Context, motherID int64, limit, offset int) ([]*Turn, int, error)
}
