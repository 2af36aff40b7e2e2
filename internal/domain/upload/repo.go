package upload

import "context"

// Repository stores processed uploads. FileRecords are never updated.
type Repository interface {
	Create(ctx context.Context, f *FileRecord) error
	ListByMotherID(ctx context.Context, motherID int64, limit, offset int) ([]*FileRecord, int, error)
}
