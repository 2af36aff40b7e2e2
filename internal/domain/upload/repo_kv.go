package upload

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mhr/mhr/internal/platform/kv"
)

// Uploads live under upload/<motherId>/<uploadedAt>/<id>.
type repoKV struct{ store *kv.Store }

func NewRepoKV(store *kv.Store) Repository {
	return &repoKV{store: store}
}

func filePrefix(motherID int64) string {
	return fmt.Sprintf("upload/%020d/", motherID)
}

func (r *repoKV) Create(_ context.Context, f *FileRecord) error {
	f.ID = uuid.New()
	f.UploadedAt = r.store.Now()
	return r.store.Put(filePrefix(f.MotherID)+kv.TimeKey(f.UploadedAt)+"/"+f.ID.String(), f)
}

func (r *repoKV) ListByMotherID(_ context.Context, motherID int64, limit, offset int) ([]*FileRecord, int, error) {
	prefix := filePrefix(motherID)
	var items []*FileRecord
	err := r.store.Scan(prefix, true, offset, limit, func(value []byte) error {
		var f FileRecord
		if err := json.Unmarshal(value, &f); err != nil {
			return fmt.Errorf("decode upload: %w", err)
		}
		items = append(items, &f)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	total, err := r.store.Count(prefix)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
