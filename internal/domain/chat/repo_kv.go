package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mhr/mhr/internal/platform/kv"
)

// Turns live under turn/<motherId>/<createdAt>/<id>.
type repoKV struct{ store *kv.Store }

func NewRepoKV(store *kv.Store) Repository {
	return &repoKV{store: store}
}

func turnPrefix(motherID int64) string {
	return fmt.Sprintf("turn/%020d/", motherID)
}

func (r *repoKV) Create(_ context.Context, t *Turn) error {
	t.ID = uuid.New()
	t.CreatedAt = r.store.Now()
	if t.NextSteps == nil {
		t.NextSteps = []string{}
	}
	return r.store.Put(turnPrefix(t.MotherID)+kv.TimeKey(t.CreatedAt)+"/"+t.ID.String(), t)
}

func (r *repoKV) ListByMotherID(_ context.Context, motherID int64, limit, offset int) ([]*Turn, int, error) {
	prefix := turnPrefix(motherID)
	var items []*Turn
	err := r.store.Scan(prefix, true, offset, limit, func(value []byte) error {
		var t Turn
		if err := json.Unmarshal(value, &t); err != nil {
			return fmt.Errorf("decode turn: %w", err)
		}
		items = append(items, &t)
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
