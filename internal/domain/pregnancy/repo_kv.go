package pregnancy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mhr/mhr/internal/platform/kv"
	"github.com/mhr/mhr/internal/platform/predictor"
	"github.com/mhr/mhr/internal/platform/webhook"
)

// Records live under record/<motherId>/<createdAt>/<id>, so a reverse scan of
// one caregiver's prefix yields newest first.
type repoKV struct{ store *kv.Store }

func NewRepoKV(store *kv.Store) Repository {
	return &repoKV{store: store}
}

type storedRecord struct {
	ID               uuid.UUID              `json:"id"`
	MotherID         int64                  `json:"motherId"`
	Fields           map[string]interface{} `json:"fields"`
	Prediction       json.RawMessage        `json:"prediction,omitempty"`
	Explanation      string                 `json:"explanation,omitempty"`
	WebhookResponses []webhook.Outcome      `json:"webhookResponses"`
	CreatedAt        time.Time              `json:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt"`
}

func recordPrefix(motherID int64) string {
	return fmt.Sprintf("record/%020d/", motherID)
}

func (r *repoKV) Create(_ context.Context, rec *Record) error {
	rec.ID = uuid.New()
	now := r.store.Now()
	rec.CreatedAt, rec.UpdatedAt = now, now

	s := storedRecord{
		ID:               rec.ID,
		MotherID:         rec.MotherID,
		Fields:           rec.Fields,
		Explanation:      rec.Explanation,
		WebhookResponses: rec.WebhookResponses,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
	if rec.Prediction != nil {
		raw, err := json.Marshal(rec.Prediction)
		if err != nil {
			return fmt.Errorf("encode prediction: %w", err)
		}
		s.Prediction = raw
	}
	key := recordPrefix(rec.MotherID) + kv.TimeKey(now) + "/" + rec.ID.String()
	return r.store.Put(key, s)
}

func (r *repoKV) LatestByMotherID(_ context.Context, motherID int64) (*Record, error) {
	items, _, err := r.list(motherID, 0, 1, false)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return items[0], nil
}

func (r *repoKV) ListByMotherID(_ context.Context, motherID int64, limit, offset int) ([]*Record, int, error) {
	return r.list(motherID, offset, limit, true)
}

func (r *repoKV) list(motherID int64, offset, limit int, withTotal bool) ([]*Record, int, error) {
	prefix := recordPrefix(motherID)
	var items []*Record
	err := r.store.Scan(prefix, true, offset, limit, func(value []byte) error {
		rec, err := decodeStored(value)
		if err != nil {
			return err
		}
		items = append(items, rec)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	total := len(items)
	if withTotal {
		if total, err = r.store.Count(prefix); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func decodeStored(value []byte) (*Record, error) {
	var s storedRecord
	if err := json.Unmarshal(value, &s); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	rec := &Record{
		ID:               s.ID,
		MotherID:         s.MotherID,
		Fields:           s.Fields,
		Explanation:      s.Explanation,
		WebhookResponses: s.WebhookResponses,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
	if len(s.Prediction) > 0 && string(s.Prediction) != "null" {
		res, err := predictor.ParseResult(s.Prediction)
		if err != nil {
			return nil, fmt.Errorf("decode prediction: %w", err)
		}
		rec.Prediction = res
	}
	return rec, nil
}
