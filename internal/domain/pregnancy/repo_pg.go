package pregnancy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mhr/mhr/internal/platform/db"
	"github.com/mhr/mhr/internal/platform/predictor"
	"github.com/mhr/mhr/internal/platform/webhook"
)

type repoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository {
	return &repoPG{q: q}
}

const recordCols = `id, mother_id, fields, prediction, explanation, webhook_responses, created_at, updated_at`

func (r *repoPG) scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec         Record
		fields      []byte
		prediction  []byte
		explanation *string
		responses   []byte
	)
	if err := row.Scan(&rec.ID, &rec.MotherID, &fields, &prediction, &explanation, &responses,
		&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fields, &rec.Fields); err != nil {
		return nil, fmt.Errorf("decode fields of record %s: %w", rec.ID, err)
	}
	if len(prediction) > 0 {
		res, err := predictor.ParseResult(prediction)
		if err != nil {
			return nil, fmt.Errorf("decode prediction of record %s: %w", rec.ID, err)
		}
		rec.Prediction = res
	}
	if explanation != nil {
		rec.Explanation = *explanation
	}
	if len(responses) > 0 {
		if err := json.Unmarshal(responses, &rec.WebhookResponses); err != nil {
			return nil, fmt.Errorf("decode webhook responses of record %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now

	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	var prediction []byte
	if rec.Prediction != nil {
		if prediction, err = json.Marshal(rec.Prediction); err != nil {
			return fmt.Errorf("encode prediction: %w", err)
		}
	}
	var explanation *string
	if rec.Explanation != "" {
		explanation = &rec.Explanation
	}
	responses := rec.WebhookResponses
	if responses == nil {
		responses = []webhook.Outcome{}
	}
	encodedResponses, err := json.Marshal(responses)
	if err != nil {
		return fmt.Errorf("encode webhook responses: %w", err)
	}

	_, err = r.q.Exec(ctx, `
		INSERT INTO pregnancy_records (`+recordCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		rec.ID, rec.MotherID, fields, prediction, explanation, encodedResponses, rec.CreatedAt, rec.UpdatedAt)
	return err
}

func (r *repoPG) LatestByMotherID(ctx context.Context, motherID int64) (*Record, error) {
	rec, err := r.scanRecord(r.q.QueryRow(ctx, `
		SELECT `+recordCols+` FROM pregnancy_records
		WHERE mother_id = $1 ORDER BY created_at DESC LIMIT 1`, motherID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (r *repoPG) ListByMotherID(ctx context.Context, motherID int64, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM pregnancy_records WHERE mother_id = $1`, motherID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+recordCols+` FROM pregnancy_records
		WHERE mother_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, motherID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Record
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}
