package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mhr/mhr/internal/platform/db"
)

type repoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository {
	return &repoPG{q: q}
}

const turnCols = `id, mother_id, question, answer, next_steps, urgency, record_date, created_at`

func (r *repoPG) scanTurn(row pgx.Row) (*Turn, error) {
	var (
		t     Turn
		steps []byte
	)
	if err := row.Scan(&t.ID, &t.MotherID, &t.Question, &t.Answer, &steps, &t.Urgency, &t.RecordDate, &t.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(steps, &t.NextSteps); err != nil {
		return nil, fmt.Errorf("decode next steps of turn %s: %w", t.ID, err)
	}
	return &t, nil
}

func (r *repoPG) Create(ctx context.Context, t *Turn) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now().UTC()
	steps := t.NextSteps
	if steps == nil {
		steps = []string{}
	}
	encoded, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("encode next steps: %w", err)
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO chat_history (`+turnCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		t.ID, t.MotherID, t.Question, t.Answer, encoded, t.Urgency, t.RecordDate, t.CreatedAt)
	return err
}

func (r *repoPG) ListByMotherID(ctx context.Context, motherID int64, limit, offset int) ([]*Turn, int, error) {
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM chat_history WHERE mother_id = $1`, motherID).Scan(&total); err != nil {
		return nil, 0, err
	}
	// LIMIT NULL means no limit
	var lim interface{}
	if limit > 0 {
		lim = limit
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+turnCols+` FROM chat_history
		WHERE mother_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, motherID, lim, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Turn
	for rows.Next() {
		t, err := r.scanTurn(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}
