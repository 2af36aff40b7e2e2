package upload

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mhr/mhr/internal/platform/db"
)

type repoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository {
	return &repoPG{q: q}
}

const fileCols = `id, mother_id, filename, original_name, mime_type, decoded_text,
	webhook_response, prediction_response, explanation, upload_webhook_response, uploaded_at`

// jsonb columns take nil for SQL NULL.
func nullable(raw []byte) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func (r *repoPG) Create(ctx context.Context, f *FileRecord) error {
	f.ID = uuid.New()
	f.UploadedAt = time.Now().UTC()
	_, err := r.q.Exec(ctx, `
		INSERT INTO file_records (`+fileCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		f.ID, f.MotherID, f.Filename, f.OriginalName, f.MimeType, f.DecodedText,
		nullable(f.WebhookResponse), nullable(f.PredictionResponse), f.Explanation,
		nullable(f.UploadWebhookResponse), f.UploadedAt)
	return err
}

func (r *repoPG) scanFile(row pgx.Row) (*FileRecord, error) {
	var (
		f                          FileRecord
		parsed, prediction, notice []byte
		explanation                *string
	)
	if err := row.Scan(&f.ID, &f.MotherID, &f.Filename, &f.OriginalName, &f.MimeType, &f.DecodedText,
		&parsed, &prediction, &explanation, &notice, &f.UploadedAt); err != nil {
		return nil, err
	}
	f.WebhookResponse = parsed
	f.PredictionResponse = prediction
	f.UploadWebhookResponse = notice
	if explanation != nil {
		f.Explanation = *explanation
	}
	return &f, nil
}

func (r *repoPG) ListByMotherID(ctx context.Context, motherID int64, limit, offset int) ([]*FileRecord, int, error) {
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM file_records WHERE mother_id = $1`, motherID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+fileCols+` FROM file_records
		WHERE mother_id = $1 ORDER BY uploaded_at DESC LIMIT $2 OFFSET $3`, motherID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*FileRecord
	for rows.Next() {
		f, err := r.scanFile(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, f)
	}
	return items, total, rows.Err()
}
