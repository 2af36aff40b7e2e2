package upload

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FileRecord maps to the file_records table. The uploaded bytes themselves are
// not kept; only the text decoded from them and the replies of every
// downstream call.
type FileRecord struct {
	ID                    uuid.UUID       `db:"id" json:"id"`
	MotherID              int64           `db:"mother_id" json:"motherId"`
	Filename              string          `db:"filename" json:"filename"`
	OriginalName          string          `db:"original_name" json:"originalname"`
	MimeType              string          `db:"mime_type" json:"mimetype"`
	DecodedText           string          `db:"decoded_text" json:"decodedText"`
	WebhookResponse       json.RawMessage `db:"webhook_response" json:"webhookResponse"`
	PredictionResponse    json.RawMessage `db:"prediction_response" json:"predictionResponse"`
	Explanation           string          `db:"explanation" json:"explanation"`
	UploadWebhookResponse json.RawMessage `db:"upload_webhook_response" json:"uploadWebhookResponse"`
	UploadedAt            time.Time       `db:"uploaded_at" json:"uploadedAt"`
}

// File is an uploaded document held in memory.
type File struct {
	OriginalName string
	MimeType     string
	Data         []byte
}

type parseRequest struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalname"`
	MimeType     string `json:"mimetype"`
	DecodedText  string `json:"decodedText"`
}

type uploadNotice struct {
	MotherID           int64           `json:"motherId"`
	Filename           string          `json:"filename"`
	OriginalName       string          `json:"originalname"`
	WebhookResponse    json.RawMessage `json:"webhookResponse"`
	PredictionResponse json.RawMessage `json:"predictionResponse"`
	Explanation        string          `json:"explanation"`
}

type riskAlert struct {
	MotherID     int64  `json:"motherId"`
	RiskLevel    string `json:"risk_level"`
	PatientName  string `json:"patientName"`
	AlertMessage string `json:"alertMessage"`
}
