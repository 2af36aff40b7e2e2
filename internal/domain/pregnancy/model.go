package pregnancy

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mhr/mhr/internal/platform/predictor"
	"github.com/mhr/mhr/internal/platform/webhook"
)

// Record maps to the pregnancy_records table. Fields holds the submitted
// clinical values keyed by their upper-case names; it is written once and
// never updated.
type Record struct {
	ID               uuid.UUID
	MotherID         int64
	Fields           map[string]interface{}
	Prediction       *predictor.Result
	Explanation      string
	WebhookResponses []webhook.Outcome
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// MarshalJSON flattens the clinical fields next to the record metadata, the
// shape clients of /post-record and /save-and-predict consume.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Fields)+7)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["id"] = r.ID
	out["motherId"] = r.MotherID
	if r.Prediction != nil {
		out["prediction"] = r.Prediction
	}
	if r.Explanation != "" {
		out["explanation"] = r.Explanation
	}
	responses := r.WebhookResponses
	if responses == nil {
		responses = []webhook.Outcome{}
	}
	out["webhookResponses"] = responses
	out["createdAt"] = r.CreatedAt
	out["updatedAt"] = r.UpdatedAt
	return json.Marshal(out)
}

// Assessment is the outcome of one save-and-predict run.
type Assessment struct {
	Record           *Record           `json:"record"`
	Prediction       *predictor.Result `json:"prediction"`
	Explanation      string            `json:"explanation"`
	WebhookResponses []webhook.Outcome `json:"webhookResponses"`
}

// AlertPayload is posted to every notification target after a prediction.
type AlertPayload struct {
	RiskLabel   string                 `json:"riskLabel"`
	Explanation string                 `json:"explanation"`
	PatientData map[string]interface{} `json:"patientData"`
	MotherID    int64                  `json:"motherId"`
	Source      string                 `json:"source"`
}

// AlertSource tags payloads and events produced by save-and-predict.
const AlertSource = "predict-api"
