package chat

import (
	"time"

	"github.com/google/uuid"
)

// Turn maps to the chat_history table. Turns are immutable.
type Turn struct {
	ID         uuid.UUID `db:"id" json:"id"`
	MotherID   int64     `db:"mother_id" json:"motherId"`
	Question   string    `db:"question" json:"question"`
	Answer     string    `db:"answer" json:"answer"`
	NextSteps  []string  `db:"next_steps" json:"nextSteps"`
	Urgency    string    `db:"urgency" json:"urgency"`
	RecordDate string    `db:"record_date" json:"recordDate"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Request is the /chat body.
type Request struct {
	Question string `json:"question"`
}
