package caregiver

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Caregiver maps to the mothers table. Both password columns hold the same
// bcrypt hash.
type Caregiver struct {
	ID              uuid.UUID `db:"id" json:"id"`
	MotherID        int64     `db:"mother_id" json:"motherId"`
	Name            string    `db:"name" json:"name"`
	Email           string    `db:"email" json:"email"`
	MobileNumber    string    `db:"mobile_number" json:"mobilenumber"`
	Password        string    `db:"password" json:"-"`
	ConfirmPassword string    `db:"confirm_password" json:"-"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// RegisterRequest is the /reg-mother body. motherId may arrive as a number or
// a numeric string.
type RegisterRequest struct {
	Name            string      `json:"name"`
	MotherID        json.Number `json:"motherId"`
	Email           string      `json:"email"`
	MobileNumber    string      `json:"mobilenumber"`
	Password        string      `json:"password"`
	ConfirmPassword string      `json:"conformpassword"`
}

type LoginRequest struct {
	MotherID json.Number `json:"motherId"`
	Password string      `json:"password"`
}
