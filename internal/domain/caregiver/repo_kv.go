package caregiver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mhr/mhr/internal/platform/kv"
)

// Key layout:
//
//	mother/<motherId>          document
//	mother-email/<email>       -> mother/<motherId>
//	mother-mobile/<mobile>     -> mother/<motherId>
type repoKV struct{ store *kv.Store }

func NewRepoKV(store *kv.Store) Repository {
	return &repoKV{store: store}
}

func motherKey(motherID int64) string {
	return fmt.Sprintf("mother/%020d", motherID)
}

func (r *repoKV) Create(_ context.Context, c *Caregiver) error {
	c.ID = uuid.New()
	now := r.store.Now()
	c.CreatedAt, c.UpdatedAt = now, now

	err := r.store.PutUnique(motherKey(c.MotherID), storedCaregiver(*c),
		"mother-email/"+strings.ToLower(c.Email),
		"mother-mobile/"+c.MobileNumber,
	)
	if errors.Is(err, kv.ErrConflict) {
		return ErrDuplicate
	}
	return err
}

func (r *repoKV) GetByMotherID(_ context.Context, motherID int64) (*Caregiver, error) {
	var s storedCaregiver
	if err := r.store.Get(motherKey(motherID), &s); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c := Caregiver(s)
	return &c, nil
}

// storedCaregiver keeps the hashes that the API representation hides.
type storedCaregiver struct {
	ID              uuid.UUID `json:"id"`
	MotherID        int64     `json:"motherId"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	MobileNumber    string    `json:"mobilenumber"`
	Password        string    `json:"password"`
	ConfirmPassword string    `json:"confirmPassword"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
