package caregiver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/mhr/mhr/internal/platform/auth"
)

// HashCost is the bcrypt work factor for stored passwords.
const HashCost = 10

var (
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid registration")
)

// TokenIssuer signs the credential returned by Login.
type TokenIssuer interface {
	Issue(id auth.Identity) (string, error)
}

type Service struct {
	repo   Repository
	tokens TokenIssuer
	logger zerolog.Logger
	cost   int
}

func NewService(repo Repository, tokens TokenIssuer, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, logger: logger, cost: HashCost}
}

// Register creates a caregiver. The password and its confirmation must match;
// the single resulting hash is stored in both columns.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Caregiver, error) {
	if req.Password != req.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}

	motherID, err := ParseMotherID(req.MotherID.String())
	if err != nil {
		return nil, err
	}
	var missing []string
	if strings.TrimSpace(req.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(req.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(req.MobileNumber) == "" {
		missing = append(missing, "mobilenumber")
	}
	if req.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s required", ErrInvalidInput, strings.Join(missing, ", "))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	c := &Caregiver{
		MotherID:        motherID,
		Name:            strings.TrimSpace(req.Name),
		Email:           strings.TrimSpace(req.Email),
		MobileNumber:    strings.TrimSpace(req.MobileNumber),
		Password:        string(hash),
		ConfirmPassword: string(hash),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create mother %d: %w", motherID, err)
	}
	s.logger.Info().Int64("caregiver_id", motherID).Msg("caregiver registered")
	return c, nil
}

// Login checks the password for motherID and returns a signed credential.
func (s *Service) Login(ctx context.Context, motherID int64, password string) (string, error) {
	c, err := s.repo.GetByMotherID(ctx, motherID)
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.Password), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.tokens.Issue(auth.Identity{
		InternalID: c.ID.String(),
		Email:      c.Email,
		Name:       c.Name,
		MotherID:   c.MotherID,
	})
}

func (s *Service) Get(ctx context.Context, motherID int64) (*Caregiver, error) {
	return s.repo.GetByMotherID(ctx, motherID)
}

// ParseMotherID accepts a positive integer, optionally written with a zero
// fraction ("1001.0").
func ParseMotherID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: motherId required", ErrInvalidInput)
	}
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
		return id, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 || f != float64(int64(f)) {
		return 0, fmt.Errorf("%w: motherId must be a positive integer", ErrInvalidInput)
	}
	return int64(f), nil
}
