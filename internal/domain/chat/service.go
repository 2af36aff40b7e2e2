package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mhr/mhr/internal/domain/caregiver"
	"github.com/mhr/mhr/internal/domain/pregnancy"
	"github.com/mhr/mhr/internal/platform/llm"
)

// MaxQuestionLength is the longest question accepted, in characters.
const MaxQuestionLength = 500

var (
	ErrInvalidQuestion   = errors.New("valid question required (1-500 characters)")
	ErrCaregiverNotFound = errors.New("mother not found")
)

type CaregiverFinder interface {
	GetByMotherID(ctx context.Context, motherID int64) (*caregiver.Caregiver, error)
}

type RecordFinder interface {
	LatestByMotherID(ctx context.Context, motherID int64) (*pregnancy.Record, error)
}

type Advisor interface {
	Advise(ctx context.Context, systemPrompt, question string) (*llm.Advice, error)
}

type Service struct {
	caregivers CaregiverFinder
	records    RecordFinder
	advisor    Advisor
	turns      Repository
	rules      []SymptomRule
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(caregivers CaregiverFinder, records RecordFinder, advisor Advisor, turns Repository, logger zerolog.Logger) *Service {
	return &Service{
		caregivers: caregivers,
		records:    records,
		advisor:    advisor,
		turns:      turns,
		rules:      SymptomRules,
		logger:     logger,
		now:        time.Now,
	}
}

// ValidateQuestion rejects empty questions and questions over
// MaxQuestionLength characters.
func ValidateQuestion(q string) error {
	if q == "" || utf8.RuneCountInString(q) > MaxQuestionLength {
		return ErrInvalidQuestion
	}
	return nil
}

// Ask answers question using the caregiver's latest record as context and
// stores the exchange. Keywords in the question override the urgency the
// model reports.
func (s *Service) Ask(ctx context.Context, motherID int64, question string) (*llm.Advice, error) {
	if err := ValidateQuestion(question); err != nil {
		return nil, err
	}

	var (
		mother *caregiver.Caregiver
		latest *pregnancy.Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.caregivers.GetByMotherID(gctx, motherID)
		if errors.Is(err, caregiver.ErrNotFound) {
			return ErrCaregiverNotFound
		}
		if err != nil {
			return fmt.Errorf("load mother %d: %w", motherID, err)
		}
		mother = c
		return nil
	})
	g.Go(func() error {
		r, err := s.records.LatestByMotherID(gctx, motherID)
		if errors.Is(err, pregnancy.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load latest record of %d: %w", motherID, err)
		}
		latest = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	recordDate := RecordDate(latest, s.now())
	prompt := BuildSystemPrompt(BuildHealthContext(mother, latest), recordDate)

	advice, err := s.advisor.Advise(ctx, prompt, question)
	if err != nil {
		return nil, err
	}

	var recordFields map[string]interface{}
	if latest != nil {
		recordFields = latest.Fields
	}
	if label, ok := ClassifyUrgency(s.rules, question, recordFields); ok {
		advice.Urgency = label
	}
	advice.Urgency = strings.TrimSpace(advice.Urgency)
	switch {
	case advice.Urgency == "":
		advice.Urgency = Routine
	case !ValidUrgency(advice.Urgency):
		s.logger.Warn().Str("urgency", advice.Urgency).Msg("unrecognised urgency from model")
		advice.Urgency = Consult
	}
	if advice.NextSteps == nil {
		advice.NextSteps = []string{}
	}

	turn := &Turn{
		MotherID:   motherID,
		Question:   question,
		Answer:     advice.Answer,
		NextSteps:  advice.NextSteps,
		Urgency:    advice.Urgency,
		RecordDate: recordDate,
	}
	if err := s.turns.Create(ctx, turn); err != nil {
		return nil, fmt.Errorf("save chat turn: %w", err)
	}
	return advice, nil
}

// History returns the caregiver's turns, newest first.
func (s *Service) History(ctx context.Context, motherID int64, limit, offset int) ([]*Turn, int, error) {
	return s.turns.ListByMotherID(ctx, motherID, limit, offset)
}
