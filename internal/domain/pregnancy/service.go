package pregnancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mhr/mhr/internal/platform/events"
	"github.com/mhr/mhr/internal/platform/llm"
	"github.com/mhr/mhr/internal/platform/predictor"
	"github.com/mhr/mhr/internal/platform/webhook"
)

var ErrMissingIdentity = errors.New("mother id missing in token")

type Predictor interface {
	Predict(ctx context.Context, features interface{}) (*predictor.Result, error)
}

type Explainer interface {
	Explain(ctx context.Context, risk string, features map[string]interface{}) (string, error)
}

type Notifier interface {
	FanOut(ctx context.Context, targets []string, payload interface{}) []webhook.Outcome
}

// Deps wires the collaborators of a Service. Passthrough serves the
// standalone /predict endpoint and may point at a different scoring
// deployment than Predictor.
type Deps struct {
	Records     Repository
	Predictor   Predictor
	Passthrough Predictor
	Explainer   Explainer
	Notifier    Notifier
	Targets     []string
	Events      events.Publisher
	Logger      zerolog.Logger
}

type Service struct {
	records     Repository
	predictor   Predictor
	passthrough Predictor
	explainer   Explainer
	notifier    Notifier
	targets     []string
	events      events.Publisher
	logger      zerolog.Logger
}

func NewService(d Deps) *Service {
	s := &Service{
		records:     d.Records,
		predictor:   d.Predictor,
		passthrough: d.Passthrough,
		explainer:   d.Explainer,
		notifier:    d.Notifier,
		targets:     d.Targets,
		events:      d.Events,
		logger:      d.Logger,
	}
	if s.passthrough == nil {
		s.passthrough = s.predictor
	}
	if s.events == nil {
		s.events = events.NopPublisher{}
	}
	return s
}

// CreateRecord stores a record without scoring it.
func (s *Service) CreateRecord(ctx context.Context, motherID int64, body map[string]interface{}) (*Record, error) {
	if motherID <= 0 {
		return nil, ErrMissingIdentity
	}
	fields, err := ValidateFields(stripReserved(Normalize(body)))
	if err != nil {
		return nil, err
	}
	rec := &Record{MotherID: motherID, Fields: fields}
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("save record: %w", err)
	}
	return rec, nil
}

// SaveAndPredict scores the submitted fields, explains the score, notifies
// the configured targets and stores the result. A predictor failure is
// returned unchanged and nothing is stored; explanation and notification
// failures are recorded in the result instead.
func (s *Service) SaveAndPredict(ctx context.Context, motherID int64, body map[string]interface{}) (*Assessment, error) {
	if motherID <= 0 {
		return nil, ErrMissingIdentity
	}
	log := s.logger.With().Int64("caregiver_id", motherID).Logger()

	features := stripReserved(Normalize(body))

	result, err := s.predictor.Predict(ctx, features)
	if err != nil {
		log.Warn().Err(err).Msg("risk prediction failed")
		return nil, err
	}
	risk := result.Label()

	explanation, err := s.explainer.Explain(ctx, risk, features)
	if err != nil {
		log.Error().Err(err).Str("risk_level", risk).Msg("explanation failed")
		explanation = llm.ExplanationFailed
	}

	outcomes := s.notifier.FanOut(ctx, s.targets, AlertPayload{
		RiskLabel:   risk,
		Explanation: explanation,
		PatientData: features,
		MotherID:    motherID,
		Source:      AlertSource,
	})
	if outcomes == nil {
		outcomes = []webhook.Outcome{}
	}

	rec := &Record{
		MotherID:         motherID,
		Fields:           features,
		Prediction:       result,
		Explanation:      explanation,
		WebhookResponses: outcomes,
	}
	if err := s.records.Create(ctx, rec); err != nil {
		log.Error().Err(err).Msg("save assessed record failed")
		return nil, fmt.Errorf("save record: %w", err)
	}

	evt := events.NewAssessmentEvent(events.TypeAssessmentCompleted, motherID, rec.ID.String(), risk)
	evt.Confidence = result.Confidence
	evt.Source = AlertSource
	if err := s.events.Publish(ctx, evt); err != nil {
		log.Warn().Err(err).Str("record_id", rec.ID.String()).Msg("assessment event not published")
	}

	return &Assessment{
		Record:           rec,
		Prediction:       result,
		Explanation:      explanation,
		WebhookResponses: outcomes,
	}, nil
}

// Predict forwards input to the scoring service as submitted.
func (s *Service) Predict(ctx context.Context, input map[string]interface{}) (*predictor.Result, error) {
	return s.passthrough.Predict(ctx, input)
}

func (s *Service) LatestRecord(ctx context.Context, motherID int64) (*Record, error) {
	return s.records.LatestByMotherID(ctx, motherID)
}

func (s *Service) ListRecords(ctx context.Context, motherID int64, limit, offset int) ([]*Record, int, error) {
	return s.records.ListByMotherID(ctx, motherID, limit, offset)
}
