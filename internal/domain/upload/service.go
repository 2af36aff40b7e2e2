package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mhr/mhr/internal/platform/events"
	"github.com/mhr/mhr/internal/platform/extract"
	"github.com/mhr/mhr/internal/platform/llm"
	"github.com/mhr/mhr/internal/platform/predictor"
)

// Placeholders stored in place of text or replies that could not be obtained.
const (
	TextUnsupported   = "Unsupported file type for decoding."
	TextPDFFailed     = "Error extracting PDF text"
	TextImageFailed   = "Error extracting text from image"
	ExplanationMissed = "Prediction data missing or incomplete, explanation not generated."

	parseFailed  = "Webhook call failed"
	noticeFailed = "Upload webhook call failed"
	predictError = "Prediction failed"

	unknownPatient = "Unknown"
)

var ErrMissingIdentity = errors.New("mother id missing in token")

type Decoder interface {
	Decode(mimeType string, data []byte) (string, extract.Kind, error)
}

type Poster interface {
	PostJSON(ctx context.Context, target string, payload interface{}) (json.RawMessage, error)
}

type Predictor interface {
	Predict(ctx context.Context, features interface{}) (*predictor.Result, error)
}

type Explainer interface {
	Explain(ctx context.Context, risk string, features map[string]interface{}) (string, error)
}

// Targets are the single-recipient webhooks of the pipeline. An empty target
// fails its step like an unreachable one.
type Targets struct {
	Parse     string
	Upload    string
	RiskAlert string
}

type Deps struct {
	Files     Repository
	Decoder   Decoder
	Poster    Poster
	Predictor Predictor
	Explainer Explainer
	Targets   Targets
	Events    events.Publisher
	Logger    zerolog.Logger
}

type Service struct {
	files     Repository
	decoder   Decoder
	poster    Poster
	predictor Predictor
	explainer Explainer
	targets   Targets
	events    events.Publisher
	logger    zerolog.Logger
}

func NewService(d Deps) *Service {
	s := &Service{
		files:     d.Files,
		decoder:   d.Decoder,
		poster:    d.Poster,
		predictor: d.Predictor,
		explainer: d.Explainer,
		targets:   d.Targets,
		events:    d.Events,
		logger:    d.Logger,
	}
	if s.events == nil {
		s.events = events.NopPublisher{}
	}
	return s
}

func errorBody(msg string) json.RawMessage {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return b
}

// Process runs an uploaded report through decode, parse, predict, explain and
// notify, then stores what every step returned. Only a storage failure fails
// the call; every other step records its failure in the FileRecord.
func (s *Service) Process(ctx context.Context, motherID int64, file File) (*FileRecord, error) {
	if motherID <= 0 {
		return nil, ErrMissingIdentity
	}
	log := s.logger.With().Int64("caregiver_id", motherID).Str("mime_type", file.MimeType).Logger()

	rec := &FileRecord{
		MotherID:     motherID,
		Filename:     uuid.NewString(),
		OriginalName: file.OriginalName,
		MimeType:     file.MimeType,
	}
	rec.DecodedText = s.decode(log, file)

	parsed, err := s.poster.PostJSON(ctx, s.targets.Parse, parseRequest{
		Filename:     rec.Filename,
		OriginalName: rec.OriginalName,
		MimeType:     rec.MimeType,
		DecodedText:  rec.DecodedText,
	})
	if err != nil {
		log.Warn().Err(err).Msg("parse webhook failed")
		parsed = errorBody(parseFailed)
	}
	rec.WebhookResponse = parsed

	var risk string
	result, err := s.predictor.Predict(ctx, parsed)
	if err != nil {
		log.Warn().Err(err).Msg("upload prediction failed")
		rec.PredictionResponse, _ = json.Marshal(map[string]string{"error": predictError, "details": err.Error()})
	} else {
		if rec.PredictionResponse, err = json.Marshal(result); err != nil {
			return nil, fmt.Errorf("encode prediction: %w", err)
		}
		risk = result.RiskLevel
	}

	rec.Explanation = ExplanationMissed
	if risk != "" {
		explanation, err := s.explainer.Explain(ctx, risk, patientData(parsed))
		if err != nil {
			log.Error().Err(err).Str("risk_level", risk).Msg("explanation failed")
			explanation = llm.ExplanationFailed
		}
		rec.Explanation = explanation
	}

	rec.UploadWebhookResponse = s.notify(ctx, log, rec, risk)

	if err := s.files.Create(ctx, rec); err != nil {
		log.Error().Err(err).Msg("save upload failed")
		return nil, fmt.Errorf("save upload: %w", err)
	}

	if risk != "" {
		evt := events.NewAssessmentEvent(events.TypeUploadAssessed, motherID, rec.ID.String(), risk)
		evt.Confidence = result.Confidence
		evt.Source = "upload"
		if err := s.events.Publish(ctx, evt); err != nil {
			log.Warn().Err(err).Str("upload_id", rec.ID.String()).Msg("upload event not published")
		}
	}
	return rec, nil
}

func (s *Service) decode(log zerolog.Logger, file File) string {
	text, kind, err := s.decoder.Decode(file.MimeType, file.Data)
	if err == nil {
		return text
	}
	switch {
	case errors.Is(err, extract.ErrUnsupported):
		return TextUnsupported
	case kind == extract.KindPDF:
		log.Warn().Err(err).Msg("pdf extraction failed")
		return TextPDFFailed
	default:
		log.Warn().Err(err).Msg("ocr failed")
		return TextImageFailed
	}
}

// notify posts the upload notice and, when a risk level is known, the risk
// alert. Either failure replaces the notice reply with an error body.
func (s *Service) notify(ctx context.Context, log zerolog.Logger, rec *FileRecord, risk string) json.RawMessage {
	reply, err := s.poster.PostJSON(ctx, s.targets.Upload, uploadNotice{
		MotherID:           rec.MotherID,
		Filename:           rec.Filename,
		OriginalName:       rec.OriginalName,
		WebhookResponse:    rec.WebhookResponse,
		PredictionResponse: rec.PredictionResponse,
		Explanation:        rec.Explanation,
	})
	if err == nil && risk != "" {
		_, err = s.poster.PostJSON(ctx, s.targets.RiskAlert, riskAlert{
			MotherID:     rec.MotherID,
			RiskLevel:    risk,
			PatientName:  patientName(rec.WebhookResponse),
			AlertMessage: "Risk level identified: " + risk,
		})
	}
	if err != nil {
		log.Warn().Err(err).Msg("upload webhook failed")
		return errorBody(noticeFailed)
	}
	return reply
}

// patientData is the parsed report as explanation input. A reply that is not
// a JSON object is passed under a single key.
func patientData(parsed json.RawMessage) map[string]interface{} {
	var m map[string]interface{}
	if err := json.Unmarshal(parsed, &m); err == nil && m != nil {
		return m
	}
	var v interface{}
	_ = json.Unmarshal(parsed, &v)
	return map[string]interface{}{"report": v}
}

func patientName(parsed json.RawMessage) string {
	var p struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(parsed, &p); err != nil || p.Name == "" {
		return unknownPatient
	}
	return p.Name
}

func (s *Service) List(ctx context.Context, motherID int64, limit, offset int) ([]*FileRecord, int, error) {
	return s.files.ListByMotherID(ctx, motherID, limit, offset)
}
