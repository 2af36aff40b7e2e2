package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mhr/mhr/internal/domain/caregiver"
	"github.com/mhr/mhr/internal/domain/pregnancy"
	"github.com/mhr/mhr/internal/platform/llm"
	"github.com/mhr/mhr/pkg/pagination"
)

// -- Mock caregivers --

type mockCaregivers struct {
	mu    sync.Mutex
	store map[int64]*caregiver.Caregiver
	calls int
	err   error
}

func (m *mockCaregivers) GetByMotherID(_ context.Context, motherID int64) (*caregiver.Caregiver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.store[motherID]
	if !ok {
		return nil, caregiver.ErrNotFound
	}
	return c, nil
}

// -- Mock records --

type mockRecords struct {
	mu     sync.Mutex
	latest map[int64]*pregnancy.Record
	calls  int
}

func (m *mockRecords) LatestByMotherID(_ context.Context, motherID int64) (*pregnancy.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	r, ok := m.latest[motherID]
	if !ok {
		return nil, pregnancy.ErrNotFound
	}
	return r, nil
}

// -- Fake advisor --

type fakeAdvisor struct {
	advice *llm.Advice
	err    error
	calls  int
	prompt string
}

func (f *fakeAdvisor) Advise(_ context.Context, systemPrompt, _ string) (*llm.Advice, error) {
	f.calls++
	f.prompt = systemPrompt
	if f.err != nil {
		return nil, f.err
	}
	a := *f.advice
	return &a, nil
}

// -- Mock turn repository --

type mockTurnRepo struct {
	turns []*Turn
	err   error
}

func (m *mockTurnRepo) Create(_ context.Context, t *Turn) error {
	if m.err != nil {
		return m.err
	}
	t.CreatedAt = time.Now()
	m.turns = append(m.turns, t)
	return nil
}

func (m *mockTurnRepo) ListByMotherID(_ context.Context, motherID int64, limit, offset int) ([]*Turn, int, error) {
	var out []*Turn
	for i := len(m.turns) - 1; i >= 0; i-- {
		if m.turns[i].MotherID == motherID {
			out = append(out, m.turns[i])
		}
	}
	start, end := pagination.Params{Limit: limit, Offset: offset}.Window(len(out))
	return out[start:end], len(out), nil
}

type testDeps struct {
	caregivers *mockCaregivers
	records    *mockRecords
	advisor    *fakeAdvisor
	turns      *mockTurnRepo
}

func newTestService() (*Service, *testDeps) {
	d := &testDeps{
		caregivers: &mockCaregivers{store: map[int64]*caregiver.Caregiver{
			1001: {MotherID: 1001, Name: "Asha"},
		}},
		records: &mockRecords{latest: map[int64]*pregnancy.Record{}},
		advisor: &fakeAdvisor{advice: &llm.Advice{
			Answer:    "I see from your records that all is well.",
			NextSteps: []string{"Rest"},
			Urgency:   Routine,
		}},
		turns: &mockTurnRepo{},
	}
	svc := NewService(d.caregivers, d.records, d.advisor, d.turns, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC) }
	return svc, d
}

func TestService_Ask(t *testing.T) {
	svc, d := newTestService()
	d.records.latest[1001] = &pregnancy.Record{
		MotherID:  1001,
		Fields:    map[string]interface{}{"BP": 120.0},
		CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	advice, err := svc.Ask(context.Background(), 1001, "Is my blood pressure fine?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if advice.Urgency != Routine || advice.Answer == "" {
		t.Errorf("unexpected advice %+v", advice)
	}
	if !strings.Contains(d.advisor.prompt, "- Blood Pressure: 120 mmHg") {
		t.Error("prompt should embed the latest record")
	}
	if !strings.Contains(d.advisor.prompt, "based on your data from 2026-02-01") {
		t.Error("prompt should carry the record date")
	}
	if len(d.turns.turns) != 1 {
		t.Fatalf("expected one stored turn, got %d", len(d.turns.turns))
	}
	turn := d.turns.turns[0]
	if turn.MotherID != 1001 || turn.RecordDate != "2026-02-01" || turn.Question != "Is my blood pressure fine?" {
		t.Errorf("unexpected turn %+v", turn)
	}
}

func TestService_Ask_NoRecords(t *testing.T) {
	svc, d := newTestService()

	if _, err := svc.Ask(context.Background(), 1001, "Can I eat papaya?"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(d.advisor.prompt, "1. CONTEXT: No pregnancy records found") {
		t.Error("prompt should state that there are no records")
	}
	if d.turns.turns[0].RecordDate != "2026-03-09" {
		t.Errorf("expected today's date, got %s", d.turns.turns[0].RecordDate)
	}
}

func TestService_Ask_InvalidQuestion(t *testing.T) {
	tests := []struct {
		name     string
		question string
	}{
		{"empty", ""},
		{"too long", strings.Repeat("a", MaxQuestionLength+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, d := newTestService()
			_, err := svc.Ask(context.Background(), 1001, tt.question)
			if !errors.Is(err, ErrInvalidQuestion) {
				t.Fatalf("expected ErrInvalidQuestion, got %v", err)
			}
			if d.caregivers.calls != 0 || d.records.calls != 0 || d.advisor.calls != 0 {
				t.Error("no lookups should happen for an invalid question")
			}
			if len(d.turns.turns) != 0 {
				t.Error("nothing should be stored")
			}
		})
	}
}

func TestValidateQuestion_CountsCharacters(t *testing.T) {
	if err := ValidateQuestion(strings.Repeat("é", MaxQuestionLength)); err != nil {
		t.Errorf("500 characters should be accepted: %v", err)
	}
}

func TestService_Ask_UnknownCaregiver(t *testing.T) {
	svc, d := newTestService()
	_, err := svc.Ask(context.Background(), 42, "hello")
	if !errors.Is(err, ErrCaregiverNotFound) {
		t.Fatalf("expected ErrCaregiverNotFound, got %v", err)
	}
	if d.advisor.calls != 0 {
		t.Error("the model should not be consulted")
	}
}

func TestService_Ask_LookupFailure(t *testing.T) {
	svc, d := newTestService()
	d.caregivers.err = errors.New("connection refused")
	_, err := svc.Ask(context.Background(), 1001, "hello")
	if err == nil || errors.Is(err, ErrCaregiverNotFound) {
		t.Fatalf("expected a wrapped lookup error, got %v", err)
	}
}

func TestService_Ask_FormatError(t *testing.T) {
	svc, d := newTestService()
	d.advisor.err = llm.ErrResponseFormat

	_, err := svc.Ask(context.Background(), 1001, "hello")
	if !errors.Is(err, llm.ErrResponseFormat) {
		t.Fatalf("expected ErrResponseFormat, got %v", err)
	}
	if len(d.turns.turns) != 0 {
		t.Error("a failed exchange should not be stored")
	}
}

func TestService_Ask_KeywordOverridesModel(t *testing.T) {
	svc, d := newTestService()
	d.records.latest[1001] = &pregnancy.Record{Fields: map[string]interface{}{"BP": 150.0}}

	tests := []struct {
		question string
		want     string
	}{
		{"I have some bleeding", Emergency},
		{"I have a headache", Urgent},
		{"Is this fever serious?", Monitor},
		{"What should I eat?", Routine},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			advice, err := svc.Ask(context.Background(), 1001, tt.question)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if advice.Urgency != tt.want {
				t.Errorf("got %s, want %s", advice.Urgency, tt.want)
			}
			stored := d.turns.turns[len(d.turns.turns)-1]
			if stored.Urgency != tt.want {
				t.Errorf("stored %s, want %s", stored.Urgency, tt.want)
			}
		})
	}
}

func TestService_Ask_NormalizesModelUrgency(t *testing.T) {
	tests := []struct {
		name    string
		urgency string
		want    string
	}{
		{"empty", "", Routine},
		{"padded", " Urgent ", Urgent},
		{"unrecognised", "Critical", Consult},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, d := newTestService()
			d.advisor.advice = &llm.Advice{Answer: "ok", Urgency: tt.urgency}

			advice, err := svc.Ask(context.Background(), 1001, "What should I eat?")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if advice.Urgency != tt.want {
				t.Errorf("got %q, want %q", advice.Urgency, tt.want)
			}
			if advice.NextSteps == nil {
				t.Error("nextSteps should default to an empty list")
			}
		})
	}
}

func TestService_Ask_StoreFailure(t *testing.T) {
	svc, d := newTestService()
	d.turns.err = errors.New("disk full")
	if _, err := svc.Ask(context.Background(), 1001, "hello"); err == nil {
		t.Fatal("expected an error when the turn cannot be stored")
	}
}

func TestService_History(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	for _, q := range []string{"first", "second", "third"} {
		if _, err := svc.Ask(ctx, 1001, q); err != nil {
			t.Fatalf("ask: %v", err)
		}
	}

	all, total, err := svc.History(ctx, 1001, 0, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if total != 3 || len(all) != 3 || all[0].Question != "third" {
		t.Errorf("unexpected history %d/%d", len(all), total)
	}

	page, _, _ := svc.History(ctx, 1001, 1, 1)
	if len(page) != 1 || page[0].Question != "second" {
		t.Errorf("unexpected page %v", page)
	}
}
