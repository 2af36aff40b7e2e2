package pregnancy

import (
	"context"
	"errors"
	"testing"

	"github.com/mhr/mhr/internal/platform/kv"
	"github.com/mhr/mhr/internal/platform/webhook"
)

func newKVRepo(t *testing.T) Repository {
	t.Helper()
	store, err := kv.OpenMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewRepoKV(store)
}

func TestRepoKV_LatestAndList(t *testing.T) {
	repo := newKVRepo(t)
	ctx := context.Background()

	for _, age := range []float64{25, 26, 27} {
		if err := repo.Create(ctx, &Record{MotherID: 1001, Fields: map[string]interface{}{"AGE": age}}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if err := repo.Create(ctx, &Record{MotherID: 2002, Fields: map[string]interface{}{"AGE": 40.0}}); err != nil {
		t.Fatalf("create: %v", err)
	}

	latest, err := repo.LatestByMotherID(ctx, 1001)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Fields["AGE"] != 27.0 {
		t.Errorf("expected newest record, got AGE %v", latest.Fields["AGE"])
	}

	items, total, err := repo.ListByMotherID(ctx, 1001, 2, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("expected 2 of 3, got %d of %d", len(items), total)
	}
	if items[0].Fields["AGE"] != 26.0 || items[1].Fields["AGE"] != 25.0 {
		t.Errorf("unexpected order: %v, %v", items[0].Fields, items[1].Fields)
	}
}

func TestRepoKV_RoundTripAssessment(t *testing.T) {
	repo := newKVRepo(t)
	ctx := context.Background()

	rec := &Record{
		MotherID:         1001,
		Fields:           map[string]interface{}{"FEVER": "Yes"},
		Prediction:       mustResult(`{"risk_level":"Medium","confidence":0.7}`),
		Explanation:      "Medium\n---\nmild anaemia",
		WebhookResponses: []webhook.Outcome{{Status: 200, OK: true, Body: "ok"}},
	}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.LatestByMotherID(ctx, 1001)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got.ID != rec.ID || got.Prediction.Label() != "Medium" || got.Prediction.Confidence != 0.7 {
		t.Errorf("unexpected record %+v", got)
	}
	if got.Explanation != rec.Explanation || len(got.WebhookResponses) != 1 {
		t.Errorf("assessment not preserved: %+v", got)
	}
}

func TestRepoKV_LatestNotFound(t *testing.T) {
	repo := newKVRepo(t)
	if _, err := repo.LatestByMotherID(context.Background(), 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
