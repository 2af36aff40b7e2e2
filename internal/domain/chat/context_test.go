package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/mhr/mhr/internal/domain/caregiver"
	"github.com/mhr/mhr/internal/domain/pregnancy"
	"github.com/mhr/mhr/internal/platform/predictor"
)

func testCaregiver() *caregiver.Caregiver {
	return &caregiver.Caregiver{MotherID: 1001, Name: "Asha"}
}

func TestBuildHealthContext_NoRecord(t *testing.T) {
	if got := BuildHealthContext(testCaregiver(), nil); got != "No pregnancy records found" {
		t.Errorf("unexpected context %q", got)
	}
}

func TestBuildHealthContext_Defaults(t *testing.T) {
	got := BuildHealthContext(testCaregiver(), &pregnancy.Record{Fields: map[string]interface{}{}})

	wantLines := []string{
		"PATIENT HEALTH SUMMARY (Latest Record):",
		"- Name: Asha",
		"- Age: Not recorded years",
		"- Gestation: Unknown weeks",
		"- Abortions: None recorded",
		"- Previous Abortion: No",
		"- Oedema: No (None)",
		"- Urine Albumin: Not detected",
		"- HIV Status: Not tested",
		"- Known Epileptic: No",
		"- IFA Tablets: None (0 taken)",
		"- Not screened for mental health",
		"- ANC Visits Completed: 0/4",
		"- Missed Visits: 0/4",
	}
	for _, l := range wantLines {
		if !strings.Contains(got, l+"\n") {
			t.Errorf("missing line %q in:\n%s", l, got)
		}
	}
	for _, absent := range []string{"Current Symptom", "Abnormal Discharge", "RISK ASSESSMENT"} {
		if strings.Contains(got, absent) {
			t.Errorf("unexpected %q in context", absent)
		}
	}
}

func TestBuildHealthContext_FullRecord(t *testing.T) {
	rec := &pregnancy.Record{
		Fields: map[string]interface{}{
			"AGE":                        28.0,
			"BP":                         150.0,
			"FEVER":                      99.5,
			"WARNING_SIGNS_SYMPTOMS_HTN": "Headache",
			"ANY_COMPLAINTS_BLEEDING_OR_ABNORMAL_DISCHARGE": "No",
			"KNOWN_EPILEPTIC":            1.0,
			"CONVULSION_SEIZURES":        0.0,
			"IFA_TABLET":                 "Yes",
			"IFA_QUANTITY":               30.0,
			"SCREENED_FOR_MENTAL_HEALTH": "Yes",
			"PHQ_SCORE":                  6.0,
			"PHQ_ACTION":                 "Give counselling",
			"ANC1FLG":                    "Yes",
			"ANC2FLG":                    "Yes",
			"ANC3FLG":                    "No",
			"MISSANC4FLG":                "Yes",
		},
		Prediction:  &predictor.Result{RiskLevel: "High", Confidence: 0.876},
		Explanation: "High\n---\nHypertension.",
	}
	got := BuildHealthContext(testCaregiver(), rec)

	wantLines := []string{
		"- Age: 28 years",
		"- Blood Pressure: 150 mmHg",
		"- Fever: 99.5 °F",
		"- Current Symptom: Headache",
		"- Known Epileptic: Yes",
		"- Convulsion/Seizures: No",
		"- IFA Tablets: Yes (30 taken)",
		"- PHQ Score: 6",
		"- GAD Score: Not recorded",
		"- Recommended Actions: Give counselling, None",
		"RISK ASSESSMENT:",
		"- Risk Level: High",
		"- Confidence: 88%",
		"- ANC Visits Completed: 2/4",
		"- Missed Visits: 1/4",
	}
	for _, l := range wantLines {
		if !strings.Contains(got, l+"\n") {
			t.Errorf("missing line %q in:\n%s", l, got)
		}
	}
	if strings.Contains(got, "Abnormal Discharge") {
		t.Error("discharge line should be omitted when the answer is No")
	}
	if !strings.HasSuffix(got, "- Missed Visits: 1/4\n\n") {
		t.Error("context should end with the antenatal care section")
	}
}

func TestBuildHealthContext_Deterministic(t *testing.T) {
	rec := &pregnancy.Record{Fields: map[string]interface{}{"AGE": 30.0, "BP": 120.0, "OEDEMA": "Yes"}}
	first := BuildHealthContext(testCaregiver(), rec)
	for i := 0; i < 10; i++ {
		if BuildHealthContext(testCaregiver(), rec) != first {
			t.Fatal("context must not vary between calls")
		}
	}
}

func TestRecordDate(t *testing.T) {
	now := time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC)
	if got := RecordDate(nil, now); got != "2026-03-09" {
		t.Errorf("expected today, got %s", got)
	}
	rec := &pregnancy.Record{CreatedAt: time.Date(2025, 12, 1, 8, 0, 0, 0, time.UTC)}
	if got := RecordDate(rec, now); got != "2025-12-01" {
		t.Errorf("expected record date, got %s", got)
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	p := BuildSystemPrompt("CTX-BLOCK", "2025-12-01")
	for _, want := range []string{
		"You are a friendly, knowledgeable pregnancy health assistant.",
		"1. CONTEXT: CTX-BLOCK",
		"This is based on your data from 2025-12-01",
		"Fever > 100.4°F = Emergency",
		`"urgency": "Routine|Urgent|Emergency"`,
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
