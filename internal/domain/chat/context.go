package chat

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mhr/mhr/internal/domain/caregiver"
	"github.com/mhr/mhr/internal/domain/pregnancy"
)

const noRecords = "No pregnancy records found"

// RecordDateLayout formats the date of the record a reply is based on.
const RecordDateLayout = "2006-01-02"

// fields reads clinical values with fallbacks. Missing, empty, zero and false
// values all count as unset.
type fields map[string]interface{}

func (f fields) or(name, fallback string) string {
	if s, ok := f.value(name); ok {
		return s
	}
	return fallback
}

func (f fields) value(name string) (string, bool) {
	switch v := f[name].(type) {
	case nil:
		return "", false
	case bool:
		if !v {
			return "", false
		}
		return "true", true
	case float64:
		if v == 0 {
			return "", false
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case json.Number:
		if n, err := v.Float64(); err == nil && n == 0 {
			return "", false
		}
		return v.String(), true
	case string:
		return v, v != ""
	default:
		return fmt.Sprint(v), true
	}
}

// flag renders a numeric or Yes/No indicator as "Yes" or "No".
func (f fields) flag(name string) string {
	s, ok := f.value(name)
	if !ok || s == pregnancy.No {
		return pregnancy.No
	}
	return pregnancy.Yes
}

func (f fields) countYes(names ...string) int {
	n := 0
	for _, name := range names {
		if s, _ := f[name].(string); s == pregnancy.Yes {
			n++
		}
	}
	return n
}

// BuildHealthContext renders the caregiver's latest record as the plain-text
// summary embedded in the assistant's instructions.
func BuildHealthContext(c *caregiver.Caregiver, rec *pregnancy.Record) string {
	if rec == nil {
		return noRecords
	}
	f := fields(rec.Fields)
	var b strings.Builder

	b.WriteString("PATIENT HEALTH SUMMARY (Latest Record):\n\n")

	b.WriteString("PERSONAL PROFILE:\n")
	fmt.Fprintf(&b, "- Name: %s\n", c.Name)
	fmt.Fprintf(&b, "- Age: %s years\n", f.or("AGE", "Not recorded"))
	fmt.Fprintf(&b, "- Height: %s cm\n", f.or("HEIGHT", "Not recorded"))
	fmt.Fprintf(&b, "- Weight: %s kg\n", f.or("WEIGHT", "Not recorded"))
	fmt.Fprintf(&b, "- Blood Group: %s\n", f.or("BLOOD_GRP", "Not recorded"))
	fmt.Fprintf(&b, "- Husband's Blood Group: %s\n", f.or("HUSBAND_BLOOD_GROUP", "Not recorded"))
	fmt.Fprintf(&b, "- Gestation: %s weeks\n\n", f.or("NO_OF_WEEKS", "Unknown"))

	b.WriteString("PREGNANCY HISTORY:\n")
	fmt.Fprintf(&b, "- Gravida: %s\n", f.or("GRAVIDA", "Not recorded"))
	fmt.Fprintf(&b, "- Parity: %s\n", f.or("PARITY", "Not recorded"))
	fmt.Fprintf(&b, "- Abortions: %s\n", f.or("ABORTIONS", "None recorded"))
	fmt.Fprintf(&b, "- Live Births: %s\n", f.or("LIVE", "None recorded"))
	fmt.Fprintf(&b, "- Previous Abortion: %s\n", f.or("PREVIOUS_ABORTION", "No"))
	fmt.Fprintf(&b, "- Twin Pregnancy: %s\n\n", f.or("TWIN_PREGNANCY", "No"))

	b.WriteString("VITAL SIGNS:\n")
	fmt.Fprintf(&b, "- Blood Pressure: %s mmHg\n", f.or("BP", "Not recorded"))
	fmt.Fprintf(&b, "- Hemoglobin: %s g/dL\n", f.or("HEMOGLOBIN", "Not recorded"))
	fmt.Fprintf(&b, "- Blood Sugar: %s mg/dL\n", f.or("BLOOD_SUGAR", "Not recorded"))
	fmt.Fprintf(&b, "- Fever: %s °F\n", f.or("FEVER", "Not recorded"))
	fmt.Fprintf(&b, "- Pulse Rate: %s bpm\n", f.or("PULSE_RATE", "Not recorded"))
	fmt.Fprintf(&b, "- Respiratory Rate: %s breaths/min\n\n", f.or("RESPIRATORY_RATE", "Not recorded"))

	b.WriteString("HEALTH CONDITIONS:\n")
	fmt.Fprintf(&b, "- Gestational Diabetes: %s\n", f.or("GESTANTIONAL_DIA", "No"))
	fmt.Fprintf(&b, "- Oedema: %s (%s)\n", f.or("OEDEMA", "No"), f.or("OEDEMA_TYPE", "None"))
	fmt.Fprintf(&b, "- Urine Albumin: %s\n", f.or("URINE_ALBUMIN", "Not detected"))
	fmt.Fprintf(&b, "- Thyroid Issues: %s\n", f.or("THYROID", "No"))
	fmt.Fprintf(&b, "- RH Negative: %s\n", f.or("RH_NEGATIVE", "No"))
	fmt.Fprintf(&b, "- HIV Status: %s\n", f.or("HIV_RESULT", "Not tested"))
	fmt.Fprintf(&b, "- Hepatitis Result: %s\n\n", f.or("HEP_RESULT", "Not tested"))

	b.WriteString("SYMPTOMS & WARNINGS:\n")
	if s, ok := f.value("WARNING_SIGNS_SYMPTOMS_HTN"); ok && s != pregnancy.No {
		fmt.Fprintf(&b, "- Current Symptom: %s\n", s)
	}
	if s, ok := f.value("ANY_COMPLAINTS_BLEEDING_OR_ABNORMAL_DISCHARGE"); ok && s != pregnancy.No {
		fmt.Fprintf(&b, "- Abnormal Discharge: %s\n", s)
	}
	fmt.Fprintf(&b, "- Known Epileptic: %s\n", f.flag("KNOWN_EPILEPTIC"))
	fmt.Fprintf(&b, "- Convulsion/Seizures: %s\n\n", f.flag("CONVULSION_SEIZURES"))

	b.WriteString("MEDICATIONS & SUPPLEMENTS:\n")
	fmt.Fprintf(&b, "- IFA Tablets: %s (%s taken)\n", f.or("IFA_TABLET", "None"), f.or("IFA_QUANTITY", "0"))
	fmt.Fprintf(&b, "- Iron Sucrose Injection: %s\n", f.or("IRON_SUCROSE_INJ", "No"))
	fmt.Fprintf(&b, "- Calcium: %s\n", f.or("CALCIUM", "No"))
	fmt.Fprintf(&b, "- Folic Acid: %s mg\n\n", f.or("FOLIC_ACID", "Not recorded"))

	b.WriteString("MENTAL HEALTH:\n")
	if s, _ := f["SCREENED_FOR_MENTAL_HEALTH"].(string); s == pregnancy.Yes {
		fmt.Fprintf(&b, "- PHQ Score: %s\n", f.or("PHQ_SCORE", "Not recorded"))
		fmt.Fprintf(&b, "- GAD Score: %s\n", f.or("GAD_SCORE", "Not recorded"))
		fmt.Fprintf(&b, "- Recommended Actions: %s, %s\n", f.or("PHQ_ACTION", "None"), f.or("GAD_ACTION", "None"))
	} else {
		b.WriteString("- Not screened for mental health\n")
	}
	b.WriteString("\n")

	if rec.Prediction != nil {
		explanation := rec.Explanation
		if explanation == "" {
			explanation = "No detailed explanation"
		}
		b.WriteString("RISK ASSESSMENT:\n")
		fmt.Fprintf(&b, "- Risk Level: %s\n", rec.Prediction.Label())
		fmt.Fprintf(&b, "- Confidence: %d%%\n", int(math.Round(rec.Prediction.Confidence*100)))
		fmt.Fprintf(&b, "- Explanation: %s\n\n", explanation)
	}

	b.WriteString("ANTENATAL CARE:\n")
	fmt.Fprintf(&b, "- ANC Visits Completed: %d/4\n", f.countYes("ANC1FLG", "ANC2FLG", "ANC3FLG", "ANC4FLG"))
	fmt.Fprintf(&b, "- Missed Visits: %d/4\n\n", f.countYes("MISSANC1FLG", "MISSANC2FLG", "MISSANC3FLG", "MISSANC4FLG"))

	return b.String()
}

// RecordDate is the date shown to the model as the age of its data: the
// record's creation date, or today when there is no record.
func RecordDate(rec *pregnancy.Record, now time.Time) string {
	if rec != nil && !rec.CreatedAt.IsZero() {
		return rec.CreatedAt.Format(RecordDateLayout)
	}
	return now.Format(RecordDateLayout)
}

// BuildSystemPrompt wraps the health context in the assistant's instructions.
func BuildSystemPrompt(healthContext, recordDate string) string {
	return `You are a friendly, knowledgeable pregnancy health assistant. Follow these guidelines:
1. CONTEXT: ` + healthContext + `
2. RESPONSE STYLE:
   - Use simple, warm language: "I see from your records..."
   - Emojis are welcome where appropriate
   - Explain medical terms in plain language
3. DATA HANDLING:
   - Answer directly about any health record values
   - Compare values to normal ranges when relevant
   - If data is missing, say "Your records don't show..."
4. TRUST PRACTICES:
   - Reference records: "According to your latest checkup..."
   - Clarify limits: "This is based on your data from ` + recordDate + `"
   - Always remind: "Confirm with your healthcare provider"
5. FOR SYMPTOMS:
   - BP > 140 = Urgent
   - Fever > 100.4°F = Emergency
   - Headache + vision changes = Emergency
6. OUTPUT JSON: {
     "answer": "Full friendly response",
     "nextSteps": ["Step 1", "Step 2"],
     "urgency": "Routine|Urgent|Emergency"
   }`
}
