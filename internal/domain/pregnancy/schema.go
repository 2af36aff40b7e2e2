package pregnancy

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

const (
	Yes = "Yes"
	No  = "No"
)

// Normalize returns a copy of body with every boolean replaced by "Yes" or
// "No". Other values pass through unchanged.
func Normalize(body map[string]interface{}) map[string]interface{} {
	return lo.MapValues(body, func(v interface{}, _ string) interface{} {
		if b, ok := v.(bool); ok {
			if b {
				return Yes
			}
			return No
		}
		return v
	})
}

// reservedKeys are record metadata a client may not set through the body.
var reservedKeys = []string{
	"id", "_id", "motherId", "prediction", "explanation", "webhookResponses", "createdAt", "updatedAt",
}

// stripReserved drops reservedKeys in place and returns fields.
func stripReserved(fields map[string]interface{}) map[string]interface{} {
	for _, k := range reservedKeys {
		delete(fields, k)
	}
	return fields
}

type fieldKind int

const (
	numberField fieldKind = iota
	enumField
)

type fieldSpec struct {
	kind   fieldKind
	values []string
}

func number() fieldSpec                { return fieldSpec{kind: numberField} }
func oneOf(values ...string) fieldSpec { return fieldSpec{kind: enumField, values: values} }

var yesNo = oneOf(No, Yes)

var mentalHealthAction = oneOf("Give counselling", No, "Psychiatrist for treatment")

// fieldSchema is the set of known clinical fields. Fields outside it are kept
// as submitted.
var fieldSchema = map[string]fieldSpec{
	"AGE":    number(),
	"HEIGHT": number(),
	"WEIGHT": number(),

	"BLOOD_GRP": oneOf(" ", "-1", "-1.0", "0", "0.0", "1", "1.0", "2", "2.0", "3", "3.0", "4", "4.0",
		"5", "5.0", "6", "6.0", "7", "7.0", "8", "8.0", "9", "9.0"),
	"HUSBAND_BLOOD_GROUP": oneOf("1.0", "2.0", "3.0", "4.0", "5.0", "6.0", "7.0", "8.0", "9.0", No),

	"GRAVIDA":           oneOf("G", "G1", "G10", "G12", "G2", "G3", "G4", "G5", "G6", "G7", "G8", "G9"),
	"PARITY":            oneOf("-1", "P", "P0", "P00", "P1", "P2", "P3", "P4", "P5", "P6", "P7", "P8", "P9"),
	"ABORTIONS":         oneOf("A", "A0", "A00", "A1", "A2", "A3", "A4", "A5", "A6", "A7", "A8", "A9"),
	"PREVIOUS_ABORTION": yesNo,
	"LIVE":              oneOf("L", "L0", "L00", "L1", "L2", "L3", "L4", "L5", "L6", "L7", "L8", "L9", "P2"),
	"DEATH":             oneOf("-1", "D", "D0", "D00", "D1", "D2", "D3", "D4", "D5", "D6"),

	"KNOWN_EPILEPTIC":     number(),
	"TWIN_PREGNANCY":      yesNo,
	"GESTANTIONAL_DIA":    oneOf("0", No, Yes),
	"CONVULSION_SEIZURES": number(),

	"BP":               number(),
	"BP1":              number(),
	"HEMOGLOBIN":       number(),
	"PULSE_RATE":       number(),
	"RESPIRATORY_RATE": number(),
	"HEART_RATE":       number(),
	"FEVER":            number(),

	"OEDEMA":      yesNo,
	"OEDEMA_TYPE": oneOf(No, "Non-dependent oedema (Facial puffiness, abdominal oedema, vulval oedema)", "Pedal Oedema"),

	"UTERUS_SIZE":   number(),
	"URINE_SUGAR":   yesNo,
	"URINE_ALBUMIN": yesNo,
	"THYROID":       yesNo,
	"RH_NEGATIVE":   yesNo,
	"SYPHYLIS":      yesNo,
	"HIV":           yesNo,
	"HIV_RESULT":    yesNo,
	"HEP_RESULT":    oneOf("Negative", "Positive"),

	"BLOOD_SUGAR":  number(),
	"OGTT_2_HOURS": number(),

	"WARNING_SIGNS_SYMPTOMS_HTN": oneOf("Blurring of vision", "Decreased urine output", "Epigastric pain",
		"Headache", No, "Vomitting"),
	"ANY_COMPLAINTS_BLEEDING_OR_ABNORMAL_DISCHARGE": oneOf("Bleeding", No),

	"IFA_TABLET":       oneOf(" ", No, "YES", Yes),
	"IFA_QUANTITY":     number(),
	"IRON_SUCROSE_INJ": yesNo,
	"CALCIUM":          yesNo,
	"FOLIC_ACID":       number(),

	"SCREENED_FOR_MENTAL_HEALTH": yesNo,
	"PHQ_SCORE":                  number(),
	"GAD_SCORE":                  number(),
	"PHQ_ACTION":                 mentalHealthAction,
	"GAD_ACTION":                 mentalHealthAction,

	"ANC1FLG":     yesNo,
	"ANC2FLG":     yesNo,
	"ANC3FLG":     yesNo,
	"ANC4FLG":     yesNo,
	"MISSANC1FLG": yesNo,
	"MISSANC2FLG": yesNo,
	"MISSANC3FLG": yesNo,
	"MISSANC4FLG": yesNo,

	"NO_OF_WEEKS": number(),

	"DELIVERY_MODE": oneOf("-1", "C- Section", "C-Section", "LSCS", "Noraml", "Normal"),
	"PLACE_OF_DELIVERY": oneOf("-1", "C-Section", "Govt", "Home", "Live", "Other Govt", "Other State",
		"Private", "Transit", "govt"),

	"IS_PREV_PREG":  oneOf(No, "Private", Yes),
	"CONSANGUINITY": yesNo,
}

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed the schema.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := lo.Map(e.Fields, func(f FieldError, _ int) string {
		return f.Field + ": " + f.Message
	})
	return "record validation failed: " + strings.Join(parts, "; ")
}

// ValidateFields checks normalized fields against the schema and returns a
// copy with numeric strings converted to numbers and enumerated numbers
// converted to strings. Numeric fields also accept "Yes"/"No", the stored
// form of a boolean.
func ValidateFields(fields map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(fields))
	var errs []FieldError

	for name, value := range fields {
		spec, known := fieldSchema[name]
		if !known || value == nil {
			out[name] = value
			continue
		}
		var (
			coerced interface{}
			msg     string
		)
		switch spec.kind {
		case numberField:
			coerced, msg = castNumber(value)
		case enumField:
			coerced, msg = castEnum(value, spec.values)
		}
		if msg != "" {
			errs = append(errs, FieldError{Field: name, Message: msg})
			continue
		}
		out[name] = coerced
	}

	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
		return nil, &ValidationError{Fields: errs}
	}
	return out, nil
}

func castNumber(v interface{}) (interface{}, string) {
	switch n := v.(type) {
	case float64:
		return n, ""
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Sprintf("%q is not a number", n.String())
		}
		return f, ""
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil, ""
		}
		if s == Yes || s == No {
			return s, ""
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Sprintf("%q is not a number", n)
		}
		return f, ""
	default:
		return nil, fmt.Sprintf("expected a number, got %T", v)
	}
}

func castEnum(v interface{}, allowed []string) (interface{}, string) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		s = x.String()
	default:
		return nil, fmt.Sprintf("expected a string, got %T", v)
	}
	if !lo.Contains(allowed, s) {
		return nil, fmt.Sprintf("%q is not a valid value", s)
	}
	return s, ""
}
