package chat

import (
	"encoding/json"
	"strconv"
	"strings"
)

const (
	Routine   = "Routine"
	Consult   = "Consult"
	Monitor   = "Monitor"
	Urgent    = "Urgent"
	Emergency = "Emergency"
)

// severity orders the labels a symptom rule can produce.
var severity = map[string]int{
	Routine:   0,
	Consult:   1,
	Monitor:   2,
	Urgent:    3,
	Emergency: 4,
}

// ValidUrgency reports whether label may be stored on a turn.
func ValidUrgency(label string) bool {
	_, ok := severity[label]
	return ok
}

// Rule yields an urgency label for a symptom. A rule with a Field compares
// that record value against Threshold and yields Above when it is strictly
// greater, Otherwise when it is not or when the value is missing. A rule
// without a Field always yields Label.
type Rule struct {
	Label     string
	Field     string
	Threshold float64
	Above     string
	Otherwise string
}

func (r Rule) Evaluate(fields map[string]interface{}) string {
	if r.Field == "" {
		return r.Label
	}
	if v, ok := numericValue(fields[r.Field]); ok && v > r.Threshold {
		return r.Above
	}
	return r.Otherwise
}

// SymptomRule binds a keyword found in a question to a Rule.
type SymptomRule struct {
	Keyword string
	Rule    Rule
}

// SymptomRules is the keyword table applied to every question.
var SymptomRules = []SymptomRule{
	{"headache", Rule{Field: "BP", Threshold: 140, Above: Urgent, Otherwise: Routine}},
	{"bleeding", Rule{Label: Emergency}},
	{"fever", Rule{Field: "FEVER", Threshold: 100.4, Above: Emergency, Otherwise: Monitor}},
	{"pain", Rule{Label: Urgent}},
	{"vision", Rule{Label: Emergency}},
	{"discharge", Rule{Label: Urgent}},
	{"swelling", Rule{Label: Urgent}},
}

// ClassifyUrgency evaluates every rule whose keyword occurs in question and
// returns the most severe label. ok is false when no keyword matched.
func ClassifyUrgency(rules []SymptomRule, question string, fields map[string]interface{}) (label string, ok bool) {
	q := strings.ToLower(question)
	for _, sr := range rules {
		if !strings.Contains(q, sr.Keyword) {
			continue
		}
		l := sr.Rule.Evaluate(fields)
		if !ok || severity[l] > severity[label] {
			label, ok = l, true
		}
	}
	return label, ok
}

func numericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
