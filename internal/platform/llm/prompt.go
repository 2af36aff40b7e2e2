package llm

import (
	"bytes"
	"encoding/json"
	"strings"
)

const riskPromptTemplate = `
You are a medical data assistant. Use only the provided context below to answer the question.
Do not use external knowledge or make assumptions.

Context:
Risk classification result: {risk}

Question:
Explain why the patient's pregnancy is classified as {risk} risk based on their characteristics below. Focus only on clinical reasoning and avoid general statements.

Patient characteristics:
{query}

Response must be in two parts, separated by the line '---':
1. First part: Output a single word only, one of: Low, Medium, or High.
2. Second part: Provide a clear, clinical justification for classifying the pregnancy as {risk} risk.

Format:
Low/Medium/High
---
Detailed explanation here...
`

// BuildRiskPrompt renders the explanation prompt for a risk label and the
// features the label was predicted from. Features are rendered as indented
// JSON with sorted keys so the same input always yields the same prompt.
func BuildRiskPrompt(risk string, features map[string]interface{}) string {
	prompt := strings.ReplaceAll(riskPromptTemplate, "{risk}", risk)
	return strings.Replace(prompt, "{query}", renderFeatures(features), 1)
}

func renderFeatures(features map[string]interface{}) string {
	if features == nil {
		features = map[string]interface{}{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(features); err != nil {
		return "{}"
	}
	return strings.TrimRight(buf.String(), "\n")
}
