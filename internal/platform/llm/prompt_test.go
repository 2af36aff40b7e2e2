package llm

import (
	"strings"
	"testing"
)

func TestBuildRiskPrompt_EmbedsRiskAndFeatures(t *testing.T) {
	prompt := BuildRiskPrompt("High", map[string]interface{}{
		"BP":    150,
		"AGE":   28,
		"FEVER": "Yes",
	})

	if n := strings.Count(prompt, "High risk"); n != 2 {
		t.Errorf("expected risk label in question and justification, found %d", n)
	}
	if !strings.Contains(prompt, "Risk classification result: High") {
		t.Error("expected risk label in context")
	}
	if strings.Contains(prompt, "{risk}") || strings.Contains(prompt, "{query}") {
		t.Error("expected all placeholders replaced")
	}

	want := "{\n  \"AGE\": 28,\n  \"BP\": 150,\n  \"FEVER\": \"Yes\"\n}"
	if !strings.Contains(prompt, want) {
		t.Errorf("expected indented sorted features, got:\n%s", prompt)
	}
	if !strings.Contains(prompt, "separated by the line '---'") {
		t.Error("expected separator instruction")
	}
}

func TestBuildRiskPrompt_Deterministic(t *testing.T) {
	features := map[string]interface{}{"B": 1, "A": "x", "C": []int{1, 2}}
	first := BuildRiskPrompt("Low", features)
	for i := 0; i < 10; i++ {
		if BuildRiskPrompt("Low", features) != first {
			t.Fatal("prompt changed between calls")
		}
	}
}

func TestBuildRiskPrompt_NoHTMLEscaping(t *testing.T) {
	prompt := BuildRiskPrompt("Unknown", map[string]interface{}{"NOTE": "BP < 140 & stable"})
	if !strings.Contains(prompt, `"BP < 140 & stable"`) {
		t.Errorf("expected raw characters, got:\n%s", prompt)
	}
}

func TestBuildRiskPrompt_NilFeatures(t *testing.T) {
	if !strings.Contains(BuildRiskPrompt("Unknown", nil), "Patient characteristics:\n{}") {
		t.Error("expected empty object for nil features")
	}
}
