package agent

import (
	"strings"
	"testing"

	"github.com/teranos/cadence/sales"
)

func TestNormalizeVariant(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"A", VariantA},
		{"B", VariantB},
		{"", VariantA},
		{"C", VariantA},
		{"b", VariantA}, // variant matching is case-sensitive
	}

	for _, tt := range tests {
		if got := NormalizeVariant(tt.in); got != tt.want {
			t.Errorf("NormalizeVariant(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func testLead() *sales.Lead {
	return &sales.Lead{
		ID:           "lead-1",
		CompanyName:  "Acme Corp",
		Industry:     "SaaS",
		CompanySize:  "50-500",
		ContactName:  "Jane Smith",
		ContactEmail: "jane@acme.com",
	}
}

func TestQualificationPrompt_VariantA(t *testing.T) {
	prompt := qualificationPrompt(VariantA, testLead())

	for _, want := range []string{
		"You are an AI Sales Development Representative",
		"- Company: Acme Corp",
		"- Industry: SaaS",
		"- Company Size: 50-500",
		"- Contact: Jane Smith (jane@acme.com)",
		"Recommendation: [QUALIFIED/DISQUALIFIED]",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("variant A prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "{{") {
		t.Errorf("variant A prompt has unrendered placeholders:\n%s", prompt)
	}
}

func TestQualificationPrompt_VariantB(t *testing.T) {
	prompt := qualificationPrompt(VariantB, testLead())

	for _, want := range []string{
		"As an AI SDR, assess this sales lead",
		"Contact: Jane Smith <jane@acme.com>",
		"✓ Company size 50+ employees",
		"Decision: QUALIFIED/DISQUALIFIED",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("variant B prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "{{") {
		t.Errorf("variant B prompt has unrendered placeholders:\n%s", prompt)
	}
}

// TestQualificationPrompt_SentinelDefaults verifies missing lead fields
// render as sentinels instead of holes
func TestQualificationPrompt_SentinelDefaults(t *testing.T) {
	prompt := qualificationPrompt(VariantA, &sales.Lead{})

	for _, want := range []string{
		"- Company: Unknown",
		"- Industry: Unknown",
		"- Company Size: Unknown",
		"- Contact: Unknown (unknown@example.com)",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing sentinel %q", want)
		}
	}
}

func TestEmailPrompt_VariantA(t *testing.T) {
	prompt := emailPrompt(VariantA, testLead(), 85)

	for _, want := range []string{
		"Generate a professional, personalized sales outreach email.",
		"- Company: Acme Corp",
		"- Contact: Jane Smith",
		"- Qualification Score: 85",
		"Include subject line",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("variant A email prompt missing %q", want)
		}
	}
}

func TestEmailPrompt_VariantB(t *testing.T) {
	prompt := emailPrompt(VariantB, testLead(), 85)

	for _, want := range []string{
		"Create a compelling sales email",
		"Contact Person: Jane Smith",
		"Fit Score: 85/100",
		"Write the complete email:",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("variant B email prompt missing %q", want)
		}
	}
}

func TestEmailPrompt_Defaults(t *testing.T) {
	prompt := emailPrompt(VariantA, &sales.Lead{}, 70)

	// Email prompts greet an anonymous contact as "there", unlike
	// qualification prompts
	for _, want := range []string{
		"- Company: Unknown",
		"- Industry: Unknown",
		"- Contact: there",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("email prompt missing default %q", want)
		}
	}
}
