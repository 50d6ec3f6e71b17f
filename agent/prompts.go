package agent

import (
	"strconv"
	"strings"

	"github.com/teranos/cadence/sales"
)

// Prompt variants for A/B testing
const (
	VariantA = "A"
	VariantB = "B"
)

// NormalizeVariant maps a requested variant onto a known one. Anything
// other than "B" selects "A".
func NormalizeVariant(variant string) string {
	if variant == VariantB {
		return VariantB
	}
	return VariantA
}

const qualificationPromptA = `You are an AI Sales Development Representative evaluating a lead.

Lead Information:
- Company: {{company_name}}
- Industry: {{industry}}
- Company Size: {{company_size}}
- Contact: {{contact_name}} ({{contact_email}})

Your task:
1. Evaluate if this lead is qualified based on:
   - Company size (prefer 50-500 or 500-2000 employees)
   - Industry fit (SaaS, Finance, Healthcare are good fits)
   - Contact information completeness
2. Assign a qualification score (0-100)
3. Provide a brief recommendation (QUALIFIED or DISQUALIFIED)

Response format:
Score: [0-100]
Recommendation: [QUALIFIED/DISQUALIFIED]
Reasoning: [Brief explanation]
`

const qualificationPromptB = `As an AI SDR, assess this sales lead for qualification.

Lead Details:
Company: {{company_name}}
Industry: {{industry}}
Size: {{company_size}}
Contact: {{contact_name}} <{{contact_email}}>

Qualification Criteria:
✓ Company size 50+ employees (higher priority for 50-2000)
✓ Industry alignment (SaaS, Tech, Finance, Healthcare)
✓ Complete contact information
✓ No obvious disqualifiers

Provide:
1. Qualification score (0-100)
2. Clear QUALIFIED or DISQUALIFIED decision
3. Key reasoning points

Format:
Score: XX
Decision: QUALIFIED/DISQUALIFIED
Reasoning: [explanation]
`

const emailPromptA = `Generate a professional, personalized sales outreach email.

Lead Context:
- Company: {{company_name}}
- Industry: {{industry}}
- Contact: {{contact_name}}
- Qualification Score: {{score}}

Requirements:
- Professional but friendly tone
- Personalize based on industry
- Clear value proposition
- Specific call-to-action
- Keep under 150 words
- Include subject line

Generate the email now:
`

const emailPromptB = `Create a compelling sales email for this qualified lead.

Company: {{company_name}}
Industry: {{industry}}
Contact Person: {{contact_name}}
Fit Score: {{score}}/100

Email Guidelines:
1. Catchy subject line
2. Personal greeting
3. Relevant industry insight
4. Clear value proposition
5. Soft call-to-action (request for brief call)
6. Professional close

Write the complete email:
`

// qualificationPrompt renders the variant-selected qualification template.
// Missing lead fields render as sentinel values rather than holes.
func qualificationPrompt(variant string, lead *sales.Lead) string {
	tmpl := qualificationPromptA
	if variant == VariantB {
		tmpl = qualificationPromptB
	}
	return renderPrompt(tmpl, map[string]string{
		"company_name":  orDefault(lead.CompanyName, "Unknown"),
		"industry":      orDefault(lead.Industry, "Unknown"),
		"company_size":  orDefault(lead.CompanySize, "Unknown"),
		"contact_name":  orDefault(lead.ContactName, "Unknown"),
		"contact_email": orDefault(lead.ContactEmail, "unknown@example.com"),
	})
}

// emailPrompt renders the variant-selected outreach template
func emailPrompt(variant string, lead *sales.Lead, score int) string {
	tmpl := emailPromptA
	if variant == VariantB {
		tmpl = emailPromptB
	}
	return renderPrompt(tmpl, map[string]string{
		"company_name": orDefault(lead.CompanyName, "Unknown"),
		"industry":     orDefault(lead.Industry, "Unknown"),
		"contact_name": orDefault(lead.ContactName, "there"),
		"score":        strconv.Itoa(score),
	})
}

// renderPrompt substitutes {{field}} placeholders with their values
func renderPrompt(tmpl string, fields map[string]string) string {
	pairs := make([]string, 0, len(fields)*2)
	for name, value := range fields {
		pairs = append(pairs, "{{"+name+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
