// Package agent composes the completion oracle with the escalation and
// governance policies into the two SDR operations: qualifying a lead and
// drafting an outreach email. Neither operation can fail — an oracle that
// produces no text degrades to deterministic rule-based output, and
// malformed model text parses to defaults.
package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/cadence/ai/tracker"
	"github.com/teranos/cadence/policy"
	"github.com/teranos/cadence/sales"
)

// Generation parameters per operation
const (
	qualificationMaxTokens   = 300
	qualificationTemperature = 0.3
	emailMaxTokens           = 400
	emailTemperature         = 0.7
)

// FallbackReasoning is stamped on rule-based qualifications so downstream
// consumers can tell them apart from model-derived reasoning
const FallbackReasoning = "Rule-based qualification (LLM unavailable)"

// Oracle produces completion text for a prompt. Implementations degrade
// internally rather than failing; an empty result means the model itself
// produced no content.
type Oracle interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) string
}

// Config wires an Agent's collaborators
type Config struct {
	Oracle     Oracle
	Escalation *policy.EscalationPolicy // nil = built-in rules
	Governance *policy.GovernancePolicy // nil = built-in rules
	Logger     *zap.SugaredLogger       // nil = nop logger
}

// Agent qualifies leads and drafts outreach email through the completion
// oracle, applying escalation and governance policy to every outcome
type Agent struct {
	oracle     Oracle
	escalation *policy.EscalationPolicy
	governance *policy.GovernancePolicy
	logger     *zap.SugaredLogger
}

// New builds an Agent. The oracle is required; policies and logger fall
// back to defaults when nil.
func New(cfg Config) *Agent {
	escalation := cfg.Escalation
	if escalation == nil {
		escalation = policy.NewEscalationPolicy(nil)
	}
	governance := cfg.Governance
	if governance == nil {
		governance = policy.NewGovernancePolicy(nil)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Agent{
		oracle:     cfg.Oracle,
		escalation: escalation,
		governance: governance,
		logger:     logger,
	}
}

// QualificationResult is the outcome of one qualification pass.
// Qualified always equals (Decision == DecisionQualified); escalation is
// orthogonal — an escalated lead may still be qualified.
type QualificationResult struct {
	Qualified        bool      `json:"qualified"`
	Score            int       `json:"score"`
	Decision         Decision  `json:"decision"`
	Reasoning        string    `json:"reasoning"`
	Escalated        bool      `json:"escalated"`
	EscalationReason string    `json:"escalation_reason,omitempty"`
	Variant          string    `json:"variant"`
	Timestamp        time.Time `json:"timestamp"`
}

// EmailResult is a drafted outreach email with its governance review.
// Escalated is set when the draft failed governance; whether to withhold
// the draft is the caller's decision.
type EmailResult struct {
	EmailContent       string                   `json:"email_content"`
	GovernanceApproved bool                     `json:"governance_approved"`
	GovernanceIssues   []policy.GovernanceIssue `json:"governance_issues,omitempty"`
	Escalated          bool                     `json:"escalated"`
	Variant            string                   `json:"variant"`
	Timestamp          time.Time                `json:"timestamp"`
}

// Qualify runs one qualification pass over the lead. An empty oracle
// response selects the rule-based scoring path; otherwise the response is
// parsed and the escalation policy reviews the outcome.
func (a *Agent) Qualify(ctx context.Context, lead *sales.Lead, variant string) QualificationResult {
	variant = NormalizeVariant(variant)
	a.logger.Infow("Qualifying lead", "company", lead.CompanyName, "variant", variant)

	ctx = tracker.WithAttribution(ctx, tracker.Attribution{
		OperationType: sales.InteractionTypeQualification,
		EntityType:    "lead",
		EntityID:      lead.ID,
	})

	prompt := qualificationPrompt(variant, lead)
	response := a.oracle.Generate(ctx, prompt, qualificationMaxTokens, qualificationTemperature)

	if response == "" {
		a.logger.Warnw("Empty oracle response, falling back to rule-based qualification",
			"company", lead.CompanyName)
		return a.fallbackQualification(lead, variant)
	}

	score, decision, reasoning := ParseQualification(response)
	check := a.escalation.Check(lead, reasoning)

	a.logger.Infow("Qualification result",
		"company", lead.CompanyName, "decision", decision, "score", score, "escalated", check.Escalated)

	return QualificationResult{
		Qualified:        decision == DecisionQualified,
		Score:            score,
		Decision:         decision,
		Reasoning:        reasoning,
		Escalated:        check.Escalated,
		EscalationReason: check.Reason,
		Variant:          variant,
		Timestamp:        time.Now().UTC(),
	}
}

// GenerateEmail drafts an outreach email for a lead and reviews it against
// the governance policy. Drafts that fail review come back escalated with
// the issues attached rather than suppressed.
func (a *Agent) GenerateEmail(ctx context.Context, lead *sales.Lead, score int, variant string) EmailResult {
	variant = NormalizeVariant(variant)
	a.logger.Infow("Generating email", "company", lead.CompanyName, "variant", variant)

	ctx = tracker.WithAttribution(ctx, tracker.Attribution{
		OperationType: sales.InteractionTypeEmailGeneration,
		EntityType:    "lead",
		EntityID:      lead.ID,
	})

	prompt := emailPrompt(variant, lead, score)
	content := a.oracle.Generate(ctx, prompt, emailMaxTokens, emailTemperature)

	if content == "" {
		a.logger.Warnw("Empty oracle response, using fallback email", "company", lead.CompanyName)
		content = fallbackEmail(lead)
	}

	review := a.governance.CheckEmail(content)

	result := EmailResult{
		EmailContent:       content,
		GovernanceApproved: review.Approved,
		GovernanceIssues:   review.Issues,
		Variant:            variant,
		Timestamp:          time.Now().UTC(),
	}

	if !review.Approved {
		a.logger.Warnw("Email failed governance check",
			"company", lead.CompanyName, "issues", review.Issues)
		result.Escalated = true
	}

	return result
}

// fallbackQualification scores a lead from its firmographics alone. This
// is the "oracle produced nothing" path, distinct from the oracle's own
// canned degraded text, and it never escalates.
func (a *Agent) fallbackQualification(lead *sales.Lead, variant string) QualificationResult {
	score := 50
	if lead.CompanySize == "50-500" || lead.CompanySize == "500-2000" {
		score += 20
	}
	switch lead.Industry {
	case "SaaS", "Finance", "Healthcare", "Technology":
		score += 20
	}
	if lead.ContactName != "" && lead.ContactEmail != "" {
		score += 10
	}

	decision := DecisionDisqualified
	if score >= 60 {
		decision = DecisionQualified
	}

	return QualificationResult{
		Qualified: decision == DecisionQualified,
		Score:     score,
		Decision:  decision,
		Reasoning: FallbackReasoning,
		Variant:   variant,
		Timestamp: time.Now().UTC(),
	}
}

// fallbackEmail is the deterministic outreach draft used when the oracle
// produces no text
func fallbackEmail(lead *sales.Lead) string {
	company := orDefault(lead.CompanyName, "your company")
	name := orDefault(lead.ContactName, "there")
	industry := orDefault(lead.Industry, "your industry")

	return fmt.Sprintf(`Subject: Quick question about %s's growth

Hi %s,

I noticed %s is making moves in the %s space. We've been helping similar companies streamline their sales operations with AI-powered tools.

Would you be open to a brief 15-minute call next week to explore if this could be valuable for your team?

Best regards,
AI SDR Team`, company, name, company, industry)
}
