package agent

import (
	"encoding/json"
	"strings"

	"github.com/teranos/cadence/sales"
)

// EscalationReasonGovernance is recorded when a generated email is withheld
// because it failed the governance check.
const EscalationReasonGovernance = "Email failed governance check"

// Interaction converts the result into its audit-trail record. The decision
// column stores the funnel status the result maps to, in lowercase.
func (r QualificationResult) Interaction(leadID, campaignID string) *sales.Interaction {
	interaction := sales.NewInteraction(leadID, sales.InteractionTypeQualification)
	interaction.CampaignID = campaignID
	interaction.Content = r.Reasoning
	interaction.Decision = strings.ToLower(string(r.Decision))
	interaction.Score = r.Score
	interaction.Escalated = r.Escalated
	interaction.EscalationReason = r.EscalationReason
	interaction.Variant = r.Variant
	return interaction
}

// LeadStatus returns the funnel status this qualification maps to
func (r QualificationResult) LeadStatus() sales.LeadStatus {
	if r.Qualified {
		return sales.LeadStatusQualified
	}
	return sales.LeadStatusDisqualified
}

// Interaction converts the result into its audit-trail record. Governance
// issues are JSON-encoded into the issues column.
func (r EmailResult) Interaction(leadID, campaignID string) *sales.Interaction {
	interaction := sales.NewInteraction(leadID, sales.InteractionTypeEmailGeneration)
	interaction.CampaignID = campaignID
	interaction.Content = r.EmailContent
	interaction.Escalated = r.Escalated
	interaction.GovernanceApproved = r.GovernanceApproved
	interaction.Variant = r.Variant
	if r.Escalated {
		interaction.EscalationReason = EscalationReasonGovernance
	}
	if len(r.GovernanceIssues) > 0 {
		if data, err := json.Marshal(r.GovernanceIssues); err == nil {
			interaction.GovernanceIssues = string(data)
		}
	}
	return interaction
}
