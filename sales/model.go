// Package sales provides the lead, campaign, and interaction domain model
// with SQLite persistence, CSV import, and validation tooling.
package sales

import (
	"time"

	"github.com/google/uuid"
)

// LeadStatus represents where a lead sits in the outreach funnel
type LeadStatus string

const (
	LeadStatusNew              LeadStatus = "new"
	LeadStatusQualified        LeadStatus = "qualified"
	LeadStatusDisqualified     LeadStatus = "disqualified"
	LeadStatusContacted        LeadStatus = "contacted"
	LeadStatusReplied          LeadStatus = "replied"
	LeadStatusMeetingScheduled LeadStatus = "meeting_scheduled"
)

// IsValidLeadStatus returns true if the status string is a valid LeadStatus
func IsValidLeadStatus(s string) bool {
	switch LeadStatus(s) {
	case LeadStatusNew, LeadStatusQualified, LeadStatusDisqualified,
		LeadStatusContacted, LeadStatusReplied, LeadStatusMeetingScheduled:
		return true
	default:
		return false
	}
}

// Lead represents a prospective customer record
type Lead struct {
	ID           string     `json:"id"`
	CompanyName  string     `json:"company_name"`
	Industry     string     `json:"industry,omitempty"`
	CompanySize  string     `json:"company_size,omitempty"` // "1-50", "50-500", "500-2000", "2000+"
	ContactName  string     `json:"contact_name,omitempty"`
	ContactEmail string     `json:"contact_email"`
	Source       string     `json:"source,omitempty"` // "csv_import", "api", "manual"
	Status       LeadStatus `json:"status"`
	Score        int        `json:"score"` // 0-100
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewLead creates a lead in the "new" status with a generated ID
func NewLead(companyName, contactEmail string) *Lead {
	now := time.Now().UTC()
	return &Lead{
		ID:           uuid.NewString(),
		CompanyName:  companyName,
		ContactEmail: contactEmail,
		Status:       LeadStatusNew,
		Score:        0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// CampaignStatus represents the lifecycle state of a campaign
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
)

// IsValidCampaignStatus returns true if the status string is a valid CampaignStatus
func IsValidCampaignStatus(s string) bool {
	switch CampaignStatus(s) {
	case CampaignStatusDraft, CampaignStatusActive, CampaignStatusPaused, CampaignStatusCompleted:
		return true
	default:
		return false
	}
}

// Campaign represents a batch outreach run over a set of leads
type Campaign struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	PromptTemplate string         `json:"prompt_template,omitempty"`
	Variant        string         `json:"variant"` // "A" or "B"
	Status         CampaignStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// NewCampaign creates a draft campaign. An empty variant defaults to "A".
func NewCampaign(name, variant string) *Campaign {
	if variant == "" {
		variant = "A"
	}
	return &Campaign{
		ID:        uuid.NewString(),
		Name:      name,
		Variant:   variant,
		Status:    CampaignStatusDraft,
		CreatedAt: time.Now().UTC(),
	}
}

// Interaction types recorded against leads
const (
	InteractionTypeQualification   = "qualification"
	InteractionTypeEmailGeneration = "email_generation"
)

// Interaction represents one AI touch on a lead: a qualification pass or a
// generated outreach email, along with the governance outcome
type Interaction struct {
	ID                 string    `json:"id"`
	LeadID             string    `json:"lead_id"`
	CampaignID         string    `json:"campaign_id,omitempty"` // empty for one-shot interactions
	Type               string    `json:"type"`                  // "qualification", "email_generation"
	Content            string    `json:"content,omitempty"`
	Decision           string    `json:"decision,omitempty"` // "qualified", "disqualified"
	Score              int       `json:"score,omitempty"`
	Escalated          bool      `json:"escalated"`
	EscalationReason   string    `json:"escalation_reason,omitempty"`
	GovernanceApproved bool      `json:"governance_approved"`
	GovernanceIssues   string    `json:"governance_issues,omitempty"` // JSON-encoded issue list
	Variant            string    `json:"variant,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// NewInteraction creates an interaction record with a generated ID
func NewInteraction(leadID, interactionType string) *Interaction {
	return &Interaction{
		ID:                 uuid.NewString(),
		LeadID:             leadID,
		Type:               interactionType,
		GovernanceApproved: true,
		CreatedAt:          time.Now().UTC(),
	}
}
