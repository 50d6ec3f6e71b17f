package sales

import (
	"database/sql"
	"strings"
	"time"

	"github.com/teranos/cadence/errors"
)

// LeadStore handles persistence of leads
type LeadStore struct {
	db *sql.DB
}

// NewLeadStore creates a new lead store
func NewLeadStore(db *sql.DB) *LeadStore {
	return &LeadStore{db: db}
}

const leadSelectColumns = `id, company_name, industry, company_size, contact_name, contact_email, source, status, score, created_at, updated_at`

// Create inserts a new lead into the database
func (s *LeadStore) Create(lead *Lead) error {
	query := `
		INSERT INTO leads (
			id, company_name, industry, company_size,
			contact_name, contact_email, source,
			status, score, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		lead.ID,
		lead.CompanyName,
		nullString(lead.Industry),
		nullString(lead.CompanySize),
		nullString(lead.ContactName),
		lead.ContactEmail,
		nullString(lead.Source),
		lead.Status,
		lead.Score,
		lead.CreatedAt,
		lead.UpdatedAt,
	)

	if err != nil {
		return errors.Wrap(err, "failed to create lead")
	}

	return nil
}

// CreateBatch inserts leads inside a single transaction. On error the whole
// batch rolls back.
func (s *LeadStore) CreateBatch(leads []*Lead) error {
	if len(leads) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO leads (
			id, company_name, industry, company_size,
			contact_name, contact_email, source,
			status, score, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare insert")
	}
	defer stmt.Close()

	for _, lead := range leads {
		_, err := stmt.Exec(
			lead.ID,
			lead.CompanyName,
			nullString(lead.Industry),
			nullString(lead.CompanySize),
			nullString(lead.ContactName),
			lead.ContactEmail,
			nullString(lead.Source),
			lead.Status,
			lead.Score,
			lead.CreatedAt,
			lead.UpdatedAt,
		)
		if err != nil {
			return errors.Wrapf(err, "failed to insert lead %s", lead.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit batch")
	}

	return nil
}

// Get retrieves a lead by ID
func (s *LeadStore) Get(id string) (*Lead, error) {
	query := `SELECT ` + leadSelectColumns + ` FROM leads WHERE id = ?`

	lead, err := scanLead(s.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("lead not found: %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get lead")
	}

	return lead, nil
}

// LeadFilter narrows List results. Zero values mean "no filter"; a
// non-positive limit falls back to 100.
type LeadFilter struct {
	Status   LeadStatus
	Industry string
	Limit    int
	Offset   int
}

// List returns leads matching the filter, newest first
func (s *LeadStore) List(filter LeadFilter) ([]*Lead, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Industry != "" {
		conditions = append(conditions, "industry = ?")
		args = append(args, filter.Industry)
	}

	query := `SELECT ` + leadSelectColumns + ` FROM leads`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list leads")
	}
	defer rows.Close()

	return scanLeads(rows, "leads")
}

// ListByIDs returns the leads whose IDs are in the given set
func (s *LeadStore) ListByIDs(ids []string) ([]*Lead, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	query := `SELECT ` + leadSelectColumns + ` FROM leads WHERE id IN (` + placeholders + `) ORDER BY created_at ASC`

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list leads by IDs")
	}
	defer rows.Close()

	return scanLeads(rows, "leads by IDs")
}

// ListAll returns every lead in insertion order, for validation sweeps
func (s *LeadStore) ListAll() ([]*Lead, error) {
	query := `SELECT ` + leadSelectColumns + ` FROM leads ORDER BY created_at ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list all leads")
	}
	defer rows.Close()

	return scanLeads(rows, "all leads")
}

// UpdateQualification records a qualification outcome on the lead
func (s *LeadStore) UpdateQualification(id string, score int, status LeadStatus) error {
	query := `UPDATE leads SET score = ?, status = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.Exec(query, score, status, time.Now().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "failed to update lead qualification")
	}

	return requireRowAffected(result, "lead", id)
}

// UpdateStatus moves a lead to a new funnel status
func (s *LeadStore) UpdateStatus(id string, status LeadStatus) error {
	query := `UPDATE leads SET status = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.Exec(query, status, time.Now().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "failed to update lead status")
	}

	return requireRowAffected(result, "lead", id)
}

// Delete removes a lead and, via foreign keys, its interactions
func (s *LeadStore) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM leads WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete lead")
	}

	return requireRowAffected(result, "lead", id)
}

// Count returns the total number of leads
func (s *LeadStore) Count() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM leads`).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count leads")
	}
	return count, nil
}

// CampaignStore handles persistence of campaigns
type CampaignStore struct {
	db *sql.DB
}

// NewCampaignStore creates a new campaign store
func NewCampaignStore(db *sql.DB) *CampaignStore {
	return &CampaignStore{db: db}
}

const campaignSelectColumns = `id, name, prompt_template, variant, status, created_at, completed_at`

// Create inserts a new campaign
func (s *CampaignStore) Create(campaign *Campaign) error {
	query := `
		INSERT INTO campaigns (id, name, prompt_template, variant, status, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var completedAt sql.NullTime
	if campaign.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *campaign.CompletedAt, Valid: true}
	}

	_, err := s.db.Exec(query,
		campaign.ID,
		campaign.Name,
		nullString(campaign.PromptTemplate),
		campaign.Variant,
		campaign.Status,
		campaign.CreatedAt,
		completedAt,
	)

	if err != nil {
		return errors.Wrap(err, "failed to create campaign")
	}

	return nil
}

// Get retrieves a campaign by ID
func (s *CampaignStore) Get(id string) (*Campaign, error) {
	query := `SELECT ` + campaignSelectColumns + ` FROM campaigns WHERE id = ?`

	campaign, err := scanCampaign(s.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("campaign not found: %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get campaign")
	}

	return campaign, nil
}

// List returns campaigns, newest first
func (s *CampaignStore) List(limit int) ([]*Campaign, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + campaignSelectColumns + ` FROM campaigns ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list campaigns")
	}
	defer rows.Close()

	var campaigns []*Campaign
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan campaign")
		}
		campaigns = append(campaigns, campaign)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating campaigns")
	}

	return campaigns, nil
}

// UpdateStatus transitions a campaign. Moving to completed stamps completed_at.
func (s *CampaignStore) UpdateStatus(id string, status CampaignStatus) error {
	var result sql.Result
	var err error

	if status == CampaignStatusCompleted {
		result, err = s.db.Exec(
			`UPDATE campaigns SET status = ?, completed_at = ? WHERE id = ?`,
			status, time.Now().UTC(), id,
		)
	} else {
		result, err = s.db.Exec(`UPDATE campaigns SET status = ? WHERE id = ?`, status, id)
	}

	if err != nil {
		return errors.Wrap(err, "failed to update campaign status")
	}

	return requireRowAffected(result, "campaign", id)
}

// InteractionStore handles persistence of agent interactions
type InteractionStore struct {
	db *sql.DB
}

// NewInteractionStore creates a new interaction store
func NewInteractionStore(db *sql.DB) *InteractionStore {
	return &InteractionStore{db: db}
}

const interactionSelectColumns = `id, lead_id, campaign_id, type, content, decision, score, escalated, escalation_reason, governance_approved, governance_issues, variant, created_at`

// Create inserts a new interaction record
func (s *InteractionStore) Create(interaction *Interaction) error {
	query := `
		INSERT INTO interactions (
			id, lead_id, campaign_id, type, content, decision, score,
			escalated, escalation_reason,
			governance_approved, governance_issues,
			variant, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		interaction.ID,
		interaction.LeadID,
		nullString(interaction.CampaignID),
		interaction.Type,
		nullString(interaction.Content),
		nullString(interaction.Decision),
		interaction.Score,
		interaction.Escalated,
		nullString(interaction.EscalationReason),
		interaction.GovernanceApproved,
		nullString(interaction.GovernanceIssues),
		nullString(interaction.Variant),
		interaction.CreatedAt,
	)

	if err != nil {
		return errors.Wrap(err, "failed to create interaction")
	}

	return nil
}

// ListByLead returns a lead's interactions, newest first
func (s *InteractionStore) ListByLead(leadID string, limit int) ([]*Interaction, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + interactionSelectColumns + ` FROM interactions WHERE lead_id = ? ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.Query(query, leadID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list interactions")
	}
	defer rows.Close()

	var interactions []*Interaction
	for rows.Next() {
		interaction, err := scanInteraction(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan interaction")
		}
		interactions = append(interactions, interaction)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating interactions")
	}

	return interactions, nil
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanLead(row scanner) (*Lead, error) {
	var lead Lead
	var industry, companySize, contactName, source sql.NullString

	err := row.Scan(
		&lead.ID,
		&lead.CompanyName,
		&industry,
		&companySize,
		&contactName,
		&lead.ContactEmail,
		&source,
		&lead.Status,
		&lead.Score,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	lead.Industry = industry.String
	lead.CompanySize = companySize.String
	lead.ContactName = contactName.String
	lead.Source = source.String

	return &lead, nil
}

func scanLeads(rows *sql.Rows, context string) ([]*Lead, error) {
	var leads []*Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan lead")
		}
		leads = append(leads, lead)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "error iterating %s", context)
	}

	return leads, nil
}

func scanCampaign(row scanner) (*Campaign, error) {
	var campaign Campaign
	var promptTemplate sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&campaign.ID,
		&campaign.Name,
		&promptTemplate,
		&campaign.Variant,
		&campaign.Status,
		&campaign.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	campaign.PromptTemplate = promptTemplate.String
	if completedAt.Valid {
		campaign.CompletedAt = &completedAt.Time
	}

	return &campaign, nil
}

func scanInteraction(row scanner) (*Interaction, error) {
	var interaction Interaction
	var campaignID, content, decision, escalationReason, governanceIssues, variant sql.NullString
	var score sql.NullInt64

	err := row.Scan(
		&interaction.ID,
		&interaction.LeadID,
		&campaignID,
		&interaction.Type,
		&content,
		&decision,
		&score,
		&interaction.Escalated,
		&escalationReason,
		&interaction.GovernanceApproved,
		&governanceIssues,
		&variant,
		&interaction.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	interaction.CampaignID = campaignID.String
	interaction.Content = content.String
	interaction.Decision = decision.String
	interaction.Score = int(score.Int64)
	interaction.EscalationReason = escalationReason.String
	interaction.GovernanceIssues = governanceIssues.String
	interaction.Variant = variant.String

	return &interaction, nil
}

// nullString maps empty strings to NULL so cohort queries can rely on
// IS NOT NULL semantics
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireRowAffected(result sql.Result, entity, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.NewNotFoundError("%s not found: %s", entity, id)
	}
	return nil
}
