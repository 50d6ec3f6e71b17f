package server

import (
	"net/http"
	"strings"

	"github.com/teranos/cadence/agent"
	"github.com/teranos/cadence/sales"
)

const (
	// Default and max limits for listing queries
	defaultListLimit = 100
	maxListLimit     = 500

	// maxImportUploadBytes bounds in-memory CSV uploads
	maxImportUploadBytes = 10 << 20
)

// CreateLeadRequest is the POST /api/leads payload
type CreateLeadRequest struct {
	CompanyName  string `json:"company_name"`
	Industry     string `json:"industry,omitempty"`
	CompanySize  string `json:"company_size,omitempty"`
	ContactName  string `json:"contact_name,omitempty"`
	ContactEmail string `json:"contact_email"`
	Source       string `json:"source,omitempty"`
}

// agentRequest selects the prompt variant for one-shot qualify/email
// calls. A campaign ID beats an explicit variant: runs inside a campaign
// must use the campaign's arm or its A/B numbers are meaningless.
type agentRequest struct {
	Variant    string `json:"variant,omitempty"`
	CampaignID string `json:"campaign_id,omitempty"`
}

// QualifyResponse is the POST /api/leads/{id}/qualify result
type QualifyResponse struct {
	LeadID        string                    `json:"lead_id"`
	InteractionID string                    `json:"interaction_id"`
	Result        agent.QualificationResult `json:"result"`
}

// EmailResponse is the POST /api/leads/{id}/email result
type EmailResponse struct {
	LeadID        string            `json:"lead_id"`
	InteractionID string            `json:"interaction_id"`
	Result        agent.EmailResult `json:"result"`
}

// HandleLeads handles /api/leads
// GET: list leads with optional status/industry filters
// POST: create a validated lead
func (s *Server) HandleLeads(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListLeads(w, r)
	case http.MethodPost:
		s.handleCreateLead(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	filter := sales.LeadFilter{
		Industry: r.URL.Query().Get("industry"),
		Limit:    parseIntQueryParam(r, "limit", defaultListLimit, 1, maxListLimit),
		Offset:   parseIntQueryParam(r, "offset", 0, 0, 1<<30),
	}

	if status := r.URL.Query().Get("status"); status != "" {
		if !sales.IsValidLeadStatus(status) {
			writeError(w, http.StatusBadRequest, "Invalid status filter: "+status)
			return
		}
		filter.Status = sales.LeadStatus(status)
	}

	leads, err := s.leads.List(filter)
	if err != nil {
		handleError(w, s.logger, err, "failed to list leads")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"leads": leads,
		"count": len(leads),
	})
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	var req CreateLeadRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}

	lead := sales.NewLead(req.CompanyName, req.ContactEmail)
	lead.Industry = req.Industry
	lead.CompanySize = req.CompanySize
	lead.ContactName = req.ContactName
	lead.Source = req.Source

	validation := sales.ValidateLead(lead)
	if !validation.Valid {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "lead failed validation",
			"issues": validation.Issues,
		})
		return
	}

	if err := s.leads.Create(lead); err != nil {
		handleError(w, s.logger, err, "failed to create lead")
		return
	}

	s.logger.Infow("Lead created",
		"lead_id", shortID(lead.ID),
		"company", lead.CompanyName,
	)

	writeJSON(w, http.StatusCreated, lead)
}

// HandleLead handles /api/leads/{id} and its sub-resources:
// GET    /api/leads/{id}               lead record
// DELETE /api/leads/{id}               remove lead (interactions cascade)
// POST   /api/leads/{id}/qualify       run qualification
// POST   /api/leads/{id}/email         draft a governed outreach email
// GET    /api/leads/{id}/interactions  audit trail, newest first
func (s *Server) HandleLead(w http.ResponseWriter, r *http.Request) {
	pathParts := extractPathParts(r.URL.Path, "/api/leads/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing lead ID")
		return
	}
	leadID := pathParts[0]

	if len(pathParts) > 1 && pathParts[1] != "" {
		switch pathParts[1] {
		case "qualify":
			if !requireMethod(w, r, http.MethodPost) {
				return
			}
			s.handleQualifyLead(w, r, leadID)
		case "email":
			if !requireMethod(w, r, http.MethodPost) {
				return
			}
			s.handleEmailLead(w, r, leadID)
		case "interactions":
			if !requireMethod(w, r, http.MethodGet) {
				return
			}
			s.handleLeadInteractions(w, r, leadID)
		default:
			writeError(w, http.StatusNotFound, "Unknown lead resource: "+pathParts[1])
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		lead, err := s.leads.Get(leadID)
		if err != nil {
			handleError(w, s.logger, err, "failed to get lead")
			return
		}
		writeJSON(w, http.StatusOK, lead)
	case http.MethodDelete:
		if err := s.leads.Delete(leadID); err != nil {
			handleError(w, s.logger, err, "failed to delete lead")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"deleted": leadID})
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleQualifyLead runs one qualification pass and persists the outcome:
// the lead's score and status, plus an interaction for the audit trail.
func (s *Server) handleQualifyLead(w http.ResponseWriter, r *http.Request, leadID string) {
	lead, err := s.leads.Get(leadID)
	if err != nil {
		handleError(w, s.logger, err, "failed to get lead")
		return
	}

	variant, campaignID, ok := s.resolveVariant(w, r)
	if !ok {
		return
	}

	result := s.sdr.Qualify(r.Context(), lead, variant)

	if err := s.leads.UpdateQualification(lead.ID, result.Score, result.LeadStatus()); err != nil {
		handleError(w, s.logger, err, "failed to record qualification")
		return
	}

	interaction := result.Interaction(lead.ID, campaignID)
	if err := s.interactions.Create(interaction); err != nil {
		handleError(w, s.logger, err, "failed to record interaction")
		return
	}

	writeJSON(w, http.StatusOK, QualifyResponse{
		LeadID:        lead.ID,
		InteractionID: interaction.ID,
		Result:        result,
	})
}

// handleEmailLead drafts a governed outreach email. Drafts that fail
// governance are still returned and recorded, escalated, so a human can
// review them; nothing is sent from here.
func (s *Server) handleEmailLead(w http.ResponseWriter, r *http.Request, leadID string) {
	lead, err := s.leads.Get(leadID)
	if err != nil {
		handleError(w, s.logger, err, "failed to get lead")
		return
	}

	variant, campaignID, ok := s.resolveVariant(w, r)
	if !ok {
		return
	}

	result := s.sdr.GenerateEmail(r.Context(), lead, lead.Score, variant)

	interaction := result.Interaction(lead.ID, campaignID)
	if err := s.interactions.Create(interaction); err != nil {
		handleError(w, s.logger, err, "failed to record interaction")
		return
	}

	writeJSON(w, http.StatusOK, EmailResponse{
		LeadID:        lead.ID,
		InteractionID: interaction.ID,
		Result:        result,
	})
}

func (s *Server) handleLeadInteractions(w http.ResponseWriter, r *http.Request, leadID string) {
	limit := parseIntQueryParam(r, "limit", defaultListLimit, 1, maxListLimit)
	interactions, err := s.interactions.ListByLead(leadID, limit)
	if err != nil {
		handleError(w, s.logger, err, "failed to list interactions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"interactions": interactions,
		"count":        len(interactions),
	})
}

// resolveVariant picks the prompt variant for a one-shot agent call. A
// campaign_id in the body selects that campaign's variant; otherwise an
// explicit variant, falling back to the configured default.
func (s *Server) resolveVariant(w http.ResponseWriter, r *http.Request) (variant, campaignID string, ok bool) {
	var req agentRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &req); err != nil {
			return "", "", false
		}
	}

	if req.CampaignID != "" {
		campaign, err := s.campaigns.Get(req.CampaignID)
		if err != nil {
			handleError(w, s.logger, err, "failed to get campaign")
			return "", "", false
		}
		return campaign.Variant, campaign.ID, true
	}

	variant = req.Variant
	if variant == "" {
		variant = s.defaultVariant()
	}
	return variant, "", true
}

// defaultVariant returns the configured default prompt variant
func (s *Server) defaultVariant() string {
	if s.cfg != nil && s.cfg.Agent.DefaultVariant != "" {
		return s.cfg.Agent.DefaultVariant
	}
	return "A"
}

// HandleLeadImport handles POST /api/leads/import: either a multipart
// upload (field "file") or a JSON body naming an HTTPS URL to fetch
func (s *Server) HandleLeadImport(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		s.handleImportUpload(w, r)
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, `url is required (or upload a multipart file field "file")`)
		return
	}

	report, err := s.importer.ImportURL(r.Context(), req.URL)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Infow("URL import complete",
		"url", req.URL,
		"imported", report.Imported,
		"skipped", report.Skipped,
	)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleImportUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImportUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, `multipart field "file" is required`)
		return
	}
	defer file.Close()

	report, err := s.importer.ImportCSV(r.Context(), file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Infow("CSV import complete",
		"filename", header.Filename,
		"imported", report.Imported,
		"skipped", report.Skipped,
	)
	writeJSON(w, http.StatusOK, report)
}
