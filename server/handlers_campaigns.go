package server

import (
	"net/http"

	"github.com/teranos/cadence/errors"
	"github.com/teranos/cadence/run"
	"github.com/teranos/cadence/sales"
)

// defaultRunLeadLimit bounds how many leads a campaign run pulls when the
// request names neither explicit lead IDs nor a limit.
const defaultRunLeadLimit = 50

// CreateCampaignRequest is the POST /api/campaigns payload
type CreateCampaignRequest struct {
	Name           string `json:"name"`
	Variant        string `json:"variant,omitempty"`
	PromptTemplate string `json:"prompt_template,omitempty"`
}

// RunCampaignRequest is the POST /api/campaigns/{id}/run payload. All
// fields are optional: an empty body runs the campaign over up to 50
// unprocessed leads.
type RunCampaignRequest struct {
	LeadIDs []string `json:"lead_ids,omitempty"`
	Status  string   `json:"status,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// HandleCampaigns handles /api/campaigns
// GET: list campaigns, newest first
// POST: create a campaign
func (s *Server) HandleCampaigns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := parseIntQueryParam(r, "limit", defaultListLimit, 1, maxListLimit)
		campaigns, err := s.campaigns.List(limit)
		if err != nil {
			handleError(w, s.logger, err, "failed to list campaigns")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"campaigns": campaigns,
			"count":     len(campaigns),
		})
	case http.MethodPost:
		var req CreateCampaignRequest
		if err := readJSON(w, r, &req); err != nil {
			return
		}
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}

		campaign := sales.NewCampaign(req.Name, req.Variant)
		campaign.PromptTemplate = req.PromptTemplate

		if err := s.campaigns.Create(campaign); err != nil {
			handleError(w, s.logger, err, "failed to create campaign")
			return
		}

		s.logger.Infow("Campaign created",
			"campaign_id", shortID(campaign.ID),
			"name", campaign.Name,
			"variant", campaign.Variant,
		)
		writeJSON(w, http.StatusCreated, campaign)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// HandleCampaign handles /api/campaigns/{id} and its sub-resources:
// GET  /api/campaigns/{id}       campaign record
// POST /api/campaigns/{id}/run   enqueue a batch run over the campaign
// GET  /api/campaigns/{id}/runs  run history, newest first
func (s *Server) HandleCampaign(w http.ResponseWriter, r *http.Request) {
	pathParts := extractPathParts(r.URL.Path, "/api/campaigns/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing campaign ID")
		return
	}
	campaignID := pathParts[0]

	if len(pathParts) > 1 && pathParts[1] != "" {
		switch pathParts[1] {
		case "run":
			if !requireMethod(w, r, http.MethodPost) {
				return
			}
			s.handleRunCampaign(w, r, campaignID)
		case "runs":
			if !requireMethod(w, r, http.MethodGet) {
				return
			}
			limit := parseIntQueryParam(r, "limit", defaultJobLimit, 1, maxJobLimit)
			jobs, err := s.queue.ListJobsByCampaign(campaignID, limit)
			if err != nil {
				handleError(w, s.logger, err, "failed to list campaign runs")
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"runs":  jobs,
				"count": len(jobs),
			})
		default:
			writeError(w, http.StatusNotFound, "Unknown campaign resource: "+pathParts[1])
		}
		return
	}

	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	campaign, err := s.campaigns.Get(campaignID)
	if err != nil {
		handleError(w, s.logger, err, "failed to get campaign")
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

// handleRunCampaign enqueues a batch qualification run. A campaign can
// have at most one queued, running, or paused run at a time; a second
// request returns the in-flight job with 409 instead of double-spending.
func (s *Server) handleRunCampaign(w http.ResponseWriter, r *http.Request, campaignID string) {
	campaign, err := s.campaigns.Get(campaignID)
	if err != nil {
		handleError(w, s.logger, err, "failed to get campaign")
		return
	}

	var req RunCampaignRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &req); err != nil {
			return
		}
	}

	existing, err := s.queue.FindActiveJobByCampaign(campaign.ID)
	if err != nil {
		handleError(w, s.logger, err, "failed to check for active runs")
		return
	}
	if existing != nil {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error": "campaign already has an active run",
			"job":   existing,
		})
		return
	}

	leadIDs, err := s.resolveRunLeads(&req)
	if err != nil {
		handleError(w, s.logger, err, "failed to select leads")
		return
	}
	if len(leadIDs) == 0 {
		writeError(w, http.StatusBadRequest, "no leads to process")
		return
	}

	var estimate float64
	if s.budget != nil {
		estimate = s.budget.EstimateRunCost(len(leadIDs))
	}

	if campaign.Status != sales.CampaignStatusActive {
		if err := s.campaigns.UpdateStatus(campaign.ID, sales.CampaignStatusActive); err != nil {
			handleError(w, s.logger, err, "failed to activate campaign")
			return
		}
	}

	job, err := run.NewJob(campaign.ID, campaign.Variant, leadIDs, estimate, "api")
	if err != nil {
		handleError(w, s.logger, err, "failed to create run")
		return
	}
	if err := s.queue.Enqueue(job); err != nil {
		handleError(w, s.logger, err, "failed to enqueue run")
		return
	}

	s.logger.Infow("Campaign run enqueued",
		"job_id", shortID(job.ID),
		"campaign_id", shortID(campaign.ID),
		"leads", len(leadIDs),
		"cost_estimate", estimate,
	)
	writeJSON(w, http.StatusAccepted, job)
}

// resolveRunLeads turns a run request into the lead IDs to process:
// explicit lead_ids verbatim, otherwise a status-filtered selection
// defaulting to unprocessed leads.
func (s *Server) resolveRunLeads(req *RunCampaignRequest) ([]string, error) {
	if len(req.LeadIDs) > 0 {
		leads, err := s.leads.ListByIDs(req.LeadIDs)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(leads))
		for _, lead := range leads {
			ids = append(ids, lead.ID)
		}
		return ids, nil
	}

	filter := sales.LeadFilter{Status: sales.LeadStatusNew, Limit: defaultRunLeadLimit}
	if req.Status != "" {
		if !sales.IsValidLeadStatus(req.Status) {
			return nil, errors.NewInvalidRequestError("invalid status filter: " + req.Status)
		}
		filter.Status = sales.LeadStatus(req.Status)
	}
	if req.Limit > 0 {
		filter.Limit = req.Limit
	}

	leads, err := s.leads.List(filter)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(leads))
	for _, lead := range leads {
		ids = append(ids, lead.ID)
	}
	return ids, nil
}
