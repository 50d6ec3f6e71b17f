package server

import (
	"net/http"

	"github.com/teranos/cadence/run"
)

const (
	defaultJobLimit = 50
	maxJobLimit     = 200
)

// runControlRequest carries the optional reason for pause and cancel
type runControlRequest struct {
	Reason string `json:"reason,omitempty"`
}

// HandleRuns handles GET /api/runs: the run ledger, newest first.
// ?status= filters to one state; ?active=true shortcuts to the queued,
// running, and paused set workers care about.
func (s *Server) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	limit := parseIntQueryParam(r, "limit", defaultJobLimit, 1, maxJobLimit)

	if r.URL.Query().Get("active") == "true" {
		jobs, err := s.queue.ListActiveJobs(limit)
		if err != nil {
			handleError(w, s.logger, err, "failed to list active runs")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"runs":  jobs,
			"count": len(jobs),
		})
		return
	}

	var status *run.JobStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		if !run.IsValidStatus(raw) {
			writeError(w, http.StatusBadRequest, "Invalid status filter: "+raw)
			return
		}
		st := run.JobStatus(raw)
		status = &st
	}

	jobs, err := s.queue.ListJobs(status, limit)
	if err != nil {
		handleError(w, s.logger, err, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  jobs,
		"count": len(jobs),
	})
}

// HandleRun handles /api/runs/{id} and its control verbs:
// GET  /api/runs/{id}         run state and progress
// POST /api/runs/{id}/pause   checkpoint at the next lead boundary
// POST /api/runs/{id}/resume  re-queue a paused run
// POST /api/runs/{id}/cancel  stop the run permanently
func (s *Server) HandleRun(w http.ResponseWriter, r *http.Request) {
	pathParts := extractPathParts(r.URL.Path, "/api/runs/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing run ID")
		return
	}
	jobID := pathParts[0]

	if len(pathParts) > 1 && pathParts[1] != "" {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		s.handleRunControl(w, r, jobID, pathParts[1])
		return
	}

	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	job, err := s.queue.GetJob(jobID)
	if err != nil {
		handleError(w, s.logger, err, "failed to get run")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleRunControl applies a pause, resume, or cancel verb and returns
// the refreshed job so the caller sees the state it just produced. A
// paused run keeps its progress; cancellation is permanent.
func (s *Server) handleRunControl(w http.ResponseWriter, r *http.Request, jobID, verb string) {
	var req runControlRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &req); err != nil {
			return
		}
	}

	var err error
	switch verb {
	case "pause":
		reason := req.Reason
		if reason == "" {
			reason = run.PauseReasonUserRequested
		}
		err = s.queue.PauseJob(jobID, reason)
	case "resume":
		err = s.queue.ResumeJob(jobID)
	case "cancel":
		reason := req.Reason
		if reason == "" {
			reason = "cancelled by user"
		}
		err = s.queue.CancelJob(jobID, reason)
	default:
		writeError(w, http.StatusNotFound, "Unknown run action: "+verb)
		return
	}
	if err != nil {
		handleError(w, s.logger, err, "failed to "+verb+" run")
		return
	}

	s.logger.Infow("Run control applied",
		"job_id", shortID(jobID),
		"action", verb,
	)

	job, err := s.queue.GetJob(jobID)
	if err != nil {
		handleError(w, s.logger, err, "failed to get run")
		return
	}
	writeJSON(w, http.StatusOK, job)
}
