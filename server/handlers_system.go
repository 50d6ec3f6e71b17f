package server

import (
	"net/http"
	"time"

	"github.com/teranos/cadence/version"
)

// BudgetUpdateRequest is the PATCH /api/budget payload. Only positive
// fields are applied.
type BudgetUpdateRequest struct {
	Daily   float64 `json:"daily,omitempty"`
	Weekly  float64 `json:"weekly,omitempty"`
	Monthly float64 `json:"monthly,omitempty"`
}

// HandleDashboard handles GET /api/dashboard/{report}:
// stats        headline pipeline numbers
// performance  per-day qualification outcomes (?days, default 30)
// abtest       prompt variant comparison with significance test
// funnel       status-by-status conversion
// cohorts      weekly cohorts by lead creation date
// validation   data quality sweep over the lead table
func (s *Server) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	pathParts := extractPathParts(r.URL.Path, "/api/dashboard/")
	report := ""
	if len(pathParts) > 0 {
		report = pathParts[0]
	}

	var payload interface{}
	var err error

	switch report {
	case "stats":
		payload, err = s.analytics.Dashboard()
	case "performance":
		days := parseIntQueryParam(r, "days", 30, 1, 365)
		payload, err = s.analytics.Performance(days)
	case "abtest":
		payload, err = s.analytics.ABTestResults()
	case "funnel":
		payload, err = s.analytics.Funnel()
	case "cohorts":
		payload, err = s.analytics.Cohorts()
	case "validation":
		payload, err = s.analytics.ValidationSuite()
	default:
		writeError(w, http.StatusNotFound, "Unknown dashboard report: "+report)
		return
	}
	if err != nil {
		handleError(w, s.logger, err, "failed to compute "+report+" report")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// HandleUsage handles GET /api/usage: oracle call, token, and cost
// totals for the trailing window (?hours, default 24) with a per-model
// breakdown
func (s *Server) HandleUsage(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	hours := parseIntQueryParam(r, "hours", 24, 1, 24*90)
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	stats, err := s.usage.GetUsageStats(since)
	if err != nil {
		handleError(w, s.logger, err, "failed to get usage stats")
		return
	}
	models, err := s.usage.GetModelBreakdown(since)
	if err != nil {
		handleError(w, s.logger, err, "failed to get model breakdown")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"hours":  hours,
		"stats":  stats,
		"models": models,
	})
}

// HandleUsageTimeSeries handles GET /api/usage/timeseries: daily usage
// points for charting (?days, default 7)
func (s *Server) HandleUsageTimeSeries(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	days := parseIntQueryParam(r, "days", 7, 1, 90)
	points, err := s.usage.GetTimeSeriesData(days)
	if err != nil {
		handleError(w, s.logger, err, "failed to get usage time series")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"days":   days,
		"points": points,
	})
}

// HandleBudget handles /api/budget
// GET: current spend against each window plus the configured limits
// PATCH: update limits; only positive fields are applied, and workers
// see the new limits on their next budget check
func (s *Server) HandleBudget(w http.ResponseWriter, r *http.Request) {
	if !requireMethods(w, r, http.MethodGet, http.MethodPatch) {
		return
	}
	if s.budget == nil {
		writeError(w, http.StatusServiceUnavailable, "budget tracking is not enabled")
		return
	}

	if r.Method == http.MethodPatch {
		var req BudgetUpdateRequest
		if err := readJSON(w, r, &req); err != nil {
			return
		}
		if req.Daily <= 0 && req.Weekly <= 0 && req.Monthly <= 0 {
			writeError(w, http.StatusBadRequest, "at least one positive budget value is required")
			return
		}

		if req.Daily > 0 {
			if err := s.budget.UpdateDailyBudget(req.Daily); err != nil {
				handleError(w, s.logger, err, "failed to update daily budget")
				return
			}
		}
		if req.Weekly > 0 {
			if err := s.budget.UpdateWeeklyBudget(req.Weekly); err != nil {
				handleError(w, s.logger, err, "failed to update weekly budget")
				return
			}
		}
		if req.Monthly > 0 {
			if err := s.budget.UpdateMonthlyBudget(req.Monthly); err != nil {
				handleError(w, s.logger, err, "failed to update monthly budget")
				return
			}
		}

		s.logger.Infow("Budget limits updated",
			"daily", req.Daily,
			"weekly", req.Weekly,
			"monthly", req.Monthly,
		)
		s.broadcastStatus(true)
	}

	status, err := s.budget.GetStatus()
	if err != nil {
		handleError(w, s.logger, err, "failed to get budget status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": status,
		"limits": s.budget.GetBudgetLimits(),
	})
}

// HandleStatus handles GET /api/status: the same snapshot the websocket
// broadcasts, plus host resource usage
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	status := s.currentStatus()
	if status == nil {
		writeError(w, http.StatusServiceUnavailable, "status unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": status,
		"system": s.pool.GetSystemMetrics(),
	})
}

// HandleConfig handles GET /api/config: the active configuration with
// credentials reduced to a configured flag
func (s *Server) HandleConfig(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	cfg := s.cfg
	if cfg == nil {
		writeError(w, http.StatusServiceUnavailable, "configuration unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"database": map[string]interface{}{
			"path": cfg.GetDatabasePath(),
		},
		"server": map[string]interface{}{
			"port":            cfg.GetServerPort(),
			"allowed_origins": cfg.GetServerAllowedOrigins(),
		},
		"run": map[string]interface{}{
			"workers":                  cfg.Run.Workers,
			"pause_on_budget_exceeded": cfg.Run.PauseOnBudgetExceeded,
			"daily_budget_usd":         cfg.Run.DailyBudgetUSD,
			"weekly_budget_usd":        cfg.Run.WeeklyBudgetUSD,
			"monthly_budget_usd":       cfg.Run.MonthlyBudgetUSD,
			"cost_per_lead_usd":        cfg.Run.CostPerLeadUSD,
		},
		"huggingface": map[string]interface{}{
			"model":           cfg.HuggingFace.Model,
			"base_url":        cfg.HuggingFace.BaseURL,
			"timeout_seconds": cfg.HuggingFace.TimeoutSeconds,
			"max_retries":     cfg.HuggingFace.MaxRetries,
			"configured":      cfg.OracleConfigured(),
		},
		"agent": map[string]interface{}{
			"default_variant": s.defaultVariant(),
		},
		"import": map[string]interface{}{
			"batch_size":   cfg.GetImportBatchSize(),
			"skip_invalid": cfg.Import.SkipInvalid,
		},
	})
}

// HandleVersion handles GET /api/version
func (s *Server) HandleVersion(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, version.Get())
}

// HandleHealth handles GET /api/health: liveness plus a database ping
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Errorw("Health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "degraded",
			"error":  "database unreachable",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": version.Get().Version,
		"time":    time.Now().UTC(),
	})
}
