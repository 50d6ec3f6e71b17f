package server

import (
	"net/http"
)

// routes builds the HTTP mux. Handlers are registered on a fresh mux
// rather than the process-global one so tests can build isolated servers.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.corsMiddleware(s.HandleWebSocket))                         // Run progress + status push
	mux.HandleFunc("/api/leads", s.corsMiddleware(s.HandleLeads))                      // List/create leads (GET/POST)
	mux.HandleFunc("/api/leads/import", s.corsMiddleware(s.HandleLeadImport))          // CSV upload or URL import (POST)
	mux.HandleFunc("/api/leads/", s.corsMiddleware(s.HandleLead))                      // Lead, qualify, email, interactions
	mux.HandleFunc("/api/campaigns", s.corsMiddleware(s.HandleCampaigns))              // List/create campaigns (GET/POST)
	mux.HandleFunc("/api/campaigns/", s.corsMiddleware(s.HandleCampaign))              // Campaign, run enqueue, run history
	mux.HandleFunc("/api/runs", s.corsMiddleware(s.HandleRuns))                        // List campaign runs (GET)
	mux.HandleFunc("/api/runs/", s.corsMiddleware(s.HandleRun))                        // Run status and pause/resume/cancel
	mux.HandleFunc("/api/dashboard/", s.corsMiddleware(s.HandleDashboard))             // Funnel, performance, A/B, cohorts
	mux.HandleFunc("/api/usage", s.corsMiddleware(s.HandleUsage))                      // Oracle usage stats + model breakdown (GET)
	mux.HandleFunc("/api/usage/timeseries", s.corsMiddleware(s.HandleUsageTimeSeries)) // Daily requests/cost series (GET)
	mux.HandleFunc("/api/budget", s.corsMiddleware(s.HandleBudget))                    // Spend status (GET) and limits (PATCH)
	mux.HandleFunc("/api/status", s.corsMiddleware(s.HandleStatus))                    // Worker/queue/budget snapshot (GET)
	mux.HandleFunc("/api/config", s.corsMiddleware(s.HandleConfig))                    // Redacted running config (GET)
	mux.HandleFunc("/api/version", s.corsMiddleware(s.HandleVersion))                  // Build info (GET)
	mux.HandleFunc("/api/health", s.corsMiddleware(s.HandleHealth))                    // Liveness + DB reachability (GET)

	return mux
}

// corsMiddleware adds CORS headers using the same origin validation as
// WebSocket connections (server.allowed_origins config)
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" && checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}
