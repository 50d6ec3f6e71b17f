package server

import (
	"time"

	"github.com/teranos/cadence/run"
)

const (
	// MaxClients is the maximum number of concurrent WebSocket clients
	MaxClients = 100

	// MaxClientMessageQueueSize is the size of per-client message queues
	MaxClientMessageQueueSize = 256

	// ShutdownTimeout is how long to wait for graceful shutdown. The worker
	// pool alone can take up to 30s to reach a lead boundary.
	ShutdownTimeout = 60 * time.Second

	// statusInterval is how often the status broadcaster samples queue and
	// budget state
	statusInterval = 5 * time.Second
)

// ServerState represents the server lifecycle state
type ServerState int

const (
	ServerStateRunning  ServerState = iota // Normal operation
	ServerStateDraining                    // Graceful shutdown in progress
	ServerStateStopped                     // Shutdown complete
)

// ClientMessage is a message received from a WebSocket client
type ClientMessage struct {
	Type          string  `json:"type"`                     // "ping", "job_control", "budget_update"
	Action        string  `json:"action,omitempty"`         // job_control: "pause", "resume", "cancel"
	JobID         string  `json:"job_id,omitempty"`         // job_control target
	Reason        string  `json:"reason,omitempty"`         // job_control pause/cancel reason
	DailyBudget   float64 `json:"daily_budget,omitempty"`   // budget_update: new daily limit in USD
	WeeklyBudget  float64 `json:"weekly_budget,omitempty"`  // budget_update: new weekly limit in USD
	MonthlyBudget float64 `json:"monthly_budget,omitempty"` // budget_update: new monthly limit in USD
}

// JobUpdateMessage pushes a campaign run state change to clients
type JobUpdateMessage struct {
	Type string   `json:"type"` // "job_update"
	Job  *run.Job `json:"job"`
}

// StatusMessage is the periodic worker/budget snapshot pushed to clients
type StatusMessage struct {
	Type               string  `json:"type"`    // "status"
	Running            bool    `json:"running"` // Worker pool accepting jobs
	Workers            int     `json:"workers"`
	JobsQueued         int     `json:"jobs_queued"`
	JobsRunning        int     `json:"jobs_running"`
	BudgetDaily        float64 `json:"budget_daily"`         // Spend in the trailing 24h
	BudgetWeekly       float64 `json:"budget_weekly"`        // Spend in the trailing 7d
	BudgetMonthly      float64 `json:"budget_monthly"`       // Spend in the trailing 30d
	BudgetDailyLimit   float64 `json:"budget_daily_limit"`   // 0 = no cap
	BudgetWeeklyLimit  float64 `json:"budget_weekly_limit"`  // 0 = no cap
	BudgetMonthlyLimit float64 `json:"budget_monthly_limit"` // 0 = no cap
	ServerState        string  `json:"server_state"`         // "running", "draining", "stopped"
	Timestamp          int64   `json:"timestamp"`
}

// ErrorMessage reports a failed client request back to that client only
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Request string `json:"request,omitempty"`
	Message string `json:"message"`
}

// statusSnapshot tracks the last broadcast status to detect changes
type statusSnapshot struct {
	queued       int
	running      int
	dailySpend   float64
	weeklySpend  float64
	monthlySpend float64
	dailyLimit   float64
	weeklyLimit  float64
	monthlyLimit float64
	poolRunning  bool
}
