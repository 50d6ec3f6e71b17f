package budget

import (
	"database/sql"
	"sync"

	"github.com/teranos/cadence/errors"
)

// Config holds spend limits for campaign runs. A zero limit disables
// that window's check.
type Config struct {
	DailyBudgetUSD   float64 `json:"daily_budget_usd"`
	WeeklyBudgetUSD  float64 `json:"weekly_budget_usd"`
	MonthlyBudgetUSD float64 `json:"monthly_budget_usd"`
	CostPerLeadUSD   float64 `json:"cost_per_lead_usd"`
}

// Status reports current spend against each budget window
type Status struct {
	DailySpend       float64 `json:"daily_spend"`
	WeeklySpend      float64 `json:"weekly_spend"`
	MonthlySpend     float64 `json:"monthly_spend"`
	DailyRemaining   float64 `json:"daily_remaining"`
	WeeklyRemaining  float64 `json:"weekly_remaining"`
	MonthlyRemaining float64 `json:"monthly_remaining"`
	DailyOps         int     `json:"daily_operations"`
	WeeklyOps        int     `json:"weekly_operations"`
	MonthlyOps       int     `json:"monthly_operations"`
}

// Tracker enforces spend limits against actual recorded usage
type Tracker struct {
	store  *Store
	config Config
	mu     sync.RWMutex
}

// NewTracker creates a budget tracker backed by the llm_usage table
func NewTracker(db *sql.DB, config Config) *Tracker {
	return &Tracker{
		store:  NewStore(db),
		config: config,
	}
}

// GetStatus returns current spend across all budget windows
func (t *Tracker) GetStatus() (*Status, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	dailySpend, dailyOps, err := t.store.GetActualDailySpend()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get daily spend")
	}

	weeklySpend, weeklyOps, err := t.store.GetActualWeeklySpend()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get weekly spend")
	}

	monthlySpend, monthlyOps, err := t.store.GetActualMonthlySpend()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get monthly spend")
	}

	return &Status{
		DailySpend:       dailySpend,
		WeeklySpend:      weeklySpend,
		MonthlySpend:     monthlySpend,
		DailyRemaining:   t.config.DailyBudgetUSD - dailySpend,
		WeeklyRemaining:  t.config.WeeklyBudgetUSD - weeklySpend,
		MonthlyRemaining: t.config.MonthlyBudgetUSD - monthlySpend,
		DailyOps:         dailyOps,
		WeeklyOps:        weeklyOps,
		MonthlyOps:       monthlyOps,
	}, nil
}

// CheckBudget verifies an operation with the given estimated cost would
// stay inside every configured budget window. The returned error wraps
// ErrBudgetExceeded so callers can distinguish a budget stop from a
// query failure.
func (t *Tracker) CheckBudget(estimatedCostUSD float64) error {
	status, err := t.GetStatus()
	if err != nil {
		return errors.Wrap(err, "failed to check budget")
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.config.DailyBudgetUSD > 0 && status.DailySpend+estimatedCostUSD > t.config.DailyBudgetUSD {
		return errors.Wrapf(errors.ErrBudgetExceeded,
			"daily budget would be exceeded: current $%.3f + estimated $%.3f > limit $%.2f",
			status.DailySpend, estimatedCostUSD, t.config.DailyBudgetUSD)
	}

	if t.config.WeeklyBudgetUSD > 0 && status.WeeklySpend+estimatedCostUSD > t.config.WeeklyBudgetUSD {
		return errors.Wrapf(errors.ErrBudgetExceeded,
			"weekly budget would be exceeded: current $%.3f + estimated $%.3f > limit $%.2f",
			status.WeeklySpend, estimatedCostUSD, t.config.WeeklyBudgetUSD)
	}

	if t.config.MonthlyBudgetUSD > 0 && status.MonthlySpend+estimatedCostUSD > t.config.MonthlyBudgetUSD {
		return errors.Wrapf(errors.ErrBudgetExceeded,
			"monthly budget would be exceeded: current $%.3f + estimated $%.3f > limit $%.2f",
			status.MonthlySpend, estimatedCostUSD, t.config.MonthlyBudgetUSD)
	}

	return nil
}

// EstimateRunCost returns the estimated cost of qualifying numLeads leads
func (t *Tracker) EstimateRunCost(numLeads int) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if numLeads <= 0 {
		return 0
	}
	return float64(numLeads) * t.config.CostPerLeadUSD
}

// UpdateDailyBudget changes the daily limit at runtime
func (t *Tracker) UpdateDailyBudget(budgetUSD float64) error {
	if budgetUSD < 0 {
		return errors.Newf("daily budget cannot be negative: %.2f", budgetUSD)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.config.DailyBudgetUSD = budgetUSD
	return nil
}

// UpdateWeeklyBudget changes the weekly limit at runtime
func (t *Tracker) UpdateWeeklyBudget(budgetUSD float64) error {
	if budgetUSD < 0 {
		return errors.Newf("weekly budget cannot be negative: %.2f", budgetUSD)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.config.WeeklyBudgetUSD = budgetUSD
	return nil
}

// UpdateMonthlyBudget changes the monthly limit at runtime
func (t *Tracker) UpdateMonthlyBudget(budgetUSD float64) error {
	if budgetUSD < 0 {
		return errors.Newf("monthly budget cannot be negative: %.2f", budgetUSD)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.config.MonthlyBudgetUSD = budgetUSD
	return nil
}

// GetBudgetLimits returns the configured limits
func (t *Tracker) GetBudgetLimits() Config {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.config
}
