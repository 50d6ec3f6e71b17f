// Package budget provides spend tracking and pacing limits for campaign
// runs. Spend is aggregated over pure sliding windows (24h/7d/30d) on the
// llm_usage table; job starts are paced by an in-memory sliding-window
// rate limiter.
package budget

import (
	"database/sql"
	"time"

	"github.com/teranos/cadence/errors"
)

// Sliding windows for spend aggregation. Fixed calendar windows invite
// boundary gaming: a run blocked at 23:50 would see a fresh budget ten
// minutes later.
const (
	dailyWindow   = 24 * time.Hour
	weeklyWindow  = 7 * 24 * time.Hour
	monthlyWindow = 30 * 24 * time.Hour
)

// Store reads spend aggregates from the llm_usage table
type Store struct {
	db *sql.DB
}

// NewStore creates a budget store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// actualSpend sums the cost of successful operations inside a sliding
// window ending now. Failed operations are excluded: a call that errored
// before reaching the provider did not spend anything.
func (s *Store) actualSpend(window time.Duration, period string) (float64, int, error) {
	cutoff := time.Now().UTC().Add(-window)

	query := `
		SELECT
			COALESCE(SUM(cost), 0) as total_cost,
			COUNT(*) as operation_count
		FROM llm_usage
		WHERE request_timestamp >= ?
			AND success = 1
	`

	var totalCost float64
	var operationCount int
	err := s.db.QueryRow(query, cutoff).Scan(&totalCost, &operationCount)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "failed to query %s spend", period)
	}

	return totalCost, operationCount, nil
}

// GetActualDailySpend returns spend over the last 24 hours
func (s *Store) GetActualDailySpend() (float64, int, error) {
	return s.actualSpend(dailyWindow, "daily")
}

// GetActualWeeklySpend returns spend over the last 7 days
func (s *Store) GetActualWeeklySpend() (float64, int, error) {
	return s.actualSpend(weeklyWindow, "weekly")
}

// GetActualMonthlySpend returns spend over the last 30 days
func (s *Store) GetActualMonthlySpend() (float64, int, error) {
	return s.actualSpend(monthlyWindow, "monthly")
}
