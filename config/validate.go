package config

import "github.com/teranos/cadence/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Database path is optional - empty defaults to "cadence.db" per defaults.go
	// No validation needed here

	// Server port: 0 is invalid (omit for default), negative is invalid
	if c.Server.Port != nil && *c.Server.Port == 0 {
		return errors.New("server.port cannot be 0 (omit for default port 4812)")
	}
	if c.Server.Port != nil && *c.Server.Port < 0 {
		return errors.Newf("server.port must be positive, got %d", *c.Server.Port)
	}

	// Run workers: 0 = no background workers, negative = invalid
	if c.Run.Workers < 0 {
		return errors.Newf("run.workers must be >= 0, got %d", c.Run.Workers)
	}

	// Run ticker interval: 0 = no periodic ticking, negative = invalid
	if c.Run.TickerIntervalSeconds < 0 {
		return errors.Newf("run.ticker_interval_seconds must be >= 0, got %d", c.Run.TickerIntervalSeconds)
	}

	// Budget values: 0 = no budget (valid per "zero means zero"), negative = invalid
	if c.Run.DailyBudgetUSD < 0 {
		return errors.Newf("run.daily_budget_usd must be >= 0, got %f", c.Run.DailyBudgetUSD)
	}
	if c.Run.WeeklyBudgetUSD < 0 {
		return errors.Newf("run.weekly_budget_usd must be >= 0, got %f", c.Run.WeeklyBudgetUSD)
	}
	if c.Run.MonthlyBudgetUSD < 0 {
		return errors.Newf("run.monthly_budget_usd must be >= 0, got %f", c.Run.MonthlyBudgetUSD)
	}
	if c.Run.CostPerLeadUSD < 0 {
		return errors.Newf("run.cost_per_lead_usd must be >= 0, got %f", c.Run.CostPerLeadUSD)
	}

	// Oracle settings only matter when a token is configured; hard limits are
	// still sanity-checked so a bad config file fails fast rather than at the
	// first completion
	if c.HuggingFace.TimeoutSeconds < 0 {
		return errors.Newf("huggingface.timeout_seconds must be >= 0, got %d", c.HuggingFace.TimeoutSeconds)
	}
	if c.HuggingFace.MaxRetries < 0 {
		return errors.Newf("huggingface.max_retries must be >= 0, got %d", c.HuggingFace.MaxRetries)
	}
	if c.HuggingFace.MaxRequestsPerMinute < 0 {
		return errors.Newf("huggingface.max_requests_per_minute must be >= 0, got %d", c.HuggingFace.MaxRequestsPerMinute)
	}
	if c.OracleConfigured() && c.HuggingFace.BaseURL == "" {
		return errors.New("huggingface.base_url cannot be empty when a token is configured")
	}

	// Import batch size: 0 = use default, negative = invalid
	if c.Import.BatchSize < 0 {
		return errors.Newf("import.batch_size must be >= 0, got %d", c.Import.BatchSize)
	}

	return nil
}
