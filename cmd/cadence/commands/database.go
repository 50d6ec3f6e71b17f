package commands

import (
	"database/sql"
	"time"

	"github.com/teranos/cadence/agent"
	"github.com/teranos/cadence/ai/huggingface"
	"github.com/teranos/cadence/config"
	"github.com/teranos/cadence/db"
	"github.com/teranos/cadence/errors"
	"github.com/teranos/cadence/logger"
	"github.com/teranos/cadence/policy"
	"github.com/teranos/cadence/run"
	"github.com/teranos/cadence/run/budget"
)

// openDatabase opens and migrates a database at the given path. An empty
// path resolves through config. Uses logger.Logger for db operations.
func openDatabase(dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load config")
		}
		dbPath = cfg.GetDatabasePath()
	}

	database, err := db.OpenWithMigrations(dbPath, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", dbPath)
	}

	return database, nil
}

// buildAgent wires the completion oracle and policy rules into a
// qualification agent. The oracle logs usage rows into the database.
func buildAgent(cfg *config.Config, database *sql.DB) (*agent.Agent, error) {
	escalation, governance, err := policy.Load(cfg.Agent.RulesPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load policy rules")
	}

	oracle := huggingface.NewClientFromConfig(cfg, logger.Logger, database)

	return agent.New(agent.Config{
		Oracle:     oracle,
		Escalation: escalation,
		Governance: governance,
		Logger:     logger.Logger,
	}), nil
}

// resolveCLIVariant applies the configured default when no variant flag
// was given. The agent normalizes anything else.
func resolveCLIVariant(cfg *config.Config, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if cfg.Agent.DefaultVariant != "" {
		return cfg.Agent.DefaultVariant
	}
	return "A"
}

// budgetTrackerFromConfig builds the spend tracker from run budget settings
func budgetTrackerFromConfig(database *sql.DB, cfg *config.Config) *budget.Tracker {
	return budget.NewTracker(database, budget.Config{
		DailyBudgetUSD:   cfg.Run.DailyBudgetUSD,
		WeeklyBudgetUSD:  cfg.Run.WeeklyBudgetUSD,
		MonthlyBudgetUSD: cfg.Run.MonthlyBudgetUSD,
		CostPerLeadUSD:   cfg.Run.CostPerLeadUSD,
	})
}

// poolConfigFromConfig maps run settings onto the worker pool defaults
func poolConfigFromConfig(cfg *config.Config) run.WorkerPoolConfig {
	poolCfg := run.DefaultWorkerPoolConfig()
	if cfg.Run.Workers > 0 {
		poolCfg.Workers = cfg.Run.Workers
	}
	if cfg.Run.TickerIntervalSeconds > 0 {
		poolCfg.PollInterval = time.Duration(cfg.Run.TickerIntervalSeconds) * time.Second
	}
	poolCfg.PauseOnBudget = cfg.Run.PauseOnBudgetExceeded
	if cfg.Run.CostPerLeadUSD > 0 {
		poolCfg.CostPerLeadUSD = cfg.Run.CostPerLeadUSD
	}
	return poolCfg
}
