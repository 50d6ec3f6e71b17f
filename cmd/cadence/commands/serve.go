package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/cadence/config"
	"github.com/teranos/cadence/errors"
	"github.com/teranos/cadence/logger"
	"github.com/teranos/cadence/run"
	"github.com/teranos/cadence/run/budget"
	"github.com/teranos/cadence/server"
)

// ServeCmd starts the cadence API server and worker pool
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the cadence API server and worker pool",
	Long: `Launch the cadence server: REST API, websocket dashboard feed, and the
budget-gated worker pool that processes campaign runs.

The server and the CLI share one SQLite database, so runs enqueued with
'cadence campaign run' are picked up by a running server's workers.`,
	RunE: runServe,
}

var (
	servePort    int
	serveWorkers int
	serveDBPath  string
)

func init() {
	ServeCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (overrides config)")
	ServeCmd.Flags().IntVar(&serveWorkers, "workers", 0, "Worker pool size (overrides config)")
	ServeCmd.Flags().StringVar(&serveDBPath, "db-path", "", "Custom database path (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Default to Info so startup progress is visible without -v
	verbosity, _ := cmd.Flags().GetCount("verbose")
	if verbosity == 0 {
		verbosity = 1
		if err := logger.InitializeWithVerbosity(verbosity, false); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	port := cfg.GetServerPort()
	if servePort != 0 {
		port = servePort
	}

	dbPath := serveDBPath
	if dbPath == "" {
		dbPath = cfg.GetDatabasePath()
	}

	database, err := openDatabase(dbPath)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	sdr, err := buildAgent(cfg, database)
	if err != nil {
		return err
	}

	budgetTracker := budgetTrackerFromConfig(database, cfg)
	limiter := budget.NewLimiter(cfg.Run.MaxJobStartsPerMinute)

	poolCfg := poolConfigFromConfig(cfg)
	if serveWorkers > 0 {
		poolCfg.Workers = serveWorkers
	}

	pool := run.NewWorkerPoolWithGates(cmd.Context(), database, sdr, poolCfg, logger.Logger, budgetTracker, limiter)

	srv := server.New(database, cfg, sdr, pool, budgetTracker, logger.Logger)

	oracle := "not configured (heuristic fallback scoring)"
	if cfg.OracleConfigured() {
		oracle = cfg.HuggingFace.Model
	}
	printStartupBanner(verbosity, dbPath, port, poolCfg.Workers, oracle)

	// Start server in background
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(port)
	}()

	// Wait for shutdown signal (Ctrl+C)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		// Server failed to start or stopped unexpectedly
		return errors.Wrap(err, "server failed to start")
	case <-sigChan:
		// First Ctrl+C - graceful shutdown
		pterm.Info.Println("\nShutting down gracefully (press Ctrl+C again to force)...")

		shutdownDone := make(chan error, 1)
		go func() {
			shutdownDone <- srv.Stop()
		}()

		// Wait for either shutdown completion or second Ctrl+C
		select {
		case err := <-shutdownDone:
			if err != nil {
				return fmt.Errorf("shutdown error: %w", err)
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			// Second Ctrl+C - force immediate exit
			pterm.Warning.Println("\nForce shutdown - exiting immediately")
			os.Exit(1)
			return nil // unreachable
		}
	}
}
