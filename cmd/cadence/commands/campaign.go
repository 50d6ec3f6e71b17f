package commands

import (
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/cadence/config"
	"github.com/teranos/cadence/errors"
	"github.com/teranos/cadence/logger"
	"github.com/teranos/cadence/run"
	"github.com/teranos/cadence/run/budget"
	"github.com/teranos/cadence/sales"
)

// CampaignCmd groups campaign and batch run management
var CampaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Create campaigns and manage batch runs",
	Long: `Campaign management: create A/B prompt campaigns, enqueue batch
qualification runs over the lead pool, and control runs in flight.

Commands:
  cadence campaign create <name>     # Create a campaign
  cadence campaign ls                # List campaigns
  cadence campaign run <id>          # Enqueue a batch run
  cadence campaign status <run-id>   # Show run progress
  cadence campaign pause <run-id>    # Pause a run
  cadence campaign resume <run-id>   # Resume a paused run
  cadence campaign cancel <run-id>   # Cancel a run

Runs are processed by a running 'cadence serve' worker pool, or inline
when 'campaign run --wait' is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var campaignCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a campaign",
	Long: `Create a campaign in draft status. The variant selects which prompt
the agent uses for every lead in the campaign's runs.

Examples:
  cadence campaign create "Q3 SaaS outreach"
  cadence campaign create "Fintech push" --variant B`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCampaignCreate(args[0])
	},
}

var campaignLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List campaigns",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return runCampaignLs(limit)
	},
}

var campaignRunCmd = &cobra.Command{
	Use:   "run <campaign-id>",
	Short: "Enqueue a batch qualification run",
	Long: `Enqueue a batch run that qualifies leads under the campaign's prompt
variant. By default the run covers up to 50 leads in "new" status and is
left for a running 'cadence serve' worker pool; --wait processes it
inline with a local pool instead, showing progress.

Examples:
  cadence campaign run 9b2f1c3a-...
  cadence campaign run 9b2f1c3a-... --status qualified --limit 100
  cadence campaign run 9b2f1c3a-... --wait`,
	Args: cobra.ExactArgs(1),
	RunE: runCampaignRun,
}

var campaignStatusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show status of a batch run",
	Long: `Display detailed status for a batch run: progress, per-lead outcomes,
cost estimate against actual spend, and timestamps.

Example:
  cadence campaign status JB1a2b3c...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCampaignStatus(args[0])
	},
}

var campaignPauseCmd = &cobra.Command{
	Use:   "pause <run-id>",
	Short: "Pause a queued or running batch run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCampaignPause(args[0])
	},
}

var campaignResumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Resume a paused batch run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCampaignResume(args[0])
	},
}

var campaignCancelCmd = &cobra.Command{
	Use:   "cancel <run-id>",
	Short: "Cancel a batch run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		return runCampaignCancel(args[0], reason)
	},
}

var (
	campaignVariant  string
	campaignTemplate string

	campaignRunStatus string
	campaignRunLimit  int
	campaignRunWait   bool
)

func init() {
	campaignCreateCmd.Flags().StringVar(&campaignVariant, "variant", "", "Prompt variant: A or B (default A)")
	campaignCreateCmd.Flags().StringVar(&campaignTemplate, "template", "", "Custom prompt template (optional)")

	campaignLsCmd.Flags().Int("limit", 20, "Maximum number of campaigns to display")

	campaignRunCmd.Flags().StringVar(&campaignRunStatus, "status", "", "Lead status to pull from (default new)")
	campaignRunCmd.Flags().IntVar(&campaignRunLimit, "limit", 0, "Maximum leads in the run (default 50)")
	campaignRunCmd.Flags().BoolVar(&campaignRunWait, "wait", false, "Process the run inline and wait for it to settle")

	campaignCancelCmd.Flags().String("reason", "", "Reason recorded on the cancelled run")

	CampaignCmd.AddCommand(campaignCreateCmd)
	CampaignCmd.AddCommand(campaignLsCmd)
	CampaignCmd.AddCommand(campaignRunCmd)
	CampaignCmd.AddCommand(campaignStatusCmd)
	CampaignCmd.AddCommand(campaignPauseCmd)
	CampaignCmd.AddCommand(campaignResumeCmd)
	CampaignCmd.AddCommand(campaignCancelCmd)
}

func runCampaignCreate(name string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	campaign := sales.NewCampaign(name, campaignVariant)
	campaign.PromptTemplate = campaignTemplate

	campaigns := sales.NewCampaignStore(database)
	if err := campaigns.Create(campaign); err != nil {
		return errors.Wrap(err, "failed to create campaign")
	}

	pterm.Success.Printf("Campaign %q created (variant %s)\n", campaign.Name, campaign.Variant)
	fmt.Printf("ID: %s\n", campaign.ID)
	return nil
}

func runCampaignLs(limit int) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	campaigns, err := sales.NewCampaignStore(database).List(limit)
	if err != nil {
		return errors.Wrap(err, "failed to list campaigns")
	}

	if len(campaigns) == 0 {
		fmt.Println("No campaigns found")
		return nil
	}

	fmt.Printf("%-38s %-25s %-8s %-10s %s\n", "ID", "NAME", "VARIANT", "STATUS", "CREATED")
	fmt.Printf("%-38s %-25s %-8s %-10s %s\n", "--", "----", "-------", "------", "-------")
	for _, campaign := range campaigns {
		fmt.Printf("%-38s %-25s %-8s %-10s %s\n",
			campaign.ID,
			truncate(campaign.Name, 25),
			campaign.Variant,
			campaign.Status,
			campaign.CreatedAt.Format("2006-01-02 15:04"))
	}

	fmt.Printf("\nTotal: %d campaign(s)\n", len(campaigns))
	return nil
}

func runCampaignRun(cmd *cobra.Command, args []string) error {
	campaignID := args[0]

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	campaigns := sales.NewCampaignStore(database)
	campaign, err := campaigns.Get(campaignID)
	if err != nil {
		return errors.Wrapf(err, "failed to get campaign %s", campaignID)
	}

	queue := run.NewQueue(database)
	existing, err := queue.FindActiveJobByCampaign(campaign.ID)
	if err != nil {
		return errors.Wrap(err, "failed to check for active runs")
	}
	if existing != nil {
		return errors.Newf("campaign already has an active run: %s (%s)", existing.ID, existing.Status)
	}

	statusFilter := sales.LeadStatusNew
	if campaignRunStatus != "" {
		if !sales.IsValidLeadStatus(campaignRunStatus) {
			return errors.Newf("invalid status filter: %s", campaignRunStatus)
		}
		statusFilter = sales.LeadStatus(campaignRunStatus)
	}
	limit := 50
	if campaignRunLimit > 0 {
		limit = campaignRunLimit
	}

	candidates, err := sales.NewLeadStore(database).List(sales.LeadFilter{Status: statusFilter, Limit: limit})
	if err != nil {
		return errors.Wrap(err, "failed to list leads")
	}
	if len(candidates) == 0 {
		return errors.Newf("no leads in %q status to process", statusFilter)
	}

	leadIDs := make([]string, len(candidates))
	for i, lead := range candidates {
		leadIDs[i] = lead.ID
	}

	tracker := budgetTrackerFromConfig(database, cfg)
	estimate := tracker.EstimateRunCost(len(leadIDs))

	if campaign.Status != sales.CampaignStatusActive {
		if err := campaigns.UpdateStatus(campaign.ID, sales.CampaignStatusActive); err != nil {
			return errors.Wrap(err, "failed to activate campaign")
		}
	}

	job, err := run.NewJob(campaign.ID, campaign.Variant, leadIDs, estimate, "cli")
	if err != nil {
		return errors.Wrap(err, "failed to create run")
	}
	if err := queue.Enqueue(job); err != nil {
		return errors.Wrap(err, "failed to enqueue run")
	}

	pterm.Success.Printf("Run %s queued: %d lead(s), estimated cost $%.3f\n", job.ID, len(leadIDs), estimate)

	if !campaignRunWait {
		fmt.Printf("A running 'cadence serve' picks it up; check progress with:\n  cadence campaign status %s\n", job.ID)
		return nil
	}

	return processRunInline(cmd, cfg, database, queue, job)
}

// processRunInline drives a local worker pool until the run settles, for
// environments without a cadence serve daemon.
func processRunInline(cmd *cobra.Command, cfg *config.Config, database *sql.DB, queue *run.Queue, job *run.Job) error {
	sdr, err := buildAgent(cfg, database)
	if err != nil {
		return err
	}
	if !cfg.OracleConfigured() {
		pterm.Warning.Println("No Hugging Face API token configured; using heuristic fallback scoring")
	}

	tracker := budgetTrackerFromConfig(database, cfg)
	limiter := budget.NewLimiter(cfg.Run.MaxJobStartsPerMinute)

	poolCfg := poolConfigFromConfig(cfg)
	poolCfg.PollInterval = 500 * time.Millisecond // local runs should start promptly

	pool := run.NewWorkerPoolWithGates(cmd.Context(), database, sdr, poolCfg, logger.Logger, tracker, limiter)
	pool.Start()
	defer pool.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastProcessed := -1
	for {
		select {
		case <-sigChan:
			fmt.Println()
			if err := queue.PauseJob(job.ID, run.PauseReasonUserRequested); err != nil {
				pterm.Warning.Printf("Could not pause run: %v\n", err)
				return nil
			}
			pterm.Warning.Printf("Run paused; resume with: cadence campaign resume %s\n", job.ID)
			return nil
		case <-ticker.C:
			current, err := queue.GetJob(job.ID)
			if err != nil {
				return errors.Wrap(err, "failed to poll run")
			}
			if current.Progress.Processed != lastProcessed {
				lastProcessed = current.Progress.Processed
				line := fmt.Sprintf("Processing %d/%d (%.0f%%) — qualified %d, escalated %d, failed %d",
					current.Progress.Processed, current.Progress.Total, current.Progress.Percentage(),
					current.Progress.Qualified, current.Progress.Escalated, current.Progress.Failed)
				fmt.Printf("\r%-72s", line)
			}
			if current.Status.IsTerminal() || current.Status == run.JobStatusPaused {
				fmt.Println()
				reportRunOutcome(current)
				return nil
			}
		}
	}
}

// reportRunOutcome prints the final state of a settled run
func reportRunOutcome(job *run.Job) {
	switch job.Status {
	case run.JobStatusCompleted:
		pterm.Success.Printf("Run %s completed: %d/%d processed, %d qualified, %d escalated, cost $%.3f\n",
			job.ID, job.Progress.Processed, job.Progress.Total,
			job.Progress.Qualified, job.Progress.Escalated, job.CostActual)
	case run.JobStatusFailed:
		pterm.Error.Printf("Run %s failed: %s\n", job.ID, job.Error)
	case run.JobStatusCancelled:
		pterm.Warning.Printf("Run %s cancelled\n", job.ID)
	case run.JobStatusPaused:
		pterm.Warning.Printf("Run %s paused (%s); resume with: cadence campaign resume %s\n",
			job.ID, job.PauseReason, job.ID)
	}
}

func runCampaignStatus(runID string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	job, err := run.NewQueue(database).GetJob(runID)
	if err != nil {
		return errors.Wrapf(err, "failed to get run %s", runID)
	}

	fmt.Printf("Run: %s\n", job.ID)
	fmt.Printf("  Campaign: %s\n", job.CampaignID)
	fmt.Printf("  Variant:  %s\n", job.Variant)
	if job.PauseReason != "" {
		fmt.Printf("  Status:   %s (%s)\n", job.Status, job.PauseReason)
	} else {
		fmt.Printf("  Status:   %s\n", job.Status)
	}
	fmt.Printf("\n")

	fmt.Printf("Progress: %d/%d (%.1f%%)\n",
		job.Progress.Processed, job.Progress.Total, job.Progress.Percentage())
	fmt.Printf("  Qualified: %d\n", job.Progress.Qualified)
	fmt.Printf("  Escalated: %d\n", job.Progress.Escalated)
	if job.Progress.Failed > 0 {
		fmt.Printf("  Failed:    %d\n", job.Progress.Failed)
	}
	fmt.Printf("\n")

	fmt.Printf("Cost Estimate: $%.3f\n", job.CostEstimate)
	if job.CostActual > 0 {
		fmt.Printf("Actual Cost: $%.3f\n", job.CostActual)
	}
	if job.Error != "" {
		fmt.Printf("Error: %s\n", job.Error)
	}
	fmt.Printf("\n")

	fmt.Printf("Created: %s\n", job.CreatedAt.Format("2006-01-02 15:04:05"))
	if job.StartedAt != nil {
		fmt.Printf("Started: %s\n", job.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if job.CompletedAt != nil {
		fmt.Printf("Completed: %s\n", job.CompletedAt.Format("2006-01-02 15:04:05"))
	}

	return nil
}

func runCampaignPause(runID string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	if err := run.NewQueue(database).PauseJob(runID, run.PauseReasonUserRequested); err != nil {
		return errors.Wrapf(err, "failed to pause run %s", runID)
	}

	pterm.Success.Printf("Run %s paused\n", runID)
	return nil
}

func runCampaignResume(runID string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	if err := run.NewQueue(database).ResumeJob(runID); err != nil {
		return errors.Wrapf(err, "failed to resume run %s", runID)
	}

	pterm.Success.Printf("Run %s resumed\n", runID)
	return nil
}

func runCampaignCancel(runID, reason string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	if reason == "" {
		reason = "cancelled from the command line"
	}

	if err := run.NewQueue(database).CancelJob(runID, reason); err != nil {
		return errors.Wrapf(err, "failed to cancel run %s", runID)
	}

	pterm.Success.Printf("Run %s cancelled\n", runID)
	return nil
}

// truncate truncates a string to maxLen characters
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
