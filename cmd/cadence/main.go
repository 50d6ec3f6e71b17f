package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/teranos/cadence/cmd/cadence/commands"
	"github.com/teranos/cadence/logger"
)

var rootCmd = &cobra.Command{
	Use:   "cadence",
	Short: "Cadence - AI sales lead qualification pipeline",
	Long: `Cadence - AI-assisted sales lead qualification and outreach.

Cadence scores inbound leads with a Hugging Face completion oracle,
applies escalation and governance policy to every decision, and runs
batch campaigns through a budget-gated worker pool.

Available commands:
  serve    - Start the API server and worker pool
  qualify  - Qualify a single lead from the command line
  email    - Draft a governed outreach email for a lead
  import   - Import leads from a CSV file or URL
  campaign - Create campaigns and manage batch runs
  config   - Show and edit configuration
  version  - Show version information

Examples:
  cadence serve                                     # Start server + workers
  cadence qualify --company "Acme Robotics" --industry saas
  cadence import leads.csv                          # Bulk lead import
  cadence campaign run 9b2f1c3a-...                 # Enqueue a batch run
  cadence config show                               # Show configuration`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Commands with machine-readable output keep the log pipeline quiet
		switch cmd.Name() {
		case "show", "get", "path", "version":
			return nil
		}
		verbosity, _ := cmd.Flags().GetCount("verbose")
		if err := logger.InitializeWithVerbosity(verbosity, false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.QualifyCmd)
	rootCmd.AddCommand(commands.EmailCmd)
	rootCmd.AddCommand(commands.ImportCmd)
	rootCmd.AddCommand(commands.CampaignCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
