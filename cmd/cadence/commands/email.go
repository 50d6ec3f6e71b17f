package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/cadence/config"
	"github.com/teranos/cadence/errors"
	"github.com/teranos/cadence/sales"
)

// EmailCmd drafts a governed outreach email for a lead
var EmailCmd = &cobra.Command{
	Use:   "email",
	Short: "Draft a governed outreach email for a lead",
	Long: `Generate an outreach email draft for an existing lead and run it through
the governance policy. Drafts that fail governance are still printed,
flagged for review; nothing is ever sent. The draft is recorded in the
lead's interaction history either way.

Examples:
  cadence email --lead 3f8a1c2e-...
  cadence email --lead 3f8a1c2e-... --variant B`,
	RunE: runEmail,
}

var (
	emailLeadID  string
	emailVariant string
)

func init() {
	EmailCmd.Flags().StringVar(&emailLeadID, "lead", "", "Lead ID to draft for (required)")
	EmailCmd.Flags().StringVar(&emailVariant, "variant", "", "Prompt variant: A or B (default from config)")
	EmailCmd.MarkFlagRequired("lead")
}

func runEmail(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	sdr, err := buildAgent(cfg, database)
	if err != nil {
		return err
	}

	if !cfg.OracleConfigured() {
		pterm.Warning.Println("No Hugging Face API token configured; using the template fallback draft")
	}

	leads := sales.NewLeadStore(database)
	lead, err := leads.Get(emailLeadID)
	if err != nil {
		return errors.Wrapf(err, "failed to get lead %s", emailLeadID)
	}

	variant := resolveCLIVariant(cfg, emailVariant)
	result := sdr.GenerateEmail(cmd.Context(), lead, lead.Score, variant)

	interactions := sales.NewInteractionStore(database)
	interaction := result.Interaction(lead.ID, "")
	if err := interactions.Create(interaction); err != nil {
		return errors.Wrap(err, "failed to record interaction")
	}

	pterm.Info.Printf("Draft for %s <%s> (variant %s)\n\n", lead.CompanyName, lead.ContactEmail, result.Variant)
	fmt.Println(result.EmailContent)
	fmt.Println()

	if result.GovernanceApproved {
		pterm.Success.Println("Governance: approved")
	} else {
		pterm.Warning.Println("Governance: failed, draft escalated for review")
		for _, issue := range result.GovernanceIssues {
			fmt.Printf("  [%s] %s: %s\n", issue.Severity, issue.Rule, issue.Message)
		}
	}

	fmt.Printf("\nInteraction: %s\n", interaction.ID)
	return nil
}
