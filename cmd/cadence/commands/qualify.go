package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/cadence/config"
	"github.com/teranos/cadence/errors"
	"github.com/teranos/cadence/sales"
)

// QualifyCmd qualifies a single lead from the command line
var QualifyCmd = &cobra.Command{
	Use:   "qualify",
	Short: "Qualify a single lead from the command line",
	Long: `Run one lead through the qualification agent and print the decision.

Qualify an existing lead with --lead, or describe a new one with --company
and friends. Ad-hoc leads are scored without touching the database unless
--save is set; existing leads get their status and score updated and the
decision recorded in the interaction history, same as a campaign run.

Examples:
  cadence qualify --lead 3f8a1c2e-...               # Existing lead
  cadence qualify --company "Acme Robotics" --industry saas --size 50-500
  cadence qualify --company "Acme Robotics" --email jo@acme.io --save`,
	RunE: runQualify,
}

var (
	qualifyLeadID   string
	qualifyCompany  string
	qualifyContact  string
	qualifyEmail    string
	qualifyIndustry string
	qualifySize     string
	qualifyVariant  string
	qualifySave     bool
)

func init() {
	QualifyCmd.Flags().StringVar(&qualifyLeadID, "lead", "", "Qualify an existing lead by ID")
	QualifyCmd.Flags().StringVar(&qualifyCompany, "company", "", "Company name for an ad-hoc lead")
	QualifyCmd.Flags().StringVar(&qualifyContact, "contact", "", "Contact name")
	QualifyCmd.Flags().StringVar(&qualifyEmail, "email", "", "Contact email")
	QualifyCmd.Flags().StringVar(&qualifyIndustry, "industry", "", "Industry (e.g. saas, fintech, healthcare)")
	QualifyCmd.Flags().StringVar(&qualifySize, "size", "", "Company size bracket (1-50, 50-500, 500-2000, 2000+)")
	QualifyCmd.Flags().StringVar(&qualifyVariant, "variant", "", "Prompt variant: A or B (default from config)")
	QualifyCmd.Flags().BoolVar(&qualifySave, "save", false, "Persist an ad-hoc lead and its qualification")
}

func runQualify(cmd *cobra.Command, args []string) error {
	if qualifyLeadID == "" && qualifyCompany == "" {
		return errors.New("either --lead or --company is required")
	}

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
		pterm.Warning.Println("No Hugging Face API token configured; using heuristic fallback scoring")
	}

	leads := sales.NewLeadStore(database)

	var lead *sales.Lead
	persist := qualifySave
	if qualifyLeadID != "" {
		lead, err = leads.Get(qualifyLeadID)
		if err != nil {
			return errors.Wrapf(err, "failed to get lead %s", qualifyLeadID)
		}
		persist = true
	} else {
		lead = sales.NewLead(qualifyCompany, qualifyEmail)
		lead.ContactName = qualifyContact
		lead.Industry = qualifyIndustry
		lead.CompanySize = qualifySize
		lead.Source = "manual"

		if persist {
			if validation := sales.ValidateLead(lead); !validation.Valid {
				for _, issue := range validation.Issues {
					pterm.Error.Printf("%s: %s\n", issue.Field, issue.Issue)
				}
				return errors.New("lead failed validation, not saved")
			}
			if err := leads.Create(lead); err != nil {
				return errors.Wrap(err, "failed to create lead")
			}
		}
	}

	variant := resolveCLIVariant(cfg, qualifyVariant)
	result := sdr.Qualify(cmd.Context(), lead, variant)

	if persist {
		if err := leads.UpdateQualification(lead.ID, result.Score, result.LeadStatus()); err != nil {
			return errors.Wrap(err, "failed to record qualification")
		}
		interactions := sales.NewInteractionStore(database)
		if err := interactions.Create(result.Interaction(lead.ID, "")); err != nil {
			return errors.Wrap(err, "failed to record interaction")
		}
	}

	if result.Qualified {
		pterm.Success.Printf("%s — %s\n", lead.CompanyName, result.Decision)
	} else {
		pterm.Warning.Printf("%s — %s\n", lead.CompanyName, result.Decision)
	}
	fmt.Printf("  Score:     %d/100\n", result.Score)
	fmt.Printf("  Variant:   %s\n", result.Variant)
	fmt.Printf("  Status:    %s\n", result.LeadStatus())
	fmt.Printf("  Reasoning: %s\n", result.Reasoning)

	if result.Escalated {
		pterm.Warning.Printf("Escalated for human review: %s\n", result.EscalationReason)
	}
	if persist {
		fmt.Printf("\nLead: %s\n", lead.ID)
	}

	return nil
}
