package commands

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/cadence/config"
	"github.com/teranos/cadence/errors"
	"github.com/teranos/cadence/logger"
	"github.com/teranos/cadence/sales"
)

// ImportCmd bulk-imports leads from a CSV file or URL
var ImportCmd = &cobra.Command{
	Use:   "import <file.csv | url>",
	Short: "Import leads from a CSV file or URL",
	Long: `Bulk import leads from a CSV source into the lead database.

The CSV must carry a header row with at least company_name and
contact_email; industry, company_size, contact_name, and source columns
are picked up when present. Rows that fail validation are skipped and
reported unless --strict is set, which aborts the import instead.

Examples:
  cadence import leads.csv
  cadence import https://crm.example.com/exports/leads.csv
  cadence import leads.csv --strict`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var (
	importBatchSize int
	importStrict    bool
)

func init() {
	ImportCmd.Flags().IntVar(&importBatchSize, "batch-size", 0, "Leads per insert transaction (default from config)")
	ImportCmd.Flags().BoolVar(&importStrict, "strict", false, "Abort on the first invalid row instead of skipping")
}

func runImport(cmd *cobra.Command, args []string) error {
	source := args[0]

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	imp := sales.NewImporter(sales.NewLeadStore(database), logger.Logger)
	imp.BatchSize = cfg.GetImportBatchSize()
	imp.SkipInvalid = cfg.Import.SkipInvalid
	if importBatchSize > 0 {
		imp.BatchSize = importBatchSize
	}
	if importStrict {
		imp.SkipInvalid = false
	}

	var report *sales.ImportReport
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		report, err = imp.ImportURL(cmd.Context(), source)
	} else {
		report, err = imp.ImportFile(cmd.Context(), source)
	}
	if err != nil {
		return errors.Wrapf(err, "import from %s failed", source)
	}

	pterm.Success.Printf("Imported %d lead(s), skipped %d\n", report.Imported, report.Skipped)
	fmt.Printf("Data quality: %.1f/100\n", report.QualityScore)

	if len(report.Errors) > 0 {
		fmt.Printf("\n%-6s %s\n", "ROW", "ERROR")
		fmt.Printf("%-6s %s\n", "---", "-----")
		for _, rowErr := range report.Errors {
			fmt.Printf("%-6d %s\n", rowErr.Row, rowErr.Message)
		}
	}

	return nil
}
