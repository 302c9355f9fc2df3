package cmd

import (
	"os"

	"fintrack-reconciliation-service/cmd/reconciler/config"
	"fintrack-reconciliation-service/internal/models"
	"fintrack-reconciliation-service/internal/reporter"
	"fintrack-reconciliation-service/internal/review"

	"github.com/spf13/cobra"
)

var (
	duplicatesOwnerID int64
	duplicatesTier    string
	duplicatesLimit   int
	duplicatesFormat  string
)

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "List records flagged as duplicates, grouped by confidence",
	Long: `Duplicates lists an owner's stored records that carry a duplicate score,
bucketed into high (76-100), medium (51-75) and low (21-50) confidence.

Examples:
  reconciler duplicates --owner 1
  reconciler duplicates --owner 1 --tier high --output-format json
  reconciler duplicates --owner 1 --limit 20`,
	RunE: runDuplicates,
}

func init() {
	rootCmd.AddCommand(duplicatesCmd)

	duplicatesCmd.Flags().Int64Var(&duplicatesOwnerID, "owner", 0, "owner whose duplicates to list (required)")
	duplicatesCmd.Flags().StringVar(&duplicatesTier, "tier", "", "limit to one tier: high, medium or low")
	duplicatesCmd.Flags().IntVar(&duplicatesLimit, "limit", 0, "cap the number of records per tier (0 = no cap)")
	duplicatesCmd.Flags().StringVarP(&duplicatesFormat, "output-format", "o", "text", "output format: text or json")

	duplicatesCmd.MarkFlagRequired("owner")
}

func runDuplicates(cmd *cobra.Command, args []string) error {
	stores, err := config.OpenStores(databasePath())
	if err != nil {
		return err
	}
	defer stores.Close()

	queue := review.NewQueue(stores.Gateway)
	out := reporter.NewReporter(os.Stdout, reporter.Format(duplicatesFormat))

	if duplicatesTier != "" {
		tier := review.Tier(duplicatesTier)
		records, err := queue.Duplicates(cmd.Context(), duplicatesOwnerID, tier, duplicatesLimit)
		if err != nil {
			os.Exit(NewCLIErrorHandler().HandleError(err))
		}
		report := &review.Report{
			OwnerID: duplicatesOwnerID,
			Tiers:   map[review.Tier][]*models.Record{},
		}
		if len(records) > 0 {
			report.Tiers[tier] = records
		}
		return out.ReportDuplicates(report)
	}

	report, err := queue.All(cmd.Context(), duplicatesOwnerID, duplicatesLimit)
	if err != nil {
		os.Exit(NewCLIErrorHandler().HandleError(err))
	}
	return out.ReportDuplicates(report)
}
