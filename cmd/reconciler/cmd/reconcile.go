package cmd

import (
	"fmt"
	"os"

	"fintrack-reconciliation-service/cmd/reconciler/config"
	"fintrack-reconciliation-service/internal/matcher"
	"fintrack-reconciliation-service/internal/oracle"
	"fintrack-reconciliation-service/internal/parsers"
	"fintrack-reconciliation-service/internal/reconciler"
	"fintrack-reconciliation-service/internal/reporter"

	"github.com/spf13/cobra"
)

var (
	inputFile       string
	forceRefresh    bool
	outputFormat    string
	windowMinutes   int
	amountTolerance float64
	dateTolerance   int
	noOracle        bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Ingest a batch file and deduplicate it against stored records",
	Long: `Reconcile parses a scraper export file, classifies every item against
the records already stored for its owner, and writes the accepted items in
one transaction. Records the sync ledger already knows are skipped unless
--force-refresh is given.

Examples:
  reconciler reconcile --input batch.json
  reconciler reconcile --input batch.json --force-refresh --output-format json
  reconciler reconcile --input batch.json --transaction-window 30 --no-oracle`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVarP(&inputFile, "input", "i", "", "batch file to ingest (required)")
	reconcileCmd.Flags().BoolVar(&forceRefresh, "force-refresh", false, "re-match records the ledger already knows")
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "o", "text", "output format: text or json")
	reconcileCmd.Flags().IntVar(&windowMinutes, "transaction-window", 0, "transaction duplicate window in minutes (default 60)")
	reconcileCmd.Flags().Float64Var(&amountTolerance, "amount-tolerance", -1, "near-miss amount tolerance in percent (default 10)")
	reconcileCmd.Flags().IntVar(&dateTolerance, "date-tolerance", -1, "near-miss date tolerance in days (default 31)")
	reconcileCmd.Flags().BoolVar(&noOracle, "no-oracle", false, "disable semantic escalation for near-miss EMIs")

	reconcileCmd.MarkFlagRequired("input")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	if !reporter.ValidFormat(reporter.Format(outputFormat)) {
		return fmt.Errorf("unknown output format %q (use text or json)", outputFormat)
	}

	batch, stats, err := parsers.NewBatchParser().ParseFile(inputFile)
	if err != nil {
		return err
	}
	if stats.HasErrors() {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", stats)
		for _, parseErr := range stats.Errors {
			fmt.Fprintf(os.Stderr, "  %v\n", parseErr)
		}
	}

	matchConfig, err := config.BuildMatcherConfig(windowMinutes, amountTolerance, dateTolerance, noOracle)
	if err != nil {
		return err
	}

	var orc oracle.Oracle
	if oracleConfig := config.BuildOracleConfig(); oracleConfig.Configured() && !noOracle {
		orc = oracle.NewClient(oracleConfig)
	}

	stores, err := config.OpenStores(databasePath())
	if err != nil {
		return err
	}
	defer stores.Close()

	engine := matcher.NewEngine(matchConfig, orc)
	orchestrator := reconciler.NewOrchestrator(engine, reconciler.SQLStorage{Gateway: stores.Gateway}, stores.Ledger)

	outcome, err := orchestrator.Reconcile(cmd.Context(), batch.OwnerID, batch.Items,
		reconciler.Options{ForceRefresh: forceRefresh})
	if outcome != nil {
		if reportErr := reporter.NewReporter(os.Stdout, reporter.Format(outputFormat)).ReportOutcome(outcome); reportErr != nil {
			return reportErr
		}
	}
	if err != nil {
		os.Exit(NewCLIErrorHandler().HandleError(err))
	}
	return nil
}
