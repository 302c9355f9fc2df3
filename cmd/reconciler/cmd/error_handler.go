package cmd

import (
	"fmt"
	"os"

	"fintrack-reconciliation-service/pkg/errors"
	"fintrack-reconciliation-service/pkg/logger"

	"github.com/spf13/viper"
)

// Exit codes by failure class. 3 is reserved for check-sync's "not synced".
const (
	exitGeneric    = 1
	exitValidation = 2
	exitStorage    = 4
	exitLedger     = 5
	exitOracle     = 6
)

// CLIErrorHandler turns engine errors into user-facing messages and exit
// codes.
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a CLI error handler.
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints a user-friendly message for err and returns the exit
// code to use.
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}
	h.logger.WithError(err).Error("Command failed")

	e, ok := errors.AsError(err)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitGeneric
	}

	fmt.Fprintf(os.Stderr, "Error: %s\n", e.Message)
	if len(e.Context) > 0 {
		fmt.Fprintln(os.Stderr, "\nContext:")
		for key, value := range e.Context {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
		}
	}
	if help := categoryHelp(e.Category); help != "" {
		fmt.Fprintf(os.Stderr, "\n%s\n", help)
	}
	if h.verbose && e.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", e.Cause)
	}

	switch e.Category {
	case errors.CategoryValidation:
		return exitValidation
	case errors.CategoryStorage:
		return exitStorage
	case errors.CategoryLedger:
		return exitLedger
	case errors.CategoryOracle:
		return exitOracle
	}
	return exitGeneric
}

func categoryHelp(category errors.Category) string {
	switch category {
	case errors.CategoryValidation:
		return `Validation error help:
• Check that the batch file's items carry the fields their kind requires
• Dates must be parseable (YYYY-MM-DD or a common bank format)
• Amounts may include ₹ and thousands separators but must be numeric`

	case errors.CategoryStorage:
		return `Storage error help:
• The whole batch was rolled back; nothing was written
• Check the database file path, permissions and free disk space
• Re-run the same batch after fixing the problem, it is safe to repeat`

	case errors.CategoryLedger:
		return `Ledger error help:
• Sync tracking failed but entity data is unaffected
• Check the database file path and permissions
• The next run will redo the duplicate check for affected records`

	case errors.CategoryOracle:
		return `Oracle error help:
• Check FINTRACK_ORACLE_ENDPOINT and FINTRACK_ORACLE_API_KEY
• Near-miss records are treated as distinct while the oracle is down
• Use --no-oracle to silence escalation entirely`
	}
	return ""
}
