// Package reporter renders reconciliation outcomes, sync state and review
// queues for the CLI, as human-readable text or JSON.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"fintrack-reconciliation-service/internal/ledger"
	"fintrack-reconciliation-service/internal/models"
	"fintrack-reconciliation-service/internal/reconciler"
	"fintrack-reconciliation-service/internal/review"
)

// Format selects the output rendering.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ValidFormat reports whether f is a supported output format.
func ValidFormat(f Format) bool {
	return f == FormatText || f == FormatJSON
}

// Reporter writes reports to a single destination in one format.
type Reporter struct {
	w      io.Writer
	format Format
}

// NewReporter creates a reporter. An unknown format falls back to text.
func NewReporter(w io.Writer, format Format) *Reporter {
	if !ValidFormat(format) {
		format = FormatText
	}
	return &Reporter{w: w, format: format}
}

// ReportOutcome renders one reconciliation batch result.
func (r *Reporter) ReportOutcome(outcome *reconciler.Outcome) error {
	if r.format == FormatJSON {
		return r.writeJSON(outcome)
	}

	fmt.Fprintf(r.w, "Batch %s (owner %d) finished in %s\n",
		outcome.BatchID, outcome.OwnerID, outcome.Duration().Round(time.Millisecond))
	fmt.Fprintf(r.w, "  created: %d  updated: %d  skipped: %d  failed: %d\n",
		len(outcome.Created), len(outcome.Updated), len(outcome.Skipped), len(outcome.Failed))

	if len(outcome.Skipped) > 0 {
		fmt.Fprintln(r.w, "\nSkipped items:")
		for _, item := range outcome.Skipped {
			if item.Score > 0 {
				fmt.Fprintf(r.w, "  - %s (%s, score %d)\n", item.Record, item.Reason, item.Score)
			} else {
				fmt.Fprintf(r.w, "  - %s (%s)\n", item.Record, item.Reason)
			}
		}
	}
	if len(outcome.Failed) > 0 {
		fmt.Fprintln(r.w, "\nFailed items:")
		for _, item := range outcome.Failed {
			fmt.Fprintf(r.w, "  - %s: %s\n", item.Record.Kind, item.Reason)
		}
	}
	return nil
}

// ReportSyncStatus renders an owner's ledger summary.
func (r *Reporter) ReportSyncStatus(ownerID int64, statuses []ledger.SourceStatus) error {
	if r.format == FormatJSON {
		return r.writeJSON(map[string]interface{}{
			"owner_id": ownerID,
			"statuses": statuses,
		})
	}

	if len(statuses) == 0 {
		fmt.Fprintf(r.w, "Owner %d has no synced records\n", ownerID)
		return nil
	}

	fmt.Fprintf(r.w, "Sync status for owner %d:\n", ownerID)
	tw := tabwriter.NewWriter(r.w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATA TYPE\tSOURCE\tRECORDS\tLAST SYNC")
	for _, s := range statuses {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n",
			s.DataType, s.Source, s.Count, s.LastSync.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

// ReportCheckSync renders which of the checked identifiers are synced.
func (r *Reporter) ReportCheckSync(dataType models.DataType, source string, synced []*ledger.Entry, notSynced []string) error {
	if r.format == FormatJSON {
		syncedIDs := make([]string, 0, len(synced))
		for _, entry := range synced {
			syncedIDs = append(syncedIDs, entry.SourceIdentifier)
		}
		return r.writeJSON(map[string]interface{}{
			"data_type":      dataType,
			"source":         source,
			"already_synced": syncedIDs,
			"not_synced":     notSynced,
			"entries":        synced,
		})
	}

	for _, entry := range synced {
		fmt.Fprintf(r.w, "%s %q from %s: synced at %s\n",
			dataType, entry.SourceIdentifier, source, entry.SyncedAt.Format("2006-01-02 15:04:05"))
	}
	for _, identifier := range notSynced {
		fmt.Fprintf(r.w, "%s %q from %s: not synced\n", dataType, identifier, source)
	}
	return nil
}

// ReportDuplicates renders the review queue grouped by confidence tier.
func (r *Reporter) ReportDuplicates(report *review.Report) error {
	if r.format == FormatJSON {
		return r.writeJSON(report)
	}

	if report.Total() == 0 {
		fmt.Fprintf(r.w, "Owner %d has no flagged duplicates\n", report.OwnerID)
		return nil
	}

	fmt.Fprintf(r.w, "Flagged duplicates for owner %d (%d total):\n", report.OwnerID, report.Total())
	for _, tier := range review.AllTiers() {
		records := report.Tiers[tier]
		if len(records) == 0 {
			continue
		}
		fmt.Fprintf(r.w, "\n%s confidence (%d):\n", tier, len(records))
		for _, record := range records {
			fmt.Fprintf(r.w, "  [%3d] %s\n", record.DuplicateScore, record)
		}
	}
	return nil
}

func (r *Reporter) writeJSON(v interface{}) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(r.w, string(encoded))
	return err
}
