package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vsinha/csatrack/pkg/application/dto"
)

// NewRunAllCommand creates the run-all command
func NewRunAllCommand(rootOpts *RootOptions) *cobra.Command {
	var notify bool

	cmd := &cobra.Command{
		Use:   "run-all",
		Short: "Reconcile every configured clinic once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer svc.Close(cmd.Context())

			summary, runErr := svc.runner.RunAll(cmd.Context())
			if err := writeRunSummary(cmd.OutOrStdout(), summary, rootOpts.Format); err != nil {
				return err
			}

			if notify && svc.notifier != nil {
				if err := svc.notifier.NotifyRun(cmd.Context(), summary); err != nil {
					svc.logger.Error("slack notification failed", zap.Error(err))
				}
			}

			if runErr != nil {
				return runErr
			}
			if summary.Failed() > 0 {
				return fmt.Errorf("%d of %d clinics failed", summary.Failed(), len(summary.Clinics))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&notify, "notify", true, "post the summary to Slack when configured")
	return cmd
}

func writeRunSummary(w io.Writer, summary dto.RunSummary, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Fprintf(w, "🏥 Reconciled %d clinics in %s\n", len(summary.Clinics), summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))
	for _, run := range summary.Clinics {
		if run.Error != "" {
			fmt.Fprintf(w, "  ❌ %-24s %s\n", run.Clinic, run.Error)
			continue
		}
		fmt.Fprintf(w, "  ✅ %-24s %s (in field %d, orphans %d)\n", run.Clinic, run.ResultKey, run.InField, run.GlobalOrphans)
	}
	return nil
}
