package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vsinha/csatrack/pkg/application/services/projection"
	"github.com/vsinha/csatrack/pkg/domain/entities"
	"github.com/vsinha/csatrack/pkg/domain/services"
	"github.com/vsinha/csatrack/pkg/infrastructure/config"
	"github.com/vsinha/csatrack/pkg/infrastructure/logging"
	"github.com/vsinha/csatrack/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/csatrack/pkg/infrastructure/repositories/payload"
	"github.com/vsinha/csatrack/pkg/interfaces/cli/output"
)

// ReconcileOptions holds flags for the reconcile command
type ReconcileOptions struct {
	*RootOptions
	Input     string
	Shipments string
	Returns   string
	Now       string
	Customer  string
	SKUs      []string
	OutputDir string

	// Clock supplies the default as-of date; tests override it
	Clock func() time.Time
}

// NewReconcileCommand creates the reconcile command
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts, Clock: time.Now}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile a saved customer payload",
		Long: `Rebuild cohorts, replacement chains and orphan assignments from a payload
file and print the customer summary.

Example:
  csatrack reconcile --input st_marys.json --now 2024-06-01 --customer st_marys
  csatrack reconcile --shipments shipments.csv --returns returns.csv --sku EB-1990i --format csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Input, "input", "", "payload JSON file (- for stdin)")
	cmd.Flags().StringVar(&opts.Shipments, "shipments", "", "shipments CSV file (alternative to --input)")
	cmd.Flags().StringVar(&opts.Returns, "returns", "", "returns CSV file, used with --shipments")
	cmd.Flags().StringVar(&opts.Now, "now", "", "as-of date for expiry and metrics (default today)")
	cmd.Flags().StringVar(&opts.Customer, "customer", "", "clinic name shown in the summary")
	cmd.Flags().StringSliceVar(&opts.SKUs, "sku", nil, "target SKU (repeatable; default from config)")
	cmd.Flags().StringVar(&opts.OutputDir, "out", "", "also write output to this directory")
	cmd.MarkFlagsMutuallyExclusive("input", "shipments")

	return cmd
}

func runReconcile(cmd *cobra.Command, opts *ReconcileOptions) error {
	if opts.Input == "" && opts.Shipments == "" {
		return fmt.Errorf("one of --input or --shipments is required")
	}

	now := opts.Clock()
	if opts.Now != "" {
		parsed, ok := services.ParseFlexibleDate(opts.Now)
		if !ok {
			return fmt.Errorf("invalid --now date %q", opts.Now)
		}
		now = parsed
	}

	skus := opts.SKUs
	if len(skus) == 0 {
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return fmt.Errorf("no --sku given and config unusable: %w", err)
		}
		skus = cfg.TargetSKUs
	}

	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	logger, err := logging.New(level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var data *entities.CustomerPayload
	if opts.Input != "" {
		data, err = payload.NewFileLoader().Load(opts.Input)
	} else {
		data, err = csv.NewLoader().LoadPayload(opts.Shipments, opts.Returns)
	}
	if err != nil {
		return err
	}

	engine, err := newEngine(skus, logger)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := engine.Reconcile(cmd.Context(), data)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}
	elapsed := time.Since(start)
	logger.Info("reconciled payload",
		zap.Int("cohorts", len(result.Cohorts)),
		zap.Int("validated_chains", len(result.ValidatedChains)),
		zap.Int("orphan_chains", len(result.OrphanAssignments)),
		zap.Duration("took", elapsed),
	)

	summary := projection.Project(result, now, projection.Options{
		ClinicName: opts.Customer,
		Orders:     data.SalesOrders,
	})
	return output.Generate(cmd.OutOrStdout(), summary, output.Config{
		Format:    opts.Format,
		OutputDir: opts.OutputDir,
		Verbose:   opts.Verbose,
		Elapsed:   elapsed,
	})
}
