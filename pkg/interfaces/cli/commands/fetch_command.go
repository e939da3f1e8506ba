package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vsinha/csatrack/pkg/infrastructure/repositories/payload"
)

// FetchOptions holds flags for the fetch command
type FetchOptions struct {
	*RootOptions
	Clinic   string
	Contacts []string
	Out      string
}

// NewFetchCommand creates the fetch command
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FetchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download a clinic's orders and returns from Zoho into a payload file",
		Example: `  csatrack fetch --clinic st_marys --out data/st_marys.json
  csatrack fetch --contact 460000000012345 --out one.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Clinic, "clinic", "", "configured clinic group")
	cmd.Flags().StringSliceVar(&opts.Contacts, "contact", nil, "Zoho contact id (repeatable, instead of --clinic)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "payload file to write (required)")
	_ = cmd.MarkFlagRequired("out")
	cmd.MarkFlagsMutuallyExclusive("clinic", "contact")

	return cmd
}

func runFetch(cmd *cobra.Command, opts *FetchOptions) error {
	cfg, logger, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	defer logger.Sync()

	contacts := opts.Contacts
	if opts.Clinic != "" {
		ids, ok := cfg.ContactIDs(opts.Clinic)
		if !ok {
			return fmt.Errorf("unknown clinic %q (configured: %s)", opts.Clinic, strings.Join(cfg.Clinics(), ", "))
		}
		contacts = ids
	}
	if len(contacts) == 0 {
		return fmt.Errorf("one of --clinic or --contact is required")
	}

	client, err := newZohoClient(cfg, logger)
	if err != nil {
		return err
	}

	data, err := client.FetchCustomerPayload(cmd.Context(), contacts)
	if err != nil {
		return fmt.Errorf("fetching payload: %w", err)
	}
	if opts.Clinic != "" && data.CustomerName == "" {
		data.CustomerName = opts.Clinic
	}

	if err := payload.NewFileLoader().Save(opts.Out, data); err != nil {
		return err
	}
	logger.Info("payload saved",
		zap.String("path", opts.Out),
		zap.Int("sales_orders", len(data.SalesOrders)),
		zap.Int("sales_returns", len(data.SalesReturns)),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d sales orders and %d returns to %s\n", len(data.SalesOrders), len(data.SalesReturns), opts.Out)
	return nil
}
