package commands

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/vsinha/csatrack/pkg/interfaces/cli/output"
)

// RootOptions holds global flags for all commands
type RootOptions struct {
	ConfigPath string
	Format     string // text | json | csv | html
	Verbose    bool
}

// NewRootCommand creates the csatrack command tree
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "csatrack",
		Short: "Reconcile CSA replacement chains from sales orders and returns",
		Long: `csatrack rebuilds each customer's service-agreement cohorts and scope
replacement chains from raw sales order, package and return data.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(output.Formats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, output.Formats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "config.yaml", "path to YAML config (CSATRACK_CONFIG overrides)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|csv|html)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewFetchCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewRunAllCommand(opts))

	return cmd
}
