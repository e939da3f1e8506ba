package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vsinha/csatrack/pkg/application/dto"
	"github.com/vsinha/csatrack/pkg/application/services/projection"
	"github.com/vsinha/csatrack/pkg/domain/entities"
)

// Formats lists the supported output formats
var Formats = []string{"text", "json", "csv", "html"}

// Config holds configuration for output generation
type Config struct {
	Format    string
	OutputDir string // when set, output is also written to a file here
	Verbose   bool
	Elapsed   time.Duration
}

// Generate writes summary to w in the configured format, and to OutputDir when set
func Generate(w io.Writer, summary *dto.CustomerSummary, config Config) error {
	var render func(io.Writer, *dto.CustomerSummary, Config) error
	var filename string
	switch config.Format {
	case "text":
		render, filename = WriteText, "csa_summary.txt"
	case "json":
		render, filename = WriteJSON, "csa_summary.json"
	case "csv":
		render, filename = WriteCSV, "csa_chains.csv"
	case "html":
		render, filename = WriteHTML, "csa_summary.html"
	default:
		return fmt.Errorf("unsupported output format: %s", config.Format)
	}

	if err := render(w, summary, config); err != nil {
		return err
	}
	if config.OutputDir == "" {
		return nil
	}

	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(config.OutputDir, filename)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	if err := render(file, summary, config); err != nil {
		return err
	}
	if config.Verbose {
		fmt.Fprintf(w, "💾 Results saved to: %s\n", path)
	}
	return nil
}

// WriteText renders a human-readable summary
func WriteText(w io.Writer, s *dto.CustomerSummary, config Config) error {
	title := s.ClinicName
	if title == "" {
		title = s.CustomerName
	}
	fmt.Fprintf(w, "📊 CSA Summary: %s (as of %s)\n", title, s.AsOf)
	fmt.Fprintf(w, "%s\n\n", strings.Repeat("=", 40))

	fmt.Fprintf(w, "Active (green):     %d\n", s.Totals.TotalActiveGreen)
	fmt.Fprintf(w, "Expired (red):      %d\n", s.Totals.TotalExpiredRed)
	fmt.Fprintf(w, "Global orphans:     %d (%d in field)\n", len(s.GlobalOrphans), s.Totals.InFieldGlobalOrphansCount)
	fmt.Fprintf(w, "In possession:      %d\n", s.Totals.TotalInPossession)
	if config.Verbose && config.Elapsed > 0 {
		fmt.Fprintf(w, "Reconcile time:     %v\n", config.Elapsed)
	}
	fmt.Fprintln(w)

	if len(s.Cohorts) > 0 {
		fmt.Fprintf(w, "📋 Cohorts:\n")
		fmt.Fprintf(w, "%-18s %-10s %-6s %-12s %-12s %-8s %-9s %-8s %-8s\n",
			"Cohort", "SKU", "Plan", "Start", "End", "Status", "Capacity", "Used", "InField")
		fmt.Fprintf(w, "%-18s %-10s %-6s %-12s %-12s %-8s %-9s %-8s %-8s\n",
			"------------------", "----------", "------", "------------", "------------", "--------", "---------", "--------", "--------")
		for _, c := range s.Cohorts {
			fmt.Fprintf(w, "%-18s %-10s %-6s %-12s %-12s %-8s %-9d %-8d %-8d\n",
				c.ID, c.SKU, c.CSALength, dash(c.StartDate), dash(c.EndDate), c.Status,
				c.TotalCapacity, c.ReplacementsUsed, c.InFieldCount)
		}
		fmt.Fprintln(w)

		for _, c := range s.Cohorts {
			chains := append(append([]dto.ChainRecord(nil), c.ValidatedChains...), c.AssignedOrphanChains...)
			if len(chains) == 0 {
				continue
			}
			fmt.Fprintf(w, "🔗 %s chains:\n", c.ID)
			for _, chain := range chains {
				fmt.Fprintf(w, "  [%s] %s -> %s\n", chain.Kind, strings.Join(chain.Serials, " -> "), chain.FinalStatusLabel)
			}
			fmt.Fprintln(w)
		}
	}

	if len(s.GlobalOrphans) > 0 {
		fmt.Fprintf(w, "⚠️  Global orphans:\n")
		for _, chain := range s.GlobalOrphans {
			fmt.Fprintf(w, "  %s (shipped %s) -> %s\n", strings.Join(chain.Serials, " -> "), dash(chain.InitialShipDate), chain.FinalStatusLabel)
		}
		fmt.Fprintln(w)
	}

	m := s.Metrics
	fmt.Fprintf(w, "📈 Metrics:\n")
	fmt.Fprintf(w, "  Accrued years:   %s\n", m.AccruedYears.StringFixed(2))
	fmt.Fprintf(w, "  Total returns:   %d\n", m.TotalReturns)
	fmt.Fprintf(w, "  Break rate:      %s\n", m.BreakRate.StringFixed(2))
	fmt.Fprintf(w, "  Savings:         $%s\n", m.Savings.StringFixed(2))
	fmt.Fprintf(w, "  Extension cost:  $%s\n", m.ExtensionCost.StringFixed(2))
	return nil
}

// WriteJSON renders the summary as indented JSON
func WriteJSON(w io.Writer, s *dto.CustomerSummary, _ Config) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

var chainHeader = []string{
	"cohort_id", "cohort_status", "chain_kind", "chain_status", "position", "chain_length",
	"serial", "unit_status", "replacement_date", "assignment_reason",
}

// WriteCSV exports one row per unit of every chain. Global orphans have an empty cohort id.
func WriteCSV(w io.Writer, s *dto.CustomerSummary, _ Config) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(chainHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	writeChain := func(cohortID, cohortStatus string, chain dto.ChainRecord) error {
		for i, serial := range chain.Serials {
			unitStatus, replacementDate := projection.UnitReplaced, ""
			switch {
			case i < len(chain.Handoffs):
				replacementDate = chain.Handoffs[i].ReplacementShipDate
			case entities.ChainStatus(chain.FinalStatus).IsInField():
				unitStatus = projection.UnitActive
			default:
				unitStatus = projection.UnitRetired
			}
			row := []string{
				cohortID, cohortStatus, chain.Kind, chain.FinalStatus,
				strconv.Itoa(i + 1), strconv.Itoa(len(chain.Serials)),
				serial, unitStatus, replacementDate, chain.AssignmentReason,
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
		return nil
	}

	for _, c := range s.Cohorts {
		for _, chain := range c.ValidatedChains {
			if err := writeChain(c.ID, c.Status, chain); err != nil {
				return err
			}
		}
		for _, chain := range c.AssignedOrphanChains {
			if err := writeChain(c.ID, c.Status, chain); err != nil {
				return err
			}
		}
	}
	for _, chain := range s.GlobalOrphans {
		if err := writeChain("", "", chain); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
