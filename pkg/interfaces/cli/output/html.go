package output

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/vsinha/csatrack/pkg/application/dto"
	"github.com/vsinha/csatrack/pkg/application/services/projection"
)

//go:embed templates/*.html
var templateFS embed.FS

// ReportData is everything the customer report template renders
type ReportData struct {
	*dto.CustomerSummary
	Title       string
	DataJSON    template.JS
	Elapsed     string
	GeneratedAt string
}

var reportFuncs = template.FuncMap{
	"join":        strings.Join,
	"dash":        dash,
	"statusClass": statusClass,
	"chains": func(c dto.CohortSummary) []dto.ChainRecord {
		return append(append([]dto.ChainRecord(nil), c.ValidatedChains...), c.AssignedOrphanChains...)
	},
}

var reportTemplate = template.Must(template.New("summary.html").Funcs(reportFuncs).ParseFS(templateFS, "templates/summary.html"))

// WriteHTML renders a standalone HTML report for one customer
func WriteHTML(w io.Writer, s *dto.CustomerSummary, config Config) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal report data: %w", err)
	}

	title := s.ClinicName
	if title == "" {
		title = s.CustomerName
	}

	report := &ReportData{
		CustomerSummary: s,
		Title:           title,
		DataJSON:        template.JS(data),
		GeneratedAt:     time.Now().Format("2006-01-02 15:04:05"),
	}
	if config.Elapsed > 0 {
		report.Elapsed = config.Elapsed.Round(time.Microsecond).String()
	}

	if err := reportTemplate.Execute(w, report); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

// statusClass maps cohort and unit statuses onto the report's colour classes.
// Unit "active" shares its value with the cohort status.
func statusClass(status string) string {
	switch status {
	case projection.StatusActive:
		return "green"
	case projection.StatusWarning:
		return "amber"
	case projection.StatusExpired, projection.StatusMaxed, projection.UnitRetired:
		return "red"
	default:
		return "grey"
	}
}
