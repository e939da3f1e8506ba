package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/csatrack/pkg/application/dto"
)

func sampleSummary() *dto.CustomerSummary {
	validated := dto.ChainRecord{
		Kind:             "validated",
		SKU:              "EB-1990i",
		Serials:          []string{"A1", "A2"},
		Handoffs:         []dto.HandoffRecord{{ReturnedSerial: "A1", ReturnDate: "2024-02-20", ReplacementSerial: "A2", ReplacementShipDate: "2024-03-01"}},
		FinalStatus:      "inField",
		FinalStatusLabel: "In Field",
		StartSerial:      "A1",
		FinalSerial:      "A2",
		InitialShipDate:  "2024-01-05",
	}
	assigned := dto.ChainRecord{
		Kind:             "orphan",
		SKU:              "EB-1990i",
		Serials:          []string{"X1"},
		FinalStatus:      "returned_no_replacement_found",
		FinalStatusLabel: "Returned (No Replacement Found)",
		StartSerial:      "X1",
		FinalSerial:      "X1",
		InitialShipDate:  "2023-11-01",
		AssignedCohort:   "SO-A",
		AssignmentReason: "latest cohort started on or before 2023-11-01",
	}
	global := dto.ChainRecord{
		Kind:             "orphan",
		SKU:              "EB-1990i",
		Serials:          []string{"Y1"},
		FinalStatus:      "inField",
		FinalStatusLabel: "In Field",
		StartSerial:      "Y1",
		FinalSerial:      "Y1",
		InitialShipDate:  "2022-06-01",
	}

	return &dto.CustomerSummary{
		CustomerID:   "C-1",
		CustomerName: "St Marys Hospital",
		ClinicName:   "St Marys",
		AsOf:         "2024-06-01",
		Cohorts: []dto.CohortSummary{{
			ID:                   "SO-A",
			OrderID:              "SO-A",
			SKU:                  "EB-1990i",
			CSALength:            "1 Year",
			StartDate:            "2024-01-05",
			EndDate:              "2025-01-04",
			Status:               "active",
			ViewStatus:           "active",
			InitialUnits:         1,
			TotalCapacity:        4,
			ReplacementsUsed:     2,
			RemainingCapacity:    2,
			InFieldCount:         1,
			ActiveSerialNumbers:  []string{"A2"},
			ValidatedChains:      []dto.ChainRecord{validated},
			AssignedOrphanChains: []dto.ChainRecord{assigned},
		}},
		GlobalOrphans:  []dto.ChainRecord{global},
		Totals:         dto.ClinicTotals{TotalActiveGreen: 1, InFieldGlobalOrphansCount: 1, TotalInPossession: 2, TotalScopesUnderCSA: 1},
		InFieldSerials: []string{"A2", "Y1"},
		Metrics: dto.PerformanceMetrics{
			AccruedYears:  decimal.RequireFromString("0.41"),
			TotalReturns:  2,
			BreakRate:     decimal.RequireFromString("4.88"),
			Savings:       decimal.RequireFromString("2400"),
			ExtensionCost: decimal.RequireFromString("4800"),
		},
	}
}

func TestWriteCSV_Golden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleSummary(), Config{}))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "chains_csv", buf.Bytes())
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleSummary(), Config{}))
	out := buf.String()

	assert.Contains(t, out, "CSA Summary: St Marys (as of 2024-06-01)")
	assert.Contains(t, out, "Global orphans:     1 (1 in field)")
	assert.Contains(t, out, "[validated] A1 -> A2 -> In Field")
	assert.Contains(t, out, "[orphan] X1 -> Returned (No Replacement Found)")
	assert.Contains(t, out, "Y1 (shipped 2022-06-01) -> In Field")
	assert.Contains(t, out, "Break rate:      4.88")
	assert.Contains(t, out, "Savings:         $2400.00")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleSummary(), Config{}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "St Marys", decoded["clinic_name"])
	assert.Len(t, decoded["cohorts"], 1)
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, sampleSummary(), Config{Format: "csv", OutputDir: dir, Verbose: true}))

	written, err := os.ReadFile(filepath.Join(dir, "csa_chains.csv"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), string(written))
	assert.Contains(t, buf.String(), "Results saved to")

	assert.Error(t, Generate(&buf, sampleSummary(), Config{Format: "xml"}))
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, sampleSummary(), Config{}))
	out := buf.String()

	assert.Contains(t, out, "<title>CSA Summary: St Marys</title>")
	assert.Contains(t, out, `<td class="green">active</td>`)
	assert.Contains(t, out, "[validated] A1 → A2 → In Field")
	assert.Contains(t, out, "Y1 (shipped 2022-06-01) → In Field")
	assert.Contains(t, out, "$2400.00")
	assert.Contains(t, out, `id="summary-data"`)
}

func TestStatusClass(t *testing.T) {
	tests := map[string]string{
		"active":   "green",
		"warning":  "amber",
		"expired":  "red",
		"maxed":    "red",
		"retired":  "red",
		"replaced": "grey",
	}
	for status, want := range tests {
		if got := statusClass(status); got != want {
			t.Errorf("Expected %s for %s, got %s", want, status, got)
		}
	}
}
