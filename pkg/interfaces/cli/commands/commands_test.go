package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/csatrack/pkg/application/dto"
	"github.com/vsinha/csatrack/pkg/infrastructure/repositories/payload"
	testhelpers "github.com/vsinha/csatrack/pkg/infrastructure/testing"
)

const payloadJSON = `{
  "customer_id": "C-1",
  "sales_orders": [
    {
      "salesorder_number": "SO-1",
      "date": "2024-01-01",
      "line_items": [{"sku": "HIFCSA-1YR", "name": "CSA 1 Year", "quantity": 1, "rate": 4800}],
      "packages": [
        {"package_number": "PKG-1", "shipment_date": "2024-01-05",
         "detailed_line_items": [{"sku": "EB-1990i", "name": "Bronchoscope", "serial_numbers": ["S1"]}]}
      ]
    }
  ],
  "sales_returns": []
}`

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootRejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "reconcile", "--format", "xml", "--input", "x.json", "--sku", "EB-1990i")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestReconcileJSON(t *testing.T) {
	input := writeTemp(t, "payload.json", payloadJSON)

	out, err := execute(t, "reconcile",
		"--config", filepath.Join(t.TempDir(), "absent.yaml"),
		"--input", input,
		"--sku", "EB-1990i",
		"--now", "2024-06-01",
		"--customer", "st_marys",
		"--format", "json",
	)
	require.NoError(t, err)

	var summary dto.CustomerSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, "St Marys", summary.ClinicName)
	assert.Equal(t, "2024-06-01", summary.AsOf)
	assert.Equal(t, []string{"S1"}, summary.InFieldSerials)
	require.Len(t, summary.Cohorts, 1)
}

func TestReconcileReplacementScenario(t *testing.T) {
	input := filepath.Join(t.TempDir(), "scenario.json")
	require.NoError(t, payload.NewFileLoader().Save(input, testhelpers.BuildReplacementScenario("C-7")))

	out, err := execute(t, "reconcile", "--input", input, "--sku", testhelpers.ScopeSKU, "--now", "2024-06-01", "--format", "json")
	require.NoError(t, err)

	var summary dto.CustomerSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	require.Len(t, summary.Cohorts, 1)
	require.Len(t, summary.Cohorts[0].ValidatedChains, 1)
	assert.Equal(t, []string{"S1", "S2"}, summary.Cohorts[0].ValidatedChains[0].Serials)
	assert.Equal(t, []string{"S2"}, summary.InFieldSerials)
}

func TestReconcileCSVFromShipments(t *testing.T) {
	shipments := writeTemp(t, "shipments.csv",
		"order_number,order_date,customer_id,package_number,ship_date,sku,name,serial,quantity,rate\n"+
			"SO-1,2024-01-01,C-1,,,HIFCSA-1YR,CSA 1 Year,,1,4800\n"+
			"SO-1,2024-01-01,C-1,PKG-1,2024-01-05,EB-1990i,Bronchoscope,S1,,\n")

	out, err := execute(t, "reconcile", "--shipments", shipments, "--sku", "EB-1990i", "--now", "2024-06-01", "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "cohort_id,cohort_status")
	assert.Contains(t, out, "S1")
}

func TestReconcileRequiresInput(t *testing.T) {
	_, err := execute(t, "reconcile", "--sku", "EB-1990i")
	require.Error(t, err)
}

func TestReconcileRejectsBadDate(t *testing.T) {
	input := writeTemp(t, "payload.json", payloadJSON)
	_, err := execute(t, "reconcile", "--input", input, "--sku", "EB-1990i", "--now", "someday")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --now")
}

func TestWriteRunSummaryText(t *testing.T) {
	var buf bytes.Buffer
	summary := dto.RunSummary{Clinics: []dto.ClinicRun{
		{Clinic: "st_marys", ResultKey: "st_marys/j1.json", InField: 3},
		{Clinic: "northside", Error: "zoho unavailable"},
	}}
	require.NoError(t, writeRunSummary(&buf, summary, "text"))
	assert.Contains(t, buf.String(), "Reconciled 2 clinics")
	assert.Contains(t, buf.String(), "zoho unavailable")
}
