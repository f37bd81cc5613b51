package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/order-convert/internal/company"
	"github.com/sells-group/order-convert/internal/config"
	"github.com/sells-group/order-convert/internal/fetcher"
)

func seedRegistry(t *testing.T, c *config.Config, rows ...[]string) {
	t.Helper()
	all := append([][]string{{"CUIT", "CIIU", "Empleador", "Calle", "CodPostal", "Localidad", "Provincia", "Telefono", "Fax", "Mail"}}, rows...)
	require.NoError(t, fetcher.WriteWorkbook(c.Registry.Path, fetcher.Sheet{Name: company.SheetName, Rows: all}))
}

func TestFormatRecords(t *testing.T) {
	var buf bytes.Buffer
	formatRecords(&buf, []company.Record{acmeMunro, acmePilar})

	output := buf.String()
	assert.Contains(t, output, "ROW")
	assert.Contains(t, output, "CUIT")
	assert.Contains(t, output, "30-71234567-8")
	assert.Contains(t, output, "PILAR")
}

func TestCompaniesList(t *testing.T) {
	c := testConfig(t)
	seedRegistry(t, c,
		[]string{"30-71234567-8", "", "ACME SA", "Calle 1", "", "MUNRO", "BUENOS AIRES", "", "", ""},
		[]string{"33-99999999-9", "", "Frigorifico Sur", "Av. Mitre 10", "", "AVELLANEDA", "BUENOS AIRES", "", "", ""},
	)
	var out bytes.Buffer
	companiesListCmd.SetOut(&out)

	require.NoError(t, companiesListCmd.RunE(companiesListCmd, nil))

	assert.Contains(t, out.String(), "ACME SA")
	assert.Contains(t, out.String(), "Frigorifico Sur")
}

func TestCompaniesSearch(t *testing.T) {
	c := testConfig(t)
	seedRegistry(t, c,
		[]string{"30-71234567-8", "", "ACME SA", "Calle 1", "", "MUNRO", "BUENOS AIRES", "", "", ""},
		[]string{"33-99999999-9", "", "Frigorifico Sur", "Av. Mitre 10", "", "AVELLANEDA", "BUENOS AIRES", "", "", ""},
	)

	var out bytes.Buffer
	companiesSearchCmd.SetOut(&out)
	require.NoError(t, companiesSearchCmd.RunE(companiesSearchCmd, []string{"frigorífico"}))
	assert.Contains(t, out.String(), "Frigorifico Sur")
	assert.NotContains(t, out.String(), "ACME SA")

	out.Reset()
	require.NoError(t, companiesSearchCmd.RunE(companiesSearchCmd, []string{"nadie"}))
	assert.Contains(t, out.String(), "No companies found.")
}

func setSaveFlags(t *testing.T, rec company.Record, onConflict string) {
	t.Helper()
	oldRec, oldMode := saveRecord, saveOnConflict
	t.Cleanup(func() { saveRecord, saveOnConflict = oldRec, oldMode })
	saveRecord, saveOnConflict = rec, onConflict
}

func TestCompaniesSave_NewAndConflict(t *testing.T) {
	c := testConfig(t)
	companiesSaveCmd.SetContext(context.Background())

	var out bytes.Buffer
	companiesSaveCmd.SetOut(&out)
	setSaveFlags(t, company.Record{CUIT: "30712345678", Name: "ACME SA", Street: "Calle 1", Locality: "MUNRO", Province: "BUENOS AIRES"}, "ask")
	require.NoError(t, companiesSaveCmd.RunE(companiesSaveCmd, nil))
	assert.Contains(t, out.String(), "Saved as row 2.")

	// Same CUIT at another address: the operator keeps it as a new record.
	out.Reset()
	companiesSaveCmd.SetIn(strings.NewReader("k\n"))
	saveRecord = company.Record{CUIT: "30-71234567-8", Name: "ACME SA", Street: "Ruta 8", Locality: "PILAR", Province: "BUENOS AIRES"}
	require.NoError(t, companiesSaveCmd.RunE(companiesSaveCmd, nil))
	assert.Contains(t, out.String(), "registered at other addresses")
	assert.Contains(t, out.String(), "Saved as row 3.")

	// The answer was remembered for that address: no prompt this time.
	out.Reset()
	companiesSaveCmd.SetIn(strings.NewReader(""))
	require.NoError(t, companiesSaveCmd.RunE(companiesSaveCmd, nil))
	assert.NotContains(t, out.String(), "registered at")
	assert.Contains(t, out.String(), "Saved as row 4.")

	reg, err := company.Open(c.Registry.Path)
	require.NoError(t, err)
	assert.Equal(t, 3, reg.Len())
}

func TestCompaniesSave_IgnoreSkips(t *testing.T) {
	c := testConfig(t)
	seedRegistry(t, c, []string{"30-71234567-8", "", "ACME SA", "Calle 1", "", "MUNRO", "BUENOS AIRES", "", "", ""})
	companiesSaveCmd.SetContext(context.Background())
	var out bytes.Buffer
	companiesSaveCmd.SetOut(&out)
	setSaveFlags(t, company.Record{CUIT: "30712345678", Name: "ACME", Street: "Ruta 8", Locality: "PILAR", Province: "BUENOS AIRES"}, "ignore")

	require.NoError(t, companiesSaveCmd.RunE(companiesSaveCmd, nil))

	assert.Contains(t, out.String(), "Not saved.")
}

func TestCompaniesSave_RequiresName(t *testing.T) {
	testConfig(t)
	setSaveFlags(t, company.Record{CUIT: "30712345678"}, "keep")

	err := companiesSaveCmd.RunE(companiesSaveCmd, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "--name is required")
}

func TestCompaniesDelete(t *testing.T) {
	c := testConfig(t)
	seedRegistry(t, c,
		[]string{"30-71234567-8", "", "ACME SA", "Calle 1", "", "MUNRO", "BUENOS AIRES", "", "", ""},
		[]string{"33-99999999-9", "", "Frigorifico Sur", "Av. Mitre 10", "", "AVELLANEDA", "BUENOS AIRES", "", "", ""},
	)
	old := deleteRow
	defer func() { deleteRow = old }()

	var out bytes.Buffer
	companiesDeleteCmd.SetOut(&out)
	deleteRow = 3
	require.NoError(t, companiesDeleteCmd.RunE(companiesDeleteCmd, nil))
	assert.Contains(t, out.String(), "Deleted row 3 (Frigorifico Sur).")

	reg, err := company.Open(c.Registry.Path)
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())

	backups, err := filepath.Glob(filepath.Join(filepath.Dir(c.Registry.Path), "*backup*"))
	require.NoError(t, err)
	assert.NotEmpty(t, backups)

	deleteRow = 9
	err = companiesDeleteCmd.RunE(companiesDeleteCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 9 not found")
}
