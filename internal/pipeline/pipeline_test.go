package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/order-convert/internal/company"
	"github.com/sells-group/order-convert/internal/model"
	"github.com/sells-group/order-convert/internal/normalize"
	"github.com/sells-group/order-convert/internal/validate"
	"github.com/sells-group/order-convert/pkg/cuit"
	"github.com/sells-group/order-convert/pkg/textnorm"
)

type fakeRegistry struct {
	records []company.Record
}

func (f *fakeRegistry) SearchByCUIT(id string) []company.Record {
	var out []company.Record
	for _, r := range f.records {
		if cuit.Equal(r.CUIT, id) {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeRegistry) SearchByName(name string) []company.Record {
	var out []company.Record
	for _, r := range f.records {
		if strings.Contains(textnorm.Key(r.Name), textnorm.Key(name)) {
			out = append(out, r)
		}
	}
	return out
}

func collect(events *[]Progress) ProgressFunc {
	return func(p Progress) { *events = append(*events, p) }
}

func TestOptions_TickCadence(t *testing.T) {
	var events []Progress
	opts := Options{Progress: collect(&events)}

	for i := 0; i < 600; i++ {
		opts.tick("x", i, 600)
	}

	require.Len(t, events, 4)
	assert.Equal(t, []int{1, 251, 501, 600}, []int{events[0].Done, events[1].Done, events[2].Done, events[3].Done})
	assert.Equal(t, 600, events[3].Total)
}

func TestOptions_TickCustomEveryAndSingleItem(t *testing.T) {
	var events []Progress
	opts := Options{ReportEvery: 2, Progress: collect(&events)}
	for i := 0; i < 5; i++ {
		opts.tick("x", i, 5)
	}
	assert.Len(t, events, 3) // 1, 3, 5

	events = nil
	opts.tick("x", 0, 1)
	require.Len(t, events, 1)
	assert.Equal(t, Progress{Phase: "x", Done: 1, Total: 1}, events[0])

	// Nil callback is allowed.
	Options{}.tick("x", 0, 1)
}

func TestAutoResolve(t *testing.T) {
	reg := &fakeRegistry{records: []company.Record{
		{Row: 2, CUIT: "30-71234567-8", CIIU: "1234", Name: "ACME SA", Street: "Calle 1", Locality: "LOMAS", Province: "BUENOS AIRES", Phone: "4444"},
		{Row: 3, CUIT: "30-71111111-2", Name: "GLOBEX SRL", Locality: "QUILMES"},
		{Row: 4, CUIT: "30-71111111-2", Name: "GLOBEX SRL", Locality: "BERAZATEGUI"},
	}}
	rows := []model.OrderRow{
		{EmployerCUIT: "30712345678", Employer: "acme", Locality: "otra", Phone: "", Email: "x@example.com"},
		{Employer: "Acme"},
		{EmployerCUIT: "30711111112"},
		{Employer: "desconocida"},
		{},
	}
	var events []Progress

	sum := AutoResolve(rows, reg, Options{Progress: collect(&events)})

	assert.Equal(t, ResolveSummary{ByCUIT: 1, ByName: 1, Unresolved: 3}, sum)
	assert.Equal(t, "30-71234567-8", rows[0].EmployerCUIT)
	assert.Equal(t, "ACME SA", rows[0].Employer)
	assert.Equal(t, "1234", rows[0].CIIU)
	assert.Equal(t, "LOMAS", rows[0].Locality)
	assert.Equal(t, "4444", rows[0].Phone)
	assert.Equal(t, "x@example.com", rows[0].Email, "registry has no email, row keeps its own")
	assert.Equal(t, "30-71234567-8", rows[1].EmployerCUIT)
	assert.Equal(t, "30711111112", rows[2].EmployerCUIT, "ambiguous match leaves the row alone")
	assert.Empty(t, rows[2].Employer)

	require.NotEmpty(t, events)
	assert.Equal(t, Progress{Phase: PhaseResolve, Done: 5, Total: 5}, events[len(events)-1])
}

func TestNormalizeAndValidate(t *testing.T) {
	rows := []model.OrderRow{
		{
			EmployerCUIT: "30-71234567-8", Employer: "12 - ACME SA", Locality: "(1832) Lomas - BA", Province: "bs as",
			Frequency: "a", WorkerCUIL: "20-12345678-9", WorkerName: "PEREZ", Risk: "RUIDO", Procedure: "Audiometría cod: 12",
			ErrorDescription: "stale",
		},
		{
			EmployerCUIT: "30-71234567-8", Employer: "ACME SA", Locality: "LOMAS", Province: "BA",
			Frequency: "A", WorkerName: "GOMEZ", Risk: "RUIDO", Procedure: "AUDIOMETRIA",
		},
	}
	var events []Progress

	sum := NormalizeAndValidate(rows, normalize.New(nil), validate.New(), Options{Progress: collect(&events)})

	assert.Equal(t, 1, sum.Invalid)
	assert.Equal(t, []string{"row 2: worker CUIL is required"}, sum.Errors)
	assert.Empty(t, rows[0].ErrorDescription)
	assert.Equal(t, "worker CUIL is required", rows[1].ErrorDescription)

	assert.Equal(t, "ACME SA", rows[0].Employer)
	assert.Equal(t, "12", rows[0].EstablishmentNumber)
	assert.Equal(t, "1832", rows[0].PostalCode)
	assert.Equal(t, "LOMAS", rows[0].Locality)
	assert.Equal(t, "BUENOS AIRES", rows[0].Province)
	assert.Equal(t, model.FrequencyAnnual, rows[0].Frequency)
	assert.Equal(t, "Audiometria", rows[0].Procedure)

	assert.Equal(t, []int{1}, Blocked(rows))
	require.Len(t, events, 2)
	assert.Equal(t, PhaseReview, events[1].Phase)
}

func TestNormalizeAndValidate_TruncationWarning(t *testing.T) {
	rows := []model.OrderRow{{
		EmployerCUIT: "30-71234567-8", Employer: "ACME", Locality: "X", Province: "BA", Frequency: "S",
		WorkerCUIL: "20-12345678-9", WorkerName: "P", Risk: strings.Repeat("r", 100), Procedure: "RX",
	}}

	sum := NormalizeAndValidate(rows, normalize.New(nil), validate.New(), Options{})

	require.Len(t, sum.Warnings, 1)
	assert.True(t, strings.HasPrefix(sum.Warnings[0], "row 1: risk truncated from 100 to 90"))
	assert.Zero(t, sum.Invalid)
}

func TestPropagateCompany_ByCUIT(t *testing.T) {
	rows := []model.OrderRow{
		{EmployerCUIT: "30-71234567-8", Employer: "ACME"},
		{EmployerCUIT: "30712345678", Employer: "ACME S.A."},
		{EmployerCUIT: "30-71111111-2", Employer: "ACME"},
		{Employer: "ACME"},
	}
	rec := company.Record{CUIT: "30-71234567-8", Name: "ACME SA", Locality: "LOMAS", Province: "BUENOS AIRES"}

	n := PropagateCompany(rows, 0, rec)

	assert.Equal(t, 1, n)
	assert.Equal(t, "ACME SA", rows[0].Employer)
	assert.Equal(t, "ACME SA", rows[1].Employer)
	assert.Equal(t, "ACME", rows[2].Employer)
	assert.Equal(t, "ACME", rows[3].Employer)
}

func TestPropagateCompany_ByNameWithoutCUIT(t *testing.T) {
	rows := []model.OrderRow{
		{Employer: "Acmé  sa"},
		{Employer: "ACME SA"},
		{EmployerCUIT: "30-71234567-8", Employer: "ACME SA"},
		{Employer: "GLOBEX"},
	}
	rec := company.Record{CUIT: "30-79999999-1", Name: "ACME SA"}

	n := PropagateCompany(rows, 0, rec)

	assert.Equal(t, 1, n)
	assert.Equal(t, "30-79999999-1", rows[0].EmployerCUIT)
	assert.Equal(t, "30-79999999-1", rows[1].EmployerCUIT)
	assert.Equal(t, "30-71234567-8", rows[2].EmployerCUIT)
	assert.Empty(t, rows[3].EmployerCUIT)

	assert.Zero(t, PropagateCompany(rows, 9, rec))
}

func TestApplyLookupResult(t *testing.T) {
	rows := []model.OrderRow{
		{Contract: "555", Employer: "ACME SA"},
		{Contract: "555", Employer: "acme sa"},
		{Contract: "556", Employer: "OTRA"},
	}

	n := ApplyLookupResult(rows, 0, "30712345678")

	assert.Equal(t, 1, n)
	assert.Equal(t, "30-71234567-8", rows[0].EmployerCUIT)
	assert.Equal(t, "30-71234567-8", rows[1].EmployerCUIT)
	assert.Empty(t, rows[2].EmployerCUIT)

	assert.Zero(t, ApplyLookupResult(rows, 2, "  "))
	assert.Empty(t, rows[2].EmployerCUIT)
}

func TestCompanyFromRow(t *testing.T) {
	row := model.OrderRow{EmployerCUIT: "30-71234567-8", Employer: "ACME", Street: "Calle 1", Locality: "LOMAS", Province: "BA", Email: "a@b.c"}

	rec := CompanyFromRow(row)

	assert.Equal(t, company.Record{CUIT: "30-71234567-8", Name: "ACME", Street: "Calle 1", Locality: "LOMAS", Province: "BA", Email: "a@b.c"}, rec)

	var back model.OrderRow
	ApplyCompany(&back, rec)
	assert.Equal(t, row, back)
}

func TestRun_StreamsProgressAndResult(t *testing.T) {
	job := Run(context.Background(), "count", func(report ProgressFunc) (int, error) {
		opts := Options{ReportEvery: 10, Progress: report}
		for i := 0; i < 25; i++ {
			opts.tick("count", i, 25)
		}
		return 25, nil
	})

	var done []int
	for p := range job.Events() {
		done = append(done, p.Done)
	}
	n, err := job.Wait()

	require.NoError(t, err)
	assert.Equal(t, 25, n)
	assert.Equal(t, []int{1, 11, 21, 25}, done)
}

func TestRun_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	job := Run(context.Background(), "fail", func(ProgressFunc) (string, error) {
		return "partial", boom
	})

	for range job.Events() { //nolint:revive
	}
	res, err := job.Wait()

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, res)
}

func TestRun_CancelledContextDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := Run(ctx, "quiet", func(report ProgressFunc) (int, error) {
		for i := 0; i < 100; i++ {
			report(Progress{Done: i + 1, Total: 100})
		}
		return 100, nil
	})

	n, err := job.Wait()
	require.NoError(t, err)
	assert.Equal(t, 100, n)
}
