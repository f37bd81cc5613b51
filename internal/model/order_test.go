package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFrequency(t *testing.T) {
	assert.Equal(t, FrequencyReconfirmation, ParseFrequency(" r "))
	assert.True(t, ParseFrequency("a").Known())
	assert.False(t, ParseFrequency("X").Known())
	assert.False(t, ParseFrequency("").Known())
}

func TestOrderRow_IsEmpty(t *testing.T) {
	assert.True(t, OrderRow{Frequency: FrequencyAnnual, Referrer: "agency"}.IsEmpty())
	assert.False(t, OrderRow{WorkerCUIL: "20-12345678-9"}.IsEmpty())
}

func TestNewImportResult(t *testing.T) {
	a := NewImportResult("a.csv")
	b := NewImportResult("a.csv")
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "a.csv", a.Source)
	assert.False(t, a.HasErrors())
}

func TestImportResult_Counts(t *testing.T) {
	r := &ImportResult{Rows: []OrderRow{
		{EmployerCUIT: "30-71234567-8", WorkerCUIL: "20111111112"},
		{EmployerCUIT: "30712345678", WorkerCUIL: "20-11111111-2"},
		{EmployerCUIT: "30-99999999-1", WorkerCUIL: "27222222223"},
		{EmployerCUIT: "", WorkerCUIL: ""},
	}}
	assert.Equal(t, 4, r.TotalRows())
	assert.Equal(t, 2, r.UniqueCompanies())
	assert.Equal(t, 2, r.UniqueWorkers())
}
