package audit

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/order-convert/internal/company"
)

func sampleRecords() []company.Record {
	return []company.Record{
		{Row: 2, CUIT: "30-71234567-8", Name: "ACME SA", Street: "Calle 1", Locality: "MUNRO", Province: "BUENOS AIRES"},
		{Row: 3, CUIT: "30712345678", Name: "ACME", Street: "calle 1", Locality: "Munro", Province: "buenos aires"},
		{Row: 4, CUIT: "30712345678", Name: "ACME SA", Street: "Ruta 8", Locality: "PILAR", Province: "BUENOS AIRES"},
		{Row: 5, CUIT: "30-71234567-8", Name: "ACME S.A.", Street: "Calle 1", Locality: "MUNRO", Province: "BUENOS AIRES"},
		{Row: 6, CUIT: "", Name: "Sin CUIT", Street: "X", Locality: "Y", Province: "Z"},
		{Row: 7, CUIT: "", Name: "Sin CUIT", Street: "X", Locality: "Y", Province: "Z"},
		{Row: 8, CUIT: "33999999999", Name: "Sur", Street: "Mitre 10", Locality: "AVELLANEDA"},
	}
}

func TestAnalyze(t *testing.T) {
	rep := Analyze(sampleRecords())

	require.Len(t, rep.Clusters, 1)
	c := rep.Clusters[0]
	assert.Equal(t, 1, c.ID)
	assert.Equal(t, "30712345678", c.CUIT)
	require.Len(t, c.Members, 3)
	assert.Equal(t, []int{2, 3, 5}, []int{c.Members[0].Row, c.Members[1].Row, c.Members[2].Row})
	assert.Equal(t, 1, rep.MultiSiteCUITs)
	assert.Equal(t, 2, rep.Duplicates())
}

func TestAnalyze_OrderIndependentOfInput(t *testing.T) {
	recs := sampleRecords()
	reversed := make([]company.Record, len(recs))
	for i, r := range recs {
		reversed[len(recs)-1-i] = r
	}
	assert.Equal(t, Analyze(recs), Analyze(reversed))
}

func TestAnalyze_Empty(t *testing.T) {
	rep := Analyze(nil)
	assert.Empty(t, rep.Clusters)
	assert.Zero(t, rep.MultiSiteCUITs)
}

func TestDefaultSelection(t *testing.T) {
	rep := Analyze(sampleRecords())
	sel := DefaultSelection(rep)
	assert.Equal(t, []int{3, 5}, sel.Rows())
	assert.NoError(t, CheckSelection(rep, sel))
}

func TestCheckSelection_RejectsEmptiedCluster(t *testing.T) {
	rep := Analyze(sampleRecords())
	sel := Selection{2: true, 3: true, 5: true}
	err := CheckSelection(rep, sel)
	assert.ErrorIs(t, err, ErrClusterEmptied)

	sel[2] = false
	assert.NoError(t, CheckSelection(rep, sel))
}

type fakeDeleter struct {
	records map[int]company.Record
	failAt  int
	deleted []int
}

func (f *fakeDeleter) Get(row int) (company.Record, bool) {
	r, ok := f.records[row]
	return r, ok
}

func (f *fakeDeleter) Delete(rec company.Record) (bool, error) {
	if rec.Row == f.failAt {
		return false, errors.New("disk full")
	}
	delete(f.records, rec.Row)
	f.deleted = append(f.deleted, rec.Row)
	return true, nil
}

func newFake(recs []company.Record) *fakeDeleter {
	f := &fakeDeleter{records: make(map[int]company.Record)}
	for _, r := range recs {
		f.records[r.Row] = r
	}
	return f
}

func TestApply_ReportsProgress(t *testing.T) {
	recs := sampleRecords()
	rep := Analyze(recs)
	del := newFake(recs)

	var events [][2]int
	n, err := Apply(del, rep, DefaultSelection(rep), func(p, total int) {
		events = append(events, [2]int{p, total})
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{3, 5}, del.deleted)
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, events)
}

func TestApply_RejectsBeforeDeleting(t *testing.T) {
	recs := sampleRecords()
	rep := Analyze(recs)
	del := newFake(recs)

	n, err := Apply(del, rep, Selection{2: true, 3: true, 5: true}, nil)
	assert.ErrorIs(t, err, ErrClusterEmptied)
	assert.Zero(t, n)
	assert.Empty(t, del.deleted)
}

func TestApply_StopsAtFailure(t *testing.T) {
	recs := sampleRecords()
	rep := Analyze(recs)
	del := newFake(recs)
	del.failAt = 5

	n, err := Apply(del, rep, DefaultSelection(rep), nil)
	assert.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int{3}, del.deleted)
}

func TestApply_AgainstRegistry(t *testing.T) {
	reg, err := company.Open(filepath.Join(t.TempDir(), "Empresas.xlsx"))
	require.NoError(t, err)
	for _, r := range sampleRecords() {
		r.Row = 0
		_, err := reg.Save(r, true)
		require.NoError(t, err)
	}

	rep := Analyze(reg.All())
	require.Len(t, rep.Clusters, 1)

	n, err := Apply(reg, rep, DefaultSelection(rep), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 5, reg.Len())
	assert.Empty(t, Analyze(reg.All()).Clusters)
}

func TestSummary(t *testing.T) {
	s := Summary(Analyze(sampleRecords()))
	assert.Contains(t, s, "1 duplicate clusters")
	assert.Contains(t, s, "2 extra records")
}
