// Package audit finds registry records that share both CUIT and site and
// removes the ones the operator selects, never emptying a cluster.
package audit

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/order-convert/internal/company"
)

// ErrClusterEmptied rejects a selection that would delete every member of
// some cluster.
var ErrClusterEmptied = errors.New("audit: selection would delete every member of a cluster")

// Cluster is a group of two or more records with the same CUIT digits and
// site key. Members keep registry order.
type Cluster struct {
	ID      int
	CUIT    string
	Site    company.SiteKey
	Members []company.Record
}

// Report is the result of Analyze.
type Report struct {
	Clusters []Cluster
	// MultiSiteCUITs counts CUITs registered at more than one site.
	MultiSiteCUITs int
}

// Duplicates returns the number of records that sit in a cluster beyond its
// first member.
func (r Report) Duplicates() int {
	n := 0
	for _, c := range r.Clusters {
		n += len(c.Members) - 1
	}
	return n
}

// Analyze groups records by CUIT digits and then by site key. Records with
// no CUIT digits are never clustered.
func Analyze(records []company.Record) Report {
	type group struct {
		sites map[company.SiteKey][]company.Record
		order []company.SiteKey
	}
	byCUIT := make(map[string]*group)
	var cuitOrder []string

	sorted := make([]company.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Row < sorted[j].Row })

	for _, rec := range sorted {
		d := rec.Digits()
		if d == "" {
			continue
		}
		g, ok := byCUIT[d]
		if !ok {
			g = &group{sites: make(map[company.SiteKey][]company.Record)}
			byCUIT[d] = g
			cuitOrder = append(cuitOrder, d)
		}
		site := rec.Site()
		if _, seen := g.sites[site]; !seen {
			g.order = append(g.order, site)
		}
		g.sites[site] = append(g.sites[site], rec)
	}

	var rep Report
	for _, d := range cuitOrder {
		g := byCUIT[d]
		if len(g.order) > 1 {
			rep.MultiSiteCUITs++
		}
		for _, site := range g.order {
			members := g.sites[site]
			if len(members) < 2 {
				continue
			}
			rep.Clusters = append(rep.Clusters, Cluster{
				ID:      len(rep.Clusters) + 1,
				CUIT:    d,
				Site:    site,
				Members: members,
			})
		}
	}
	return rep
}

// Selection is a set of row ids marked for deletion.
type Selection map[int]bool

// Rows returns the selected row ids in ascending order.
func (s Selection) Rows() []int {
	rows := make([]int, 0, len(s))
	for row, on := range s {
		if on {
			rows = append(rows, row)
		}
	}
	sort.Ints(rows)
	return rows
}

// DefaultSelection marks every member of every cluster except the first.
func DefaultSelection(rep Report) Selection {
	sel := make(Selection)
	for _, c := range rep.Clusters {
		for _, m := range c.Members[1:] {
			sel[m.Row] = true
		}
	}
	return sel
}

// CheckSelection fails with ErrClusterEmptied if sel covers a whole cluster.
func CheckSelection(rep Report, sel Selection) error {
	for _, c := range rep.Clusters {
		kept := 0
		for _, m := range c.Members {
			if !sel[m.Row] {
				kept++
			}
		}
		if kept == 0 {
			return eris.Wrapf(ErrClusterEmptied, "audit: cluster %d (cuit %s)", c.ID, c.CUIT)
		}
	}
	return nil
}

// Deleter removes one registry record, taking a backup first.
type Deleter interface {
	Get(row int) (company.Record, bool)
	Delete(rec company.Record) (bool, error)
}

// ProgressFunc receives the number of processed deletions and the total.
type ProgressFunc func(processed, total int)

// Apply deletes the selected rows one at a time after checking that no
// cluster would be emptied. It stops at the first failure and reports how
// many rows were processed before it.
func Apply(reg Deleter, rep Report, sel Selection, progress ProgressFunc) (int, error) {
	if err := CheckSelection(rep, sel); err != nil {
		return 0, err
	}

	rows := sel.Rows()
	total := len(rows)
	processed := 0
	for _, row := range rows {
		rec, ok := reg.Get(row)
		if ok {
			if _, err := reg.Delete(rec); err != nil {
				return processed, eris.Wrapf(err, "audit: delete row %d", row)
			}
		} else {
			zap.L().Warn("audit: selected row no longer exists", zap.Int("row", row))
		}
		processed++
		if progress != nil {
			progress(processed, total)
		}
	}

	zap.L().Info("audit: deleted duplicates", zap.Int("processed", processed))
	return processed, nil
}

// Summary is a one-line description of rep.
func Summary(rep Report) string {
	return fmt.Sprintf("%d duplicate clusters (%d extra records); %d CUITs with several sites",
		len(rep.Clusters), rep.Duplicates(), rep.MultiSiteCUITs)
}
