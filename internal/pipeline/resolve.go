package pipeline

import (
	"strings"

	"github.com/sells-group/order-convert/internal/company"
	"github.com/sells-group/order-convert/internal/model"
	"github.com/sells-group/order-convert/pkg/cuit"
	"github.com/sells-group/order-convert/pkg/textnorm"
)

// PhaseResolve names the auto-resolution phase in progress events.
const PhaseResolve = "resolve"

// CompanySearcher finds registry records.
type CompanySearcher interface {
	SearchByCUIT(id string) []company.Record
	SearchByName(name string) []company.Record
}

// ResolveSummary counts how rows were matched against the registry.
type ResolveSummary struct {
	ByCUIT     int `json:"by_cuit"`
	ByName     int `json:"by_name"`
	Unresolved int `json:"unresolved"`
}

// AutoResolve fills employer data from the registry for every row with a
// unique match: by CUIT when the row has one, otherwise by employer name.
// Ambiguous and unknown rows are left for review.
func AutoResolve(rows []model.OrderRow, reg CompanySearcher, opts Options) ResolveSummary {
	var sum ResolveSummary
	for i := range rows {
		row := &rows[i]
		switch {
		case strings.TrimSpace(row.EmployerCUIT) != "":
			if m := reg.SearchByCUIT(row.EmployerCUIT); len(m) == 1 {
				mergeCompany(row, m[0])
				sum.ByCUIT++
			} else {
				sum.Unresolved++
			}
		case strings.TrimSpace(row.Employer) != "":
			if m := reg.SearchByName(row.Employer); len(m) == 1 {
				mergeCompany(row, m[0])
				sum.ByName++
			} else {
				sum.Unresolved++
			}
		default:
			sum.Unresolved++
		}
		opts.tick(PhaseResolve, i, len(rows))
	}
	return sum
}

// mergeCompany lets the registry win on identity fields and fills the
// contact fields it has.
func mergeCompany(row *model.OrderRow, rec company.Record) {
	row.EmployerCUIT = rec.CUIT
	row.CIIU = rec.CIIU
	row.Employer = rec.Name
	row.Street = rec.Street
	fill(&row.PostalCode, rec.PostalCode)
	fill(&row.Locality, rec.Locality)
	fill(&row.Province, rec.Province)
	fill(&row.Phone, rec.Phone)
	fill(&row.Fax, rec.Fax)
	fill(&row.Email, rec.Email)
}

func fill(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

// ApplyCompany overwrites the employer block of row with rec, as when a
// reviewer picks a registry record by hand.
func ApplyCompany(row *model.OrderRow, rec company.Record) {
	row.EmployerCUIT = rec.CUIT
	row.CIIU = rec.CIIU
	row.Employer = rec.Name
	row.Street = rec.Street
	row.PostalCode = rec.PostalCode
	row.Locality = rec.Locality
	row.Province = rec.Province
	row.Phone = rec.Phone
	row.Fax = rec.Fax
	row.Email = rec.Email
}

// CompanyFromRow builds the registry record described by a row's employer
// block.
func CompanyFromRow(row model.OrderRow) company.Record {
	return company.Record{
		CUIT:       row.EmployerCUIT,
		CIIU:       row.CIIU,
		Name:       row.Employer,
		Street:     row.Street,
		PostalCode: row.PostalCode,
		Locality:   row.Locality,
		Province:   row.Province,
		Phone:      row.Phone,
		Fax:        row.Fax,
		Email:      row.Email,
	}
}

// similarTo returns a predicate matching the rows that share the employer
// of row: the same CUIT digits when row has a CUIT, otherwise the same
// folded employer name among rows without a CUIT. This is a heuristic; two
// matching rows are not guaranteed to be the same site.
func similarTo(row model.OrderRow) func(model.OrderRow) bool {
	if d := cuit.Digits(row.EmployerCUIT); d != "" {
		return func(o model.OrderRow) bool { return cuit.Digits(o.EmployerCUIT) == d }
	}
	name := textnorm.Key(row.Employer)
	if name == "" {
		return func(model.OrderRow) bool { return false }
	}
	return func(o model.OrderRow) bool {
		return cuit.Digits(o.EmployerCUIT) == "" && textnorm.Key(o.Employer) == name
	}
}

// PropagateCompany applies rec to rows[idx] and to every other row similar
// to it, judged on rows[idx] as it was before the edit. It returns how many
// other rows changed.
func PropagateCompany(rows []model.OrderRow, idx int, rec company.Record) int {
	if idx < 0 || idx >= len(rows) {
		return 0
	}
	similar := similarTo(rows[idx])
	n := 0
	for i := range rows {
		if i != idx && similar(rows[i]) {
			ApplyCompany(&rows[i], rec)
			n++
		}
	}
	ApplyCompany(&rows[idx], rec)
	return n
}

// ApplyLookupResult records a CUIT found for rows[idx] as if it had been
// typed in, and copies it to the rows similar to it. It returns how many
// other rows changed.
func ApplyLookupResult(rows []model.OrderRow, idx int, found string) int {
	if idx < 0 || idx >= len(rows) || strings.TrimSpace(found) == "" {
		return 0
	}
	found = cuit.Format(found)
	similar := similarTo(rows[idx])
	n := 0
	for i := range rows {
		if i != idx && similar(rows[i]) {
			rows[i].EmployerCUIT = found
			n++
		}
	}
	rows[idx].EmployerCUIT = found
	return n
}
