package company

import (
	"os"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/order-convert/internal/fetcher"
	"github.com/sells-group/order-convert/pkg/cuit"
	"github.com/sells-group/order-convert/pkg/textnorm"
)

// firstRow is the row id of the first data row; row 1 holds the header.
const firstRow = 2

// Registry is the in-memory view of the employer workbook. Every mutation
// rewrites the whole file before it becomes visible. It is not safe for
// concurrent use and assumes a single writer per file.
type Registry struct {
	path    string
	records []Record
	nextRow int
	now     func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the clock used to name backups.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// Open loads the registry at path. A missing file is created with only the
// header row. Any other read failure is returned; the registry is never
// silently treated as empty.
func Open(path string, opts ...Option) (*Registry, error) {
	r := &Registry{path: path, nextRow: firstRow, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := r.write(nil); err != nil {
			return nil, eris.Wrap(err, "company: create registry")
		}
		zap.L().Info("company: created empty registry", zap.String("path", path))
		return r, nil
	}

	sheets, err := fetcher.ReadWorkbook(path)
	if err != nil {
		return nil, eris.Wrapf(err, "company: read registry %s", path)
	}
	sheet, ok := pickSheet(sheets)
	if !ok {
		return nil, eris.Errorf("company: registry %s has no worksheets", path)
	}

	lay := detectLayout(sheet)
	row := firstRow
	for i := 1; i < len(sheet.Rows); i++ {
		if blank(sheet.Rows[i]) {
			continue
		}
		rec := lay.decode(sheet.Rows[i])
		rec.Row = row
		r.records = append(r.records, rec)
		row++
	}
	r.nextRow = row

	zap.L().Info("company: loaded registry",
		zap.String("path", path),
		zap.String("sheet", sheet.Name),
		zap.Bool("external_layout", lay == layoutExternal),
		zap.Int("records", len(r.records)),
	)
	return r, nil
}

// Path returns the backing file.
func (r *Registry) Path() string { return r.path }

// Len returns the number of records.
func (r *Registry) Len() int { return len(r.records) }

// All returns a copy of every record in row order.
func (r *Registry) All() []Record { return slices.Clone(r.records) }

// Get returns the record with the given row id.
func (r *Registry) Get(row int) (Record, bool) {
	if i := r.indexOfRow(row); i >= 0 {
		return r.records[i], true
	}
	return Record{}, false
}

// SearchByCUIT returns every record whose CUIT has the same digits as id.
func (r *Registry) SearchByCUIT(id string) []Record {
	d := cuit.Digits(id)
	if d == "" {
		return nil
	}
	var out []Record
	for _, rec := range r.records {
		if rec.Digits() == d {
			out = append(out, rec)
		}
	}
	return out
}

// SearchByName returns records whose name contains the query or is contained
// in it, ignoring case, accents and spacing.
func (r *Registry) SearchByName(name string) []Record {
	q := textnorm.Key(name)
	if q == "" {
		return nil
	}
	var out []Record
	for _, rec := range r.records {
		n := textnorm.Key(rec.Name)
		if n == "" {
			continue
		}
		if strings.Contains(n, q) || strings.Contains(q, n) {
			out = append(out, rec)
		}
	}
	return out
}

// Search tries the query as a CUIT first and falls back to a name search.
func (r *Registry) Search(query string) []Record {
	if byID := r.SearchByCUIT(query); len(byID) > 0 {
		return byID
	}
	return r.SearchByName(query)
}

// Save stores rec and returns it with its row id.
//
// With forceNew the record is always inserted. Otherwise a record whose row
// id exists is updated in place, a record matching an existing one on CUIT
// digits and site key is unified into it, and anything else is inserted
// under a fresh row id. The CUIT is written in NN-NNNNNNNN-N form when it
// has 11 digits.
func (r *Registry) Save(rec Record, forceNew bool) (Record, error) {
	rec = tidy(rec)

	idx := -1
	if !forceNew {
		if rec.Row > 0 {
			idx = r.indexOfRow(rec.Row)
		}
		if idx < 0 && rec.Digits() != "" {
			idx = r.indexOfSite(rec.Digits(), rec.Site())
		}
	}

	next := slices.Clone(r.records)
	nextRow := r.nextRow
	action := "update"
	if idx >= 0 {
		rec.Row = next[idx].Row
		next[idx] = rec
	} else {
		action = "insert"
		rec.Row = nextRow
		nextRow++
		next = append(next, rec)
	}

	if err := r.write(next); err != nil {
		return Record{}, err
	}
	r.records, r.nextRow = next, nextRow

	zap.L().Info("company: saved",
		zap.String("action", action),
		zap.Int("row", rec.Row),
		zap.String("cuit", rec.CUIT),
		zap.String("name", rec.Name),
	)
	return rec, nil
}

// Delete removes rec, located by row id or else by CUIT digits, name and
// locality. A timestamped copy of the file is attempted first; a failed
// backup is logged and does not block the delete. It reports false with a
// nil error when nothing matched.
func (r *Registry) Delete(rec Record) (bool, error) {
	idx := -1
	if rec.Row > 0 {
		idx = r.indexOfRow(rec.Row)
	}
	if idx < 0 {
		idx = r.indexOfIdentity(rec)
	}
	if idx < 0 {
		return false, nil
	}

	if name, err := backupFile(r.path, r.now()); err != nil {
		zap.L().Warn("company: backup before delete failed", zap.String("path", r.path), zap.Error(err))
	} else {
		zap.L().Debug("company: backup written", zap.String("backup", name))
	}

	target := r.records[idx]
	next := slices.Delete(slices.Clone(r.records), idx, idx+1)
	if err := r.write(next); err != nil {
		return false, err
	}
	r.records = next

	zap.L().Info("company: deleted",
		zap.Int("row", target.Row),
		zap.String("cuit", target.CUIT),
		zap.String("name", target.Name),
	)
	return true, nil
}

func (r *Registry) indexOfRow(row int) int {
	return slices.IndexFunc(r.records, func(rec Record) bool { return rec.Row == row })
}

func (r *Registry) indexOfSite(digits string, site SiteKey) int {
	return slices.IndexFunc(r.records, func(rec Record) bool {
		return rec.Digits() == digits && rec.Site() == site
	})
}

func (r *Registry) indexOfIdentity(target Record) int {
	d := target.Digits()
	name := strings.TrimSpace(target.Name)
	loc := strings.TrimSpace(target.Locality)
	return slices.IndexFunc(r.records, func(rec Record) bool {
		return rec.Digits() == d &&
			strings.EqualFold(strings.TrimSpace(rec.Name), name) &&
			strings.EqualFold(strings.TrimSpace(rec.Locality), loc)
	})
}

func (r *Registry) write(records []Record) error {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, appHeader)
	for _, rec := range records {
		rows = append(rows, encodeApp(rec))
	}
	if err := fetcher.WriteWorkbook(r.path, fetcher.Sheet{Name: SheetName, Rows: rows}); err != nil {
		return eris.Wrapf(err, "company: write registry %s", r.path)
	}
	return nil
}

func tidy(rec Record) Record {
	rec.CUIT = cuit.Format(rec.CUIT)
	rec.CIIU = strings.TrimSpace(rec.CIIU)
	rec.Name = strings.TrimSpace(rec.Name)
	rec.Street = strings.TrimSpace(rec.Street)
	rec.PostalCode = strings.TrimSpace(rec.PostalCode)
	rec.Locality = strings.TrimSpace(rec.Locality)
	rec.Province = strings.TrimSpace(rec.Province)
	rec.Phone = strings.TrimSpace(rec.Phone)
	rec.Fax = strings.TrimSpace(rec.Fax)
	rec.Email = strings.TrimSpace(rec.Email)
	return rec
}
