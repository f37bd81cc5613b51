package fetcher

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Sheet is a worksheet flattened to strings. Rows[i][j] is the cell at
// zero-based row i, column j; rows may be ragged.
type Sheet struct {
	Name string
	Rows [][]string
}

// Cell returns the raw value at (row, col), or "" when the
// position lies outside the sheet.
func (s Sheet) Cell(row, col int) string {
	if row < 0 || row >= len(s.Rows) || col < 0 || col >= len(s.Rows[row]) {
		return ""
	}
	return s.Rows[row][col]
}

// XLSXOptions configures ReadXLSX.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	SkipRows   int    // number of header rows to skip
}

// ReadXLSX reads one sheet of an XLSX file and returns its rows as string
// slices.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for i, row := range sheet.Rows {
		if i < opts.SkipRows {
			continue
		}
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

// ReadWorkbook reads every sheet of an XLSX file in workbook order.
func ReadWorkbook(path string) ([]Sheet, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheets := make([]Sheet, 0, len(f.Sheets))
	for _, sh := range f.Sheets {
		s := Sheet{Name: sh.Name, Rows: make([][]string, 0, len(sh.Rows))}
		for _, row := range sh.Rows {
			s.Rows = append(s.Rows, rowToStrings(row))
		}
		sheets = append(sheets, s)
	}
	return sheets, nil
}

// WriteWorkbook writes sheets to path as a new XLSX file. The file is first
// saved next to path and then renamed over it, so a failed save leaves the
// previous contents in place.
func WriteWorkbook(path string, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return eris.New("xlsx: no sheets to write")
	}

	f := xlsx.NewFile()
	for _, s := range sheets {
		sh, err := f.AddSheet(s.Name)
		if err != nil {
			return eris.Wrapf(err, "xlsx: add sheet %q", s.Name)
		}
		for _, values := range s.Rows {
			row := sh.AddRow()
			for _, v := range values {
				row.AddCell().SetString(v)
			}
		}
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "xlsx: create directory")
		}
	}

	tmp := path + ".tmp"
	if err := f.Save(tmp); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrap(err, "xlsx: save")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrap(err, "xlsx: replace file")
	}
	return nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell != nil {
			cells[j] = cell.String()
		}
	}
	return cells
}
