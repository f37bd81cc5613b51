// Package source turns order exports (delimited text or multi-sheet
// workbooks) into canonical order rows.
package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/order-convert/internal/config"
	"github.com/sells-group/order-convert/internal/model"
)

const (
	defaultMaxSheets      = 50
	defaultHeaderScanRows = 20
)

// zipMagic opens every xlsx file.
var zipMagic = []byte("PK\x03\x04")

// Reader parses order files. The zero value reads ISO-8859-1 text and up to
// 50 data sheets, looking for a sheet header in the first 20 rows.
type Reader struct {
	Encoding       string
	MaxSheets      int
	HeaderScanRows int
}

// NewReader builds a Reader from the source configuration.
func NewReader(cfg config.SourceConfig) *Reader {
	return &Reader{
		Encoding:       cfg.Encoding,
		MaxSheets:      cfg.MaxSheets,
		HeaderScanRows: cfg.HeaderScanRows,
	}
}

// Parse reads path and returns every row it could extract. It never fails
// as a whole: a file that cannot be read yields a result with one error and
// no rows, and bad rows or sheets become warnings.
func (r *Reader) Parse(ctx context.Context, path string, freq model.Frequency, referrer string) *model.ImportResult {
	res := model.NewImportResult(path)
	log := zap.L().With(zap.String("import_id", res.ID), zap.String("path", path))

	var err error
	switch detectKind(path) {
	case kindWorkbook:
		err = r.parseWorkbook(ctx, path, freq, referrer, res)
	default:
		err = r.parseDelimited(ctx, path, freq, referrer, res)
	}
	if err != nil {
		log.Warn("source file unreadable", zap.Error(err))
		res.Rows = nil
		res.Errors = append(res.Errors, fmt.Sprintf("cannot read %s: %v", filepath.Base(path), err))
		return res
	}

	log.Info("source file read",
		zap.Int("rows", res.TotalRows()),
		zap.Int("warnings", len(res.Warnings)),
	)
	return res
}

type fileKind int

const (
	kindDelimited fileKind = iota
	kindWorkbook
)

// detectKind dispatches on the extension and sniffs unknown ones.
func detectKind(path string) fileKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt", ".tsv":
		return kindDelimited
	case ".xlsx", ".xlsm":
		return kindWorkbook
	}
	if isZip(path) {
		return kindWorkbook
	}
	return kindDelimited
}

func isZip(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close() //nolint:errcheck

	head := make([]byte, len(zipMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, zipMagic)
}

// addRow runs extract, recovering from a panic as a warning, and keeps the
// row unless nothing identifying came out of it.
func (r *Reader) addRow(res *model.ImportResult, where string, extract func() model.OrderRow) {
	defer func() {
		if p := recover(); p != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", where, eris.Errorf("extract row: %v", p)))
		}
	}()
	row := extract()
	if row.IsEmpty() {
		return
	}
	res.Rows = append(res.Rows, row)
}

func (r *Reader) maxSheets() int {
	if r.MaxSheets > 0 {
		return r.MaxSheets
	}
	return defaultMaxSheets
}

func (r *Reader) headerScanRows() int {
	if r.HeaderScanRows > 0 {
		return r.HeaderScanRows
	}
	return defaultHeaderScanRows
}
