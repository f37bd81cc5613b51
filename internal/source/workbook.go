package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/order-convert/internal/fetcher"
	"github.com/sells-group/order-convert/internal/model"
	"github.com/sells-group/order-convert/internal/normalize"
	"github.com/sells-group/order-convert/pkg/textnorm"
)

const (
	summarySheetMarker = "resumen"
	maxMetadataRows    = 15
	summaryScanRows    = 10
)

var headerMarkers = []string{"CUIL", "BENEFICIARIO", "PRESTAC", "RIESGO"}

var workbookFields = []Field{
	FieldContract, FieldEmployerName, FieldLocality, FieldProvince,
	FieldWorkerCUIL, FieldEmployerCUIT, FieldWorkerName, FieldWorkerNameAlt,
	FieldProcedure, FieldProcedureAlt, FieldRisk, FieldRiskDescription,
}

// sheetMeta is the employer block printed above a sheet's data table.
type sheetMeta struct {
	Contract            string
	CUIT                string
	Employer            string
	EstablishmentNumber string
	Locality            string
	Province            string
	Phone               string
	PostalCode          string
}

// parseWorkbook reads a multi-sheet order workbook: an optional summary
// sheet plus one data sheet per establishment.
func (r *Reader) parseWorkbook(ctx context.Context, path string, freq model.Frequency, referrer string, res *model.ImportResult) error {
	sheets, err := fetcher.ReadWorkbook(path)
	if err != nil {
		return err
	}

	var (
		summary *fetcher.Sheet
		data    []fetcher.Sheet
	)
	for i := range sheets {
		if summary == nil && textnorm.ContainsFold(sheets[i].Name, summarySheetMarker) {
			summary = &sheets[i]
			continue
		}
		data = append(data, sheets[i])
	}
	if len(data) > r.maxSheets() {
		res.Warnings = append(res.Warnings, fmt.Sprintf("workbook has %d data sheets, only the first %d were read", len(data), r.maxSheets()))
		data = data[:r.maxSheets()]
	}

	var postal map[int]string
	if summary != nil {
		postal = summaryLocalities(*summary)
	}

	for i, sh := range data {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "source: read workbook")
		}
		r.parseSheet(sh, i+1, postal, freq, referrer, res)
	}
	return nil
}

// parseSheet extracts the rows of one data sheet. ordinal is the sheet's
// 1-based position among data sheets, which the summary sheet refers to.
// Any failure is reported as a warning and leaves the other sheets alone.
func (r *Reader) parseSheet(sh fetcher.Sheet, ordinal int, postal map[int]string, freq model.Frequency, referrer string, res *model.ImportResult) {
	defer func() {
		if p := recover(); p != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("sheet %q: %v", sh.Name, p))
		}
	}()

	headerIdx := findHeaderRow(sh, r.headerScanRows())
	if headerIdx < 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("sheet %q: no header row found", sh.Name))
		return
	}

	meta := scanMetadata(sh, headerIdx)
	if raw, ok := postal[ordinal]; ok {
		if code, rest, ok := normalize.SplitPostalCode(raw); ok {
			meta.PostalCode = code
			if meta.Locality == "" {
				meta.Locality = rest
			}
		}
	}
	if number, name, ok := normalize.SplitEstablishment(sh.Cell(1, 2)); ok {
		if meta.EstablishmentNumber == "" {
			meta.EstablishmentNumber = number
		}
		if meta.Employer == "" {
			meta.Employer = name
		}
	}

	cm := Resolve(sh.Rows[headerIdx], workbookFields...)
	zap.L().Debug("sheet header resolved",
		zap.String("import_id", res.ID),
		zap.String("sheet", sh.Name),
		zap.Int("header_row", headerIdx+1),
		zap.Int("columns", len(cm)),
	)

	before := len(res.Rows)
	for i := headerIdx + 1; i < len(sh.Rows); i++ {
		cells := sh.Rows[i]
		if blankRow(cells) {
			continue
		}
		r.addRow(res, fmt.Sprintf("sheet %q row %d", sh.Name, i+1), func() model.OrderRow {
			return extractSheetRow(cm, cells, meta, freq, referrer)
		})
	}
	zap.L().Debug("sheet read",
		zap.String("import_id", res.ID),
		zap.String("sheet", sh.Name),
		zap.Int("rows", len(res.Rows)-before),
	)
}

// findHeaderRow returns the index of the first row among the first limit
// rows with a cell naming a worker column, or -1.
func findHeaderRow(sh fetcher.Sheet, limit int) int {
	for i := 0; i < len(sh.Rows) && i < limit; i++ {
		for _, c := range sh.Rows[i] {
			v := textnorm.Key(c)
			for _, m := range headerMarkers {
				if strings.Contains(v, m) {
					return i
				}
			}
		}
	}
	return -1
}

// scanMetadata reads "LABEL | value" pairs from the rows above the header.
func scanMetadata(sh fetcher.Sheet, headerIdx int) sheetMeta {
	var meta sheetMeta
	last := min(maxMetadataRows, headerIdx)
	for i := 0; i < last; i++ {
		for j, c := range sh.Rows[i] {
			label := textnorm.Key(c)
			if label == "" {
				continue
			}
			next := strings.TrimSpace(sh.Cell(i, j+1))
			switch {
			case strings.Contains(label, "CONTRATO"):
				meta.Contract = next
			case strings.Contains(label, "CUIT"):
				meta.CUIT = next
			case strings.Contains(label, "RAZON SOCIAL"), strings.Contains(label, "EMPLEADOR"):
				meta.Employer = next
			case strings.Contains(label, "ESTABLECIMIENTO"):
				v := textnorm.Key(next)
				if strings.Contains(v, "FECHA") || strings.Contains(v, "SOLICITUD") {
					continue
				}
				if number, name, ok := normalize.SplitEstablishment(next); ok {
					meta.EstablishmentNumber = number
					if meta.Employer == "" {
						meta.Employer = name
					}
				} else {
					meta.EstablishmentNumber = next
				}
			case strings.Contains(label, "LOCALIDAD"):
				meta.Locality = next
			case strings.Contains(label, "PROVINCIA"):
				meta.Province = next
			case strings.Contains(label, "TELEFONO"):
				meta.Phone = next
			}
		}
	}
	return meta
}

// summaryLocalities maps sheet ordinals to the raw locality cell of the
// summary sheet, which usually reads "(NNNN) LOCALITY".
func summaryLocalities(sh fetcher.Sheet) map[int]string {
	headerIdx, tabCol, locCol := -1, -1, -1
	for i := 0; i < len(sh.Rows) && i < summaryScanRows && headerIdx < 0; i++ {
		for _, c := range sh.Rows[i] {
			if textnorm.ContainsFold(c, "solapa") {
				headerIdx = i
				break
			}
		}
	}
	if headerIdx < 0 {
		return nil
	}
	for j, c := range sh.Rows[headerIdx] {
		switch {
		case tabCol < 0 && textnorm.ContainsFold(c, "solapa"):
			tabCol = j
		case locCol < 0 && textnorm.ContainsFold(c, "localidad"):
			locCol = j
		}
	}
	if tabCol < 0 || locCol < 0 {
		return nil
	}

	out := make(map[int]string)
	for i := headerIdx + 1; i < len(sh.Rows); i++ {
		n, ok := parseOrdinal(sh.Cell(i, tabCol))
		if !ok {
			continue
		}
		if _, seen := out[n]; !seen {
			out[n] = strings.TrimSpace(sh.Cell(i, locCol))
		}
	}
	return out
}

// parseOrdinal accepts "3" as well as the "3.0" some writers store.
func parseOrdinal(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// extractSheetRow seeds a row with the sheet metadata and overlays the
// row's own columns. Rows without any worker data (totals, footnotes) come
// back empty.
func extractSheetRow(cm ColumnMap, cells []string, meta sheetMeta, freq model.Frequency, referrer string) model.OrderRow {
	row := model.OrderRow{
		Frequency:           freq,
		Referrer:            referrer,
		Contract:            meta.Contract,
		EmployerCUIT:        meta.CUIT,
		Employer:            meta.Employer,
		EstablishmentNumber: meta.EstablishmentNumber,
		PostalCode:          meta.PostalCode,
		Locality:            meta.Locality,
		Province:            meta.Province,
		Phone:               meta.Phone,
	}
	overlay(&row.Contract, cm.Get(cells, FieldContract))
	overlay(&row.Employer, cm.Get(cells, FieldEmployerName))
	overlay(&row.Locality, cm.Get(cells, FieldLocality))
	overlay(&row.Province, cm.Get(cells, FieldProvince))

	if _, ok := cm[FieldWorkerCUIL]; ok {
		row.WorkerCUIL = cm.Get(cells, FieldWorkerCUIL)
	} else {
		row.WorkerCUIL = cm.Get(cells, FieldEmployerCUIT)
	}

	row.WorkerName = joinColumns(cm, cells, FieldWorkerName, FieldWorkerNameAlt)
	row.Procedure = normalize.CleanProcedure(joinColumns(cm, cells, FieldProcedure, FieldProcedureAlt))
	row.Risk = cm.Get(cells, FieldRisk)
	if !cm.Same(FieldRisk, FieldRiskDescription) {
		row.RiskDescription = cm.Get(cells, FieldRiskDescription)
	}
	if row.WorkerCUIL == "" && row.WorkerName == "" && row.Procedure == "" && row.Risk == "" {
		return model.OrderRow{}
	}
	return row
}

// joinColumns concatenates a primary and an alternate column, reading a
// column only once when both resolved to it.
func joinColumns(cm ColumnMap, cells []string, primary, alt Field) string {
	if cm.Same(primary, alt) {
		return cm.Get(cells, primary)
	}
	return strings.TrimSpace(cm.Get(cells, primary) + " " + cm.Get(cells, alt))
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
