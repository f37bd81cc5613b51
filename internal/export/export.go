// Package export writes reviewed order rows in the canonical 25-column
// layout expected by the insurer's intake system.
package export

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/order-convert/internal/fetcher"
	"github.com/sells-group/order-convert/internal/model"
)

// Headers are the output column titles, A through Y.
var Headers = []string{
	"CuitEmpleador", "CIIU", "Empleador", "Calle", "CodPostal", "Localidad",
	"Provincia", "ABMlocProv", "Telefono", "Fax", "Contrato", "NroEstablecimiento",
	"Frecuencia", "Cuil", "NroDocumento", "TrabajadorApellidoNombre", "Riesgo",
	"DescripcionRiesgo", "ABMRiesgo", "Prestacion", "HistoriaClinica", "Mail",
	"Referente", "DescripcionError", "Id",
}

// Zero-based column indexes the intake system expects empty.
const (
	ColPostalCode     = 4  // E
	ColDocumentNumber = 14 // O
	ColReferrer       = 22 // W
)

// Exporter writes rows to a destination file.
type Exporter interface {
	Export(rows []model.OrderRow, path string) error
}

// XLSXExporter writes an .xlsx workbook with the rows on the first sheet
// and two empty trailing sheets.
type XLSXExporter struct {
	SheetNames []string
	// Blank lists columns written empty regardless of the row content.
	Blank []int
}

// NewXLSXExporter returns the exporter for the intake layout: sheets
// Hoja1..Hoja3 with postal code, document number and referrer left blank.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{
		SheetNames: []string{"Hoja1", "Hoja2", "Hoja3"},
		Blank:      []int{ColPostalCode, ColDocumentNumber, ColReferrer},
	}
}

// Export implements Exporter.
func (e *XLSXExporter) Export(rows []model.OrderRow, path string) error {
	names := e.SheetNames
	if len(names) == 0 {
		names = []string{"Hoja1"}
	}

	data := fetcher.Sheet{Name: names[0], Rows: make([][]string, 0, len(rows)+1)}
	data.Rows = append(data.Rows, Headers)
	for _, row := range rows {
		cells := Cells(row)
		for _, col := range e.Blank {
			if col >= 0 && col < len(cells) {
				cells[col] = ""
			}
		}
		data.Rows = append(data.Rows, cells)
	}

	sheets := []fetcher.Sheet{data}
	for _, n := range names[1:] {
		sheets = append(sheets, fetcher.Sheet{Name: n})
	}
	if err := fetcher.WriteWorkbook(path, sheets...); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}

	zap.L().Info("export: workbook written",
		zap.String("path", path),
		zap.Int("rows", len(rows)),
	)
	return nil
}

// Cells lays a row out as the 25 output columns.
func Cells(r model.OrderRow) []string {
	return []string{
		r.EmployerCUIT, r.CIIU, r.Employer, r.Street, r.PostalCode, r.Locality,
		r.Province, r.LocalityChange, r.Phone, r.Fax, r.Contract, r.EstablishmentNumber,
		string(r.Frequency), r.WorkerCUIL, r.DocumentNumber, r.WorkerName, r.Risk,
		r.RiskDescription, r.RiskChange, r.Procedure, r.ClinicalHistory, r.Email,
		r.Referrer, r.ErrorDescription, r.ID,
	}
}
