package source

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/order-convert/internal/fetcher"
	"github.com/sells-group/order-convert/internal/model"
	"github.com/sells-group/order-convert/internal/normalize"
)

var delimitedFields = []Field{
	FieldContract, FieldEmployerCUIT, FieldEstablishmentNumber, FieldEstablishmentName,
	FieldPhone, FieldMobile, FieldAgencyPhone, FieldWorkerCUIL, FieldWorkerName,
	FieldProcedure, FieldProcedureAlt, FieldRisk, FieldRiskDescription, FieldLocality,
	FieldProvince, FieldWorkerEmail, FieldAgencyEmail, FieldStreet, FieldPostalCode,
	FieldDocumentNumber, FieldClinicalHistory, FieldCIIU,
}

// delimitedAliases takes the risk from the comments column when both exist.
var delimitedAliases = withAliases(map[Field][]string{
	FieldRisk: {"Comentarios", "Comentario", "Riesgo", "Descripción Riesgo", "Descripcion Riesgo"},
})

// parseDelimited reads a CSV/TSV/pipe-separated export into res.
func (r *Reader) parseDelimited(ctx context.Context, path string, freq model.Frequency, referrer string, res *model.ImportResult) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrap(err, "source: open delimited file")
	}
	defer f.Close() //nolint:errcheck

	text, err := fetcher.DecodeAll(f, r.Encoding)
	if err != nil {
		return err
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	delim := DetectDelimiter(text)

	log := zap.L().With(zap.String("import_id", res.ID), zap.String("delimiter", string(delim)))

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	rowCh, errCh := fetcher.StreamCSV(streamCtx, strings.NewReader(text), fetcher.CSVOptions{
		Delimiter:  delim,
		LazyQuotes: true,
		TrimSpace:  true,
	})

	var cm ColumnMap
	header := true
	for row := range rowCh {
		if header {
			header = false
			if row.Err != nil {
				cancel()
				drain(rowCh)
				return eris.Wrap(row.Err, "source: read header")
			}
			if len(row.Fields) == 1 && strings.ContainsRune(firstLine(text), delim) {
				log.Debug("header came back as a single cell, splitting lines manually")
				cancel()
				drain(rowCh)
				<-errCh
				r.splitManually(text, delim, freq, referrer, res)
				return nil
			}
			cm = ResolveWith(delimitedAliases, row.Fields, delimitedFields...)
			continue
		}

		if row.Err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("line %d: %v", row.Line, row.Err))
			continue
		}
		if blankRow(row.Fields) {
			continue
		}
		r.addRow(res, fmt.Sprintf("line %d", row.Line), func() model.OrderRow {
			return extractDelimited(cm, row.Fields, freq, referrer)
		})
	}

	if err := <-errCh; err != nil {
		return eris.Wrap(err, "source: stream delimited file")
	}
	return nil
}

// splitManually handles files whose lines were quoted as a whole, which the
// CSV reader returns as one cell each.
func (r *Reader) splitManually(text string, delim rune, freq model.Frequency, referrer string, res *model.ImportResult) {
	var cm ColumnMap
	for i, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := SplitCells(line, delim)
		if cm == nil {
			cm = ResolveWith(delimitedAliases, cells, delimitedFields...)
			continue
		}
		r.addRow(res, fmt.Sprintf("line %d", i+1), func() model.OrderRow {
			return extractDelimited(cm, cells, freq, referrer)
		})
	}
}

// extractDelimited maps one delimited record onto the canonical row.
func extractDelimited(cm ColumnMap, cells []string, freq model.Frequency, referrer string) model.OrderRow {
	row := model.OrderRow{
		Frequency:       freq,
		Referrer:        referrer,
		Contract:        cm.Get(cells, FieldContract),
		EmployerCUIT:    cm.Get(cells, FieldEmployerCUIT),
		WorkerCUIL:      cm.Get(cells, FieldWorkerCUIL),
		WorkerName:      cm.Get(cells, FieldWorkerName),
		Risk:            cm.Get(cells, FieldRisk),
		Locality:        cm.Get(cells, FieldLocality),
		Province:        cm.Get(cells, FieldProvince),
		Street:          cm.Get(cells, FieldStreet),
		PostalCode:      cm.Get(cells, FieldPostalCode),
		DocumentNumber:  cm.Get(cells, FieldDocumentNumber),
		ClinicalHistory: cm.Get(cells, FieldClinicalHistory),
		CIIU:            cm.Get(cells, FieldCIIU),
	}
	if !cm.Same(FieldRisk, FieldRiskDescription) {
		row.RiskDescription = cm.Get(cells, FieldRiskDescription)
	}

	number, name, ok := normalize.SplitEstablishment(cm.Get(cells, FieldEstablishmentName))
	row.Employer = name
	if ok {
		row.EstablishmentNumber = number
	} else if !cm.Same(FieldEstablishmentNumber, FieldEstablishmentName) {
		row.EstablishmentNumber = cm.Get(cells, FieldEstablishmentNumber)
	}

	procedure := cm.Get(cells, FieldProcedure)
	if procedure == "" {
		procedure = cm.Get(cells, FieldProcedureAlt)
	}
	row.Procedure = normalize.StripCodeSuffix(procedure)

	row.Email = cm.Get(cells, FieldWorkerEmail)
	if row.Email == "" || row.Email == "-" {
		row.Email = cm.Get(cells, FieldAgencyEmail)
	}

	row.Phone = cm.Get(cells, FieldPhone)
	if row.Phone == "" && isPlaceholder(cm.Get(cells, FieldMobile)) {
		row.Phone = cm.Get(cells, FieldAgencyPhone)
	}
	return row
}

// isPlaceholder reports whether a phone cell carries no number.
func isPlaceholder(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == "-" || s == "- -"
}

// firstLine returns the first non-blank line of text.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func drain(rows <-chan fetcher.Row) {
	for range rows { //nolint:revive
	}
}
