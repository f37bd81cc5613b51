package source

import (
	"strings"
	"unicode/utf8"

	"github.com/sells-group/order-convert/pkg/textnorm"
)

// Field is a logical input column.
type Field int

const (
	FieldContract Field = iota
	FieldEmployerCUIT
	FieldEmployerName
	FieldEstablishmentNumber
	FieldEstablishmentName
	FieldPhone
	FieldMobile
	FieldAgencyPhone
	FieldWorkerCUIL
	FieldWorkerName
	FieldWorkerNameAlt
	FieldProcedure
	FieldProcedureAlt
	FieldRisk
	FieldRiskDescription
	FieldLocality
	FieldProvince
	FieldWorkerEmail
	FieldAgencyEmail
	FieldStreet
	FieldPostalCode
	FieldDocumentNumber
	FieldClinicalHistory
	FieldCIIU
)

// Aliases lists, per field, the header spellings seen in the wild, most
// specific first. An alias must not contain a plain header of another
// field ("CUIL Beneficiario" would match a "Beneficiario" column), since
// the substring fallback runs in both directions.
var Aliases = map[Field][]string{
	FieldContract:            {"Contrato", "Nro Contrato", "Nro. Contrato"},
	FieldEmployerCUIT:        {"CUIT"},
	FieldEmployerName:        {"Empresa", "Empleador", "Razón Social", "Razon Social"},
	FieldEstablishmentNumber: {"Nro. Establecimiento", "Nro Establecimiento", "Establecimiento"},
	FieldEstablishmentName:   {"Nombre establecimiento", "Establecimiento"},
	FieldPhone:               {"Teléfono", "Telefono", "Teléfono / Celular", "Telefono / Celular"},
	FieldMobile:              {"Teléfono / Celular", "Telefono / Celular", "Celular", "Teléfono", "Telefono"},
	FieldAgencyPhone:         {"Teléfono Agencia", "Telefono Agencia"},
	FieldWorkerCUIL:          {"CUIL"},
	FieldWorkerName:          {"Nombre Beneficiario", "Beneficiario", "Apellido y Nombre", "Nombre y Apellido"},
	FieldWorkerNameAlt:       {"Apellido y Nombre", "NyA"},
	FieldProcedure:           {"Práctica solicitada", "Practica solicitada", "Prestación", "Prestacion", "Examen"},
	FieldProcedureAlt:        {"Práctica", "Practica"},
	FieldRisk:                {"Riesgo", "Comentarios", "Comentario", "Descripción Riesgo", "Descripcion Riesgo"},
	FieldRiskDescription:     {"Descripción Riesgo", "Descripcion Riesgo"},
	FieldLocality:            {"Localidad"},
	FieldProvince:            {"Provincia"},
	FieldWorkerEmail:         {"Email Beneficiario", "Email", "Mail", "Correo"},
	FieldAgencyEmail:         {"Email Agencia"},
	FieldStreet:              {"Calle", "Domicilio", "Dirección", "Direccion"},
	FieldPostalCode:          {"Código Postal", "Codigo Postal", "Cod Postal", "CP"},
	FieldDocumentNumber:      {"Nro Documento", "Documento", "DNI"},
	FieldClinicalHistory:     {"Historia Clínica", "Historia Clinica", "HC"},
	FieldCIIU:                {"CIIU"},
}

// withAliases returns a copy of Aliases with the given fields replaced.
func withAliases(override map[Field][]string) map[Field][]string {
	out := make(map[Field][]string, len(Aliases))
	for f, a := range Aliases {
		out[f] = a
	}
	for f, a := range override {
		out[f] = a
	}
	return out
}

// minFuzzyLen keeps short aliases and headers ("CP", "HC") out of the
// substring fallback, where they would match almost anything.
const minFuzzyLen = 3

// ColumnMap is a header resolved once per file or sheet.
type ColumnMap map[Field]int

// Resolve finds a column index for each requested field using Aliases.
func Resolve(header []string, fields ...Field) ColumnMap {
	return ResolveWith(Aliases, header, fields...)
}

// ResolveWith finds a column index for each requested field using the given
// alias table. Exact folded matches are settled for every field first. The
// substring fallback, in either direction, then prefers columns no other
// field matched exactly. Fields with no column are absent from the map.
func ResolveWith(aliases map[Field][]string, header []string, fields ...Field) ColumnMap {
	folded := make([]string, len(header))
	for i, h := range header {
		folded[i] = textnorm.Header(h)
	}

	cm := make(ColumnMap, len(fields))
	claimed := make(map[int]bool, len(fields))
	var pending []Field
	for _, f := range fields {
		if idx, ok := exactMatch(folded, aliases[f]); ok {
			cm[f] = idx
			claimed[idx] = true
			continue
		}
		pending = append(pending, f)
	}

	for _, f := range pending {
		if idx, ok := fuzzyMatch(folded, aliases[f], claimed); ok {
			cm[f] = idx
		}
	}
	return cm
}

func foldAliases(aliases []string) []string {
	keys := make([]string, 0, len(aliases))
	for _, a := range aliases {
		keys = append(keys, textnorm.Header(a))
	}
	return keys
}

func exactMatch(folded []string, aliases []string) (int, bool) {
	for _, k := range foldAliases(aliases) {
		for i, h := range folded {
			if h != "" && h == k {
				return i, true
			}
		}
	}
	return 0, false
}

// fuzzyMatch returns the first substring hit on an unclaimed column, or the
// first hit on a claimed one when every hit is claimed.
func fuzzyMatch(folded []string, aliases []string, claimed map[int]bool) (int, bool) {
	fallback, found := 0, false
	for _, k := range foldAliases(aliases) {
		if utf8.RuneCountInString(k) < minFuzzyLen {
			continue
		}
		for i, h := range folded {
			if utf8.RuneCountInString(h) < minFuzzyLen {
				continue
			}
			if !strings.Contains(h, k) && !strings.Contains(k, h) {
				continue
			}
			if !claimed[i] {
				return i, true
			}
			if !found {
				fallback, found = i, true
			}
		}
	}
	return fallback, found
}

// Get returns the trimmed cell for f in row, or "" when the field has no
// column or the row is short.
func (cm ColumnMap) Get(row []string, f Field) string {
	idx, ok := cm[f]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// Same reports whether a and b resolved to the same column.
func (cm ColumnMap) Same(a, b Field) bool {
	ia, okA := cm[a]
	ib, okB := cm[b]
	return okA && okB && ia == ib
}
