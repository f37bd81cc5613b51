package company

import (
	"strings"

	"github.com/sells-group/order-convert/internal/fetcher"
	"github.com/sells-group/order-convert/pkg/textnorm"
)

// SheetName is the worksheet every save writes to.
const SheetName = "Empresas"

// layout describes how registry columns are arranged in a worksheet.
type layout int

const (
	// layoutApp is what this program writes: CUIT, CIIU, name, street,
	// postal code, locality, province, phone, fax, email.
	layoutApp layout = iota
	// layoutExternal is the hand-maintained export: name, CUIT, street,
	// locality, province, phone, email. It has no CIIU, postal code or fax.
	layoutExternal
)

var appHeader = []string{"CUIT", "CIIU", "Empleador", "Calle", "CodPostal", "Localidad", "Provincia", "Telefono", "Fax", "Mail"}

// pickSheet returns the first sheet whose header looks like a registry,
// falling back to the first sheet.
func pickSheet(sheets []fetcher.Sheet) (fetcher.Sheet, bool) {
	if len(sheets) == 0 {
		return fetcher.Sheet{}, false
	}
	for _, s := range sheets {
		a1 := textnorm.Key(s.Cell(0, 0))
		b1 := textnorm.Key(s.Cell(0, 1))
		if strings.Contains(a1, "RAZON") || strings.Contains(a1, "EMPLEADOR") ||
			strings.Contains(a1, "CUIT") || strings.Contains(b1, "CUIT") {
			return s, true
		}
	}
	return sheets[0], true
}

func detectLayout(s fetcher.Sheet) layout {
	if strings.Contains(textnorm.Key(s.Cell(0, 0)), "RAZON") {
		return layoutExternal
	}
	return layoutApp
}

func (l layout) decode(cells []string) Record {
	at := func(i int) string {
		if i < len(cells) {
			return strings.TrimSpace(cells[i])
		}
		return ""
	}
	if l == layoutExternal {
		return Record{
			Name:     at(0),
			CUIT:     at(1),
			Street:   at(2),
			Locality: at(3),
			Province: at(4),
			Phone:    at(5),
			Email:    at(6),
		}
	}
	return Record{
		CUIT:       at(0),
		CIIU:       at(1),
		Name:       at(2),
		Street:     at(3),
		PostalCode: at(4),
		Locality:   at(5),
		Province:   at(6),
		Phone:      at(7),
		Fax:        at(8),
		Email:      at(9),
	}
}

func encodeApp(r Record) []string {
	return []string{r.CUIT, r.CIIU, r.Name, r.Street, r.PostalCode, r.Locality, r.Province, r.Phone, r.Fax, r.Email}
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
