package normalize

import (
	"regexp"
	"strings"

	"github.com/sells-group/order-convert/pkg/textnorm"
)

// maxPasses bounds every rewrite-until-stable loop.
const maxPasses = 8

var (
	codeSuffixRe    = regexp.MustCompile(`(?i)\s*\bcod:\s*[A-Z0-9][A-Z0-9._/-]*\s*$`)
	codePrefixRe    = regexp.MustCompile(`^\s*([A-Z0-9]{2,10})\s*[-:]\s+(.+)$`)
	establishmentRe = regexp.MustCompile(`^\s*(\d+)\s*[-–]\s*(.+)$`)
	postalRe        = regexp.MustCompile(`^\s*\((\d{3,5})\)\s*(.+)$`)
	leadingPostalRe = regexp.MustCompile(`^\s*\(\d+\)\s*`)
	provinceTailRe  = regexp.MustCompile(`(?i)[-\s]+(B\s*A|BUENOS\s+AIRES)\s*$`)
)

// fixpoint applies step until the value stops changing.
func fixpoint(s string, step func(string) string) string {
	for i := 0; i < maxPasses; i++ {
		next := step(s)
		if next == s {
			return s
		}
		s = next
	}
	return s
}

// StripCodeSuffix removes a trailing "cod: XXX" marker.
func StripCodeSuffix(s string) string {
	return strings.TrimSpace(codeSuffixRe.ReplaceAllString(s, ""))
}

// StripCodePrefix removes a leading "CODE - " or "CODE: " marker. Only codes
// carrying at least one digit are stripped, so abbreviations such as
// "RX - TORAX" keep their meaning.
func StripCodePrefix(s string) string {
	m := codePrefixRe.FindStringSubmatch(s)
	if m == nil || strings.IndexAny(m[1], "0123456789") < 0 {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(m[2])
}

// CleanProcedure strips code markers from both ends until none remain.
func CleanProcedure(s string) string {
	return fixpoint(strings.TrimSpace(s), func(v string) string {
		return StripCodePrefix(StripCodeSuffix(v))
	})
}

// SplitEstablishment splits "NNN - NAME" into its establishment number and
// name. ok is false when s does not have that shape.
func SplitEstablishment(s string) (number, name string, ok bool) {
	m := establishmentRe.FindStringSubmatch(s)
	if m == nil {
		return "", strings.TrimSpace(s), false
	}
	return m[1], strings.TrimSpace(m[2]), true
}

// SplitPostalCode splits "(NNNN) TEXT" into a postal code and the text.
func SplitPostalCode(s string) (code, rest string, ok bool) {
	m := postalRe.FindStringSubmatch(s)
	if m == nil {
		return "", strings.TrimSpace(s), false
	}
	return m[1], strings.TrimSpace(m[2]), true
}

// CleanLocality drops a leading "(NNNN)" and any trailing Buenos Aires
// province token, then upper-cases.
func CleanLocality(s string) string {
	s = fixpoint(strings.TrimSpace(s), func(v string) string {
		v = leadingPostalRe.ReplaceAllString(v, "")
		return strings.TrimSpace(provinceTailRe.ReplaceAllString(v, ""))
	})
	return strings.ToUpper(s)
}

var provinces = map[string]string{
	"BA":                     "BUENOS AIRES",
	"B A":                    "BUENOS AIRES",
	"BS AS":                  "BUENOS AIRES",
	"BS. AS.":                "BUENOS AIRES",
	"BS.AS.":                 "BUENOS AIRES",
	"BSAS":                   "BUENOS AIRES",
	"CF":                     "CAPITAL FEDERAL",
	"C.F.":                   "CAPITAL FEDERAL",
	"CABA":                   "CAPITAL FEDERAL",
	"C.A.B.A.":               "CAPITAL FEDERAL",
	"CDAD. DE BS AS":         "CAPITAL FEDERAL",
	"CIUDAD DE BUENOS AIRES": "CAPITAL FEDERAL",
	"CBA":                    "CORDOBA",
	"STA FE":                 "SANTA FE",
	"SF":                     "SANTA FE",
	"MZA":                    "MENDOZA",
	"TUC":                    "TUCUMAN",
	"SDE":                    "SANTIAGO DEL ESTERO",
	"STGO DEL ESTERO":        "SANTIAGO DEL ESTERO",
	"SL":                     "SAN LUIS",
	"SJ":                     "SAN JUAN",
}

// Province maps common abbreviations to the canonical province name.
// Unknown values come back upper-cased.
func Province(s string) string {
	key := strings.ToUpper(textnorm.Collapse(s))
	if full, ok := provinces[key]; ok {
		return full
	}
	if full, ok := provinces[textnorm.StripAccents(key)]; ok {
		return full
	}
	return key
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) (string, bool) {
	r := []rune(s)
	if len(r) <= n {
		return s, false
	}
	return string(r[:n]), true
}
