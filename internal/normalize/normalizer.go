// Package normalize rewrites free-text order fields into the vocabulary the
// downstream system expects. Every rewrite is idempotent: normalizing an
// already normalized row changes nothing.
package normalize

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/order-convert/internal/model"
	"github.com/sells-group/order-convert/pkg/textnorm"
)

// Normalizer applies the field rewrites in a fixed order.
type Normalizer struct {
	dict *Dictionary
}

// New returns a Normalizer backed by dict. A nil dictionary maps nothing.
func New(dict *Dictionary) *Normalizer {
	if dict == nil {
		dict = NewDictionary(nil)
	}
	return &Normalizer{dict: dict}
}

// Normalize rewrites row in place and returns informational warnings about
// adjustments that lost data (truncation).
func (n *Normalizer) Normalize(row *model.OrderRow) []string {
	var warnings []string

	row.Procedure = n.Procedure(row.Procedure)

	row.Frequency = model.ParseFrequency(string(row.Frequency))
	if row.Frequency == model.FrequencyReconfirmation {
		row.Risk = row.Procedure
	}

	row.EstablishmentNumber, row.Employer = splitEmployer(row.EstablishmentNumber, row.Employer)

	if strings.TrimSpace(row.PostalCode) == "" {
		if code, rest, ok := SplitPostalCode(row.Locality); ok {
			row.PostalCode = code
			row.Locality = rest
		}
	}

	row.Locality = CleanLocality(row.Locality)
	row.Province = Province(row.Province)

	if w, ok := truncateField(&row.Risk, "risk"); ok {
		warnings = append(warnings, w)
	}
	if w, ok := truncateField(&row.RiskDescription, "risk description"); ok {
		warnings = append(warnings, w)
	}

	return warnings
}

// Procedure cleans code markers, strips accents and applies the dictionary
// until the value settles.
func (n *Normalizer) Procedure(s string) string {
	return fixpoint(strings.TrimSpace(s), func(v string) string {
		v = textnorm.StripAccents(CleanProcedure(v))
		return n.dict.Map(v)
	})
}

func splitEmployer(number, employer string) (string, string) {
	employer = fixpoint(strings.TrimSpace(employer), func(v string) string {
		if num, name, ok := SplitEstablishment(v); ok {
			number = num
			return name
		}
		return v
	})
	return number, employer
}

// truncateField caps *s at model.RiskMaxLen runes and describes the cut.
func truncateField(s *string, label string) (string, bool) {
	cut, ok := truncateRunes(*s, model.RiskMaxLen)
	if !ok {
		return "", false
	}
	preview, _ := truncateRunes(*s, 30)
	w := fmt.Sprintf("%s truncated from %d to %d characters: %s...",
		label, utf8.RuneCountInString(*s), model.RiskMaxLen, preview)
	*s = cut
	return w, true
}
