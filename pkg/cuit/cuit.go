// Package cuit handles Argentine fiscal identifiers (CUIT for employers, CUIL
// for workers). Both share the 11-digit NN-NNNNNNNN-N shape.
package cuit

import "strings"

// Length is the number of digits in a well-formed identifier.
const Length = 11

// Digits returns only the ASCII digits of s, in order.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValid reports whether s reduces to exactly 11 digits. No checksum is
// verified.
func IsValid(s string) bool {
	return len(Digits(s)) == Length
}

// Format renders s as NN-NNNNNNNN-N when it reduces to 11 digits. Anything
// else is returned trimmed and otherwise untouched.
func Format(s string) string {
	d := Digits(s)
	if len(d) != Length {
		return strings.TrimSpace(s)
	}
	return d[:2] + "-" + d[2:10] + "-" + d[10:]
}

// Equal reports whether a and b carry the same non-empty digit sequence.
func Equal(a, b string) bool {
	da := Digits(a)
	return da != "" && da == Digits(b)
}
