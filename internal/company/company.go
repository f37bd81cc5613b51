// Package company keeps the employer registry: one row per employer site,
// persisted to a single xlsx workbook.
package company

import (
	"strings"

	"github.com/sells-group/order-convert/pkg/cuit"
	"github.com/sells-group/order-convert/pkg/textnorm"
)

// Record is one registry row. Row is the stable identifier assigned when the
// record was inserted; zero means "not yet stored".
type Record struct {
	Row        int    `json:"row"`
	CUIT       string `json:"cuit"`
	CIIU       string `json:"ciiu,omitempty"`
	Name       string `json:"name"`
	Street     string `json:"street,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Locality   string `json:"locality,omitempty"`
	Province   string `json:"province,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Fax        string `json:"fax,omitempty"`
	Email      string `json:"email,omitempty"`
}

// Digits returns the CUIT digits of r.
func (r Record) Digits() string { return cuit.Digits(r.CUIT) }

// Site returns the physical-site key of r.
func (r Record) Site() SiteKey { return NewSiteKey(r.Street, r.Locality, r.Province) }

// SiteKey identifies a physical site. Two records with the same CUIT and the
// same SiteKey describe the same establishment.
type SiteKey struct {
	Street   string
	Locality string
	Province string
}

// NewSiteKey folds the address parts: accents stripped, upper-cased and
// whitespace collapsed.
func NewSiteKey(street, locality, province string) SiteKey {
	return SiteKey{
		Street:   textnorm.Key(street),
		Locality: textnorm.Key(locality),
		Province: textnorm.Key(province),
	}
}

// String renders the key as STREET|LOCALITY|PROVINCE.
func (k SiteKey) String() string {
	return k.Street + "|" + k.Locality + "|" + k.Province
}

// ParseSiteKey is the inverse of SiteKey.String. The last two separators
// delimit locality and province, so a street containing "|" survives.
func ParseSiteKey(s string) (SiteKey, bool) {
	p := strings.LastIndex(s, "|")
	if p < 0 {
		return SiteKey{}, false
	}
	l := strings.LastIndex(s[:p], "|")
	if l < 0 {
		return SiteKey{}, false
	}
	return SiteKey{Street: s[:l], Locality: s[l+1 : p], Province: s[p+1:]}, true
}
