package company

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSiteKey_Folds(t *testing.T) {
	a := NewSiteKey(" Av.  Córdoba 1234", "munro", "Buenos Aires ")
	b := NewSiteKey("AV. CORDOBA 1234", "MUNRO", "BUENOS   AIRES")
	assert.Equal(t, a, b)
	assert.Equal(t, "AV. CORDOBA 1234|MUNRO|BUENOS AIRES", a.String())
}

func TestSiteKey_RoundTrip(t *testing.T) {
	keys := []SiteKey{
		NewSiteKey("Calle 1", "Munro", "Buenos Aires"),
		NewSiteKey("", "", ""),
		{Street: "LOTE 4|5", Locality: "PILAR", Province: "BUENOS AIRES"},
	}
	for _, k := range keys {
		got, ok := ParseSiteKey(k.String())
		assert.True(t, ok)
		assert.Equal(t, k, got)
	}
}

func TestParseSiteKey_Malformed(t *testing.T) {
	_, ok := ParseSiteKey("no separators")
	assert.False(t, ok)
	_, ok = ParseSiteKey("one|separator")
	assert.False(t, ok)
}

func TestRecord_DigitsAndSite(t *testing.T) {
	r := Record{CUIT: "30-71234567-8", Street: "calle 1", Locality: "munro", Province: "ba"}
	assert.Equal(t, "30712345678", r.Digits())
	assert.Equal(t, SiteKey{Street: "CALLE 1", Locality: "MUNRO", Province: "BA"}, r.Site())
}
