package lookup

import (
	"html"
	"regexp"
	"strings"

	"github.com/sells-group/order-convert/pkg/cuit"
)

var (
	blockRe   = regexp.MustCompile(`Operativo\s+N\s*[°º]`)
	cuitRe    = regexp.MustCompile(`(?i)CUIT:\s*(\d[\d-]*\d|\d)`)
	dropRe    = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	tagRe     = regexp.MustCompile(`<[^>]+>`)
	spaceRe   = regexp.MustCompile(`[ \t\r\f\v]+`)
	newlineRe = regexp.MustCompile(`\n{3,}`)
)

// ExtractCUIT finds the CUIT of the operative listing contract in a page's
// text. The page is split into "Operativo N°" blocks; the first CUIT of the
// block naming the contract wins, then the first CUIT anywhere on the page.
// Eleven digits are formatted as NN-NNNNNNNN-N; other digit runs are kept as
// found. An empty string means nothing was found.
func ExtractCUIT(text, contract string) string {
	contract = strings.TrimSpace(contract)
	if contract != "" {
		marker := regexp.MustCompile(`N\s*[°º]\s*de\s+Contrato:\s*` + regexp.QuoteMeta(contract) + `(?:\D|$)`)
		for _, block := range blockRe.Split(text, -1) {
			if !marker.MatchString(block) {
				continue
			}
			if m := cuitRe.FindStringSubmatch(block); m != nil {
				return clean(m[1])
			}
		}
	}
	if m := cuitRe.FindStringSubmatch(text); m != nil {
		return clean(m[1])
	}
	return ""
}

func clean(found string) string {
	d := cuit.Digits(found)
	if len(d) == cuit.Length {
		return cuit.Format(d)
	}
	return d
}

// PageText reduces an HTML page to its visible text.
func PageText(page string) string {
	page = dropRe.ReplaceAllString(page, "")
	page = tagRe.ReplaceAllString(page, "\n")
	page = html.UnescapeString(page)
	page = spaceRe.ReplaceAllString(page, " ")

	lines := strings.Split(page, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	page = strings.Join(lines, "\n")
	return strings.TrimSpace(newlineRe.ReplaceAllString(page, "\n\n"))
}
