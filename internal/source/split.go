package source

import "strings"

// delimiterCandidates are tried in order; on a tie the earlier one wins.
var delimiterCandidates = []rune{',', ';', '\t', '|'}

// sampleLines is how many leading lines DetectDelimiter looks at.
const sampleLines = 10

// DetectDelimiter picks the candidate delimiter occurring most often in the
// first lines of text. It returns ',' when none occurs.
func DetectDelimiter(text string) rune {
	lines := strings.SplitN(text, "\n", sampleLines+1)
	if len(lines) > sampleLines {
		lines = lines[:sampleLines]
	}

	best, bestCount := ',', 0
	for _, c := range delimiterCandidates {
		n := 0
		for _, l := range lines {
			n += strings.Count(l, string(c))
		}
		if n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

// SplitCells splits one raw line on delim, honouring double quotes: a
// delimiter inside quotes is literal and "" inside quotes is one quote. A
// line wrapped in quotes as a whole (Excel sometimes exports a row as a
// single quoted cell) is unwrapped first.
func SplitCells(line string, delim rune) []string {
	line = strings.TrimRight(line, "\r\n")
	line = unwrapLine(line, delim)

	var (
		cells   []string
		cur     strings.Builder
		inQuote bool
	)
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' && inQuote && i+1 < len(runes) && runes[i+1] == '"':
			cur.WriteRune('"')
			i++
		case r == '"':
			inQuote = !inQuote
		case r == delim && !inQuote:
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(cells, strings.TrimSpace(cur.String()))
}

// unwrapLine strips one pair of quotes enclosing the whole line when the
// inner text carries the delimiter, collapsing doubled quotes.
func unwrapLine(line string, delim rune) string {
	t := strings.TrimSpace(line)
	if len(t) < 2 || t[0] != '"' || t[len(t)-1] != '"' {
		return line
	}
	inner := t[1 : len(t)-1]
	if !strings.ContainsRune(inner, delim) {
		return line
	}
	// A quoted first cell followed by more cells is not a wrapped line.
	if strings.Contains(strings.ReplaceAll(inner, `""`, ""), `"`) {
		return line
	}
	return strings.ReplaceAll(inner, `""`, `"`)
}
