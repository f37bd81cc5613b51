package normalize

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/order-convert/internal/fetcher"
	"github.com/sells-group/order-convert/pkg/textnorm"
)

// Dictionary maps free-text procedure names to their canonical spelling.
// Matching is exact after folding case, accents and whitespace. Chains
// (A→B, B→C) are collapsed when the dictionary is built, and cycles settle on
// one member that maps to itself, so a lookup result never maps anywhere
// else.
type Dictionary struct {
	entries map[string]string
}

type dictEntry struct {
	key    string // surface form of the origin
	target string
}

// NewDictionary builds a dictionary from origin → target pairs. Blank
// origins or targets are ignored.
func NewDictionary(pairs map[string]string) *Dictionary {
	raw := make(map[string]dictEntry, len(pairs))
	// Sorted so that duplicate folded origins resolve the same way every run.
	origins := make([]string, 0, len(pairs))
	for k := range pairs {
		origins = append(origins, k)
	}
	sort.Strings(origins)
	for _, k := range origins {
		target := strings.TrimSpace(pairs[k])
		fk := textnorm.Key(k)
		if fk == "" || target == "" {
			continue
		}
		if _, dup := raw[fk]; dup {
			continue
		}
		raw[fk] = dictEntry{key: strings.TrimSpace(k), target: target}
	}

	d := &Dictionary{entries: make(map[string]string, len(raw))}
	for fk := range raw {
		d.entries[fk] = terminal(raw, fk)
	}
	return d
}

// terminal follows the chain starting at fk until it leaves the dictionary
// or loops. A loop settles on its lexically smallest member, spelled as that
// member's own origin.
func terminal(raw map[string]dictEntry, fk string) string {
	seen := map[string]int{fk: 0}
	path := []string{fk}
	cur := raw[fk].target
	for {
		next := textnorm.Key(cur)
		if _, ok := raw[next]; !ok {
			return cur
		}
		if idx, loop := seen[next]; loop {
			cycle := path[idx:]
			if len(cycle) == 1 {
				return cur
			}
			smallest := cycle[0]
			for _, c := range cycle[1:] {
				if c < smallest {
					smallest = c
				}
			}
			return raw[smallest].key
		}
		seen[next] = len(path)
		path = append(path, next)
		cur = raw[next].target
	}
}

// Lookup returns the canonical spelling for s.
func (d *Dictionary) Lookup(s string) (string, bool) {
	if d == nil {
		return "", false
	}
	v, ok := d.entries[textnorm.Key(s)]
	return v, ok
}

// Map returns the canonical spelling for s, or s itself when unmapped.
func (d *Dictionary) Map(s string) string {
	if v, ok := d.Lookup(s); ok {
		return v
	}
	return s
}

// Len returns the number of origins.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// LoadDictionary reads a dictionary from path, choosing the format by
// extension: .csv (legacy-encoded, header row skipped, origin,target),
// .xlsx (first sheet, header row skipped, columns A and B) or .yaml/.yml
// (a "procedures" mapping). A missing file yields an empty dictionary.
func LoadDictionary(ctx context.Context, path, encoding string) (*Dictionary, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		zap.L().Info("procedure dictionary not found, continuing without it", zap.String("path", path))
		return NewDictionary(nil), nil
	}

	var (
		pairs map[string]string
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		pairs, err = loadDictionaryXLSX(path)
	case ".yaml", ".yml":
		pairs, err = loadDictionaryYAML(path)
	default:
		pairs, err = loadDictionaryCSV(ctx, path, encoding)
	}
	if err != nil {
		return nil, err
	}

	d := NewDictionary(pairs)
	zap.L().Info("loaded procedure dictionary",
		zap.String("path", path),
		zap.Int("entries", d.Len()),
	)
	return d, nil
}

func loadDictionaryCSV(ctx context.Context, path, encoding string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "normalize: open dictionary")
	}
	defer f.Close() //nolint:errcheck

	text, err := fetcher.DecodeAll(f, encoding)
	if err != nil {
		return nil, eris.Wrap(err, "normalize: decode dictionary")
	}

	rowCh, errCh := fetcher.StreamCSV(ctx, strings.NewReader(text), fetcher.CSVOptions{
		LazyQuotes: true,
		TrimSpace:  true,
	})

	pairs := make(map[string]string)
	first := true
	for row := range rowCh {
		if first {
			first = false
			continue
		}
		if row.Err != nil {
			zap.L().Debug("skipping dictionary line", zap.Int("line", row.Line), zap.Error(row.Err))
			continue
		}
		if len(row.Fields) < 2 {
			continue
		}
		pairs[unquote(row.Fields[0])] = unquote(row.Fields[1])
	}
	for err := range errCh {
		if err != nil {
			return nil, eris.Wrap(err, "normalize: read dictionary")
		}
	}
	return pairs, nil
}

func loadDictionaryXLSX(path string) (map[string]string, error) {
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SkipRows: 1})
	if err != nil {
		return nil, eris.Wrap(err, "normalize: read dictionary workbook")
	}
	pairs := make(map[string]string, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		pairs[row[0]] = row[1]
	}
	return pairs, nil
}

type dictionaryFile struct {
	Procedures map[string]string `yaml:"procedures"`
}

func loadDictionaryYAML(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "normalize: read dictionary")
	}
	var df dictionaryFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return nil, eris.Wrap(err, "normalize: parse dictionary yaml")
	}
	return df.Procedures, nil
}

func unquote(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"`))
}
