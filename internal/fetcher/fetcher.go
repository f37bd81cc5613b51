// Package fetcher reads and writes the tabular files the converter works
// with: legacy-encoded delimited text and xlsx workbooks.
package fetcher

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultEncoding is used when no encoding name is configured.
const DefaultEncoding = "iso-8859-1"

// LookupEncoding resolves a WHATWG encoding label ("iso-8859-1",
// "windows-1252", "utf-8"). An empty name yields DefaultEncoding.
func LookupEncoding(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultEncoding
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: unknown encoding %q", name)
	}
	return enc, nil
}

// DecodeAll reads r to the end and decodes it with the named encoding. A
// leading UTF-8 byte order mark is dropped when the encoding is UTF-8.
func DecodeAll(r io.Reader, name string) (string, error) {
	enc, err := LookupEncoding(name)
	if err != nil {
		return "", err
	}
	if enc == unicode.UTF8 {
		enc = unicode.UTF8BOM
	}
	data, err := io.ReadAll(transform.NewReader(r, enc.NewDecoder()))
	if err != nil {
		return "", eris.Wrap(err, "fetcher: decode")
	}
	return string(data), nil
}
