package fetcher

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	LazyQuotes bool
	TrimSpace  bool
}

// Row is one parsed record. Err is set when the record could not be parsed;
// Fields then holds whatever the parser recovered. A bad row never stops the
// stream.
type Row struct {
	Line   int
	Fields []string
	Err    error
}

// StreamCSV reads delimited text and sends rows to a channel.
// Caller must consume the returned row channel. Errors that end the stream
// (I/O failures, cancellation) are sent on the error channel. Both channels
// are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan Row, <-chan error) {
	rowCh := make(chan Row, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // allow variable fields

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}

			row := Row{Fields: record}
			var perr *csv.ParseError
			switch {
			case err == nil:
				row.Line, _ = reader.FieldPos(0)
			case errors.As(err, &perr):
				row.Line = perr.StartLine
				row.Err = eris.Wrapf(err, "csv: parse line %d", perr.StartLine)
			default:
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range row.Fields {
					row.Fields[i] = strings.TrimSpace(field)
				}
			}

			select {
			case rowCh <- row:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}
