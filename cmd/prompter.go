package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/sells-group/order-convert/internal/company"
	"github.com/sells-group/order-convert/internal/resolution"
)

// terminalPrompter asks the operator on a terminal. End of input cancels.
type terminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminalPrompter(in io.Reader, out io.Writer) *terminalPrompter {
	return &terminalPrompter{in: bufio.NewReader(in), out: out}
}

// Decide implements resolution.Prompter.
func (p *terminalPrompter) Decide(ctx context.Context, c resolution.Conflict) (resolution.Decision, error) {
	p.describe(c)
	for {
		if err := ctx.Err(); err != nil {
			return resolution.Decision{}, err
		}
		_, _ = fmt.Fprint(p.out, "[u ROW] unify, [k] keep as new, [i] ignore, [c] cancel: ")

		line, err := p.in.ReadString('\n')
		if err != nil && err != io.EOF {
			return resolution.Decision{}, eris.Wrap(err, "read answer")
		}

		d, ok, cancel := parseAnswer(line, c)
		switch {
		case cancel:
			return resolution.Decision{}, resolution.ErrPromptCancelled
		case ok:
			return d, nil
		case err == io.EOF:
			return resolution.Decision{}, resolution.ErrPromptCancelled
		}
		_, _ = fmt.Fprintln(p.out, "Invalid answer.")
	}
}

func (p *terminalPrompter) describe(c resolution.Conflict) {
	switch c.Kind {
	case resolution.ConflictDuplicate:
		_, _ = fmt.Fprintf(p.out, "\nCUIT %s is already registered at this address.\n", c.Incoming.CUIT)
	default:
		_, _ = fmt.Fprintf(p.out, "\nCUIT %s is registered at other addresses.\n", c.Incoming.CUIT)
	}
	_, _ = fmt.Fprintf(p.out, "Incoming: %s\n", describeRecord(c.Incoming))
	formatRecords(p.out, c.Existing)
}

// parseAnswer reads "u 12", "u12", "u" (only with a single candidate), "k",
// "i" or "c".
func parseAnswer(line string, c resolution.Conflict) (d resolution.Decision, ok, cancel bool) {
	answer := strings.ToLower(strings.TrimSpace(line))
	if answer == "" {
		return d, false, false
	}
	switch answer[0] {
	case 'k':
		return resolution.Keep(), true, false
	case 'i':
		return resolution.Ignore(), true, false
	case 'c':
		return d, false, true
	case 'u':
		arg := strings.TrimSpace(answer[1:])
		if arg == "" {
			if len(c.Existing) == 1 {
				return resolution.Unify(c.Existing[0].Row), true, false
			}
			return d, false, false
		}
		row, err := strconv.Atoi(arg)
		if err != nil || !c.Has(row) {
			return d, false, false
		}
		return resolution.Unify(row), true, false
	}
	return d, false, false
}

func describeRecord(r company.Record) string {
	return strings.Join(nonEmpty(r.Name, r.Street, r.Locality, r.Province), ", ")
}

func nonEmpty(values ...string) []string {
	out := values[:0]
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// formatRecords writes a table of registry records to out.
func formatRecords(out io.Writer, recs []company.Record) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ROW\tCUIT\tNAME\tSTREET\tLOCALITY\tPROVINCE")
	_, _ = fmt.Fprintln(w, "---\t----\t----\t------\t--------\t--------")
	for _, r := range recs {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", r.Row, r.CUIT, r.Name, r.Street, r.Locality, r.Province)
	}
	_ = w.Flush()
}
