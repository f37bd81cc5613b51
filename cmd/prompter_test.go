package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/order-convert/internal/company"
	"github.com/sells-group/order-convert/internal/resolution"
)

func sampleConflict(existing ...company.Record) resolution.Conflict {
	in := company.Record{CUIT: "30-71234567-8", Name: "ACME SA", Street: "Calle 2", Locality: "MUNRO", Province: "BUENOS AIRES"}
	return resolution.Conflict{
		Kind:     resolution.ConflictAdditionalSite,
		Key:      resolution.KeyFor(in),
		Incoming: in,
		Existing: existing,
	}
}

var (
	acmeMunro = company.Record{Row: 2, CUIT: "30-71234567-8", Name: "ACME SA", Street: "Calle 1", Locality: "MUNRO"}
	acmePilar = company.Record{Row: 5, CUIT: "30-71234567-8", Name: "ACME SA", Street: "Ruta 8", Locality: "PILAR"}
)

func TestParseAnswer(t *testing.T) {
	two := sampleConflict(acmeMunro, acmePilar)
	one := sampleConflict(acmeMunro)

	tests := []struct {
		name   string
		line   string
		c      resolution.Conflict
		want   resolution.Decision
		ok     bool
		cancel bool
	}{
		{"keep", "k\n", two, resolution.Keep(), true, false},
		{"ignore upper", " I ", two, resolution.Ignore(), true, false},
		{"unify with row", "u 5", two, resolution.Unify(5), true, false},
		{"unify compact", "u2", two, resolution.Unify(2), true, false},
		{"unify single candidate", "u", one, resolution.Unify(2), true, false},
		{"unify needs row when ambiguous", "u", two, resolution.Decision{}, false, false},
		{"unify unknown row", "u 9", two, resolution.Decision{}, false, false},
		{"cancel", "c", two, resolution.Decision{}, false, true},
		{"empty", "", two, resolution.Decision{}, false, false},
		{"garbage", "x", two, resolution.Decision{}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok, cancel := parseAnswer(tt.line, tt.c)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.cancel, cancel)
			if tt.ok {
				assert.Equal(t, tt.want, d)
			}
		})
	}
}

func TestTerminalPrompter_RetriesUntilValid(t *testing.T) {
	var out bytes.Buffer
	p := newTerminalPrompter(strings.NewReader("what\nu 5\n"), &out)

	d, err := p.Decide(context.Background(), sampleConflict(acmeMunro, acmePilar))

	require.NoError(t, err)
	assert.Equal(t, resolution.Unify(5), d)
	assert.Contains(t, out.String(), "registered at other addresses")
	assert.Contains(t, out.String(), "Ruta 8")
	assert.Contains(t, out.String(), "Invalid answer.")
}

func TestTerminalPrompter_LastLineWithoutNewline(t *testing.T) {
	p := newTerminalPrompter(strings.NewReader("k"), &bytes.Buffer{})

	d, err := p.Decide(context.Background(), sampleConflict(acmeMunro))

	require.NoError(t, err)
	assert.Equal(t, resolution.Keep(), d)
}

func TestTerminalPrompter_EOFCancels(t *testing.T) {
	p := newTerminalPrompter(strings.NewReader("nonsense"), &bytes.Buffer{})

	_, err := p.Decide(context.Background(), sampleConflict(acmeMunro))

	assert.ErrorIs(t, err, resolution.ErrPromptCancelled)
}

func TestTerminalPrompter_DuplicateWording(t *testing.T) {
	var out bytes.Buffer
	c := sampleConflict(acmeMunro)
	c.Kind = resolution.ConflictDuplicate
	p := newTerminalPrompter(strings.NewReader("c\n"), &out)

	_, err := p.Decide(context.Background(), c)

	assert.ErrorIs(t, err, resolution.ErrPromptCancelled)
	assert.Contains(t, out.String(), "already registered at this address")
}

func TestDescribeRecord(t *testing.T) {
	assert.Equal(t, "ACME SA, Calle 1, MUNRO", describeRecord(acmeMunro))
}
