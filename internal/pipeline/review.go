package pipeline

import (
	"fmt"

	"github.com/sells-group/order-convert/internal/model"
	"github.com/sells-group/order-convert/internal/normalize"
	"github.com/sells-group/order-convert/internal/validate"
)

// PhaseReview names the normalize and validate phase in progress events.
const PhaseReview = "review"

// ReviewSummary collects the messages of a normalize and validate pass.
type ReviewSummary struct {
	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Invalid  int      `json:"invalid"`
}

// NormalizeAndValidate normalizes every row in place and validates it. An
// invalid row gets its errors in ErrorDescription; a valid row has it
// cleared. Messages are prefixed with the 1-based row number.
func NormalizeAndValidate(rows []model.OrderRow, n *normalize.Normalizer, v *validate.Validator, opts Options) ReviewSummary {
	var sum ReviewSummary
	for i := range rows {
		row := &rows[i]
		for _, w := range n.Normalize(row) {
			sum.Warnings = append(sum.Warnings, fmt.Sprintf("row %d: %s", i+1, w))
		}

		res := v.Validate(*row)
		for _, w := range res.Warnings {
			sum.Warnings = append(sum.Warnings, fmt.Sprintf("row %d: %s", i+1, w))
		}
		for _, e := range res.Errors {
			sum.Errors = append(sum.Errors, fmt.Sprintf("row %d: %s", i+1, e))
		}
		if res.Valid {
			row.ErrorDescription = ""
		} else {
			row.ErrorDescription = validate.Describe(res)
			sum.Invalid++
		}
		opts.tick(PhaseReview, i, len(rows))
	}
	return sum
}

// Blocked returns the indexes of rows carrying validation errors.
func Blocked(rows []model.OrderRow) []int {
	var out []int
	for i, row := range rows {
		if row.ErrorDescription != "" {
			out = append(out, i)
		}
	}
	return out
}
