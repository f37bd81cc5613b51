package model

import (
	"strings"

	"github.com/google/uuid"

	"github.com/sells-group/order-convert/pkg/cuit"
)

// Frequency is the exam frequency code of an order.
type Frequency string

const (
	FrequencyAnnual         Frequency = "A"
	FrequencySemiannual     Frequency = "S"
	FrequencyReconfirmation Frequency = "R" // risk is copied from the procedure
)

// ParseFrequency upper-cases and trims s. The result is not guaranteed to be
// one of the known codes; validation reports that.
func ParseFrequency(s string) Frequency {
	return Frequency(strings.ToUpper(strings.TrimSpace(s)))
}

// Known reports whether f is A, S or R.
func (f Frequency) Known() bool {
	switch f {
	case FrequencyAnnual, FrequencySemiannual, FrequencyReconfirmation:
		return true
	}
	return false
}

// RiskMaxLen caps the risk and risk description columns.
const RiskMaxLen = 90

// OrderRow is the canonical medical-order record. Field order follows the
// output columns A through Y.
type OrderRow struct {
	EmployerCUIT        string    `json:"employer_cuit"`                  // A
	CIIU                string    `json:"ciiu,omitempty"`                 // B
	Employer            string    `json:"employer"`                       // C
	Street              string    `json:"street,omitempty"`               // D
	PostalCode          string    `json:"postal_code,omitempty"`          // E
	Locality            string    `json:"locality"`                       // F
	Province            string    `json:"province"`                       // G
	LocalityChange      string    `json:"locality_change,omitempty"`      // H
	Phone               string    `json:"phone,omitempty"`                // I
	Fax                 string    `json:"fax,omitempty"`                  // J
	Contract            string    `json:"contract,omitempty"`             // K
	EstablishmentNumber string    `json:"establishment_number,omitempty"` // L
	Frequency           Frequency `json:"frequency"`                      // M
	WorkerCUIL          string    `json:"worker_cuil"`                    // N
	DocumentNumber      string    `json:"document_number,omitempty"`      // O
	WorkerName          string    `json:"worker_name"`                    // P
	Risk                string    `json:"risk"`                           // Q
	RiskDescription     string    `json:"risk_description,omitempty"`     // R
	RiskChange          string    `json:"risk_change,omitempty"`          // S
	Procedure           string    `json:"procedure"`                      // T
	ClinicalHistory     string    `json:"clinical_history,omitempty"`     // U
	Email               string    `json:"email,omitempty"`                // V
	Referrer            string    `json:"referrer,omitempty"`             // W
	ErrorDescription    string    `json:"error_description,omitempty"`    // X
	ID                  string    `json:"id,omitempty"`                   // Y
}

// IsEmpty reports whether no identifying content was extracted. Such rows
// are dropped by the readers.
func (r OrderRow) IsEmpty() bool {
	return strings.TrimSpace(r.WorkerCUIL) == "" &&
		strings.TrimSpace(r.WorkerName) == "" &&
		strings.TrimSpace(r.Procedure) == "" &&
		strings.TrimSpace(r.Risk) == "" &&
		strings.TrimSpace(r.EmployerCUIT) == "" &&
		strings.TrimSpace(r.Employer) == ""
}

// ValidationResult is the outcome of validating one row.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ImportResult collects everything a reader produced for one source file.
type ImportResult struct {
	ID       string     `json:"id"`
	Source   string     `json:"source"`
	Rows     []OrderRow `json:"rows"`
	Warnings []string   `json:"warnings,omitempty"`
	Errors   []string   `json:"errors,omitempty"`
}

// NewImportResult returns an empty result with a fresh correlation id.
func NewImportResult(source string) *ImportResult {
	return &ImportResult{ID: uuid.NewString(), Source: source}
}

// TotalRows returns the number of extracted rows.
func (r *ImportResult) TotalRows() int { return len(r.Rows) }

// HasErrors reports whether the source could not be read.
func (r *ImportResult) HasErrors() bool { return len(r.Errors) > 0 }

// UniqueCompanies counts distinct employer CUITs (by digits) among the rows.
func (r *ImportResult) UniqueCompanies() int {
	return countDistinct(r.Rows, func(o OrderRow) string { return cuit.Digits(o.EmployerCUIT) })
}

// UniqueWorkers counts distinct worker CUILs (by digits) among the rows.
func (r *ImportResult) UniqueWorkers() int {
	return countDistinct(r.Rows, func(o OrderRow) string { return cuit.Digits(o.WorkerCUIL) })
}

func countDistinct(rows []OrderRow, key func(OrderRow) string) int {
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if k := key(row); k != "" {
			seen[k] = struct{}{}
		}
	}
	return len(seen)
}
