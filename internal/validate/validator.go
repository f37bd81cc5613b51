// Package validate checks canonical order rows for the fields the
// downstream system requires.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sells-group/order-convert/internal/model"
	"github.com/sells-group/order-convert/pkg/cuit"
)

// mandatory mirrors the required columns of an order row with trimmed
// values. Field order fixes the order of reported errors.
type mandatory struct {
	EmployerCUIT string `validate:"required"`
	Employer     string `validate:"required"`
	Locality     string `validate:"required"`
	Province     string `validate:"required"`
	Frequency    string `validate:"required,oneof=A S R"`
	WorkerCUIL   string `validate:"required"`
	WorkerName   string `validate:"required"`
	Risk         string `validate:"required"`
	Procedure    string `validate:"required"`
}

var requiredMessages = map[string]string{
	"EmployerCUIT": "employer CUIT is required",
	"Employer":     "employer name is required",
	"Locality":     "locality is required",
	"Province":     "province is required",
	"Frequency":    "frequency is required",
	"WorkerCUIL":   "worker CUIL is required",
	"WorkerName":   "worker name is required",
	"Risk":         "risk is required",
	"Procedure":    "procedure is required",
}

// Validator checks order rows. It is safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator.
func New() *Validator {
	return &Validator{v: validator.New()}
}

// Validate reports mandatory-field errors and format warnings for row.
// Valid is false exactly when at least one error was found.
func (val *Validator) Validate(row model.OrderRow) model.ValidationResult {
	in := mandatory{
		EmployerCUIT: strings.TrimSpace(row.EmployerCUIT),
		Employer:     strings.TrimSpace(row.Employer),
		Locality:     strings.TrimSpace(row.Locality),
		Province:     strings.TrimSpace(row.Province),
		Frequency:    string(model.ParseFrequency(string(row.Frequency))),
		WorkerCUIL:   strings.TrimSpace(row.WorkerCUIL),
		WorkerName:   strings.TrimSpace(row.WorkerName),
		Risk:         strings.TrimSpace(row.Risk),
		Procedure:    strings.TrimSpace(row.Procedure),
	}

	var res model.ValidationResult
	if err := val.v.Struct(in); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			res.Errors = append(res.Errors, err.Error())
		}
		for _, fe := range ve {
			res.Errors = append(res.Errors, message(fe))
		}
	}

	if in.EmployerCUIT != "" && !cuit.IsValid(in.EmployerCUIT) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("employer CUIT format looks invalid: %s", in.EmployerCUIT))
	}
	if in.WorkerCUIL != "" && !cuit.IsValid(in.WorkerCUIL) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("worker CUIL format looks invalid: %s", in.WorkerCUIL))
	}

	res.Valid = len(res.Errors) == 0
	return res
}

func message(fe validator.FieldError) string {
	if fe.Tag() == "oneof" {
		return fmt.Sprintf("invalid frequency %q: must be A, S or R", fe.Value())
	}
	if msg, ok := requiredMessages[fe.Field()]; ok {
		return msg
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}

// Describe joins the errors of res the way they are stored on a row.
func Describe(res model.ValidationResult) string {
	return strings.Join(res.Errors, "; ")
}
