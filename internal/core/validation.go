package core

// validation.go provides row-level validation for encounter records.
//
// Validation happens at two levels:
//  1. Header validation (CheckHeader): every required column must be present,
//     otherwise the run is aborted.
//  2. Row validation: every field is normalized against its FieldSpec and each
//     failure adds the FieldSpec's reason code. All failures are collected; there is
//     no short-circuit on the first one.

import (
	"fmt"
	"strings"
)

// ValidationError describes one failed field check on a row.
type ValidationError struct {
	Field   string     `json:"field"`
	Value   string     `json:"value"`
	Reason  ReasonCode `json:"reason"`
	Message string     `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Verdict is the outcome of validating one record, before duplicate checking.
type Verdict struct {
	Reasons ReasonSet
	Key     NaturalKey
	Values  map[string]Normalized
	Errors  []ValidationError
}

// Passed reports whether no check has failed.
func (v Verdict) Passed() bool {
	return v.Reasons.Empty()
}

// RowValidator validates rows against a set of field specifications.
type RowValidator struct {
	specs     []FieldSpec
	headerIdx HeaderIndex
	width     int
}

// NewRowValidator creates a validator for the given specs. width is the
// number of columns in the source header; rows of any other width are
// malformed.
func NewRowValidator(specs []FieldSpec, headerIdx HeaderIndex, width int) *RowValidator {
	return &RowValidator{
		specs:     specs,
		headerIdx: headerIdx,
		width:     width,
	}
}

// Validate normalizes every field of rec and returns all failures.
func (v *RowValidator) Validate(rec RawRecord) Verdict {
	if rec.Malformed || len(rec.Fields) != v.width {
		return Verdict{
			Reasons: ReasonSet(0).Add(ReasonMalformed),
			Errors: []ValidationError{{
				Reason:  ReasonMalformed,
				Message: fmt.Sprintf("expected %d columns, got %d", v.width, len(rec.Fields)),
			}},
		}
	}

	verdict := Verdict{
		Values: make(map[string]Normalized, len(v.specs)),
	}

	var blank []string
	for _, spec := range v.specs {
		raw := rec.Get(v.headerIdx, spec.Name)

		if spec.Critical && strings.TrimSpace(raw) == "" {
			blank = append(blank, spec.Name)
		}

		n := Normalize(spec, raw)
		verdict.Values[spec.Name] = n
		if n.Valid {
			continue
		}

		verdict.Reasons = verdict.Reasons.Add(spec.Reason)
		verdict.Errors = append(verdict.Errors, ValidationError{
			Field:   spec.Name,
			Value:   raw,
			Reason:  spec.Reason,
			Message: invalidMessage(spec),
		})
	}

	if len(blank) > 0 {
		verdict.Reasons = verdict.Reasons.Add(ReasonCritical)
		verdict.Errors = append(verdict.Errors, ValidationError{
			Field:   strings.Join(blank, ", "),
			Reason:  ReasonCritical,
			Message: "required value is empty",
		})
	}

	verdict.Key = MakeNaturalKey(
		rec.Get(v.headerIdx, ColName),
		rec.Get(v.headerIdx, ColAdmissionDate),
		rec.Get(v.headerIdx, ColHospital),
	)

	return verdict
}

// invalidMessage returns a human-readable message for a failed field.
func invalidMessage(spec FieldSpec) string {
	switch spec.Type {
	case FieldInteger:
		return "invalid integer"
	case FieldDecimal:
		return "invalid decimal number"
	case FieldDate:
		return "invalid date format (use YYYY-MM-DD)"
	case FieldEnum:
		return fmt.Sprintf("value must be one of: %s", strings.Join(spec.EnumValues, ", "))
	default:
		return "invalid value"
	}
}
