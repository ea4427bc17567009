package payroll

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/nurse-pay/generic"
)

// SalaryTolerance is the relative gap between salary and hourly rate × hours
// above which a rate is flagged as inconsistent.
var SalaryTolerance = decimal.NewFromFloat(0.05)

// ValidationResult lists every problem found in a record. Warnings never
// make a record invalid.
type ValidationResult struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings,omitempty"`
}

func (v *ValidationResult) fail(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

func (v *ValidationResult) warn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}

func (v ValidationResult) done() ValidationResult {
	v.IsValid = len(v.Errors) == 0
	if v.Errors == nil {
		v.Errors = []string{}
	}
	return v
}

// ValidationError carries the full result of a failed validation.
type ValidationError struct {
	Kind   string // "rate" or "mission"
	Result ValidationResult
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Kind, strings.Join(e.Result.Errors, "; "))
}

func (e *ValidationError) Unwrap() error { return generic.ErrInvalidRecord }

// =============================================================================
// RATE VALIDATION
// =============================================================================

// ValidateRate checks a rate template.
//
// A timed rate (hours > 0) needs an hourly rate or a salary; an indemnity
// (hours == 0) needs a salary. Hours come in quarter-hour steps.
func ValidateRate(r Rate) ValidationResult {
	var res ValidationResult

	if strings.TrimSpace(r.Acronym) == "" {
		res.fail("acronym is required")
	}

	switch {
	case r.Hours < 0:
		res.fail("hours must not be negative")
	case !decimal.NewFromFloat(r.Hours).Mul(decimal.NewFromInt(4)).IsInteger():
		res.fail("hours must be a multiple of 0.25")
	}

	if r.HourlyRate < 0 {
		res.fail("hourly rate must not be negative")
	}
	if r.Salary < 0 {
		res.fail("salary must not be negative")
	}

	if r.Hours > 0 && r.HourlyRate <= 0 && r.Salary <= 0 {
		res.fail("a timed rate needs an hourly rate or a salary")
	}
	if r.Hours == 0 && r.Salary <= 0 {
		res.fail("an indemnity needs a salary")
	}

	checkTime(&res, "start time", r.StartTime)
	checkTime(&res, "end time", r.EndTime)

	if r.Hours > 0 && r.HourlyRate > 0 && r.Salary > 0 {
		expected := decimal.NewFromFloat(r.HourlyRate).Mul(decimal.NewFromFloat(r.Hours))
		gap := decimal.NewFromFloat(r.Salary).Sub(expected).Abs().Div(expected)
		if gap.GreaterThan(SalaryTolerance) {
			res.warn("salary (%.2f EUR) does not match hourly rate × hours (%s EUR)",
				r.Salary, expected.StringFixed(2))
		}
	}

	return res.done()
}

// =============================================================================
// MISSION VALIDATION
// =============================================================================

// ValidateMission checks a mission against the known rates.
func ValidateMission(m Mission, rates RateIndex) ValidationResult {
	var res ValidationResult

	if strings.TrimSpace(m.Date) == "" {
		res.fail("date is required")
	} else if _, err := generic.ParseDateKey(m.Date); err != nil {
		res.fail("date must be YYYY-MM-DD")
	}

	if strings.TrimSpace(m.RateID) == "" {
		res.fail("rate is required")
	} else if rates.Lookup(m.RateID) == nil {
		res.fail("rate %q does not exist", m.RateID)
	}

	if m.Status == "" {
		res.fail("status is required")
	} else if !m.Status.Valid() {
		res.fail("status %q is not valid", m.Status)
	}

	if m.RealGrossSalary < 0 {
		res.fail("real gross salary must not be negative")
	}
	if m.RealNetSalary < 0 {
		res.fail("real net salary must not be negative")
	}
	if m.RealGrossSalary > 0 && m.RealNetSalary > m.RealGrossSalary {
		res.fail("real net salary cannot exceed real gross salary")
	}

	checkTime(&res, "start time", m.StartTime)
	checkTime(&res, "end time", m.EndTime)

	return res.done()
}

func checkTime(res *ValidationResult, field, value string) {
	if value == "" {
		return
	}
	if _, err := generic.ParseTimeOfDay(value); err != nil {
		res.fail("%s must be HH:MM", field)
	}
}
