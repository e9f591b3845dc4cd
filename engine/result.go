/*
result.go - Period results and the multi-period run outcome

PURPOSE:
  A PeriodResult is the merged cross-statement namespace for one period:
  every line item of every statement type, keyed by code. It is created
  by the orchestrator, immutable once returned, and handed read-only to
  the next period as the source for [t-1] references.

VALIDATION:
  Rule violations ride on the result, not on the error path. An
  error-severity violation marks the period invalid, but all line items
  are still present; the caller decides whether an invalid statement
  blocks downstream use.

SEE ALSO:
  - orchestrator.go: Builds these per period
  - calculator.go: Produces the per-statement slices that merge in
*/
package engine

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/statement-engine/template"
)

// =============================================================================
// VIOLATIONS
// =============================================================================

// Violation is one failed validation rule. Reported, never thrown.
type Violation struct {
	RuleID        string
	StatementType string
	Severity      template.Severity
	Message       string
}

// =============================================================================
// PERIOD RESULT
// =============================================================================

// PeriodResult maps line item codes to values for one period.
type PeriodResult struct {
	PeriodID   int
	values     map[string]decimal.Decimal
	violations []Violation
	valid      bool
}

// NewPeriodResult builds an immutable result from a value map. Used for
// initial balance sheet state and by tests; the orchestrator builds its
// own during merging.
func NewPeriodResult(periodID int, values map[string]decimal.Decimal) *PeriodResult {
	copied := make(map[string]decimal.Decimal, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &PeriodResult{PeriodID: periodID, values: copied, valid: true}
}

// Has reports whether code was produced this period.
func (r *PeriodResult) Has(code string) bool {
	_, ok := r.values[code]
	return ok
}

// Value returns the value for code, failing explicitly for unknown
// codes rather than defaulting to zero.
func (r *PeriodResult) Value(code string) (decimal.Decimal, error) {
	v, ok := r.values[code]
	if !ok {
		return decimal.Zero, ErrUnknownLineItem
	}
	return v, nil
}

// Codes returns every line item code, sorted.
func (r *PeriodResult) Codes() []string {
	codes := make([]string, 0, len(r.values))
	for c := range r.values {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Len returns the number of line items.
func (r *PeriodResult) Len() int { return len(r.values) }

// Violations returns the validation violations collected this period.
func (r *PeriodResult) Violations() []Violation {
	out := make([]Violation, len(r.violations))
	copy(out, r.violations)
	return out
}

// Valid reports whether the period passed every error-severity rule.
// Warnings never invalidate a period.
func (r *PeriodResult) Valid() bool { return r.valid }

// Values returns a copy of the full code → value map.
func (r *PeriodResult) Values() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// =============================================================================
// MULTI-PERIOD RESULT
// =============================================================================

// MultiPeriodResult is the outcome of one orchestrator run: one
// PeriodResult per completed period, in period order.
//
// On failure, Success is false, FailedPeriod and Err identify the stop
// cause, and Periods still holds everything completed before the
// failure. No partial period is ever included.
type MultiPeriodResult struct {
	Periods      []*PeriodResult
	Success      bool
	FailedPeriod int   // zero when Success
	Err          error // the *PeriodError that stopped the run, when any
}

// Period returns the result for periodID, or nil.
func (m *MultiPeriodResult) Period(periodID int) *PeriodResult {
	for _, p := range m.Periods {
		if p.PeriodID == periodID {
			return p
		}
	}
	return nil
}

// Last returns the most recent completed period, or nil.
func (m *MultiPeriodResult) Last() *PeriodResult {
	if len(m.Periods) == 0 {
		return nil
	}
	return m.Periods[len(m.Periods)-1]
}
