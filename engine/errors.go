/*
errors.go - Centralized error types for the calculation engine

PURPOSE:
  All fatal calculation errors in one place. Every kind here indicates a
  model-definition defect (bad template or bad data), never a transient
  condition: retrying without fixing the model is never correct, so
  nothing in this package retries.

ERROR CATEGORIES:
  1. Driver errors  - A non-computed item has no resolvable source value
  2. Lookup errors  - A merged result is asked for a code it never held
  3. Period errors  - Wrapper identifying which period a failure hit

  Circular dependencies, unknown references, division by zero, template
  defects, and unknown tax strategies keep their own types in the graph,
  formula, template, and tax packages; errors.Is reaches them through
  the PeriodError wrapper.

VALIDATION VIOLATIONS ARE NOT ERRORS:
  A failing validation rule is reported on the period result, never
  returned as an error. See result.go.

SEE ALSO:
  - calculator.go: Raises MissingDriverError
  - orchestrator.go: Wraps failures in PeriodError
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingDriver is returned when a non-computed line item has no
	// driver value, no driver-code value, and no base value source.
	ErrMissingDriver = errors.New("missing driver value")

	// ErrUnknownLineItem is returned by PeriodResult lookups for codes
	// the period never produced.
	ErrUnknownLineItem = errors.New("unknown line item")

	// ErrCodeCollision is returned when two statement types produce the
	// same line item code within one period.
	ErrCodeCollision = errors.New("line item code collision")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MissingDriverError identifies the unseedable line item.
type MissingDriverError struct {
	TemplateCode string
	ItemCode     string
	DriverCode   string // the alternate lookup that was also tried, if any
}

func (e *MissingDriverError) Error() string {
	if e.DriverCode != "" && e.DriverCode != e.ItemCode {
		return fmt.Sprintf("missing driver value for %s (tried %s and %s) in template %s",
			e.ItemCode, e.ItemCode, e.DriverCode, e.TemplateCode)
	}
	return fmt.Sprintf("missing driver value for %s in template %s", e.ItemCode, e.TemplateCode)
}

func (e *MissingDriverError) Unwrap() error { return ErrMissingDriver }

// CollisionError identifies a cross-statement code collision found while
// merging statement results into one period namespace.
type CollisionError struct {
	Code           string
	FirstStatement string
	OtherStatement string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("line item code %s produced by both %s and %s statements",
		e.Code, e.FirstStatement, e.OtherStatement)
}

func (e *CollisionError) Unwrap() error { return ErrCodeCollision }

// PeriodError pins a fatal calculation error to the period it occurred
// in. The orchestrator halts on the first one.
type PeriodError struct {
	PeriodID int
	Err      error
}

func (e *PeriodError) Error() string {
	return fmt.Sprintf("period %d: %v", e.PeriodID, e.Err)
}

func (e *PeriodError) Unwrap() error { return e.Err }
