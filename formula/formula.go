/*
Package formula parses and evaluates the statement formula mini-language.

PURPOSE:
  Line items are expressed as small arithmetic formulas over other line
  items, e.g. "REVENUE - COST_OF_GOODS_SOLD" or
  "CASH[t-1] + CASH_FLOW_NET". This package turns a formula string into
  an expression tree once, and evaluates that tree once per period.

GRAMMAR (recursive descent):
  comparison → additive (('<'|'<='|'>'|'>='|'=='|'!=') additive)?
  additive   → multiplicative (('+' | '-') multiplicative)*
  multiplicative → unary (('*' | '/') unary)*
  unary      → '-' unary | primary
  primary    → number | '(' comparison ')' | function | reference
  function   → IDENT '(' comparison (',' comparison)* ')'
  reference  → IDENT ('[' 't' ('-1')? ']')?

  Comparisons exist for validation rules ("TOTAL_ASSETS == TOTAL_LIABS")
  and evaluate to 1 or 0. Built-in functions: MIN, MAX, ABS, and
  TAX_COMPUTE(expr, "STRATEGY") which delegates to a tax computer.

TIME REFERENCES:
  CODE[t-1] reads CODE from the prior period's merged result. [t] is an
  explicit way to write the default (current period). No other offset
  parses: multi-step lags are a deliberate non-feature.

PARSE ONCE, EVALUATE MANY:
  Parse() is called at template load time and the tree is cached on the
  line item. Evaluate() is pure: it reads from a Resolver and returns a
  value, with no internal state and no I/O.

ERRORS:
  ErrParse              Malformed formula text (position + reason)
  ErrUnknownReference   Identifier absent from current and prior values
  ErrDivisionByZero     Zero denominator (surfaced, never an infinity)

SEE ALSO:
  - template/template.go: Caches parsed formulas per line item
  - engine/calculator.go: Supplies the Resolver per period
*/
package formula

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// EVALUATION ENVIRONMENT
// =============================================================================

// Resolver supplies identifier values during evaluation.
//
// Current covers the period being calculated: drivers, items already
// computed this period, and items merged in from statements calculated
// earlier in the same period. Prior covers the previous period's merged
// result and serves [t-1] references only.
type Resolver interface {
	Current(code string) (decimal.Decimal, bool)
	Prior(code string) (decimal.Decimal, bool)
}

// TaxComputer resolves TAX_COMPUTE(income, "STRATEGY") calls.
type TaxComputer interface {
	ComputeTax(income decimal.Decimal, strategy string) (decimal.Decimal, error)
}

// Env bundles everything a formula may touch while evaluating.
// Tax may be nil when the formula set contains no TAX_COMPUTE calls.
type Env struct {
	Values Resolver
	Tax    TaxComputer
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrParse is returned for malformed formula text.
	ErrParse = errors.New("formula parse error")

	// ErrUnknownReference is returned when an identifier cannot be
	// resolved from the current or prior period values.
	ErrUnknownReference = errors.New("unknown reference")

	// ErrDivisionByZero is returned when a denominator evaluates to zero.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrNoTaxComputer is returned when a formula uses TAX_COMPUTE but
	// the environment has no tax computer wired in.
	ErrNoTaxComputer = errors.New("no tax computer configured")
)

// ParseError reports where and why parsing failed.
type ParseError struct {
	Formula string
	Pos     int
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("formula parse error at position %d in %q: %s", e.Pos, e.Formula, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// UnknownReferenceError identifies the unresolvable identifier.
type UnknownReferenceError struct {
	Code   string
	Lagged bool
}

func (e *UnknownReferenceError) Error() string {
	if e.Lagged {
		return fmt.Sprintf("unknown reference: %s[t-1] (no prior period value)", e.Code)
	}
	return fmt.Sprintf("unknown reference: %s", e.Code)
}

func (e *UnknownReferenceError) Unwrap() error { return ErrUnknownReference }

// DivisionByZeroError identifies the formula whose denominator was zero.
type DivisionByZeroError struct {
	Formula string
}

func (e *DivisionByZeroError) Error() string {
	return fmt.Sprintf("division by zero evaluating %q", e.Formula)
}

func (e *DivisionByZeroError) Unwrap() error { return ErrDivisionByZero }

// =============================================================================
// FORMULA
// =============================================================================

// Formula is a parsed, immutable expression tree. Safe for concurrent use.
type Formula struct {
	source string
	root   expr
}

// Parse compiles a formula string into an expression tree.
func Parse(source string) (*Formula, error) {
	p := &parser{src: source}
	root, err := p.parse()
	if err != nil {
		return nil, err
	}
	return &Formula{source: source, root: root}, nil
}

// MustParse is Parse for statically known formulas (factory templates,
// tests). Panics on error.
func MustParse(source string) *Formula {
	f, err := Parse(source)
	if err != nil {
		panic(err)
	}
	return f
}

// Source returns the original formula text.
func (f *Formula) Source() string { return f.source }

// Evaluate computes the formula against env.
func (f *Formula) Evaluate(env Env) (decimal.Decimal, error) {
	v, err := f.root.eval(f, env)
	if err != nil {
		return decimal.Zero, err
	}
	return v, nil
}

// EvaluateBool computes the formula and interprets the result as a
// boolean: any non-zero value is true. Used for validation rules.
func (f *Formula) EvaluateBool(env Env) (bool, error) {
	v, err := f.Evaluate(env)
	if err != nil {
		return false, err
	}
	return !v.IsZero(), nil
}

// Dependencies returns the intra-period identifier codes referenced by
// the formula, deduplicated, in first-appearance order. Lag references
// are excluded: they are satisfied by the prior period, not by the
// current calculation order.
func (f *Formula) Dependencies() []string {
	var out []string
	seen := make(map[string]bool)
	f.root.walk(func(e expr) {
		if r, ok := e.(*ref); ok && !r.lagged && !seen[r.code] {
			seen[r.code] = true
			out = append(out, r.code)
		}
	})
	return out
}

// LaggedDependencies returns the codes read via [t-1], deduplicated, in
// first-appearance order.
func (f *Formula) LaggedDependencies() []string {
	var out []string
	seen := make(map[string]bool)
	f.root.walk(func(e expr) {
		if r, ok := e.(*ref); ok && r.lagged && !seen[r.code] {
			seen[r.code] = true
			out = append(out, r.code)
		}
	})
	return out
}
