/*
ast.go - Expression tree nodes and evaluation

PURPOSE:
  The node types produced by the parser and the evaluation logic for
  each. Evaluation is pure: a node reads from the Env and returns a
  decimal, or an error that names exactly what went wrong.

SEE ALSO:
  - parser.go: Builds these nodes
  - formula.go: Public surface and error types
*/
package formula

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// expr is a node in the parsed expression tree.
type expr interface {
	eval(f *Formula, env Env) (decimal.Decimal, error)
	walk(fn func(expr))
}

// =============================================================================
// LITERALS AND REFERENCES
// =============================================================================

type number struct {
	value decimal.Decimal
}

func (n *number) eval(*Formula, Env) (decimal.Decimal, error) { return n.value, nil }
func (n *number) walk(fn func(expr))                          { fn(n) }

// ref reads a line item or driver value. Lagged refs read from the prior
// period's merged result.
type ref struct {
	code   string
	lagged bool
}

func (r *ref) eval(_ *Formula, env Env) (decimal.Decimal, error) {
	if r.lagged {
		if v, ok := env.Values.Prior(r.code); ok {
			return v, nil
		}
		return decimal.Zero, &UnknownReferenceError{Code: r.code, Lagged: true}
	}
	if v, ok := env.Values.Current(r.code); ok {
		return v, nil
	}
	return decimal.Zero, &UnknownReferenceError{Code: r.code}
}

func (r *ref) walk(fn func(expr)) { fn(r) }

// =============================================================================
// OPERATORS
// =============================================================================

type unaryMinus struct {
	operand expr
}

func (u *unaryMinus) eval(f *Formula, env Env) (decimal.Decimal, error) {
	v, err := u.operand.eval(f, env)
	if err != nil {
		return decimal.Zero, err
	}
	return v.Neg(), nil
}

func (u *unaryMinus) walk(fn func(expr)) {
	fn(u)
	u.operand.walk(fn)
}

type binary struct {
	op    string
	left  expr
	right expr
}

func (b *binary) eval(f *Formula, env Env) (decimal.Decimal, error) {
	l, err := b.left.eval(f, env)
	if err != nil {
		return decimal.Zero, err
	}
	r, err := b.right.eval(f, env)
	if err != nil {
		return decimal.Zero, err
	}

	switch b.op {
	case "+":
		return l.Add(r), nil
	case "-":
		return l.Sub(r), nil
	case "*":
		return l.Mul(r), nil
	case "/":
		if r.IsZero() {
			return decimal.Zero, &DivisionByZeroError{Formula: f.source}
		}
		return l.Div(r), nil
	case "<":
		return boolDecimal(l.LessThan(r)), nil
	case "<=":
		return boolDecimal(l.LessThanOrEqual(r)), nil
	case ">":
		return boolDecimal(l.GreaterThan(r)), nil
	case ">=":
		return boolDecimal(l.GreaterThanOrEqual(r)), nil
	case "==":
		return boolDecimal(l.Equal(r)), nil
	case "!=":
		return boolDecimal(!l.Equal(r)), nil
	}
	return decimal.Zero, fmt.Errorf("unknown operator %q", b.op)
}

func (b *binary) walk(fn func(expr)) {
	fn(b)
	b.left.walk(fn)
	b.right.walk(fn)
}

func boolDecimal(v bool) decimal.Decimal {
	if v {
		return one
	}
	return decimal.Zero
}

// =============================================================================
// FUNCTION CALLS
// =============================================================================

// call is a built-in function application. Arity is checked at parse time.
type call struct {
	name string
	args []expr
}

func (c *call) eval(f *Formula, env Env) (decimal.Decimal, error) {
	vals := make([]decimal.Decimal, len(c.args))
	for i, a := range c.args {
		v, err := a.eval(f, env)
		if err != nil {
			return decimal.Zero, err
		}
		vals[i] = v
	}

	switch c.name {
	case "MIN":
		if vals[0].LessThan(vals[1]) {
			return vals[0], nil
		}
		return vals[1], nil
	case "MAX":
		if vals[0].GreaterThan(vals[1]) {
			return vals[0], nil
		}
		return vals[1], nil
	case "ABS":
		return vals[0].Abs(), nil
	}
	return decimal.Zero, fmt.Errorf("unknown function %q", c.name)
}

func (c *call) walk(fn func(expr)) {
	fn(c)
	for _, a := range c.args {
		a.walk(fn)
	}
}

// taxCall delegates TAX_COMPUTE(income, "STRATEGY") to the environment's
// tax computer.
type taxCall struct {
	income   expr
	strategy string
}

func (tc *taxCall) eval(f *Formula, env Env) (decimal.Decimal, error) {
	if env.Tax == nil {
		return decimal.Zero, ErrNoTaxComputer
	}
	income, err := tc.income.eval(f, env)
	if err != nil {
		return decimal.Zero, err
	}
	return env.Tax.ComputeTax(income, tc.strategy)
}

func (tc *taxCall) walk(fn func(expr)) {
	fn(tc)
	tc.income.walk(fn)
}
