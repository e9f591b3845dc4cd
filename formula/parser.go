/*
parser.go - Recursive-descent parser for the formula grammar

PURPOSE:
  Turns formula text into the expression tree defined in ast.go. The
  parser is only run at template load time; periods evaluate the cached
  tree. Errors carry the byte position and a reason so a bad template
  points at the exact spot.

SEE ALSO:
  - formula.go: Grammar documentation
  - ast.go: Node types
*/
package formula

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type parser struct {
	src string
	pos int
}

func (p *parser) parse() (expr, error) {
	if p.peek() == 0 {
		return nil, p.errorf("empty formula")
	}
	root, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, p.errorf("unexpected %q after expression", rest(p.src, p.pos))
	}
	return root, nil
}

// =============================================================================
// GRAMMAR PRODUCTIONS
// =============================================================================

// comparison → additive (op additive)?  -- a single, non-chained comparison
func (p *parser) parseComparison() (expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	op := p.peekComparisonOp()
	if op == "" {
		return left, nil
	}
	p.pos += len(op)

	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return &binary{op: op, left: left, right: right}, nil
}

func (p *parser) parseAdditive() (expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		c := p.peek()
		if c != '+' && c != '-' {
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &binary{op: string(c), left: left, right: right}
	}
}

func (p *parser) parseMultiplicative() (expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		c := p.peek()
		if c != '*' && c != '/' {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binary{op: string(c), left: left, right: right}
	}
}

func (p *parser) parseUnary() (expr, error) {
	if p.peek() == '-' {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryMinus{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (expr, error) {
	c := p.peek()

	switch {
	case c == '(':
		p.next()
		inner, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if p.peek() != ')' {
			return nil, p.errorf("unmatched parenthesis")
		}
		p.next()
		return inner, nil

	case isDigit(c) || c == '.':
		return p.parseNumber()

	case isAlpha(c):
		ident := p.readIdentifier()
		if p.peek() == '(' {
			return p.parseCall(ident)
		}
		return p.parseReference(ident)
	}

	if c == 0 {
		return nil, p.errorf("unexpected end of formula")
	}
	return nil, p.errorf("unexpected character %q", c)
}

func (p *parser) parseNumber() (expr, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && (isDigit(p.src[p.pos]) || p.src[p.pos] == '.') {
		p.pos++
	}
	text := p.src[start:p.pos]
	v, err := decimal.NewFromString(text)
	if err != nil {
		return nil, p.errorf("invalid number %q", text)
	}
	return &number{value: v}, nil
}

// parseReference handles IDENT with an optional [t] / [t-1] marker.
func (p *parser) parseReference(code string) (expr, error) {
	if p.peek() != '[' {
		return &ref{code: code}, nil
	}
	p.next()

	if c := p.peek(); c != 't' && c != 'T' {
		return nil, p.errorf("time reference must be [t] or [t-1]")
	}
	p.next()

	lagged := false
	if p.peek() == '-' {
		p.next()
		if p.peek() != '1' {
			return nil, p.errorf("only a one-period lag [t-1] is supported")
		}
		p.next()
		lagged = true
	}

	if p.peek() != ']' {
		return nil, p.errorf("expected ']' to close time reference")
	}
	p.next()

	return &ref{code: code, lagged: lagged}, nil
}

// parseCall handles built-in functions. TAX_COMPUTE has bespoke parsing
// because its second argument is a strategy name, not an expression.
func (p *parser) parseCall(name string) (expr, error) {
	p.next() // consume '('

	if name == "TAX_COMPUTE" {
		income, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if p.peek() != ',' {
			return nil, p.errorf("TAX_COMPUTE requires (income, \"strategy\")")
		}
		p.next()
		strategy, err := p.parseStringLiteral()
		if err != nil {
			return nil, err
		}
		if p.peek() != ')' {
			return nil, p.errorf("expected ')' after TAX_COMPUTE arguments")
		}
		p.next()
		return &taxCall{income: income, strategy: strategy}, nil
	}

	arity, known := builtinArity[name]
	if !known {
		return nil, p.errorf("unknown function %q", name)
	}

	var args []expr
	for {
		arg, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		if p.peek() == ',' {
			p.next()
			continue
		}
		break
	}
	if p.peek() != ')' {
		return nil, p.errorf("unmatched parenthesis in call to %s", name)
	}
	p.next()

	if len(args) != arity {
		return nil, p.errorf("%s requires %d argument(s), got %d", name, arity, len(args))
	}
	return &call{name: name, args: args}, nil
}

var builtinArity = map[string]int{
	"MIN": 2,
	"MAX": 2,
	"ABS": 1,
}

func (p *parser) parseStringLiteral() (string, error) {
	quote := p.peek()
	if quote != '"' && quote != '\'' {
		return "", p.errorf("expected a quoted string")
	}
	p.next()

	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != quote {
		p.pos++
	}
	if p.pos >= len(p.src) {
		return "", p.errorf("unterminated string literal")
	}
	s := p.src[start:p.pos]
	p.pos++ // closing quote
	return s, nil
}

// =============================================================================
// SCANNER
// =============================================================================

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && isSpace(p.src[p.pos]) {
		p.pos++
	}
}

// peek returns the next non-space byte without consuming, or 0 at end.
func (p *parser) peek() byte {
	i := p.pos
	for i < len(p.src) && isSpace(p.src[i]) {
		i++
	}
	if i < len(p.src) {
		return p.src[i]
	}
	return 0
}

// next consumes and returns the next non-space byte.
func (p *parser) next() byte {
	p.skipSpace()
	if p.pos < len(p.src) {
		c := p.src[p.pos]
		p.pos++
		return c
	}
	return 0
}

func (p *parser) peekComparisonOp() string {
	p.skipSpace()
	remaining := p.src[p.pos:]
	for _, op := range []string{"<=", ">=", "==", "!=", "<", ">"} {
		if len(remaining) >= len(op) && remaining[:len(op)] == op {
			return op
		}
	}
	return ""
}

func (p *parser) readIdentifier() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && isAlnum(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Formula: p.src, Pos: p.pos, Reason: fmt.Sprintf(format, args...)}
}

func rest(src string, pos int) string {
	if pos >= len(src) {
		return ""
	}
	return src[pos:]
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}
func isAlnum(c byte) bool { return isAlpha(c) || isDigit(c) }
