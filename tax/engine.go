/*
engine.go - Named tax strategy registry

PURPOSE:
  Holds strategy instances under jurisdiction-style names so templates
  can say TAX_COMPUTE(EBT, "US_FEDERAL") without knowing how the policy
  is built. The registry is constructed explicitly and passed by
  reference - there is no package-level default. Created once at
  startup, read-mostly afterwards.

DEFAULT STRATEGIES:
  US_FEDERAL     21% flat
  NO_TAX         0% flat
  HIGH_TAX       35% flat
  US_PROGRESSIVE US-style marginal brackets
  US_AMT         max(US_FEDERAL, 15% flat)

SEE ALSO:
  - strategy.go: The strategy implementations
  - engine/calculator.go: Bridges the registry into formula evaluation
*/
package tax

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrUnknownStrategy is returned when a strategy name is not registered.
var ErrUnknownStrategy = errors.New("unknown tax strategy")

// UnknownStrategyError names the missing strategy.
type UnknownStrategyError struct {
	Strategy string
}

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("unknown tax strategy: %s", e.Strategy)
}

func (e *UnknownStrategyError) Unwrap() error { return ErrUnknownStrategy }

// =============================================================================
// ENGINE
// =============================================================================

// Engine is a name → strategy registry.
//
// Not safe for concurrent registration; register everything at startup,
// then share freely (lookups are read-only).
type Engine struct {
	strategies map[string]Strategy
}

// NewEngine returns a registry pre-populated with the default strategy
// set.
func NewEngine() *Engine {
	e := &Engine{strategies: make(map[string]Strategy)}
	e.loadDefaults()
	return e
}

// Register adds or replaces a named strategy.
func (e *Engine) Register(name string, s Strategy) {
	e.strategies[name] = s
}

// Has reports whether name is registered.
func (e *Engine) Has(name string) bool {
	_, ok := e.strategies[name]
	return ok
}

// Strategies returns the registered names, sorted.
func (e *Engine) Strategies() []string {
	names := make([]string, 0, len(e.strategies))
	for name := range e.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns the description of a registered strategy.
func (e *Engine) Describe(name string) (string, error) {
	s, ok := e.strategies[name]
	if !ok {
		return "", &UnknownStrategyError{Strategy: name}
	}
	return s.Description(), nil
}

// ComputeTax runs the named strategy on income.
func (e *Engine) ComputeTax(income decimal.Decimal, ctx Context, name string) (decimal.Decimal, error) {
	s, ok := e.strategies[name]
	if !ok {
		return decimal.Zero, &UnknownStrategyError{Strategy: name}
	}
	return s.CalculateTax(income, ctx, nil), nil
}

// EffectiveRate returns tax/income for the named strategy, and zero when
// income is zero.
func (e *Engine) EffectiveRate(income decimal.Decimal, ctx Context, name string) (decimal.Decimal, error) {
	if income.IsZero() {
		// Also verify the strategy exists so a typo still surfaces.
		if !e.Has(name) {
			return decimal.Zero, &UnknownStrategyError{Strategy: name}
		}
		return decimal.Zero, nil
	}
	tax, err := e.ComputeTax(income, ctx, name)
	if err != nil {
		return decimal.Zero, err
	}
	return tax.Div(income), nil
}

func (e *Engine) loadDefaults() {
	e.Register("US_FEDERAL", NewFlatRate(0.21))
	e.Register("NO_TAX", NewFlatRate(0.0))
	e.Register("HIGH_TAX", NewFlatRate(0.35))

	e.Register("US_PROGRESSIVE", NewProgressive([]Bracket{
		{Threshold: decimal.Zero, Rate: decimal.NewFromFloat(0.10)},
		{Threshold: decimal.NewFromInt(50000), Rate: decimal.NewFromFloat(0.12)},
		{Threshold: decimal.NewFromInt(100000), Rate: decimal.NewFromFloat(0.22)},
		{Threshold: decimal.NewFromInt(200000), Rate: decimal.NewFromFloat(0.24)},
		{Threshold: decimal.NewFromInt(500000), Rate: decimal.NewFromFloat(0.32)},
		{Threshold: decimal.NewFromInt(1000000), Rate: decimal.NewFromFloat(0.35)},
	}))

	e.Register("US_AMT", NewMinimumTax(NewFlatRate(0.21), NewFlatRate(0.15)))
}
