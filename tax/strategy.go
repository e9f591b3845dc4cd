/*
Package tax provides pluggable tax computation strategies.

PURPOSE:
  A line item such as TAX_EXPENSE can delegate its value to a named tax
  policy instead of spelling the policy out as a formula. Strategies are
  pure: (income, context, params) → tax amount, no state, no I/O. They
  can therefore be shared across periods, entities, and concurrent runs.

STRATEGIES:
  FlatRate:    max(income, 0) * rate
  Progressive: ascending marginal brackets; each bracket taxes only the
               income between its threshold and the next
  MinimumTax:  composite of two strategies, charging the LARGER liability
               (alternative-minimum-tax semantics); nests arbitrarily

NEGATIVE INCOME:
  Every strategy yields zero tax on non-positive income. There is no
  loss carry-back here: losses reduce nothing retroactively.

SEE ALSO:
  - engine.go: Named strategy registry and effective-rate helper
  - formula: TAX_COMPUTE(expr, "NAME") delegates here
*/
package tax

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Context identifies the calculation a tax amount belongs to. Strategies
// may ignore it; parameterized jurisdiction rules key off it.
type Context struct {
	EntityID   string
	ScenarioID int
	PeriodID   int
}

// Params carries strategy-specific tuning values.
type Params map[string]decimal.Decimal

// Strategy is a stateless tax computation policy.
type Strategy interface {
	// CalculateTax returns the tax amount for income. Never negative.
	CalculateTax(income decimal.Decimal, ctx Context, params Params) decimal.Decimal

	// Name returns the strategy identifier (e.g. "FLAT_RATE").
	Name() string

	// Description returns a human-readable summary.
	Description() string
}

// =============================================================================
// FLAT RATE
// =============================================================================

// FlatRate taxes all positive income at a single rate.
type FlatRate struct {
	Rate decimal.Decimal
}

// NewFlatRate builds a flat-rate strategy from a fractional rate (0.21
// for 21%).
func NewFlatRate(rate float64) *FlatRate {
	return &FlatRate{Rate: decimal.NewFromFloat(rate)}
}

func (s *FlatRate) CalculateTax(income decimal.Decimal, _ Context, _ Params) decimal.Decimal {
	if income.Sign() <= 0 {
		return decimal.Zero
	}
	return income.Mul(s.Rate)
}

func (s *FlatRate) Name() string { return "FLAT_RATE" }

func (s *FlatRate) Description() string {
	return fmt.Sprintf("Flat rate tax at %s%%", s.Rate.Mul(decimal.NewFromInt(100)))
}

// =============================================================================
// PROGRESSIVE BRACKETS
// =============================================================================

// Bracket starts at Threshold and applies Rate marginally to income
// above it, up to the next bracket's threshold.
type Bracket struct {
	Threshold decimal.Decimal
	Rate      decimal.Decimal
}

// Progressive applies ascending marginal brackets. A bracket list
// without a zero threshold leaves the lowest income segment untaxed.
type Progressive struct {
	brackets []Bracket
}

// NewProgressive sorts brackets ascending by threshold and returns the
// strategy. An empty list yields zero tax for any income.
func NewProgressive(brackets []Bracket) *Progressive {
	sorted := append([]Bracket{}, brackets...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Threshold.LessThan(sorted[j].Threshold)
	})
	return &Progressive{brackets: sorted}
}

func (s *Progressive) CalculateTax(income decimal.Decimal, _ Context, _ Params) decimal.Decimal {
	if income.Sign() <= 0 || len(s.brackets) == 0 {
		return decimal.Zero
	}

	tax := decimal.Zero
	remaining := income.Sub(s.brackets[0].Threshold)

	for i, b := range s.brackets {
		if remaining.Sign() <= 0 {
			break
		}

		// Income taxed in this bracket: capped by the next threshold,
		// unbounded for the last bracket.
		slice := remaining
		if i+1 < len(s.brackets) {
			width := s.brackets[i+1].Threshold.Sub(b.Threshold)
			if slice.GreaterThan(width) {
				slice = width
			}
		}

		tax = tax.Add(slice.Mul(b.Rate))
		remaining = remaining.Sub(slice)
	}
	return tax
}

func (s *Progressive) Name() string { return "PROGRESSIVE" }

func (s *Progressive) Description() string {
	return fmt.Sprintf("Progressive tax with %d brackets", len(s.brackets))
}

// =============================================================================
// MINIMUM TAX (composite)
// =============================================================================

// MinimumTax wraps a regular and an alternative strategy and charges
// whichever computes the larger liability. The name follows the
// "alternative minimum tax" convention: the alternative sets a floor.
type MinimumTax struct {
	Regular     Strategy
	Alternative Strategy
}

func NewMinimumTax(regular, alternative Strategy) *MinimumTax {
	return &MinimumTax{Regular: regular, Alternative: alternative}
}

func (s *MinimumTax) CalculateTax(income decimal.Decimal, ctx Context, params Params) decimal.Decimal {
	regular := s.Regular.CalculateTax(income, ctx, params)
	alternative := s.Alternative.CalculateTax(income, ctx, params)
	if alternative.GreaterThan(regular) {
		return alternative
	}
	return regular
}

func (s *MinimumTax) Name() string { return "MINIMUM_TAX" }

func (s *MinimumTax) Description() string {
	return "Minimum tax (larger of regular and alternative)"
}
