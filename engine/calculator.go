/*
calculator.go - Single-statement, single-period calculation

PURPOSE:
  Drives one statement template through one period:
  1. Seed every non-computed item from driver values (or its base value)
  2. Walk the template's calculation order, evaluating each formula
  3. Evaluate validation rules over the complete result

  Because the calculation order is a valid topological order, every
  same-period dependency is already present when a formula runs; [t-1]
  dependencies resolve from the prior period regardless of order.

VISIBILITY:
  Formulas see three layers of values: this statement's items so far,
  items merged in from statements calculated earlier in the same period
  (cross-statement references), and the prior period (lag references).

FATALITY:
  Missing drivers, unresolved references, division by zero, and unknown
  tax strategies abort the statement. Validation rule failures never do:
  they are collected and reported with the full value set.

SEE ALSO:
  - template/template.go: Calculation order compilation
  - orchestrator.go: Runs calculators across statements and periods
*/
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/statement-engine/formula"
	"github.com/warp/statement-engine/tax"
	"github.com/warp/statement-engine/template"
)

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator computes one statement for one period. Stateless; safe to
// share across goroutines for independent runs.
type Calculator struct {
	// Tax resolves TAX_COMPUTE delegations. May be nil when no template
	// formula uses tax computation.
	Tax *tax.Engine
}

// CalcInput carries everything one statement calculation needs.
type CalcInput struct {
	Template *template.StatementTemplate

	// Drivers holds this period's externally supplied values.
	Drivers map[string]decimal.Decimal

	// Merged holds line items produced by statements already calculated
	// this period (cross-statement namespace). May be nil.
	Merged map[string]decimal.Decimal

	// Prior is the previous period's merged result, nil for period 1
	// unless initial state was supplied.
	Prior *PeriodResult

	// TaxCtx identifies the run for parameterized tax strategies.
	TaxCtx tax.Context
}

// StatementResult is one statement's values and rule outcomes.
type StatementResult struct {
	Template   *template.StatementTemplate
	Values     map[string]decimal.Decimal
	Violations []Violation
	Valid      bool // false iff any error-severity violation fired
}

// Calculate runs the statement. Fatal errors abort with nil result;
// validation violations never abort.
func (c *Calculator) Calculate(in CalcInput) (*StatementResult, error) {
	tmpl := in.Template
	scope := &periodScope{
		local:  make(map[string]decimal.Decimal, len(tmpl.LineItems)),
		merged: in.Merged,
		prior:  in.Prior,
	}
	env := formula.Env{Values: scope}
	if c.Tax != nil {
		env.Tax = &taxBridge{engine: c.Tax, ctx: in.TaxCtx}
	}

	// Step 1: seed non-computed items.
	for i := range tmpl.LineItems {
		item := &tmpl.LineItems[i]
		if item.IsComputed() {
			continue
		}
		v, err := c.seedValue(tmpl, item, in.Drivers)
		if err != nil {
			return nil, err
		}
		scope.local[item.Code] = v
	}

	// Step 2: evaluate computed items in calculation order.
	for _, code := range tmpl.CalculationOrder() {
		item := tmpl.Item(code)
		v, err := item.Formula.Evaluate(env)
		if err != nil {
			return nil, fmt.Errorf("calculating %s.%s: %w", tmpl.StatementType, code, err)
		}
		scope.local[code] = v
	}

	// Step 3: validation rules over the complete statement.
	result := &StatementResult{
		Template: tmpl,
		Values:   scope.local,
		Valid:    true,
	}
	for _, rule := range tmpl.ValidationRules {
		passed, err := rule.Expr.EvaluateBool(env)
		if err != nil {
			return nil, fmt.Errorf("validation rule %s: %w", rule.ID, err)
		}
		if passed {
			continue
		}
		result.Violations = append(result.Violations, Violation{
			RuleID:        rule.ID,
			StatementType: tmpl.StatementType,
			Severity:      rule.Severity,
			Message:       rule.Message,
		})
		if rule.Severity == template.SeverityError {
			result.Valid = false
		}
	}
	return result, nil
}

// seedValue resolves a non-computed item: own code in drivers, then its
// driver code, then the base value source.
func (c *Calculator) seedValue(tmpl *template.StatementTemplate, item *template.LineItem, drivers map[string]decimal.Decimal) (decimal.Decimal, error) {
	if v, ok := drivers[item.Code]; ok {
		return v, nil
	}
	if item.DriverCode != "" {
		if v, ok := drivers[item.DriverCode]; ok {
			return v, nil
		}
	}
	if item.BaseValueSource != "" {
		if v, ok := resolveBaseValue(item.BaseValueSource, drivers); ok {
			return v, nil
		}
	}
	return decimal.Zero, &MissingDriverError{
		TemplateCode: tmpl.Code,
		ItemCode:     item.Code,
		DriverCode:   item.DriverCode,
	}
}

// resolveBaseValue interprets a base value source: "driver:CODE" reads
// from drivers, anything else must be a numeric literal.
func resolveBaseValue(source string, drivers map[string]decimal.Decimal) (decimal.Decimal, bool) {
	const driverPrefix = "driver:"
	if len(source) > len(driverPrefix) && source[:len(driverPrefix)] == driverPrefix {
		v, ok := drivers[source[len(driverPrefix):]]
		return v, ok
	}
	v, err := decimal.NewFromString(source)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

// =============================================================================
// VALUE RESOLUTION
// =============================================================================

// periodScope layers the three value sources a formula may read.
type periodScope struct {
	local  map[string]decimal.Decimal // this statement, in progress
	merged map[string]decimal.Decimal // earlier statements this period
	prior  *PeriodResult              // previous period, lag refs only
}

func (s *periodScope) Current(code string) (decimal.Decimal, bool) {
	if v, ok := s.local[code]; ok {
		return v, true
	}
	if s.merged != nil {
		if v, ok := s.merged[code]; ok {
			return v, true
		}
	}
	return decimal.Zero, false
}

func (s *periodScope) Prior(code string) (decimal.Decimal, bool) {
	if s.prior == nil {
		return decimal.Zero, false
	}
	v, err := s.prior.Value(code)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

// taxBridge adapts the tax registry to the formula TaxComputer surface.
type taxBridge struct {
	engine *tax.Engine
	ctx    tax.Context
}

func (b *taxBridge) ComputeTax(income decimal.Decimal, strategy string) (decimal.Decimal, error) {
	return b.engine.ComputeTax(income, b.ctx, strategy)
}
