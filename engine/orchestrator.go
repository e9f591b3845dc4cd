/*
orchestrator.go - Multi-statement, multi-period orchestration

PURPOSE:
  Runs every configured statement template for each period, merges the
  per-statement results into one cross-statement namespace, and carries
  that namespace forward as the next period's prior environment.

STATEMENT ORDER:
  Within one period, a statement may reference line items produced by
  another statement type (Carbon's EMISSION_INTENSITY reads the P&L's
  REVENUE). Which statement runs first is itself a dependency problem,
  so the constructor builds a graph over statement types from the
  cross-statement references and topologically sorts it - the same
  algorithm that orders line items, one level up. A cycle between
  statement types is rejected at construction.

PERIOD ORDER:
  Periods run strictly sequentially: each period's [t-1] references
  depend on the immediately preceding merged result. Independent runs
  (other entities, other scenarios) share only read-only templates and
  may execute concurrently.

FAILURE:
  The first fatal error halts the run. Completed periods stay in the
  result; the failing period and cause are reported; nothing partial is
  ever included.

SEE ALSO:
  - calculator.go: The per-statement step
  - graph/graph.go: Statement-type ordering
*/
package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/statement-engine/graph"
	"github.com/warp/statement-engine/tax"
	"github.com/warp/statement-engine/template"
)

// =============================================================================
// DRIVER SOURCE
// =============================================================================

// DriverSource supplies externally stored driver values per period.
// Implemented by the sqlite and memory stores.
type DriverSource interface {
	Drivers(ctx context.Context, entityID string, scenarioID, periodID int) (map[string]decimal.Decimal, error)
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator runs a fixed template set across period sequences.
// Immutable after construction; safe for concurrent independent runs.
type Orchestrator struct {
	templates []*template.StatementTemplate // execution order
	calc      Calculator
}

// NewOrchestrator orders the templates by their cross-statement
// references and returns a ready-to-run orchestrator. taxEngine may be
// nil when no template delegates to tax computation.
func NewOrchestrator(templates []*template.StatementTemplate, taxEngine *tax.Engine) (*Orchestrator, error) {
	ordered, err := orderByStatementType(templates)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		templates: ordered,
		calc:      Calculator{Tax: taxEngine},
	}, nil
}

// Templates returns the templates in execution order.
func (o *Orchestrator) Templates() []*template.StatementTemplate {
	out := make([]*template.StatementTemplate, len(o.templates))
	copy(out, o.templates)
	return out
}

// RunInput identifies one multi-period run.
type RunInput struct {
	EntityID   string
	ScenarioID int

	// PeriodIDs in chronological order.
	PeriodIDs []int

	// InitialState seeds period 1's [t-1] references (the opening
	// balance sheet). Nil means period 1 has no prior: any lag
	// reference there fails with UnknownReference.
	InitialState map[string]decimal.Decimal
}

// Run executes the period sequence. The returned result always reflects
// every completed period; a non-nil error is the *PeriodError that
// halted the run, also recorded on the result.
func (o *Orchestrator) Run(ctx context.Context, in RunInput, drivers DriverSource) (*MultiPeriodResult, error) {
	multi := &MultiPeriodResult{Success: true}

	var prior *PeriodResult
	if len(in.InitialState) > 0 {
		prior = NewPeriodResult(0, in.InitialState)
	}

	for _, periodID := range in.PeriodIDs {
		result, err := o.runPeriod(ctx, in, periodID, prior, drivers)
		if err != nil {
			perr := &PeriodError{PeriodID: periodID, Err: err}
			multi.Success = false
			multi.FailedPeriod = periodID
			multi.Err = perr
			return multi, perr
		}
		multi.Periods = append(multi.Periods, result)
		prior = result
	}
	return multi, nil
}

// runPeriod calculates every statement for one period and merges them.
func (o *Orchestrator) runPeriod(ctx context.Context, in RunInput, periodID int, prior *PeriodResult, drivers DriverSource) (*PeriodResult, error) {
	driverValues, err := drivers.Drivers(ctx, in.EntityID, in.ScenarioID, periodID)
	if err != nil {
		return nil, fmt.Errorf("loading drivers: %w", err)
	}

	merged := make(map[string]decimal.Decimal)
	origin := make(map[string]string) // code → statement type, for collisions
	var violations []Violation
	valid := true

	for _, tmpl := range o.templates {
		stmt, err := o.calc.Calculate(CalcInput{
			Template: tmpl,
			Drivers:  driverValues,
			Merged:   merged,
			Prior:    prior,
			TaxCtx:   tax.Context{EntityID: in.EntityID, ScenarioID: in.ScenarioID, PeriodID: periodID},
		})
		if err != nil {
			return nil, err
		}

		// Merge in template item order so collision reports are
		// deterministic.
		for i := range tmpl.LineItems {
			code := tmpl.LineItems[i].Code
			v, ok := stmt.Values[code]
			if !ok {
				continue
			}
			if first, exists := origin[code]; exists {
				return nil, &template.Error{
					TemplateCode: tmpl.Code,
					Reason:       "cross-statement code collision",
					Err: &CollisionError{
						Code:           code,
						FirstStatement: first,
						OtherStatement: tmpl.StatementType,
					},
				}
			}
			origin[code] = tmpl.StatementType
			merged[code] = v
		}

		violations = append(violations, stmt.Violations...)
		if !stmt.Valid {
			valid = false
		}
	}

	return &PeriodResult{
		PeriodID:   periodID,
		values:     merged,
		violations: violations,
		valid:      valid,
	}, nil
}

// =============================================================================
// STATEMENT-TYPE ORDERING
// =============================================================================

// orderByStatementType topologically sorts templates so that statements
// referenced by others run first. Ties break lexicographically on
// statement type, keeping runs reproducible.
func orderByStatementType(templates []*template.StatementTemplate) ([]*template.StatementTemplate, error) {
	byType := make(map[string]*template.StatementTemplate, len(templates))
	owner := make(map[string]string) // line item code → statement type
	for _, t := range templates {
		if _, dup := byType[t.StatementType]; dup {
			return nil, &template.Error{
				TemplateCode: t.Code,
				Reason:       fmt.Sprintf("duplicate statement type %q in template set", t.StatementType),
			}
		}
		byType[t.StatementType] = t
		for i := range t.LineItems {
			owner[t.LineItems[i].Code] = t.StatementType
		}
	}

	g := graph.New()
	for _, t := range templates {
		g.AddNode(t.StatementType)
		for i := range t.LineItems {
			item := &t.LineItems[i]
			if !item.IsComputed() {
				continue
			}
			for _, dep := range item.Formula.Dependencies() {
				if other, ok := owner[dep]; ok && other != t.StatementType {
					g.AddEdge(t.StatementType, other)
				}
			}
		}
	}

	order, err := g.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("ordering statement types: %w", err)
	}

	ordered := make([]*template.StatementTemplate, 0, len(templates))
	for _, statementType := range order {
		ordered = append(ordered, byType[statementType])
	}
	return ordered, nil
}
