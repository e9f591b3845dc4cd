/*
Package template models statement templates and compiles their
calculation order.

PURPOSE:
  A statement template declares the line items of one statement type
  (P&L, balance sheet, cash flow, carbon) and how each is obtained:
  either supplied externally (a driver) or computed from a formula over
  other line items. At load time the template compiles its formula
  dependencies into a calculation order so the engine can evaluate every
  item in a single pass.

KEY CONCEPTS:
  - LineItem: One named quantity; computed iff it has a formula
  - ValidationRule: Boolean expression checked after calculation
  - StatementTemplate: Items + metadata + compiled calculation order

DEPENDENCY EDGES:
  Only same-period references inside the template create edges:
  - CODE[t-1] references read the PRIOR period; they never constrain
    the current order and never make a self-reference circular.
  - References to codes outside the template (drivers, other statement
    types) are satisfied at run time from the merged period namespace.

LIFECYCLE:
  Built once by Load/LoadJSON, immutable afterwards. One template
  instance is reused across every period of a run and may be shared by
  concurrent entity/scenario runs.

SEE ALSO:
  - graph/graph.go: Topological sort used for the calculation order
  - engine/calculator.go: Walks the calculation order each period
  - factory/templates.go: Built-in corporate templates
*/
package template

import (
	"errors"
	"fmt"

	"github.com/warp/statement-engine/formula"
	"github.com/warp/statement-engine/graph"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrInvalidTemplate is the sentinel for every template defect: missing
// fields, unparsable formulas, cyclic dependencies, cross-statement code
// collisions.
var ErrInvalidTemplate = errors.New("invalid template")

// ErrTemplateNotFound is returned by stores when a code has no template.
var ErrTemplateNotFound = errors.New("template not found")

// Error describes what is wrong with a template.
type Error struct {
	TemplateCode string
	Reason       string
	Err          error // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("template %s: %s: %v", e.TemplateCode, e.Reason, e.Err)
	}
	return fmt.Sprintf("template %s: %s", e.TemplateCode, e.Reason)
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidTemplate
}

// Is lets errors.Is(err, ErrInvalidTemplate) hold even when Err is set.
func (e *Error) Is(target error) bool { return target == ErrInvalidTemplate }

// =============================================================================
// LINE ITEMS AND VALIDATION RULES
// =============================================================================

// Severity grades a validation rule.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// LineItem is one named quantity within a statement.
//
// Invariant: IsComputed() iff Formula is non-nil. Non-computed items are
// seeded from drivers or from BaseValueSource each period.
type LineItem struct {
	Code             string
	DisplayName      string
	Level            int    // presentation nesting only
	Category         string // revenue, cost, subtotal, emissions, ...
	Formula          *formula.Formula
	BaseValueSource  string // "driver:CODE" or a numeric literal; optional
	DriverApplicable bool
	DriverCode       string // driver lookup code when distinct from Code

	// Dependencies is the declared set of same-period codes the formula
	// references. When empty for a computed item, it is derived from the
	// parsed formula.
	Dependencies []string
}

// IsComputed reports whether the item's value comes from its formula.
func (li *LineItem) IsComputed() bool { return li.Formula != nil }

// ValidationRule is a boolean expression checked once the statement is
// fully calculated. Failures are reported, never thrown.
type ValidationRule struct {
	ID       string
	Expr     *formula.Formula
	Severity Severity
	Message  string
}

// =============================================================================
// STATEMENT TEMPLATE
// =============================================================================

// StatementTemplate is an immutable description of one statement type.
type StatementTemplate struct {
	Code          string
	Name          string
	StatementType string // "pl", "bs", "cf", "carbon", ...
	Industry      string
	Version       string
	Description   string

	LineItems           []LineItem
	ValidationRules     []ValidationRule
	DenormalizedColumns []string

	index     map[string]int // code → position in LineItems
	calcOrder []string       // computed-item codes, topologically sorted
}

// New assembles a template from parts and compiles its calculation
// order. Returns a *Error on duplicate codes, broken invariants, or a
// circular dependency set.
func New(code, name, statementType string, items []LineItem) (*StatementTemplate, error) {
	t := &StatementTemplate{
		Code:          code,
		Name:          name,
		StatementType: statementType,
		LineItems:     items,
	}
	if err := t.compile(); err != nil {
		return nil, err
	}
	return t, nil
}

// Item returns the line item for code, or nil.
func (t *StatementTemplate) Item(code string) *LineItem {
	i, ok := t.index[code]
	if !ok {
		return nil
	}
	return &t.LineItems[i]
}

// Has reports whether the template owns code.
func (t *StatementTemplate) Has(code string) bool {
	_, ok := t.index[code]
	return ok
}

// CalculationOrder returns the computed-item codes in evaluation order.
func (t *StatementTemplate) CalculationOrder() []string {
	out := make([]string, len(t.calcOrder))
	copy(out, t.calcOrder)
	return out
}

// DependencyGraph rebuilds the same-period dependency graph the
// calculation order was compiled from. Deterministic: rebuilding always
// yields the same edge set.
func (t *StatementTemplate) DependencyGraph() *graph.Graph {
	g := graph.New()
	for i := range t.LineItems {
		item := &t.LineItems[i]
		g.AddNode(item.Code)
		if !item.IsComputed() {
			continue
		}
		for _, dep := range t.itemDependencies(item) {
			// Same-period self-reference would be a self-edge and is
			// reported as a cycle. Lag self-references never reach here:
			// itemDependencies excludes lagged refs entirely.
			if t.Has(dep) {
				g.AddEdge(item.Code, dep)
			}
			// Codes outside the template resolve from the merged period
			// namespace at run time; no edge.
		}
	}
	return g
}

// itemDependencies returns the declared dependency list, falling back to
// the parsed formula's intra-period references.
func (t *StatementTemplate) itemDependencies(item *LineItem) []string {
	if len(item.Dependencies) > 0 {
		return item.Dependencies
	}
	return item.Formula.Dependencies()
}

// compile validates items and derives the calculation order once.
func (t *StatementTemplate) compile() error {
	t.index = make(map[string]int, len(t.LineItems))
	for i := range t.LineItems {
		item := &t.LineItems[i]
		if item.Code == "" {
			return &Error{TemplateCode: t.Code, Reason: fmt.Sprintf("line item %d has no code", i)}
		}
		if _, dup := t.index[item.Code]; dup {
			return &Error{TemplateCode: t.Code, Reason: fmt.Sprintf("duplicate line item code %s", item.Code)}
		}
		t.index[item.Code] = i
	}

	g := t.DependencyGraph()
	order, err := g.TopologicalSort()
	if err != nil {
		return &Error{TemplateCode: t.Code, Reason: "circular dependency in line items", Err: err}
	}

	// The order covers every node; keep only computed items, preserving
	// relative order. Seeded items need no evaluation slot.
	t.calcOrder = t.calcOrder[:0]
	for _, code := range order {
		if item := t.Item(code); item != nil && item.IsComputed() {
			t.calcOrder = append(t.calcOrder, code)
		}
	}
	return nil
}
