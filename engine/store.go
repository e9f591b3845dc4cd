/*
store.go - Persistence interfaces for templates, drivers, and results

PURPOSE:
  Defines the boundary between the calculation core and storage. The
  core never touches a database: it loads templates once, pulls driver
  values per period through DriverSource, and hands finished results
  back for persistence. Different implementations can use SQLite,
  PostgreSQL, or in-memory storage.

TEMPLATES AS DOCUMENTS:
  Templates persist as their JSON documents and are compiled on read.
  The store validates a document before saving, so a stored template
  always loads.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - engine/store/memory.go: In-memory for testing

SEE ALSO:
  - orchestrator.go: Consumes DriverSource
  - template/json.go: The document format
*/
package engine

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/statement-engine/template"
)

// TemplateInfo is the listing row for a stored template.
type TemplateInfo struct {
	Code          string
	Name          string
	StatementType string
	Industry      string
	Version       string
}

// TemplateStore persists template documents.
type TemplateStore interface {
	// SaveTemplate validates and stores a JSON template document,
	// returning the template code. Replaces any existing document with
	// the same code. Invalid documents fail with a template error.
	SaveTemplate(ctx context.Context, doc []byte) (string, error)

	// Template loads and compiles the template for code. Returns
	// template.ErrTemplateNotFound when absent.
	Template(ctx context.Context, code string) (*template.StatementTemplate, error)

	// ListTemplates returns metadata for every stored template, ordered
	// by code.
	ListTemplates(ctx context.Context) ([]TemplateInfo, error)
}

// DriverStore persists per-period driver values and serves them back to
// the orchestrator.
type DriverStore interface {
	DriverSource

	// SaveDrivers upserts driver values for one entity/scenario/period.
	SaveDrivers(ctx context.Context, entityID string, scenarioID, periodID int, values map[string]decimal.Decimal) error
}

// ResultStore persists completed period results.
type ResultStore interface {
	// SaveResult stores a period's merged line items, replacing any
	// previous result for the same entity/scenario/period.
	SaveResult(ctx context.Context, entityID string, scenarioID int, result *PeriodResult) error

	// Results loads a stored period's line items. Empty map when the
	// period was never stored.
	Results(ctx context.Context, entityID string, scenarioID, periodID int) (map[string]decimal.Decimal, error)
}
