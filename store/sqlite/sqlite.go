/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements the engine persistence interfaces (TemplateStore,
  DriverStore, ResultStore) using SQLite. In production, the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  engine.TemplateStore: Template documents, validated before save
  engine.DriverStore:   Per-period driver values
  engine.ResultStore:   Completed period results

KEY TABLES:
  statement_templates: One row per template, the JSON document plus
                       denormalized listing columns
  scenario_drivers:    One row per entity/scenario/period/driver code
  period_results:      One row per entity/scenario/period/line item

DECIMALS AS TEXT:
  Every value column stores decimal.Decimal.String() and parses it back
  on read. REAL columns would silently round; financial values never
  touch float64.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/statements.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
  - template/json.go: The stored document format
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/statement-engine/engine"
	"github.com/warp/statement-engine/template"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Statement templates (stored as JSON documents)
	CREATE TABLE IF NOT EXISTS statement_templates (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		statement_type TEXT NOT NULL,
		industry TEXT,
		version TEXT,
		json_structure TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_templates_statement_type
		ON statement_templates(statement_type);

	-- Driver values (one row per driver code per period)
	CREATE TABLE IF NOT EXISTS scenario_drivers (
		entity_id TEXT NOT NULL,
		scenario_id INTEGER NOT NULL,
		period_id INTEGER NOT NULL,
		driver_code TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (entity_id, scenario_id, period_id, driver_code)
	);

	-- Composite index for per-period driver loads (hot path)
	CREATE INDEX IF NOT EXISTS idx_drivers_run_period
		ON scenario_drivers(entity_id, scenario_id, period_id);

	-- Calculated line items (one row per line item per period)
	CREATE TABLE IF NOT EXISTS period_results (
		entity_id TEXT NOT NULL,
		scenario_id INTEGER NOT NULL,
		period_id INTEGER NOT NULL,
		item_code TEXT NOT NULL,
		value TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (entity_id, scenario_id, period_id, item_code)
	);

	CREATE INDEX IF NOT EXISTS idx_results_run_period
		ON period_results(entity_id, scenario_id, period_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TEMPLATE STORE (engine.TemplateStore interface)
// =============================================================================

// SaveTemplate validates and stores a JSON template document. The
// document must compile; nothing invalid ever reaches the table.
func (s *Store) SaveTemplate(ctx context.Context, doc []byte) (string, error) {
	tmpl, err := template.LoadJSON(doc)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO statement_templates
		(code, name, statement_type, industry, version, json_structure, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			statement_type = excluded.statement_type,
			industry = excluded.industry,
			version = excluded.version,
			json_structure = excluded.json_structure,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, query,
		tmpl.Code, tmpl.Name, tmpl.StatementType, tmpl.Industry, tmpl.Version,
		string(doc), now, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to save template: %w", err)
	}
	return tmpl.Code, nil
}

// Template loads and compiles the stored document for code.
func (s *Store) Template(ctx context.Context, code string) (*template.StatementTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc string
	err := s.db.QueryRowContext(ctx,
		"SELECT json_structure FROM statement_templates WHERE code = ?",
		code,
	).Scan(&doc)

	if err == sql.ErrNoRows {
		return nil, template.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}

	return template.LoadJSON([]byte(doc))
}

// ListTemplates returns metadata for every stored template.
func (s *Store) ListTemplates(ctx context.Context) ([]engine.TemplateInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT code, name, statement_type, industry, version FROM statement_templates ORDER BY code",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []engine.TemplateInfo
	for rows.Next() {
		var info engine.TemplateInfo
		var industry, version sql.NullString
		if err := rows.Scan(&info.Code, &info.Name, &info.StatementType, &industry, &version); err != nil {
			return nil, err
		}
		info.Industry = industry.String
		info.Version = version.String
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// DeleteTemplate removes a template.
func (s *Store) DeleteTemplate(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM statement_templates WHERE code = ?", code)
	return err
}

// =============================================================================
// DRIVER STORE (engine.DriverStore interface)
// =============================================================================

// SaveDrivers upserts driver values for one entity/scenario/period. The
// batch is atomic: either every code lands or none do.
func (s *Store) SaveDrivers(ctx context.Context, entityID string, scenarioID, periodID int, values map[string]decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO scenario_drivers
		(entity_id, scenario_id, period_id, driver_code, value, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id, scenario_id, period_id, driver_code) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	for code, v := range values {
		if _, err := tx.ExecContext(ctx, query,
			entityID, scenarioID, periodID, code, v.String(), now,
		); err != nil {
			return fmt.Errorf("failed to save driver %s: %w", code, err)
		}
	}

	return tx.Commit()
}

// Drivers returns every driver value for one entity/scenario/period.
func (s *Store) Drivers(ctx context.Context, entityID string, scenarioID, periodID int) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT driver_code, value FROM scenario_drivers
		 WHERE entity_id = ? AND scenario_id = ? AND period_id = ?`,
		entityID, scenarioID, periodID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query drivers: %w", err)
	}
	defer rows.Close()

	values := make(map[string]decimal.Decimal)
	for rows.Next() {
		var code, raw string
		if err := rows.Scan(&code, &raw); err != nil {
			return nil, err
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt driver value for %s: %w", code, err)
		}
		values[code] = v
	}
	return values, rows.Err()
}

// =============================================================================
// RESULT STORE (engine.ResultStore interface)
// =============================================================================

// SaveResult stores a period's merged line items, replacing any previous
// result for the same entity/scenario/period.
func (s *Store) SaveResult(ctx context.Context, entityID string, scenarioID int, result *engine.PeriodResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Replace wholesale: a recalculation may produce fewer items.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM period_results WHERE entity_id = ? AND scenario_id = ? AND period_id = ?`,
		entityID, scenarioID, result.PeriodID,
	); err != nil {
		return fmt.Errorf("failed to clear previous result: %w", err)
	}

	query := `
		INSERT INTO period_results
		(entity_id, scenario_id, period_id, item_code, value, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC().Format(time.RFC3339)
	for code, v := range result.Values() {
		if _, err := tx.ExecContext(ctx, query,
			entityID, scenarioID, result.PeriodID, code, v.String(), now,
		); err != nil {
			return fmt.Errorf("failed to save result %s: %w", code, err)
		}
	}

	return tx.Commit()
}

// Results loads a stored period's line items.
func (s *Store) Results(ctx context.Context, entityID string, scenarioID, periodID int) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT item_code, value FROM period_results
		 WHERE entity_id = ? AND scenario_id = ? AND period_id = ?`,
		entityID, scenarioID, periodID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	values := make(map[string]decimal.Decimal)
	for rows.Next() {
		var code, raw string
		if err := rows.Scan(&code, &raw); err != nil {
			return nil, err
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt result value for %s: %w", code, err)
		}
		values[code] = v
	}
	return values, rows.Err()
}

// Summary returns selected line items across a period range, one value
// map per period. Pairs with a template's DenormalizedColumns to build
// trend views without loading full results. Periods with no stored
// result are omitted.
func (s *Store) Summary(ctx context.Context, entityID string, scenarioID int, periodIDs []int, codes []string) (map[int]map[string]decimal.Decimal, error) {
	wanted := make(map[string]bool, len(codes))
	for _, code := range codes {
		wanted[code] = true
	}

	out := make(map[int]map[string]decimal.Decimal)
	for _, periodID := range periodIDs {
		values, err := s.Results(ctx, entityID, scenarioID, periodID)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			continue
		}
		row := make(map[string]decimal.Decimal)
		for code, v := range values {
			if wanted[code] {
				row[code] = v
			}
		}
		out[periodID] = row
	}
	return out, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"period_results", "scenario_drivers", "statement_templates"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}
