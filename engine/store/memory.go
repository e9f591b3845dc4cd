// Package store provides in-memory implementations of the engine's
// persistence interfaces, used by tests and development setups.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/statement-engine/engine"
	"github.com/warp/statement-engine/template"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements TemplateStore, DriverStore, and ResultStore over
// plain maps. Safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	templates map[string]*template.StatementTemplate
	documents map[string][]byte
	drivers   map[runKey]map[string]decimal.Decimal
	results   map[runKey]map[string]decimal.Decimal
}

type runKey struct {
	EntityID   string
	ScenarioID int
	PeriodID   int
}

func NewMemory() *Memory {
	return &Memory{
		templates: make(map[string]*template.StatementTemplate),
		documents: make(map[string][]byte),
		drivers:   make(map[runKey]map[string]decimal.Decimal),
		results:   make(map[runKey]map[string]decimal.Decimal),
	}
}

// SaveTemplate compiles the document before storing, so a stored
// template always loads.
func (m *Memory) SaveTemplate(_ context.Context, doc []byte) (string, error) {
	tmpl, err := template.LoadJSON(doc)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([]byte, len(doc))
	copy(copied, doc)
	m.documents[tmpl.Code] = copied
	m.templates[tmpl.Code] = tmpl
	return tmpl.Code, nil
}

func (m *Memory) Template(_ context.Context, code string) (*template.StatementTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tmpl, ok := m.templates[code]
	if !ok {
		return nil, template.ErrTemplateNotFound
	}
	return tmpl, nil
}

func (m *Memory) ListTemplates(_ context.Context) ([]engine.TemplateInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]engine.TemplateInfo, 0, len(m.templates))
	for _, t := range m.templates {
		infos = append(infos, engine.TemplateInfo{
			Code:          t.Code,
			Name:          t.Name,
			StatementType: t.StatementType,
			Industry:      t.Industry,
			Version:       t.Version,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Code < infos[j].Code })
	return infos, nil
}

// SaveDrivers upserts: existing driver codes for the period keep their
// new values, codes not mentioned keep their old ones.
func (m *Memory) SaveDrivers(_ context.Context, entityID string, scenarioID, periodID int, values map[string]decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := runKey{EntityID: entityID, ScenarioID: scenarioID, PeriodID: periodID}
	existing := m.drivers[k]
	if existing == nil {
		existing = make(map[string]decimal.Decimal, len(values))
		m.drivers[k] = existing
	}
	for code, v := range values {
		existing[code] = v
	}
	return nil
}

func (m *Memory) Drivers(_ context.Context, entityID string, scenarioID, periodID int) (map[string]decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k := runKey{EntityID: entityID, ScenarioID: scenarioID, PeriodID: periodID}
	out := make(map[string]decimal.Decimal, len(m.drivers[k]))
	for code, v := range m.drivers[k] {
		out[code] = v
	}
	return out, nil
}

func (m *Memory) SaveResult(_ context.Context, entityID string, scenarioID int, result *engine.PeriodResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := runKey{EntityID: entityID, ScenarioID: scenarioID, PeriodID: result.PeriodID}
	m.results[k] = result.Values()
	return nil
}

func (m *Memory) Results(_ context.Context, entityID string, scenarioID, periodID int) (map[string]decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k := runKey{EntityID: entityID, ScenarioID: scenarioID, PeriodID: periodID}
	out := make(map[string]decimal.Decimal, len(m.results[k]))
	for code, v := range m.results[k] {
		out[code] = v
	}
	return out, nil
}
