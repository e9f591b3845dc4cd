package sqlite

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/statement-engine/engine"
	"github.com/warp/statement-engine/factory"
	"github.com/warp/statement-engine/template"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTemplateRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	code, err := s.SaveTemplate(ctx, []byte(factory.CorporatePLJSON))
	require.NoError(t, err)
	assert.Equal(t, "CORP_PL", code)

	tmpl, err := s.Template(ctx, "CORP_PL")
	require.NoError(t, err)
	assert.Equal(t, "Corporate P&L", tmpl.Name)
	assert.Equal(t, "pl", tmpl.StatementType)

	// The compiled calculation order survives the round trip.
	assert.Contains(t, tmpl.CalculationOrder(), "NET_INCOME")
}

func TestTemplateNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Template(context.Background(), "NOPE")
	require.ErrorIs(t, err, template.ErrTemplateNotFound)
}

func TestInvalidDocumentNeverStored(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveTemplate(ctx, []byte(`{"template_code": "BAD", "statement_type": "pl",
		"line_items": [{"code": "X", "is_computed": true, "formula": "1 +"}]}`))
	require.ErrorIs(t, err, template.ErrInvalidTemplate)

	infos, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestSaveTemplateReplacesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveTemplate(ctx, []byte(`{"template_code": "T", "template_name": "v1",
		"statement_type": "pl",
		"line_items": [{"code": "A", "is_computed": false, "driver_applicable": true}]}`))
	require.NoError(t, err)

	_, err = s.SaveTemplate(ctx, []byte(`{"template_code": "T", "template_name": "v2",
		"statement_type": "pl",
		"line_items": [{"code": "A", "is_computed": false, "driver_applicable": true}]}`))
	require.NoError(t, err)

	tmpl, err := s.Template(ctx, "T")
	require.NoError(t, err)
	assert.Equal(t, "v2", tmpl.Name)

	infos, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}

func TestListTemplatesSorted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, doc := range factory.Documents() {
		_, err := s.SaveTemplate(ctx, doc)
		require.NoError(t, err)
	}

	infos, err := s.ListTemplates(ctx)
	require.NoError(t, err)

	var codes []string
	for _, info := range infos {
		codes = append(codes, info.Code)
	}
	assert.Equal(t, []string{"CORP_BS", "CORP_CARBON", "CORP_CF", "CORP_PL"}, codes)
}

func TestDriverRoundTripKeepsPrecision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// A value REAL columns would mangle.
	precise := decimal.RequireFromString("1234567.891234567891234567")
	require.NoError(t, s.SaveDrivers(ctx, "acme", 1, 1, map[string]decimal.Decimal{
		"REVENUE": precise,
		"CAPEX":   decimal.NewFromInt(80000),
	}))

	drivers, err := s.Drivers(ctx, "acme", 1, 1)
	require.NoError(t, err)
	assert.True(t, drivers["REVENUE"].Equal(precise))
	assert.True(t, drivers["CAPEX"].Equal(decimal.NewFromInt(80000)))
}

func TestDriverUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDrivers(ctx, "acme", 1, 1, map[string]decimal.Decimal{
		"REVENUE": decimal.NewFromInt(100),
		"CAPEX":   decimal.NewFromInt(10),
	}))
	require.NoError(t, s.SaveDrivers(ctx, "acme", 1, 1, map[string]decimal.Decimal{
		"REVENUE": decimal.NewFromInt(200),
	}))

	drivers, err := s.Drivers(ctx, "acme", 1, 1)
	require.NoError(t, err)
	assert.True(t, drivers["REVENUE"].Equal(decimal.NewFromInt(200)))
	assert.True(t, drivers["CAPEX"].Equal(decimal.NewFromInt(10)))
}

func TestDriversIsolatedByScenarioAndPeriod(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDrivers(ctx, "acme", 1, 1, map[string]decimal.Decimal{
		"REVENUE": decimal.NewFromInt(100),
	}))

	other, err := s.Drivers(ctx, "acme", 2, 1)
	require.NoError(t, err)
	assert.Empty(t, other)

	later, err := s.Drivers(ctx, "acme", 1, 2)
	require.NoError(t, err)
	assert.Empty(t, later)
}

func TestResultReplaceWholesale(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := engine.NewPeriodResult(1, map[string]decimal.Decimal{
		"NET_INCOME": decimal.NewFromInt(192000),
		"OLD_ITEM":   decimal.NewFromInt(1),
	})
	require.NoError(t, s.SaveResult(ctx, "acme", 1, first))

	// Recalculation drops OLD_ITEM entirely.
	second := engine.NewPeriodResult(1, map[string]decimal.Decimal{
		"NET_INCOME": decimal.NewFromInt(200000),
	})
	require.NoError(t, s.SaveResult(ctx, "acme", 1, second))

	values, err := s.Results(ctx, "acme", 1, 1)
	require.NoError(t, err)
	assert.Len(t, values, 1)
	assert.True(t, values["NET_INCOME"].Equal(decimal.NewFromInt(200000)))
}

func TestSummarySelectsDenormalizedColumns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for period, net := range map[int]int64{1: 192000, 2: 200000} {
		result := engine.NewPeriodResult(period, map[string]decimal.Decimal{
			"NET_INCOME":   decimal.NewFromInt(net),
			"GROSS_PROFIT": decimal.NewFromInt(600000),
		})
		require.NoError(t, s.SaveResult(ctx, "acme", 1, result))
	}

	summary, err := s.Summary(ctx, "acme", 1, []int{1, 2, 3}, []string{"NET_INCOME"})
	require.NoError(t, err)

	// Period 3 has no result and is omitted; only the asked-for column
	// comes back.
	require.Len(t, summary, 2)
	assert.True(t, summary[1]["NET_INCOME"].Equal(decimal.NewFromInt(192000)))
	assert.True(t, summary[2]["NET_INCOME"].Equal(decimal.NewFromInt(200000)))
	_, hasGross := summary[1]["GROSS_PROFIT"]
	assert.False(t, hasGross)
}

func TestReset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveTemplate(ctx, []byte(factory.CorporatePLJSON))
	require.NoError(t, err)
	require.NoError(t, s.SaveDrivers(ctx, "acme", 1, 1, map[string]decimal.Decimal{
		"REVENUE": decimal.NewFromInt(100),
	}))

	require.NoError(t, s.Reset(ctx))

	infos, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Empty(t, infos)

	drivers, err := s.Drivers(ctx, "acme", 1, 1)
	require.NoError(t, err)
	assert.Empty(t, drivers)
}
