/*
Package factory provides the built-in statement template documents.

PURPOSE:
  Ships ready-to-use JSON template documents for a standard corporate
  model: P&L, balance sheet, cash flow, and carbon statement. Templates
  are configuration, not code - analysts define statements in JSON, and
  the template package compiles them. This package is where the stock
  documents live, both as seed data for a fresh database and as
  fixtures for tests.

DOCUMENT SHAPE:
  {
    "template_code": "CORP_PL",
    "template_name": "Corporate P&L",
    "statement_type": "pl",
    "line_items": [
      {"code": "REVENUE", "is_computed": false, "driver_applicable": true},
      {"code": "GROSS_PROFIT", "is_computed": true,
       "formula": "REVENUE - COST_OF_GOODS_SOLD"}
    ],
    "validation_rules": [
      {"rule_id": "pl_rev_nonneg", "rule": "REVENUE >= 0",
       "severity": "warning", "message": "negative revenue"}
    ]
  }

HOW THE SET FITS TOGETHER:
  - pl feeds everything: cf reads NET_INCOME and DEPRECIATION, carbon
    reads REVENUE, bs reads NET_INCOME and DEPRECIATION.
  - cf produces CASH_FLOW_NET, CAPEX and NET_BORROWING for bs.
  - bs rolls CASH, PPE, DEBT and EQUITY forward with [t-1] references
    and checks the balance equation as an error-severity rule.
  The orchestrator derives the execution order (pl, carbon, cf, bs)
  from these references; nothing here hardcodes it.

SEE ALSO:
  - template/json.go: The document schema and compiler
  - engine/orchestrator.go: Statement-type ordering
  - cmd/server/main.go: Seeds these into a fresh database
*/
package factory

import (
	"github.com/warp/statement-engine/template"
)

// =============================================================================
// BUILT-IN DOCUMENTS
// =============================================================================

// CorporatePLJSON is the standard corporate profit and loss statement.
// TAX_EXPENSE is an externally supplied driver; use CorporatePLAutoTaxJSON
// when tax should be computed from pre-tax income instead.
const CorporatePLJSON = `{
  "template_code": "CORP_PL",
  "template_name": "Corporate P&L",
  "statement_type": "pl",
  "industry": "CORPORATE",
  "version": "1.0.0",
  "description": "Standard corporate profit and loss statement",
  "line_items": [
    {"code": "REVENUE", "display_name": "Revenue", "level": 1, "category": "revenue", "is_computed": false, "driver_applicable": true},
    {"code": "COST_OF_GOODS_SOLD", "display_name": "Cost of Goods Sold", "level": 1, "category": "expense", "is_computed": false, "driver_applicable": true},
    {"code": "GROSS_PROFIT", "display_name": "Gross Profit", "level": 1, "category": "subtotal", "is_computed": true, "formula": "REVENUE - COST_OF_GOODS_SOLD"},
    {"code": "OPERATING_EXPENSES", "display_name": "Operating Expenses", "level": 1, "category": "expense", "is_computed": false, "driver_applicable": true},
    {"code": "EBITDA", "display_name": "EBITDA", "level": 1, "category": "subtotal", "is_computed": true, "formula": "GROSS_PROFIT - OPERATING_EXPENSES"},
    {"code": "DEPRECIATION", "display_name": "Depreciation", "level": 1, "category": "expense", "is_computed": false, "driver_applicable": true},
    {"code": "EBIT", "display_name": "EBIT", "level": 1, "category": "subtotal", "is_computed": true, "formula": "EBITDA - DEPRECIATION"},
    {"code": "INTEREST_EXPENSE", "display_name": "Interest Expense", "level": 1, "category": "expense", "is_computed": false, "driver_applicable": true},
    {"code": "EBT", "display_name": "Earnings Before Tax", "level": 1, "category": "subtotal", "is_computed": true, "formula": "EBIT - INTEREST_EXPENSE"},
    {"code": "TAX_EXPENSE", "display_name": "Tax Expense", "level": 1, "category": "expense", "is_computed": false, "driver_applicable": true},
    {"code": "NET_INCOME", "display_name": "Net Income", "level": 1, "category": "total", "is_computed": true, "formula": "EBT - TAX_EXPENSE"}
  ],
  "validation_rules": [
    {"rule_id": "pl_revenue_nonneg", "rule": "REVENUE >= 0", "severity": "warning", "message": "revenue is negative"}
  ],
  "denormalized_columns": ["REVENUE", "EBITDA", "NET_INCOME"]
}`

// CorporatePLAutoTaxJSON is the P&L variant where tax expense is
// delegated to the registered US_FEDERAL strategy instead of being a
// driver.
const CorporatePLAutoTaxJSON = `{
  "template_code": "CORP_PL_AUTOTAX",
  "template_name": "Corporate P&L (computed tax)",
  "statement_type": "pl",
  "industry": "CORPORATE",
  "version": "1.0.0",
  "description": "Corporate P&L with tax computed from pre-tax income",
  "line_items": [
    {"code": "REVENUE", "display_name": "Revenue", "level": 1, "category": "revenue", "is_computed": false, "driver_applicable": true},
    {"code": "COST_OF_GOODS_SOLD", "display_name": "Cost of Goods Sold", "level": 1, "category": "expense", "is_computed": false, "driver_applicable": true},
    {"code": "GROSS_PROFIT", "display_name": "Gross Profit", "level": 1, "category": "subtotal", "is_computed": true, "formula": "REVENUE - COST_OF_GOODS_SOLD"},
    {"code": "OPERATING_EXPENSES", "display_name": "Operating Expenses", "level": 1, "category": "expense", "is_computed": false, "driver_applicable": true},
    {"code": "EBITDA", "display_name": "EBITDA", "level": 1, "category": "subtotal", "is_computed": true, "formula": "GROSS_PROFIT - OPERATING_EXPENSES"},
    {"code": "DEPRECIATION", "display_name": "Depreciation", "level": 1, "category": "expense", "is_computed": false, "driver_applicable": true},
    {"code": "EBIT", "display_name": "EBIT", "level": 1, "category": "subtotal", "is_computed": true, "formula": "EBITDA - DEPRECIATION"},
    {"code": "INTEREST_EXPENSE", "display_name": "Interest Expense", "level": 1, "category": "expense", "is_computed": false, "driver_applicable": true},
    {"code": "EBT", "display_name": "Earnings Before Tax", "level": 1, "category": "subtotal", "is_computed": true, "formula": "EBIT - INTEREST_EXPENSE"},
    {"code": "TAX_EXPENSE", "display_name": "Tax Expense", "level": 1, "category": "expense", "is_computed": true, "formula": "TAX_COMPUTE(EBT, \"US_FEDERAL\")"},
    {"code": "NET_INCOME", "display_name": "Net Income", "level": 1, "category": "total", "is_computed": true, "formula": "EBT - TAX_EXPENSE"}
  ],
  "validation_rules": [
    {"rule_id": "pl_revenue_nonneg", "rule": "REVENUE >= 0", "severity": "warning", "message": "revenue is negative"}
  ],
  "denormalized_columns": ["REVENUE", "EBITDA", "NET_INCOME"]
}`

// CorporateCFJSON is the indirect-method cash flow statement. NET_INCOME
// and DEPRECIATION come from the P&L through the merged period
// namespace.
const CorporateCFJSON = `{
  "template_code": "CORP_CF",
  "template_name": "Corporate Cash Flow",
  "statement_type": "cf",
  "industry": "CORPORATE",
  "version": "1.0.0",
  "description": "Indirect-method cash flow statement",
  "line_items": [
    {"code": "CASH_FLOW_OPERATING", "display_name": "Operating Cash Flow", "level": 1, "category": "subtotal", "is_computed": true, "formula": "NET_INCOME + DEPRECIATION"},
    {"code": "CAPEX", "display_name": "Capital Expenditure", "level": 1, "category": "investing", "is_computed": false, "driver_applicable": true},
    {"code": "CASH_FLOW_INVESTING", "display_name": "Investing Cash Flow", "level": 1, "category": "subtotal", "is_computed": true, "formula": "-CAPEX"},
    {"code": "NET_BORROWING", "display_name": "Net Borrowing", "level": 1, "category": "financing", "is_computed": false, "driver_applicable": true},
    {"code": "CASH_FLOW_FINANCING", "display_name": "Financing Cash Flow", "level": 1, "category": "subtotal", "is_computed": true, "formula": "NET_BORROWING"},
    {"code": "CASH_FLOW_NET", "display_name": "Net Change in Cash", "level": 1, "category": "total", "is_computed": true, "formula": "CASH_FLOW_OPERATING + CASH_FLOW_INVESTING + CASH_FLOW_FINANCING"}
  ],
  "denormalized_columns": ["CASH_FLOW_OPERATING", "CASH_FLOW_NET"]
}`

// CorporateBSJSON is the roll-forward balance sheet. Every balance opens
// from its own prior-period value via [t-1] and moves by the flows the
// other statements produced this period. The balance equation is an
// error-severity rule.
const CorporateBSJSON = `{
  "template_code": "CORP_BS",
  "template_name": "Corporate Balance Sheet",
  "statement_type": "bs",
  "industry": "CORPORATE",
  "version": "1.0.0",
  "description": "Roll-forward balance sheet",
  "line_items": [
    {"code": "CASH", "display_name": "Cash", "level": 1, "category": "asset", "is_computed": true, "formula": "CASH[t-1] + CASH_FLOW_NET"},
    {"code": "PPE", "display_name": "Property, Plant and Equipment", "level": 1, "category": "asset", "is_computed": true, "formula": "PPE[t-1] + CAPEX - DEPRECIATION"},
    {"code": "TOTAL_ASSETS", "display_name": "Total Assets", "level": 1, "category": "total", "is_computed": true, "formula": "CASH + PPE"},
    {"code": "DEBT", "display_name": "Debt", "level": 1, "category": "liability", "is_computed": true, "formula": "DEBT[t-1] + NET_BORROWING"},
    {"code": "EQUITY", "display_name": "Equity", "level": 1, "category": "equity", "is_computed": true, "formula": "EQUITY[t-1] + NET_INCOME"},
    {"code": "TOTAL_LIABILITIES_AND_EQUITY", "display_name": "Total Liabilities and Equity", "level": 1, "category": "total", "is_computed": true, "formula": "DEBT + EQUITY"}
  ],
  "validation_rules": [
    {"rule_id": "bs_balances", "rule": "TOTAL_ASSETS == TOTAL_LIABILITIES_AND_EQUITY", "severity": "error", "message": "balance sheet does not balance"}
  ],
  "denormalized_columns": ["TOTAL_ASSETS", "TOTAL_LIABILITIES_AND_EQUITY"]
}`

// CorporateCarbonJSON is the carbon statement. EMISSION_INTENSITY is
// tonnes per million of revenue, which makes the statement depend on the
// P&L within the same period.
const CorporateCarbonJSON = `{
  "template_code": "CORP_CARBON",
  "template_name": "Corporate Carbon Statement",
  "statement_type": "carbon",
  "industry": "CORPORATE",
  "version": "1.0.0",
  "description": "Scope 1-3 emissions and revenue intensity",
  "line_items": [
    {"code": "SCOPE1_EMISSIONS", "display_name": "Scope 1 Emissions", "level": 1, "category": "emissions", "is_computed": false, "driver_applicable": true},
    {"code": "SCOPE2_EMISSIONS", "display_name": "Scope 2 Emissions", "level": 1, "category": "emissions", "is_computed": false, "driver_applicable": true},
    {"code": "SCOPE3_EMISSIONS", "display_name": "Scope 3 Emissions", "level": 1, "category": "emissions", "is_computed": false, "driver_applicable": true},
    {"code": "TOTAL_EMISSIONS", "display_name": "Total Emissions", "level": 1, "category": "total", "is_computed": true, "formula": "SCOPE1_EMISSIONS + SCOPE2_EMISSIONS + SCOPE3_EMISSIONS"},
    {"code": "EMISSION_INTENSITY", "display_name": "Emission Intensity", "level": 1, "category": "ratio", "is_computed": true, "formula": "TOTAL_EMISSIONS / (REVENUE / 1000000)"}
  ],
  "validation_rules": [
    {"rule_id": "carbon_nonneg", "rule": "TOTAL_EMISSIONS >= 0", "severity": "warning", "message": "negative total emissions"}
  ],
  "denormalized_columns": ["TOTAL_EMISSIONS", "EMISSION_INTENSITY"]
}`

// =============================================================================
// LOADING
// =============================================================================

// Documents returns the standard corporate set as raw JSON, in no
// particular order. CORP_PL_AUTOTAX is excluded: it shares the pl
// statement type with CORP_PL and is an alternative, not an addition.
func Documents() [][]byte {
	return [][]byte{
		[]byte(CorporatePLJSON),
		[]byte(CorporateBSJSON),
		[]byte(CorporateCFJSON),
		[]byte(CorporateCarbonJSON),
	}
}

// CorporateTemplates compiles the standard corporate set.
func CorporateTemplates() ([]*template.StatementTemplate, error) {
	docs := Documents()
	templates := make([]*template.StatementTemplate, 0, len(docs))
	for _, doc := range docs {
		t, err := template.LoadJSON(doc)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, nil
}
