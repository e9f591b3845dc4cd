/*
json.go - JSON template documents

PURPOSE:
  Templates are authored and stored as JSON documents (one row per
  template in the sqlite store). LoadJSON parses a document into an
  immutable StatementTemplate, compiling formulas and the calculation
  order as it goes. Malformed input surfaces as *Error, never as a
  half-built template.

DOCUMENT SHAPE:
  {
    "template_code": "CORP_PL",
    "template_name": "Corporate P&L",
    "statement_type": "pl",
    "industry": "CORPORATE",
    "version": "1.0.0",
    "line_items": [
      {"code": "REVENUE", "display_name": "Revenue", "level": 1,
       "category": "revenue", "is_computed": false,
       "driver_applicable": true},
      {"code": "GROSS_PROFIT", "display_name": "Gross Profit",
       "level": 1, "category": "subtotal", "is_computed": true,
       "formula": "REVENUE - COST_OF_GOODS_SOLD"}
    ],
    "validation_rules": [
      {"rule_id": "pl_rev_nonneg", "rule": "REVENUE >= 0",
       "severity": "warning", "message": "negative revenue"}
    ],
    "denormalized_columns": ["REVENUE", "NET_INCOME"]
  }

SEE ALSO:
  - template.go: The compiled in-memory form
  - factory/templates.go: Built-in documents in this shape
*/
package template

import (
	"encoding/json"
	"fmt"

	"github.com/warp/statement-engine/formula"
)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// Document is the JSON wire form of a statement template.
type Document struct {
	TemplateCode        string               `json:"template_code"`
	TemplateName        string               `json:"template_name"`
	StatementType       string               `json:"statement_type"`
	Industry            string               `json:"industry,omitempty"`
	Version             string               `json:"version,omitempty"`
	Description         string               `json:"description,omitempty"`
	LineItems           []LineItemDoc        `json:"line_items"`
	ValidationRules     []ValidationRuleDoc  `json:"validation_rules,omitempty"`
	DenormalizedColumns []string             `json:"denormalized_columns,omitempty"`
}

// LineItemDoc is the JSON wire form of a line item.
type LineItemDoc struct {
	Code             string   `json:"code"`
	DisplayName      string   `json:"display_name,omitempty"`
	Level            int      `json:"level,omitempty"`
	Category         string   `json:"category,omitempty"`
	IsComputed       bool     `json:"is_computed"`
	Formula          string   `json:"formula,omitempty"`
	BaseValueSource  string   `json:"base_value_source,omitempty"`
	DriverApplicable bool     `json:"driver_applicable,omitempty"`
	DriverCode       string   `json:"driver_code,omitempty"`
	Dependencies     []string `json:"dependencies,omitempty"`
}

// ValidationRuleDoc is the JSON wire form of a validation rule.
type ValidationRuleDoc struct {
	RuleID   string `json:"rule_id"`
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// =============================================================================
// LOADING
// =============================================================================

// LoadJSON parses and compiles a template document.
func LoadJSON(doc []byte) (*StatementTemplate, error) {
	var d Document
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, &Error{Reason: "malformed JSON", Err: err}
	}
	return FromDocument(&d)
}

// FromDocument compiles an already-decoded document.
func FromDocument(d *Document) (*StatementTemplate, error) {
	if d.TemplateCode == "" {
		return nil, &Error{Reason: "template_code is required"}
	}
	if d.StatementType == "" {
		return nil, &Error{TemplateCode: d.TemplateCode, Reason: "statement_type is required"}
	}
	if len(d.LineItems) == 0 {
		return nil, &Error{TemplateCode: d.TemplateCode, Reason: "no line items"}
	}

	items := make([]LineItem, 0, len(d.LineItems))
	for _, doc := range d.LineItems {
		item, err := lineItemFromDoc(d.TemplateCode, doc)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	t, err := New(d.TemplateCode, d.TemplateName, d.StatementType, items)
	if err != nil {
		return nil, err
	}
	t.Industry = d.Industry
	t.Version = d.Version
	t.Description = d.Description
	t.DenormalizedColumns = append([]string{}, d.DenormalizedColumns...)

	for _, rd := range d.ValidationRules {
		rule, err := ruleFromDoc(d.TemplateCode, rd)
		if err != nil {
			return nil, err
		}
		t.ValidationRules = append(t.ValidationRules, rule)
	}
	return t, nil
}

func lineItemFromDoc(templateCode string, doc LineItemDoc) (LineItem, error) {
	if doc.Code == "" {
		return LineItem{}, &Error{TemplateCode: templateCode, Reason: "line item with empty code"}
	}

	// is_computed and formula presence must agree; a mismatch means the
	// document author forgot one half.
	if doc.IsComputed && doc.Formula == "" {
		return LineItem{}, &Error{
			TemplateCode: templateCode,
			Reason:       fmt.Sprintf("line item %s is marked computed but has no formula", doc.Code),
		}
	}
	if !doc.IsComputed && doc.Formula != "" {
		return LineItem{}, &Error{
			TemplateCode: templateCode,
			Reason:       fmt.Sprintf("line item %s has a formula but is not marked computed", doc.Code),
		}
	}

	item := LineItem{
		Code:             doc.Code,
		DisplayName:      doc.DisplayName,
		Level:            doc.Level,
		Category:         doc.Category,
		BaseValueSource:  doc.BaseValueSource,
		DriverApplicable: doc.DriverApplicable,
		DriverCode:       doc.DriverCode,
		Dependencies:     append([]string{}, doc.Dependencies...),
	}

	if doc.Formula != "" {
		f, err := formula.Parse(doc.Formula)
		if err != nil {
			return LineItem{}, &Error{
				TemplateCode: templateCode,
				Reason:       fmt.Sprintf("line item %s has an invalid formula", doc.Code),
				Err:          err,
			}
		}
		item.Formula = f
	}
	return item, nil
}

func ruleFromDoc(templateCode string, doc ValidationRuleDoc) (ValidationRule, error) {
	sev := Severity(doc.Severity)
	if sev != SeverityError && sev != SeverityWarning {
		return ValidationRule{}, &Error{
			TemplateCode: templateCode,
			Reason:       fmt.Sprintf("validation rule %s has unknown severity %q", doc.RuleID, doc.Severity),
		}
	}

	f, err := formula.Parse(doc.Rule)
	if err != nil {
		return ValidationRule{}, &Error{
			TemplateCode: templateCode,
			Reason:       fmt.Sprintf("validation rule %s has an invalid expression", doc.RuleID),
			Err:          err,
		}
	}

	return ValidationRule{ID: doc.RuleID, Expr: f, Severity: sev, Message: doc.Message}, nil
}
