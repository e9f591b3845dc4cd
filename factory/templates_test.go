package factory

import (
	"testing"

	"github.com/warp/statement-engine/template"
)

func TestAllBuiltInDocumentsCompile(t *testing.T) {
	docs := map[string]string{
		"CORP_PL":         CorporatePLJSON,
		"CORP_PL_AUTOTAX": CorporatePLAutoTaxJSON,
		"CORP_BS":         CorporateBSJSON,
		"CORP_CF":         CorporateCFJSON,
		"CORP_CARBON":     CorporateCarbonJSON,
	}
	for code, doc := range docs {
		tmpl, err := template.LoadJSON([]byte(doc))
		if err != nil {
			t.Fatalf("%s does not compile: %v", code, err)
		}
		if tmpl.Code != code {
			t.Errorf("template_code = %s, want %s", tmpl.Code, code)
		}
	}
}

func TestCorporateTemplatesCoverOneStatementTypeEach(t *testing.T) {
	templates, err := CorporateTemplates()
	if err != nil {
		t.Fatalf("CorporateTemplates: %v", err)
	}
	if len(templates) != 4 {
		t.Fatalf("len = %d, want 4", len(templates))
	}

	seen := map[string]bool{}
	for _, tmpl := range templates {
		if seen[tmpl.StatementType] {
			t.Errorf("duplicate statement type %s", tmpl.StatementType)
		}
		seen[tmpl.StatementType] = true
	}
	for _, st := range []string{"pl", "bs", "cf", "carbon"} {
		if !seen[st] {
			t.Errorf("missing statement type %s", st)
		}
	}
}

func TestPLCalculationOrderRespectsDependencies(t *testing.T) {
	tmpl, err := template.LoadJSON([]byte(CorporatePLJSON))
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}

	pos := map[string]int{}
	for i, code := range tmpl.CalculationOrder() {
		pos[code] = i
	}

	// Drivers never appear in the calculation order.
	if _, ok := pos["REVENUE"]; ok {
		t.Error("REVENUE is a driver and must not be in the calculation order")
	}

	// The subtotal cascade holds.
	chain := []string{"GROSS_PROFIT", "EBITDA", "EBIT", "EBT", "NET_INCOME"}
	for i := 1; i < len(chain); i++ {
		if pos[chain[i-1]] >= pos[chain[i]] {
			t.Errorf("%s must precede %s, got order %v", chain[i-1], chain[i], tmpl.CalculationOrder())
		}
	}
}

func TestBalanceSheetLagReferencesCreateNoCycle(t *testing.T) {
	// CASH = CASH[t-1] + ... is a roll-forward, not a self-dependency.
	tmpl, err := template.LoadJSON([]byte(CorporateBSJSON))
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if !tmpl.Has("CASH") {
		t.Fatal("CASH missing")
	}
	g := tmpl.DependencyGraph()
	for _, dep := range g.Dependencies("CASH") {
		if dep == "CASH" {
			t.Error("lag self-reference created an edge")
		}
	}
}
