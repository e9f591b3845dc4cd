/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

DECIMALS AS STRINGS:
  Every monetary or quantity field crosses the wire as a string
  ("192000", "0.21"). JSON numbers decode to float64 and would round
  large financial values; clients parse the strings with their own
  decimal types.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
  - template/json.go: Template documents pass through verbatim
*/
package api

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/statement-engine/engine"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// TemplateInfoDTO is one row of the template listing.
type TemplateInfoDTO struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	StatementType string `json:"statement_type"`
	Industry      string `json:"industry,omitempty"`
	Version       string `json:"version,omitempty"`
}

// SaveTemplateResponse confirms a stored template.
type SaveTemplateResponse struct {
	Code string `json:"code"`
}

// SaveDriversRequest sets driver values for one entity/scenario/period.
type SaveDriversRequest struct {
	EntityID   string            `json:"entity_id"`
	ScenarioID int               `json:"scenario_id"`
	PeriodID   int               `json:"period_id"`
	Values     map[string]string `json:"values"`
}

// DriversDTO returns the stored driver values for one period.
type DriversDTO struct {
	EntityID   string            `json:"entity_id"`
	ScenarioID int               `json:"scenario_id"`
	PeriodID   int               `json:"period_id"`
	Values     map[string]string `json:"values"`
}

// RunRequest starts a multi-period calculation.
type RunRequest struct {
	EntityID   string `json:"entity_id"`
	ScenarioID int    `json:"scenario_id"`

	// PeriodIDs in chronological order.
	PeriodIDs []int `json:"period_ids"`

	// TemplateCodes selects the statement set; empty means every stored
	// template.
	TemplateCodes []string `json:"template_codes,omitempty"`

	// InitialState seeds the first period's prior-period references.
	InitialState map[string]string `json:"initial_state,omitempty"`

	// Persist stores each completed period's result.
	Persist bool `json:"persist,omitempty"`
}

// RunResponse is the outcome of a run.
type RunResponse struct {
	Success      bool             `json:"success"`
	Periods      []PeriodDTO      `json:"periods"`
	FailedPeriod int              `json:"failed_period,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// PeriodDTO is one period's merged values and rule outcomes.
type PeriodDTO struct {
	PeriodID   int               `json:"period_id"`
	Values     map[string]string `json:"values"`
	Valid      bool              `json:"valid"`
	Violations []ViolationDTO    `json:"violations,omitempty"`
}

// ViolationDTO is one failed validation rule.
type ViolationDTO struct {
	RuleID        string `json:"rule_id"`
	StatementType string `json:"statement_type"`
	Severity      string `json:"severity"`
	Message       string `json:"message"`
}

// ResultsDTO returns a stored period result.
type ResultsDTO struct {
	EntityID   string            `json:"entity_id"`
	ScenarioID int               `json:"scenario_id"`
	PeriodID   int               `json:"period_id"`
	Values     map[string]string `json:"values"`
}

// TaxStrategyDTO describes one registered strategy.
type TaxStrategyDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// TaxComputeRequest asks for a tax amount under a named strategy.
type TaxComputeRequest struct {
	Income   string `json:"income"`
	Strategy string `json:"strategy"`
}

// TaxComputeResponse carries the computed amount and effective rate.
type TaxComputeResponse struct {
	Income        string `json:"income"`
	Strategy      string `json:"strategy"`
	Tax           string `json:"tax"`
	EffectiveRate string `json:"effective_rate"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toValueStrings(values map[string]decimal.Decimal) map[string]string {
	out := make(map[string]string, len(values))
	for code, v := range values {
		out[code] = v.String()
	}
	return out
}

func parseValueStrings(values map[string]string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(values))
	for code, raw := range values {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("value for %s is not a decimal: %q", code, raw)
		}
		out[code] = v
	}
	return out, nil
}

func toPeriodDTO(p *engine.PeriodResult) PeriodDTO {
	dto := PeriodDTO{
		PeriodID: p.PeriodID,
		Values:   toValueStrings(p.Values()),
		Valid:    p.Valid(),
	}
	for _, v := range p.Violations() {
		dto.Violations = append(dto.Violations, ViolationDTO{
			RuleID:        v.RuleID,
			StatementType: v.StatementType,
			Severity:      string(v.Severity),
			Message:       v.Message,
		})
	}
	return dto
}
