/*
handlers.go - HTTP API handlers for the statement engine

PURPOSE:
  Exposes the statement calculation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Templates:
    GET    /api/templates          List stored templates
    POST   /api/templates          Store a template document
    GET    /api/templates/{code}   Get the stored document

  Drivers:
    GET    /api/drivers            Get driver values for one period
    POST   /api/drivers            Set driver values for one period

  Calculation:
    POST   /api/runs               Run a multi-period calculation
    GET    /api/results            Get a stored period result

  Tax:
    GET    /api/tax/strategies     List registered strategies
    POST   /api/tax/compute        Compute tax under a named strategy

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (orchestrator, stores, tax registry)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, calculation failures
  - 404: Resource not found
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/statement-engine/engine"
	"github.com/warp/statement-engine/store/sqlite"
	"github.com/warp/statement-engine/tax"
	"github.com/warp/statement-engine/template"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store
	Tax   *tax.Engine
}

// NewHandler creates a new handler with the given store and tax registry.
func NewHandler(store *sqlite.Store, taxEngine *tax.Engine) *Handler {
	return &Handler{Store: store, Tax: taxEngine}
}

// =============================================================================
// TEMPLATE HANDLERS
// =============================================================================

// ListTemplates returns metadata for every stored template.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	infos, err := h.Store.ListTemplates(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list templates", err)
		return
	}

	dtos := make([]TemplateInfoDTO, len(infos))
	for i, info := range infos {
		dtos[i] = TemplateInfoDTO{
			Code:          info.Code,
			Name:          info.Name,
			StatementType: info.StatementType,
			Industry:      info.Industry,
			Version:       info.Version,
		}
	}

	writeJSON(w, http.StatusOK, dtos)
}

// SaveTemplate stores a template document. The body is the document
// itself, in the template JSON shape.
func (h *Handler) SaveTemplate(w http.ResponseWriter, r *http.Request) {
	doc, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	code, err := h.Store.SaveTemplate(r.Context(), doc)
	if err != nil {
		if errors.Is(err, template.ErrInvalidTemplate) {
			writeError(w, http.StatusBadRequest, "Invalid template document", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save template", err)
		return
	}

	writeJSON(w, http.StatusCreated, SaveTemplateResponse{Code: code})
}

// GetTemplate returns the compiled template's document fields.
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	tmpl, err := h.Store.Template(r.Context(), code)
	if err != nil {
		if errors.Is(err, template.ErrTemplateNotFound) {
			writeError(w, http.StatusNotFound, "Template not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load template", err)
		return
	}

	writeJSON(w, http.StatusOK, TemplateInfoDTO{
		Code:          tmpl.Code,
		Name:          tmpl.Name,
		StatementType: tmpl.StatementType,
		Industry:      tmpl.Industry,
		Version:       tmpl.Version,
	})
}

// =============================================================================
// DRIVER HANDLERS
// =============================================================================

// SaveDrivers upserts driver values for one entity/scenario/period.
func (h *Handler) SaveDrivers(w http.ResponseWriter, r *http.Request) {
	var req SaveDriversRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.EntityID == "" {
		writeError(w, http.StatusBadRequest, "entity_id is required", nil)
		return
	}
	if len(req.Values) == 0 {
		writeError(w, http.StatusBadRequest, "values is required", nil)
		return
	}

	values, err := parseValueStrings(req.Values)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid driver value", err)
		return
	}

	if err := h.Store.SaveDrivers(r.Context(), req.EntityID, req.ScenarioID, req.PeriodID, values); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save drivers", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetDrivers returns the stored driver values for one period.
// GET /api/drivers?entity_id=acme&scenario_id=1&period_id=1
func (h *Handler) GetDrivers(w http.ResponseWriter, r *http.Request) {
	entityID, scenarioID, periodID, err := runQueryParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	values, err := h.Store.Drivers(r.Context(), entityID, scenarioID, periodID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load drivers", err)
		return
	}

	writeJSON(w, http.StatusOK, DriversDTO{
		EntityID:   entityID,
		ScenarioID: scenarioID,
		PeriodID:   periodID,
		Values:     toValueStrings(values),
	})
}

// =============================================================================
// CALCULATION HANDLERS
// =============================================================================

// Run executes a multi-period calculation over stored templates and
// drivers.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.EntityID == "" {
		writeError(w, http.StatusBadRequest, "entity_id is required", nil)
		return
	}
	if len(req.PeriodIDs) == 0 {
		writeError(w, http.StatusBadRequest, "period_ids is required", nil)
		return
	}

	templates, err := h.loadRunTemplates(r, req.TemplateCodes)
	if err != nil {
		if errors.Is(err, template.ErrTemplateNotFound) {
			writeError(w, http.StatusNotFound, "Template not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load templates", err)
		return
	}
	if len(templates) == 0 {
		writeError(w, http.StatusBadRequest, "no templates to run", nil)
		return
	}

	orch, err := engine.NewOrchestrator(templates, h.Tax)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid template set", err)
		return
	}

	var initial map[string]decimal.Decimal
	if len(req.InitialState) > 0 {
		initial, err = parseValueStrings(req.InitialState)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid initial state", err)
			return
		}
	}

	multi, runErr := orch.Run(r.Context(), engine.RunInput{
		EntityID:     req.EntityID,
		ScenarioID:   req.ScenarioID,
		PeriodIDs:    req.PeriodIDs,
		InitialState: initial,
	}, h.Store)

	if req.Persist {
		for _, p := range multi.Periods {
			if err := h.Store.SaveResult(r.Context(), req.EntityID, req.ScenarioID, p); err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to persist results", err)
				return
			}
		}
	}

	resp := RunResponse{Success: multi.Success}
	for _, p := range multi.Periods {
		resp.Periods = append(resp.Periods, toPeriodDTO(p))
	}
	if runErr != nil {
		resp.FailedPeriod = multi.FailedPeriod
		resp.Error = runErr.Error()
	}

	// A failed run still returns 200 with success=false: the completed
	// periods are a useful partial answer, not a transport error.
	writeJSON(w, http.StatusOK, resp)
}

// loadRunTemplates resolves the template set for a run.
func (h *Handler) loadRunTemplates(r *http.Request, codes []string) ([]*template.StatementTemplate, error) {
	if len(codes) == 0 {
		infos, err := h.Store.ListTemplates(r.Context())
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			codes = append(codes, info.Code)
		}
	}

	templates := make([]*template.StatementTemplate, 0, len(codes))
	for _, code := range codes {
		tmpl, err := h.Store.Template(r.Context(), code)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tmpl)
	}
	return templates, nil
}

// GetResults returns a stored period result.
// GET /api/results?entity_id=acme&scenario_id=1&period_id=1
func (h *Handler) GetResults(w http.ResponseWriter, r *http.Request) {
	entityID, scenarioID, periodID, err := runQueryParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	values, err := h.Store.Results(r.Context(), entityID, scenarioID, periodID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load results", err)
		return
	}
	if len(values) == 0 {
		writeError(w, http.StatusNotFound, "No stored result for period", nil)
		return
	}

	writeJSON(w, http.StatusOK, ResultsDTO{
		EntityID:   entityID,
		ScenarioID: scenarioID,
		PeriodID:   periodID,
		Values:     toValueStrings(values),
	})
}

// =============================================================================
// TAX HANDLERS
// =============================================================================

// ListTaxStrategies returns the registered strategy names and
// descriptions.
func (h *Handler) ListTaxStrategies(w http.ResponseWriter, r *http.Request) {
	names := h.Tax.Strategies()
	dtos := make([]TaxStrategyDTO, 0, len(names))
	for _, name := range names {
		desc, err := h.Tax.Describe(name)
		if err != nil {
			continue
		}
		dtos = append(dtos, TaxStrategyDTO{Name: name, Description: desc})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ComputeTax runs a named strategy on an income amount.
func (h *Handler) ComputeTax(w http.ResponseWriter, r *http.Request) {
	var req TaxComputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	income, err := decimal.NewFromString(req.Income)
	if err != nil {
		writeError(w, http.StatusBadRequest, "income is not a decimal", err)
		return
	}

	ctx := tax.Context{}
	amount, err := h.Tax.ComputeTax(income, ctx, req.Strategy)
	if err != nil {
		if errors.Is(err, tax.ErrUnknownStrategy) {
			writeError(w, http.StatusNotFound, "Unknown tax strategy", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to compute tax", err)
		return
	}

	rate, err := h.Tax.EffectiveRate(income, ctx, req.Strategy)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute effective rate", err)
		return
	}

	writeJSON(w, http.StatusOK, TaxComputeResponse{
		Income:        income.String(),
		Strategy:      req.Strategy,
		Tax:           amount.String(),
		EffectiveRate: rate.String(),
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ResetDatabase clears all data (dev only).
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func runQueryParams(r *http.Request) (entityID string, scenarioID, periodID int, err error) {
	entityID = r.URL.Query().Get("entity_id")
	if entityID == "" {
		return "", 0, 0, errors.New("entity_id is required")
	}
	scenarioID, err = strconv.Atoi(r.URL.Query().Get("scenario_id"))
	if err != nil {
		return "", 0, 0, errors.New("scenario_id must be an integer")
	}
	periodID, err = strconv.Atoi(r.URL.Query().Get("period_id"))
	if err != nil {
		return "", 0, 0, errors.New("period_id must be an integer")
	}
	return entityID, scenarioID, periodID, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
