/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with a small,
	reproducible dataset exercising one engine behaviour each. Scenarios go
	through the same services as the admin screens, so the data is derived,
	validated and audited exactly like real input.

AVAILABLE SCENARIOS:

	empty-group:      DPC has nobody, so every DPC capacity check passes
	full-group:       IPC is at its cap of 3 for five weeks in March/April
	ranking-tiebreak: six EPC employees separated one priority field at a time

HOW SCENARIOS WORK:
 1. Reset database (clear employees, periods, audit)
 2. Restore default settings
 3. Create employees through EmployeeService
 4. Book periods through BookingService
 5. Recompute ranks synchronously

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "full-group"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: service wiring
  - vacation/ranking.go: priority order the tiebreak scenario walks through
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/warp/vacation-engine/factory"
	"github.com/warp/vacation-engine/generic"
	"github.com/warp/vacation-engine/vacation"
)

// ScenarioYear is the reference year every scenario uses.
const ScenarioYear = 2024

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	load func(h *Handler, ctx context.Context) error
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "empty-group",
			Name:        "Empty Group",
			Description: "IPC and EPC are staffed, DPC has no employees: DPC capacity checks always pass",
		},
		load: (*Handler).loadEmptyGroupScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "full-group",
			Name:        "Full Group",
			Description: "Three IPC employees share 10/03/2025-08/04/2025; a fourth cannot book any of those days",
		},
		load: (*Handler).loadFullGroupScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "ranking-tiebreak",
			Name:        "Ranking Tiebreak",
			Description: "Six EPC employees, each pair separated by the next priority field",
		},
		load: (*Handler).loadRankingTiebreakScenario,
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s.ScenarioDTO)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	report, err := h.LoadScenarioByID(r.Context(), req.ScenarioID)
	if err != nil {
		if errors.Is(err, errUnknownScenario) {
			writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("%q", req.ScenarioID))
			return
		}
		h.writeServiceError(w, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"scenario": req.ScenarioID,
		"ranks":    report,
	})
}

var errUnknownScenario = errors.New("unknown scenario")

// LoadScenarioByID resets the store and loads one scenario.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) (vacation.RankReport, error) {
	var found *scenario
	for i := range scenarios {
		if scenarios[i].ID == id {
			found = &scenarios[i]
			break
		}
	}
	if found == nil {
		return vacation.RankReport{}, errUnknownScenario
	}

	if err := h.Store.Reset(ctx); err != nil {
		return vacation.RankReport{}, fmt.Errorf("failed to reset store: %w", err)
	}
	if _, err := h.Settings.Update(ctx, generic.DefaultSettings()); err != nil {
		return vacation.RankReport{}, err
	}
	if err := found.load(h, ctx); err != nil {
		return vacation.RankReport{}, fmt.Errorf("scenario %s: %w", id, err)
	}

	report, err := h.Ranks.RunNow(ctx)
	if err != nil {
		return vacation.RankReport{}, err
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()

	h.Logger.WithField("scenario", id).Info("scenario loaded")
	return report, nil
}

// =============================================================================
// SCENARIO: EMPTY GROUP
// =============================================================================

func (h *Handler) loadEmptyGroupScenario(ctx context.Context) error {
	people := []factory.EmployeeInput{
		scenarioEmployee("1001", "Helena Prado", generic.CategoryIPC),
		scenarioEmployee("1002", "Igor Santos", generic.CategoryIPCP),
		scenarioEmployee("1003", "Julia Ramos", generic.CategoryEPC),
	}
	for _, in := range people {
		if err := h.createScenarioEmployee(ctx, in); err != nil {
			return err
		}
	}

	return h.bookScenario(ctx, "1001", "1", "2025-03-10", "2025-04-08")
}

// =============================================================================
// SCENARIO: FULL GROUP
// =============================================================================

func (h *Handler) loadFullGroupScenario(ctx context.Context) error {
	people := []factory.EmployeeInput{
		scenarioEmployee("2001", "Karen Lima", generic.CategoryIPC),
		scenarioEmployee("2002", "Lucas Moura", generic.CategoryIPCP),
		scenarioEmployee("2003", "Marta Nunes", generic.CategoryIPC),
		scenarioEmployee("2004", "Nelson Ortiz", generic.CategoryIPCP),
	}
	for _, in := range people {
		if err := h.createScenarioEmployee(ctx, in); err != nil {
			return err
		}
	}

	// 2004 stays pending: every day of this span is at the group cap.
	for _, id := range []string{"2001", "2002", "2003"} {
		if err := h.bookScenario(ctx, id, "1", "2025-03-10", "2025-04-08"); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// SCENARIO: RANKING TIEBREAK
// =============================================================================

// Expected order: Ana (pregnant), Bruno (2 children), Carla (student),
// Davi (earlier hire), Elisa (older), Fabio.
func (h *Handler) loadRankingTiebreakScenario(ctx context.Context) error {
	ana := scenarioEmployee("3001", "Ana", generic.CategoryEPC)
	ana.Pregnant = true

	bruno := scenarioEmployee("3002", "Bruno", generic.CategoryEPCP)
	bruno.ChildCount = 2

	carla := scenarioEmployee("3003", "Carla", generic.CategoryEPC)
	carla.ChildCount = 1
	carla.Student = true

	davi := scenarioEmployee("3004", "Davi", generic.CategoryEPCP)
	davi.ChildCount = 1
	davi.HireDate = "2010-01-04"

	elisa := scenarioEmployee("3005", "Elisa", generic.CategoryEPC)
	elisa.ChildCount = 1
	elisa.HireDate = "2018-05-02"
	elisa.BirthDate = "1980-02-10"

	fabio := scenarioEmployee("3006", "Fabio", generic.CategoryEPC)
	fabio.ChildCount = 1
	fabio.HireDate = "2018-05-02"
	fabio.BirthDate = "1990-02-10"

	// Inserted in reverse so store order never explains the result.
	for _, in := range []factory.EmployeeInput{fabio, elisa, davi, carla, bruno, ana} {
		if err := h.createScenarioEmployee(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func scenarioEmployee(id, name string, category generic.Category) factory.EmployeeInput {
	return factory.EmployeeInput{
		RegistrationID: id,
		ReferenceYear:  ScenarioYear,
		Name:           name,
		Category:       string(category),
		HireDate:       "2015-03-02",
		BirthDate:      "1985-06-15",
	}
}

func (h *Handler) createScenarioEmployee(ctx context.Context, in factory.EmployeeInput) error {
	emp, err := h.Factory.Build(in)
	if err != nil {
		return err
	}
	_, err = h.Employees.Create(ctx, emp)
	return err
}

func (h *Handler) bookScenario(ctx context.Context, id, split string, dates ...string) error {
	in := factory.BookingInput{
		RegistrationID: id,
		ReferenceYear:  ScenarioYear,
		Split:          split,
	}
	for i := 0; i+1 < len(dates); i += 2 {
		in.Periods = append(in.Periods, factory.PeriodInput{Start: dates[i], End: dates[i+1]})
	}

	req, err := h.Factory.Booking(in)
	if err != nil {
		return err
	}
	res, err := h.Bookings.Book(ctx, req)
	if err != nil {
		return err
	}
	return res.Err()
}
