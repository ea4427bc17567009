/*
scenarios.go - Sample data sets for demos and manual testing

PURPOSE:

	Provides pre-built data sets that replace the stored records with a
	realistic month of work, so the calendar, stats and exports have
	something to show. Mission dates are relative to today.

AVAILABLE SCENARIOS:

	first-month:          A few shift types, past missions with real pay,
	                      upcoming ones planned or confirmed
	night-shifts:         Overnight rates whose end time is before their start
	multi-establishment:  Missions spread over three establishments, one
	                      training rate excluded from the counts

HOW SCENARIOS WORK:
 1. Replace every record with an empty state (settings reset)
 2. Add the scenario's rates through the registry (validated)
 3. Add the missions, resolving rates by acronym

USAGE VIA API:

	POST /api/scenarios/load?confirm=true
	{"scenario_id": "night-shifts"}

NOTE:

	Scenarios erase every record. Export a snapshot first.

SEE ALSO:
  - maintenance.go: ResetData, ImportSnapshot
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/warp/nurse-pay/payroll"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO represents a sample data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects the data set to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

type sampleMission struct {
	rate          string // acronym
	offset        int    // days from today
	status        payroll.Status
	establishment string
	service       string
	notes         string
	gross, net    float64
}

type scenario struct {
	ScenarioDTO
	rates    []payroll.Rate
	missions []sampleMission
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "first-month",
			Name:        "First Month",
			Description: "Day shifts and an on-call indemnity, half worked and paid, half planned",
		},
		rates: []payroll.Rate{
			{Acronym: "Urg C12", Description: "Urgences coupe de 12h", Establishment: "Clinique de Cesson Sévigné", Hours: 12, Salary: 176.7},
			{Acronym: "MedPo C7", Description: "Médecine Post-Opératoire 7h", Establishment: "Clinique de Cesson Sévigné", Hours: 7, Salary: 102.33},
			{Acronym: "Astreinte", Description: "Astreinte weekend", Establishment: "CHU Rennes", Hours: 0, Salary: 75.5},
		},
		missions: []sampleMission{
			{rate: "Urg C12", offset: -10, status: payroll.StatusCompleted, gross: 176.7, net: 138.2},
			{rate: "MedPo C7", offset: -8, status: payroll.StatusCompleted, gross: 102.33, net: 80.05},
			{rate: "Astreinte", offset: -6, status: payroll.StatusCompleted, notes: "Called in twice"},
			{rate: "Urg C12", offset: -2, status: payroll.StatusConfirmed},
			{rate: "Urg C12", offset: 1, status: payroll.StatusConfirmed, service: "Urgences"},
			{rate: "MedPo C7", offset: 3, status: payroll.StatusPlanned},
			{rate: "Urg C12", offset: 4, status: payroll.StatusCancelled, notes: "Replaced by a colleague"},
			{rate: "MedPo C7", offset: 9, status: payroll.StatusPlanned},
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "night-shifts",
			Name:        "Night Shifts",
			Description: "Overnight shifts ending the next morning, paid hourly or flat",
		},
		rates: []payroll.Rate{
			{Acronym: "Nuit 12h", Description: "Nuit réanimation", Establishment: "CHU Rennes", Hours: 12, HourlyRate: 15.5, StartTime: "20:00", EndTime: "08:00"},
			{Acronym: "Nuit 10h", Description: "Nuit médecine", Establishment: "CHU Rennes", Hours: 10, Salary: 160, StartTime: "21:00", EndTime: "07:00"},
		},
		missions: []sampleMission{
			{rate: "Nuit 12h", offset: -7, status: payroll.StatusCompleted, gross: 186, net: 145.5},
			{rate: "Nuit 10h", offset: -6, status: payroll.StatusCompleted, gross: 160, net: 125},
			{rate: "Nuit 12h", offset: -1, status: payroll.StatusConfirmed},
			{rate: "Nuit 12h", offset: 0, status: payroll.StatusConfirmed, service: "Réanimation"},
			{rate: "Nuit 10h", offset: 5, status: payroll.StatusPlanned},
			{rate: "Nuit 10h", offset: 6, status: payroll.StatusPlanned},
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "multi-establishment",
			Name:        "Multi-Establishment",
			Description: "Three establishments, one mission overriding its rate's, and an unpaid training day",
		},
		rates: []payroll.Rate{
			{Acronym: "Hemato C7", Description: "Hématologie 7h", Establishment: "CHU Rennes", Hours: 7, Salary: 102.33},
			{Acronym: "Urg LP", Description: "Urgences Lit Porte", Establishment: "Clinique de Cesson Sévigné", Hours: 12.5, Salary: 184.105},
			{Acronym: "EHPAD Jour", Description: "Journée EHPAD", Establishment: "EHPAD Les Tilleuls", Hours: 10, HourlyRate: 14.2},
			{Acronym: "Formation", Description: "Formation AFGSU", Hours: 7, HourlyRate: 12, ExcludeFromCount: true},
		},
		missions: []sampleMission{
			{rate: "Hemato C7", offset: -12, status: payroll.StatusCompleted, gross: 102.33, net: 79.9},
			{rate: "Urg LP", offset: -9, status: payroll.StatusCompleted, gross: 184.11, net: 143.6},
			{rate: "EHPAD Jour", offset: -4, status: payroll.StatusCompleted, gross: 142, net: 110.75},
			{rate: "Hemato C7", offset: -3, status: payroll.StatusCompleted, establishment: "Hôpital Sud", notes: "Sent to the south site"},
			{rate: "Formation", offset: -1, status: payroll.StatusCompleted},
			{rate: "Urg LP", offset: 2, status: payroll.StatusConfirmed},
			{rate: "EHPAD Jour", offset: 6, status: payroll.StatusPlanned},
		},
	},
}

// ListScenarios returns the available data sets.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	out := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		out[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, out)
}

// GetCurrentScenario returns the data set loaded last, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s.ScenarioDTO)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario replaces every record with a data set.
// POST /api/scenarios/load?confirm=true
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if !requireConfirm(w, r) {
		return
	}
	var req LoadScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var selected *scenario
	for i := range scenarios {
		if scenarios[i].ID == req.ScenarioID {
			selected = &scenarios[i]
		}
	}
	if selected == nil {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("no scenario %q", req.ScenarioID))
		return
	}

	h.currentScenario = ""
	if err := h.loadScenario(r.Context(), *selected); err != nil {
		h.fail(w, r, "Failed to load scenario", err)
		return
	}
	h.currentScenario = selected.ID
	h.observeRecords(r.Context())

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": selected.ID})
}

// =============================================================================
// SCENARIO LOADER
// =============================================================================

func (h *Handler) loadScenario(ctx context.Context, s scenario) error {
	if err := h.Registry.Replace(ctx, payroll.State{Settings: payroll.DefaultSettings()}); err != nil {
		return err
	}

	ids := make(map[string]string, len(s.rates))
	for _, rate := range s.rates {
		stored, err := h.Registry.AddRate(ctx, rate)
		if err != nil {
			return fmt.Errorf("rate %q: %w", rate.Acronym, err)
		}
		ids[rate.Acronym] = stored.ID
	}

	today := h.Registry.Today()
	for _, sm := range s.missions {
		id, ok := ids[sm.rate]
		if !ok {
			return fmt.Errorf("scenario %s: mission references unknown rate %q", s.ID, sm.rate)
		}
		m := payroll.Mission{
			Date:            today.AddDays(sm.offset).Key(),
			RateID:          id,
			Establishment:   sm.establishment,
			Service:         sm.service,
			Notes:           sm.notes,
			Status:          sm.status,
			RealGrossSalary: sm.gross,
			RealNetSalary:   sm.net,
		}
		if _, err := h.Registry.AddMission(ctx, m); err != nil {
			return fmt.Errorf("mission on %s: %w", m.Date, err)
		}
	}

	h.log.InfoContext(ctx, "scenario loaded", "scenario", s.ID,
		"rates", len(s.rates), "missions", len(s.missions))
	return nil
}
