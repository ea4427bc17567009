/*
handlers.go - HTTP API handlers for the mission pay tracker

PURPOSE:
  Exposes the record store, the aggregation engine, the calendar views and
  the exports via a REST API. Handles HTTP request/response and JSON
  serialization, and delegates everything else to the domain packages.

ENDPOINTS:
  Rates:
    GET    /api/rates                  List rates (?q= searches acronym/description)
    POST   /api/rates                  Create rate
    POST   /api/rates/validate         Validate a rate without saving it
    GET    /api/rates/{id}             Get rate
    PUT    /api/rates/{id}             Partial update
    DELETE /api/rates/{id}?confirm=true

  Missions:
    GET    /api/missions               List (?year&month, or ?q&status&establishment&from&to)
    POST   /api/missions               Create mission
    POST   /api/missions/validate      Validate a mission without saving it
    GET    /api/missions/check-date    Advisory warnings for a date
    GET    /api/missions/{id}          Get mission
    PUT    /api/missions/{id}          Partial update
    DELETE /api/missions/{id}?confirm=true

  Settings:
    GET    /api/settings
    PUT    /api/settings               Merge keys over the stored settings

  Views, exports and maintenance: see views.go and maintenance.go.

ARCHITECTURE:
  Handler holds every service, all built over one payroll.Registry:
  - stats.Engine, calendar.Grid, calendar.Navigator, ics.Serializer,
    report.Reporter read through the registry
  - backup.Manager and metrics.Metrics are optional

MONTHS:
  Query parameters and bodies carry 0-based month indexes (0 = January),
  like every view of the application.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors (full error list in details), invalid input
  - 404: Rate, mission or backup not found
  - 409: Backup already in progress
  - 428: Destructive operation without ?confirm=true
  - 500: Persistence failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/warp/nurse-pay/backup"
	"github.com/warp/nurse-pay/calendar"
	"github.com/warp/nurse-pay/generic"
	"github.com/warp/nurse-pay/ics"
	"github.com/warp/nurse-pay/logging"
	"github.com/warp/nurse-pay/metrics"
	"github.com/warp/nurse-pay/payroll"
	"github.com/warp/nurse-pay/report"
	"github.com/warp/nurse-pay/stats"
)

// maxBodyBytes bounds request bodies; snapshots are the largest.
const maxBodyBytes = 10 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Config carries what the handler needs beyond the registry.
type Config struct {
	Clock    generic.Clock
	Location *time.Location
	Locale   string
	ICS      ics.Options
	Backups  *backup.Manager  // nil disables the backup endpoints
	Metrics  *metrics.Metrics // nil disables instrumentation
	Logger   *logging.Logger
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Registry  *payroll.Registry
	Stats     *stats.Engine
	Grid      *calendar.Grid
	Navigator *calendar.Navigator
	Calendar  *ics.Serializer
	Reports   *report.Reporter
	Backups   *backup.Manager
	Metrics   *metrics.Metrics

	clock generic.Clock
	log   *logging.Logger

	// Track the sample data set loaded last
	currentScenario string
}

// NewHandler builds every service over the registry.
func NewHandler(reg *payroll.Registry, cfg Config) (*Handler, error) {
	if cfg.Clock == nil {
		cfg.Clock = generic.SystemClock
	}
	if cfg.Location == nil {
		cfg.Location = reg.Location()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	log := cfg.Logger.WithComponent(logging.ComponentHTTP)

	icsOpts := cfg.ICS
	if icsOpts.TimeZone == "" {
		icsOpts = ics.DefaultOptions()
		if _, ok := ics.LookupZone(cfg.Location.String()); ok {
			icsOpts.TimeZone = cfg.Location.String()
		}
	}
	icsOpts.Clock = cfg.Clock
	if icsOpts.Logger == nil {
		icsOpts.Logger = cfg.Logger
	}
	serializer, err := ics.NewSerializer(reg, icsOpts)
	if err != nil {
		return nil, fmt.Errorf("calendar export: %w", err)
	}

	return &Handler{
		Registry:  reg,
		Stats:     stats.NewEngine(reg),
		Grid:      calendar.NewGrid(reg, cfg.Clock, cfg.Location),
		Navigator: calendar.NewNavigator(cfg.Clock, cfg.Location, cfg.Locale),
		Calendar:  serializer,
		Reports:   report.NewReporter(reg, cfg.Clock, cfg.Location, cfg.Locale, cfg.Logger),
		Backups:   cfg.Backups,
		Metrics:   cfg.Metrics,
		clock:     cfg.Clock,
		log:       log,
	}, nil
}

// =============================================================================
// RATE ENDPOINTS
// =============================================================================

// ListRates returns all rates, or those matching ?q=.
// GET /api/rates
func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	var (
		rates []payroll.Rate
		err   error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		rates, err = h.Reports.SearchRates(r.Context(), q)
	} else {
		rates, err = h.Registry.ListRates(r.Context())
	}
	if err != nil {
		h.fail(w, r, "Failed to list rates", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rates))
}

// GetRate returns one rate.
// GET /api/rates/{id}
func (h *Handler) GetRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.Registry.GetRate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to get rate", err)
		return
	}
	writeJSON(w, http.StatusOK, rate)
}

// CreateRate stores a new rate.
// POST /api/rates
func (h *Handler) CreateRate(w http.ResponseWriter, r *http.Request) {
	var req payroll.Rate
	if !decodeBody(w, r, &req) {
		return
	}
	rate, err := h.Registry.AddRate(r.Context(), req)
	if err != nil {
		h.fail(w, r, "Failed to create rate", err)
		return
	}
	h.observeRecords(r.Context())
	writeJSON(w, http.StatusCreated, rate)
}

// UpdateRate merges the body over a stored rate.
// PUT /api/rates/{id}
func (h *Handler) UpdateRate(w http.ResponseWriter, r *http.Request) {
	var patch payroll.RatePatch
	if !decodeBody(w, r, &patch) {
		return
	}
	rate, err := h.Registry.UpdateRate(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, r, "Failed to update rate", err)
		return
	}
	writeJSON(w, http.StatusOK, rate)
}

// DeleteRate removes a rate. Missions keep referencing it.
// DELETE /api/rates/{id}?confirm=true
func (h *Handler) DeleteRate(w http.ResponseWriter, r *http.Request) {
	if !requireConfirm(w, r) {
		return
	}
	if err := h.Registry.DeleteRate(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "Failed to delete rate", err)
		return
	}
	h.observeRecords(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// ValidateRate checks a rate without storing it.
// POST /api/rates/validate
func (h *Handler) ValidateRate(w http.ResponseWriter, r *http.Request) {
	var req payroll.Rate
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, payroll.ValidateRate(req))
}

// ListEstablishments returns the establishment names found on rates.
// GET /api/establishments
func (h *Handler) ListEstablishments(w http.ResponseWriter, r *http.Request) {
	names, err := h.Registry.Establishments(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list establishments", err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

// =============================================================================
// MISSION ENDPOINTS
// =============================================================================

// ListMissions returns missions. With ?year (and optionally ?month) it
// returns that period; with ?q or a filter it searches; otherwise it
// returns everything in store order.
// GET /api/missions
func (h *Handler) ListMissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	switch {
	case q.Has("year"):
		period, err := h.periodFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid period", err)
			return
		}
		missions, err := h.Registry.MissionsInPeriod(ctx, period)
		if err != nil {
			h.fail(w, r, "Failed to list missions", err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(missions))

	case q.Has("q") || q.Has("status") || q.Has("establishment") || q.Has("from") || q.Has("to"):
		filter := report.MissionFilter{
			Status:        payroll.Status(q.Get("status")),
			Establishment: q.Get("establishment"),
			DateFrom:      q.Get("from"),
			DateTo:        q.Get("to"),
		}
		if filter.Status != "" && !filter.Status.Valid() {
			writeError(w, http.StatusBadRequest, "Invalid status", fmt.Errorf("unknown status %q", filter.Status))
			return
		}
		found, err := h.Reports.SearchMissions(ctx, q.Get("q"), filter)
		if err != nil {
			h.fail(w, r, "Failed to search missions", err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(found))

	default:
		missions, err := h.Registry.ListMissions(ctx)
		if err != nil {
			h.fail(w, r, "Failed to list missions", err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(missions))
	}
}

// GetMission returns one mission.
// GET /api/missions/{id}
func (h *Handler) GetMission(w http.ResponseWriter, r *http.Request) {
	m, err := h.Registry.GetMission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to get mission", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// CreateMission stores a new mission.
// POST /api/missions
func (h *Handler) CreateMission(w http.ResponseWriter, r *http.Request) {
	var req payroll.Mission
	if !decodeBody(w, r, &req) {
		return
	}
	m, err := h.Registry.AddMission(r.Context(), req)
	if err != nil {
		h.fail(w, r, "Failed to create mission", err)
		return
	}
	h.observeRecords(r.Context())
	writeJSON(w, http.StatusCreated, m)
}

// UpdateMission merges the body over a stored mission.
// PUT /api/missions/{id}
func (h *Handler) UpdateMission(w http.ResponseWriter, r *http.Request) {
	var patch payroll.MissionPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	m, err := h.Registry.UpdateMission(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, r, "Failed to update mission", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// DeleteMission removes a mission.
// DELETE /api/missions/{id}?confirm=true
func (h *Handler) DeleteMission(w http.ResponseWriter, r *http.Request) {
	if !requireConfirm(w, r) {
		return
	}
	if err := h.Registry.DeleteMission(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "Failed to delete mission", err)
		return
	}
	h.observeRecords(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// ValidateMission checks a mission against the stored rates without
// storing it.
// POST /api/missions/validate
func (h *Handler) ValidateMission(w http.ResponseWriter, r *http.Request) {
	var req payroll.Mission
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Status == "" {
		req.Status = payroll.StatusPlanned
	}
	rates, err := h.Registry.ListRates(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to load rates", err)
		return
	}
	writeJSON(w, http.StatusOK, payroll.ValidateMission(req, payroll.IndexRates(rates)))
}

// CheckMissionDate returns advisory warnings for a date (busy day, past,
// far future). ?exclude= skips the mission being edited.
// GET /api/missions/check-date?date=2024-03-15
func (h *Handler) CheckMissionDate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.Registry.CheckMissionDate(r.Context(), q.Get("date"), q.Get("exclude"))
	if err != nil {
		h.fail(w, r, "Failed to check date", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// SETTINGS ENDPOINTS
// =============================================================================

// GetSettings returns the stored settings.
// GET /api/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Registry.Settings(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to load settings", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// UpdateSettings merges the body's keys over the stored settings.
// PUT /api/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var update payroll.Settings
	if !decodeBody(w, r, &update) {
		return
	}
	s, err := h.Registry.SaveSettings(r.Context(), update)
	if err != nil {
		h.fail(w, r, "Failed to save settings", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// =============================================================================
// HELPERS
// =============================================================================

// fail maps a domain error to its HTTP status. Server-side failures are
// logged; client errors are not.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	var verr *payroll.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: "validation", Details: verr.Result})
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, generic.ErrBackupInProgress):
		writeError(w, http.StatusConflict, message, err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.log.Failure(r.Context(), r.Method+" "+r.URL.Path, err,
			logging.FieldRequestID, middleware.GetReqID(r.Context()))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// requireConfirm answers 428 unless the request carries ?confirm=true.
func requireConfirm(w http.ResponseWriter, r *http.Request) bool {
	if ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm")); ok {
		return true
	}
	writeError(w, http.StatusPreconditionRequired, "Confirmation required: repeat with ?confirm=true", nil)
	return false
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// yearMonthFromQuery reads ?year and ?month, defaulting to the current month.
func (h *Handler) yearMonthFromQuery(r *http.Request) (int, generic.MonthIndex, error) {
	today := h.Registry.Today()
	year, month := today.Year(), generic.MonthIndexOf(today.Month())
	q := r.URL.Query()
	if v := q.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, fmt.Errorf("year must be a number, got %q", v)
		}
		year = y
	}
	if v := q.Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, fmt.Errorf("month must be a number, got %q", v)
		}
		month = generic.MonthIndex(m)
	}
	ym := generic.YearMonth{Year: year, Month: month}.Normalize()
	return ym.Year, ym.Month, nil
}

// periodFromQuery is the month of ?year&month, or the whole year of ?year
// when no month is given.
func (h *Handler) periodFromQuery(r *http.Request) (generic.Period, error) {
	year, month, err := h.yearMonthFromQuery(r)
	if err != nil {
		return generic.Period{}, err
	}
	if r.URL.Query().Get("month") == "" {
		return generic.YearPeriod(year), nil
	}
	return generic.MonthPeriod(year, month), nil
}

// observeRecords refreshes the record gauges after a write.
func (h *Handler) observeRecords(ctx context.Context) {
	if h.Metrics == nil {
		return
	}
	info, err := h.Registry.StorageInfo(ctx)
	if err != nil {
		return
	}
	h.Metrics.SetRecordCounts(info.Rates, info.Missions)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
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
