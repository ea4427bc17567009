package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/warp/nurse-pay/calendar"
	"github.com/warp/nurse-pay/generic"
	"github.com/warp/nurse-pay/report"
	"github.com/warp/nurse-pay/stats"
)

// =============================================================================
// STATS ENDPOINTS
// =============================================================================

// GetMonthlyStats aggregates one month.
// GET /api/stats/monthly?year=2024&month=2
func (h *Handler) GetMonthlyStats(w http.ResponseWriter, r *http.Request) {
	year, month, err := h.yearMonthFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}
	s, err := h.Stats.MonthlyStats(r.Context(), year, month)
	if err != nil {
		h.fail(w, r, "Failed to compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthlyStatsDTO(s))
}

// GetYearOverview aggregates every month of a year.
// GET /api/stats/year?year=2024
func (h *Handler) GetYearOverview(w http.ResponseWriter, r *http.Request) {
	year, _, err := h.yearMonthFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}
	o, err := h.Stats.YearOverview(r.Context(), year)
	if err != nil {
		h.fail(w, r, "Failed to compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, toYearOverviewDTO(o))
}

// GetEstablishmentStats breaks a month (with ?month) or a year down by
// establishment.
// GET /api/stats/establishments?year=2024[&month=2]
func (h *Handler) GetEstablishmentStats(w http.ResponseWriter, r *http.Request) {
	year, month, err := h.yearMonthFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}
	scope := stats.YearScope(year)
	if r.URL.Query().Get("month") != "" {
		scope = stats.MonthScope(year, month)
	}
	rep, err := h.Stats.EstablishmentStats(r.Context(), scope)
	if err != nil {
		h.fail(w, r, "Failed to compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, toEstablishmentReportDTO(rep))
}

// =============================================================================
// CALENDAR ENDPOINTS
// =============================================================================

// GetMonthGrid returns the Monday-first grid of a month.
// GET /api/calendar/grid?year=2024&month=2
func (h *Handler) GetMonthGrid(w http.ResponseWriter, r *http.Request) {
	year, month, err := h.yearMonthFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}
	days, err := h.Grid.BuildMonth(r.Context(), year, month)
	if err != nil {
		h.fail(w, r, "Failed to build calendar", err)
		return
	}
	label := h.Navigator.Label(generic.YearMonth{Year: year, Month: month})
	writeJSON(w, http.StatusOK, toGridDTO(year, int(month), label, days))
}

// GetView describes the month a view shows.
// GET /api/calendar/views/{view}
func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	view, ok := viewParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.Navigator.Describe(view))
}

// MoveView steps a view cursor: previous, next or today.
// POST /api/calendar/views/{view}/{step}
func (h *Handler) MoveView(w http.ResponseWriter, r *http.Request) {
	view, ok := viewParam(w, r)
	if !ok {
		return
	}
	var info calendar.ViewInfo
	switch step := chi.URLParam(r, "step"); step {
	case "previous":
		info = h.Navigator.Previous(view)
	case "next":
		info = h.Navigator.Next(view)
	case "today":
		info = h.Navigator.ResetToToday(view)
	default:
		writeError(w, http.StatusNotFound, "Unknown step", fmt.Errorf("step %q is not previous, next or today", step))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// GoToMonth moves a view cursor to the month in the body.
// PUT /api/calendar/views/{view}
func (h *Handler) GoToMonth(w http.ResponseWriter, r *http.Request) {
	view, ok := viewParam(w, r)
	if !ok {
		return
	}
	var req GoToRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.Navigator.GoTo(view, req.Year, generic.MonthIndex(req.Month)))
}

// MoveYear steps the yearly summary cursor, bounded by the earliest
// mission year and the current year.
// POST /api/calendar/year/{step}
func (h *Handler) MoveYear(w http.ResponseWriter, r *http.Request) {
	var (
		year  int
		moved bool
	)
	switch step := chi.URLParam(r, "step"); step {
	case "previous":
		missions, err := h.Registry.ListMissions(r.Context())
		if err != nil {
			h.fail(w, r, "Failed to list missions", err)
			return
		}
		year, moved = h.Navigator.PreviousYear(calendar.EarliestYear(missions, h.Registry.Today().Year()))
	case "next":
		year, moved = h.Navigator.NextYear()
	default:
		writeError(w, http.StatusNotFound, "Unknown step", fmt.Errorf("step %q is not previous or next", step))
		return
	}
	writeJSON(w, http.StatusOK, YearCursorDTO{Year: year, Moved: moved})
}

// GetYear returns the year shown by the yearly summary.
// GET /api/calendar/year
func (h *Handler) GetYear(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, YearCursorDTO{Year: h.Navigator.Year()})
}

func viewParam(w http.ResponseWriter, r *http.Request) (calendar.View, bool) {
	view, err := calendar.ParseView(chi.URLParam(r, "view"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Unknown view", err)
		return "", false
	}
	return view, true
}

// =============================================================================
// REPORT ENDPOINTS
// =============================================================================

// GetMonthlyReport returns the full report of a month.
// GET /api/reports/monthly?year=2024&month=2
func (h *Handler) GetMonthlyReport(w http.ResponseWriter, r *http.Request) {
	year, month, err := h.yearMonthFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}
	rep, err := h.Reports.Monthly(r.Context(), year, month)
	if err != nil {
		h.fail(w, r, "Failed to build report", err)
		return
	}
	writeJSON(w, http.StatusOK, MonthlyReportDTO{MonthlyReport: rep, Stats: toMonthlyStatsDTO(rep.Stats)})
}

// GetUpcoming lists the missions of the next ?days (default 7).
// GET /api/reports/upcoming?days=7
func (h *Handler) GetUpcoming(w http.ResponseWriter, r *http.Request) {
	days := report.DefaultUpcomingDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid days", fmt.Errorf("days must be a positive number, got %q", v))
			return
		}
		days = n
	}
	upcoming, err := h.Reports.Upcoming(r.Context(), days)
	if err != nil {
		h.fail(w, r, "Failed to list upcoming missions", err)
		return
	}
	writeJSON(w, http.StatusOK, UpcomingResponse{Days: days, Missions: upcoming})
}

// =============================================================================
// EXPORT ENDPOINTS
// =============================================================================

// ExportICS renders the iCalendar feed. ?onlyFuture=false includes past
// missions. Counters are returned in X-* headers.
// GET /api/export/ics
func (h *Handler) ExportICS(w http.ResponseWriter, r *http.Request) {
	onlyFuture := true
	if v := r.URL.Query().Get("onlyFuture"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid onlyFuture", err)
			return
		}
		onlyFuture = b
	}

	res, err := h.Calendar.Export(r.Context(), onlyFuture)
	if err != nil {
		h.fail(w, r, "Failed to export calendar", err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.ObserveICSExport(res.ExportedCount)
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="missions.ics"`)
	w.Header().Set("X-Exported-Count", strconv.Itoa(res.ExportedCount))
	w.Header().Set("X-Skipped-Past-Count", strconv.Itoa(res.SkippedPastCount))
	w.Header().Set("X-Total-Count", strconv.Itoa(res.TotalCount))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(res.Content))
}

// ExportCSV renders the missions of a month as CSV.
// GET /api/export/csv?year=2024&month=2
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	year, month, err := h.yearMonthFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}
	content, err := h.Reports.ExportCSV(r.Context(), year, month)
	if err != nil {
		h.fail(w, r, "Failed to export missions", err)
		return
	}
	ym := generic.YearMonth{Year: year, Month: month}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="missions-%s.csv"`, ym))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(content))
}
