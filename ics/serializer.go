/*
Package ics renders missions as an iCalendar (RFC 5545) feed.

PURPOSE:
  Lets the worker subscribe to their missions from any calendar client.
  The output is byte-stable for a given input and clock: only DTSTAMP
  depends on the time of the export.

LAYOUT:
  VCALENDAR header, one VTIMEZONE block for the configured zone, then one
  VEVENT per exported mission. A blank line separates the timezone block
  from the events and each event from the next. Lines end with CRLF and
  are folded at 75 octets.

EVENTS:
  - UID: {missionId}-{epoch millis of the date at UTC midnight}@{domain}
  - Timed shifts: DTSTART/DTEND with TZID, times from the mission, then
    the rate, then defaults derived from the duration. A shift ending at
    or before its start time ends the next day.
  - Indemnities (zero-hour rates): all-day events, DTEND the next day.
  - SUMMARY: status glyph, rate acronym, establishment.
  - STATUS: CONFIRMED for confirmed missions, TENTATIVE otherwise.

FILTERING:
  Cancelled missions are never exported. With onlyFuture, missions dated
  before today (in the configured zone) are skipped and counted.

SEE ALSO:
  - timezone.go: VTIMEZONE table and its verification
  - escape.go: TEXT escaping and line folding
*/
package ics

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/warp/nurse-pay/generic"
	"github.com/warp/nurse-pay/logging"
	"github.com/warp/nurse-pay/payroll"
	"github.com/warp/nurse-pay/stats"
)

const crlf = "\r\n"

// Source is the read side of the record store the serializer needs.
type Source interface {
	ListRates(ctx context.Context) ([]payroll.Rate, error)
	ListMissions(ctx context.Context) ([]payroll.Mission, error)
}

// Options configures the calendar header and identifiers.
type Options struct {
	TimeZone     string // IANA id with a VTIMEZONE definition, e.g. "Europe/Paris"
	CalendarName string
	Description  string
	ProductID    string
	UIDDomain    string
	Clock        generic.Clock
	Logger       *logging.Logger
}

// DefaultOptions returns the options of a fresh installation.
func DefaultOptions() Options {
	return Options{
		TimeZone:     "Europe/Paris",
		CalendarName: "Nursing missions",
		Description:  "Planned and confirmed nursing missions",
		ProductID:    "-//Nurse Pay//Missions//EN",
		UIDDomain:    "nurse-pay",
	}
}

// Result is a rendered feed with its counters.
type Result struct {
	Content          string
	ExportedCount    int // events written
	TotalCount       int // missions considered, cancelled included
	SkippedPastCount int // non-cancelled missions dropped by onlyFuture
}

// Serializer renders missions as an iCalendar feed.
type Serializer struct {
	source Source
	opts   Options
	zone   Zone
	loc    *time.Location
	log    *logging.Logger
}

// NewSerializer creates a serializer for the configured zone. The static
// VTIMEZONE rules are checked against the IANA database for the current
// year and the next five; a mismatch is logged, not fatal.
func NewSerializer(source Source, opts Options) (*Serializer, error) {
	zone, ok := LookupZone(opts.TimeZone)
	if !ok {
		return nil, fmt.Errorf("no VTIMEZONE definition for %q", opts.TimeZone)
	}
	loc, err := time.LoadLocation(opts.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load location %s: %w", opts.TimeZone, err)
	}
	if opts.Clock == nil {
		opts.Clock = generic.SystemClock
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	log = log.WithComponent(logging.ComponentICS)

	year := opts.Clock().In(loc).Year()
	if err := zone.Verify(year, year+5); err != nil {
		log.Warn("VTIMEZONE rules disagree with the IANA database",
			logging.FieldTimezone, zone.ID, logging.FieldError, err)
	}

	return &Serializer{source: source, opts: opts, zone: zone, loc: loc, log: log}, nil
}

// Export reads the record store and renders the feed.
func (s *Serializer) Export(ctx context.Context, onlyFuture bool) (Result, error) {
	rates, err := s.source.ListRates(ctx)
	if err != nil {
		return Result{}, err
	}
	missions, err := s.source.ListMissions(ctx)
	if err != nil {
		return Result{}, err
	}
	res := s.Serialize(missions, rates, onlyFuture)
	s.log.InfoContext(ctx, "calendar exported",
		"exported", res.ExportedCount, "skipped_past", res.SkippedPastCount, "total", res.TotalCount)
	return res, nil
}

// Serialize renders the given missions. Missions whose rate cannot be
// resolved are left out.
func (s *Serializer) Serialize(missions []payroll.Mission, rates []payroll.Rate, onlyFuture bool) Result {
	now := s.opts.Clock()
	today := generic.DayOf(now.In(s.loc))
	idx := payroll.IndexRates(rates)

	res := Result{TotalCount: len(missions)}

	type entry struct {
		mission payroll.Mission
		day     generic.TimePoint
	}
	var selected []entry
	for _, m := range missions {
		if !m.Counts() {
			continue
		}
		day, err := m.Day()
		if err != nil {
			continue
		}
		if onlyFuture && day.Before(today) {
			res.SkippedPastCount++
			continue
		}
		selected = append(selected, entry{mission: m, day: day})
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].day.Before(selected[j].day)
	})

	var b strings.Builder
	writeLines(&b, s.header())
	writeLines(&b, s.zone.Lines())

	stamp := now.UTC().Format("20060102T150405Z")
	for _, e := range selected {
		rate := idx.Lookup(e.mission.RateID)
		if rate == nil {
			continue
		}
		b.WriteString(crlf)
		writeLines(&b, s.event(e.mission, *rate, e.day, stamp))
		res.ExportedCount++
	}

	b.WriteString(crlf)
	b.WriteString("END:VCALENDAR" + crlf)
	res.Content = b.String()
	return res
}

func (s *Serializer) header() []string {
	return []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + s.opts.ProductID,
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"X-WR-CALNAME:" + EscapeText(s.opts.CalendarName),
		"X-WR-TIMEZONE:" + s.zone.ID,
		"X-WR-CALDESC:" + EscapeText(s.opts.Description),
	}
}

func writeLines(b *strings.Builder, lines []string) {
	for _, l := range lines {
		b.WriteString(FoldLine(l))
		b.WriteString(crlf)
	}
}

// =============================================================================
// EVENTS
// =============================================================================

func (s *Serializer) event(m payroll.Mission, r payroll.Rate, day generic.TimePoint, stamp string) []string {
	lines := []string{
		"BEGIN:VEVENT",
		fmt.Sprintf("UID:%s-%d@%s", m.ID, day.UnixMilli(), s.opts.UIDDomain),
		"DTSTAMP:" + stamp,
	}

	if r.IsIndemnity() {
		lines = append(lines,
			"DTSTART;VALUE=DATE:"+day.Time.Format("20060102"),
			"DTEND;VALUE=DATE:"+day.AddDays(1).Time.Format("20060102"),
		)
	} else {
		start, end := Schedule(m, r)
		endDay := day
		if end <= start {
			endDay = day.AddDays(1)
		}
		lines = append(lines,
			fmt.Sprintf("DTSTART;TZID=%s:%s", s.zone.ID, wallTime(day, start)),
			fmt.Sprintf("DTEND;TZID=%s:%s", s.zone.ID, wallTime(endDay, end)),
		)
	}

	establishment := payroll.EstablishmentFor(m, &r)
	lines = append(lines,
		"SUMMARY:"+EscapeText(Glyph(m.Status)+r.Acronym+" - "+establishment),
		"DESCRIPTION:"+EscapeText(strings.Join(describe(m, r), "\n")),
	)
	if establishment != payroll.UnspecifiedEstablishment {
		lines = append(lines, "LOCATION:"+EscapeText(establishment))
	}

	status := "TENTATIVE"
	if m.Status == payroll.StatusConfirmed {
		status = "CONFIRMED"
	}
	return append(lines,
		"STATUS:"+status,
		"TRANSP:OPAQUE",
		"END:VEVENT",
	)
}

// Glyph returns the summary prefix of a status.
func Glyph(status payroll.Status) string {
	switch status {
	case payroll.StatusConfirmed:
		return "✅ "
	case payroll.StatusCompleted:
		return "✔️ "
	case payroll.StatusPlanned:
		return "❓ "
	}
	return ""
}

func describe(m payroll.Mission, r payroll.Rate) []string {
	lines := []string{"Type: " + r.Acronym}
	if r.Description != "" {
		lines = append(lines, "Description: "+r.Description)
	}
	if m.Establishment != "" {
		lines = append(lines, "Establishment: "+m.Establishment)
	}
	if m.Service != "" {
		lines = append(lines, "Service: "+m.Service)
	}
	lines = append(lines, "Duration: "+formatNumber(r.Hours)+"h")

	if !r.ExcludeFromCount {
		switch {
		case r.Salary > 0:
			lines = append(lines, "Salary: "+formatNumber(r.Salary)+"€")
		case r.HourlyRate > 0:
			lines = append(lines,
				"Hourly rate: "+formatNumber(r.HourlyRate)+"€/h",
				"Estimated salary: "+stats.EstimatedSalary(r).StringFixed(generic.CurrencyPlaces)+"€",
			)
		}
	}

	if m.Notes != "" {
		lines = append(lines, "Notes: "+m.Notes)
	}
	return append(lines, "Status: "+m.Status.Label())
}

// =============================================================================
// SCHEDULE
// =============================================================================

// Default start times by shift length.
var (
	DefaultStart     = generic.NewTimeOfDay(8, 0)
	LongShiftStart   = generic.NewTimeOfDay(7, 30)
	LongShiftMinimum = 12.0
)

// Schedule returns the start and end time of a timed mission: the
// mission's own times, else the rate's, else a default start with the end
// derived from the rate's duration (wrapping past midnight).
func Schedule(m payroll.Mission, r payroll.Rate) (start, end generic.TimeOfDay) {
	start, okStart := firstTime(m.StartTime, r.StartTime)
	end, okEnd := firstTime(m.EndTime, r.EndTime)

	if !okStart {
		start = DefaultStart
		if r.Hours >= LongShiftMinimum {
			start = LongShiftStart
		}
	}
	if !okEnd {
		end, _ = start.Add(int(r.Hours * 60))
	}
	return start, end
}

func firstTime(values ...string) (generic.TimeOfDay, bool) {
	for _, v := range values {
		if v == "" {
			continue
		}
		if t, err := generic.ParseTimeOfDay(v); err == nil {
			return t, true
		}
	}
	return 0, false
}

func wallTime(day generic.TimePoint, t generic.TimeOfDay) string {
	return fmt.Sprintf("%sT%02d%02d00", day.Time.Format("20060102"), t.Hour(), t.Minute())
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
