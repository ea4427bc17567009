package ics_test

import (
	"context"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/nurse-pay/ics"
	"github.com/warp/nurse-pay/payroll"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type records struct {
	rates    []payroll.Rate
	missions []payroll.Mission
}

func (r records) ListRates(context.Context) ([]payroll.Rate, error)       { return r.rates, nil }
func (r records) ListMissions(context.Context) ([]payroll.Mission, error) { return r.missions, nil }

// 2024-03-15 10:00 in Paris
var exportTime = time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)

func newTestSerializer(t *testing.T, src ics.Source) *ics.Serializer {
	t.Helper()
	opts := ics.DefaultOptions()
	opts.Clock = func() time.Time { return exportTime }
	s, err := ics.NewSerializer(src, opts)
	require.NoError(t, err)
	return s
}

// parseFeed drops the blank separator lines and parses the feed.
func parseFeed(t *testing.T, content string) *ical.Calendar {
	t.Helper()
	var kept []string
	for _, l := range strings.Split(content, "\r\n") {
		if l != "" {
			kept = append(kept, l)
		}
	}
	cal, err := ical.ParseCalendar(strings.NewReader(strings.Join(kept, "\r\n") + "\r\n"))
	require.NoError(t, err)
	return cal
}

func urgC7() payroll.Rate {
	return payroll.Rate{ID: "R", Acronym: "Urg C7", Description: "Urgences coupe de 7h",
		Establishment: "Clinique A", Hours: 7, Salary: 102.33}
}

// =============================================================================
// FILTERING & COUNTERS
// =============================================================================

func TestSerialize_OnlyFutureSkipsPastAndCancelled(t *testing.T) {
	// GIVEN: Today 2024-03-15; missions on 03-14, 03-15 (confirmed),
	//        03-16 (cancelled), 03-17 (planned)
	rate := urgC7()
	missions := []payroll.Mission{
		{ID: "a", Date: "2024-03-14", RateID: "R", Status: payroll.StatusPlanned},
		{ID: "b", Date: "2024-03-15", RateID: "R", Status: payroll.StatusConfirmed},
		{ID: "c", Date: "2024-03-16", RateID: "R", Status: payroll.StatusCancelled},
		{ID: "d", Date: "2024-03-17", RateID: "R", Status: payroll.StatusPlanned},
	}
	s := newTestSerializer(t, records{})

	// WHEN: Serializing with onlyFuture
	res := s.Serialize(missions, []payroll.Rate{rate}, true)

	// THEN: 2 exported, 1 skipped past, 4 total
	assert.Equal(t, 2, res.ExportedCount)
	assert.Equal(t, 1, res.SkippedPastCount)
	assert.Equal(t, 4, res.TotalCount)

	cal := parseFeed(t, res.Content)
	events := cal.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "b-1710460800000@nurse-pay", events[0].GetProperty(ical.ComponentPropertyUniqueId).Value)
	assert.Equal(t, "d-1710633600000@nurse-pay", events[1].GetProperty(ical.ComponentPropertyUniqueId).Value)

	assert.Contains(t, res.Content, "STATUS:CONFIRMED\r\n")
	assert.Contains(t, res.Content, "STATUS:TENTATIVE\r\n")
}

func TestSerialize_AllMissionsWithoutOnlyFuture(t *testing.T) {
	missions := []payroll.Mission{
		{ID: "late", Date: "2024-03-20", RateID: "R", Status: payroll.StatusPlanned},
		{ID: "early", Date: "2023-01-02", RateID: "R", Status: payroll.StatusCompleted},
		{ID: "dangling", Date: "2024-03-21", RateID: "gone", Status: payroll.StatusPlanned},
	}

	res := newTestSerializer(t, records{}).Serialize(missions, []payroll.Rate{urgC7()}, false)

	assert.Equal(t, 2, res.ExportedCount)
	assert.Equal(t, 0, res.SkippedPastCount)
	assert.Equal(t, 3, res.TotalCount)

	// Events are sorted by date
	assert.Less(t, strings.Index(res.Content, "UID:early-"), strings.Index(res.Content, "UID:late-"))
}

func TestExport_ReadsTheStore(t *testing.T) {
	src := records{
		rates:    []payroll.Rate{urgC7()},
		missions: []payroll.Mission{{ID: "b", Date: "2024-03-15", RateID: "R", Status: payroll.StatusConfirmed}},
	}

	res, err := newTestSerializer(t, src).Export(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExportedCount)
}

// =============================================================================
// LAYOUT
// =============================================================================

func TestSerialize_LayoutAndLineEndings(t *testing.T) {
	missions := []payroll.Mission{
		{ID: "b", Date: "2024-03-15", RateID: "R", Status: payroll.StatusConfirmed},
		{ID: "d", Date: "2024-03-17", RateID: "R", Status: payroll.StatusPlanned},
	}
	res := newTestSerializer(t, records{}).Serialize(missions, []payroll.Rate{urgC7()}, false)

	// Every LF is part of a CRLF
	assert.Equal(t, strings.Count(res.Content, "\n"), strings.Count(res.Content, "\r\n"))

	assert.True(t, strings.HasPrefix(res.Content, "BEGIN:VCALENDAR\r\nVERSION:2.0\r\n"))
	assert.True(t, strings.HasSuffix(res.Content, "END:VEVENT\r\n\r\nEND:VCALENDAR\r\n"))
	assert.Contains(t, res.Content, "END:VTIMEZONE\r\n\r\nBEGIN:VEVENT\r\n")
	assert.Contains(t, res.Content, "END:VEVENT\r\n\r\nBEGIN:VEVENT\r\n")

	assert.Contains(t, res.Content, "X-WR-TIMEZONE:Europe/Paris\r\n")
	assert.Contains(t, res.Content, "TZID:Europe/Paris\r\n")
	assert.Contains(t, res.Content, "RRULE:FREQ=YEARLY;BYMONTH=3;BYDAY=-1SU\r\n")
	assert.Contains(t, res.Content, "DTSTAMP:20240315T090000Z\r\n")
}

func TestSerialize_IsDeterministic(t *testing.T) {
	missions := []payroll.Mission{
		{ID: "b", Date: "2024-03-15", RateID: "R", Status: payroll.StatusConfirmed, Notes: "bring badge"},
		{ID: "a", Date: "2024-03-15", RateID: "R", Status: payroll.StatusPlanned},
	}
	s := newTestSerializer(t, records{})
	rates := []payroll.Rate{urgC7()}

	first := s.Serialize(missions, rates, false)
	second := s.Serialize(missions, rates, false)

	assert.Equal(t, first.Content, second.Content)
	// Same-day missions keep their input order
	assert.Less(t, strings.Index(first.Content, "UID:b-"), strings.Index(first.Content, "UID:a-"))
}

func TestSerialize_EmptyCalendar(t *testing.T) {
	res := newTestSerializer(t, records{}).Serialize(nil, nil, true)

	assert.Equal(t, 0, res.ExportedCount)
	assert.True(t, strings.HasSuffix(res.Content, "END:VTIMEZONE\r\n\r\nEND:VCALENDAR\r\n"))
	cal := parseFeed(t, res.Content)
	assert.Empty(t, cal.Events())
}

// =============================================================================
// EVENT CONTENT
// =============================================================================

func TestSerialize_TimedShiftUsesDefaultTimes(t *testing.T) {
	missions := []payroll.Mission{{ID: "b", Date: "2024-03-15", RateID: "R", Status: payroll.StatusConfirmed}}

	res := newTestSerializer(t, records{}).Serialize(missions, []payroll.Rate{urgC7()}, false)

	assert.Contains(t, res.Content, "DTSTART;TZID=Europe/Paris:20240315T080000\r\n")
	assert.Contains(t, res.Content, "DTEND;TZID=Europe/Paris:20240315T150000\r\n")

	ev := parseFeed(t, res.Content).Events()[0]
	assert.Equal(t, "✅ Urg C7 - Clinique A", ev.GetProperty(ical.ComponentPropertySummary).Value)
	assert.Equal(t, "Clinique A", ev.GetProperty(ical.ComponentPropertyLocation).Value)
	assert.Equal(t, []string{"Europe/Paris"},
		ev.GetProperty(ical.ComponentPropertyDtStart).ICalParameters["TZID"])
}

func TestSerialize_IndemnityIsAllDay(t *testing.T) {
	rate := payroll.Rate{ID: "A", Acronym: "Astreinte", Hours: 0, Salary: 75.5}
	missions := []payroll.Mission{{ID: "x", Date: "2024-03-31", RateID: "A", Status: payroll.StatusPlanned}}

	res := newTestSerializer(t, records{}).Serialize(missions, []payroll.Rate{rate}, false)

	assert.Contains(t, res.Content, "DTSTART;VALUE=DATE:20240331\r\n")
	assert.Contains(t, res.Content, "DTEND;VALUE=DATE:20240401\r\n")
	assert.Contains(t, res.Content, "SUMMARY:❓ Astreinte - Unspecified\r\n")
	assert.NotContains(t, res.Content, "\r\nLOCATION:")
	assert.Contains(t, res.Content, "X-LIC-LOCATION:Europe/Paris\r\n")
}

func TestSerialize_OvernightShiftEndsNextDay(t *testing.T) {
	rate := payroll.Rate{ID: "N", Acronym: "Nuit", Hours: 10, Salary: 180, StartTime: "21:00", EndTime: "07:00"}
	missions := []payroll.Mission{{ID: "n", Date: "2024-03-15", RateID: "N", Status: payroll.StatusConfirmed}}

	res := newTestSerializer(t, records{}).Serialize(missions, []payroll.Rate{rate}, false)

	assert.Contains(t, res.Content, "DTSTART;TZID=Europe/Paris:20240315T210000\r\n")
	assert.Contains(t, res.Content, "DTEND;TZID=Europe/Paris:20240316T070000\r\n")
}

func TestSerialize_DescriptionIsEscaped(t *testing.T) {
	rate := urgC7()
	m := payroll.Mission{ID: "b", Date: "2024-03-15", RateID: "R", Status: payroll.StatusCompleted,
		Establishment: "CHU; Rennes, Sud", Service: "Urgences", Notes: "line1\r\nline2 \\ end"}

	res := newTestSerializer(t, records{}).Serialize([]payroll.Mission{m}, []payroll.Rate{rate}, false)

	assert.Contains(t, res.Content, `SUMMARY:✔️ Urg C7 - CHU\; Rennes\, Sud`)
	assert.Contains(t, res.Content, `LOCATION:CHU\; Rennes\, Sud`)

	desc := unfold(res.Content)
	assert.Contains(t, desc, `DESCRIPTION:Type: Urg C7\nDescription: Urgences coupe de 7h\nEstablishment: CHU\; Rennes\, Sud\nService: Urgences\nDuration: 7h\nSalary: 102.33€\nNotes: line1\nline2 \\ end\nStatus: Completed`)
}

func TestSerialize_ExcludedRateHasNoPayInDescription(t *testing.T) {
	rate := payroll.Rate{ID: "X", Acronym: "Garde", Hours: 12, HourlyRate: 5, ExcludeFromCount: true}
	m := payroll.Mission{ID: "x", Date: "2024-03-15", RateID: "X", Status: payroll.StatusPlanned}

	res := newTestSerializer(t, records{}).Serialize([]payroll.Mission{m}, []payroll.Rate{rate}, false)

	assert.NotContains(t, unfold(res.Content), "Salary")
	assert.NotContains(t, unfold(res.Content), "Hourly rate")
	// 12h shift starts at 07:30 and ends 12h later
	assert.Contains(t, res.Content, "DTSTART;TZID=Europe/Paris:20240315T073000\r\n")
	assert.Contains(t, res.Content, "DTEND;TZID=Europe/Paris:20240315T193000\r\n")
}

func TestSerialize_HourlyRateDescription(t *testing.T) {
	rate := payroll.Rate{ID: "H", Acronym: "Vac", Hours: 7.5, HourlyRate: 15}
	m := payroll.Mission{ID: "h", Date: "2024-03-15", RateID: "H", Status: payroll.StatusPlanned}

	res := newTestSerializer(t, records{}).Serialize([]payroll.Mission{m}, []payroll.Rate{rate}, false)

	assert.Contains(t, unfold(res.Content), `Hourly rate: 15€/h\nEstimated salary: 112.50€`)
}

func TestSerialize_LongLinesAreFolded(t *testing.T) {
	m := payroll.Mission{ID: "b", Date: "2024-03-15", RateID: "R", Status: payroll.StatusPlanned,
		Notes: strings.Repeat("é", 120)}

	res := newTestSerializer(t, records{}).Serialize([]payroll.Mission{m}, []payroll.Rate{urgC7()}, false)

	for _, line := range strings.Split(res.Content, "\r\n") {
		assert.LessOrEqual(t, len(line), 75, line)
	}
	assert.Contains(t, unfold(res.Content), "Notes: "+strings.Repeat("é", 120))
}

// =============================================================================
// SCHEDULE
// =============================================================================

func TestSchedule(t *testing.T) {
	tests := []struct {
		name       string
		mission    payroll.Mission
		rate       payroll.Rate
		start, end string
	}{
		{"short shift defaults to 08:00", payroll.Mission{}, payroll.Rate{Hours: 7}, "08:00", "15:00"},
		{"ten hours defaults to 08:00", payroll.Mission{}, payroll.Rate{Hours: 10}, "08:00", "18:00"},
		{"eleven hours defaults to 08:00", payroll.Mission{}, payroll.Rate{Hours: 11}, "08:00", "19:00"},
		{"twelve and a half hours starts 07:30", payroll.Mission{}, payroll.Rate{Hours: 12.5}, "07:30", "20:00"},
		{"rate times", payroll.Mission{}, payroll.Rate{Hours: 7, StartTime: "13:00", EndTime: "20:00"}, "13:00", "20:00"},
		{"mission times win", payroll.Mission{StartTime: "06:45", EndTime: "14:00"},
			payroll.Rate{Hours: 7, StartTime: "13:00", EndTime: "20:00"}, "06:45", "14:00"},
		{"end wraps past midnight", payroll.Mission{StartTime: "20:00"}, payroll.Rate{Hours: 10}, "20:00", "06:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := ics.Schedule(tt.mission, tt.rate)
			assert.Equal(t, tt.start, start.String())
			assert.Equal(t, tt.end, end.String())
		})
	}
}

func TestNewSerializer_UnknownZone(t *testing.T) {
	opts := ics.DefaultOptions()
	opts.TimeZone = "Mars/Olympus"
	_, err := ics.NewSerializer(records{}, opts)
	assert.Error(t, err)
}

func TestGlyph(t *testing.T) {
	assert.Equal(t, "✅ ", ics.Glyph(payroll.StatusConfirmed))
	assert.Equal(t, "❓ ", ics.Glyph(payroll.StatusPlanned))
	assert.Equal(t, "✔️ ", ics.Glyph(payroll.StatusCompleted))
	assert.Equal(t, "", ics.Glyph(payroll.StatusCancelled))
}

// unfold joins folded continuation lines.
func unfold(content string) string {
	return strings.ReplaceAll(content, "\r\n ", "")
}
