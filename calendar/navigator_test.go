package calendar_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/nurse-pay/calendar"
	"github.com/warp/nurse-pay/generic"
	"github.com/warp/nurse-pay/payroll"
)

func newTestNavigator() *calendar.Navigator {
	return calendar.NewNavigator(fixedClock(2024, time.March, 15), time.UTC, "en_US")
}

func TestNavigator_StartsOnCurrentMonth(t *testing.T) {
	nav := newTestNavigator()

	info := nav.Describe(calendar.ViewPlanning)
	assert.Equal(t, 2024, info.Year)
	assert.Equal(t, generic.MonthIndex(2), info.Month)
	assert.Equal(t, "March 2024", info.Label)
	assert.True(t, info.IsCurrentMonth)
}

func TestNavigator_NextWrapsIntoJanuary(t *testing.T) {
	// GIVEN: Planning cursor on December 2024
	nav := newTestNavigator()
	nav.GoTo(calendar.ViewPlanning, 2024, 11)

	// WHEN: next()
	info := nav.Next(calendar.ViewPlanning)

	// THEN: January 2025, not the current month
	assert.Equal(t, 2025, info.Year)
	assert.Equal(t, generic.MonthIndex(0), info.Month)
	assert.False(t, info.IsCurrentMonth)
}

func TestNavigator_PreviousWrapsIntoDecember(t *testing.T) {
	nav := newTestNavigator()
	nav.GoTo(calendar.ViewDashboard, 2024, 0)

	info := nav.Previous(calendar.ViewDashboard)
	assert.Equal(t, 2023, info.Year)
	assert.Equal(t, generic.MonthIndex(11), info.Month)
	assert.Equal(t, "December 2023", info.Label)
}

func TestNavigator_NextThenPreviousIsIdentity(t *testing.T) {
	nav := newTestNavigator()
	for m := generic.MonthIndex(0); m < 12; m++ {
		nav.GoTo(calendar.ViewPlanning, 2024, m)

		nav.Next(calendar.ViewPlanning)
		back := nav.Previous(calendar.ViewPlanning)
		assert.Equal(t, generic.YearMonth{Year: 2024, Month: m}, generic.YearMonth{Year: back.Year, Month: back.Month})
	}
}

func TestNavigator_CursorsAreIndependent(t *testing.T) {
	// GIVEN: Both cursors on March 2024
	nav := newTestNavigator()

	// WHEN: Planning moves forward twice
	nav.Next(calendar.ViewPlanning)
	nav.Next(calendar.ViewPlanning)

	// THEN: Dashboard has not moved
	assert.Equal(t, generic.YearMonth{Year: 2024, Month: 4}, nav.Current(calendar.ViewPlanning))
	assert.Equal(t, generic.YearMonth{Year: 2024, Month: 2}, nav.Current(calendar.ViewDashboard))
}

func TestNavigator_ResetToToday(t *testing.T) {
	nav := newTestNavigator()
	nav.GoTo(calendar.ViewPlanning, 2019, 6)

	info := nav.ResetToToday(calendar.ViewPlanning)
	assert.Equal(t, 2024, info.Year)
	assert.True(t, info.IsCurrentMonth)
}

func TestNavigator_GoToWrapsOutOfRangeMonths(t *testing.T) {
	tests := []struct {
		name  string
		month generic.MonthIndex
		year  int
		want  generic.MonthIndex
		label string
	}{
		{"month 12 is January of the next year", 12, 2025, 0, "January 2025"},
		{"month -1 is December of the previous year", -1, 2023, 11, "December 2023"},
		{"month 25 is February two years on", 25, 2026, 1, "February 2026"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nav := newTestNavigator()

			info := nav.GoTo(calendar.ViewPlanning, 2024, tt.month)

			assert.Equal(t, tt.year, info.Year)
			assert.Equal(t, tt.want, info.Month)
			assert.Equal(t, tt.label, info.Label)
			assert.Equal(t, generic.YearMonth{Year: tt.year, Month: tt.want}, nav.Current(calendar.ViewPlanning))
		})
	}
}

func TestNavigator_IsCurrentMonthFollowsTheClock(t *testing.T) {
	// GIVEN: A clock that moves from March into April
	now := time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC)
	nav := calendar.NewNavigator(func() time.Time { return now }, time.UTC, "en_US")
	require.True(t, nav.Describe(calendar.ViewPlanning).IsCurrentMonth)

	// WHEN: A day passes
	now = now.Add(24 * time.Hour)

	// THEN: The cursor still shows March, which is no longer current
	info := nav.Describe(calendar.ViewPlanning)
	assert.Equal(t, generic.MonthIndex(2), info.Month)
	assert.False(t, info.IsCurrentMonth)
}

func TestParseView(t *testing.T) {
	v, err := calendar.ParseView("dashboard")
	require.NoError(t, err)
	assert.Equal(t, calendar.ViewDashboard, v)

	_, err = calendar.ParseView("agenda")
	assert.Error(t, err)
}

// =============================================================================
// YEARLY CURSOR
// =============================================================================

func TestNavigator_YearBounds(t *testing.T) {
	// GIVEN: Current year 2024, earliest mission in 2022
	nav := newTestNavigator()
	missions := []payroll.Mission{{Date: "2023-05-01"}, {Date: "2022-11-30"}, {Date: "not a date"}}
	earliest := calendar.EarliestYear(missions, 2024)
	require.Equal(t, 2022, earliest)

	// THEN: Cannot go past the current year
	year, moved := nav.NextYear()
	assert.False(t, moved)
	assert.Equal(t, 2024, year)

	// THEN: Can go back to 2022, not beyond
	nav.PreviousYear(earliest)
	year, moved = nav.PreviousYear(earliest)
	assert.True(t, moved)
	assert.Equal(t, 2022, year)
	_, moved = nav.PreviousYear(earliest)
	assert.False(t, moved)

	// THEN: SetYear jumps anywhere
	assert.Equal(t, 2010, nav.SetYear(2010))
	assert.Equal(t, 2010, nav.Year())
}

func TestEarliestYear_NoMissions(t *testing.T) {
	assert.Equal(t, 2024, calendar.EarliestYear(nil, 2024))
}
