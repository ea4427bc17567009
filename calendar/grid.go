// Package calendar builds month grids and tracks which month each view shows.
package calendar

import (
	"context"
	"time"

	"github.com/warp/nurse-pay/generic"
	"github.com/warp/nurse-pay/payroll"
)

// MissionSource is the read side of the record store the grid needs.
type MissionSource interface {
	ListMissions(ctx context.Context) ([]payroll.Mission, error)
}

// Day is one cell of a month grid.
type Day struct {
	Date           generic.TimePoint
	Key            string // "YYYY-MM-DD"
	DayNumber      int
	IsCurrentMonth bool
	IsToday        bool
	Missions       []payroll.Mission
	HasMission     bool
}

// Grid builds week-aligned month grids.
type Grid struct {
	source MissionSource
	clock  generic.Clock
	loc    *time.Location
}

// NewGrid creates a grid builder. "Today" is evaluated with clock in loc.
func NewGrid(source MissionSource, clock generic.Clock, loc *time.Location) *Grid {
	if clock == nil {
		clock = generic.SystemClock
	}
	if loc == nil {
		loc = time.Local
	}
	return &Grid{source: source, clock: clock, loc: loc}
}

// BuildMonth returns the grid of a month, from the Monday on or before the
// 1st to the Sunday on or after the last day.
func (g *Grid) BuildMonth(ctx context.Context, year int, month generic.MonthIndex) ([]Day, error) {
	missions, err := g.source.ListMissions(ctx)
	if err != nil {
		return nil, err
	}
	return BuildMonth(missions, year, month, generic.Today(g.clock, g.loc)), nil
}

// BuildMonth lays out the grid of a month over the given missions. Every
// mission on a day appears in its cell, cancelled ones included.
func BuildMonth(missions []payroll.Mission, year int, month generic.MonthIndex, today generic.TimePoint) []Day {
	byDate := make(map[string][]payroll.Mission)
	for _, m := range missions {
		key := m.DateKey()
		byDate[key] = append(byDate[key], m)
	}

	ym := generic.YearMonth{Year: year, Month: month}.Normalize()
	span := generic.MonthPeriod(ym.Year, ym.Month).WeekAligned()
	days := span.Days()
	grid := make([]Day, 0, len(days))
	for _, d := range days {
		key := d.Key()
		cell := Day{
			Date:           d,
			Key:            key,
			DayNumber:      d.Day(),
			IsCurrentMonth: d.Year() == ym.Year && d.Month() == ym.Month.Month(),
			IsToday:        d.Equal(today),
			Missions:       append([]payroll.Mission{}, byDate[key]...),
		}
		cell.HasMission = len(cell.Missions) > 0
		grid = append(grid, cell)
	}
	return grid
}

// Weeks splits a grid into rows of seven days.
func Weeks(grid []Day) [][]Day {
	var weeks [][]Day
	for i := 0; i+7 <= len(grid); i += 7 {
		weeks = append(weeks, grid[i:i+7])
	}
	return weeks
}
