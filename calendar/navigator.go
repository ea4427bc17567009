package calendar

import (
	"fmt"
	"sync"
	"time"

	"github.com/goodsign/monday"
	"github.com/warp/nurse-pay/generic"
	"github.com/warp/nurse-pay/payroll"
)

// View names a screen that keeps its own month cursor.
type View string

const (
	ViewPlanning  View = "planning"
	ViewDashboard View = "dashboard"
)

// ViewInfo describes the month a view is showing.
type ViewInfo struct {
	View           View               `json:"view"`
	Year           int                `json:"year"`
	Month          generic.MonthIndex `json:"month"`
	Label          string             `json:"label"`
	IsCurrentMonth bool               `json:"isCurrentMonth"`
}

// Navigator holds one month cursor per view plus the year shown by the
// yearly summary. State lives in memory only and starts on the current
// month.
type Navigator struct {
	mu      sync.Mutex
	cursors map[View]generic.YearMonth
	year    int
	clock   generic.Clock
	loc     *time.Location
	locale  monday.Locale
}

// NewNavigator creates a navigator whose cursors start on the current month.
func NewNavigator(clock generic.Clock, loc *time.Location, locale string) *Navigator {
	if clock == nil {
		clock = generic.SystemClock
	}
	if loc == nil {
		loc = time.Local
	}
	if locale == "" {
		locale = string(monday.LocaleEnUS)
	}
	n := &Navigator{
		cursors: make(map[View]generic.YearMonth),
		clock:   clock,
		loc:     loc,
		locale:  monday.Locale(locale),
	}
	current := n.currentMonth()
	n.cursors[ViewPlanning] = current
	n.cursors[ViewDashboard] = current
	n.year = current.Year
	return n
}

// ParseView validates a view name.
func ParseView(s string) (View, error) {
	switch View(s) {
	case ViewPlanning, ViewDashboard:
		return View(s), nil
	}
	return "", fmt.Errorf("unknown view %q", s)
}

func (n *Navigator) currentMonth() generic.YearMonth {
	return generic.YearMonthOf(generic.Today(n.clock, n.loc))
}

// Current returns the month a view shows.
func (n *Navigator) Current(view View) generic.YearMonth {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cursors[view]
}

// Previous moves a view one month back.
func (n *Navigator) Previous(view View) ViewInfo {
	return n.move(view, func(ym generic.YearMonth) generic.YearMonth { return ym.Previous() })
}

// Next moves a view one month forward.
func (n *Navigator) Next(view View) ViewInfo {
	return n.move(view, func(ym generic.YearMonth) generic.YearMonth { return ym.Next() })
}

// ResetToToday moves a view back to the current month.
func (n *Navigator) ResetToToday(view View) ViewInfo {
	current := n.currentMonth()
	return n.move(view, func(generic.YearMonth) generic.YearMonth { return current })
}

// GoTo moves a view to a given month. Months outside 0..11 roll over
// into the neighbouring years.
func (n *Navigator) GoTo(view View, year int, month generic.MonthIndex) ViewInfo {
	target := generic.YearMonth{Year: year, Month: month}.Normalize()
	return n.move(view, func(generic.YearMonth) generic.YearMonth { return target })
}

// Describe returns what a view is showing. IsCurrentMonth is evaluated
// against the clock at call time.
func (n *Navigator) Describe(view View) ViewInfo {
	return n.move(view, func(ym generic.YearMonth) generic.YearMonth { return ym })
}

func (n *Navigator) move(view View, step func(generic.YearMonth) generic.YearMonth) ViewInfo {
	n.mu.Lock()
	ym := step(n.cursors[view])
	n.cursors[view] = ym
	n.mu.Unlock()

	return ViewInfo{
		View:           view,
		Year:           ym.Year,
		Month:          ym.Month,
		Label:          n.Label(ym),
		IsCurrentMonth: ym == n.currentMonth(),
	}
}

// Label formats a month as "Month Year" in the navigator's locale.
func (n *Navigator) Label(ym generic.YearMonth) string {
	return monday.Format(ym.FirstDay().Time, "January 2006", n.locale)
}

// =============================================================================
// YEARLY SUMMARY CURSOR
// =============================================================================

// Year returns the year shown by the yearly summary.
func (n *Navigator) Year() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.year
}

// SetYear moves the yearly summary to a given year.
func (n *Navigator) SetYear(year int) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.year = year
	return n.year
}

// PreviousYear moves the yearly summary one year back, never before
// earliest. It reports whether the cursor moved.
func (n *Navigator) PreviousYear(earliest int) (int, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.year-1 < earliest {
		return n.year, false
	}
	n.year--
	return n.year, true
}

// NextYear moves the yearly summary one year forward, never past the
// current year. It reports whether the cursor moved.
func (n *Navigator) NextYear() (int, bool) {
	current := n.currentMonth().Year
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.year+1 > current {
		return n.year, false
	}
	n.year++
	return n.year, true
}

// EarliestYear returns the year of the oldest mission, or fallback when
// there is none.
func EarliestYear(missions []payroll.Mission, fallback int) int {
	earliest := fallback
	found := false
	for _, m := range missions {
		d, err := m.Day()
		if err != nil {
			continue
		}
		if !found || d.Year() < earliest {
			earliest = d.Year()
			found = true
		}
	}
	return earliest
}
