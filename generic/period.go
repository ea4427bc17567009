package generic

import "fmt"

// =============================================================================
// PERIOD - The scope every aggregate is computed over
// =============================================================================

// Period is an inclusive range of calendar days.
//
// Examples:
//   - March 2024: Mar 1 - Mar 31
//   - Year 2024: Jan 1 - Dec 31
//   - Calendar grid for March 2024: Mon Feb 26 - Sun Mar 31
type Period struct {
	Start TimePoint
	End   TimePoint
}

// MonthPeriod returns the period covering one month.
func MonthPeriod(year int, month MonthIndex) Period {
	ym := YearMonth{Year: year, Month: month}.Normalize()
	return Period{
		Start: StartOfMonth(ym.Year, ym.Month.Month()),
		End:   EndOfMonth(ym.Year, ym.Month.Month()),
	}
}

// YearPeriod returns the period covering one calendar year.
func YearPeriod(year int) Period {
	return Period{Start: StartOfYear(year), End: EndOfYear(year)}
}

// Validate returns ErrInvalidPeriod when End precedes Start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return fmt.Errorf("%w: %s ends before it starts", ErrInvalidPeriod, p)
	}
	return nil
}

// Contains returns true if the day is within the period [Start, End].
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// ContainsKey reports whether a stored "YYYY-MM-DD" date falls in the period.
// Unparseable dates are never contained.
func (p Period) ContainsKey(date string) bool {
	tp, err := ParseDateKey(date)
	if err != nil {
		return false
	}
	return p.Contains(tp)
}

// WeekAligned extends the period back to a Monday and forward to a Sunday.
func (p Period) WeekAligned() Period {
	return Period{Start: p.Start.StartOfWeek(), End: p.End.EndOfWeek()}
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
