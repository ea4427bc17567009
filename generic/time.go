package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// TIME POINT - A calendar day
// =============================================================================

// TimePoint is a calendar day. It is always normalized to midnight UTC so
// that two TimePoints for the same date compare equal regardless of the
// location they were derived from.
type TimePoint struct {
	Time time.Time
}

// DateLayout is the day key format used by records and lookups.
const DateLayout = "2006-01-02"

func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf returns the calendar day of t as seen in t's own location.
func DayOf(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDateKey parses "YYYY-MM-DD". Anything after a "T" is ignored, so
// ISO timestamps stored by older exports resolve to their date.
func ParseDateKey(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, DateKey(s))
	if err != nil {
		return TimePoint{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return DayOf(t), nil
}

// DateKey strips any time suffix from a stored date string.
func DateKey(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		return s[:i]
	}
	return s
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return DayOf(tp.Time.AddDate(0, 0, n)) }
func (tp TimePoint) AddMonths(n int) TimePoint { return DayOf(tp.Time.AddDate(0, n, 0)) }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

// Key returns the "YYYY-MM-DD" form used to match mission dates.
func (tp TimePoint) Key() string { return tp.Time.Format(DateLayout) }

func (tp TimePoint) String() string { return tp.Key() }

// UnixMilli returns the epoch milliseconds of the day's UTC midnight.
func (tp TimePoint) UnixMilli() int64 { return tp.Time.UnixMilli() }

// StartOfWeek returns the Monday on or before tp.
func (tp TimePoint) StartOfWeek() TimePoint {
	offset := (int(tp.Weekday()) + 6) % 7
	return tp.AddDays(-offset)
}

// EndOfWeek returns the Sunday on or after tp.
func (tp TimePoint) EndOfWeek() TimePoint {
	offset := (7 - int(tp.Weekday())) % 7
	return tp.AddDays(offset)
}

// =============================================================================
// CLOCK
// =============================================================================

// Clock returns the current instant. Components take a Clock so that tests
// can pin "today".
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time { return time.Now() }

// Today returns the current calendar day in loc.
func Today(clock Clock, loc *time.Location) TimePoint {
	if clock == nil {
		clock = SystemClock
	}
	if loc == nil {
		loc = time.Local
	}
	return DayOf(clock().In(loc))
}

// =============================================================================
// MONTH INDEX - 0-based month used by cursors and month scopes
// =============================================================================

// MonthIndex is a month in 0..11 (January = 0).
type MonthIndex int

func MonthIndexOf(m time.Month) MonthIndex { return MonthIndex(m - 1) }

func (m MonthIndex) Month() time.Month { return time.Month(m + 1) }

func (m MonthIndex) Valid() bool { return m >= 0 && m <= 11 }

// YearMonth is a (year, month) pair.
type YearMonth struct {
	Year  int
	Month MonthIndex
}

func YearMonthOf(tp TimePoint) YearMonth {
	return YearMonth{Year: tp.Year(), Month: MonthIndexOf(tp.Month())}
}

// Normalize folds an out-of-range month into the year: month 12 of 2024
// is January 2025 and month -1 is December 2023.
func (ym YearMonth) Normalize() YearMonth {
	if ym.Month.Valid() {
		return ym
	}
	year, month := ym.Year+int(ym.Month)/12, int(ym.Month)%12
	if month < 0 {
		year, month = year-1, month+12
	}
	return YearMonth{Year: year, Month: MonthIndex(month)}
}

// Next returns the following month, wrapping December into January.
func (ym YearMonth) Next() YearMonth {
	return YearMonth{Year: ym.Year, Month: ym.Month + 1}.Normalize()
}

// Previous returns the preceding month, wrapping January into December.
func (ym YearMonth) Previous() YearMonth {
	return YearMonth{Year: ym.Year, Month: ym.Month - 1}.Normalize()
}

func (ym YearMonth) FirstDay() TimePoint {
	ym = ym.Normalize()
	return StartOfMonth(ym.Year, ym.Month.Month())
}

func (ym YearMonth) String() string { return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month)+1) }

// =============================================================================
// TIME OF DAY - "HH:MM" strings on rates and missions
// =============================================================================

// TimeOfDay is a wall-clock time as minutes after midnight.
type TimeOfDay int

const minutesPerDay = 24 * 60

// ParseTimeOfDay parses "HH:MM" (24h).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

func NewTimeOfDay(hour, minute int) TimeOfDay { return TimeOfDay(hour*60 + minute) }

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Add returns t shifted by the given minutes and reports how many
// midnights were crossed.
func (t TimeOfDay) Add(minutes int) (TimeOfDay, int) {
	total := int(t) + minutes
	days := total / minutesPerDay
	rem := total % minutesPerDay
	if rem < 0 {
		rem += minutesPerDay
		days--
	}
	return TimeOfDay(rem), days
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute()) }

// =============================================================================
// TIME UTILITIES
// =============================================================================

func DaysBetween(from, to TimePoint) int { return int(to.Time.Sub(from.Time).Hours() / 24) }
func StartOfYear(year int) TimePoint     { return NewTimePoint(year, time.January, 1) }
func EndOfYear(year int) TimePoint       { return NewTimePoint(year, time.December, 31) }
func StartOfMonth(year int, month time.Month) TimePoint {
	return NewTimePoint(year, month, 1)
}
func EndOfMonth(year int, month time.Month) TimePoint {
	return DayOf(time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1))
}
