/*
Package report builds the read-only views over missions: the monthly
report, its CSV rendering, the upcoming missions list and searches.

Every view resolves each mission's rate. A mission whose rate no longer
exists is still listed, with a nil Rate, so nothing silently disappears
from a report.

SEE ALSO:
  - csv.go: CSV rendering of a month
  - search.go: Rate and mission search
  - stats package: the aggregates embedded in the monthly report
*/
package report

import (
	"context"
	"sort"
	"time"

	"github.com/goodsign/monday"

	"github.com/warp/nurse-pay/generic"
	"github.com/warp/nurse-pay/logging"
	"github.com/warp/nurse-pay/payroll"
	"github.com/warp/nurse-pay/stats"
)

// DefaultUpcomingDays is the window of Upcoming when none is given.
const DefaultUpcomingDays = 7

// Source is the read side of the record store.
type Source interface {
	ListRates(ctx context.Context) ([]payroll.Rate, error)
	ListMissions(ctx context.Context) ([]payroll.Mission, error)
}

// MissionWithRate is a mission joined with its rate (nil when dangling).
type MissionWithRate struct {
	payroll.Mission
	Rate *payroll.Rate `json:"rate,omitempty"`
}

// GroupName returns the establishment the mission is grouped under.
func (m MissionWithRate) GroupName() string {
	return payroll.EstablishmentFor(m.Mission, m.Rate)
}

// Reporter builds reports from a Source.
type Reporter struct {
	source Source
	clock  generic.Clock
	loc    *time.Location
	locale monday.Locale
	log    *logging.Logger
}

// NewReporter creates a reporter. Period labels use the given locale
// (e.g. "fr_FR"); today is computed in loc.
func NewReporter(source Source, clock generic.Clock, loc *time.Location, locale string, log *logging.Logger) *Reporter {
	if clock == nil {
		clock = generic.SystemClock
	}
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Reporter{source: source, clock: clock, loc: loc, locale: monday.Locale(locale), log: log}
}

func (r *Reporter) load(ctx context.Context) ([]payroll.Rate, []payroll.Mission, error) {
	rates, err := r.source.ListRates(ctx)
	if err != nil {
		return nil, nil, err
	}
	missions, err := r.source.ListMissions(ctx)
	if err != nil {
		return nil, nil, err
	}
	return rates, missions, nil
}

// join resolves the rate of every mission.
func join(missions []payroll.Mission, idx payroll.RateIndex) []MissionWithRate {
	out := make([]MissionWithRate, len(missions))
	for i, m := range missions {
		out[i] = MissionWithRate{Mission: m, Rate: idx.Lookup(m.RateID)}
	}
	return out
}

// sortByDate orders missions by date key, keeping insertion order within
// a day.
func sortByDate(missions []MissionWithRate) {
	sort.SliceStable(missions, func(i, j int) bool {
		return missions[i].DateKey() < missions[j].DateKey()
	})
}

// =============================================================================
// MONTHLY REPORT
// =============================================================================

// MonthlyReport is everything known about one month.
type MonthlyReport struct {
	Period          string                               `json:"period"`
	Year            int                                  `json:"year"`
	Month           generic.MonthIndex                   `json:"month"`
	Stats           stats.MonthlyStats                   `json:"stats"`
	Missions        []MissionWithRate                    `json:"missions"`
	ByEstablishment map[string][]MissionWithRate         `json:"missionsByEstablishment"`
	ByStatus        map[payroll.Status][]MissionWithRate `json:"missionsByStatus"`
	GeneratedAt     time.Time                            `json:"generatedAt"`
}

// Monthly builds the report of a month. Cancelled missions are listed but
// left out of the stats.
func (r *Reporter) Monthly(ctx context.Context, year int, month generic.MonthIndex) (MonthlyReport, error) {
	rates, missions, err := r.load(ctx)
	if err != nil {
		return MonthlyReport{}, err
	}
	return r.buildMonthly(rates, missions, year, month), nil
}

func (r *Reporter) buildMonthly(rates []payroll.Rate, missions []payroll.Mission, year int, month generic.MonthIndex) MonthlyReport {
	inMonth := join(payroll.FilterByPeriod(missions, generic.MonthPeriod(year, month)), payroll.IndexRates(rates))
	sortByDate(inMonth)

	rep := MonthlyReport{
		Period:          r.PeriodLabel(year, month),
		Year:            year,
		Month:           month,
		Stats:           stats.ComputeMonthly(rates, missions, year, month),
		Missions:        inMonth,
		ByEstablishment: make(map[string][]MissionWithRate),
		ByStatus:        make(map[payroll.Status][]MissionWithRate, len(payroll.Statuses)),
		GeneratedAt:     r.clock().UTC(),
	}
	for _, s := range payroll.Statuses {
		rep.ByStatus[s] = []MissionWithRate{}
	}
	for _, m := range inMonth {
		name := m.GroupName()
		rep.ByEstablishment[name] = append(rep.ByEstablishment[name], m)
		if _, ok := rep.ByStatus[m.Status]; ok {
			rep.ByStatus[m.Status] = append(rep.ByStatus[m.Status], m)
		}
	}
	return rep
}

// PeriodLabel renders a month in the reporter's locale, e.g. "mars 2024".
func (r *Reporter) PeriodLabel(year int, month generic.MonthIndex) string {
	first := generic.YearMonth{Year: year, Month: month}.FirstDay()
	return monday.Format(first.Time, "January 2006", r.locale)
}

// =============================================================================
// UPCOMING MISSIONS
// =============================================================================

// Upcoming is a mission in the upcoming window.
type Upcoming struct {
	MissionWithRate
	DaysUntil int `json:"daysUntil"`
}

// Upcoming lists the non-cancelled missions from today to today+days
// (inclusive), sorted by date. days <= 0 uses DefaultUpcomingDays.
func (r *Reporter) Upcoming(ctx context.Context, days int) ([]Upcoming, error) {
	if days <= 0 {
		days = DefaultUpcomingDays
	}
	rates, missions, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	today := generic.Today(r.clock, r.loc)
	window := generic.Period{Start: today, End: today.AddDays(days)}

	var selected []payroll.Mission
	for _, m := range missions {
		if m.Counts() && window.ContainsKey(m.Date) {
			selected = append(selected, m)
		}
	}
	joined := join(selected, payroll.IndexRates(rates))
	sortByDate(joined)

	out := make([]Upcoming, 0, len(joined))
	for _, m := range joined {
		day, _ := m.Day()
		out = append(out, Upcoming{MissionWithRate: m, DaysUntil: generic.DaysBetween(today, day)})
	}
	return out, nil
}
