/*
Package stats computes pay and hour aggregates over missions.

PURPOSE:
  Turns the mission list into the figures a worker checks every month:
  what the shifts should pay (estimated from the rate templates), what was
  actually paid (gross and net from the payslip), hours worked and the
  resulting hourly averages.

RULES:
  - Cancelled missions never count.
  - Missions whose rate no longer exists are skipped, not reported.
  - Estimated pay: the rate's salary when positive, else hourly rate × hours.
  - Currency and hours are rounded to 2 decimals, hourly rates to 3.
    Rounding happens once, on the final figures.

EXCLUDED RATES:
  A rate flagged ExcludeFromCount (on-call indemnities with nominal hours,
  for instance) is left out of counted hours. MonthlyStats.TotalHours keeps
  every hour of the month, as the headline figure always has; CountedHours
  and the establishment breakdown honour the flag.

SEE ALSO:
  - establishment.go: Per-establishment breakdowns
  - payroll/types.go: Rate and Mission
*/
package stats

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/nurse-pay/generic"
	"github.com/warp/nurse-pay/payroll"
)

// Source is the read side of the record store.
type Source interface {
	ListRates(ctx context.Context) ([]payroll.Rate, error)
	ListMissions(ctx context.Context) ([]payroll.Mission, error)
}

// Engine computes aggregates from a Source.
type Engine struct {
	source Source
}

func NewEngine(source Source) *Engine {
	return &Engine{source: source}
}

func (e *Engine) load(ctx context.Context) ([]payroll.Rate, []payroll.Mission, error) {
	rates, err := e.source.ListRates(ctx)
	if err != nil {
		return nil, nil, err
	}
	missions, err := e.source.ListMissions(ctx)
	if err != nil {
		return nil, nil, err
	}
	return rates, missions, nil
}

// =============================================================================
// RATE DERIVATIONS
// =============================================================================

// rateHours returns the nominal hours of a rate, zero for indemnities.
func rateHours(r payroll.Rate) generic.Amount {
	if r.Hours <= 0 {
		return generic.Zero(generic.UnitHours)
	}
	return generic.NewAmount(r.Hours, generic.UnitHours)
}

// countedHours returns the hours a rate contributes to counted totals.
func countedHours(r payroll.Rate) generic.Amount {
	if r.ExcludeFromCount {
		return generic.Zero(generic.UnitHours)
	}
	return rateHours(r)
}

func hourlyRate(r payroll.Rate) generic.Amount {
	if r.Hours <= 0 {
		return generic.Zero(generic.UnitEURPerHour)
	}
	if r.HourlyRate > 0 {
		return generic.NewAmount(r.HourlyRate, generic.UnitEURPerHour).Round(generic.HourlyRatePlaces)
	}
	if r.Salary > 0 {
		return perHour(generic.NewAmount(r.Salary, generic.UnitEUR), rateHours(r))
	}
	return generic.Zero(generic.UnitEURPerHour)
}

func estimatedPay(r payroll.Rate) generic.Amount {
	if r.Salary > 0 {
		return generic.NewAmount(r.Salary, generic.UnitEUR)
	}
	if r.HourlyRate > 0 && r.Hours > 0 {
		return generic.NewAmount(r.HourlyRate, generic.UnitEURPerHour).Times(rateHours(r), generic.UnitEUR)
	}
	return generic.Zero(generic.UnitEUR)
}

// perHour is pay / hours rounded to a reported hourly rate, zero when no
// hours were worked.
func perHour(pay, hours generic.Amount) generic.Amount {
	return pay.Per(hours, generic.UnitEURPerHour).Round(generic.HourlyRatePlaces)
}

// HourlyRate returns the hourly pay of a rate: the stored hourly rate when
// set, else salary / hours. Indemnities have no hourly rate.
func HourlyRate(r payroll.Rate) decimal.Decimal {
	return hourlyRate(r).Value
}

// EstimatedSalary returns what one mission on this rate should pay.
func EstimatedSalary(r payroll.Rate) decimal.Decimal {
	return estimatedPay(r).Value
}

// TotalSalary sums the estimated pay of the counting missions.
func TotalSalary(missions []payroll.Mission, rates []payroll.Rate) decimal.Decimal {
	idx := payroll.IndexRates(rates)
	total := generic.Zero(generic.UnitEUR)
	for _, m := range missions {
		if r := idx.Lookup(m.RateID); r != nil && m.Counts() {
			total = total.Add(estimatedPay(*r))
		}
	}
	return total.Round(generic.CurrencyPlaces).Value
}

// TotalHours sums the counted hours of the counting missions.
func TotalHours(missions []payroll.Mission, rates []payroll.Rate) decimal.Decimal {
	idx := payroll.IndexRates(rates)
	total := generic.Zero(generic.UnitHours)
	for _, m := range missions {
		if r := idx.Lookup(m.RateID); r != nil && m.Counts() {
			total = total.Add(countedHours(*r))
		}
	}
	return total.Round(generic.HoursPlaces).Value
}

// =============================================================================
// SUMS
// =============================================================================

// sums accumulates the unrounded figures of a set of missions.
type sums struct {
	missions  int
	paid      int // missions with a positive real net salary
	estimated generic.Amount
	gross     generic.Amount
	net       generic.Amount
	hours     generic.Amount
	counted   generic.Amount
}

func newSums() sums {
	return sums{
		estimated: generic.Zero(generic.UnitEUR),
		gross:     generic.Zero(generic.UnitEUR),
		net:       generic.Zero(generic.UnitEUR),
		hours:     generic.Zero(generic.UnitHours),
		counted:   generic.Zero(generic.UnitHours),
	}
}

func (s *sums) addMission(m payroll.Mission, r payroll.Rate) {
	s.missions++
	s.estimated = s.estimated.Add(estimatedPay(r))
	s.hours = s.hours.Add(rateHours(r))
	s.counted = s.counted.Add(countedHours(r))
	if m.RealGrossSalary > 0 {
		s.gross = s.gross.Add(generic.NewAmount(m.RealGrossSalary, generic.UnitEUR))
	}
	if m.RealNetSalary > 0 {
		s.net = s.net.Add(generic.NewAmount(m.RealNetSalary, generic.UnitEUR))
		s.paid++
	}
}

func (s *sums) add(o sums) {
	s.missions += o.missions
	s.paid += o.paid
	s.estimated = s.estimated.Add(o.estimated)
	s.gross = s.gross.Add(o.gross)
	s.net = s.net.Add(o.net)
	s.hours = s.hours.Add(o.hours)
	s.counted = s.counted.Add(o.counted)
}

// =============================================================================
// MONTHLY STATS
// =============================================================================

// MonthlyStats summarizes one month.
type MonthlyStats struct {
	Year  int
	Month generic.MonthIndex

	TotalEstimatedSalary decimal.Decimal
	TotalRealGrossSalary decimal.Decimal
	TotalRealNetSalary   decimal.Decimal
	TotalHours           decimal.Decimal // every hour, excluded rates included
	CountedHours         decimal.Decimal // hours of rates not excluded from count
	MissionCount         int
	RealSalaryCount      int // missions with a positive real net salary
	AverageHourlyRate    decimal.Decimal
	SalaryDifference     decimal.Decimal // real net - estimated
}

func (s sums) monthly(year int, month generic.MonthIndex) MonthlyStats {
	return MonthlyStats{
		Year:                 year,
		Month:                month,
		TotalEstimatedSalary: s.estimated.Round(generic.CurrencyPlaces).Value,
		TotalRealGrossSalary: s.gross.Round(generic.CurrencyPlaces).Value,
		TotalRealNetSalary:   s.net.Round(generic.CurrencyPlaces).Value,
		TotalHours:           s.hours.Round(generic.HoursPlaces).Value,
		CountedHours:         s.counted.Round(generic.HoursPlaces).Value,
		MissionCount:         s.missions,
		RealSalaryCount:      s.paid,
		AverageHourlyRate:    perHour(s.estimated, s.hours).Value,
		SalaryDifference:     s.net.Sub(s.estimated).Round(generic.CurrencyPlaces).Value,
	}
}

// MonthlyStats computes the stats of one month.
func (e *Engine) MonthlyStats(ctx context.Context, year int, month generic.MonthIndex) (MonthlyStats, error) {
	rates, missions, err := e.load(ctx)
	if err != nil {
		return MonthlyStats{}, err
	}
	return ComputeMonthly(rates, missions, year, month), nil
}

// ComputeMonthly computes the stats of one month from the given records.
// A month outside 0..11 rolls over into the neighbouring years.
func ComputeMonthly(rates []payroll.Rate, missions []payroll.Mission, year int, month generic.MonthIndex) MonthlyStats {
	ym := generic.YearMonth{Year: year, Month: month}.Normalize()
	return monthSums(payroll.IndexRates(rates), missions, ym).monthly(ym.Year, ym.Month)
}

func monthSums(idx payroll.RateIndex, missions []payroll.Mission, ym generic.YearMonth) sums {
	period := generic.MonthPeriod(ym.Year, ym.Month)
	s := newSums()
	for _, m := range missions {
		if !m.Counts() || !period.ContainsKey(m.Date) {
			continue
		}
		if r := idx.Lookup(m.RateID); r != nil {
			s.addMission(m, *r)
		}
	}
	return s
}

// =============================================================================
// YEARLY OVERVIEW
// =============================================================================

// YearOverview holds the twelve monthly stats of a year and their sums.
type YearOverview struct {
	Year   int
	Months []MonthlyStats
	Totals MonthlyStats // Month is meaningless on the totals row
}

// YearOverview computes the monthly stats of every month of a year.
func (e *Engine) YearOverview(ctx context.Context, year int) (YearOverview, error) {
	rates, missions, err := e.load(ctx)
	if err != nil {
		return YearOverview{}, err
	}

	idx := payroll.IndexRates(rates)
	overview := YearOverview{Year: year, Months: make([]MonthlyStats, 12)}
	total := newSums()
	for m := generic.MonthIndex(0); m < 12; m++ {
		ms := monthSums(idx, missions, generic.YearMonth{Year: year, Month: m})
		overview.Months[m] = ms.monthly(year, m)
		total.add(ms)
	}
	overview.Totals = total.monthly(year, 0)
	return overview, nil
}
