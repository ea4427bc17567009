package stats

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/nurse-pay/generic"
	"github.com/warp/nurse-pay/payroll"
)

// =============================================================================
// SCOPE - Month or year
// =============================================================================

// Scope selects the missions of an establishment breakdown. A nil Month
// means the whole year.
type Scope struct {
	Year  int
	Month *generic.MonthIndex
}

func MonthScope(year int, month generic.MonthIndex) Scope {
	return Scope{Year: year, Month: &month}
}

func YearScope(year int) Scope {
	return Scope{Year: year}
}

// IsMonth reports whether the scope covers a single month.
func (s Scope) IsMonth() bool { return s.Month != nil }

// Period returns the days the scope covers.
func (s Scope) Period() generic.Period {
	if s.Month != nil {
		return generic.MonthPeriod(s.Year, *s.Month)
	}
	return generic.YearPeriod(s.Year)
}

// =============================================================================
// ESTABLISHMENT BREAKDOWN
// =============================================================================

// EstablishmentRow aggregates the missions worked at one establishment.
// EstimatedSalary and Difference are only filled for month scopes.
type EstablishmentRow struct {
	Name            string
	MissionCount    int
	TotalHours      decimal.Decimal
	TotalGross      decimal.Decimal
	TotalNet        decimal.Decimal
	AvgHourlyRate   decimal.Decimal // net / hours
	EstimatedSalary decimal.Decimal
	Difference      decimal.Decimal // net - estimated
}

// EstablishmentTotals sums every row of a breakdown.
type EstablishmentTotals struct {
	Establishments  int
	MissionCount    int
	TotalHours      decimal.Decimal
	TotalGross      decimal.Decimal
	TotalNet        decimal.Decimal
	AvgHourlyRate   decimal.Decimal
	EstimatedSalary decimal.Decimal
	Difference      decimal.Decimal
}

// EstablishmentReport is the breakdown of a scope by establishment, busiest
// establishment first.
type EstablishmentReport struct {
	Scope          Scope
	Establishments []EstablishmentRow
	Totals         EstablishmentTotals
}

// EstablishmentStats computes the breakdown of a month or a year.
func (e *Engine) EstablishmentStats(ctx context.Context, scope Scope) (EstablishmentReport, error) {
	rates, missions, err := e.load(ctx)
	if err != nil {
		return EstablishmentReport{}, err
	}
	return ComputeEstablishments(rates, missions, scope), nil
}

// ComputeEstablishments computes the breakdown from the given records.
func ComputeEstablishments(rates []payroll.Rate, missions []payroll.Mission, scope Scope) EstablishmentReport {
	idx := payroll.IndexRates(rates)
	period := scope.Period()
	withEstimates := scope.IsMonth()

	groups := make(map[string]*sums)
	for _, m := range missions {
		if !m.Counts() || !period.ContainsKey(m.Date) {
			continue
		}
		r := idx.Lookup(m.RateID)
		if r == nil {
			continue
		}

		name := payroll.EstablishmentFor(m, r)
		acc, ok := groups[name]
		if !ok {
			fresh := newSums()
			acc = &fresh
			groups[name] = acc
		}
		acc.addMission(m, *r)
	}

	report := EstablishmentReport{Scope: scope, Establishments: []EstablishmentRow{}}
	all := newSums()
	for name, acc := range groups {
		all.add(*acc)
		row := EstablishmentRow{
			Name:          name,
			MissionCount:  acc.missions,
			TotalHours:    acc.counted.Round(generic.HoursPlaces).Value,
			TotalGross:    acc.gross.Round(generic.CurrencyPlaces).Value,
			TotalNet:      acc.net.Round(generic.CurrencyPlaces).Value,
			AvgHourlyRate: perHour(acc.net, acc.counted).Value,
		}
		if withEstimates {
			row.EstimatedSalary = acc.estimated.Round(generic.CurrencyPlaces).Value
			row.Difference = acc.net.Sub(acc.estimated).Round(generic.CurrencyPlaces).Value
		}
		report.Establishments = append(report.Establishments, row)
	}

	sort.SliceStable(report.Establishments, func(i, j int) bool {
		a, b := report.Establishments[i], report.Establishments[j]
		if a.MissionCount != b.MissionCount {
			return a.MissionCount > b.MissionCount
		}
		return a.Name < b.Name
	})

	report.Totals = EstablishmentTotals{
		Establishments: len(groups),
		MissionCount:   all.missions,
		TotalHours:     all.counted.Round(generic.HoursPlaces).Value,
		TotalGross:     all.gross.Round(generic.CurrencyPlaces).Value,
		TotalNet:       all.net.Round(generic.CurrencyPlaces).Value,
		AvgHourlyRate:  perHour(all.net, all.counted).Value,
	}
	if withEstimates {
		report.Totals.EstimatedSalary = all.estimated.Round(generic.CurrencyPlaces).Value
		report.Totals.Difference = all.net.Sub(all.estimated).Round(generic.CurrencyPlaces).Value
	}
	return report
}
