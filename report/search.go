package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp/nurse-pay/generic"
	"github.com/warp/nurse-pay/payroll"
)

// SearchRates returns the rates whose acronym or description contains the
// term, case-insensitively. An empty term matches every rate.
func (r *Reporter) SearchRates(ctx context.Context, term string) ([]payroll.Rate, error) {
	rates, err := r.source.ListRates(ctx)
	if err != nil {
		return nil, err
	}
	term = strings.ToLower(term)
	out := []payroll.Rate{}
	for _, rate := range rates {
		if strings.Contains(strings.ToLower(rate.Acronym), term) ||
			strings.Contains(strings.ToLower(rate.Description), term) {
			out = append(out, rate)
		}
	}
	return out, nil
}

// MissionFilter narrows a mission search. Zero fields do not filter.
type MissionFilter struct {
	Status        payroll.Status
	Establishment string // case-insensitive substring of the mission's establishment
	DateFrom      string // inclusive, YYYY-MM-DD
	DateTo        string // inclusive, YYYY-MM-DD
}

// Validate checks the date bounds: each must be a date and, when both are
// set, from must not come after to. Failures match generic.ErrInvalidPeriod.
func (f MissionFilter) Validate() error {
	var from, to generic.TimePoint
	var err error
	if f.DateFrom != "" {
		if from, err = generic.ParseDateKey(f.DateFrom); err != nil {
			return fmt.Errorf("%w: from: %v", generic.ErrInvalidPeriod, err)
		}
	}
	if f.DateTo != "" {
		if to, err = generic.ParseDateKey(f.DateTo); err != nil {
			return fmt.Errorf("%w: to: %v", generic.ErrInvalidPeriod, err)
		}
	}
	if f.DateFrom == "" || f.DateTo == "" {
		return nil
	}
	return generic.Period{Start: from, End: to}.Validate()
}

// SearchMissions returns the missions whose establishment, service, notes,
// rate acronym or rate description contain the term (case-insensitive),
// narrowed by the filter. Results keep store order.
func (r *Reporter) SearchMissions(ctx context.Context, term string, filter MissionFilter) ([]MissionWithRate, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	rates, missions, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	term = strings.ToLower(term)
	from, to := generic.DateKey(filter.DateFrom), generic.DateKey(filter.DateTo)
	establishment := strings.ToLower(filter.Establishment)

	out := []MissionWithRate{}
	for _, m := range join(missions, payroll.IndexRates(rates)) {
		if !strings.Contains(searchText(m), term) {
			continue
		}
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		if establishment != "" && !strings.Contains(strings.ToLower(m.Establishment), establishment) {
			continue
		}
		if from != "" && m.DateKey() < from {
			continue
		}
		if to != "" && m.DateKey() > to {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func searchText(m MissionWithRate) string {
	fields := []string{m.Establishment, m.Service, m.Notes}
	if m.Rate != nil {
		fields = append(fields, m.Rate.Acronym, m.Rate.Description)
	}
	var kept []string
	for _, f := range fields {
		if f != "" {
			kept = append(kept, f)
		}
	}
	return strings.ToLower(strings.Join(kept, " "))
}
