package payroll

import (
	"context"
	"encoding/json"

	"github.com/warp/nurse-pay/generic"
)

// MissionsByMonth returns the missions dated in the given month, in
// insertion order.
func (r *Registry) MissionsByMonth(ctx context.Context, year int, month generic.MonthIndex) ([]Mission, error) {
	return r.MissionsInPeriod(ctx, generic.MonthPeriod(year, month))
}

// MissionsInPeriod returns the missions whose date falls in p.
func (r *Registry) MissionsInPeriod(ctx context.Context, p generic.Period) ([]Mission, error) {
	missions, err := r.ListMissions(ctx)
	if err != nil {
		return nil, err
	}
	return FilterByPeriod(missions, p), nil
}

// MissionsByDate returns the missions on the given "YYYY-MM-DD" day. Stored
// dates with a time suffix match on their date part.
func (r *Registry) MissionsByDate(ctx context.Context, date string) ([]Mission, error) {
	missions, err := r.ListMissions(ctx)
	if err != nil {
		return nil, err
	}
	key := generic.DateKey(date)
	out := []Mission{}
	for _, m := range missions {
		if m.DateKey() == key {
			out = append(out, m)
		}
	}
	return out, nil
}

// FilterByPeriod keeps the missions dated inside p.
func FilterByPeriod(missions []Mission, p generic.Period) []Mission {
	out := []Mission{}
	for _, m := range missions {
		if p.ContainsKey(m.Date) {
			out = append(out, m)
		}
	}
	return out
}

// =============================================================================
// DATE CHECKS
// =============================================================================

// BusyDayThreshold is the number of missions already on a day from which
// adding another one triggers a warning.
const BusyDayThreshold = 2

// FarFutureMonths is how far ahead a mission can be planned before it is
// flagged as a probable typo.
const FarFutureMonths = 6

// CheckMissionDate returns advisory warnings for a mission date. It never
// rejects: the caller decides whether to proceed. excludeID skips the
// mission being edited.
func (r *Registry) CheckMissionDate(ctx context.Context, date, excludeID string) (ValidationResult, error) {
	res := ValidationResult{}

	day, err := generic.ParseDateKey(date)
	if err != nil {
		res.fail("date must be YYYY-MM-DD")
		return res.done(), nil
	}

	sameDay, err := r.MissionsByDate(ctx, date)
	if err != nil {
		return ValidationResult{}, err
	}
	others := 0
	for _, m := range sameDay {
		if m.ID != excludeID {
			others++
		}
	}
	if others >= BusyDayThreshold {
		res.warn("there are already %d missions on %s", others, day.Key())
	}

	today := r.Today()
	if day.Before(today) {
		res.warn("%s is in the past", day.Key())
	}
	if day.After(today.AddMonths(FarFutureMonths)) {
		res.warn("%s is more than %d months ahead", day.Key(), FarFutureMonths)
	}
	return res.done(), nil
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// BackfillResult reports a schedule backfill.
type BackfillResult struct {
	Migrated int `json:"migratedCount"`
	Total    int `json:"totalMissions"`
}

// BackfillSchedules copies start and end times from each mission's rate
// onto missions recorded before missions carried their own times. Missions
// that already have times, or whose rate has none, are left alone.
func (r *Registry) BackfillSchedules(ctx context.Context) (BackfillResult, error) {
	state, err := r.State(ctx)
	if err != nil {
		return BackfillResult{}, err
	}
	rates := IndexRates(state.Rates)

	result := BackfillResult{Total: len(state.Missions)}
	for _, m := range state.Missions {
		if m.StartTime != "" && m.EndTime != "" {
			continue
		}
		rate := rates.Lookup(m.RateID)
		if rate == nil || (rate.StartTime == "" && rate.EndTime == "") {
			continue
		}
		if m.StartTime == "" {
			m.StartTime = rate.StartTime
		}
		if m.EndTime == "" {
			m.EndTime = rate.EndTime
		}
		if err := r.store.SaveMission(ctx, m); err != nil {
			return result, r.storeErr(ctx, "save_mission", err)
		}
		result.Migrated++
	}
	return result, nil
}

// StorageInfo summarizes what the registry holds.
type StorageInfo struct {
	Rates     int     `json:"ratesCount"`
	Missions  int     `json:"missionsCount"`
	SizeBytes int     `json:"totalSize"`
	SizeKB    float64 `json:"totalSizeKB"`
}

// StorageInfo returns record counts and the size of the state once
// serialized to JSON.
func (r *Registry) StorageInfo(ctx context.Context) (StorageInfo, error) {
	state, err := r.State(ctx)
	if err != nil {
		return StorageInfo{}, err
	}
	raw, err := json.Marshal(struct {
		Rates    []Rate    `json:"rates"`
		Missions []Mission `json:"missions"`
		Settings Settings  `json:"settings"`
	}{state.Rates, state.Missions, state.Settings})
	if err != nil {
		return StorageInfo{}, err
	}
	return StorageInfo{
		Rates:     len(state.Rates),
		Missions:  len(state.Missions),
		SizeBytes: len(raw),
		SizeKB:    generic.RoundFloat(float64(len(raw))/1024, 2),
	}, nil
}
