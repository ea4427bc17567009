package stats_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/nurse-pay/payroll"
	"github.com/warp/nurse-pay/stats"
)

func establishmentFixture() *fakeSource {
	paid := func(m payroll.Mission, gross, net float64) payroll.Mission {
		m.RealGrossSalary = gross
		m.RealNetSalary = net
		return m
	}
	override := mission("m4", "2024-03-20", "chu", payroll.StatusCompleted)
	override.Establishment = "Clinique B"

	return &fakeSource{
		rates: []payroll.Rate{
			{ID: "chu", Hours: 10, Salary: 150, Establishment: "CHU Rennes"},
			{ID: "astreinte", Hours: 12, Salary: 60, Establishment: "CHU Rennes", ExcludeFromCount: true},
			{ID: "free", Hours: 7, Salary: 100},
		},
		missions: []payroll.Mission{
			paid(mission("m1", "2024-03-01", "chu", payroll.StatusCompleted), 160, 120),
			paid(mission("m2", "2024-03-02", "chu", payroll.StatusCompleted), 160, 120),
			paid(mission("m3", "2024-03-03", "astreinte", payroll.StatusCompleted), 70, 50),
			paid(override, 160, 130),
			mission("m5", "2024-03-05", "free", payroll.StatusPlanned),
			mission("m6", "2024-03-06", "chu", payroll.StatusCancelled),
			mission("m7", "2024-06-06", "chu", payroll.StatusPlanned),
		},
	}
}

func TestEstablishmentStats_MonthScope(t *testing.T) {
	// GIVEN: March missions at CHU Rennes (3, one excluded from count),
	//        one rate-overridden to Clinique B, one without establishment
	// WHEN: Computing the March breakdown
	// THEN: Groups are ordered by mission count, hours honour the exclusion
	report, err := stats.NewEngine(establishmentFixture()).
		EstablishmentStats(context.Background(), stats.MonthScope(2024, march))
	require.NoError(t, err)

	require.Len(t, report.Establishments, 3)
	chu := report.Establishments[0]
	assert.Equal(t, "CHU Rennes", chu.Name)
	assert.Equal(t, 3, chu.MissionCount)
	assertDec(t, "20", chu.TotalHours, "CHU hours")
	assertDec(t, "390", chu.TotalGross, "CHU gross")
	assertDec(t, "290", chu.TotalNet, "CHU net")
	assertDec(t, "14.5", chu.AvgHourlyRate, "CHU avg")
	assertDec(t, "360", chu.EstimatedSalary, "CHU estimated")
	assertDec(t, "-70", chu.Difference, "CHU difference")

	// Ties on mission count are ordered by name
	assert.Equal(t, "Clinique B", report.Establishments[1].Name)
	assert.Equal(t, payroll.UnspecifiedEstablishment, report.Establishments[2].Name)
	assertDec(t, "0", report.Establishments[2].AvgHourlyRate, "no net, no average")

	assert.Equal(t, 3, report.Totals.Establishments)
	assert.Equal(t, 5, report.Totals.MissionCount)
	assertDec(t, "37", report.Totals.TotalHours, "total hours")
	assertDec(t, "420", report.Totals.TotalNet, "total net")
	assertDec(t, "610", report.Totals.EstimatedSalary, "total estimated")
	assertDec(t, "-190", report.Totals.Difference, "total difference")
}

func TestEstablishmentStats_YearScopeHasNoEstimates(t *testing.T) {
	report, err := stats.NewEngine(establishmentFixture()).
		EstablishmentStats(context.Background(), stats.YearScope(2024))
	require.NoError(t, err)

	assert.False(t, report.Scope.IsMonth())
	assert.Equal(t, 6, report.Totals.MissionCount)
	assert.Equal(t, 4, report.Establishments[0].MissionCount)
	assertDec(t, "0", report.Totals.EstimatedSalary, "no estimate in year scope")
}

func TestEstablishmentStats_EmptyScope(t *testing.T) {
	report, err := stats.NewEngine(establishmentFixture()).
		EstablishmentStats(context.Background(), stats.YearScope(1999))
	require.NoError(t, err)

	assert.Empty(t, report.Establishments)
	assert.Equal(t, 0, report.Totals.MissionCount)
	assertDec(t, "0", report.Totals.AvgHourlyRate, "average")
}

func TestEstablishmentStats_TotalsMatchMonthlyMissionCount(t *testing.T) {
	src := establishmentFixture()
	report := stats.ComputeEstablishments(src.rates, src.missions, stats.MonthScope(2024, march))
	monthly := stats.ComputeMonthly(src.rates, src.missions, 2024, march)

	assert.Equal(t, monthly.MissionCount, report.Totals.MissionCount)
	assert.True(t, monthly.TotalRealNetSalary.Equal(report.Totals.TotalNet))
}
