package payroll_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/nurse-pay/generic"
	"github.com/warp/nurse-pay/payroll"
	"github.com/warp/nurse-pay/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var testNow = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	store    *memory.Memory
	registry *payroll.Registry
	now      time.Time
}

func newTestEnv(t *testing.T, opts ...payroll.Option) *testEnv {
	t.Helper()
	env := &testEnv{store: memory.New(), now: testNow}
	seq := 0
	base := []payroll.Option{
		payroll.WithClock(func() time.Time { return env.now }),
		payroll.WithLocation(time.UTC),
		payroll.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	}
	env.registry = payroll.NewRegistry(env.store, append(base, opts...)...)
	return env
}

func (e *testEnv) addRate(t *testing.T, acronym string, hours, salary float64) payroll.Rate {
	t.Helper()
	r, err := e.registry.AddRate(context.Background(), payroll.Rate{Acronym: acronym, Hours: hours, Salary: salary})
	require.NoError(t, err)
	return r
}

func (e *testEnv) addMission(t *testing.T, date, rateID string) payroll.Mission {
	t.Helper()
	m, err := e.registry.AddMission(context.Background(), payroll.Mission{Date: date, RateID: rateID})
	require.NoError(t, err)
	return m
}

// =============================================================================
// RATES
// =============================================================================

func TestRegistry_AddRate(t *testing.T) {
	// GIVEN: A rate submitted with an id of its own and padded fields
	env := newTestEnv(t)
	ctx := context.Background()

	// WHEN: Adding it
	r, err := env.registry.AddRate(ctx, payroll.Rate{
		ID: "client-id", Acronym: " Urg C7 ", Establishment: " CHU ", Hours: 7, Salary: 102.33,
	})
	require.NoError(t, err)

	// THEN: The registry assigns the id and creation time and trims the names
	assert.Equal(t, "id-1", r.ID)
	assert.Equal(t, "Urg C7", r.Acronym)
	assert.Equal(t, "CHU", r.Establishment)
	assert.Equal(t, testNow, r.CreatedAt)
	assert.True(t, r.UpdatedAt.IsZero())

	got, err := env.registry.GetRate(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestRegistry_AddRate_Invalid(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.registry.AddRate(context.Background(), payroll.Rate{Acronym: "X", Hours: 7})
	require.Error(t, err)

	var verr *payroll.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "rate", verr.Kind)
	assert.True(t, generic.IsClientError(err))

	rates, err := env.registry.ListRates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rates)
}

func TestRegistry_UpdateRate_KeepsIdentity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := env.addRate(t, "Urg C7", 7, 102.33)

	// WHEN: Updating a day later
	env.now = testNow.Add(24 * time.Hour)
	salary := 110.0
	updated, err := env.registry.UpdateRate(ctx, r.ID, payroll.RatePatch{Salary: &salary})
	require.NoError(t, err)

	// THEN: id and createdAt survive, updatedAt is stamped
	assert.Equal(t, r.ID, updated.ID)
	assert.Equal(t, testNow, updated.CreatedAt)
	assert.Equal(t, env.now, updated.UpdatedAt)
	assert.Equal(t, 110.0, updated.Salary)
	assert.Equal(t, "Urg C7", updated.Acronym)

	// AND: An update that breaks the rate is rejected and nothing changes
	zero := 0.0
	_, err = env.registry.UpdateRate(ctx, r.ID, payroll.RatePatch{Salary: &zero})
	assert.True(t, generic.IsClientError(err))
	stored, err := env.registry.GetRate(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 110.0, stored.Salary)
}

func TestRegistry_NotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.registry.GetRate(ctx, "nope")
	assert.ErrorIs(t, err, generic.ErrRateNotFound)

	_, err = env.registry.UpdateMission(ctx, "nope", payroll.MissionPatch{})
	assert.ErrorIs(t, err, generic.ErrMissionNotFound)

	// Deleting an unknown id is not an error
	assert.NoError(t, env.registry.DeleteRate(ctx, "nope"))
	assert.NoError(t, env.registry.DeleteMission(ctx, "nope"))
}

func TestRegistry_DeleteRateLeavesMissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := env.addRate(t, "Urg C7", 7, 102.33)
	m := env.addMission(t, "2024-03-15", r.ID)

	require.NoError(t, env.registry.DeleteRate(ctx, r.ID))

	got, err := env.registry.GetMission(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.RateID)
}

func TestRegistry_Establishments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, name := range []string{"CHU Rennes", "", "Clinique de Cesson Sévigné", " CHU Rennes"} {
		_, err := env.registry.AddRate(ctx, payroll.Rate{Acronym: "R", Hours: 7, Salary: 100, Establishment: name})
		require.NoError(t, err)
	}

	names, err := env.registry.Establishments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"CHU Rennes", "Clinique de Cesson Sévigné"}, names)
}

// =============================================================================
// MISSIONS
// =============================================================================

func TestRegistry_AddMission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := env.addRate(t, "Urg C7", 7, 102.33)

	// Status defaults to planned
	m := env.addMission(t, "2024-03-15", r.ID)
	assert.Equal(t, payroll.StatusPlanned, m.Status)
	assert.Equal(t, testNow, m.CreatedAt)

	// An unknown rate is rejected
	_, err := env.registry.AddMission(ctx, payroll.Mission{Date: "2024-03-16", RateID: "nope"})
	var verr *payroll.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "mission", verr.Kind)
	assert.Contains(t, verr.Result.Errors, `rate "nope" does not exist`)
}

func TestRegistry_UpdateMission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := env.addRate(t, "Urg C7", 7, 102.33)
	m := env.addMission(t, "2024-03-15", r.ID)

	status := payroll.StatusCompleted
	gross, net := 102.33, 80.1
	updated, err := env.registry.UpdateMission(ctx, m.ID, payroll.MissionPatch{
		Status: &status, RealGrossSalary: &gross, RealNetSalary: &net,
	})
	require.NoError(t, err)
	assert.Equal(t, payroll.StatusCompleted, updated.Status)
	assert.Equal(t, m.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "2024-03-15", updated.Date)

	missions, err := env.registry.ListMissions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []payroll.Mission{updated}, missions)
}

func TestRegistry_MissionsByMonth(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := env.addRate(t, "Urg C7", 7, 102.33)
	env.addMission(t, "2024-02-29", r.ID)
	march1 := env.addMission(t, "2024-03-01", r.ID)
	march31 := env.addMission(t, "2024-03-31T00:00:00.000Z", r.ID)
	env.addMission(t, "2024-04-01", r.ID)

	march, err := env.registry.MissionsByMonth(ctx, 2024, 2)
	require.NoError(t, err)
	assert.Equal(t, []payroll.Mission{march1, march31}, march)

	empty, err := env.registry.MissionsByMonth(ctx, 2023, 2)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	onDay, err := env.registry.MissionsByDate(ctx, "2024-03-31")
	require.NoError(t, err)
	assert.Equal(t, []payroll.Mission{march31}, onDay)
}

func TestRegistry_CheckMissionDate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := env.addRate(t, "Urg C7", 7, 102.33)
	first := env.addMission(t, "2024-03-20", r.ID)
	env.addMission(t, "2024-03-20", r.ID)

	tests := []struct {
		name     string
		date     string
		exclude  string
		warnings []string
		valid    bool
	}{
		{"free day", "2024-03-21", "", nil, true},
		{"busy day", "2024-03-20", "", []string{"there are already 2 missions on 2024-03-20"}, true},
		{"busy day minus the edited mission", "2024-03-20", first.ID, nil, true},
		{"past day", "2024-03-14", "", []string{"2024-03-14 is in the past"}, true},
		{"far future", "2024-10-01", "", []string{"2024-10-01 is more than 6 months ahead"}, true},
		{"not a date", "tomorrow", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.registry.CheckMissionDate(ctx, tt.date, tt.exclude)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.IsValid)
			assert.Equal(t, tt.warnings, res.Warnings)
		})
	}
}

// =============================================================================
// SETTINGS, STATE & MAINTENANCE
// =============================================================================

func TestRegistry_Settings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s, err := env.registry.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, payroll.DefaultSettings(), s)

	merged, err := env.registry.SaveSettings(ctx, payroll.Settings{"autoBackup": false, "theme": "dark"})
	require.NoError(t, err)
	assert.Equal(t, false, merged["autoBackup"])
	assert.Equal(t, "dark", merged["theme"])
	assert.Equal(t, true, merged["notifications"])
}

func TestRegistry_SeedDefaults(t *testing.T) {
	defaults := []payroll.Rate{
		{Acronym: "Urg C7", Hours: 7, Salary: 102.33},
		{Acronym: "Astreinte", Salary: 75.5},
	}
	env := newTestEnv(t, payroll.WithDefaultRates(defaults))
	ctx := context.Background()

	added, err := env.registry.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	// Seeding again is a no-op once rates exist
	added, err = env.registry.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Zero(t, added)

	rates, err := env.registry.ListRates(ctx)
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.NotEmpty(t, rates[0].ID)
}

func TestRegistry_Reset(t *testing.T) {
	env := newTestEnv(t, payroll.WithDefaultRates([]payroll.Rate{{Acronym: "Urg C7", Hours: 7, Salary: 102.33}}))
	ctx := context.Background()
	r := env.addRate(t, "Nuit", 12, 176.7)
	env.addMission(t, "2024-03-15", r.ID)
	_, err := env.registry.SaveSettings(ctx, payroll.Settings{"theme": "dark"})
	require.NoError(t, err)

	require.NoError(t, env.registry.Reset(ctx))

	state, err := env.registry.State(ctx)
	require.NoError(t, err)
	require.Len(t, state.Rates, 1)
	assert.Equal(t, "Urg C7", state.Rates[0].Acronym)
	assert.Empty(t, state.Missions)
	assert.Equal(t, payroll.DefaultSettings(), state.Settings)
}

func TestRegistry_ReplaceKeepsDanglingReferences(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.registry.Replace(ctx, payroll.State{
		Missions: []payroll.Mission{{ID: "m1", Date: "2024-03-15", RateID: "gone", Status: payroll.StatusCompleted}},
	})
	require.NoError(t, err)

	state, err := env.registry.State(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.Rates)
	require.Len(t, state.Missions, 1)
	assert.Equal(t, "gone", state.Missions[0].RateID)
}

func TestRegistry_StoreFailuresAreWrapped(t *testing.T) {
	// GIVEN: A store whose writes fail
	env := newTestEnv(t)
	driverErr := errors.New("quota exceeded")
	env.store.FailWrites(driverErr)

	// WHEN: Adding a valid rate
	_, err := env.registry.AddRate(context.Background(), payroll.Rate{Acronym: "Urg C7", Hours: 7, Salary: 102.33})

	// THEN: The failure is a StoreError that still unwraps to the driver error
	var storeErr *generic.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "save_rate", storeErr.Op)
	assert.ErrorIs(t, err, generic.ErrPersistence)
	assert.ErrorIs(t, err, driverErr)
	assert.False(t, generic.IsClientError(err))
}

func TestRegistry_BackfillSchedules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	night, err := env.registry.AddRate(ctx, payroll.Rate{
		Acronym: "Nuit", Hours: 12, Salary: 176.7, StartTime: "19:00", EndTime: "07:00",
	})
	require.NoError(t, err)
	untimed := env.addRate(t, "Urg C7", 7, 102.33)

	bare := env.addMission(t, "2024-03-15", night.ID)
	_, err = env.registry.AddMission(ctx, payroll.Mission{
		Date: "2024-03-16", RateID: night.ID, StartTime: "20:00", EndTime: "08:00",
	})
	require.NoError(t, err)
	env.addMission(t, "2024-03-17", untimed.ID)

	result, err := env.registry.BackfillSchedules(ctx)
	require.NoError(t, err)
	assert.Equal(t, payroll.BackfillResult{Migrated: 1, Total: 3}, result)

	got, err := env.registry.GetMission(ctx, bare.ID)
	require.NoError(t, err)
	assert.Equal(t, "19:00", got.StartTime)
	assert.Equal(t, "07:00", got.EndTime)
}

func TestRegistry_StorageInfo(t *testing.T) {
	env := newTestEnv(t)
	r := env.addRate(t, "Urg C7", 7, 102.33)
	env.addMission(t, "2024-03-15", r.ID)

	info, err := env.registry.StorageInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, info.Rates)
	assert.Equal(t, 1, info.Missions)
	assert.Positive(t, info.SizeBytes)
	assert.InDelta(t, float64(info.SizeBytes)/1024, info.SizeKB, 0.005)
}

func TestRegistry_Today(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, "2024-03-15", env.registry.Today().Key())
	assert.Equal(t, time.UTC, env.registry.Location())
}
