/*
registry.go - Record store service for rates and missions

PURPOSE:
  The Registry is the single owner of the rate and mission collections.
  Every consumer (statistics, calendar, ICS, reports, backups) reads
  through it and receives copies.

RESPONSIBILITIES:
  - Assign ids and timestamps on creation
  - Validate records before they reach the store
  - Merge partial updates while keeping id and createdAt
  - Wrap store failures in generic.StoreError and log them

LIFECYCLE:
  Add → Update* → Delete. Deleting a rate leaves missions that reference
  it in place; readers skip those dangling references.

SEE ALSO:
  - store.go: Persistence contract
  - validate.go: Validation rules
  - queries.go: Date-keyed lookups and maintenance operations
*/
package payroll

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/nurse-pay/generic"
	"github.com/warp/nurse-pay/logging"
)

// Registry is the record store service.
type Registry struct {
	store    Store
	clock    generic.Clock
	loc      *time.Location
	newID    func() string
	defaults []Rate
	log      *logging.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the clock used for timestamps and "today".
func WithClock(clock generic.Clock) Option {
	return func(r *Registry) { r.clock = clock }
}

// WithLocation sets the location "today" is evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(r *Registry) { r.loc = loc }
}

// WithDefaultRates sets the catalog loaded by SeedDefaults and Reset.
func WithDefaultRates(rates []Rate) Option {
	return func(r *Registry) { r.defaults = append([]Rate(nil), rates...) }
}

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// WithIDGenerator overrides id generation.
func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) { r.newID = gen }
}

// NewRegistry creates a registry over the given store.
func NewRegistry(store Store, opts ...Option) *Registry {
	r := &Registry{
		store: store,
		clock: generic.SystemClock,
		loc:   time.Local,
		newID: uuid.NewString,
		log:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.WithComponent(logging.ComponentRegistry)
	return r
}

// Today returns the current day in the registry's location.
func (r *Registry) Today() generic.TimePoint { return generic.Today(r.clock, r.loc) }

// Location returns the location "today" is evaluated in.
func (r *Registry) Location() *time.Location { return r.loc }

func (r *Registry) now() time.Time { return r.clock().UTC() }

// storeErr logs a failed store call and wraps it.
func (r *Registry) storeErr(ctx context.Context, op string, err error) error {
	var se *generic.StoreError
	if !errors.As(err, &se) {
		se = &generic.StoreError{Op: op, Err: err}
	}
	r.log.Failure(ctx, op, err)
	return se
}

// =============================================================================
// RATES
// =============================================================================

// ListRates returns every rate in insertion order.
func (r *Registry) ListRates(ctx context.Context) ([]Rate, error) {
	rates, err := r.store.ListRates(ctx)
	if err != nil {
		return nil, r.storeErr(ctx, "list_rates", err)
	}
	return rates, nil
}

// GetRate returns the rate or a not-found error.
func (r *Registry) GetRate(ctx context.Context, id string) (Rate, error) {
	rate, err := r.store.GetRate(ctx, id)
	if err != nil {
		return Rate{}, r.storeErr(ctx, "get_rate", err)
	}
	if rate == nil {
		return Rate{}, &generic.NotFoundError{Kind: "rate", ID: id}
	}
	return *rate, nil
}

// AddRate validates and stores a new rate. Any id on the input is ignored.
func (r *Registry) AddRate(ctx context.Context, rate Rate) (Rate, error) {
	rate.ID = r.newID()
	rate.CreatedAt = r.now()
	rate.UpdatedAt = time.Time{}
	normalizeRate(&rate)

	if res := ValidateRate(rate); !res.IsValid {
		return Rate{}, &ValidationError{Kind: "rate", Result: res}
	}
	if err := r.store.SaveRate(ctx, rate); err != nil {
		return Rate{}, r.storeErr(ctx, "save_rate", err)
	}
	r.log.DebugContext(ctx, "rate added", logging.FieldRateID, rate.ID, "acronym", rate.Acronym)
	return rate, nil
}

// UpdateRate merges patch over the stored rate. The id and creation time
// are preserved whatever the patch says.
func (r *Registry) UpdateRate(ctx context.Context, id string, patch RatePatch) (Rate, error) {
	current, err := r.GetRate(ctx, id)
	if err != nil {
		return Rate{}, err
	}

	updated := patch.Apply(current)
	updated.ID = current.ID
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = r.now()
	normalizeRate(&updated)

	if res := ValidateRate(updated); !res.IsValid {
		return Rate{}, &ValidationError{Kind: "rate", Result: res}
	}
	if err := r.store.SaveRate(ctx, updated); err != nil {
		return Rate{}, r.storeErr(ctx, "save_rate", err)
	}
	return updated, nil
}

// DeleteRate removes a rate. Deleting an unknown id succeeds.
func (r *Registry) DeleteRate(ctx context.Context, id string) error {
	if err := r.store.DeleteRate(ctx, id); err != nil {
		return r.storeErr(ctx, "delete_rate", err)
	}
	return nil
}

// Establishments returns the distinct, trimmed, non-empty establishment
// names found on rates, sorted.
func (r *Registry) Establishments(ctx context.Context) ([]string, error) {
	rates, err := r.ListRates(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	names := []string{}
	for _, rate := range rates {
		name := strings.TrimSpace(rate.Establishment)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// =============================================================================
// MISSIONS
// =============================================================================

// ListMissions returns every mission in insertion order.
func (r *Registry) ListMissions(ctx context.Context) ([]Mission, error) {
	missions, err := r.store.ListMissions(ctx)
	if err != nil {
		return nil, r.storeErr(ctx, "list_missions", err)
	}
	return missions, nil
}

// GetMission returns the mission or a not-found error.
func (r *Registry) GetMission(ctx context.Context, id string) (Mission, error) {
	m, err := r.store.GetMission(ctx, id)
	if err != nil {
		return Mission{}, r.storeErr(ctx, "get_mission", err)
	}
	if m == nil {
		return Mission{}, &generic.NotFoundError{Kind: "mission", ID: id}
	}
	return *m, nil
}

// AddMission validates and stores a new mission. The status defaults to
// planned when empty.
func (r *Registry) AddMission(ctx context.Context, m Mission) (Mission, error) {
	m.ID = r.newID()
	m.CreatedAt = r.now()
	m.UpdatedAt = time.Time{}
	if m.Status == "" {
		m.Status = StatusPlanned
	}
	normalizeMission(&m)

	if err := r.validateMission(ctx, m); err != nil {
		return Mission{}, err
	}
	if err := r.store.SaveMission(ctx, m); err != nil {
		return Mission{}, r.storeErr(ctx, "save_mission", err)
	}
	r.log.DebugContext(ctx, "mission added", logging.FieldMissionID, m.ID, "date", m.Date)
	return m, nil
}

// UpdateMission merges patch over the stored mission, keeping id and
// createdAt and stamping updatedAt.
func (r *Registry) UpdateMission(ctx context.Context, id string, patch MissionPatch) (Mission, error) {
	current, err := r.GetMission(ctx, id)
	if err != nil {
		return Mission{}, err
	}

	updated := patch.Apply(current)
	updated.ID = current.ID
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = r.now()
	normalizeMission(&updated)

	if err := r.validateMission(ctx, updated); err != nil {
		return Mission{}, err
	}
	if err := r.store.SaveMission(ctx, updated); err != nil {
		return Mission{}, r.storeErr(ctx, "save_mission", err)
	}
	return updated, nil
}

// DeleteMission removes a mission. Deleting an unknown id succeeds.
func (r *Registry) DeleteMission(ctx context.Context, id string) error {
	if err := r.store.DeleteMission(ctx, id); err != nil {
		return r.storeErr(ctx, "delete_mission", err)
	}
	return nil
}

func (r *Registry) validateMission(ctx context.Context, m Mission) error {
	rates, err := r.ListRates(ctx)
	if err != nil {
		return err
	}
	if res := ValidateMission(m, IndexRates(rates)); !res.IsValid {
		return &ValidationError{Kind: "mission", Result: res}
	}
	return nil
}

// =============================================================================
// SETTINGS & STATE
// =============================================================================

// Settings returns the stored settings, or the defaults when none were saved.
func (r *Registry) Settings(ctx context.Context) (Settings, error) {
	s, err := r.store.LoadSettings(ctx)
	if err != nil {
		return nil, r.storeErr(ctx, "load_settings", err)
	}
	if len(s) == 0 {
		return DefaultSettings(), nil
	}
	return s, nil
}

// SaveSettings merges the given keys over the stored settings.
func (r *Registry) SaveSettings(ctx context.Context, update Settings) (Settings, error) {
	current, err := r.Settings(ctx)
	if err != nil {
		return nil, err
	}
	merged := current.Clone()
	for k, v := range update {
		merged[k] = v
	}
	if err := r.store.SaveSettings(ctx, merged); err != nil {
		return nil, r.storeErr(ctx, "save_settings", err)
	}
	return merged, nil
}

// State returns a copy of everything the registry holds.
func (r *Registry) State(ctx context.Context) (State, error) {
	rates, err := r.ListRates(ctx)
	if err != nil {
		return State{}, err
	}
	missions, err := r.ListMissions(ctx)
	if err != nil {
		return State{}, err
	}
	settings, err := r.Settings(ctx)
	if err != nil {
		return State{}, err
	}
	return State{Rates: rates, Missions: missions, Settings: settings}, nil
}

// Replace swaps the whole state atomically. Records are stored as given:
// imported data may reference rates that no longer exist, and readers
// tolerate that.
func (r *Registry) Replace(ctx context.Context, state State) error {
	if state.Rates == nil {
		state.Rates = []Rate{}
	}
	if state.Missions == nil {
		state.Missions = []Mission{}
	}
	if state.Settings == nil {
		state.Settings = DefaultSettings()
	}
	if err := r.store.ReplaceAll(ctx, state); err != nil {
		return r.storeErr(ctx, "replace_all", err)
	}
	r.log.InfoContext(ctx, "state replaced",
		"rates", len(state.Rates), "missions", len(state.Missions))
	return nil
}

// SeedDefaults loads the default rate catalog when no rate exists yet.
// It returns the number of rates added.
func (r *Registry) SeedDefaults(ctx context.Context) (int, error) {
	rates, err := r.ListRates(ctx)
	if err != nil {
		return 0, err
	}
	if len(rates) > 0 || len(r.defaults) == 0 {
		return 0, nil
	}
	for _, rate := range r.defaults {
		if _, err := r.AddRate(ctx, rate); err != nil {
			return 0, fmt.Errorf("seeding %q: %w", rate.Acronym, err)
		}
	}
	r.log.InfoContext(ctx, "default rates loaded", logging.FieldCount, len(r.defaults))
	return len(r.defaults), nil
}

// Reset clears every record and reloads the default rate catalog.
func (r *Registry) Reset(ctx context.Context) error {
	if err := r.Replace(ctx, State{Settings: DefaultSettings()}); err != nil {
		return err
	}
	_, err := r.SeedDefaults(ctx)
	return err
}

func normalizeRate(r *Rate) {
	r.Acronym = strings.TrimSpace(r.Acronym)
	r.Description = strings.TrimSpace(r.Description)
	r.Establishment = strings.TrimSpace(r.Establishment)
	r.Service = strings.TrimSpace(r.Service)
}

func normalizeMission(m *Mission) {
	m.Date = strings.TrimSpace(m.Date)
	m.Establishment = strings.TrimSpace(m.Establishment)
	m.Service = strings.TrimSpace(m.Service)
}
