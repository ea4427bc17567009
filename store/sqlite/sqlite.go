/*
Package sqlite provides a SQLite-backed implementation of payroll.Store.

PURPOSE:
  Persists rates, missions and settings in a single SQLite file so the
  tracker survives restarts.

KEY TABLES:
  rates:     Rate templates
  missions:  Missions, referencing rates by id (no foreign key: a deleted
             rate leaves its missions in place)
  settings:  One row per setting, value stored as JSON

INSERTION ORDER:
  Both record tables carry an AUTOINCREMENT seq column. Upserts use
  ON CONFLICT(id) DO UPDATE, which keeps the original seq, so listing
  ORDER BY seq returns records in the order they were first added.

ATOMIC REPLACE:
  ReplaceAll deletes and reinserts every table inside one SQL transaction.
  A failure anywhere rolls back to the previous state.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, and a single connection so that
  ":memory:" databases keep their content across calls.

USAGE:
  store, err := sqlite.New("./data/nurse-pay.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  registry := payroll.NewRegistry(store)

MIGRATION:
  Schema is migrated on New() with golang-migrate from the embedded
  migrations/ directory (see migrate.go).

SEE ALSO:
  - payroll/store.go: Interface definition
  - store/memory/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/nurse-pay/payroll"
)

// Store implements payroll.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ payroll.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// RATES
// =============================================================================

const rateColumns = `id, acronym, description, establishment, service, hours, hourly_rate,
	salary, start_time, end_time, exclude_from_count, created_at, updated_at`

// ListRates returns every rate in insertion order.
func (s *Store) ListRates(ctx context.Context) ([]payroll.Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+rateColumns+" FROM rates ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rates := []payroll.Rate{}
	for rows.Next() {
		r, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		rates = append(rates, r)
	}
	return rates, rows.Err()
}

// GetRate retrieves a rate by ID.
func (s *Store) GetRate(ctx context.Context, id string) (*payroll.Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := scanRate(s.db.QueryRowContext(ctx, "SELECT "+rateColumns+" FROM rates WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// SaveRate inserts or updates a rate.
func (s *Store) SaveRate(ctx context.Context, rate payroll.Rate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveRate(ctx, s.db, rate)
}

func saveRate(ctx context.Context, db execer, r payroll.Rate) error {
	query := `
		INSERT INTO rates (` + rateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			acronym = excluded.acronym,
			description = excluded.description,
			establishment = excluded.establishment,
			service = excluded.service,
			hours = excluded.hours,
			hourly_rate = excluded.hourly_rate,
			salary = excluded.salary,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			exclude_from_count = excluded.exclude_from_count,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`
	_, err := db.ExecContext(ctx, query,
		r.ID, r.Acronym, r.Description, r.Establishment, r.Service,
		r.Hours, r.HourlyRate, r.Salary, r.StartTime, r.EndTime,
		r.ExcludeFromCount, formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save rate %s: %w", r.ID, err)
	}
	return nil
}

// DeleteRate removes a rate.
func (s *Store) DeleteRate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM rates WHERE id = ?", id)
	return err
}

func scanRate(row rowScanner) (payroll.Rate, error) {
	var r payroll.Rate
	var createdAt, updatedAt sql.NullString
	err := row.Scan(&r.ID, &r.Acronym, &r.Description, &r.Establishment, &r.Service,
		&r.Hours, &r.HourlyRate, &r.Salary, &r.StartTime, &r.EndTime,
		&r.ExcludeFromCount, &createdAt, &updatedAt)
	if err != nil {
		return payroll.Rate{}, err
	}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}

// =============================================================================
// MISSIONS
// =============================================================================

const missionColumns = `id, date, rate_id, establishment, service, notes, status,
	real_gross_salary, real_net_salary, start_time, end_time, created_at, updated_at`

// ListMissions returns every mission in insertion order.
func (s *Store) ListMissions(ctx context.Context) ([]payroll.Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+missionColumns+" FROM missions ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	missions := []payroll.Mission{}
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		missions = append(missions, m)
	}
	return missions, rows.Err()
}

// GetMission retrieves a mission by ID.
func (s *Store) GetMission(ctx context.Context, id string) (*payroll.Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, err := scanMission(s.db.QueryRowContext(ctx, "SELECT "+missionColumns+" FROM missions WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SaveMission inserts or updates a mission.
func (s *Store) SaveMission(ctx context.Context, mission payroll.Mission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveMission(ctx, s.db, mission)
}

func saveMission(ctx context.Context, db execer, m payroll.Mission) error {
	query := `
		INSERT INTO missions (` + missionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			rate_id = excluded.rate_id,
			establishment = excluded.establishment,
			service = excluded.service,
			notes = excluded.notes,
			status = excluded.status,
			real_gross_salary = excluded.real_gross_salary,
			real_net_salary = excluded.real_net_salary,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`
	_, err := db.ExecContext(ctx, query,
		m.ID, m.Date, m.RateID, m.Establishment, m.Service, m.Notes, string(m.Status),
		m.RealGrossSalary, m.RealNetSalary, m.StartTime, m.EndTime,
		formatTime(m.CreatedAt), formatTime(m.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save mission %s: %w", m.ID, err)
	}
	return nil
}

// DeleteMission removes a mission.
func (s *Store) DeleteMission(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM missions WHERE id = ?", id)
	return err
}

func scanMission(row rowScanner) (payroll.Mission, error) {
	var m payroll.Mission
	var status string
	var createdAt, updatedAt sql.NullString
	err := row.Scan(&m.ID, &m.Date, &m.RateID, &m.Establishment, &m.Service, &m.Notes, &status,
		&m.RealGrossSalary, &m.RealNetSalary, &m.StartTime, &m.EndTime, &createdAt, &updatedAt)
	if err != nil {
		return payroll.Mission{}, err
	}
	m.Status = payroll.Status(status)
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	return m, nil
}

// =============================================================================
// SETTINGS
// =============================================================================

// LoadSettings returns every stored setting, or nil when none exist.
func (s *Store) LoadSettings(ctx context.Context) (payroll.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT name, value_json FROM settings ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings payroll.Settings
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, err
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("failed to decode setting %s: %w", name, err)
		}
		if settings == nil {
			settings = payroll.Settings{}
		}
		settings[name] = value
	}
	return settings, rows.Err()
}

// SaveSettings replaces the stored settings.
func (s *Store) SaveSettings(ctx context.Context, settings payroll.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := replaceSettings(ctx, tx, settings); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceSettings(ctx context.Context, db execer, settings payroll.Settings) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM settings"); err != nil {
		return err
	}
	for name, value := range settings {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode setting %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx,
			"INSERT INTO settings (name, value_json) VALUES (?, ?)", name, string(raw),
		); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// STATE
// =============================================================================

// ReplaceAll swaps every table's content in one transaction.
func (s *Store) ReplaceAll(ctx context.Context, state payroll.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"missions", "rates"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	for _, r := range state.Rates {
		if err := saveRate(ctx, tx, r); err != nil {
			return err
		}
	}
	for _, m := range state.Missions {
		if err := saveMission(ctx, tx, m); err != nil {
			return err
		}
	}
	if err := replaceSettings(ctx, tx, state.Settings); err != nil {
		return err
	}

	return tx.Commit()
}

// =============================================================================
// UTILITIES
// =============================================================================

func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s.String)
	return t
}
