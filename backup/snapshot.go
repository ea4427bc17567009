/*
Package backup moves the whole record state in and out of the process.

SNAPSHOT:
  A snapshot is the full state as one JSON document:

    {"version": "1.0", "exportDate": "...", "rates": [...],
     "missions": [...], "settings": {...}}

  Import checks that rates and missions are arrays whose every element
  decodes and carries a unique non-empty id, then swaps the state in one store transaction. A rejected
  snapshot leaves the current state untouched.

RELAY:
  The Manager writes snapshots to one or more Targets (a directory, an
  S3 bucket, a Google Drive folder), keeps the newest MaxBackups objects
  per target and restores from the newest one. Only one backup runs at a
  time; a concurrent request fails with generic.ErrBackupInProgress.

SEE ALSO:
  - target.go: Target contract and the directory target
  - manager.go: Single-flight backups, pruning and restore
  - scheduler.go: Periodic backups
*/
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/warp/nurse-pay/generic"
	"github.com/warp/nurse-pay/payroll"
)

// SnapshotVersion is written into every snapshot.
const SnapshotVersion = "1.0"

// Snapshot is the serialized form of the whole state.
type Snapshot struct {
	Version    string            `json:"version"`
	ExportDate time.Time         `json:"exportDate"`
	Rates      []payroll.Rate    `json:"rates"`
	Missions   []payroll.Mission `json:"missions"`
	Settings   payroll.Settings  `json:"settings,omitempty"`
}

// State is the part of the record store snapshots are taken from and
// restored into.
type State interface {
	State(ctx context.Context) (payroll.State, error)
	Replace(ctx context.Context, state payroll.State) error
}

// Take captures the current state.
func Take(ctx context.Context, src State, now time.Time) (Snapshot, error) {
	st, err := src.State(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Version:    SnapshotVersion,
		ExportDate: now.UTC(),
		Rates:      st.Rates,
		Missions:   st.Missions,
		Settings:   st.Settings,
	}, nil
}

// Encode renders a snapshot as indented JSON.
func Encode(s Snapshot) ([]byte, error) {
	if s.Rates == nil {
		s.Rates = []payroll.Rate{}
	}
	if s.Missions == nil {
		s.Missions = []payroll.Mission{}
	}
	return json.MarshalIndent(s, "", "  ")
}

// Decode parses and checks a snapshot. Every failure wraps
// generic.ErrInvalidSnapshot.
func Decode(data []byte) (Snapshot, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", generic.ErrInvalidSnapshot, err)
	}
	if raw == nil {
		return Snapshot{}, fmt.Errorf("%w: not a JSON object", generic.ErrInvalidSnapshot)
	}

	var s Snapshot
	if err := decodeArray(raw, "rates", &s.Rates); err != nil {
		return Snapshot{}, err
	}
	if err := decodeArray(raw, "missions", &s.Missions); err != nil {
		return Snapshot{}, err
	}
	if err := checkIDs("rates", s.Rates, func(r payroll.Rate) string { return r.ID }); err != nil {
		return Snapshot{}, err
	}
	if err := checkIDs("missions", s.Missions, func(m payroll.Mission) string { return m.ID }); err != nil {
		return Snapshot{}, err
	}
	if v, ok := raw["settings"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &s.Settings); err != nil {
			return Snapshot{}, fmt.Errorf("%w: settings: %v", generic.ErrInvalidSnapshot, err)
		}
	}
	if v, ok := raw["version"]; ok {
		_ = json.Unmarshal(v, &s.Version)
	}
	if v, ok := raw["exportDate"]; ok {
		_ = json.Unmarshal(v, &s.ExportDate)
	}
	return s, nil
}

func decodeArray[T any](raw map[string]json.RawMessage, field string, dst *[]T) error {
	v, ok := raw[field]
	if !ok || isNull(v) {
		return fmt.Errorf("%w: %s missing", generic.ErrInvalidSnapshot, field)
	}
	trimmed := bytes.TrimSpace(v)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return fmt.Errorf("%w: %s must be an array", generic.ErrInvalidSnapshot, field)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return fmt.Errorf("%w: %s: %v", generic.ErrInvalidSnapshot, field, err)
	}
	out := make([]T, len(items))
	for i, item := range items {
		if err := json.Unmarshal(item, &out[i]); err != nil {
			return fmt.Errorf("%w: %s[%d]: %v", generic.ErrInvalidSnapshot, field, i, err)
		}
	}
	*dst = out
	return nil
}

// checkIDs rejects records the store could not key: a blank id, or an id
// already used earlier in the same array.
func checkIDs[T any](field string, items []T, id func(T) string) error {
	seen := make(map[string]int, len(items))
	for i, item := range items {
		key := id(item)
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("%w: %s[%d]: empty id", generic.ErrInvalidSnapshot, field, i)
		}
		if first, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s[%d]: id %q already used by %s[%d]", generic.ErrInvalidSnapshot, field, i, key, field, first)
		}
		seen[key] = i
	}
	return nil
}

func isNull(v json.RawMessage) bool {
	return string(bytes.TrimSpace(v)) == "null"
}

// ImportResult reports what an import loaded.
type ImportResult struct {
	Rates    int `json:"rates"`
	Missions int `json:"missions"`
}

// Import decodes a snapshot and replaces the whole state with it. A
// snapshot without settings keeps the current ones.
func Import(ctx context.Context, dst State, data []byte) (ImportResult, error) {
	s, err := Decode(data)
	if err != nil {
		return ImportResult{}, err
	}
	settings := s.Settings
	if settings == nil {
		current, err := dst.State(ctx)
		if err != nil {
			return ImportResult{}, err
		}
		settings = current.Settings
	}
	if err := dst.Replace(ctx, payroll.State{Rates: s.Rates, Missions: s.Missions, Settings: settings}); err != nil {
		return ImportResult{}, err
	}
	return ImportResult{Rates: len(s.Rates), Missions: len(s.Missions)}, nil
}
