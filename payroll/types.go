// Package payroll implements the record store of the pay tracker: rate
// templates, the missions worked against them, and their validation.
package payroll

import (
	"strings"
	"time"

	"github.com/warp/nurse-pay/generic"
)

// UnspecifiedEstablishment groups missions that name no establishment.
const UnspecifiedEstablishment = "Unspecified"

// =============================================================================
// RATE - Reusable pay template
// =============================================================================

// Rate is a pay template: a shift type with its duration and pay.
// A zero-hour rate is an indemnity, paid as a flat amount.
type Rate struct {
	ID               string    `json:"id"`
	Acronym          string    `json:"acronym"`
	Description      string    `json:"description,omitempty"`
	Establishment    string    `json:"establishment,omitempty"`
	Service          string    `json:"service,omitempty"`
	Hours            float64   `json:"hours"`
	HourlyRate       float64   `json:"hourlyRate,omitempty"`
	Salary           float64   `json:"salary,omitempty"`
	StartTime        string    `json:"startTime,omitempty"`
	EndTime          string    `json:"endTime,omitempty"`
	ExcludeFromCount bool      `json:"excludeFromCount,omitempty"`
	CreatedAt        time.Time `json:"createdAt,omitzero"`
	UpdatedAt        time.Time `json:"updatedAt,omitzero"`
}

// IsIndemnity reports whether the rate is a flat amount with no hours.
func (r Rate) IsIndemnity() bool { return r.Hours == 0 }

// RatePatch is a partial update. Nil fields are left unchanged.
type RatePatch struct {
	Acronym          *string  `json:"acronym,omitempty"`
	Description      *string  `json:"description,omitempty"`
	Establishment    *string  `json:"establishment,omitempty"`
	Service          *string  `json:"service,omitempty"`
	Hours            *float64 `json:"hours,omitempty"`
	HourlyRate       *float64 `json:"hourlyRate,omitempty"`
	Salary           *float64 `json:"salary,omitempty"`
	StartTime        *string  `json:"startTime,omitempty"`
	EndTime          *string  `json:"endTime,omitempty"`
	ExcludeFromCount *bool    `json:"excludeFromCount,omitempty"`
}

// Apply returns r with the patch merged over it.
func (p RatePatch) Apply(r Rate) Rate {
	setString(&r.Acronym, p.Acronym)
	setString(&r.Description, p.Description)
	setString(&r.Establishment, p.Establishment)
	setString(&r.Service, p.Service)
	setFloat(&r.Hours, p.Hours)
	setFloat(&r.HourlyRate, p.HourlyRate)
	setFloat(&r.Salary, p.Salary)
	setString(&r.StartTime, p.StartTime)
	setString(&r.EndTime, p.EndTime)
	if p.ExcludeFromCount != nil {
		r.ExcludeFromCount = *p.ExcludeFromCount
	}
	return r
}

// =============================================================================
// MISSION - One worked (or planned) shift
// =============================================================================

type Status string

const (
	StatusPlanned   Status = "planned"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPlanned, StatusConfirmed, StatusCompleted, StatusCancelled}

func (s Status) Valid() bool {
	switch s {
	case StatusPlanned, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Label returns the human-readable status.
func (s Status) Label() string {
	switch s {
	case StatusPlanned:
		return "Planned"
	case StatusConfirmed:
		return "Confirmed"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

// Mission is a shift worked against a Rate. Date is "YYYY-MM-DD"; older
// exports may carry a time suffix, which lookups ignore.
type Mission struct {
	ID              string    `json:"id"`
	Date            string    `json:"date"`
	RateID          string    `json:"rateId"`
	Establishment   string    `json:"establishment,omitempty"`
	Service         string    `json:"service,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	Status          Status    `json:"status"`
	RealGrossSalary float64   `json:"realGrossSalary,omitempty"`
	RealNetSalary   float64   `json:"realNetSalary,omitempty"`
	StartTime       string    `json:"startTime,omitempty"`
	EndTime         string    `json:"endTime,omitempty"`
	CreatedAt       time.Time `json:"createdAt,omitzero"`
	UpdatedAt       time.Time `json:"updatedAt,omitzero"`
}

// DateKey returns the mission date without any time suffix.
func (m Mission) DateKey() string { return generic.DateKey(m.Date) }

// Day parses the mission date.
func (m Mission) Day() (generic.TimePoint, error) { return generic.ParseDateKey(m.Date) }

// Counts reports whether the mission takes part in monetary and hour totals.
func (m Mission) Counts() bool { return m.Status != StatusCancelled }

// MissionPatch is a partial update. Nil fields are left unchanged.
type MissionPatch struct {
	Date            *string  `json:"date,omitempty"`
	RateID          *string  `json:"rateId,omitempty"`
	Establishment   *string  `json:"establishment,omitempty"`
	Service         *string  `json:"service,omitempty"`
	Notes           *string  `json:"notes,omitempty"`
	Status          *Status  `json:"status,omitempty"`
	RealGrossSalary *float64 `json:"realGrossSalary,omitempty"`
	RealNetSalary   *float64 `json:"realNetSalary,omitempty"`
	StartTime       *string  `json:"startTime,omitempty"`
	EndTime         *string  `json:"endTime,omitempty"`
}

// Apply returns m with the patch merged over it.
func (p MissionPatch) Apply(m Mission) Mission {
	setString(&m.Date, p.Date)
	setString(&m.RateID, p.RateID)
	setString(&m.Establishment, p.Establishment)
	setString(&m.Service, p.Service)
	setString(&m.Notes, p.Notes)
	if p.Status != nil {
		m.Status = *p.Status
	}
	setFloat(&m.RealGrossSalary, p.RealGrossSalary)
	setFloat(&m.RealNetSalary, p.RealNetSalary)
	setString(&m.StartTime, p.StartTime)
	setString(&m.EndTime, p.EndTime)
	return m
}

// EstablishmentFor resolves where a mission took place: the mission's own
// establishment, else the rate's, else UnspecifiedEstablishment.
func EstablishmentFor(m Mission, r *Rate) string {
	if name := strings.TrimSpace(m.Establishment); name != "" {
		return name
	}
	if r != nil {
		if name := strings.TrimSpace(r.Establishment); name != "" {
			return name
		}
	}
	return UnspecifiedEstablishment
}

// RateIndex maps rate ids to rates for lookups during aggregation.
type RateIndex map[string]Rate

func IndexRates(rates []Rate) RateIndex {
	idx := make(RateIndex, len(rates))
	for _, r := range rates {
		idx[r.ID] = r
	}
	return idx
}

// Lookup returns the rate or nil when the reference dangles.
func (idx RateIndex) Lookup(id string) *Rate {
	r, ok := idx[id]
	if !ok {
		return nil
	}
	return &r
}

// =============================================================================
// SETTINGS & STATE
// =============================================================================

// Settings is an opaque key/value object persisted with the records.
type Settings map[string]any

// DefaultSettings returns the settings of a fresh installation.
func DefaultSettings() Settings {
	return Settings{
		"autoBackup":           true,
		"backupInterval":       5,
		"defaultEstablishment": "",
		"notifications":        true,
	}
}

// Clone returns a shallow copy.
func (s Settings) Clone() Settings {
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// State is the full record set, as exported and imported.
type State struct {
	Rates    []Rate
	Missions []Mission
	Settings Settings
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
