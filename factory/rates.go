/*
Package factory provides JSON to Go rate catalog conversion.

PURPOSE:
  Converts JSON rate catalogs into payroll.Rate templates. A fresh
  installation is seeded from the embedded default catalog; a different
  catalog can be supplied as a file without code changes.

JSON SCHEMA:
  {
    "version": "1.0",
    "rates": [
      {
        "acronym": "Urg C7",
        "description": "Urgences coupe de 7h",
        "establishment": "Clinique de Cesson Sévigné",
        "service": "Urgences",
        "hours": 7,
        "salary": 102.33,
        "hourly_rate": 14.619,
        "start_time": "08:00",
        "end_time": "15:00",
        "exclude_from_count": false
      }
    ]
  }

KEY FEATURES:
  - Validates every entry with payroll.ValidateRate
  - Reports all invalid entries at once, by position and acronym
  - Ids are not part of the catalog: the Registry assigns them on seeding

USAGE:
  rates, err := factory.ParseCatalog(data)
  registry := payroll.NewRegistry(store, payroll.WithDefaultRates(rates))

SEE ALSO:
  - payroll/validate.go: Rules applied to each entry
  - catalog/default_rates.json: Built-in catalog
*/
package factory

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/warp/nurse-pay/payroll"
)

//go:embed catalog/default_rates.json
var defaultCatalog []byte

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// CatalogJSON is the JSON representation of a rate catalog.
type CatalogJSON struct {
	Version string     `json:"version"`
	Rates   []RateJSON `json:"rates"`
}

// RateJSON is the JSON representation of one rate template.
type RateJSON struct {
	Acronym          string  `json:"acronym"`
	Description      string  `json:"description,omitempty"`
	Establishment    string  `json:"establishment,omitempty"`
	Service          string  `json:"service,omitempty"`
	Hours            float64 `json:"hours"`
	HourlyRate       float64 `json:"hourly_rate,omitempty"`
	Salary           float64 `json:"salary,omitempty"`
	StartTime        string  `json:"start_time,omitempty"`
	EndTime          string  `json:"end_time,omitempty"`
	ExcludeFromCount bool    `json:"exclude_from_count,omitempty"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseCatalog converts a JSON catalog into rate templates.
func ParseCatalog(data []byte) ([]payroll.Rate, error) {
	var catalog CatalogJSON
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("invalid rate catalog: %w", err)
	}
	if len(catalog.Rates) == 0 {
		return nil, fmt.Errorf("invalid rate catalog: no rates")
	}

	rates := make([]payroll.Rate, 0, len(catalog.Rates))
	var problems []string
	for i, rj := range catalog.Rates {
		rate := rj.ToRate()
		if res := payroll.ValidateRate(rate); !res.IsValid {
			problems = append(problems, fmt.Sprintf("rate %d (%s): %s",
				i, rj.Acronym, strings.Join(res.Errors, ", ")))
			continue
		}
		rates = append(rates, rate)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid rate catalog:\n- %s", strings.Join(problems, "\n- "))
	}
	return rates, nil
}

// LoadCatalogFile reads and parses a catalog file.
func LoadCatalogFile(path string) ([]payroll.Rate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate catalog: %w", err)
	}
	return ParseCatalog(data)
}

// DefaultRates returns the built-in catalog.
func DefaultRates() []payroll.Rate {
	rates, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded rate catalog is invalid: %v", err))
	}
	return rates
}

// ToRate converts the JSON entry to a rate template without id.
func (rj RateJSON) ToRate() payroll.Rate {
	return payroll.Rate{
		Acronym:          strings.TrimSpace(rj.Acronym),
		Description:      rj.Description,
		Establishment:    rj.Establishment,
		Service:          rj.Service,
		Hours:            rj.Hours,
		HourlyRate:       rj.HourlyRate,
		Salary:           rj.Salary,
		StartTime:        rj.StartTime,
		EndTime:          rj.EndTime,
		ExcludeFromCount: rj.ExcludeFromCount,
	}
}

// FromRate converts a rate to its catalog entry.
func FromRate(r payroll.Rate) RateJSON {
	return RateJSON{
		Acronym:          r.Acronym,
		Description:      r.Description,
		Establishment:    r.Establishment,
		Service:          r.Service,
		Hours:            r.Hours,
		HourlyRate:       r.HourlyRate,
		Salary:           r.Salary,
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		ExcludeFromCount: r.ExcludeFromCount,
	}
}

// ToJSON renders rates as a catalog, e.g. to share a rate set.
func ToJSON(rates []payroll.Rate) ([]byte, error) {
	catalog := CatalogJSON{Version: "1.0", Rates: make([]RateJSON, len(rates))}
	for i, r := range rates {
		catalog.Rates[i] = FromRate(r)
	}
	return json.MarshalIndent(catalog, "", "  ")
}
