package factory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/nurse-pay/payroll"
)

func TestDefaultRates(t *testing.T) {
	rates := DefaultRates()
	require.NotEmpty(t, rates)

	acronyms := make(map[string]bool)
	for _, r := range rates {
		assert.Empty(t, r.ID, "catalog entries carry no id")
		assert.True(t, payroll.ValidateRate(r).IsValid, r.Acronym)
		assert.False(t, acronyms[r.Acronym], "duplicate acronym %q", r.Acronym)
		acronyms[r.Acronym] = true
	}
	assert.True(t, acronyms["Urg C7"])
}

func TestParseCatalog(t *testing.T) {
	data := []byte(`{
		"version": "1.0",
		"rates": [
			{"acronym": " Nuit 12h ", "establishment": "CHU Rennes", "hours": 12, "salary": 176.7,
			 "start_time": "19:00", "end_time": "07:00"},
			{"acronym": "Formation", "hours": 7, "hourly_rate": 12, "exclude_from_count": true},
			{"acronym": "Astreinte", "hours": 0, "salary": 75.5}
		]
	}`)

	rates, err := ParseCatalog(data)
	require.NoError(t, err)
	require.Len(t, rates, 3)

	assert.Equal(t, "Nuit 12h", rates[0].Acronym)
	assert.Equal(t, "19:00", rates[0].StartTime)
	assert.True(t, rates[1].ExcludeFromCount)
	assert.Equal(t, 12.0, rates[1].HourlyRate)
	assert.True(t, rates[2].IsIndemnity())
}

func TestParseCatalog_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		message string
	}{
		{"malformed json", `{"rates": [`, "invalid rate catalog"},
		{"no rates", `{"version": "1.0", "rates": []}`, "no rates"},
		{"invalid entries are all reported", `{"rates": [
			{"acronym": "", "hours": 7, "salary": 100},
			{"acronym": "OK", "hours": 7, "salary": 100},
			{"acronym": "Bad hours", "hours": 7.1, "salary": 100}
		]}`, "rate 2 (Bad hours)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}

	_, err := ParseCatalog([]byte(`{"rates": [{"acronym": "", "hours": 7, "salary": 100}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate 0 ()")
}

func TestCatalogFileRoundTrip(t *testing.T) {
	// GIVEN: The default rates written out as a catalog file
	data, err := ToJSON(DefaultRates())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "rates.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	// WHEN: Loading it back
	rates, err := LoadCatalogFile(path)
	require.NoError(t, err)

	// THEN: The same templates come back
	assert.Equal(t, DefaultRates(), rates)

	_, err = LoadCatalogFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "read rate catalog")
}
