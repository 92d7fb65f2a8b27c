package vatrates

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	rate, ok := table.Rate("es")
	require.True(t, ok)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.21")), "got %s", rate)

	rate, ok = table.Rate("FI")
	require.True(t, ok)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.255")), "got %s", rate)

	assert.True(t, table.IsMember("DE"))
	assert.False(t, table.IsMember("GB"))
	assert.False(t, table.IsMember("US"))

	rate, ok = table.Rate("US")
	assert.False(t, ok)
	assert.True(t, rate.IsZero())
}

func TestCountriesListsMembersByName(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	countries := table.Countries()
	require.Len(t, countries, 27)
	assert.Equal(t, "Austria", countries[0].Name)
	assert.Equal(t, "Sweden", countries[len(countries)-1].Name)
	for _, c := range countries {
		assert.NotEqual(t, "GB", c.Code)
	}
}

func TestParseRejectsBadTables(t *testing.T) {
	cases := map[string]string{
		"empty":        "countries: {}",
		"bad code":     "countries:\n  XX: { name: Nowhere, standard_rate: 10, member: true }",
		"out of range": "countries:\n  FR: { name: France, standard_rate: 120, member: true }",
		"duplicate":    "countries:\n  fr: { standard_rate: 20 }\n  FR: { standard_rate: 20 }",
		"not yaml":     "countries: [",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("countries:\n  CH: { name: Switzerland, standard_rate: 8.1 }\n"), 0o600))

	table, err := Load(path)
	require.NoError(t, err)
	rate, ok := table.Rate("CH")
	require.True(t, ok)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.081")), "got %s", rate)
	assert.False(t, table.IsMember("CH"))
	assert.Empty(t, table.Countries())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestReadAndNilTable(t *testing.T) {
	table, err := Read(strings.NewReader("countries:\n  IE: { name: Ireland, standard_rate: 23, member: true }\n"))
	require.NoError(t, err)
	assert.True(t, table.IsMember("ie"))

	var empty *Table
	_, ok := empty.Rate("IE")
	assert.False(t, ok)
	assert.False(t, empty.IsMember("IE"))
	assert.Nil(t, empty.Countries())
}
