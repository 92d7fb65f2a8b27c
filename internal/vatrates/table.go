// Package vatrates holds the per-country standard VAT rates and trade-bloc
// membership used to price line items.
package vatrates

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/patternseek/ecommerce/pkg/types"
)

//go:embed rates.yaml
var defaultRates []byte

var hundred = decimal.NewFromInt(100)

// Country is one entry of the rate table.
type Country struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Rate   decimal.Decimal `json:"rate"`
	Member bool            `json:"member"`
}

// Table is an immutable lookup of country rates. The zero value knows no countries.
type Table struct {
	byCode map[string]Country
}

type rateFile struct {
	Countries map[string]rateEntry `yaml:"countries"`
}

type rateEntry struct {
	Name         string  `yaml:"name"`
	StandardRate float64 `yaml:"standard_rate"`
	Member       bool    `yaml:"member"`
}

// Default returns the table compiled into the binary.
func Default() (*Table, error) {
	return Parse(defaultRates)
}

// Load returns the table at path, or the compiled-in table when path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening vat rates %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes a YAML rate table.
func Read(r io.Reader) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading vat rates: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML rate table held in memory.
func Parse(raw []byte) (*Table, error) {
	var file rateFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decoding vat rates: %w", err)
	}
	if len(file.Countries) == 0 {
		return nil, fmt.Errorf("vat rates: no countries defined")
	}

	table := &Table{byCode: make(map[string]Country, len(file.Countries))}
	for rawCode, entry := range file.Countries {
		code := types.NormalizeCountry(rawCode)
		if !types.IsCountryCode(code) {
			return nil, fmt.Errorf("vat rates: invalid country code %q", rawCode)
		}
		if _, dup := table.byCode[code]; dup {
			return nil, fmt.Errorf("vat rates: country %s listed twice", code)
		}
		if entry.StandardRate < 0 || entry.StandardRate > 100 {
			return nil, fmt.Errorf("vat rates: %s rate %v out of range", code, entry.StandardRate)
		}
		name := entry.Name
		if name == "" {
			name = code
		}
		table.byCode[code] = Country{
			Code:   code,
			Name:   name,
			Rate:   decimal.NewFromFloat(entry.StandardRate).Div(hundred),
			Member: entry.Member,
		}
	}
	return table, nil
}

// Rate returns the standard rate for country as a fraction. Unknown countries
// report false and a zero rate.
func (t *Table) Rate(country string) (decimal.Decimal, bool) {
	if t == nil {
		return decimal.Zero, false
	}
	c, ok := t.byCode[types.NormalizeCountry(country)]
	if !ok {
		return decimal.Zero, false
	}
	return c.Rate, true
}

// IsMember reports whether country belongs to the trade bloc.
func (t *Table) IsMember(country string) bool {
	if t == nil {
		return false
	}
	return t.byCode[types.NormalizeCountry(country)].Member
}

// Countries lists the trade-bloc members ordered by name.
func (t *Table) Countries() []Country {
	if t == nil {
		return nil
	}
	out := make([]Country, 0, len(t.byCode))
	for _, c := range t.byCode {
		if c.Member {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
