package types

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	countryValidatorOnce sync.Once
	countryValidator     *validator.Validate
)

func countryCodes() *validator.Validate {
	countryValidatorOnce.Do(func() {
		countryValidator = validator.New()
	})
	return countryValidator
}

// NormalizeCountry trims and upper-cases a country code.
func NormalizeCountry(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsCountryCode reports whether code is an ISO 3166-1 alpha-2 country code.
func IsCountryCode(code string) bool {
	if code == "" {
		return false
	}
	return countryCodes().Var(code, "iso3166_1_alpha2") == nil
}

// ParseCountry normalizes code and checks it. The empty string is accepted
// and means the signal is absent.
func ParseCountry(code string) (string, error) {
	normalized := NormalizeCountry(code)
	if normalized == "" {
		return "", nil
	}
	if !IsCountryCode(normalized) {
		return "", fmt.Errorf("invalid country code %q", code)
	}
	return normalized, nil
}
