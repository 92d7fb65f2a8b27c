// Package vatnumber checks VAT registration numbers against the UK (HMRC)
// and EU (VIES) registries.
package vatnumber

import "strings"

var separators = strings.NewReplacer(" ", "", "-", "", "_", "", "/", "", ".", "")

// Normalize strips separators and upper-cases number. A leading prefix equal
// to country is dropped, since both registries expect the bare number.
func Normalize(country, number string) string {
	cleaned := strings.ToUpper(separators.Replace(strings.TrimSpace(number)))
	prefix := registryCountry(strings.ToUpper(strings.TrimSpace(country)))
	if prefix != "" && len(cleaned) > len(prefix) && strings.HasPrefix(cleaned, prefix) {
		cleaned = cleaned[len(prefix):]
	}
	return cleaned
}

// registryCountry maps an ISO country code to the code the EU registries use.
func registryCountry(country string) string {
	if country == "GR" {
		return "EL"
	}
	return country
}
