package types

import (
	"strings"
)

// Address is the buyer's billing address. Only Line1, PostalCode and Country
// are required before a basket can be paid for.
type Address struct {
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	Region     string  `json:"region"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}

// Normalize trims every field and upper-cases the country code.
func (a Address) Normalize() Address {
	out := Address{
		Line1:      strings.TrimSpace(a.Line1),
		City:       strings.TrimSpace(a.City),
		Region:     strings.TrimSpace(a.Region),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    NormalizeCountry(a.Country),
	}
	if a.Line2 != nil {
		if line2 := strings.TrimSpace(*a.Line2); line2 != "" {
			out.Line2 = &line2
		}
	}
	return out
}

// Ready reports whether the required fields are present.
func (a Address) Ready() bool {
	return strings.TrimSpace(a.Line1) != "" &&
		strings.TrimSpace(a.PostalCode) != "" &&
		strings.TrimSpace(a.Country) != ""
}

// IsZero reports whether no field has been supplied.
func (a Address) IsZero() bool {
	return a.Line1 == "" && a.Line2 == nil && a.City == "" && a.Region == "" && a.PostalCode == "" && a.Country == ""
}

// String renders the address on a single line, skipping empty parts.
func (a Address) String() string {
	parts := []string{a.Line1}
	if a.Line2 != nil {
		parts = append(parts, *a.Line2)
	}
	parts = append(parts, a.City, a.Region, a.PostalCode, a.Country)

	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
