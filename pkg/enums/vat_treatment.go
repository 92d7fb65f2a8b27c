package enums

import "fmt"

// VatTreatment selects which VAT rate applies to a line item.
type VatTreatment string

const (
	VatTreatmentVendorRate   VatTreatment = "vendor_rate"
	VatTreatmentCustomerRate VatTreatment = "customer_rate"
	VatTreatmentZero         VatTreatment = "zero"
)

var validVatTreatments = []VatTreatment{
	VatTreatmentVendorRate,
	VatTreatmentCustomerRate,
	VatTreatmentZero,
}

// String implements fmt.Stringer.
func (v VatTreatment) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v VatTreatment) IsValid() bool {
	for _, candidate := range validVatTreatments {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVatTreatment converts raw input into a VatTreatment.
func ParseVatTreatment(value string) (VatTreatment, error) {
	for _, candidate := range validVatTreatments {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid vat treatment %q", value)
}
