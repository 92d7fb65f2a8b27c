package enums

import "fmt"

// VatNumberStatus is the outcome of checking a VAT registration number against its registry.
type VatNumberStatus string

const (
	VatNumberStatusNone                 VatNumberStatus = "none"
	VatNumberStatusValid                VatNumberStatus = "valid"
	VatNumberStatusInvalid              VatNumberStatus = "invalid"
	VatNumberStatusUncheckedDueToOutage VatNumberStatus = "unchecked_due_to_outage"
)

var validVatNumberStatuss = []VatNumberStatus{
	VatNumberStatusNone,
	VatNumberStatusValid,
	VatNumberStatusInvalid,
	VatNumberStatusUncheckedDueToOutage,
}

// String implements fmt.Stringer.
func (v VatNumberStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v VatNumberStatus) IsValid() bool {
	for _, candidate := range validVatNumberStatuss {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVatNumberStatus converts raw input into a VatNumberStatus.
func ParseVatNumberStatus(value string) (VatNumberStatus, error) {
	for _, candidate := range validVatNumberStatuss {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid vat number status %q", value)
}

// IsAuthoritative reports whether the number's country outranks every other
// location signal. A registry outage fails open.
func (v VatNumberStatus) IsAuthoritative() bool {
	return v == VatNumberStatusValid || v == VatNumberStatusUncheckedDueToOutage
}

// IsVerified reports whether the registry positively confirmed the number.
// Outage results count as absent for risk reporting.
func (v VatNumberStatus) IsVerified() bool {
	return v == VatNumberStatusValid
}
