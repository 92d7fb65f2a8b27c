package enums

import "fmt"

// ChargeOutcome mirrors the payment provider's authorization result.
type ChargeOutcome string

const (
	ChargeOutcomeApproved       ChargeOutcome = "approved"
	ChargeOutcomeDeclined       ChargeOutcome = "declined"
	ChargeOutcomeActionRequired ChargeOutcome = "action_required"
)

var validChargeOutcomes = []ChargeOutcome{
	ChargeOutcomeApproved,
	ChargeOutcomeDeclined,
	ChargeOutcomeActionRequired,
}

// String implements fmt.Stringer.
func (v ChargeOutcome) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v ChargeOutcome) IsValid() bool {
	for _, candidate := range validChargeOutcomes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseChargeOutcome converts raw input into a ChargeOutcome.
func ParseChargeOutcome(value string) (ChargeOutcome, error) {
	for _, candidate := range validChargeOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid charge outcome %q", value)
}
