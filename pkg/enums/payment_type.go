package enums

import "fmt"

// PaymentType records the instrument family used for a charge.
type PaymentType string

const (
	PaymentTypeCard PaymentType = "card"
)

var validPaymentTypes = []PaymentType{
	PaymentTypeCard,
}

// String implements fmt.Stringer.
func (v PaymentType) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v PaymentType) IsValid() bool {
	for _, candidate := range validPaymentTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParsePaymentType converts raw input into a PaymentType.
func ParsePaymentType(value string) (PaymentType, error) {
	for _, candidate := range validPaymentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment type %q", value)
}
