package enums

import "fmt"

// BuyerClass distinguishes VAT-registered businesses from consumers.
type BuyerClass string

const (
	BuyerClassBusiness BuyerClass = "business"
	BuyerClassConsumer BuyerClass = "consumer"
)

var validBuyerClasss = []BuyerClass{
	BuyerClassBusiness,
	BuyerClassConsumer,
}

// String implements fmt.Stringer.
func (v BuyerClass) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v BuyerClass) IsValid() bool {
	for _, candidate := range validBuyerClasss {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseBuyerClass converts raw input into a BuyerClass.
func ParseBuyerClass(value string) (BuyerClass, error) {
	for _, candidate := range validBuyerClasss {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid buyer class %q", value)
}
