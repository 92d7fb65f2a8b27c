package enums

import "fmt"

// ProductType describes how a line item is supplied, which drives its tax treatment.
type ProductType string

const (
	ProductTypeDeliveredGoods     ProductType = "delivered_goods"
	ProductTypeNormalServices     ProductType = "normal_services"
	ProductTypeElectronicServices ProductType = "electronic_services"
)

var validProductTypes = []ProductType{
	ProductTypeDeliveredGoods,
	ProductTypeNormalServices,
	ProductTypeElectronicServices,
}

// String implements fmt.Stringer.
func (v ProductType) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v ProductType) IsValid() bool {
	for _, candidate := range validProductTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseProductType converts raw input into a ProductType.
func ParseProductType(value string) (ProductType, error) {
	for _, candidate := range validProductTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product type %q", value)
}
