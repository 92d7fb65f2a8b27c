package enums

import "fmt"

// LocationClass places the consumption country relative to the vendor.
type LocationClass string

const (
	LocationClassLocal       LocationClass = "local"
	LocationClassEU          LocationClass = "eu"
	LocationClassRestOfWorld LocationClass = "rest_of_world"
)

var validLocationClasss = []LocationClass{
	LocationClassLocal,
	LocationClassEU,
	LocationClassRestOfWorld,
}

// String implements fmt.Stringer.
func (v LocationClass) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v LocationClass) IsValid() bool {
	for _, candidate := range validLocationClasss {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseLocationClass converts raw input into a LocationClass.
func ParseLocationClass(value string) (LocationClass, error) {
	for _, candidate := range validLocationClasss {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid location class %q", value)
}
