package enums

import "fmt"

// BasketState tracks a basket through evidence confirmation to completion.
type BasketState string

const (
	BasketStateDraft             BasketState = "draft"
	BasketStateEvidenceConfirmed BasketState = "evidence_confirmed"
	BasketStateComplete          BasketState = "complete"
)

var validBasketStates = []BasketState{
	BasketStateDraft,
	BasketStateEvidenceConfirmed,
	BasketStateComplete,
}

// String implements fmt.Stringer.
func (v BasketState) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v BasketState) IsValid() bool {
	for _, candidate := range validBasketStates {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseBasketState converts raw input into a BasketState.
func ParseBasketState(value string) (BasketState, error) {
	for _, candidate := range validBasketStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid basket state %q", value)
}
