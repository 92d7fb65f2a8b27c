package payments

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {}, "KRW": {}, "MGA": {},
	"PYG": {}, "RWF": {}, "UGX": {}, "VND": {}, "VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// MinorUnits converts amount into the processor's integer representation for
// currency, e.g. 12.34 GBP becomes 1234.
func MinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return 0, fmt.Errorf("invalid currency %q", currency)
	}
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative")
	}
	exp := int32(2)
	if _, ok := zeroDecimalCurrencies[currency]; ok {
		exp = 0
	}
	return amount.Shift(exp).Round(0).IntPart(), nil
}
