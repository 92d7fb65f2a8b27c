package vat

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/patternseek/ecommerce/pkg/enums"
	"github.com/patternseek/ecommerce/pkg/types"
)

// RateSource resolves per-country rates and trade-bloc membership.
type RateSource interface {
	Rate(country string) (decimal.Decimal, bool)
	IsMember(country string) bool
}

// Pricer prices line items for one vendor.
type Pricer struct {
	vendorCountry string
	vendorRate    decimal.Decimal
	rates         RateSource
}

// Input is everything pricing a single line item depends on.
type Input struct {
	ProductType        enums.ProductType
	NetPrice           decimal.Decimal
	Quantity           int
	BusinessBuyer      bool
	ConsumptionCountry string
}

// Priced is the outcome of pricing a line item.
type Priced struct {
	Buyer      enums.BuyerClass
	Location   enums.LocationClass
	Treatment  enums.VatTreatment
	Rate       decimal.Decimal
	VatPerItem decimal.Decimal
	Total      decimal.Decimal
	TotalVat   decimal.Decimal
}

// NewPricer builds a pricer for a vendor registered in vendorCountry.
func NewPricer(vendorCountry string, vendorRate decimal.Decimal, rates RateSource) (*Pricer, error) {
	country, err := types.ParseCountry(vendorCountry)
	if err != nil {
		return nil, fmt.Errorf("vendor country: %w", err)
	}
	if country == "" {
		return nil, errors.New("vendor country required")
	}
	if vendorRate.IsNegative() || vendorRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("vendor vat rate %s must be between 0 and 1", vendorRate)
	}
	if rates == nil {
		return nil, errors.New("rate source required")
	}
	return &Pricer{vendorCountry: country, vendorRate: vendorRate, rates: rates}, nil
}

// VendorCountry returns the vendor's normalized country code.
func (p *Pricer) VendorCountry() string { return p.vendorCountry }

// VendorRate returns the vendor's domestic rate.
func (p *Pricer) VendorRate() decimal.Decimal { return p.vendorRate }

// Location classifies country relative to the vendor. An unknown country is
// treated as rest of world.
func (p *Pricer) Location(country string) enums.LocationClass {
	country = types.NormalizeCountry(country)
	switch {
	case country == "":
		return enums.LocationClassRestOfWorld
	case country == p.vendorCountry:
		return enums.LocationClassLocal
	case p.rates.IsMember(country):
		return enums.LocationClassEU
	default:
		return enums.LocationClassRestOfWorld
	}
}

// Price classifies and prices one line item. It has no side effects, so
// pricing the same input twice gives the same result.
func (p *Pricer) Price(in Input) Priced {
	buyer := enums.BuyerClassConsumer
	if in.BusinessBuyer {
		buyer = enums.BuyerClassBusiness
	}
	location := p.Location(in.ConsumptionCountry)
	treatment := Classify(in.ProductType, buyer, location)

	rate := decimal.Zero
	switch treatment {
	case enums.VatTreatmentVendorRate:
		rate = p.vendorRate
	case enums.VatTreatmentCustomerRate:
		if location == enums.LocationClassLocal {
			rate = p.vendorRate
		} else if r, ok := p.rates.Rate(in.ConsumptionCountry); ok {
			rate = r
		}
	}

	quantity := decimal.NewFromInt(int64(max(in.Quantity, 1)))
	vatPerItem := in.NetPrice.Mul(rate).Round(2)
	return Priced{
		Buyer:      buyer,
		Location:   location,
		Treatment:  treatment,
		Rate:       rate,
		VatPerItem: vatPerItem,
		Total:      in.NetPrice.Add(vatPerItem).Mul(quantity),
		TotalVat:   vatPerItem.Mul(quantity),
	}
}
