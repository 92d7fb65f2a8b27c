// Package vat decides which VAT rate applies to a line item and prices it.
package vat

import (
	"fmt"

	"github.com/patternseek/ecommerce/pkg/enums"
)

// Classify maps a (product, buyer, location) tuple to its VAT treatment.
// Every valid tuple is mapped; an unknown enum value is a programming error
// and panics.
func Classify(product enums.ProductType, buyer enums.BuyerClass, location enums.LocationClass) enums.VatTreatment {
	switch product {
	case enums.ProductTypeDeliveredGoods:
		switch buyer {
		case enums.BuyerClassBusiness:
			return businessTreatment(location)
		case enums.BuyerClassConsumer:
			switch location {
			case enums.LocationClassLocal, enums.LocationClassEU:
				return enums.VatTreatmentCustomerRate
			case enums.LocationClassRestOfWorld:
				return enums.VatTreatmentZero
			}
		}
	case enums.ProductTypeNormalServices:
		switch buyer {
		case enums.BuyerClassBusiness:
			return businessTreatment(location)
		case enums.BuyerClassConsumer:
			switch location {
			case enums.LocationClassLocal, enums.LocationClassEU:
				return enums.VatTreatmentVendorRate
			case enums.LocationClassRestOfWorld:
				return enums.VatTreatmentZero
			}
		}
	case enums.ProductTypeElectronicServices:
		switch buyer {
		case enums.BuyerClassBusiness:
			return businessTreatment(location)
		case enums.BuyerClassConsumer:
			switch location {
			case enums.LocationClassLocal, enums.LocationClassEU:
				return enums.VatTreatmentCustomerRate
			case enums.LocationClassRestOfWorld:
				return enums.VatTreatmentZero
			}
		}
	}
	panic(fmt.Sprintf("vat: unclassified tuple (%q, %q, %q)", product, buyer, location))
}

// Business buyers pay the vendor rate at home and reverse-charge everywhere else.
func businessTreatment(location enums.LocationClass) enums.VatTreatment {
	switch location {
	case enums.LocationClassLocal:
		return enums.VatTreatmentVendorRate
	case enums.LocationClassEU, enums.LocationClassRestOfWorld:
		return enums.VatTreatmentZero
	}
	panic(fmt.Sprintf("vat: unclassified business location %q", location))
}

var locationClasses = []enums.LocationClass{
	enums.LocationClassLocal,
	enums.LocationClassEU,
	enums.LocationClassRestOfWorld,
}

// RequiresLocationProof reports whether the treatment of product sold to buyer
// changes with where it is consumed, in which case the vendor must evidence
// the buyer's country. Business buyers are identified by an authoritative VAT
// number, which is itself that evidence.
func RequiresLocationProof(product enums.ProductType, buyer enums.BuyerClass) bool {
	if buyer == enums.BuyerClassBusiness {
		return false
	}
	first := Classify(product, buyer, locationClasses[0])
	for _, location := range locationClasses[1:] {
		if Classify(product, buyer, location) != first {
			return true
		}
	}
	return false
}
