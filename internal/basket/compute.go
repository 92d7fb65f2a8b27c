package basket

import (
	"github.com/shopspring/decimal"

	"github.com/patternseek/ecommerce/internal/evidence"
	"github.com/patternseek/ecommerce/internal/vat"
	"github.com/patternseek/ecommerce/pkg/enums"
	"github.com/patternseek/ecommerce/pkg/types"
)

// Totals are the figures shown to the buyer.
type Totals struct {
	Total                 decimal.Decimal `json:"total"`
	VatTotal              decimal.Decimal `json:"vat_total"`
	RequiresLocationProof bool            `json:"requires_location_proof"`
}

// VatNumberResult is the outcome of checking the buyer's VAT number.
type VatNumberResult struct {
	Number  string                `json:"number,omitempty"`
	Country string                `json:"country,omitempty"`
	Status  enums.VatNumberStatus `json:"status"`
}

// Authoritative reports whether the number makes the buyer a business whose
// country outranks every other signal.
func (r VatNumberResult) Authoritative() bool {
	return r.Number != "" && r.Country != "" && r.Status.IsAuthoritative()
}

type inputs struct {
	items       []LineItem
	address     types.Address
	ipCountry   string
	cardCountry string
	vatNumber   VatNumberResult
}

type derived struct {
	items        []LineItem
	evidence     evidence.Evidence
	totals       Totals
	addressReady bool
}

// compute derives everything shown to the buyer from the raw inputs. It never
// reads previous derived state.
func compute(pricer *vat.Pricer, in inputs) derived {
	ev := evidence.Aggregate(evidence.Signals{
		IPCountry:        in.ipCountry,
		AddressCountry:   in.address.Country,
		CardCountry:      in.cardCountry,
		VatNumberCountry: in.vatNumber.Country,
		VatNumberStatus:  in.vatNumber.Status,
	})

	business := in.vatNumber.Authoritative()
	buyer := enums.BuyerClassConsumer
	if business {
		buyer = enums.BuyerClassBusiness
	}
	out := derived{
		items:        make([]LineItem, 0, len(in.items)),
		evidence:     ev,
		addressReady: in.address.Ready(),
		totals: Totals{
			Total:    decimal.Zero,
			VatTotal: decimal.Zero,
		},
	}

	for _, item := range in.items {
		priced := pricer.Price(vat.Input{
			ProductType:        item.ProductType,
			NetPrice:           item.NetPrice,
			Quantity:           item.Quantity,
			BusinessBuyer:      business,
			ConsumptionCountry: ev.ProvisionalCountry,
		})

		item = item.clone()
		item.IsBusinessBuyer = business
		item.ConsumptionLocation = priced.Location
		item.VatTreatment = priced.Treatment
		item.VatRate = priced.Rate
		item.VatPerItem = priced.VatPerItem
		out.items = append(out.items, item)

		out.totals.Total = out.totals.Total.Add(priced.Total)
		out.totals.VatTotal = out.totals.VatTotal.Add(priced.TotalVat)
		if vat.RequiresLocationProof(item.ProductType, buyer) {
			out.totals.RequiresLocationProof = true
		}
	}
	return out
}

// vatInfoOk reports whether the evidence supports charging the price that
// was displayed for the displayed provisional country.
func (d derived) vatInfoOk(vatNumber VatNumberResult, displayedCountry string) bool {
	if vatNumber.Authoritative() {
		return true
	}
	if !d.totals.RequiresLocationProof {
		return true
	}
	return d.evidence.ConfirmedCountry != "" && d.evidence.ConfirmedCountry == displayedCountry
}
