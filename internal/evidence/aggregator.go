// Package evidence fuses the buyer's location signals into a confirmed and a
// provisional country.
package evidence

import (
	"github.com/patternseek/ecommerce/pkg/db/models"
	"github.com/patternseek/ecommerce/pkg/enums"
	"github.com/patternseek/ecommerce/pkg/types"
)

// Basis names what a confirmed country rests on.
type Basis string

const (
	BasisNone         Basis = ""
	BasisVatNumber    Basis = "vat_number"
	BasisCorroborated Basis = "corroborated"
)

// Signals are the raw location inputs. Empty strings mean absent.
type Signals struct {
	IPCountry        string
	AddressCountry   string
	CardCountry      string
	VatNumberCountry string
	VatNumberStatus  enums.VatNumberStatus
}

// Evidence is the fused view of Signals.
type Evidence struct {
	IPCountry          string `json:"ip_country,omitempty"`
	AddressCountry     string `json:"address_country,omitempty"`
	CardCountry        string `json:"card_country,omitempty"`
	VatNumberCountry   string `json:"vat_number_country,omitempty"`
	ConfirmedCountry   string `json:"confirmed_country,omitempty"`
	ProvisionalCountry string `json:"provisional_country,omitempty"`
	Basis              Basis  `json:"basis,omitempty"`
}

// Confirmed reports whether a country has been confirmed.
func (e Evidence) Confirmed() bool {
	return e.ConfirmedCountry != ""
}

// Snapshot converts the evidence to its audit representation.
func (e Evidence) Snapshot() models.EvidenceSnapshot {
	return models.EvidenceSnapshot{
		IPCountry:          e.IPCountry,
		AddressCountry:     e.AddressCountry,
		CardCountry:        e.CardCountry,
		VatNumberCountry:   e.VatNumberCountry,
		ConfirmedCountry:   e.ConfirmedCountry,
		ProvisionalCountry: e.ProvisionalCountry,
	}
}

// Aggregate derives the evidence from scratch. An authoritative VAT number
// decides alone; otherwise any two agreeing signals confirm their country and
// a single signal only ever sets the provisional country.
func Aggregate(s Signals) Evidence {
	ev := Evidence{
		IPCountry:      types.NormalizeCountry(s.IPCountry),
		AddressCountry: types.NormalizeCountry(s.AddressCountry),
		CardCountry:    types.NormalizeCountry(s.CardCountry),
	}

	if vatCountry := types.NormalizeCountry(s.VatNumberCountry); vatCountry != "" && s.VatNumberStatus.IsAuthoritative() {
		ev.VatNumberCountry = vatCountry
		ev.ConfirmedCountry = vatCountry
		ev.ProvisionalCountry = vatCountry
		ev.Basis = BasisVatNumber
		return ev
	}

	pairs := [][2]string{
		{ev.IPCountry, ev.AddressCountry},
		{ev.IPCountry, ev.CardCountry},
		{ev.AddressCountry, ev.CardCountry},
	}
	for _, pair := range pairs {
		if pair[0] != "" && pair[0] == pair[1] {
			ev.ConfirmedCountry = pair[0]
			ev.ProvisionalCountry = pair[0]
			ev.Basis = BasisCorroborated
			return ev
		}
	}

	for _, candidate := range []string{ev.AddressCountry, ev.IPCountry, ev.CardCountry} {
		if candidate != "" {
			ev.ProvisionalCountry = candidate
			break
		}
	}
	return ev
}
