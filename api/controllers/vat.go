package controllers

import (
	"net/http"

	"github.com/patternseek/ecommerce/api/responses"
	"github.com/patternseek/ecommerce/internal/vatrates"
	pkgerrors "github.com/patternseek/ecommerce/pkg/errors"
	"github.com/patternseek/ecommerce/pkg/logger"
)

type vatCountryResponse struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Rate    string `json:"rate"`
	Percent string `json:"percent"`
	Member  bool   `json:"member"`
}

// VatCountries lists the countries the rate table knows, sorted by name.
func VatCountries(table *vatrates.Table, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if table == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vat rate table unavailable"))
			return
		}

		countries := table.Countries()
		out := make([]vatCountryResponse, 0, len(countries))
		for _, c := range countries {
			out = append(out, vatCountryResponse{
				Code:    c.Code,
				Name:    c.Name,
				Rate:    c.Rate.String(),
				Percent: c.Rate.Shift(2).String(),
				Member:  c.Member,
			})
		}
		responses.WriteSuccess(w, out)
	}
}
