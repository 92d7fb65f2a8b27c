package baskets

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/patternseek/ecommerce/api/middleware"
	"github.com/patternseek/ecommerce/api/responses"
	"github.com/patternseek/ecommerce/api/validators"
	"github.com/patternseek/ecommerce/internal/basket"
	"github.com/patternseek/ecommerce/internal/charge"
	"github.com/patternseek/ecommerce/pkg/db/models"
	pkgerrors "github.com/patternseek/ecommerce/pkg/errors"
	"github.com/patternseek/ecommerce/pkg/logger"
)

const basketIDParam = "basketID"

// Charger settles a basket against a payment instrument.
type Charger interface {
	Charge(ctx context.Context, ledger *basket.Ledger, req charge.Request) (*models.Transaction, error)
}

// TransactionReader looks up the record written for a settled basket.
type TransactionReader interface {
	GetByBasketID(ctx context.Context, basketID uuid.UUID) (*models.Transaction, error)
}

// BasketCreate opens a basket and seeds its IP evidence from the caller.
func BasketCreate(svc basket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "basket service unavailable"))
			return
		}

		var payload createBasketRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := toLineItems(payload.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid net_price"))
			return
		}

		snap, err := svc.Create(r.Context(), basket.CreateInput{
			Items:    items,
			ClientIP: middleware.ClientIPFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newBasketResponse(snap))
	}
}

// BasketFetch returns the current totals and readiness of a basket.
func BasketFetch(svc basket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "basket service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, basketIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newBasketResponse(snap))
	}
}

// BasketAddItems appends line items to an open basket.
func BasketAddItems(svc basket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "basket service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, basketIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addLineItemsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := toLineItems(payload.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid net_price"))
			return
		}

		snap, err := svc.AddLineItems(r.Context(), id, items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newBasketResponse(snap))
	}
}

// BasketSetAddress replaces the billing address.
func BasketSetAddress(svc basket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "basket service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, basketIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addressRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := svc.SetAddress(r.Context(), id, payload.toAddress())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newBasketResponse(snap))
	}
}

// BasketCheckVatNumber validates a buyer VAT number and reprices the basket.
func BasketCheckVatNumber(svc basket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "basket service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, basketIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload vatNumberRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := svc.CheckVatNumber(r.Context(), id, payload.Country, payload.Number)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newBasketResponse(snap))
	}
}

// BasketCharge settles the basket. Once the charge is captured the response
// is 201 even if the audit record could not be written; that failure is logged
// and surfaces through the manual review queue instead.
func BasketCharge(svc basket.Service, gate Charger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || gate == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "charge service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, basketIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload chargeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ledger, err := svc.Ledger(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := gate.Charge(r.Context(), ledger, payload.toChargeRequest())
		if txn == nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err != nil && logg != nil {
			ctx := logg.WithBasketID(r.Context(), id.String())
			logg.Error(logg.WithTransactionID(ctx, txn.ID.String()), "charge.record_failed", err)
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newTransactionResponse(txn))
	}
}

// BasketTransaction returns the audit record of a settled basket.
func BasketTransaction(txns TransactionReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if txns == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transaction service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, basketIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := txns.GetByBasketID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newTransactionResponse(txn))
	}
}
