package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/patternseek/ecommerce/api/responses"
	"github.com/patternseek/ecommerce/api/validators"
	"github.com/patternseek/ecommerce/internal/transactions"
	"github.com/patternseek/ecommerce/pkg/db/models"
	pkgerrors "github.com/patternseek/ecommerce/pkg/errors"
	"github.com/patternseek/ecommerce/pkg/logger"
	"github.com/patternseek/ecommerce/pkg/pagination"
)

// ReviewQueue lists transactions flagged for manual review.
type ReviewQueue interface {
	PendingReview(ctx context.Context, params pagination.Params) (*transactions.ReviewPage, error)
}

type reviewPageResponse struct {
	Items      []reviewItem `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

type reviewItem struct {
	ID                uuid.UUID               `json:"id"`
	BasketID          uuid.UUID               `json:"basket_id"`
	ChargeID          string                  `json:"charge_id"`
	Amount            string                  `json:"amount"`
	VatAmount         string                  `json:"vat_amount"`
	Currency          string                  `json:"currency"`
	VatNumberStatus   string                  `json:"vat_number_status"`
	InstrumentCountry string                  `json:"instrument_country,omitempty"`
	Evidence          models.EvidenceSnapshot `json:"evidence"`
	CreatedAt         time.Time               `json:"created_at"`
}

// TransactionsPendingReview returns the oldest flagged transactions first.
// Follow next_cursor to fetch the following page.
func TransactionsPendingReview(queue ReviewQueue, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if queue == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transaction service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := queue.PendingReview(r.Context(), pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]reviewItem, 0, len(page.Items))
		for _, txn := range page.Items {
			out = append(out, reviewItem{
				ID:                txn.ID,
				BasketID:          txn.BasketID,
				ChargeID:          txn.ChargeID,
				Amount:            txn.Amount.StringFixed(2),
				VatAmount:         txn.VatAmount.StringFixed(2),
				Currency:          txn.Currency,
				VatNumberStatus:   string(txn.VatNumberStatus),
				InstrumentCountry: txn.InstrumentCountry,
				Evidence:          txn.Evidence,
				CreatedAt:         txn.CreatedAt,
			})
		}
		responses.WriteSuccess(w, reviewPageResponse{Items: out, NextCursor: page.NextCursor})
	}
}
