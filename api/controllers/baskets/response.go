package baskets

import (
	"time"

	"github.com/google/uuid"

	"github.com/patternseek/ecommerce/internal/basket"
	"github.com/patternseek/ecommerce/internal/evidence"
	"github.com/patternseek/ecommerce/pkg/db/models"
	"github.com/patternseek/ecommerce/pkg/enums"
	"github.com/patternseek/ecommerce/pkg/types"
)

type lineItemResponse struct {
	Description         string              `json:"description"`
	NetPrice            string              `json:"net_price"`
	Quantity            int                 `json:"quantity"`
	ProductType         enums.ProductType   `json:"product_type"`
	SubscriptionID      *string             `json:"subscription_id,omitempty"`
	Metadata            map[string]string   `json:"metadata,omitempty"`
	IsBusinessBuyer     bool                `json:"is_business_buyer"`
	ConsumptionLocation enums.LocationClass `json:"consumption_location"`
	VatTreatment        enums.VatTreatment  `json:"vat_treatment"`
	VatRate             string              `json:"vat_rate"`
	VatPerItem          string              `json:"vat_per_item"`
	Total               string              `json:"total"`
}

type basketResponse struct {
	ID                    uuid.UUID              `json:"id"`
	State                 enums.BasketState      `json:"state"`
	Items                 []lineItemResponse     `json:"items"`
	Address               *types.Address         `json:"address,omitempty"`
	Evidence              evidence.Evidence      `json:"evidence"`
	VatNumber             basket.VatNumberResult `json:"vat_number"`
	Total                 string                 `json:"total"`
	VatTotal              string                 `json:"vat_total"`
	RequiresLocationProof bool                   `json:"requires_location_proof"`
	AddressReady          bool                   `json:"address_ready"`
	ReadyForPayment       bool                   `json:"ready_for_payment"`
	VatInfoOk             bool                   `json:"vat_info_ok"`
	PendingChargeID       string                 `json:"pending_charge_id,omitempty"`
	UpdatedAt             time.Time              `json:"updated_at"`
}

type transactionResponse struct {
	ID                   uuid.UUID             `json:"id"`
	BasketID             uuid.UUID             `json:"basket_id"`
	ChargeID             string                `json:"charge_id"`
	Amount               string                `json:"amount"`
	VatAmount            string                `json:"vat_amount"`
	Currency             string                `json:"currency"`
	VatNumberStatus      enums.VatNumberStatus `json:"vat_number_status"`
	InstrumentCountry    string                `json:"instrument_country,omitempty"`
	ManualReviewRequired bool                  `json:"manual_review_required"`
	TestMode             bool                  `json:"test_mode"`
	CreatedAt            time.Time             `json:"created_at"`
}

func newBasketResponse(snap basket.Snapshot) basketResponse {
	items := make([]lineItemResponse, 0, len(snap.Items))
	for _, item := range snap.Items {
		items = append(items, lineItemResponse{
			Description:         item.Description,
			NetPrice:            item.NetPrice.StringFixed(2),
			Quantity:            item.Quantity,
			ProductType:         item.ProductType,
			SubscriptionID:      item.SubscriptionID,
			Metadata:            item.Metadata,
			IsBusinessBuyer:     item.IsBusinessBuyer,
			ConsumptionLocation: item.ConsumptionLocation,
			VatTreatment:        item.VatTreatment,
			VatRate:             item.VatRate.String(),
			VatPerItem:          item.VatPerItem.StringFixed(2),
			Total:               item.Total().StringFixed(2),
		})
	}

	resp := basketResponse{
		ID:                    snap.ID,
		State:                 snap.State,
		Items:                 items,
		Evidence:              snap.Evidence,
		VatNumber:             snap.VatNumber,
		Total:                 snap.Totals.Total.StringFixed(2),
		VatTotal:              snap.Totals.VatTotal.StringFixed(2),
		RequiresLocationProof: snap.Totals.RequiresLocationProof,
		AddressReady:          snap.AddressReady,
		ReadyForPayment:       snap.ReadyForPayment,
		VatInfoOk:             snap.VatInfoOk,
		PendingChargeID:       snap.PendingChargeID,
		UpdatedAt:             snap.UpdatedAt,
	}
	if !snap.Address.IsZero() {
		addr := snap.Address
		resp.Address = &addr
	}
	return resp
}

func newTransactionResponse(txn *models.Transaction) transactionResponse {
	return transactionResponse{
		ID:                   txn.ID,
		BasketID:             txn.BasketID,
		ChargeID:             txn.ChargeID,
		Amount:               txn.Amount.StringFixed(2),
		VatAmount:            txn.VatAmount.StringFixed(2),
		Currency:             txn.Currency,
		VatNumberStatus:      txn.VatNumberStatus,
		InstrumentCountry:    txn.InstrumentCountry,
		ManualReviewRequired: txn.ManualReviewRequired,
		TestMode:             txn.TestMode,
		CreatedAt:            txn.CreatedAt,
	}
}
