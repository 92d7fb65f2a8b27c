package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/patternseek/ecommerce/pkg/enums"
)

// TransactionRecordedEvent tells downstream accounting that a basket was
// charged and how much of the charge is VAT.
type TransactionRecordedEvent struct {
	TransactionID        uuid.UUID             `json:"transaction_id"`
	BasketID             uuid.UUID             `json:"basket_id"`
	ChargeID             string                `json:"charge_id"`
	Amount               string                `json:"amount"`
	VatAmount            string                `json:"vat_amount"`
	Currency             string                `json:"currency"`
	ConfirmedCountry     string                `json:"confirmed_country,omitempty"`
	VatNumberStatus      enums.VatNumberStatus `json:"vat_number_status"`
	ManualReviewRequired bool                  `json:"manual_review_required"`
	TestMode             bool                  `json:"test_mode"`
	RecordedAt           time.Time             `json:"recorded_at"`
}
