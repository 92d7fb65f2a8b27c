package charge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/patternseek/ecommerce/internal/basket"
	"github.com/patternseek/ecommerce/pkg/db/models"
	"github.com/patternseek/ecommerce/pkg/enums"
)

// TransactionInput is everything known about a charge once it is approved.
type TransactionInput struct {
	ID                uuid.UUID
	Basket            basket.Snapshot
	ChargeID          string
	InstrumentCountry string
	Currency          string
	Description       string
	ClientEmail       string
	TestMode          bool
}

// BuildTransaction snapshots a completed basket into its audit record.
func BuildTransaction(in TransactionInput) (*models.Transaction, error) {
	if in.Basket.State != enums.BasketStateComplete {
		return nil, fmt.Errorf("basket %s is %s, not complete", in.Basket.ID, in.Basket.State)
	}
	if in.ChargeID == "" {
		return nil, fmt.Errorf("charge id required")
	}
	id := in.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	lineItems, err := json.Marshal(in.Basket.Items)
	if err != nil {
		return nil, fmt.Errorf("marshal line items: %w", err)
	}

	breakdown := make([]models.ItemVat, 0, len(in.Basket.Items))
	for _, item := range in.Basket.Items {
		breakdown = append(breakdown, models.ItemVat{
			Description:  item.Description,
			Quantity:     item.Quantity,
			VatTreatment: item.VatTreatment.String(),
			VatRate:      item.VatRate,
			VatPerItem:   item.VatPerItem,
		})
	}

	vatNumber := in.Basket.VatNumber
	status := vatNumber.Status
	if status == "" {
		status = enums.VatNumberStatusNone
	}

	return &models.Transaction{
		ID:                   id,
		BasketID:             in.Basket.ID,
		ChargeID:             in.ChargeID,
		Amount:               in.Basket.Totals.Total.Round(2),
		VatAmount:            in.Basket.Totals.VatTotal.Round(2),
		Currency:             in.Currency,
		VatBreakdown:         breakdown,
		Evidence:             in.Basket.Evidence.Snapshot(),
		VatNumber:            optional(vatNumber.Number),
		VatNumberStatus:      status,
		VatNumberCountry:     optional(vatNumber.Country),
		InstrumentCountry:    in.InstrumentCountry,
		PaymentType:          enums.PaymentTypeCard,
		BillingAddress:       in.Basket.Address.String(),
		Description:          in.Description,
		ClientEmail:          optional(in.ClientEmail),
		TestMode:             in.TestMode,
		ManualReviewRequired: needsManualReview(in.Basket, in.InstrumentCountry),
		LineItems:            lineItems,
		CreatedAt:            time.Now().UTC(),
	}, nil
}

// A registry outage let an unverified VAT number through, or the card was
// issued somewhere other than the billing address.
func needsManualReview(snap basket.Snapshot, instrumentCountry string) bool {
	if snap.VatNumber.Status == enums.VatNumberStatusUncheckedDueToOutage {
		return true
	}
	return instrumentCountry != "" && snap.Address.Country != "" && instrumentCountry != snap.Address.Country
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
