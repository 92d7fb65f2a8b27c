package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/patternseek/ecommerce/pkg/enums"
)

// Transaction is the audit record written once per successful charge.
type Transaction struct {
	ID                   uuid.UUID             `gorm:"type:uuid;primaryKey"`
	BasketID             uuid.UUID             `gorm:"column:basket_id;type:uuid;not null;uniqueIndex"`
	ChargeID             string                `gorm:"column:charge_id;not null;uniqueIndex"`
	Amount               decimal.Decimal       `gorm:"column:amount;type:numeric(14,2);not null"`
	VatAmount            decimal.Decimal       `gorm:"column:vat_amount;type:numeric(14,2);not null"`
	Currency             string                `gorm:"column:currency;not null"`
	VatBreakdown         []ItemVat             `gorm:"column:vat_breakdown;type:jsonb;serializer:json"`
	Evidence             EvidenceSnapshot      `gorm:"column:evidence;type:jsonb;serializer:json"`
	VatNumber            *string               `gorm:"column:vat_number"`
	VatNumberStatus      enums.VatNumberStatus `gorm:"column:vat_number_status;not null;default:'none'"`
	VatNumberCountry     *string               `gorm:"column:vat_number_country"`
	InstrumentCountry    string                `gorm:"column:instrument_country"`
	PaymentType          enums.PaymentType     `gorm:"column:payment_type;not null"`
	BillingAddress       string                `gorm:"column:billing_address"`
	Description          string                `gorm:"column:description"`
	ClientEmail          *string               `gorm:"column:client_email"`
	TestMode             bool                  `gorm:"column:test_mode;not null"`
	ManualReviewRequired bool                  `gorm:"column:manual_review_required;not null;index"`
	LineItems            json.RawMessage       `gorm:"column:line_items;type:jsonb"`
	CreatedAt            time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (Transaction) TableName() string { return "transactions" }

// ItemVat is the VAT charged on one line item.
type ItemVat struct {
	Description  string          `json:"description"`
	Quantity     int             `json:"quantity"`
	VatTreatment string          `json:"vat_treatment"`
	VatRate      decimal.Decimal `json:"vat_rate"`
	VatPerItem   decimal.Decimal `json:"vat_per_item"`
}

// EvidenceSnapshot captures the location signals the charge was accepted on.
type EvidenceSnapshot struct {
	IPCountry          string `json:"ip_country,omitempty"`
	AddressCountry     string `json:"address_country,omitempty"`
	CardCountry        string `json:"card_country,omitempty"`
	VatNumberCountry   string `json:"vat_number_country,omitempty"`
	ConfirmedCountry   string `json:"confirmed_country,omitempty"`
	ProvisionalCountry string `json:"provisional_country,omitempty"`
}
