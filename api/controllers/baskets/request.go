package baskets

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/patternseek/ecommerce/api/validators"
	"github.com/patternseek/ecommerce/internal/basket"
	"github.com/patternseek/ecommerce/internal/charge"
	"github.com/patternseek/ecommerce/pkg/enums"
	"github.com/patternseek/ecommerce/pkg/types"
)

const maxDescriptionLength = 500

type lineItemRequest struct {
	Description    string            `json:"description" validate:"required"`
	NetPrice       string            `json:"net_price" validate:"decimal_gte0"`
	Quantity       int               `json:"quantity" validate:"gte=0"`
	ProductType    string            `json:"product_type" validate:"required,oneof=delivered_goods normal_services electronic_services"`
	SubscriptionID *string           `json:"subscription_id,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type createBasketRequest struct {
	Items []lineItemRequest `json:"items" validate:"required,min=1,dive"`
}

type addLineItemsRequest struct {
	Items []lineItemRequest `json:"items" validate:"required,min=1,dive"`
}

type addressRequest struct {
	Line1      string  `json:"line1" validate:"required"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	Region     string  `json:"region"`
	PostalCode string  `json:"postal_code" validate:"required"`
	Country    string  `json:"country" validate:"required,len=2"`
}

type vatNumberRequest struct {
	Country string `json:"country" validate:"required,len=2"`
	Number  string `json:"number" validate:"required,max=32"`
}

type chargeRequest struct {
	PaymentMethodID string `json:"payment_method_id" validate:"required_without=ResumeChargeID"`
	ClientEmail     string `json:"client_email" validate:"omitempty,email"`
	ResumeChargeID  string `json:"resume_charge_id"`
}

func (r lineItemRequest) toLineItem() (basket.LineItem, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(r.NetPrice))
	if err != nil {
		return basket.LineItem{}, err
	}
	return basket.LineItem{
		Description:    validators.SanitizeString(r.Description, maxDescriptionLength),
		NetPrice:       price,
		Quantity:       r.Quantity,
		ProductType:    enums.ProductType(r.ProductType),
		SubscriptionID: r.SubscriptionID,
		Metadata:       r.Metadata,
	}, nil
}

func toLineItems(reqs []lineItemRequest) ([]basket.LineItem, error) {
	items := make([]basket.LineItem, 0, len(reqs))
	for _, req := range reqs {
		item, err := req.toLineItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r addressRequest) toAddress() types.Address {
	return types.Address{
		Line1:      r.Line1,
		Line2:      r.Line2,
		City:       r.City,
		Region:     r.Region,
		PostalCode: r.PostalCode,
		Country:    r.Country,
	}
}

func (r chargeRequest) toChargeRequest() charge.Request {
	return charge.Request{
		PaymentMethodID: strings.TrimSpace(r.PaymentMethodID),
		ClientEmail:     strings.TrimSpace(r.ClientEmail),
		ResumeChargeID:  strings.TrimSpace(r.ResumeChargeID),
	}
}
