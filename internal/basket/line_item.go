package basket

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/patternseek/ecommerce/pkg/enums"
	pkgerrors "github.com/patternseek/ecommerce/pkg/errors"
)

// ErrDuplicateMetadataKey is wrapped by the validation error returned when two
// one-off line items share a metadata key.
var ErrDuplicateMetadataKey = errors.New("duplicate metadata key")

// LineItem is one priced entry of a basket. The VAT fields are owned by the
// ledger and overwritten on every recompute.
type LineItem struct {
	Description    string            `json:"description"`
	NetPrice       decimal.Decimal   `json:"net_price"`
	Quantity       int               `json:"quantity"`
	ProductType    enums.ProductType `json:"product_type"`
	SubscriptionID *string           `json:"subscription_id,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`

	IsBusinessBuyer     bool                `json:"is_business_buyer"`
	ConsumptionLocation enums.LocationClass `json:"consumption_location"`
	VatTreatment        enums.VatTreatment  `json:"vat_treatment"`
	VatRate             decimal.Decimal     `json:"vat_rate"`
	VatPerItem          decimal.Decimal     `json:"vat_per_item"`
}

// IsSubscription reports whether the item belongs to a recurring subscription.
func (li LineItem) IsSubscription() bool {
	return li.SubscriptionID != nil && *li.SubscriptionID != ""
}

// Total is (net + vat) × quantity.
func (li LineItem) Total() decimal.Decimal {
	return li.NetPrice.Add(li.VatPerItem).Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// TotalVat is the VAT across every unit of the item.
func (li LineItem) TotalVat() decimal.Decimal {
	return li.VatPerItem.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

func (li LineItem) clone() LineItem {
	out := li
	if li.SubscriptionID != nil {
		id := *li.SubscriptionID
		out.SubscriptionID = &id
	}
	if li.Metadata != nil {
		out.Metadata = make(map[string]string, len(li.Metadata))
		for k, v := range li.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

func (li LineItem) normalize() LineItem {
	out := li.clone()
	out.Description = strings.TrimSpace(out.Description)
	if out.Quantity == 0 {
		out.Quantity = 1
	}
	return out
}

func (li LineItem) validate(index int) error {
	var err error
	if li.Description == "" {
		err = multierr.Append(err, fmt.Errorf("line item %d: description is required", index))
	}
	if li.NetPrice.IsNegative() {
		err = multierr.Append(err, fmt.Errorf("line item %d: net price must not be negative", index))
	}
	if li.Quantity < 1 {
		err = multierr.Append(err, fmt.Errorf("line item %d: quantity must be at least 1", index))
	}
	if !li.ProductType.IsValid() {
		err = multierr.Append(err, fmt.Errorf("line item %d: invalid product type %q", index, li.ProductType))
	}
	for key := range li.Metadata {
		if strings.TrimSpace(key) == "" {
			err = multierr.Append(err, fmt.Errorf("line item %d: metadata keys must not be blank", index))
			break
		}
	}
	return err
}

// prepareItems normalizes incoming items and checks them against the items
// already in the basket. Nothing is returned unless every item is acceptable.
func prepareItems(existing []LineItem, incoming []LineItem) ([]LineItem, error) {
	prepared := make([]LineItem, 0, len(incoming))
	var errs error
	for i, item := range incoming {
		item = item.normalize()
		errs = multierr.Append(errs, item.validate(len(existing)+i))
		prepared = append(prepared, item)
	}
	if errs != nil {
		messages := make([]string, 0)
		for _, e := range multierr.Errors(errs) {
			messages = append(messages, e.Error())
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, errs, "invalid line items").
			WithDetails(map[string]any{"errors": messages})
	}
	if err := checkMetadataKeys(existing, prepared); err != nil {
		return nil, err
	}
	return prepared, nil
}

// checkMetadataKeys enforces that one-off items never share a metadata key,
// so their metadata can be merged into a single charge. Subscription items
// are exempt.
func checkMetadataKeys(existing []LineItem, incoming []LineItem) error {
	seen := make(map[string]struct{})
	for _, item := range append(append([]LineItem{}, existing...), incoming...) {
		if item.IsSubscription() {
			continue
		}
		for key := range item.Metadata {
			if _, dup := seen[key]; dup {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrDuplicateMetadataKey,
					fmt.Sprintf("metadata key %q is used by more than one line item", key)).
					WithDetails(map[string]any{"key": key})
			}
			seen[key] = struct{}{}
		}
	}
	return nil
}
