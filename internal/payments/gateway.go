// Package payments authorizes basket charges with the card processor.
package payments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/patternseek/ecommerce/pkg/enums"
	pkgerrors "github.com/patternseek/ecommerce/pkg/errors"
	"github.com/patternseek/ecommerce/pkg/logger"
	"github.com/patternseek/ecommerce/pkg/types"
)

// AuthorizeRequest is a single charge for a basket total.
type AuthorizeRequest struct {
	Amount          decimal.Decimal
	Currency        string
	PaymentMethodID string
	Description     string
	ReceiptEmail    string
	Metadata        map[string]string
	IdempotencyKey  string
}

// Authorization is the processor's answer to a charge.
type Authorization struct {
	Outcome           enums.ChargeOutcome
	ChargeID          string
	InstrumentCountry string
	ClientSecret      string
	DeclineReason     string
}

// Authorizer charges a payment method, re-reads a charge that was waiting on
// the buyer, or voids one the buyer will not finish.
type Authorizer interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (Authorization, error)
	Resume(ctx context.Context, chargeID string) (Authorization, error)
	Cancel(ctx context.Context, chargeID string) error
}

// InstrumentResolver returns the issuing country of a payment method.
type InstrumentResolver interface {
	InstrumentCountry(ctx context.Context, paymentMethodID string) (string, error)
}

// Gateway is the Stripe PaymentIntent implementation of Authorizer and
// InstrumentResolver.
type Gateway struct {
	client StripePaymentClient
	logg   *logger.Logger
}

// NewGateway validates dependencies and returns a Gateway.
func NewGateway(client StripePaymentClient, logg *logger.Logger) (*Gateway, error) {
	if client == nil {
		return nil, fmt.Errorf("stripe payment client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Gateway{client: client, logg: logg}, nil
}

// InstrumentCountry looks up the card's issuing country.
func (g *Gateway) InstrumentCountry(ctx context.Context, paymentMethodID string) (string, error) {
	paymentMethodID = strings.TrimSpace(paymentMethodID)
	if paymentMethodID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment method id is required")
	}
	pm, err := g.client.GetPaymentMethod(ctx, paymentMethodID, nil)
	if err != nil {
		return "", classifyStripeError(err, "lookup payment method")
	}
	if pm == nil || pm.Card == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment method is not a card")
	}
	return cardCountry(ctx, g.logg, pm.Card.Country), nil
}

// Authorize creates and confirms a PaymentIntent for the request.
func (g *Gateway) Authorize(ctx context.Context, req AuthorizeRequest) (Authorization, error) {
	if strings.TrimSpace(req.PaymentMethodID) == "" {
		return Authorization{}, pkgerrors.New(pkgerrors.CodeValidation, "payment method id is required")
	}
	amount, err := MinorUnits(req.Amount, req.Currency)
	if err != nil {
		return Authorization{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid charge amount")
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amount),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod:      stripe.String(req.PaymentMethodID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Confirm:            stripe.Bool(true),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(req.ReceiptEmail)
	}
	for _, key := range sortedKeys(req.Metadata) {
		params.AddMetadata(key, req.Metadata[key])
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.AddExpand("payment_method")

	intent, err := g.client.CreatePaymentIntent(ctx, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			auth := Authorization{Outcome: enums.ChargeOutcomeDeclined, DeclineReason: declineReason(stripeErr)}
			if stripeErr.PaymentIntent != nil {
				auth.ChargeID = stripeErr.PaymentIntent.ID
			}
			g.logg.Warn(g.logg.WithField(ctx, "decline_reason", auth.DeclineReason), "card declined")
			return auth, nil
		}
		return Authorization{}, classifyStripeError(err, "create payment intent")
	}
	return g.fromIntent(ctx, intent), nil
}

// Resume re-reads a PaymentIntent after the buyer finished authenticating.
func (g *Gateway) Resume(ctx context.Context, chargeID string) (Authorization, error) {
	if strings.TrimSpace(chargeID) == "" {
		return Authorization{}, pkgerrors.New(pkgerrors.CodeValidation, "charge id is required")
	}
	params := &stripe.PaymentIntentParams{}
	params.AddExpand("payment_method")
	intent, err := g.client.GetPaymentIntent(ctx, chargeID, params)
	if err != nil {
		return Authorization{}, classifyStripeError(err, "get payment intent")
	}
	return g.fromIntent(ctx, intent), nil
}

// Cancel voids a PaymentIntent that has not succeeded. An intent that is
// already canceled counts as success; one that has succeeded or is
// processing cannot be voided and returns an error.
func (g *Gateway) Cancel(ctx context.Context, chargeID string) error {
	if strings.TrimSpace(chargeID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "charge id is required")
	}
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	intent, err := g.client.CancelPaymentIntent(ctx, chargeID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.PaymentIntent != nil &&
			stripeErr.PaymentIntent.Status == stripe.PaymentIntentStatusCanceled {
			return nil
		}
		return classifyStripeError(err, "cancel payment intent")
	}
	if intent != nil && intent.Status != stripe.PaymentIntentStatusCanceled {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("payment intent %s is %s after cancel", chargeID, intent.Status))
	}
	g.logg.Info(g.logg.WithField(ctx, "charge_id", chargeID), "payment intent canceled")
	return nil
}

func (g *Gateway) fromIntent(ctx context.Context, intent *stripe.PaymentIntent) Authorization {
	if intent == nil {
		return Authorization{Outcome: enums.ChargeOutcomeDeclined, DeclineReason: "empty payment intent"}
	}
	auth := Authorization{ChargeID: intent.ID}
	if intent.PaymentMethod != nil && intent.PaymentMethod.Card != nil {
		auth.InstrumentCountry = cardCountry(ctx, g.logg, intent.PaymentMethod.Card.Country)
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded, stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresCapture:
		auth.Outcome = enums.ChargeOutcomeApproved
	case stripe.PaymentIntentStatusRequiresAction:
		auth.Outcome = enums.ChargeOutcomeActionRequired
		auth.ClientSecret = intent.ClientSecret
	default:
		auth.Outcome = enums.ChargeOutcomeDeclined
		auth.DeclineReason = string(intent.Status)
		if intent.LastPaymentError != nil {
			auth.DeclineReason = declineReason(intent.LastPaymentError)
		}
	}
	return auth
}

func classifyStripeError(err error, action string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeInvalidRequest {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, action+" rejected").
			WithDetails(map[string]any{"param": stripeErr.Param})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action+" failed")
}

func declineReason(err *stripe.Error) string {
	if err.DeclineCode != "" {
		return string(err.DeclineCode)
	}
	if err.Code != "" {
		return string(err.Code)
	}
	return err.Msg
}

func cardCountry(ctx context.Context, logg *logger.Logger, raw string) string {
	country, err := types.ParseCountry(raw)
	if err != nil {
		logg.Warn(logg.WithField(ctx, "card_country", raw), "ignoring unrecognised card country")
		return ""
	}
	return country
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
