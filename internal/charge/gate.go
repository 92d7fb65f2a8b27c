// Package charge turns a priced basket into at most one authorized payment
// and its audit record.
package charge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/patternseek/ecommerce/internal/basket"
	"github.com/patternseek/ecommerce/internal/payments"
	"github.com/patternseek/ecommerce/pkg/db/models"
	"github.com/patternseek/ecommerce/pkg/enums"
	pkgerrors "github.com/patternseek/ecommerce/pkg/errors"
	"github.com/patternseek/ecommerce/pkg/logger"
	"github.com/patternseek/ecommerce/pkg/metrics"
	"github.com/patternseek/ecommerce/pkg/types"
)

const metadataTransactionUID = "transaction_uid"

// TransactionRecorder persists the audit record of a successful charge.
type TransactionRecorder interface {
	Record(ctx context.Context, txn *models.Transaction) error
}

// Locker guards a basket's charge across processes.
type Locker interface {
	ChargeLockKey(basketID string) string
	AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, owner string) error
}

// Request carries what the buyer submitted with the pay button.
type Request struct {
	PaymentMethodID string
	// InstrumentCountry skips the payment method lookup when already known.
	InstrumentCountry string
	ClientEmail       string
	// ResumeChargeID continues a charge that was waiting on buyer authentication.
	ResumeChargeID string
}

// GateParams wires a Gate. Locker and Metrics are optional.
type GateParams struct {
	Authorizer  payments.Authorizer
	Instruments payments.InstrumentResolver
	Recorder    TransactionRecorder
	Locker      Locker
	LockTTL     time.Duration
	Currency    string
	Description string
	TestMode    bool
	Metrics     *metrics.CheckoutMetrics
	Logger      *logger.Logger
}

// Gate is the only path from a basket to a payment.
type Gate struct {
	authorizer  payments.Authorizer
	instruments payments.InstrumentResolver
	recorder    TransactionRecorder
	locker      Locker
	lockTTL     time.Duration
	currency    string
	description string
	testMode    bool
	metrics     *metrics.CheckoutMetrics
	logg        *logger.Logger
}

// NewGate validates params and returns a Gate.
func NewGate(params GateParams) (*Gate, error) {
	if params.Authorizer == nil {
		return nil, fmt.Errorf("payment authorizer required")
	}
	if params.Instruments == nil {
		return nil, fmt.Errorf("instrument resolver required")
	}
	if params.Recorder == nil {
		return nil, fmt.Errorf("transaction recorder required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if len(currency) != 3 {
		return nil, fmt.Errorf("invalid currency %q", params.Currency)
	}
	if params.LockTTL <= 0 {
		params.LockTTL = 2 * time.Minute
	}
	return &Gate{
		authorizer:  params.Authorizer,
		instruments: params.Instruments,
		recorder:    params.Recorder,
		locker:      params.Locker,
		lockTTL:     params.LockTTL,
		currency:    currency,
		description: params.Description,
		testMode:    params.TestMode,
		metrics:     params.Metrics,
		logg:        params.Logger,
	}, nil
}

// Charge authorizes the basket's total. On approval the basket becomes
// Complete and exactly one Transaction is built and recorded. If recording
// fails the Transaction is still returned alongside a DEPENDENCY_ERROR,
// because the buyer has been charged.
func (g *Gate) Charge(ctx context.Context, ledger *basket.Ledger, req Request) (*models.Transaction, error) {
	if ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "basket not found")
	}
	ctx = g.logg.WithBasketID(ctx, ledger.ID().String())

	claim, err := ledger.BeginCharge()
	if err != nil {
		g.metrics.IncChargeAttempt("rejected")
		return nil, err
	}
	defer claim.Release()

	unlock, err := g.lock(ctx, claim.BasketID())
	if err != nil {
		g.metrics.IncChargeAttempt("rejected")
		return nil, err
	}
	defer unlock()

	txnID := uuid.New()
	var (
		auth              payments.Authorization
		instrumentCountry string
	)
	if req.ResumeChargeID != "" {
		auth, err = g.resume(ctx, claim, req.ResumeChargeID)
		if err != nil {
			return nil, err
		}
		instrumentCountry = auth.InstrumentCountry
	} else {
		if pending := claim.Snapshot().PendingChargeID; pending != "" {
			if err := g.cancelPending(ctx, claim, pending); err != nil {
				return nil, err
			}
		}
		instrumentCountry, err = g.confirmEvidence(ctx, claim, req)
		if err != nil {
			return nil, err
		}
		snap := claim.Snapshot()
		auth, err = g.authorizer.Authorize(ctx, payments.AuthorizeRequest{
			Amount:          snap.Totals.Total,
			Currency:        g.currency,
			PaymentMethodID: req.PaymentMethodID,
			Description:     g.description,
			ReceiptEmail:    req.ClientEmail,
			Metadata:        chargeMetadata(snap.Items, txnID),
			IdempotencyKey:  attemptKey(snap.ID, txnID),
		})
		if err != nil {
			g.metrics.IncChargeAttempt("error")
			g.logg.Error(ctx, "payment authorization failed", err)
			return nil, err
		}
		if instrumentCountry == "" {
			instrumentCountry = auth.InstrumentCountry
		}
	}
	g.metrics.IncChargeAttempt(auth.Outcome.String())
	ctx = g.logg.WithFields(ctx, map[string]any{
		"charge_id":      auth.ChargeID,
		"charge_outcome": auth.Outcome.String(),
	})

	switch auth.Outcome {
	case enums.ChargeOutcomeApproved:
		return g.complete(ctx, claim, txnID, auth.ChargeID, instrumentCountry, req.ClientEmail)
	case enums.ChargeOutcomeActionRequired:
		if err := claim.Suspend(auth.ChargeID); err != nil {
			return nil, err
		}
		g.logg.Info(ctx, "charge waiting on buyer authentication")
		return nil, pkgerrors.New(pkgerrors.CodePaymentActionRequired, "payment requires additional authentication").
			WithDetails(map[string]any{
				"charge_id":     auth.ChargeID,
				"client_secret": auth.ClientSecret,
			})
	default:
		g.logg.Warn(ctx, "charge declined")
		return nil, pkgerrors.New(pkgerrors.CodePaymentDeclined, "payment declined").
			WithDetails(map[string]any{"reason": auth.DeclineReason})
	}
}

func (g *Gate) confirmEvidence(ctx context.Context, claim *basket.ChargeClaim, req Request) (string, error) {
	country := req.InstrumentCountry
	if country == "" {
		if strings.TrimSpace(req.PaymentMethodID) == "" {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "payment method id is required")
		}
		resolved, err := g.instruments.InstrumentCountry(ctx, req.PaymentMethodID)
		if err != nil {
			return "", err
		}
		country = resolved
	} else if strings.TrimSpace(req.PaymentMethodID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment method id is required")
	}

	ok, err := claim.ConfirmValidTransaction(country)
	if err != nil {
		return "", err
	}
	g.metrics.IncEvidenceCheck(ok)
	if !ok {
		snap := claim.Snapshot()
		g.metrics.IncChargeAttempt("insufficient_evidence")
		g.logg.Warn(g.logg.WithField(ctx, "instrument_country", country), "location evidence does not support displayed price")
		return "", pkgerrors.New(pkgerrors.CodeInsufficientEvidence, "location evidence does not support the displayed price").
			WithDetails(map[string]any{
				"provisional_country": snap.Evidence.ProvisionalCountry,
				"total":               snap.Totals.Total.StringFixed(2),
				"vat_total":           snap.Totals.VatTotal.StringFixed(2),
			})
	}
	return types.NormalizeCountry(country), nil
}

// cancelPending voids a charge still waiting on buyer authentication before a
// new one is attempted, so the basket never has two live payments.
func (g *Gate) cancelPending(ctx context.Context, claim *basket.ChargeClaim, chargeID string) error {
	ctx = g.logg.WithField(ctx, "pending_charge_id", chargeID)
	if err := g.authorizer.Cancel(ctx, chargeID); err != nil {
		g.metrics.IncChargeAttempt("rejected")
		g.logg.Error(ctx, "failed to cancel pending charge", err)
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "a pending charge could not be cancelled; resume it instead").
			WithDetails(map[string]any{"charge_id": chargeID})
	}
	g.logg.Info(ctx, "pending charge cancelled before new attempt")
	return claim.ClearPending(chargeID)
}

func (g *Gate) resume(ctx context.Context, claim *basket.ChargeClaim, chargeID string) (payments.Authorization, error) {
	snap := claim.Snapshot()
	if snap.State != enums.BasketStateEvidenceConfirmed || snap.PendingChargeID != chargeID {
		g.metrics.IncChargeAttempt("rejected")
		return payments.Authorization{}, pkgerrors.New(pkgerrors.CodeStateConflict, "no pending charge to resume").
			WithDetails(map[string]any{"charge_id": chargeID})
	}
	auth, err := g.authorizer.Resume(ctx, chargeID)
	if err != nil {
		g.metrics.IncChargeAttempt("error")
		g.logg.Error(ctx, "payment resume failed", err)
		return payments.Authorization{}, err
	}
	return auth, nil
}

func (g *Gate) complete(ctx context.Context, claim *basket.ChargeClaim, txnID uuid.UUID, chargeID, instrumentCountry, clientEmail string) (*models.Transaction, error) {
	snap, err := claim.Complete()
	if err != nil {
		g.logg.Error(ctx, "approved charge could not complete basket", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "complete basket")
	}

	txn, err := BuildTransaction(TransactionInput{
		ID:                txnID,
		Basket:            snap,
		ChargeID:          chargeID,
		InstrumentCountry: instrumentCountry,
		Currency:          g.currency,
		Description:       g.description,
		ClientEmail:       clientEmail,
		TestMode:          g.testMode,
	})
	if err != nil {
		g.logg.Error(ctx, "failed to build transaction", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build transaction")
	}

	ctx = g.logg.WithTransactionID(ctx, txn.ID.String())
	if err := g.recorder.Record(ctx, txn); err != nil {
		g.logg.Error(ctx, "charge succeeded but transaction was not recorded", err)
		return txn, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record transaction").
			WithDetails(map[string]any{"transaction_id": txn.ID.String(), "charge_id": chargeID})
	}
	g.logg.Info(ctx, "basket charged")
	return txn, nil
}

func (g *Gate) lock(ctx context.Context, basketID uuid.UUID) (func(), error) {
	if g.locker == nil {
		return func() {}, nil
	}
	key := g.locker.ChargeLockKey(basketID.String())
	owner := uuid.NewString()
	acquired, err := g.locker.AcquireLock(ctx, key, owner, g.lockTTL)
	if err != nil {
		g.logg.Warn(ctx, fmt.Sprintf("charge lock unavailable, relying on in-process claim: %v", err))
		return func() {}, nil
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "a charge for this basket is already in progress")
	}
	return func() {
		if err := g.locker.ReleaseLock(context.WithoutCancel(ctx), key, owner); err != nil {
			g.logg.Warn(ctx, fmt.Sprintf("failed to release charge lock: %v", err))
		}
	}, nil
}

// attemptKey is unique per charge attempt. Reusing a key with a different
// amount is rejected by the processor, and a basket can be repriced between
// attempts.
func attemptKey(basketID, txnID uuid.UUID) string {
	return basketID.String() + ":" + txnID.String()
}

// chargeMetadata merges one-off line item metadata into the processor's
// charge metadata and tags it with the transaction ID.
func chargeMetadata(items []basket.LineItem, txnID uuid.UUID) map[string]string {
	out := map[string]string{}
	for _, item := range items {
		if item.IsSubscription() {
			continue
		}
		for k, v := range item.Metadata {
			out[k] = v
		}
	}
	out[metadataTransactionUID] = txnID.String()
	return out
}
