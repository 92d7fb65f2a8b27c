package basket

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/patternseek/ecommerce/internal/vatnumber"
	"github.com/patternseek/ecommerce/pkg/enums"
	pkgerrors "github.com/patternseek/ecommerce/pkg/errors"
	"github.com/patternseek/ecommerce/pkg/logger"
	"github.com/patternseek/ecommerce/pkg/types"
)

// IPLocator resolves a client IP to a country; "" means unknown.
type IPLocator interface {
	CountryForIP(ctx context.Context, ip string) string
}

// VatNumberValidator checks a VAT number against its registry.
type VatNumberValidator interface {
	Validate(ctx context.Context, country, number string) (vatnumber.Result, error)
}

// RateLimiter bounds how often a basket may hit the VAT registries.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// ChargeCanceller voids a payment that is still waiting on the buyer.
type ChargeCanceller interface {
	Cancel(ctx context.Context, chargeID string) error
}

// Service is the entry point used by transport handlers.
type Service interface {
	Create(ctx context.Context, input CreateInput) (Snapshot, error)
	Get(ctx context.Context, id uuid.UUID) (Snapshot, error)
	Ledger(ctx context.Context, id uuid.UUID) (*Ledger, error)
	AddLineItems(ctx context.Context, id uuid.UUID, items []LineItem) (Snapshot, error)
	SetAddress(ctx context.Context, id uuid.UUID, addr types.Address) (Snapshot, error)
	CheckVatNumber(ctx context.Context, id uuid.UUID, country, number string) (Snapshot, error)
}

// CreateInput opens a basket.
type CreateInput struct {
	Items    []LineItem
	ClientIP string
}

// ServiceParams wires a Service. Locator, Limiter and Charges are optional;
// without Charges a basket with a charge awaiting the buyer cannot be edited.
type ServiceParams struct {
	Config         Config
	Registry       *Registry
	Locator        IPLocator
	VatNumbers     VatNumberValidator
	Limiter        RateLimiter
	Charges        ChargeCanceller
	VatCheckLimit  int64
	VatCheckWindow time.Duration
	Logger         *logger.Logger
}

type service struct {
	cfg            Config
	registry       *Registry
	locator        IPLocator
	vatNumbers     VatNumberValidator
	limiter        RateLimiter
	charges        ChargeCanceller
	vatCheckLimit  int64
	vatCheckWindow time.Duration
	logg           *logger.Logger
}

// NewService validates params and returns a Service.
func NewService(params ServiceParams) (Service, error) {
	if params.Registry == nil {
		return nil, fmt.Errorf("basket registry required")
	}
	if params.VatNumbers == nil {
		return nil, fmt.Errorf("vat number validator required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Config.Rates == nil {
		return nil, fmt.Errorf("vat rate table required")
	}
	if params.VatCheckLimit <= 0 {
		params.VatCheckLimit = 10
	}
	if params.VatCheckWindow <= 0 {
		params.VatCheckWindow = time.Hour
	}
	return &service{
		cfg:            params.Config,
		registry:       params.Registry,
		locator:        params.Locator,
		vatNumbers:     params.VatNumbers,
		limiter:        params.Limiter,
		charges:        params.Charges,
		vatCheckLimit:  params.VatCheckLimit,
		vatCheckWindow: params.VatCheckWindow,
		logg:           params.Logger,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (Snapshot, error) {
	ledger, err := New(s.cfg, input.Items)
	if err != nil {
		return Snapshot{}, err
	}
	ctx = s.logg.WithBasketID(ctx, ledger.ID().String())

	if s.locator != nil && input.ClientIP != "" {
		if country := s.locator.CountryForIP(ctx, input.ClientIP); country != "" {
			if err := ledger.SetIPCountry(country); err != nil {
				return Snapshot{}, err
			}
		}
	}

	s.registry.Put(ledger)
	snap := ledger.Snapshot()
	s.logg.Info(ctx, "basket created")
	s.logLineItems(ctx, snap)
	return snap, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	ledger, err := s.registry.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return ledger.Snapshot(), nil
}

func (s *service) Ledger(ctx context.Context, id uuid.UUID) (*Ledger, error) {
	return s.registry.Get(id)
}

func (s *service) AddLineItems(ctx context.Context, id uuid.UUID, items []LineItem) (Snapshot, error) {
	return s.update(ctx, id, func(l *Ledger) error {
		return l.AddLineItems(items...)
	})
}

func (s *service) SetAddress(ctx context.Context, id uuid.UUID, addr types.Address) (Snapshot, error) {
	return s.update(ctx, id, func(l *Ledger) error {
		return l.SetAddress(addr)
	})
}

func (s *service) CheckVatNumber(ctx context.Context, id uuid.UUID, country, number string) (Snapshot, error) {
	ledger, err := s.registry.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	ctx = s.logg.WithBasketID(ctx, id.String())
	if ledger.State() == enums.BasketStateComplete {
		return Snapshot{}, errAlreadyComplete()
	}

	if err := s.allowVatCheck(ctx, id); err != nil {
		return Snapshot{}, err
	}

	result, err := s.vatNumbers.Validate(ctx, country, number)
	if err != nil {
		return Snapshot{}, err
	}
	ctx = s.logg.WithField(ctx, "vat_number_status", result.Status.String())
	s.logg.Info(ctx, "vat number checked")

	return s.update(ctx, id, func(l *Ledger) error {
		return l.SetVatNumberResult(VatNumberResult{
			Number:  result.Number,
			Country: result.Country,
			Status:  result.Status,
		})
	})
}

func (s *service) allowVatCheck(ctx context.Context, id uuid.UUID) error {
	if s.limiter == nil {
		return nil
	}
	allowed, _, err := s.limiter.FixedWindowAllow(ctx, "vat_check:"+id.String(), s.vatCheckLimit, s.vatCheckWindow)
	if err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("vat check rate limiter unavailable: %v", err))
		return nil
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimited, "too many vat number checks for this basket")
	}
	return nil
}

func (s *service) update(ctx context.Context, id uuid.UUID, apply func(*Ledger) error) (Snapshot, error) {
	ledger, err := s.registry.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	ctx = s.logg.WithBasketID(ctx, id.String())
	if err := s.cancelPendingCharge(ctx, ledger); err != nil {
		return Snapshot{}, err
	}
	if err := apply(ledger); err != nil {
		return Snapshot{}, err
	}
	snap := ledger.Snapshot()
	s.logLineItems(ctx, snap)
	return snap, nil
}

// cancelPendingCharge voids a charge left waiting on buyer authentication so
// that editing the basket cannot leave a live payment behind.
func (s *service) cancelPendingCharge(ctx context.Context, ledger *Ledger) error {
	chargeID := ledger.Snapshot().PendingChargeID
	if chargeID == "" || s.charges == nil {
		return nil
	}
	ctx = s.logg.WithField(ctx, "charge_id", chargeID)
	if err := s.charges.Cancel(ctx, chargeID); err != nil {
		s.logg.Error(ctx, "failed to cancel pending charge before basket edit", err)
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "a pending charge could not be cancelled; resume it instead").
			WithDetails(map[string]any{"charge_id": chargeID})
	}
	s.logg.Info(ctx, "pending charge cancelled before basket edit")
	return ledger.ClearPendingCharge(chargeID)
}

func (s *service) logLineItems(ctx context.Context, snap Snapshot) {
	for i, item := range snap.Items {
		itemCtx := s.logg.WithFields(ctx, map[string]any{
			"line_item":            i,
			"product_type":         item.ProductType.String(),
			"is_business_buyer":    item.IsBusinessBuyer,
			"consumption_location": item.ConsumptionLocation.String(),
			"vat_treatment":        item.VatTreatment.String(),
			"vat_rate":             item.VatRate.String(),
			"vat_per_item":         item.VatPerItem.String(),
		})
		s.logg.Debug(itemCtx, "line item after vat calculation")
	}
}
