// Package basket holds the VAT-aware basket ledger: line items, location
// evidence, derived totals and the Draft → EvidenceConfirmed → Complete
// lifecycle.
package basket

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/patternseek/ecommerce/internal/evidence"
	"github.com/patternseek/ecommerce/internal/vat"
	"github.com/patternseek/ecommerce/pkg/enums"
	pkgerrors "github.com/patternseek/ecommerce/pkg/errors"
	"github.com/patternseek/ecommerce/pkg/types"
)

// Config fixes the vendor for the lifetime of a basket.
type Config struct {
	VendorCountry string
	VendorVatRate decimal.Decimal
	Rates         vat.RateSource
}

// Ledger is a single buyer's basket. All methods are safe for concurrent
// use; each call observes and leaves the basket in a consistent state.
type Ledger struct {
	mu     sync.Mutex
	id     uuid.UUID
	pricer *vat.Pricer

	in      inputs
	derived derived

	state           enums.BasketState
	charging        bool
	pendingChargeID string
	createdAt       time.Time
	updatedAt       time.Time
}

// Snapshot is a point-in-time copy of a basket.
type Snapshot struct {
	ID              uuid.UUID         `json:"id"`
	State           enums.BasketState `json:"state"`
	Items           []LineItem        `json:"items"`
	Address         types.Address     `json:"address"`
	Evidence        evidence.Evidence `json:"evidence"`
	VatNumber       VatNumberResult   `json:"vat_number"`
	Totals          Totals            `json:"totals"`
	AddressReady    bool              `json:"address_ready"`
	ReadyForPayment bool              `json:"ready_for_payment"`
	VatInfoOk       bool              `json:"vat_info_ok"`
	PendingChargeID string            `json:"pending_charge_id,omitempty"`
	VendorCountry   string            `json:"vendor_country"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// New validates items and returns a Draft basket with its totals computed.
func New(cfg Config, items []LineItem) (*Ledger, error) {
	pricer, err := vat.NewPricer(cfg.VendorCountry, cfg.VendorVatRate, cfg.Rates)
	if err != nil {
		return nil, fmt.Errorf("basket config: %w", err)
	}
	prepared, err := prepareItems(nil, items)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	l := &Ledger{
		id:        uuid.New(),
		pricer:    pricer,
		in:        inputs{items: prepared, vatNumber: VatNumberResult{Status: enums.VatNumberStatusNone}},
		state:     enums.BasketStateDraft,
		createdAt: now,
		updatedAt: now,
	}
	l.recomputeLocked()
	return l, nil
}

// ID returns the basket identifier.
func (l *Ledger) ID() uuid.UUID {
	return l.id
}

// AddLineItems appends items. Either all of them are added or none are.
func (l *Ledger) AddLineItems(items ...LineItem) error {
	return l.mutate(func() error {
		prepared, err := prepareItems(l.in.items, items)
		if err != nil {
			return err
		}
		l.in.items = append(l.in.items, prepared...)
		return nil
	})
}

// SetAddress replaces the billing address.
func (l *Ledger) SetAddress(addr types.Address) error {
	addr = addr.Normalize()
	country, err := types.ParseCountry(addr.Country)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address country")
	}
	addr.Country = country
	return l.mutate(func() error {
		l.in.address = addr
		return nil
	})
}

// SetIPCountry records the country the buyer's IP address geolocates to.
// An empty code clears the signal.
func (l *Ledger) SetIPCountry(code string) error {
	country, err := types.ParseCountry(code)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid ip country")
	}
	return l.mutate(func() error {
		l.in.ipCountry = country
		return nil
	})
}

// SetVatNumberResult records the outcome of a VAT number check. Numbers that
// did not validate are dropped along with their country.
func (l *Ledger) SetVatNumberResult(result VatNumberResult) error {
	normalized, err := normalizeVatResult(result)
	if err != nil {
		return err
	}
	return l.mutate(func() error {
		l.in.vatNumber = normalized
		return nil
	})
}

func normalizeVatResult(result VatNumberResult) (VatNumberResult, error) {
	if result.Status == "" {
		result.Status = enums.VatNumberStatusNone
	}
	if !result.Status.IsValid() {
		return VatNumberResult{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid vat number status %q", result.Status))
	}
	if !result.Status.IsAuthoritative() {
		return VatNumberResult{Status: result.Status}, nil
	}
	country, err := types.ParseCountry(result.Country)
	if err != nil {
		return VatNumberResult{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid vat number country")
	}
	if country == "" || result.Number == "" {
		return VatNumberResult{}, pkgerrors.New(pkgerrors.CodeValidation, "vat number and country are required")
	}
	return VatNumberResult{Number: result.Number, Country: country, Status: result.Status}, nil
}

// Totals returns the current totals.
func (l *Ledger) Totals() Totals {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.derived.totals
}

// ReadyForPayment reports whether the address is complete and the basket unpaid.
func (l *Ledger) ReadyForPayment() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readyLocked()
}

// VatInfoOk reports whether the current evidence supports the displayed price.
func (l *Ledger) VatInfoOk() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.derived.vatInfoOk(l.in.vatNumber, l.derived.evidence.ProvisionalCountry)
}

// Evidence returns the fused location evidence.
func (l *Ledger) Evidence() evidence.Evidence {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.derived.evidence
}

// Items returns copies of the priced line items.
func (l *Ledger) Items() []LineItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneItems(l.derived.items)
}

// State returns the lifecycle state.
func (l *Ledger) State() enums.BasketState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Snapshot returns a consistent copy of the whole basket.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// ConfirmValidTransaction records the payment instrument's country and
// reports whether the evidence now supports the price the buyer was shown.
// On success the basket moves to EvidenceConfirmed; otherwise it is repriced
// on the new evidence and stays in Draft.
func (l *Ledger) ConfirmValidTransaction(instrumentCountry string) (bool, error) {
	country, err := types.ParseCountry(instrumentCountry)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid instrument country")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.mutableLocked(); err != nil {
		return false, err
	}
	return l.confirmLocked(country), nil
}

// BeginCharge claims the basket's single charge slot. Only one claim can be
// outstanding; the holder must Complete, Suspend or Release it.
func (l *Ledger) BeginCharge() (*ChargeClaim, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == enums.BasketStateComplete {
		return nil, errAlreadyComplete()
	}
	if !l.derived.addressReady {
		return nil, pkgerrors.New(pkgerrors.CodeBasketNotReady, "billing address incomplete").
			WithDetails(map[string]any{"required": []string{"line1", "postal_code", "country"}})
	}
	if l.charging {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "a charge for this basket is already in progress")
	}
	l.charging = true
	return &ChargeClaim{ledger: l}, nil
}

func (l *Ledger) mutate(apply func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.mutableLocked(); err != nil {
		return err
	}
	if err := apply(); err != nil {
		return err
	}
	l.recomputeLocked()
	if l.state == enums.BasketStateEvidenceConfirmed {
		l.state = enums.BasketStateDraft
	}
	return nil
}

func (l *Ledger) mutableLocked() error {
	if l.state == enums.BasketStateComplete {
		return errAlreadyComplete()
	}
	if l.charging {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "basket cannot change while a charge is in progress")
	}
	if l.pendingChargeID != "" {
		return errPendingCharge(l.pendingChargeID)
	}
	return nil
}

func (l *Ledger) confirmLocked(instrumentCountry string) bool {
	displayed := l.derived.evidence.ProvisionalCountry
	shown := l.derived.totals
	l.in.cardCountry = instrumentCountry
	l.recomputeLocked()

	// The buyer may only be charged the amount they were shown.
	ok := l.derived.vatInfoOk(l.in.vatNumber, displayed) && sameAmounts(shown, l.derived.totals)
	if ok {
		l.state = enums.BasketStateEvidenceConfirmed
	} else {
		l.state = enums.BasketStateDraft
	}
	return ok
}

func sameAmounts(a, b Totals) bool {
	return a.Total.Equal(b.Total) && a.VatTotal.Equal(b.VatTotal)
}

// ClearPendingCharge forgets a charge that was waiting on buyer
// authentication once the processor has voided it. The basket returns to
// Draft so its evidence is confirmed again before the next charge.
func (l *Ledger) ClearPendingCharge(chargeID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.charging {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "basket cannot change while a charge is in progress")
	}
	return l.clearPendingLocked(chargeID)
}

func (l *Ledger) clearPendingLocked(chargeID string) error {
	if l.state == enums.BasketStateComplete {
		return errAlreadyComplete()
	}
	if chargeID == "" || l.pendingChargeID != chargeID {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "no such pending charge").
			WithDetails(map[string]any{"charge_id": chargeID})
	}
	l.pendingChargeID = ""
	l.state = enums.BasketStateDraft
	l.updatedAt = time.Now().UTC()
	return nil
}

// idleSince reports whether the basket may be forgotten at now. Baskets with
// a charge in flight or awaiting the buyer are always kept.
func (l *Ledger) idleSince(now time.Time, idleTTL, completeTTL time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.charging || l.pendingChargeID != "" {
		return false
	}
	age := now.Sub(l.updatedAt)
	if l.state == enums.BasketStateComplete {
		return age >= completeTTL
	}
	return age >= idleTTL
}

func (l *Ledger) recomputeLocked() {
	l.derived = compute(l.pricer, l.in)
	l.updatedAt = time.Now().UTC()
}

func (l *Ledger) readyLocked() bool {
	return l.derived.addressReady && l.state != enums.BasketStateComplete
}

func (l *Ledger) snapshotLocked() Snapshot {
	return Snapshot{
		ID:              l.id,
		State:           l.state,
		Items:           cloneItems(l.derived.items),
		Address:         l.in.address,
		Evidence:        l.derived.evidence,
		VatNumber:       l.in.vatNumber,
		Totals:          l.derived.totals,
		AddressReady:    l.derived.addressReady,
		ReadyForPayment: l.readyLocked(),
		VatInfoOk:       l.derived.vatInfoOk(l.in.vatNumber, l.derived.evidence.ProvisionalCountry),
		PendingChargeID: l.pendingChargeID,
		VendorCountry:   l.pricer.VendorCountry(),
		CreatedAt:       l.createdAt,
		UpdatedAt:       l.updatedAt,
	}
}

func cloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, item := range items {
		out[i] = item.clone()
	}
	return out
}

func errPendingCharge(chargeID string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "basket has a charge awaiting buyer authentication").
		WithDetails(map[string]any{"charge_id": chargeID})
}

func errAlreadyComplete() error {
	return pkgerrors.New(pkgerrors.CodeBasketComplete, "basket has already been paid")
}

// ErrClaimClosed is returned when a claim is used after it was completed,
// suspended or released.
var ErrClaimClosed = errors.New("charge claim already closed")
