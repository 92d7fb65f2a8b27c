package basket

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/patternseek/ecommerce/pkg/enums"
	pkgerrors "github.com/patternseek/ecommerce/pkg/errors"
	"github.com/patternseek/ecommerce/pkg/types"
)

// ChargeClaim is the exclusive right to charge a basket. While it is open
// the basket rejects every other mutation and every other claim.
type ChargeClaim struct {
	ledger *Ledger
	closed bool
}

// BasketID returns the claimed basket's identifier.
func (c *ChargeClaim) BasketID() uuid.UUID {
	return c.ledger.id
}

// Snapshot returns the claimed basket's current state.
func (c *ChargeClaim) Snapshot() Snapshot {
	return c.ledger.Snapshot()
}

// ConfirmValidTransaction is Ledger.ConfirmValidTransaction for the claim holder.
func (c *ChargeClaim) ConfirmValidTransaction(instrumentCountry string) (bool, error) {
	country, err := types.ParseCountry(instrumentCountry)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid instrument country")
	}
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	if c.closed {
		return false, ErrClaimClosed
	}
	return l.confirmLocked(country), nil
}

// Complete marks the basket paid and closes the claim. It fails unless the
// evidence was confirmed first, and can succeed at most once per basket.
func (c *ChargeClaim) Complete() (Snapshot, error) {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	if c.closed {
		return Snapshot{}, ErrClaimClosed
	}
	switch l.state {
	case enums.BasketStateComplete:
		return Snapshot{}, errAlreadyComplete()
	case enums.BasketStateEvidenceConfirmed:
	default:
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot complete basket in state %s", l.state))
	}
	l.state = enums.BasketStateComplete
	l.pendingChargeID = ""
	l.charging = false
	l.updatedAt = time.Now().UTC()
	c.closed = true
	return l.snapshotLocked(), nil
}

// Suspend closes the claim while the buyer completes an extra authentication
// step. The basket stays EvidenceConfirmed and remembers chargeID so the
// charge can be resumed.
func (c *ChargeClaim) Suspend(chargeID string) error {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	if c.closed {
		return ErrClaimClosed
	}
	if l.state != enums.BasketStateEvidenceConfirmed {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot suspend a charge for basket in state %s", l.state))
	}
	l.pendingChargeID = chargeID
	l.charging = false
	c.closed = true
	return nil
}

// ClearPending forgets a pending charge that the holder has voided with the
// processor. The basket drops back to Draft.
func (c *ChargeClaim) ClearPending(chargeID string) error {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	if c.closed {
		return ErrClaimClosed
	}
	return l.clearPendingLocked(chargeID)
}

// Release abandons the claim. It is safe to call more than once and after
// Complete or Suspend.
func (c *ChargeClaim) Release() {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	if c.closed {
		return
	}
	l.charging = false
	c.closed = true
}
