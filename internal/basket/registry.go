package basket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/patternseek/ecommerce/pkg/errors"
	"github.com/patternseek/ecommerce/pkg/logger"
)

// Registry keeps live baskets in memory, keyed by ID.
type Registry struct {
	mu      sync.RWMutex
	baskets map[uuid.UUID]*Ledger
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{baskets: make(map[uuid.UUID]*Ledger)}
}

// Put stores l under its ID.
func (r *Registry) Put(l *Ledger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.baskets[l.ID()] = l
}

// Get returns the basket with the given ID.
func (r *Registry) Get(id uuid.UUID) (*Ledger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.baskets[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "basket not found")
	}
	return l, nil
}

// Len returns the number of live baskets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.baskets)
}

// EvictionPolicy bounds how long baskets stay in memory.
type EvictionPolicy struct {
	// IdleTTL applies to unpaid baskets, measured from their last change.
	IdleTTL time.Duration
	// CompleteTTL applies to paid baskets, measured from completion.
	CompleteTTL time.Duration
	Interval    time.Duration
}

// Evict forgets every basket the policy lets go of at now and returns how
// many were removed. Baskets with a charge in flight or awaiting buyer
// authentication are kept.
func (r *Registry) Evict(now time.Time, policy EvictionPolicy) int {
	r.mu.RLock()
	var stale []uuid.UUID
	for id, l := range r.baskets {
		if l.idleSince(now, policy.IdleTTL, policy.CompleteTTL) {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	if len(stale) == 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for _, id := range stale {
		l, ok := r.baskets[id]
		// re-check: the basket may have changed since the scan
		if !ok || !l.idleSince(now, policy.IdleTTL, policy.CompleteTTL) {
			continue
		}
		delete(r.baskets, id)
		removed++
	}
	return removed
}

// RunEviction sweeps the registry every policy.Interval until ctx is done.
func (r *Registry) RunEviction(ctx context.Context, policy EvictionPolicy, logg *logger.Logger) {
	if policy.Interval <= 0 || policy.IdleTTL <= 0 || policy.CompleteTTL <= 0 {
		logg.Warn(ctx, "basket eviction disabled")
		return
	}
	ticker := time.NewTicker(policy.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if removed := r.Evict(now.UTC(), policy); removed > 0 {
				logg.Info(logg.WithFields(ctx, map[string]any{
					"evicted": removed,
					"live":    r.Len(),
				}), "evicted idle baskets")
			}
		}
	}
}
