package vatnumber

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/patternseek/ecommerce/pkg/enums"
	pkgerrors "github.com/patternseek/ecommerce/pkg/errors"
	"github.com/patternseek/ecommerce/pkg/logger"
	"github.com/patternseek/ecommerce/pkg/metrics"
	pkgredis "github.com/patternseek/ecommerce/pkg/redis"
	"github.com/patternseek/ecommerce/pkg/types"
)

const ukCountry = "GB"

// Result is the outcome of a check. Invalid results carry no number or country.
type Result struct {
	Number  string                `json:"number,omitempty"`
	Country string                `json:"country,omitempty"`
	Status  enums.VatNumberStatus `json:"status"`
}

// Cache stores registry answers between checks.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	VatCheckKey(country, number string) string
}

// Settings tunes caching and the circuit breakers guarding each registry.
type Settings struct {
	CacheTTL        time.Duration
	OutageCacheTTL  time.Duration
	BreakerFailures uint32
	BreakerOpenFor  time.Duration
}

// Validator routes numbers to the right registry and turns registry failures
// into UncheckedDueToOutage instead of errors.
type Validator struct {
	uk       Registry
	eu       Registry
	breakers map[string]*gobreaker.CircuitBreaker[bool]
	cache    Cache
	settings Settings
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
}

// NewValidator wires both registries. cache and m may be nil.
func NewValidator(uk, eu Registry, settings Settings, cache Cache, m *metrics.CheckoutMetrics, logg *logger.Logger) (*Validator, error) {
	if uk == nil || eu == nil {
		return nil, fmt.Errorf("vat registries required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if settings.BreakerFailures == 0 {
		settings.BreakerFailures = 5
	}
	if settings.BreakerOpenFor <= 0 {
		settings.BreakerOpenFor = 30 * time.Second
	}

	v := &Validator{
		uk:       uk,
		eu:       eu,
		breakers: make(map[string]*gobreaker.CircuitBreaker[bool], 2),
		cache:    cache,
		settings: settings,
		metrics:  m,
		logg:     logg,
	}
	for _, reg := range []Registry{uk, eu} {
		name := reg.Name()
		failures := settings.BreakerFailures
		v.breakers[name] = gobreaker.NewCircuitBreaker[bool](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     settings.BreakerOpenFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				ctx := logg.WithFields(context.Background(), map[string]any{"registry": name, "from": from.String(), "to": to.String()})
				logg.Warn(ctx, "vat registry circuit breaker state changed")
			},
		})
	}
	return v, nil
}

// Validate checks number for country. Only malformed input is an error;
// registry trouble yields a result with status UncheckedDueToOutage.
func (v *Validator) Validate(ctx context.Context, country, number string) (Result, error) {
	code, err := types.ParseCountry(country)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid vat number country")
	}
	if code == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "vat number country is required")
	}
	normalized := Normalize(code, number)
	if normalized == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "vat number is required")
	}

	registry := v.eu
	if code == ukCountry {
		registry = v.uk
	}
	ctx = v.logg.WithFields(ctx, map[string]any{"registry": registry.Name(), "vat_country": code})

	if status, ok := v.cached(ctx, code, normalized); ok {
		return v.finish(ctx, code, normalized, status, false), nil
	}

	valid, err := v.breakers[registry.Name()].Execute(func() (bool, error) {
		start := time.Now()
		ok, checkErr := registry.Check(ctx, code, normalized)
		v.metrics.ObserveRegistryLookup(registry.Name(), time.Since(start))
		return ok, checkErr
	})

	status := enums.VatNumberStatusInvalid
	switch {
	case err != nil:
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			v.logg.Warn(ctx, "vat registry circuit open; accepting number unchecked")
		} else {
			v.logg.Error(ctx, "vat registry check failed; accepting number unchecked", err)
		}
		status = enums.VatNumberStatusUncheckedDueToOutage
	case valid:
		status = enums.VatNumberStatusValid
	}
	return v.finish(ctx, code, normalized, status, true), nil
}

func (v *Validator) finish(ctx context.Context, country, number string, status enums.VatNumberStatus, store bool) Result {
	v.metrics.IncVatCheck(status.String())
	if store {
		v.store(ctx, country, number, status)
	}
	if !status.IsAuthoritative() {
		return Result{Status: status}
	}
	return Result{Number: number, Country: country, Status: status}
}

func (v *Validator) cached(ctx context.Context, country, number string) (enums.VatNumberStatus, bool) {
	if v.cache == nil {
		return "", false
	}
	raw, err := v.cache.Get(ctx, v.cache.VatCheckKey(country, number))
	if err != nil {
		if !pkgredis.IsMiss(err) {
			v.logg.Warn(ctx, fmt.Sprintf("vat check cache read failed: %v", err))
		}
		return "", false
	}
	status, err := enums.ParseVatNumberStatus(raw)
	if err != nil {
		return "", false
	}
	return status, true
}

func (v *Validator) store(ctx context.Context, country, number string, status enums.VatNumberStatus) {
	if v.cache == nil {
		return
	}
	ttl := v.settings.CacheTTL
	if status == enums.VatNumberStatusUncheckedDueToOutage {
		ttl = v.settings.OutageCacheTTL
	}
	if ttl <= 0 {
		return
	}
	if err := v.cache.Set(ctx, v.cache.VatCheckKey(country, number), status.String(), ttl); err != nil {
		v.logg.Warn(ctx, fmt.Sprintf("vat check cache write failed: %v", err))
	}
}
