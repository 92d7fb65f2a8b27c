package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records VAT checks, evidence decisions and charge attempts.
// A nil *CheckoutMetrics is safe to use and records nothing.
type CheckoutMetrics struct {
	vatChecks      *prometheus.CounterVec
	evidenceChecks *prometheus.CounterVec
	chargeAttempts *prometheus.CounterVec
	registryLookup *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	vatChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vat_number_checks_total",
		Help: "VAT registration number checks by resulting status.",
	}, []string{"status"})
	evidenceChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "evidence_checks_total",
		Help: "Location evidence confirmations by outcome.",
	}, []string{"outcome"})
	chargeAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "charge_attempts_total",
		Help: "Charge attempts by outcome.",
	}, []string{"outcome"})
	registryLookup := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "registry_lookup_seconds",
		Help:    "Latency of VAT registry lookups in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"registry"})
	reg.MustRegister(vatChecks, evidenceChecks, chargeAttempts, registryLookup)
	return &CheckoutMetrics{
		vatChecks:      vatChecks,
		evidenceChecks: evidenceChecks,
		chargeAttempts: chargeAttempts,
		registryLookup: registryLookup,
	}
}

// IncVatCheck counts a VAT number check with the given status.
func (c *CheckoutMetrics) IncVatCheck(status string) {
	if c == nil || c.vatChecks == nil {
		return
	}
	c.vatChecks.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncEvidenceCheck counts an evidence confirmation, labelled confirmed or insufficient.
func (c *CheckoutMetrics) IncEvidenceCheck(ok bool) {
	if c == nil || c.evidenceChecks == nil {
		return
	}
	outcome := "insufficient"
	if ok {
		outcome = "confirmed"
	}
	c.evidenceChecks.WithLabelValues(outcome).Inc()
}

// IncChargeAttempt counts a charge attempt with the given outcome.
func (c *CheckoutMetrics) IncChargeAttempt(outcome string) {
	if c == nil || c.chargeAttempts == nil {
		return
	}
	c.chargeAttempts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveRegistryLookup records how long a registry call took.
func (c *CheckoutMetrics) ObserveRegistryLookup(registry string, duration time.Duration) {
	if c == nil || c.registryLookup == nil {
		return
	}
	c.registryLookup.WithLabelValues(normalizeLabel(registry)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
