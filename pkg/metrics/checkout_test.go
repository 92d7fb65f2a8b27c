package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCheckoutMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCheckoutMetrics(reg)

	metrics.IncVatCheck("valid")
	metrics.IncVatCheck("valid")
	metrics.IncEvidenceCheck(true)
	metrics.IncEvidenceCheck(false)
	metrics.IncChargeAttempt("approved")
	metrics.IncChargeAttempt("")
	metrics.ObserveRegistryLookup("vies", 120*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "vat_number_checks_total", "status", "valid"); err != nil {
		t.Fatalf("fetch vat checks: %v", err)
	} else if got != 2 {
		t.Fatalf("expected vat checks=2, got %f", got)
	}

	for _, outcome := range []string{"confirmed", "insufficient"} {
		if got, err := fetchCounterValue(mfs, "evidence_checks_total", "outcome", outcome); err != nil {
			t.Fatalf("fetch evidence %s: %v", outcome, err)
		} else if got != 1 {
			t.Fatalf("expected evidence %s=1, got %f", outcome, got)
		}
	}

	if got, err := fetchCounterValue(mfs, "charge_attempts_total", "outcome", "unknown"); err != nil {
		t.Fatalf("fetch charge attempts: %v", err)
	} else if got != 1 {
		t.Fatalf("expected empty outcome to be labelled unknown, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "registry_lookup_seconds", "registry", "vies"); err != nil {
		t.Fatalf("fetch registry lookup: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected lookup sum > 0, got %f", got)
	}
}

func TestCheckoutMetricsNilSafe(t *testing.T) {
	var metrics *CheckoutMetrics
	metrics.IncVatCheck("valid")
	metrics.IncEvidenceCheck(true)
	metrics.IncChargeAttempt("approved")
	metrics.ObserveRegistryLookup("hmrc", time.Second)

	unregistered := NewCheckoutMetrics(nil)
	unregistered.IncChargeAttempt("declined")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
