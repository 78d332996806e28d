package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestEscalationMetricsExistAndIncrement(t *testing.T) {
	before := testutil.ToFloat64(EscalationsCreated)
	EscalationsCreated.Inc()
	if v := testutil.ToFloat64(EscalationsCreated); v != before+1 {
		t.Fatalf("expected EscalationsCreated to increase by 1, got %v -> %v", before, v)
	}

	EscalationTransitionConflicts.WithLabelValues("resolve", "rejected").Inc()
	if v := testutil.ToFloat64(EscalationTransitionConflicts.WithLabelValues("resolve", "rejected")); v < 1 {
		t.Fatalf("expected EscalationTransitionConflicts >= 1, got %v", v)
	}
}

func TestBroadcastDeliveriesLabelCardinality(t *testing.T) {
	BroadcastDeliveries.Reset()
	defer BroadcastDeliveries.Reset()
	labels := []string{"new_request", "failed"}
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("BroadcastDeliveries panicked with labels %v: %v", labels, r)
		}
	}()

	BroadcastDeliveries.WithLabelValues(labels...).Inc()
	if v := testutil.ToFloat64(BroadcastDeliveries.WithLabelValues(labels...)); v != 1 {
		t.Fatalf("expected metric value 1 after increment, got %v", v)
	}
}

func TestHubConnectionsGauge(t *testing.T) {
	HubConnections.Set(3)
	if v := testutil.ToFloat64(HubConnections); v != 3 {
		t.Fatalf("expected HubConnections 3, got %v", v)
	}
	HubConnections.Set(0)
}

func TestMetricsHandler(t *testing.T) {
	if MetricsHandler() == nil {
		t.Fatal("expected non-nil metrics handler")
	}
}
