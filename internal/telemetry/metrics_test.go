package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsSink(t *testing.T) {
	var m Metrics
	before := testutil.ToFloat64(DirectiveCount.WithLabelValues("uppercase.rows.out"))
	m.Count("uppercase.rows.out", 3)
	m.Count("uppercase.rows.out", 2)
	if got := testutil.ToFloat64(DirectiveCount.WithLabelValues("uppercase.rows.out")); got-before != 5 {
		t.Fatalf("counter delta = %v, want 5", got-before)
	}

	m.Gauge("lag", 4.5)
	if got := testutil.ToFloat64(DirectiveGauge.WithLabelValues("lag")); got != 4.5 {
		t.Fatalf("gauge = %v", got)
	}
}

func TestExposeDisabled(t *testing.T) {
	if srv := Expose(0); srv != nil {
		t.Fatalf("port 0 should not start a server")
	}
}
