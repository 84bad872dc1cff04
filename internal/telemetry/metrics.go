package telemetry

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"txservice/internal/logging"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txservice_http_requests_total",
			Help: "Transform endpoint requests by route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "txservice_http_request_duration_seconds",
			Help:    "Transform endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	DirectiveCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txservice_directive_count_total",
			Help: "Counters reported by directives, e.g. <directive>.rows.out",
		},
		[]string{"metric"},
	)

	DirectiveGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "txservice_directive_gauge",
			Help: "Gauges reported by directives",
		},
		[]string{"metric"},
	)

	StreamMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txservice_stream_messages_total",
			Help: "Stream messages by outcome (ok, recipe_error, sink_error)",
		},
		[]string{"pipeline", "outcome"},
	)
)

// Metrics forwards directive metrics to Prometheus.
type Metrics struct{}

func (Metrics) Count(metric string, delta int) {
	DirectiveCount.WithLabelValues(metric).Add(float64(delta))
}

func (Metrics) Gauge(metric string, value float64) {
	DirectiveGauge.WithLabelValues(metric).Set(value)
}

// Expose serves /metrics on port in the background. Port 0 disables it and
// returns nil.
func Expose(port int) *http.Server {
	if port == 0 {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.L().Error("metrics endpoint stopped", zap.Error(err))
		}
	}()
	return srv
}
