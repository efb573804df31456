package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(businessCallsLatencyMs) }

var businessCallsLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "business_calls_latency_ms",
		Help:    "Business API call latency distribution in milliseconds.",
		Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000},
	},
	[]string{"backend", "op", "success"},
)

// ObserveBusinessCall records one call; use as defer metrics.ObserveBusinessCall("http", "get_client", time.Now(), &err).
func ObserveBusinessCall(backend, op string, start time.Time, errp *error) {
	success := errp == nil || *errp == nil
	businessCallsLatencyMs.WithLabelValues(norm(backend), norm(op), strconv.FormatBool(success)).
		Observe(float64(time.Since(start).Milliseconds()))
}
