package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(buildInfo, dbConns, cacheRequestsTotal)
}

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Always 1; labels carry the running version and commit.",
		},
		[]string{"version", "commit"},
	)

	dbConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_connections",
			Help: "Postgres pool connections by state (idle, acquired, total).",
		},
		[]string{"state"},
	)

	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Redis read-through cache lookups by cache and result (hit, miss, bypass).",
		},
		[]string{"cache", "result"},
	)
)

func SetBuildInfo(version, commit string) {
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, commit).Set(1)
}

// SetDBPoolStats publishes a pgxpool snapshot.
func SetDBPoolStats(total, idle, acquired int32) {
	for state, n := range map[string]int32{"total": total, "idle": idle, "acquired": acquired} {
		dbConns.WithLabelValues(state).Set(float64(n))
	}
}

func IncCacheRequest(cache, result string) {
	cacheRequestsTotal.WithLabelValues(norm(cache), norm(result)).Inc()
}
