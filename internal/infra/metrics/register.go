package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric the bot exports.
const Namespace = "invoicing_bot"

var (
	mu         sync.Mutex
	registered bool
	collectors []prometheus.Collector
)

// register queues collectors from each file's init.
func register(cs ...prometheus.Collector) {
	collectors = append(collectors, cs...)
}

// MustRegister adds the queued collectors to reg under Namespace. Only the
// first call registers; a nil reg means the default registry.
func MustRegister(reg prometheus.Registerer) {
	mu.Lock()
	defer mu.Unlock()
	if registered {
		return
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	prometheus.WrapRegistererWithPrefix(Namespace+"_", reg).MustRegister(collectors...)
	registered = true
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
