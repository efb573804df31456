package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		flowOutcomesTotal,
		validationFailuresTotal,
		stockMovementsTotal,
		paymentProofsTotal,
		companiesCreatedTotal,
		sessionLockContentionTotal,
		sessionsExpiredTotal,
	)
}

var (
	flowOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flow_outcomes_total",
			Help: "Handled updates per flow and classified outcome.",
		},
		[]string{"flow", "outcome"}, // outcome: ok, validation, not_found, duplicate, limit, transport, state_corruption, unknown, panic
	)

	validationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validation_failures_total",
			Help: "Rejected free-text inputs per flow.",
		},
		[]string{"flow"},
	)

	stockMovementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_movements_total",
			Help: "Stock movements written by type.",
		},
		[]string{"type"},
	)

	paymentProofsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_proofs_total",
			Help: "Payment proofs submitted for review.",
		},
		[]string{"action", "method"},
	)

	companiesCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "companies_created_total",
			Help: "Companies created through onboarding by plan.",
		},
		[]string{"plan"},
	)

	sessionLockContentionTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "session_lock_contention_total",
			Help: "Updates dropped because the session of the user stayed locked.",
		},
	)

	sessionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_expired_total",
			Help: "Idle sessions removed by the in-memory sweeper.",
		},
	)
)

func IncFlowOutcome(flow, outcome string) {
	flowOutcomesTotal.WithLabelValues(norm(flow), norm(outcome)).Inc()
}

func IncValidationFailure(flow string) {
	validationFailuresTotal.WithLabelValues(norm(flow)).Inc()
}

func IncStockMovement(movementType string) {
	stockMovementsTotal.WithLabelValues(norm(movementType)).Inc()
}

func IncPaymentProof(action, method string) {
	paymentProofsTotal.WithLabelValues(norm(action), norm(method)).Inc()
}

func IncCompanyCreated(plan string) {
	companiesCreatedTotal.WithLabelValues(norm(plan)).Inc()
}

func IncSessionLockContention() {
	sessionLockContentionTotal.Inc()
}

func AddSessionsExpired(n int) {
	sessionsExpiredTotal.Add(float64(n))
}
