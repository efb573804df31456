package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		telegramUpdatesTotal,
		telegramCommandsReceivedTotal,
		telegramCallbacksTotal,
		telegramRateLimitTriggeredTotal,
		telegramSendsTotal,
		adminNotificationsTotal,
	)
}

var (
	telegramUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_updates_total",
			Help: "Incoming updates by kind (command, text, callback, file).",
		},
		[]string{"kind"},
	)

	telegramCommandsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_commands_received_total",
			Help: "Counts incoming slash commands.",
		},
		[]string{"command"},
	)

	telegramCallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_callbacks_total",
			Help: "Callback queries by parsed route.",
		},
		[]string{"route"},
	)

	telegramRateLimitTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_rate_limit_triggered_total",
			Help: "Total number of times users have been rate-limited.",
		},
	)

	telegramSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_sends_total",
			Help: "Outbound bot API calls by method and success.",
		},
		[]string{"method", "success"},
	)

	adminNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_notifications_total",
			Help: "Messages fanned out to administrator chats.",
		},
		[]string{"success"},
	)
)

func IncTelegramUpdate(kind string) {
	telegramUpdatesTotal.WithLabelValues(norm(kind)).Inc()
}

func IncTelegramCommand(command string) {
	telegramCommandsReceivedTotal.WithLabelValues(norm(command)).Inc()
}

func IncTelegramCallback(route string) {
	telegramCallbacksTotal.WithLabelValues(norm(route)).Inc()
}

func IncRateLimitTriggered() {
	telegramRateLimitTriggeredTotal.Inc()
}

func IncTelegramSend(method string, success bool) {
	telegramSendsTotal.WithLabelValues(norm(method), strconv.FormatBool(success)).Inc()
}

func IncAdminNotification(success bool) {
	adminNotificationsTotal.WithLabelValues(strconv.FormatBool(success)).Inc()
}
