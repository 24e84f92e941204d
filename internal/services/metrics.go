package services

import "github.com/prometheus/client_golang/prometheus"

var (
	likesToggled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sufihub_likes_toggled_total",
			Help: "Like toggles by target kind and resulting state.",
		},
		[]string{"target", "action"},
	)
	notificationsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sufihub_notifications_written_total",
			Help: "Notifications materialized by type.",
		},
		[]string{"type"},
	)
	notificationHookFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sufihub_notification_hook_failures_total",
			Help: "Fan-out hook errors that were logged and swallowed.",
		},
		[]string{"event"},
	)
	messagesSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sufihub_messages_swept_total",
			Help: "Messages purged by the retention sweep.",
		},
	)
)

func init() {
	prometheus.MustRegister(likesToggled, notificationsWritten, notificationHookFailures, messagesSwept)
}
