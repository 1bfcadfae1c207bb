package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSucceeded    = "succeeded"
	outcomePartial      = "partial"
	outcomeNoRecipients = "no_recipients"
	outcomeInvalid      = "invalid"
	outcomeDirectory    = "directory_error"
)

var (
	DispatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_dispatch_total",
		Help: "Total number of notification dispatches by outcome.",
	}, []string{"outcome"})

	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_created_total",
		Help: "Total number of per-recipient notification creates by status.",
	}, []string{"status"})

	DispatchRecipients = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "notification_dispatch_recipients",
		Help:    "Number of resolved recipients per dispatch.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "notification_dispatch_duration_seconds",
		Help:    "Latency of a dispatch from validation to the last create.",
		Buckets: prometheus.DefBuckets,
	})
)

func recordDispatch(outcome string) {
	DispatchesTotal.WithLabelValues(outcome).Inc()
}

func recordCreate(err error) {
	if err != nil {
		NotificationsCreated.WithLabelValues("failed").Inc()
		return
	}
	NotificationsCreated.WithLabelValues("created").Inc()
}
