package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	inviteTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courtside",
			Name:      "invite_transitions_total",
			Help:      "Count of match invite transitions by transition and outcome.",
		},
		[]string{"transition", "outcome"},
	)

	availabilityWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courtside",
			Name:      "availability_writes_total",
			Help:      "Count of availability slot writes by operation.",
		},
		[]string{"op"},
	)

	conflictsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courtside",
			Name:      "conflicts_detected_total",
			Help:      "Count of rejected writes by the kind of record they collided with.",
		},
		[]string{"source"},
	)

	unauthorizedAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courtside",
			Name:      "unauthorized_attempts_total",
			Help:      "Count of operations rejected because the actor lacked the role.",
		},
		[]string{"operation"},
	)

	recurrenceTruncated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "courtside",
			Name:      "recurrence_truncated_total",
			Help:      "Count of recurring series cut at the hard cap.",
		},
	)

	invitesExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "courtside",
			Name:      "invites_expired_total",
			Help:      "Count of pending invites closed by the expiry sweep.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courtside",
			Name:      "http_requests_total",
			Help:      "Count of API requests by route and status.",
		},
		[]string{"route", "status"},
	)

	gridBuild = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "courtside",
			Name:      "grid_build_duration_seconds",
			Help:      "Time to build a calendar grid.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			inviteTransitions,
			availabilityWrites,
			conflictsDetected,
			unauthorizedAttempts,
			recurrenceTruncated,
			invitesExpired,
			httpRequests,
			gridBuild,
		)
	})
}

func IncInviteTransition(transition, outcome string) {
	inviteTransitions.WithLabelValues(transition, outcome).Inc()
}

func IncAvailabilityWrite(op string) {
	availabilityWrites.WithLabelValues(op).Inc()
}

func IncConflict(source string) {
	conflictsDetected.WithLabelValues(source).Inc()
}

func IncUnauthorized(operation string) {
	unauthorizedAttempts.WithLabelValues(operation).Inc()
}

func IncRecurrenceTruncated() {
	recurrenceTruncated.Inc()
}

func AddInvitesExpired(n int) {
	invitesExpired.Add(float64(n))
}

func IncHTTP(route string, status int) {
	httpRequests.WithLabelValues(route, statusClass(status)).Inc()
}

func ObserveGridBuild(d time.Duration) {
	gridBuild.Observe(d.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
