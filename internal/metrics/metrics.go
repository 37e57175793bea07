package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "receptionist"

var (
	once sync.Once

	bookingOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_attempts_total",
			Help:      "Count of booking attempts by outcome.",
		},
		[]string{"outcome"},
	)

	availabilityChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_checks_total",
			Help:      "Count of availability checks by whether the branch was open.",
		},
		[]string{"valid"},
	)

	toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Count of dialogue tool invocations by tool and status.",
		},
		[]string{"tool", "status"},
	)

	bookingsHeld = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bookings_held",
			Help:      "Number of bookings currently held by the ledger.",
		},
	)

	calendarSyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_sync_total",
			Help:      "Count of calendar event syncs by status.",
		},
		[]string{"status"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manager_notifications_total",
			Help:      "Count of manager notifications by status.",
		},
		[]string{"status"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingOutcomes, availabilityChecks, toolCalls, bookingsHeld, calendarSyncs, notifications)
	})
}

func IncBookingOutcome(outcome string) {
	bookingOutcomes.WithLabelValues(outcome).Inc()
}

func IncAvailabilityCheck(valid bool) {
	availabilityChecks.WithLabelValues(strconv.FormatBool(valid)).Inc()
}

func IncToolCall(tool, status string) {
	toolCalls.WithLabelValues(tool, status).Inc()
}

func SetBookingsHeld(n int) {
	bookingsHeld.Set(float64(n))
}

func IncCalendarSync(status string) {
	calendarSyncs.WithLabelValues(status).Inc()
}

func IncNotification(status string) {
	notifications.WithLabelValues(status).Inc()
}
