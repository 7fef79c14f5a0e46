package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_reservations_total",
			Help: "Reservation attempts by result",
		},
		[]string{"result"},
	)

	releases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_reservation_releases_total",
			Help: "Released reservations by reason",
		},
		[]string{"reason"},
	)

	counterCorrections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_counter_corrections_total",
			Help: "Counter store values rewritten from the ledger",
		},
	)

	counterReleaseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_counter_release_failures_total",
			Help: "Counter store releases that failed after the ledger committed",
		},
	)

	available = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ticketing_available_tickets",
			Help: "Available tickets per ticket type as seen by the ledger",
		},
		[]string{"ticket_type_id"},
	)

	orders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_order_transitions_total",
			Help: "Order status transitions",
		},
		[]string{"status"},
	)

	paymentTriggers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_payment_triggers_total",
			Help: "Payment confirmation triggers by source and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_tickets_issued_total",
			Help: "Tickets issued",
		},
	)

	artifactFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_artifact_failures_total",
			Help: "Ticket artifacts that could not be generated after retries",
		},
	)

	payoutRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_payout_requests_total",
			Help: "Payout requests by result",
		},
		[]string{"result"},
	)

	jobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_scheduler_runs_total",
			Help: "Scheduled job runs by job and result",
		},
		[]string{"job", "result"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)

func TrackReservation(result string) {
	reservations.WithLabelValues(result).Inc()
}

func TrackRelease(reason string) {
	releases.WithLabelValues(reason).Inc()
}

func TrackCounterCorrection() {
	counterCorrections.Inc()
}

func TrackCounterReleaseFailure() {
	counterReleaseFailures.Inc()
}

func SetAvailable(ticketTypeID string, n int) {
	available.WithLabelValues(ticketTypeID).Set(float64(n))
}

func TrackOrder(status string) {
	orders.WithLabelValues(status).Inc()
}

func TrackPaymentTrigger(trigger, outcome string) {
	paymentTriggers.WithLabelValues(trigger, outcome).Inc()
}

func TrackTicketsIssued(n int) {
	ticketsIssued.Add(float64(n))
}

func TrackArtifactFailure() {
	artifactFailures.Inc()
}

func TrackPayoutRequest(result string) {
	payoutRequests.WithLabelValues(result).Inc()
}

func TrackJob(job string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	jobRuns.WithLabelValues(job, result).Inc()
}

func ObserveHTTP(method, status string, d time.Duration) {
	httpDuration.WithLabelValues(method, status).Observe(d.Seconds())
}
