package http

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services groups what the router dispatches to.
type Services struct {
	Reservations interface {
		ReservationCreator
		ReservationReleaser
	}
	Orders   OrderService
	Payments PaymentService
	Tickets  TicketService
	Payouts  PayoutService
	Admin    interface {
		AdminEventService
		AdminTicketTypeService
	}
}

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	CORSOrigins []string
	RateLimiter *RateLimiter
	// ArtifactDir is served under /artifacts/ when set.
	ArtifactDir string
	Health      map[string]Pinger
	Logger      *slog.Logger
}

// NewRouter wires every endpoint onto a ServeMux and wraps it in CORS and
// request logging.
func NewRouter(svc Services, cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/health", HandleHealth(cfg.Health))
	mux.Handle("/metrics", promhttp.Handler())

	var reserve http.Handler = HandleCreateReservation(svc.Reservations)
	if cfg.RateLimiter != nil {
		reserve = RateLimit(cfg.RateLimiter, reserve)
	}
	mux.Handle("/reservations", reserve)
	mux.Handle("/reservations/", HandleReleaseReservation(svc.Reservations))

	mux.Handle("/orders", HandleCreateOrder(svc.Orders))
	mux.Handle("/orders/", HandleOrder(svc.Orders))

	mux.Handle("/payments/verify", HandleVerifyPayment(svc.Payments))
	mux.Handle("/payments/webhook", HandleWebhook(svc.Payments))

	mux.Handle("/tickets/check-in", HandleCheckIn(svc.Tickets))
	mux.Handle("/tickets/", HandleTicketTransfer(svc.Tickets))

	mux.Handle("/organizer/balance", HandleOrganizerBalance(svc.Payouts))
	mux.Handle("/organizer/payouts", HandleOrganizerPayouts(svc.Payouts))
	mux.Handle("/organizer/bank-account", HandleBankAccount(svc.Payouts))

	mux.Handle("/admin/events", HandleAdminEvents(svc.Admin))
	mux.Handle("/admin/events/", HandleAdminEventResources(svc.Admin))

	if cfg.ArtifactDir != "" {
		mux.Handle("/artifacts/", http.StripPrefix("/artifacts/", http.FileServer(http.Dir(cfg.ArtifactDir))))
	}
	mux.Handle("/", NotFoundHandler())

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return RequestLogger(CORS(cfg.CORSOrigins, mux), logger)
}
