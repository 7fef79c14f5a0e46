package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/cache"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/clock"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/metrics"
)

// Payment confirmation triggers.
const (
	TriggerFree    = "free"
	TriggerVerify  = "verify"
	TriggerWebhook = "webhook"
	TriggerSweep   = "sweep"
)

type PaymentRepository interface {
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	GetOrderByPaymentRef(ctx context.Context, ref string) (domain.Order, error)
	TransitionOrder(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) (bool, error)
	ListStalePendingOrders(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Order, error)
}

// WebhookVerifier authenticates and decodes a raw gateway notification.
type WebhookVerifier interface {
	ParseWebhook(body []byte, signature string) (domain.WebhookEvent, error)
}

type ticketIssuer interface {
	Issue(ctx context.Context, order domain.Order) ([]domain.Ticket, error)
}

type ReconcilerConfig struct {
	Currency string
	// PendingTimeout is how long an order may stay PENDING before the
	// sweep settles it against the gateway.
	PendingTimeout time.Duration
	// VerifyCacheTTL suppresses repeated gateway lookups while a payment is
	// still pending.
	VerifyCacheTTL time.Duration
	SweepBatch     int
}

// PaymentReconciler funnels the free, verify and webhook confirmation paths
// into one idempotent markPaid step.
type PaymentReconciler struct {
	base
	repo         PaymentRepository
	gateway      PaymentGateway
	webhooks     WebhookVerifier
	issuer       ticketIssuer
	reservations claimedReleaser
	cache        cache.Cache
	cfg          ReconcilerConfig
}

func NewPaymentReconciler(
	repo PaymentRepository,
	gateway PaymentGateway,
	webhooks WebhookVerifier,
	issuer ticketIssuer,
	reservations claimedReleaser,
	c cache.Cache,
	clk clock.Clock,
	cfg ReconcilerConfig,
	opts ...Option,
) *PaymentReconciler {
	if cfg.Currency == "" {
		cfg.Currency = "NGN"
	}
	if cfg.PendingTimeout <= 0 {
		cfg.PendingTimeout = 45 * time.Minute
	}
	if cfg.VerifyCacheTTL <= 0 {
		cfg.VerifyCacheTTL = 10 * time.Second
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 100
	}
	return &PaymentReconciler{
		base:         newBase(clk, opts),
		repo:         repo,
		gateway:      gateway,
		webhooks:     webhooks,
		issuer:       issuer,
		reservations: reservations,
		cache:        c,
		cfg:          cfg,
	}
}

type MarkPaidResult struct {
	Order       domain.Order
	Tickets     []domain.Ticket
	AlreadyPaid bool
}

// MarkPaid moves the order to PAID once and then runs issuance. Issuance is
// idempotent, so an already paid order is issued again to heal a crash
// between the two steps.
func (r *PaymentReconciler) MarkPaid(ctx context.Context, orderID string, trigger string) (MarkPaidResult, error) {
	order, err := r.repo.GetOrder(ctx, orderID)
	if err != nil {
		return MarkPaidResult{}, err
	}

	already := false
	switch order.Status {
	case domain.OrderStatusPaid:
		already = true
	case domain.OrderStatusPending:
		now := r.clock.Now()
		ok, err := r.repo.TransitionOrder(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusPaid, now)
		if err != nil {
			return MarkPaidResult{}, err
		}
		if !ok {
			// Lost the race; only a concurrent PAID is acceptable here.
			order, err = r.repo.GetOrder(ctx, orderID)
			if err != nil {
				return MarkPaidResult{}, err
			}
			if order.Status != domain.OrderStatusPaid {
				return MarkPaidResult{}, domain.ErrInvalidTransition
			}
			already = true
		} else {
			order.Status = domain.OrderStatusPaid
			order.PaidAt = &now
			metrics.TrackOrder(string(domain.OrderStatusPaid))
		}
	default:
		return MarkPaidResult{}, domain.ErrInvalidTransition
	}

	outcome := "paid"
	if already {
		outcome = "already_paid"
	}
	metrics.TrackPaymentTrigger(trigger, outcome)
	r.logger.Info("order paid", "order_id", order.ID, "trigger", trigger, "already_paid", already)

	tickets, err := r.issuer.Issue(ctx, order)
	if err != nil {
		return MarkPaidResult{Order: order, AlreadyPaid: already}, err
	}
	return MarkPaidResult{Order: order, Tickets: tickets, AlreadyPaid: already}, nil
}

// VerifyPayment asks the gateway about reference and applies the answer.
func (r *PaymentReconciler) VerifyPayment(ctx context.Context, reference string) (domain.Order, error) {
	order, err := r.repo.GetOrderByPaymentRef(ctx, reference)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status == domain.OrderStatusPaid {
		res, err := r.MarkPaid(ctx, order.ID, TriggerVerify)
		if err != nil {
			return order, err
		}
		return res.Order, nil
	}
	if order.Status.Terminal() {
		return order, nil
	}
	if order.Free() {
		res, err := r.MarkPaid(ctx, order.ID, TriggerVerify)
		return res.Order, err
	}

	if r.recentlyPending(ctx, reference) {
		return order, nil
	}

	var result domain.PaymentResult
	err = r.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = r.gateway.Verify(ctx, reference)
		return err
	})
	if err != nil {
		metrics.TrackPaymentTrigger(TriggerVerify, "gateway_error")
		return order, err
	}
	return r.apply(ctx, order, result, TriggerVerify)
}

type WebhookOutcome string

const (
	WebhookProcessed        WebhookOutcome = "processed"
	WebhookAlreadyHandled   WebhookOutcome = "already_handled"
	WebhookUnknownReference WebhookOutcome = "unknown_reference"
	WebhookIgnored          WebhookOutcome = "ignored"
	WebhookRejected         WebhookOutcome = "rejected"
)

// HandleWebhook verifies a gateway notification and applies it. Replays and
// unknown references are successful no-ops.
func (r *PaymentReconciler) HandleWebhook(ctx context.Context, body []byte, signature string) (WebhookOutcome, error) {
	event, err := r.webhooks.ParseWebhook(body, signature)
	if err != nil {
		return "", err
	}
	switch event.Result.Outcome {
	case domain.PaymentSucceeded, domain.PaymentFailed, domain.PaymentAbandoned:
	default:
		metrics.TrackPaymentTrigger(TriggerWebhook, string(WebhookIgnored))
		return WebhookIgnored, nil
	}

	order, err := r.repo.GetOrderByPaymentRef(ctx, event.Result.Reference)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidID) {
			metrics.TrackPaymentTrigger(TriggerWebhook, string(WebhookUnknownReference))
			r.logger.Warn("webhook for unknown reference", "reference", event.Result.Reference, "event", event.Type)
			return WebhookUnknownReference, nil
		}
		return "", err
	}

	switch order.Status {
	case domain.OrderStatusPending:
	case domain.OrderStatusPaid:
		if _, err := r.MarkPaid(ctx, order.ID, TriggerWebhook); err != nil {
			return "", err
		}
		return WebhookAlreadyHandled, nil
	default:
		if event.Result.Outcome == domain.PaymentSucceeded {
			r.logger.Error("payment succeeded for closed order",
				"order_id", order.ID,
				"status", order.Status,
				"reference", event.Result.Reference,
			)
		}
		metrics.TrackPaymentTrigger(TriggerWebhook, string(WebhookAlreadyHandled))
		return WebhookAlreadyHandled, nil
	}

	if _, err := r.apply(ctx, order, event.Result, TriggerWebhook); err != nil {
		if errors.Is(err, domain.ErrAmountMismatch) {
			return WebhookRejected, nil
		}
		return "", err
	}
	return WebhookProcessed, nil
}

func (r *PaymentReconciler) apply(ctx context.Context, order domain.Order, result domain.PaymentResult, trigger string) (domain.Order, error) {
	switch result.Outcome {
	case domain.PaymentSucceeded:
		if !result.Amount.Equal(order.TotalAmount) || (result.Currency != "" && result.Currency != r.cfg.Currency) {
			metrics.TrackPaymentTrigger(trigger, "amount_mismatch")
			r.logger.Error("payment amount mismatch",
				"order_id", order.ID,
				"expected", order.TotalAmount.StringFixed(2),
				"paid", result.Amount.StringFixed(2),
				"currency", result.Currency,
			)
			return order, domain.ErrAmountMismatch
		}
		res, err := r.MarkPaid(ctx, order.ID, trigger)
		if err != nil {
			return res.Order, err
		}
		return res.Order, nil
	case domain.PaymentFailed:
		return r.closeUnpaid(ctx, order, domain.OrderStatusFailed, trigger, "payment_failed")
	default:
		// Pending and abandoned both mean the buyer has not finished paying
		// yet. SweepStalePending cancels the order after PendingTimeout.
		r.rememberPending(ctx, order.ExternalPaymentRef)
		metrics.TrackPaymentTrigger(trigger, "pending")
		return order, nil
	}
}

func (r *PaymentReconciler) closeUnpaid(ctx context.Context, order domain.Order, to domain.OrderStatus, trigger, reason string) (domain.Order, error) {
	ok, err := r.repo.TransitionOrder(ctx, order.ID, domain.OrderStatusPending, to, r.clock.Now())
	if err != nil {
		return order, err
	}
	if !ok {
		return r.repo.GetOrder(ctx, order.ID)
	}
	order.Status = to
	metrics.TrackOrder(string(to))
	metrics.TrackPaymentTrigger(trigger, reason)
	if _, err := r.reservations.ReleaseClaimed(ctx, order.ReservationID, reason); err != nil {
		r.logger.Error("release after unpaid close", "order_id", order.ID, "error", err)
	}
	r.logger.Info("order closed unpaid", "order_id", order.ID, "status", to, "trigger", trigger)
	return order, nil
}

// SweepStalePending settles orders that stayed PENDING past the timeout:
// paid ones are confirmed, the rest are cancelled and their reservations
// released.
func (r *PaymentReconciler) SweepStalePending(ctx context.Context) (int, error) {
	before := r.clock.Now().Add(-r.cfg.PendingTimeout)
	orders, err := r.repo.ListStalePendingOrders(ctx, before, r.cfg.SweepBatch)
	if err != nil {
		return 0, err
	}

	settled := 0
	var errs []error
	for _, order := range orders {
		if order.Free() {
			if _, err := r.MarkPaid(ctx, order.ID, TriggerSweep); err != nil {
				errs = append(errs, err)
				continue
			}
			settled++
			continue
		}

		result, err := r.gateway.Verify(ctx, order.ExternalPaymentRef)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			errs = append(errs, err)
			continue
		}
		if err == nil && result.Outcome == domain.PaymentSucceeded {
			if _, err := r.apply(ctx, order, result, TriggerSweep); err != nil {
				errs = append(errs, err)
				continue
			}
			settled++
			continue
		}
		if _, err := r.closeUnpaid(ctx, order, domain.OrderStatusCancelled, TriggerSweep, "expired"); err != nil {
			errs = append(errs, err)
			continue
		}
		settled++
	}
	return settled, errors.Join(errs...)
}

type pendingMarker struct {
	CheckedAt time.Time `json:"checked_at"`
}

func (r *PaymentReconciler) recentlyPending(ctx context.Context, reference string) bool {
	if r.cache == nil {
		return false
	}
	_, ok, err := r.cache.Get(ctx, "verify:"+reference)
	if err != nil {
		r.logger.Warn("verify cache read failed", "reference", reference, "error", err)
		return false
	}
	return ok
}

func (r *PaymentReconciler) rememberPending(ctx context.Context, reference string) {
	if r.cache == nil {
		return
	}
	payload, err := json.Marshal(pendingMarker{CheckedAt: r.clock.Now()})
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, "verify:"+reference, payload, r.cfg.VerifyCacheTTL); err != nil {
		r.logger.Warn("verify cache write failed", "reference", reference, "error", err)
	}
}
