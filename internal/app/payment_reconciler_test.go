package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/fees"
)

func TestPaymentReconciler_VerifyPayment(t *testing.T) {
	t.Parallel()

	t.Run("successful payment issues tickets", func(t *testing.T) {
		h := newHarness(t, 10)
		res := h.reserve(t, testTicketType, 3)
		o := h.order(t, res.ID).Order
		h.gateway.pay(o.ExternalPaymentRef, o.TotalAmount)

		got, err := h.payments.VerifyPayment(context.Background(), o.ExternalPaymentRef)
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if got.Status != domain.OrderStatusPaid {
			t.Fatalf("expected PAID, got %s", got.Status)
		}
		if n := h.ledger.ticketCount(); n != 3 {
			t.Fatalf("expected 3 tickets, got %d", n)
		}
		tt := h.ledger.ticketType(testTicketType)
		if tt.SoldQuantity != 3 || tt.ReservedQuantity != 0 {
			t.Fatalf("expected sold=3 reserved=0, got sold=%d reserved=%d", tt.SoldQuantity, tt.ReservedQuantity)
		}
		if _, ok := h.ledger.reservation(res.ID); ok {
			t.Fatalf("expected reservation retired")
		}
		if h.notifier.count() != 1 {
			t.Fatalf("expected one notification, got %d", h.notifier.count())
		}
	})

	t.Run("pending result is cached briefly", func(t *testing.T) {
		h := newHarness(t, 10)
		res := h.reserve(t, testTicketType, 1)
		o := h.order(t, res.ID).Order
		h.gateway.results[o.ExternalPaymentRef] = domain.PaymentResult{
			Reference: o.ExternalPaymentRef,
			Outcome:   domain.PaymentPending,
		}

		for i := 0; i < 3; i++ {
			got, err := h.payments.VerifyPayment(context.Background(), o.ExternalPaymentRef)
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if got.Status != domain.OrderStatusPending {
				t.Fatalf("expected PENDING, got %s", got.Status)
			}
		}
		if h.gateway.verifyCalls != 1 {
			t.Fatalf("expected 1 gateway lookup, got %d", h.gateway.verifyCalls)
		}
	})

	t.Run("failed payment releases inventory", func(t *testing.T) {
		h := newHarness(t, 10)
		res := h.reserve(t, testTicketType, 2)
		o := h.order(t, res.ID).Order
		h.gateway.results[o.ExternalPaymentRef] = domain.PaymentResult{
			Reference: o.ExternalPaymentRef,
			Outcome:   domain.PaymentFailed,
		}

		got, err := h.payments.VerifyPayment(context.Background(), o.ExternalPaymentRef)
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if got.Status != domain.OrderStatusFailed {
			t.Fatalf("expected FAILED, got %s", got.Status)
		}
		if avail := h.available(t, testTicketType); avail != 10 {
			t.Fatalf("expected available 10, got %d", avail)
		}
		if tt := h.ledger.ticketType(testTicketType); tt.ReservedQuantity != 0 {
			t.Fatalf("expected reserved 0, got %d", tt.ReservedQuantity)
		}
	})

	t.Run("abandoned checkout stays pending until paid", func(t *testing.T) {
		h := newHarness(t, 10)
		ctx := context.Background()
		res := h.reserve(t, testTicketType, 2)
		o := h.order(t, res.ID).Order
		h.gateway.results[o.ExternalPaymentRef] = domain.PaymentResult{
			Reference: o.ExternalPaymentRef,
			Outcome:   domain.PaymentAbandoned,
		}

		got, err := h.payments.VerifyPayment(ctx, o.ExternalPaymentRef)
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if got.Status != domain.OrderStatusPending {
			t.Fatalf("expected PENDING, got %s", got.Status)
		}
		if tt := h.ledger.ticketType(testTicketType); tt.ReservedQuantity != 2 {
			t.Fatalf("expected reserved 2, got %d", tt.ReservedQuantity)
		}

		h.gateway.pay(o.ExternalPaymentRef, o.TotalAmount)
		h.clock.Advance(time.Minute)
		got, err = h.payments.VerifyPayment(ctx, o.ExternalPaymentRef)
		if err != nil {
			t.Fatalf("verify after payment: %v", err)
		}
		if got.Status != domain.OrderStatusPaid {
			t.Fatalf("expected PAID, got %s", got.Status)
		}
		if n := h.ledger.ticketCount(); n != 2 {
			t.Fatalf("expected 2 tickets, got %d", n)
		}
	})

	t.Run("abandoned checkout is cancelled by the stale sweep", func(t *testing.T) {
		h := newHarness(t, 10)
		ctx := context.Background()
		res := h.reserve(t, testTicketType, 2)
		o := h.order(t, res.ID).Order
		h.gateway.results[o.ExternalPaymentRef] = domain.PaymentResult{
			Reference: o.ExternalPaymentRef,
			Outcome:   domain.PaymentAbandoned,
		}
		if _, err := h.payments.VerifyPayment(ctx, o.ExternalPaymentRef); err != nil {
			t.Fatalf("verify: %v", err)
		}

		h.clock.Advance(46 * time.Minute)
		if _, err := h.payments.SweepStalePending(ctx); err != nil {
			t.Fatalf("sweep: %v", err)
		}
		if got := h.ledger.order(o.ID); got.Status != domain.OrderStatusCancelled {
			t.Fatalf("expected CANCELLED, got %s", got.Status)
		}
		if avail := h.available(t, testTicketType); avail != 10 {
			t.Fatalf("expected available 10, got %d", avail)
		}
	})

	t.Run("amount mismatch keeps order pending", func(t *testing.T) {
		h := newHarness(t, 10)
		res := h.reserve(t, testTicketType, 1)
		o := h.order(t, res.ID).Order
		h.gateway.pay(o.ExternalPaymentRef, decimal.NewFromInt(1))

		_, err := h.payments.VerifyPayment(context.Background(), o.ExternalPaymentRef)
		if !errors.Is(err, domain.ErrAmountMismatch) {
			t.Fatalf("expected ErrAmountMismatch, got %v", err)
		}
		if got := h.ledger.order(o.ID); got.Status != domain.OrderStatusPending {
			t.Fatalf("expected PENDING, got %s", got.Status)
		}
	})
}

func TestPaymentReconciler_HandleWebhook(t *testing.T) {
	t.Parallel()

	t.Run("replayed event does not duplicate tickets", func(t *testing.T) {
		h := newHarness(t, 10)
		ctx := context.Background()
		res := h.reserve(t, testTicketType, 2)
		o := h.order(t, res.ID).Order
		h.gateway.pay(o.ExternalPaymentRef, o.TotalAmount)

		out, err := h.payments.HandleWebhook(ctx, []byte(o.ExternalPaymentRef), "ok")
		if err != nil || out != WebhookProcessed {
			t.Fatalf("first delivery: %s %v", out, err)
		}
		out, err = h.payments.HandleWebhook(ctx, []byte(o.ExternalPaymentRef), "ok")
		if err != nil || out != WebhookAlreadyHandled {
			t.Fatalf("second delivery: %s %v", out, err)
		}

		if n := h.ledger.ticketCount(); n != 2 {
			t.Fatalf("expected 2 tickets, got %d", n)
		}
		if tt := h.ledger.ticketType(testTicketType); tt.SoldQuantity != 2 {
			t.Fatalf("expected sold 2, got %d", tt.SoldQuantity)
		}

		sum, err := h.payouts.Balance(ctx, testOrganizerID)
		if err != nil {
			t.Fatalf("balance: %v", err)
		}
		if !sum.TotalRevenue.Equal(decimal.NewFromInt(10000)) || sum.TicketsSold != 2 {
			t.Fatalf("expected revenue 10000 over 2 tickets, got %s over %d", sum.TotalRevenue, sum.TicketsSold)
		}
	})

	t.Run("unknown reference is acknowledged", func(t *testing.T) {
		h := newHarness(t, 10)
		out, err := h.payments.HandleWebhook(context.Background(), []byte("TXN-UNKNOWN"), "ok")
		if err != nil || out != WebhookUnknownReference {
			t.Fatalf("expected unknown_reference, got %s %v", out, err)
		}
	})

	t.Run("bad signature is rejected", func(t *testing.T) {
		h := newHarness(t, 10)
		_, err := h.payments.HandleWebhook(context.Background(), []byte("x"), "bad")
		if !errors.Is(err, domain.ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("amount mismatch is acknowledged without payment", func(t *testing.T) {
		h := newHarness(t, 10)
		res := h.reserve(t, testTicketType, 1)
		o := h.order(t, res.ID).Order
		h.gateway.pay(o.ExternalPaymentRef, decimal.NewFromInt(1))

		out, err := h.payments.HandleWebhook(context.Background(), []byte(o.ExternalPaymentRef), "ok")
		if err != nil || out != WebhookRejected {
			t.Fatalf("expected rejected, got %s %v", out, err)
		}
		if h.ledger.ticketCount() != 0 {
			t.Fatalf("expected no tickets")
		}
	})
}

func TestPaymentReconciler_ConcurrentTriggers(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 10)
	ctx := context.Background()
	res := h.reserve(t, testTicketType, 4)
	o := h.order(t, res.ID).Order
	h.gateway.pay(o.ExternalPaymentRef, o.TotalAmount)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			var err error
			if i%2 == 0 {
				_, err = h.payments.VerifyPayment(ctx, o.ExternalPaymentRef)
			} else {
				_, err = h.payments.HandleWebhook(ctx, []byte(o.ExternalPaymentRef), "ok")
			}
			if err != nil {
				t.Errorf("trigger %d: %v", i, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if n := h.ledger.ticketCount(); n != 4 {
		t.Fatalf("expected 4 tickets, got %d", n)
	}
	if h.ledger.commitSales != 1 {
		t.Fatalf("expected one inventory commit, got %d", h.ledger.commitSales)
	}
	if h.notifier.count() != 1 {
		t.Fatalf("expected one notification, got %d", h.notifier.count())
	}
	h.checkInvariant(t, testTicketType)
}

func TestPaymentReconciler_SweepStalePending(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 10)
	ctx := context.Background()

	paid := h.order(t, h.reserve(t, testTicketType, 1).ID).Order
	h.gateway.pay(paid.ExternalPaymentRef, paid.TotalAmount)
	abandoned := h.order(t, h.reserve(t, testTicketType, 2).ID).Order

	h.clock.Advance(time.Hour)

	settled, err := h.payments.SweepStalePending(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if settled != 2 {
		t.Fatalf("expected 2 settled orders, got %d", settled)
	}
	if got := h.ledger.order(paid.ID); got.Status != domain.OrderStatusPaid {
		t.Fatalf("expected paid order PAID, got %s", got.Status)
	}
	if got := h.ledger.order(abandoned.ID); got.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected abandoned order CANCELLED, got %s", got.Status)
	}
	tt := h.ledger.ticketType(testTicketType)
	if tt.SoldQuantity != 1 || tt.ReservedQuantity != 0 {
		t.Fatalf("expected sold=1 reserved=0, got sold=%d reserved=%d", tt.SoldQuantity, tt.ReservedQuantity)
	}
	h.checkInvariant(t, testTicketType)
}

func TestPaymentReconciler_FeeTiering(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 200)
	h.payouts.cfg.Fees = fees.Config{
		PlatformFeePct:      decimal.NewFromInt(5),
		FreeTicketThreshold: 100,
	}
	ctx := context.Background()

	for _, qty := range []int{80, 40} {
		o := h.order(t, h.reserve(t, testTicketType, qty).ID).Order
		h.gateway.pay(o.ExternalPaymentRef, o.TotalAmount)
		if _, err := h.payments.VerifyPayment(ctx, o.ExternalPaymentRef); err != nil {
			t.Fatalf("verify %d: %v", qty, err)
		}
		h.clock.Advance(time.Minute)
	}

	sum, err := h.payouts.Balance(ctx, testOrganizerID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	// 20 chargeable tickets at 5000 each, 5%.
	if !sum.TotalPlatformFees.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("expected platform fees 5000, got %s", sum.TotalPlatformFees)
	}
	if !sum.Orders[0].PlatformFee.IsZero() {
		t.Fatalf("expected first order exempt, got %s", sum.Orders[0].PlatformFee)
	}
}
