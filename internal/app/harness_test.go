package app

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/cache"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/clock"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/fees"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/retry"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/storage/memory"
)

const (
	testEventID     = "evt-1"
	testOrganizerID = "org-1"
	testTicketType  = "tt-1"
	testFreeType    = "tt-free"
)

type harness struct {
	clock        *clock.Fake
	ledger       *fakeLedger
	counter      *memory.CounterStore
	gateway      *fakeGateway
	artifacts    *fakeArtifacts
	notifier     *fakeNotifier
	reservations *ReservationService
	orders       *OrderService
	payments     *PaymentReconciler
	issuer       *TicketIssuer
	payouts      *PayoutService
}

func newHarness(t *testing.T, total int) *harness {
	t.Helper()

	h := &harness{
		clock:     clock.NewFake(time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)),
		ledger:    newFakeLedger(),
		gateway:   newFakeGateway(),
		artifacts: &fakeArtifacts{},
		notifier:  &fakeNotifier{},
	}
	h.counter = memory.NewCounterStore(h.clock)

	h.ledger.addEvent(domain.Event{ID: testEventID, OrganizerID: testOrganizerID, Name: "Afrobeats Live"})
	h.ledger.addTicketType(domain.TicketType{
		ID:            testTicketType,
		EventID:       testEventID,
		Name:          "Regular",
		Price:         decimal.NewFromInt(5000),
		TotalQuantity: total,
		MaxPerOrder:   total,
	})
	h.ledger.addTicketType(domain.TicketType{
		ID:            testFreeType,
		EventID:       testEventID,
		Name:          "RSVP",
		Price:         decimal.Zero,
		TotalQuantity: total,
	})

	h.reservations = NewReservationService(h.ledger, h.counter, h.clock, ReservationConfig{TTL: 15 * time.Minute}, noRetry)
	h.issuer = NewTicketIssuer(h.ledger, h.counter, newTestSigner(), h.artifacts, h.notifier, h.clock, IssuerConfig{
		ArtifactRetry: retry.Policy{MaxAttempts: 2, InitialInterval: time.Millisecond, Retryable: func(error) bool { return true }},
	}, noRetry)
	h.payments = NewPaymentReconciler(h.ledger, h.gateway, h.gateway, h.issuer, h.reservations,
		cache.NewMemory(h.clock), h.clock, ReconcilerConfig{}, noRetry)
	h.orders = NewOrderService(h.ledger, h.gateway, h.payments, h.reservations, h.clock, OrderConfig{
		BuyerFees: fees.BuyerConfig{
			PlatformFeePct:     decimal.NewFromInt(5),
			ProcessingFeePct:   decimal.RequireFromString("1.5"),
			ProcessingFeeFixed: decimal.NewFromInt(100),
		},
	}, noRetry)
	h.payouts = NewPayoutService(h.ledger, h.clock, PayoutConfig{
		Fees: fees.Config{
			PlatformFeePct:      decimal.NewFromInt(5),
			ProcessingFeePct:    decimal.RequireFromString("1.5"),
			ProcessingFeeFixed:  decimal.NewFromInt(100),
			FreeTicketThreshold: 0,
			HoldPeriod:          7 * 24 * time.Hour,
		},
		MinimumPayout: decimal.NewFromInt(1000),
	}, noRetry)
	return h
}

func (h *harness) reserve(t *testing.T, ticketTypeID string, qty int) domain.Reservation {
	t.Helper()
	res, err := h.reservations.Reserve(context.Background(), ReserveInput{
		EventID:      testEventID,
		TicketTypeID: ticketTypeID,
		Quantity:     qty,
	})
	if err != nil {
		t.Fatalf("reserve %d: %v", qty, err)
	}
	return res
}

func (h *harness) order(t *testing.T, reservationID string) CreateOrderResult {
	t.Helper()
	res, err := h.orders.CreateOrder(context.Background(), CreateOrderInput{
		ReservationID: reservationID,
		Buyer:         domain.Buyer{Email: "ada@example.com", Name: "Ada"},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return res
}

func (h *harness) available(t *testing.T, ticketTypeID string) int {
	t.Helper()
	n, ok, err := h.counter.Available(context.Background(), ticketTypeID)
	if err != nil || !ok {
		t.Fatalf("counter for %s: ok=%v err=%v", ticketTypeID, ok, err)
	}
	return n
}

// checkInvariant asserts the ledger never holds more than the total.
func (h *harness) checkInvariant(t *testing.T, ticketTypeID string) {
	t.Helper()
	tt := h.ledger.ticketType(ticketTypeID)
	if tt.SoldQuantity+tt.ReservedQuantity > tt.TotalQuantity || tt.ReservedQuantity < 0 {
		t.Fatalf("inventory invariant broken: total=%d sold=%d reserved=%d",
			tt.TotalQuantity, tt.SoldQuantity, tt.ReservedQuantity)
	}
}
