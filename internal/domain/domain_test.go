package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPending, OrderStatusFailed, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusPending, false},
		{OrderStatusPaid, OrderStatusFailed, false},
		{OrderStatusPaid, OrderStatusPaid, false},
		{OrderStatusFailed, OrderStatusPaid, false},
		{OrderStatusCancelled, OrderStatusPaid, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestErrorKinds(t *testing.T) {
	t.Parallel()

	if !errors.Is(ErrInvalidQuantity, ErrValidation) {
		t.Fatalf("expected invalid quantity to be a validation error")
	}
	if !errors.Is(ErrReservationNotFound, ErrNotFound) {
		t.Fatalf("expected reservation not found to be a not-found error")
	}
	if !errors.Is(ErrCounterUnavailable, ErrUnavailable) {
		t.Fatalf("expected counter unavailable to be transient")
	}
	if errors.Is(ErrReservationExpired, ErrNotFound) {
		t.Fatalf("expired reservation must not be classified as not found")
	}
}

func TestTicketType_CheckPurchasable(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name string
		tt   TicketType
		qty  int
		want error
	}{
		{"ok", TicketType{MaxPerOrder: 4}, 2, nil},
		{"zero quantity", TicketType{}, 0, ErrInvalidQuantity},
		{"over max", TicketType{MaxPerOrder: 4}, 5, ErrQuantityExceedsMax},
		{"not started", TicketType{SalesStart: &later}, 1, ErrSalesClosed},
		{"ended", TicketType{SalesEnd: &earlier}, 1, ErrSalesClosed},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if err := tc.tt.CheckPurchasable(tc.qty, now); err != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestTicketType_Available(t *testing.T) {
	t.Parallel()

	tt := TicketType{TotalQuantity: 10, SoldQuantity: 3, ReservedQuantity: 2}
	if tt.Available() != 5 {
		t.Fatalf("expected 5 available, got %d", tt.Available())
	}
}

func TestPromoCode_Discount(t *testing.T) {
	t.Parallel()

	subtotal := decimal.NewFromInt(5000)

	pct := PromoCode{Kind: DiscountPercent, Value: decimal.NewFromInt(10)}
	if got := pct.Discount(subtotal); !got.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected 500, got %s", got)
	}

	fixed := PromoCode{Kind: DiscountFixed, Value: decimal.NewFromInt(8000)}
	if got := fixed.Discount(subtotal); !got.Equal(subtotal) {
		t.Fatalf("expected discount capped at subtotal, got %s", got)
	}

	used := PromoCode{MaxUses: 2, UsedCount: 2}
	if used.Usable(time.Now()) {
		t.Fatalf("expected exhausted promo code to be unusable")
	}
}
