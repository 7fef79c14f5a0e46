package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusFailed    OrderStatus = "FAILED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s != OrderStatusPending
}

// CanTransition reports whether from -> to is a legal move. Only PENDING
// moves, and only once.
func CanTransition(from, to OrderStatus) bool {
	if from != OrderStatusPending {
		return false
	}
	switch to {
	case OrderStatusPaid, OrderStatusFailed, OrderStatusCancelled:
		return true
	}
	return false
}

type Buyer struct {
	Email string
	Name  string
	Phone string
}

// Order is a purchase bound to exactly one reservation.
type Order struct {
	ID                 string
	ReservationID      string
	EventID            string
	TicketTypeID       string
	OrganizerID        string
	Buyer              Buyer
	Status             OrderStatus
	Subtotal           decimal.Decimal
	Discount           decimal.Decimal
	PlatformFee        decimal.Decimal
	ProcessingFee      decimal.Decimal
	TotalAmount        decimal.Decimal
	TicketCount        int
	PromoCode          string
	ExternalPaymentRef string
	PaidAt             *time.Time
	CreatedAt          time.Time
}

// OrganizerAmount is the revenue owed to the organizer, before payout fees.
func (o Order) OrganizerAmount() decimal.Decimal {
	return o.Subtotal.Sub(o.Discount)
}

func (o Order) Free() bool {
	return o.TotalAmount.IsZero()
}
