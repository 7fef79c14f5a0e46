package domain

import "time"

// Reservation holds inventory for a limited time. It exists only while the
// inventory is held and is removed when consumed by issuance or released.
type Reservation struct {
	ID             string
	TicketTypeID   string
	EventID        string
	Quantity       int
	ExpiresAt      time.Time
	OrderID        string
	IdempotencyKey string
	CreatedAt      time.Time
}

func (r Reservation) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

func (r Reservation) Claimed() bool {
	return r.OrderID != ""
}
