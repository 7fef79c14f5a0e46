package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TicketType is a sellable tier of an event with a fixed total quantity.
// SoldQuantity+ReservedQuantity never exceeds TotalQuantity.
type TicketType struct {
	ID               string
	EventID          string
	Name             string
	Price            decimal.Decimal
	TotalQuantity    int
	SoldQuantity     int
	ReservedQuantity int
	MaxPerOrder      int
	SalesStart       *time.Time
	SalesEnd         *time.Time
}

// Available is the quantity that is neither sold nor reserved.
func (t TicketType) Available() int {
	n := t.TotalQuantity - t.SoldQuantity - t.ReservedQuantity
	if n < 0 {
		return 0
	}
	return n
}

// CheckPurchasable validates a purchase of qty units at now.
func (t TicketType) CheckPurchasable(qty int, now time.Time) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if t.MaxPerOrder > 0 && qty > t.MaxPerOrder {
		return ErrQuantityExceedsMax
	}
	if t.SalesStart != nil && now.Before(*t.SalesStart) {
		return ErrSalesClosed
	}
	if t.SalesEnd != nil && !now.Before(*t.SalesEnd) {
		return ErrSalesClosed
	}
	return nil
}
