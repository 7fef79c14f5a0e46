package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountKind string

const (
	DiscountPercent DiscountKind = "percent"
	DiscountFixed   DiscountKind = "fixed"
)

// PromoCode discounts an order subtotal. MaxUses of zero means unlimited.
type PromoCode struct {
	Code       string
	EventID    string
	Kind       DiscountKind
	Value      decimal.Decimal
	MaxUses    int
	UsedCount  int
	ValidFrom  *time.Time
	ValidUntil *time.Time
}

func (p PromoCode) Usable(now time.Time) bool {
	if p.MaxUses > 0 && p.UsedCount >= p.MaxUses {
		return false
	}
	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidUntil != nil && !now.Before(*p.ValidUntil) {
		return false
	}
	return true
}

// Discount returns the discount for subtotal, capped at subtotal.
func (p PromoCode) Discount(subtotal decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch p.Kind {
	case DiscountPercent:
		d = subtotal.Mul(p.Value).Div(decimal.NewFromInt(100))
	case DiscountFixed:
		d = p.Value
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(subtotal) {
		return subtotal
	}
	return d.Round(2)
}
