// Package fees computes buyer-side order fees and replays an organizer's
// paid orders into payout balances.
package fees

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// BuyerConfig prices the fees added on top of a non-free order.
type BuyerConfig struct {
	PlatformFeePct     decimal.Decimal
	ProcessingFeePct   decimal.Decimal
	ProcessingFeeFixed decimal.Decimal
}

type Quote struct {
	Base          decimal.Decimal
	PlatformFee   decimal.Decimal
	ProcessingFee decimal.Decimal
	Total         decimal.Decimal
}

// Quote adds buyer fees to base. A zero base stays free.
func (c BuyerConfig) Quote(base decimal.Decimal) Quote {
	if !base.IsPositive() {
		return Quote{Base: decimal.Zero, PlatformFee: decimal.Zero, ProcessingFee: decimal.Zero, Total: decimal.Zero}
	}
	platform := base.Mul(c.PlatformFeePct).Div(hundred).Round(2)
	processing := base.Add(platform).Mul(c.ProcessingFeePct).Div(hundred).Add(c.ProcessingFeeFixed).Round(2)
	return Quote{
		Base:          base,
		PlatformFee:   platform,
		ProcessingFee: processing,
		Total:         base.Add(platform).Add(processing),
	}
}

// Config prices the fees deducted from organizer revenue.
type Config struct {
	PlatformFeePct      decimal.Decimal
	ProcessingFeePct    decimal.Decimal
	ProcessingFeeFixed  decimal.Decimal
	FreeTicketThreshold int
	HoldPeriod          time.Duration
}

// OrderEntry is one paid order as seen by the payout ledger. Amount is the
// organizer revenue for the order.
type OrderEntry struct {
	OrderID     string
	Amount      decimal.Decimal
	TicketCount int
	CreatedAt   time.Time
}

type PayoutEntry struct {
	Amount decimal.Decimal
	Status domain.PayoutStatus
}

type OrderFees struct {
	OrderID           string
	Amount            decimal.Decimal
	ChargeableTickets int
	PlatformFee       decimal.Decimal
	ProcessingFee     decimal.Decimal
	Net               decimal.Decimal
	Cleared           bool
}

type Summary struct {
	Orders              []OrderFees
	TicketsSold         int
	TotalRevenue        decimal.Decimal
	TotalPlatformFees   decimal.Decimal
	TotalProcessingFees decimal.Decimal
	CompletedPayouts    decimal.Decimal
	InFlightPayouts     decimal.Decimal
	Available           decimal.Decimal
	Pending             decimal.Decimal
}

func (s Summary) TotalFees() decimal.Decimal {
	return s.TotalPlatformFees.Add(s.TotalProcessingFees)
}

// Withdrawable is the amount a new payout request may claim.
func (s Summary) Withdrawable() decimal.Decimal {
	return floor(s.Available.Sub(s.InFlightPayouts))
}

// Replay walks orders oldest first. The first FreeTicketThreshold tickets
// the organizer ever sells carry no platform fee; an order straddling the
// threshold pays platform fee only on its chargeable share. Orders younger
// than HoldPeriod count as pending.
func (c Config) Replay(orders []OrderEntry, payouts []PayoutEntry, now time.Time) Summary {
	sorted := make([]OrderEntry, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	s := Summary{
		Orders:              make([]OrderFees, 0, len(sorted)),
		TotalRevenue:        decimal.Zero,
		TotalPlatformFees:   decimal.Zero,
		TotalProcessingFees: decimal.Zero,
		CompletedPayouts:    decimal.Zero,
		InFlightPayouts:     decimal.Zero,
	}
	cleared := decimal.Zero
	pending := decimal.Zero
	cutoff := now.Add(-c.HoldPeriod)
	ticketsBefore := 0

	for _, o := range sorted {
		f := OrderFees{
			OrderID:       o.OrderID,
			Amount:        o.Amount,
			PlatformFee:   decimal.Zero,
			ProcessingFee: decimal.Zero,
		}

		free := c.FreeTicketThreshold - ticketsBefore
		if free < 0 {
			free = 0
		}
		chargeable := o.TicketCount - free
		if chargeable < 0 {
			chargeable = 0
		}
		f.ChargeableTickets = chargeable
		ticketsBefore += o.TicketCount

		// Free orders never reach the gateway and carry no processing fee.
		if o.Amount.IsPositive() {
			f.ProcessingFee = o.Amount.Mul(c.ProcessingFeePct).Div(hundred).Add(c.ProcessingFeeFixed).Round(2)
			if chargeable > 0 && o.TicketCount > 0 {
				perTicket := o.Amount.Div(decimal.NewFromInt(int64(o.TicketCount)))
				f.PlatformFee = perTicket.Mul(decimal.NewFromInt(int64(chargeable))).Mul(c.PlatformFeePct).Div(hundred).Round(2)
			}
		}
		f.Net = o.Amount.Sub(f.PlatformFee).Sub(f.ProcessingFee)
		f.Cleared = !o.CreatedAt.After(cutoff)

		if f.Cleared {
			cleared = cleared.Add(f.Net)
		} else {
			pending = pending.Add(f.Net)
		}
		s.TicketsSold += o.TicketCount
		s.TotalRevenue = s.TotalRevenue.Add(o.Amount)
		s.TotalPlatformFees = s.TotalPlatformFees.Add(f.PlatformFee)
		s.TotalProcessingFees = s.TotalProcessingFees.Add(f.ProcessingFee)
		s.Orders = append(s.Orders, f)
	}

	for _, p := range payouts {
		switch {
		case p.Status == domain.PayoutStatusCompleted:
			s.CompletedPayouts = s.CompletedPayouts.Add(p.Amount)
		case p.Status.InFlight():
			s.InFlightPayouts = s.InFlightPayouts.Add(p.Amount)
		}
	}

	s.Available = floor(cleared.Sub(s.CompletedPayouts))
	s.Pending = floor(pending)
	return s
}

func floor(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
