package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "PENDING"
	PayoutStatusProcessing PayoutStatus = "PROCESSING"
	PayoutStatusCompleted  PayoutStatus = "COMPLETED"
	PayoutStatusFailed     PayoutStatus = "FAILED"
)

// InFlight reports whether the payout still reserves organizer balance.
func (s PayoutStatus) InFlight() bool {
	return s == PayoutStatusPending || s == PayoutStatusProcessing
}

type BankAccount struct {
	OrganizerID   string
	BankName      string
	AccountNumber string
	AccountName   string
}

func (b BankAccount) Valid() bool {
	return b.BankName != "" && b.AccountNumber != "" && b.AccountName != ""
}

type Payout struct {
	ID          string
	OrganizerID string
	Amount      decimal.Decimal
	Status      PayoutStatus
	BankAccount BankAccount
	RequestedAt time.Time
	ProcessedAt *time.Time
}
