package domain

import "github.com/shopspring/decimal"

type PaymentOutcome string

const (
	PaymentSucceeded PaymentOutcome = "success"
	PaymentFailed    PaymentOutcome = "failed"
	// PaymentAbandoned is a checkout the buyer opened but has not paid yet.
	// It is not final.
	PaymentAbandoned PaymentOutcome = "abandoned"
	PaymentPending   PaymentOutcome = "pending"
)

// PaymentRequest opens a gateway transaction for an order.
type PaymentRequest struct {
	Reference string
	Email     string
	Amount    decimal.Decimal
	Currency  string
	Metadata  map[string]string
}

type PaymentSession struct {
	Reference        string
	AuthorizationURL string
}

// PaymentResult is what the gateway reports about a reference.
type PaymentResult struct {
	Reference string
	Outcome   PaymentOutcome
	Amount    decimal.Decimal
	Currency  string
}

// WebhookEvent is a verified gateway notification.
type WebhookEvent struct {
	Type   string
	Result PaymentResult
}
