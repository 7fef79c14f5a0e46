package domain

import "errors"

// Error kinds. Every specific error below wraps exactly one of these so
// callers can classify failures with errors.Is.
var (
	ErrValidation            = errors.New("validation failed")
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("conflict")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrUnavailable           = errors.New("temporarily unavailable")
	ErrPaymentGateway        = errors.New("payment gateway error")
	ErrAlreadyProcessed      = errors.New("already processed")
)

// Error is a specific failure classified under a kind.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

var (
	ErrInvalidID              = newError(ErrValidation, "invalid id")
	ErrInvalidQuantity        = newError(ErrValidation, "invalid quantity")
	ErrQuantityExceedsMax     = newError(ErrValidation, "quantity exceeds per-order maximum")
	ErrSalesClosed            = newError(ErrValidation, "ticket sales are not open")
	ErrEventNameRequired      = newError(ErrValidation, "event name required")
	ErrOrganizerRequired      = newError(ErrValidation, "organizer required")
	ErrTicketTypeNameRequired = newError(ErrValidation, "ticket type name required")
	ErrInvalidCapacity        = newError(ErrValidation, "invalid capacity")
	ErrInvalidPrice           = newError(ErrValidation, "invalid price")
	ErrBuyerEmailRequired     = newError(ErrValidation, "buyer email required")
	ErrInvalidPromoCode       = newError(ErrValidation, "invalid promo code")
	ErrInvalidTicketPayload   = newError(ErrValidation, "invalid ticket payload")
	ErrInvalidHolder          = newError(ErrValidation, "holder name and email required")
	ErrInvalidAmount          = newError(ErrValidation, "invalid amount")
	ErrPayoutBelowMinimum     = newError(ErrValidation, "payout amount below minimum")
	ErrPayoutExceedsAvailable = newError(ErrValidation, "payout amount exceeds available balance")
	ErrBankAccountRequired    = newError(ErrValidation, "bank account required")
	ErrInvalidBankAccount     = newError(ErrValidation, "bank name, account number and account name required")
	ErrInvalidSignature       = newError(ErrValidation, "invalid signature")

	ErrEventNotFound       = newError(ErrNotFound, "event not found")
	ErrTicketTypeNotFound  = newError(ErrNotFound, "ticket type not found")
	ErrReservationNotFound = newError(ErrNotFound, "reservation not found")
	ErrOrderNotFound       = newError(ErrNotFound, "order not found")
	ErrTicketNotFound      = newError(ErrNotFound, "ticket not found")

	ErrIdempotencyConflict     = newError(ErrConflict, "idempotency conflict")
	ErrReservationExpired      = newError(ErrConflict, "reservation expired")
	ErrReservationClaimed      = newError(ErrConflict, "reservation already claimed by an order")
	ErrTicketTypeAlreadyExists = newError(ErrConflict, "ticket type already exists")
	ErrInvalidTransition       = newError(ErrConflict, "invalid order status transition")
	ErrTicketAlreadyUsed       = newError(ErrConflict, "ticket already used")
	ErrTicketNotTransferable   = newError(ErrConflict, "ticket not transferable")

	ErrCounterUnavailable = newError(ErrUnavailable, "inventory counter unavailable")
	ErrCounterNotSeeded   = newError(ErrUnavailable, "inventory counter not initialized")

	ErrAmountMismatch     = newError(ErrPaymentGateway, "paid amount does not match order total")
	ErrGatewayUnavailable = newError(ErrPaymentGateway, "payment gateway unavailable")
)
