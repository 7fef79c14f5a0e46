package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
)

const (
	codeMethodNotAllowed       = "method_not_allowed"
	codeNotFound               = "not_found"
	codeInvalidRequestBody     = "invalid_request_body"
	codeMissingRequiredField   = "missing_required_field"
	codeInvalidTimestamp       = "invalid_timestamp"
	codeInvalidMoney           = "invalid_money"
	codeInvalidID              = "invalid_id"
	codeValidationFailed       = "validation_failed"
	codeEventNameRequired      = "event_name_required"
	codeOrganizerRequired      = "organizer_required"
	codeTicketTypeNameRequired = "ticket_type_name_required"
	codeInvalidQuantity        = "invalid_quantity"
	codeQuantityExceedsMax     = "quantity_exceeds_max"
	codeSalesClosed            = "sales_closed"
	codeInvalidCapacity        = "invalid_capacity"
	codeInvalidPrice           = "invalid_price"
	codeBuyerEmailRequired     = "buyer_email_required"
	codeInvalidPromoCode       = "invalid_promo_code"
	codeInvalidTicketPayload   = "invalid_ticket_payload"
	codeInvalidSignature       = "invalid_signature"
	codeInvalidHolder          = "invalid_holder"
	codeInvalidAmount          = "invalid_amount"
	codePayoutBelowMinimum     = "payout_below_minimum"
	codePayoutExceedsAvailable = "payout_exceeds_available"
	codeBankAccountRequired    = "bank_account_required"
	codeInvalidBankAccount     = "invalid_bank_account"
	codeInsufficientInventory  = "insufficient_inventory"
	codeEventNotFound          = "event_not_found"
	codeTicketTypeNotFound     = "ticket_type_not_found"
	codeReservationNotFound    = "reservation_not_found"
	codeOrderNotFound          = "order_not_found"
	codeTicketNotFound         = "ticket_not_found"
	codeConflict               = "conflict"
	codeIdempotencyConflict    = "idempotency_conflict"
	codeReservationExpired     = "reservation_expired"
	codeReservationClaimed     = "reservation_claimed"
	codeTicketTypeExists       = "ticket_type_already_exists"
	codeInvalidTransition      = "invalid_transition"
	codeTicketAlreadyUsed      = "ticket_already_used"
	codeTicketNotTransferable  = "ticket_not_transferable"
	codePaymentGatewayError    = "payment_gateway_error"
	codeServiceUnavailable     = "service_unavailable"
	codeRateLimited            = "rate_limited"
	codeForbidden              = "forbidden"
	codeInternalError          = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// Specific errors are matched before the kind they wrap.
var errorMappings = []errorMapping{
	{domain.ErrInvalidID, http.StatusBadRequest, codeInvalidID},
	{domain.ErrInvalidQuantity, http.StatusBadRequest, codeInvalidQuantity},
	{domain.ErrQuantityExceedsMax, http.StatusBadRequest, codeQuantityExceedsMax},
	{domain.ErrSalesClosed, http.StatusBadRequest, codeSalesClosed},
	{domain.ErrEventNameRequired, http.StatusBadRequest, codeEventNameRequired},
	{domain.ErrOrganizerRequired, http.StatusBadRequest, codeOrganizerRequired},
	{domain.ErrTicketTypeNameRequired, http.StatusBadRequest, codeTicketTypeNameRequired},
	{domain.ErrInvalidCapacity, http.StatusBadRequest, codeInvalidCapacity},
	{domain.ErrInvalidPrice, http.StatusBadRequest, codeInvalidPrice},
	{domain.ErrBuyerEmailRequired, http.StatusBadRequest, codeBuyerEmailRequired},
	{domain.ErrInvalidPromoCode, http.StatusBadRequest, codeInvalidPromoCode},
	{domain.ErrInvalidTicketPayload, http.StatusBadRequest, codeInvalidTicketPayload},
	{domain.ErrInvalidSignature, http.StatusBadRequest, codeInvalidSignature},
	{domain.ErrInvalidHolder, http.StatusBadRequest, codeInvalidHolder},
	{domain.ErrInvalidAmount, http.StatusBadRequest, codeInvalidAmount},
	{domain.ErrPayoutBelowMinimum, http.StatusBadRequest, codePayoutBelowMinimum},
	{domain.ErrPayoutExceedsAvailable, http.StatusBadRequest, codePayoutExceedsAvailable},
	{domain.ErrBankAccountRequired, http.StatusBadRequest, codeBankAccountRequired},
	{domain.ErrInvalidBankAccount, http.StatusBadRequest, codeInvalidBankAccount},
	{domain.ErrValidation, http.StatusBadRequest, codeValidationFailed},

	{domain.ErrInsufficientInventory, http.StatusBadRequest, codeInsufficientInventory},

	{domain.ErrEventNotFound, http.StatusNotFound, codeEventNotFound},
	{domain.ErrTicketTypeNotFound, http.StatusNotFound, codeTicketTypeNotFound},
	{domain.ErrReservationNotFound, http.StatusNotFound, codeReservationNotFound},
	{domain.ErrOrderNotFound, http.StatusNotFound, codeOrderNotFound},
	{domain.ErrTicketNotFound, http.StatusNotFound, codeTicketNotFound},
	{domain.ErrNotFound, http.StatusNotFound, codeNotFound},

	{domain.ErrIdempotencyConflict, http.StatusConflict, codeIdempotencyConflict},
	{domain.ErrReservationExpired, http.StatusConflict, codeReservationExpired},
	{domain.ErrReservationClaimed, http.StatusConflict, codeReservationClaimed},
	{domain.ErrTicketTypeAlreadyExists, http.StatusConflict, codeTicketTypeExists},
	{domain.ErrInvalidTransition, http.StatusConflict, codeInvalidTransition},
	{domain.ErrTicketAlreadyUsed, http.StatusConflict, codeTicketAlreadyUsed},
	{domain.ErrTicketNotTransferable, http.StatusConflict, codeTicketNotTransferable},
	{domain.ErrConflict, http.StatusConflict, codeConflict},

	{domain.ErrPaymentGateway, http.StatusBadGateway, codePaymentGatewayError},
	{domain.ErrUnavailable, http.StatusServiceUnavailable, codeServiceUnavailable},
}

// writeServiceError maps a service error onto a status and stable code.
// Client errors carry the domain message; 5xx answers stay generic and the
// full error is left for the request logger.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		if m.status >= 500 {
			noteError(r, err)
			msg := "service temporarily unavailable"
			if m.status == http.StatusBadGateway {
				msg = "payment provider error"
			}
			writeError(w, m.status, m.code, msg)
			return
		}
		writeError(w, m.status, m.code, m.err.Error())
		return
	}
	noteError(r, err)
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
}
