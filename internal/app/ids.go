package app

import (
	"encoding/base32"
	"strings"

	"github.com/google/uuid"
)

// ticketNumberEncoding has no lowercase letters and no padding, so numbers
// read back the same off a printed ticket.
var ticketNumberEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

func newID() string {
	return uuid.NewString()
}

// newPaymentRef returns the merchant reference sent to the gateway.
func newPaymentRef() string {
	return "TXN-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// newTicketNumber returns TKT- followed by the base32 form of a v4 uuid
// (122 random bits, 26 characters).
func newTicketNumber() string {
	id := uuid.New()
	return "TKT-" + ticketNumberEncoding.EncodeToString(id[:])
}
