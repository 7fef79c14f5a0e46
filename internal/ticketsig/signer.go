// Package ticketsig signs and verifies the payload encoded in ticket QR
// codes.
package ticketsig

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
)

const issuer = "ti3ckets"

// Claims binds a ticket number to its order and event.
type Claims struct {
	TicketNumber string `json:"tn"`
	OrderID      string `json:"oid"`
	EventID      string `json:"eid"`
	jwt.RegisteredClaims
}

type Signer struct {
	secret []byte
}

func NewSigner(secret string) (*Signer, error) {
	if len(secret) < 16 {
		return nil, errors.New("ticket signing secret must be at least 16 bytes")
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign returns an HS256 token for t. Tickets do not expire; check-in state
// lives in the ledger.
func (s *Signer) Sign(t domain.Ticket, issuedAt time.Time) (string, error) {
	claims := Claims{
		TicketNumber: t.TicketNumber,
		OrderID:      t.OrderID,
		EventID:      t.EventID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			Subject:  t.TicketNumber,
			IssuedAt: jwt.NewNumericDate(issuedAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign ticket: %w", err)
	}
	return token, nil
}

// Verify parses payload and returns its claims, or ErrInvalidTicketPayload.
func (s *Signer) Verify(payload string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(payload, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
	)
	if err != nil || claims.TicketNumber == "" {
		return Claims{}, domain.ErrInvalidTicketPayload
	}
	return claims, nil
}
