package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/app"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
)

// ReservationCreator is the minimal interface needed to reserve tickets.
type ReservationCreator interface {
	Reserve(ctx context.Context, in app.ReserveInput) (domain.Reservation, error)
}

// ReservationReleaser is the minimal interface needed to release tickets.
type ReservationReleaser interface {
	Release(ctx context.Context, id string) (bool, error)
}

// HandleCreateReservation returns an HTTP handler for POST /reservations.
func HandleCreateReservation(svc ReservationCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}

		var req createReservationRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.IdempotencyKey == "" {
			req.IdempotencyKey = r.Header.Get(idempotencyHeader)
		}
		if req.TicketTypeID == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "ticket_type_id is required")
			return
		}
		if req.Quantity <= 0 {
			writeError(w, http.StatusBadRequest, codeInvalidQuantity, domain.ErrInvalidQuantity.Error())
			return
		}

		res, err := svc.Reserve(r.Context(), app.ReserveInput{
			EventID:        req.EventID,
			TicketTypeID:   req.TicketTypeID,
			Quantity:       req.Quantity,
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, reservationResponse{
			ReservationID: res.ID,
			TicketTypeID:  res.TicketTypeID,
			Quantity:      res.Quantity,
			ExpiresAt:     res.ExpiresAt,
		})
	}
}

// HandleReleaseReservation returns an HTTP handler for
// POST /reservations/{id}/release.
func HandleReleaseReservation(svc ReservationReleaser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, ok := pathParams(r.URL.Path, "reservations/{}/release")
		if !ok {
			notFound(w)
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}

		released, err := svc.Release(r.Context(), params[0])
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, releaseResponse{Released: released})
	}
}

type createReservationRequest struct {
	EventID        string `json:"event_id"`
	TicketTypeID   string `json:"ticket_type_id"`
	Quantity       int    `json:"quantity"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type reservationResponse struct {
	ReservationID string    `json:"reservation_id"`
	TicketTypeID  string    `json:"ticket_type_id"`
	Quantity      int       `json:"quantity"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type releaseResponse struct {
	Released bool `json:"released"`
}
