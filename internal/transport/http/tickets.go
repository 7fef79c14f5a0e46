package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/app"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
)

// TicketService is the minimal interface needed for ticket endpoints.
type TicketService interface {
	CheckIn(ctx context.Context, payload string) (domain.Ticket, error)
	Transfer(ctx context.Context, in app.TransferInput) (domain.Ticket, error)
}

// HandleCheckIn returns an HTTP handler for POST /tickets/check-in.
func HandleCheckIn(svc TicketService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req checkInRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Payload == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "payload is required")
			return
		}

		t, err := svc.CheckIn(r.Context(), req.Payload)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newTicketResponse(t))
	}
}

// HandleTicketTransfer returns an HTTP handler for
// POST /tickets/{number}/transfer.
func HandleTicketTransfer(svc TicketService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, ok := pathParams(r.URL.Path, "tickets/{}/transfer")
		if !ok {
			notFound(w)
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req transferRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		t, err := svc.Transfer(r.Context(), app.TransferInput{
			TicketNumber: params[0],
			HolderName:   req.HolderName,
			HolderEmail:  req.HolderEmail,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newTicketResponse(t))
	}
}

type checkInRequest struct {
	Payload string `json:"payload"`
}

type transferRequest struct {
	HolderName  string `json:"holder_name"`
	HolderEmail string `json:"holder_email"`
}

type ticketResponse struct {
	TicketNumber   string     `json:"ticket_number"`
	OrderID        string     `json:"order_id"`
	EventID        string     `json:"event_id"`
	TicketTypeID   string     `json:"ticket_type_id"`
	SequenceNumber int        `json:"sequence_number"`
	Status         string     `json:"status"`
	ArtifactURL    string     `json:"artifact_url,omitempty"`
	HolderName     string     `json:"holder_name,omitempty"`
	HolderEmail    string     `json:"holder_email,omitempty"`
	CheckedInAt    *time.Time `json:"checked_in_at,omitempty"`
}

func newTicketResponse(t domain.Ticket) ticketResponse {
	return ticketResponse{
		TicketNumber:   t.TicketNumber,
		OrderID:        t.OrderID,
		EventID:        t.EventID,
		TicketTypeID:   t.TicketTypeID,
		SequenceNumber: t.SequenceNumber,
		Status:         string(t.Status),
		ArtifactURL:    t.ArtifactURL,
		HolderName:     t.HolderName,
		HolderEmail:    t.HolderEmail,
		CheckedInAt:    t.CheckedInAt,
	}
}
