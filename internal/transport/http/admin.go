package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/app"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
)

// AdminEventService is the minimal interface needed for admin event endpoints.
type AdminEventService interface {
	CreateEvent(ctx context.Context, in app.CreateEventInput) (domain.Event, error)
	ListEvents(ctx context.Context, organizerID string) ([]domain.Event, error)
}

// AdminTicketTypeService is the minimal interface needed for admin ticket
// type and promo code endpoints.
type AdminTicketTypeService interface {
	CreateTicketType(ctx context.Context, in app.CreateTicketTypeInput) (domain.TicketType, error)
	ListTicketTypes(ctx context.Context, eventID string) ([]domain.TicketType, error)
	CreatePromoCode(ctx context.Context, in app.CreatePromoCodeInput) (domain.PromoCode, error)
}

// HandleAdminEvents returns an HTTP handler for admin event creation/listing.
// Listing without an organizer header returns every event.
func HandleAdminEvents(svc AdminEventService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			events, err := svc.ListEvents(r.Context(), r.Header.Get(organizerHeader))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			resp := make([]eventResponse, 0, len(events))
			for _, event := range events {
				resp = append(resp, newEventResponse(event))
			}
			writeJSON(w, http.StatusOK, resp)
		case http.MethodPost:
			organizer, ok := organizerID(w, r)
			if !ok {
				return
			}
			var req createEventRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			if req.Name == "" {
				writeError(w, http.StatusBadRequest, codeEventNameRequired, domain.ErrEventNameRequired.Error())
				return
			}
			startsAt, ok := parseOptionalTime(w, "starts_at", req.StartsAt)
			if !ok {
				return
			}

			event, err := svc.CreateEvent(r.Context(), app.CreateEventInput{
				OrganizerID: organizer,
				Name:        req.Name,
				StartsAt:    startsAt,
			})
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, newEventResponse(event))
		default:
			methodNotAllowed(w)
		}
	}
}

// HandleAdminEventResources returns an HTTP handler for
// /admin/events/{id}/ticket-types and /admin/events/{id}/promo-codes.
func HandleAdminEventResources(svc AdminTicketTypeService) http.HandlerFunc {
	ticketTypes := handleAdminTicketTypes(svc)
	promoCodes := handleAdminPromoCodes(svc)
	return func(w http.ResponseWriter, r *http.Request) {
		if params, ok := pathParams(r.URL.Path, "admin/events/{}/ticket-types"); ok {
			ticketTypes(w, r, params[0])
			return
		}
		if params, ok := pathParams(r.URL.Path, "admin/events/{}/promo-codes"); ok {
			promoCodes(w, r, params[0])
			return
		}
		notFound(w)
	}
}

func handleAdminTicketTypes(svc AdminTicketTypeService) func(http.ResponseWriter, *http.Request, string) {
	return func(w http.ResponseWriter, r *http.Request, eventID string) {
		switch r.Method {
		case http.MethodGet:
			types, err := svc.ListTicketTypes(r.Context(), eventID)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			resp := make([]ticketTypeResponse, 0, len(types))
			for _, tt := range types {
				resp = append(resp, newTicketTypeResponse(tt))
			}
			writeJSON(w, http.StatusOK, resp)
		case http.MethodPost:
			var req createTicketTypeRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			if req.Name == "" {
				writeError(w, http.StatusBadRequest, codeTicketTypeNameRequired, domain.ErrTicketTypeNameRequired.Error())
				return
			}
			if req.TotalQuantity <= 0 {
				writeError(w, http.StatusBadRequest, codeInvalidCapacity, domain.ErrInvalidCapacity.Error())
				return
			}
			price, ok := parseMoney(w, "price", req.Price)
			if !ok {
				return
			}
			salesStart, ok := parseOptionalTime(w, "sales_start", req.SalesStart)
			if !ok {
				return
			}
			salesEnd, ok := parseOptionalTime(w, "sales_end", req.SalesEnd)
			if !ok {
				return
			}

			tt, err := svc.CreateTicketType(r.Context(), app.CreateTicketTypeInput{
				EventID:       eventID,
				Name:          req.Name,
				Price:         price,
				TotalQuantity: req.TotalQuantity,
				MaxPerOrder:   req.MaxPerOrder,
				SalesStart:    salesStart,
				SalesEnd:      salesEnd,
			})
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, newTicketTypeResponse(tt))
		default:
			methodNotAllowed(w)
		}
	}
}

func handleAdminPromoCodes(svc AdminTicketTypeService) func(http.ResponseWriter, *http.Request, string) {
	return func(w http.ResponseWriter, r *http.Request, eventID string) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req createPromoCodeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		value, ok := parseMoney(w, "value", req.Value)
		if !ok {
			return
		}
		validFrom, ok := parseOptionalTime(w, "valid_from", req.ValidFrom)
		if !ok {
			return
		}
		validUntil, ok := parseOptionalTime(w, "valid_until", req.ValidUntil)
		if !ok {
			return
		}

		promo, err := svc.CreatePromoCode(r.Context(), app.CreatePromoCodeInput{
			EventID:    eventID,
			Code:       req.Code,
			Kind:       domain.DiscountKind(req.Kind),
			Value:      value,
			MaxUses:    req.MaxUses,
			ValidFrom:  validFrom,
			ValidUntil: validUntil,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, promoCodeResponse{
			Code:       promo.Code,
			EventID:    promo.EventID,
			Kind:       string(promo.Kind),
			Value:      promo.Value.String(),
			MaxUses:    promo.MaxUses,
			UsedCount:  promo.UsedCount,
			ValidFrom:  promo.ValidFrom,
			ValidUntil: promo.ValidUntil,
		})
	}
}

type createEventRequest struct {
	Name     string `json:"name"`
	StartsAt string `json:"starts_at,omitempty"`
}

type eventResponse struct {
	ID          string    `json:"id"`
	OrganizerID string    `json:"organizer_id"`
	Name        string    `json:"name"`
	StartsAt    time.Time `json:"starts_at"`
}

func newEventResponse(e domain.Event) eventResponse {
	return eventResponse{
		ID:          e.ID,
		OrganizerID: e.OrganizerID,
		Name:        e.Name,
		StartsAt:    e.StartsAt,
	}
}

type createTicketTypeRequest struct {
	Name          string `json:"name"`
	Price         string `json:"price"`
	TotalQuantity int    `json:"total_quantity"`
	MaxPerOrder   int    `json:"max_per_order,omitempty"`
	SalesStart    string `json:"sales_start,omitempty"`
	SalesEnd      string `json:"sales_end,omitempty"`
}

type ticketTypeResponse struct {
	ID               string     `json:"id"`
	EventID          string     `json:"event_id"`
	Name             string     `json:"name"`
	Price            string     `json:"price"`
	TotalQuantity    int        `json:"total_quantity"`
	SoldQuantity     int        `json:"sold_quantity"`
	ReservedQuantity int        `json:"reserved_quantity"`
	Available        int        `json:"available"`
	MaxPerOrder      int        `json:"max_per_order"`
	SalesStart       *time.Time `json:"sales_start,omitempty"`
	SalesEnd         *time.Time `json:"sales_end,omitempty"`
}

func newTicketTypeResponse(tt domain.TicketType) ticketTypeResponse {
	return ticketTypeResponse{
		ID:               tt.ID,
		EventID:          tt.EventID,
		Name:             tt.Name,
		Price:            money(tt.Price),
		TotalQuantity:    tt.TotalQuantity,
		SoldQuantity:     tt.SoldQuantity,
		ReservedQuantity: tt.ReservedQuantity,
		Available:        tt.Available(),
		MaxPerOrder:      tt.MaxPerOrder,
		SalesStart:       tt.SalesStart,
		SalesEnd:         tt.SalesEnd,
	}
}

type createPromoCodeRequest struct {
	Code       string `json:"code"`
	Kind       string `json:"kind"`
	Value      string `json:"value"`
	MaxUses    int    `json:"max_uses,omitempty"`
	ValidFrom  string `json:"valid_from,omitempty"`
	ValidUntil string `json:"valid_until,omitempty"`
}

type promoCodeResponse struct {
	Code       string     `json:"code"`
	EventID    string     `json:"event_id"`
	Kind       string     `json:"kind"`
	Value      string     `json:"value"`
	MaxUses    int        `json:"max_uses"`
	UsedCount  int        `json:"used_count"`
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}
