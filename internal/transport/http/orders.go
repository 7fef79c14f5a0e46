package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/app"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
)

// OrderService is the minimal interface needed for order endpoints.
type OrderService interface {
	CreateOrder(ctx context.Context, in app.CreateOrderInput) (app.CreateOrderResult, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	CancelOrder(ctx context.Context, orderID string) (domain.Order, error)
}

// HandleCreateOrder returns an HTTP handler for POST /orders.
func HandleCreateOrder(svc OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}

		var req createOrderRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.ReservationID == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "reservation_id is required")
			return
		}
		if strings.TrimSpace(req.BuyerEmail) == "" {
			writeError(w, http.StatusBadRequest, codeBuyerEmailRequired, domain.ErrBuyerEmailRequired.Error())
			return
		}

		res, err := svc.CreateOrder(r.Context(), app.CreateOrderInput{
			ReservationID: req.ReservationID,
			Buyer: domain.Buyer{
				Email: req.BuyerEmail,
				Name:  req.BuyerName,
				Phone: req.BuyerPhone,
			},
			PromoCode: req.PromoCode,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		status := http.StatusCreated
		if !res.Created {
			status = http.StatusOK
		}
		resp := newOrderResponse(res.Order)
		resp.AuthorizationURL = res.AuthorizationURL
		writeJSON(w, status, resp)
	}
}

// HandleOrder returns an HTTP handler for GET /orders/{id} and
// POST /orders/{id}/cancel.
func HandleOrder(svc OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if params, ok := pathParams(r.URL.Path, "orders/{}"); ok {
			if r.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			order, err := svc.GetOrder(r.Context(), params[0])
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, newOrderResponse(order))
			return
		}

		params, ok := pathParams(r.URL.Path, "orders/{}/cancel")
		if !ok {
			notFound(w)
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		order, err := svc.CancelOrder(r.Context(), params[0])
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newOrderResponse(order))
	}
}

type createOrderRequest struct {
	ReservationID string `json:"reservation_id"`
	BuyerEmail    string `json:"buyer_email"`
	BuyerName     string `json:"buyer_name"`
	BuyerPhone    string `json:"buyer_phone,omitempty"`
	PromoCode     string `json:"promo_code,omitempty"`
}

type orderResponse struct {
	OrderID            string     `json:"order_id"`
	ReservationID      string     `json:"reservation_id"`
	Status             string     `json:"status"`
	TicketCount        int        `json:"ticket_count"`
	Subtotal           string     `json:"subtotal"`
	Discount           string     `json:"discount"`
	PlatformFee        string     `json:"platform_fee"`
	ProcessingFee      string     `json:"processing_fee"`
	TotalAmount        string     `json:"total_amount"`
	ExternalPaymentRef string     `json:"external_payment_ref,omitempty"`
	AuthorizationURL   string     `json:"authorization_url,omitempty"`
	PaidAt             *time.Time `json:"paid_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func newOrderResponse(o domain.Order) orderResponse {
	return orderResponse{
		OrderID:            o.ID,
		ReservationID:      o.ReservationID,
		Status:             string(o.Status),
		TicketCount:        o.TicketCount,
		Subtotal:           money(o.Subtotal),
		Discount:           money(o.Discount),
		PlatformFee:        money(o.PlatformFee),
		ProcessingFee:      money(o.ProcessingFee),
		TotalAmount:        money(o.TotalAmount),
		ExternalPaymentRef: o.ExternalPaymentRef,
		PaidAt:             o.PaidAt,
		CreatedAt:          o.CreatedAt,
	}
}
