package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/app"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
)

const signatureHeader = "X-Paystack-Signature"

// PaymentService is the minimal interface needed for payment endpoints.
type PaymentService interface {
	VerifyPayment(ctx context.Context, reference string) (domain.Order, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) (app.WebhookOutcome, error)
}

// HandleVerifyPayment returns an HTTP handler for POST /payments/verify,
// called by the checkout page after the gateway redirect.
func HandleVerifyPayment(svc PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req verifyPaymentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Reference == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "reference is required")
			return
		}

		order, err := svc.VerifyPayment(r.Context(), req.Reference)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, verifyPaymentResponse{
			OrderID: order.ID,
			Status:  string(order.Status),
		})
	}
}

// HandleWebhook returns an HTTP handler for POST /payments/webhook. Handled,
// replayed and unknown references all answer 200 so the gateway stops
// retrying; only a bad signature (401) or a transient failure (500) does not.
func HandleWebhook(svc PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		outcome, err := svc.HandleWebhook(r.Context(), body, r.Header.Get(signatureHeader))
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, webhookResponse{Status: string(outcome)})
		case errors.Is(err, domain.ErrInvalidSignature):
			writeError(w, http.StatusUnauthorized, codeInvalidSignature, domain.ErrInvalidSignature.Error())
		case errors.Is(err, domain.ErrValidation):
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid webhook payload")
		default:
			noteError(r, err)
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
	}
}

type verifyPaymentRequest struct {
	Reference string `json:"reference"`
}

type verifyPaymentResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type webhookResponse struct {
	Status string `json:"status"`
}
