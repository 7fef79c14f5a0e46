package http

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/fees"
)

// PayoutService is the minimal interface needed for organizer endpoints.
// Authentication happens upstream; the organizer arrives in a header.
type PayoutService interface {
	Balance(ctx context.Context, organizerID string) (fees.Summary, error)
	History(ctx context.Context, organizerID string) ([]domain.Payout, error)
	SetBankAccount(ctx context.Context, acct domain.BankAccount) error
	RequestPayout(ctx context.Context, organizerID string, amount decimal.Decimal) (domain.Payout, error)
}

// HandleOrganizerBalance returns an HTTP handler for GET /organizer/balance.
func HandleOrganizerBalance(svc PayoutService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		organizer, ok := organizerID(w, r)
		if !ok {
			return
		}

		sum, err := svc.Balance(r.Context(), organizer)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, balanceResponse{
			Available:        money(sum.Available),
			Pending:          money(sum.Pending),
			Withdrawable:     money(sum.Withdrawable()),
			TotalRevenue:     money(sum.TotalRevenue),
			TotalFees:        money(sum.TotalFees()),
			CompletedPayouts: money(sum.CompletedPayouts),
			TicketsSold:      sum.TicketsSold,
		})
	}
}

// HandleOrganizerPayouts returns an HTTP handler for GET and POST
// /organizer/payouts.
func HandleOrganizerPayouts(svc PayoutService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		organizer, ok := organizerID(w, r)
		if !ok {
			return
		}

		if r.Method == http.MethodGet {
			payouts, err := svc.History(r.Context(), organizer)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			resp := make([]payoutResponse, 0, len(payouts))
			for _, p := range payouts {
				resp = append(resp, newPayoutResponse(p))
			}
			writeJSON(w, http.StatusOK, resp)
			return
		}

		var req payoutRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		amount, ok := parseMoney(w, "amount", req.Amount)
		if !ok {
			return
		}
		p, err := svc.RequestPayout(r.Context(), organizer, amount)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newPayoutResponse(p))
	}
}

// HandleBankAccount returns an HTTP handler for PUT /organizer/bank-account.
func HandleBankAccount(svc PayoutService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			methodNotAllowed(w)
			return
		}
		organizer, ok := organizerID(w, r)
		if !ok {
			return
		}
		var req bankAccountRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		acct := domain.BankAccount{
			OrganizerID:   organizer,
			BankName:      req.BankName,
			AccountNumber: req.AccountNumber,
			AccountName:   req.AccountName,
		}
		if err := svc.SetBankAccount(r.Context(), acct); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}

type balanceResponse struct {
	Available        string `json:"available"`
	Pending          string `json:"pending"`
	Withdrawable     string `json:"withdrawable"`
	TotalRevenue     string `json:"total_revenue"`
	TotalFees        string `json:"total_fees"`
	CompletedPayouts string `json:"completed_payouts"`
	TicketsSold      int    `json:"tickets_sold"`
}

type payoutRequest struct {
	Amount string `json:"amount"`
}

type bankAccountRequest struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

type payoutResponse struct {
	ID          string     `json:"id"`
	Amount      string     `json:"amount"`
	Status      string     `json:"status"`
	BankName    string     `json:"bank_name,omitempty"`
	AccountName string     `json:"account_name,omitempty"`
	RequestedAt time.Time  `json:"requested_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

func newPayoutResponse(p domain.Payout) payoutResponse {
	return payoutResponse{
		ID:          p.ID,
		Amount:      money(p.Amount),
		Status:      string(p.Status),
		BankName:    p.BankAccount.BankName,
		AccountName: p.BankAccount.AccountName,
		RequestedAt: p.RequestedAt,
		ProcessedAt: p.ProcessedAt,
	}
}
