package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/app"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
)

func TestHandleCheckIn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		body           string
		serviceErr     error
		expectedStatus int
		expectedSubstr string
	}{
		{
			name:           "checked in",
			body:           `{"payload":"signed"}`,
			expectedStatus: http.StatusOK,
			expectedSubstr: `"ticket_number":"TKT-1"`,
		},
		{
			name:           "empty payload",
			body:           `{"payload":""}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "tampered payload",
			body:           `{"payload":"forged"}`,
			serviceErr:     domain.ErrInvalidTicketPayload,
			expectedStatus: http.StatusBadRequest,
			expectedSubstr: codeInvalidTicketPayload,
		},
		{
			name:           "already used",
			body:           `{"payload":"signed"}`,
			serviceErr:     domain.ErrTicketAlreadyUsed,
			expectedStatus: http.StatusConflict,
			expectedSubstr: codeTicketAlreadyUsed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubTicketService{ticket: domain.Ticket{TicketNumber: "TKT-1", Status: domain.TicketStatusUsed}, err: tt.serviceErr}
			req := httptest.NewRequest(http.MethodPost, "/tickets/check-in", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()

			HandleCheckIn(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if tt.expectedSubstr != "" && !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}
}

func TestHandleTicketTransfer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		path           string
		serviceErr     error
		expectedStatus int
	}{
		{name: "transferred", path: "/tickets/TKT-1/transfer", expectedStatus: http.StatusOK},
		{name: "not transferable", path: "/tickets/TKT-1/transfer", serviceErr: domain.ErrTicketNotTransferable, expectedStatus: http.StatusConflict},
		{name: "missing holder", path: "/tickets/TKT-1/transfer", serviceErr: domain.ErrInvalidHolder, expectedStatus: http.StatusBadRequest},
		{name: "unknown ticket", path: "/tickets/TKT-9/transfer", serviceErr: domain.ErrTicketNotFound, expectedStatus: http.StatusNotFound},
		{name: "bad path", path: "/tickets/TKT-1", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubTicketService{ticket: domain.Ticket{TicketNumber: "TKT-1"}, err: tt.serviceErr}
			req := httptest.NewRequest(http.MethodPost, tt.path,
				bytes.NewBufferString(`{"holder_name":"Bo","holder_email":"bo@x.co"}`))
			rec := httptest.NewRecorder()

			HandleTicketTransfer(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if tt.expectedStatus == http.StatusOK && svc.transfer.TicketNumber != "TKT-1" {
				t.Fatalf("expected ticket number from path, got %q", svc.transfer.TicketNumber)
			}
		})
	}
}

type stubTicketService struct {
	ticket   domain.Ticket
	err      error
	transfer app.TransferInput
}

func (s *stubTicketService) CheckIn(_ context.Context, _ string) (domain.Ticket, error) {
	if s.err != nil {
		return domain.Ticket{}, s.err
	}
	return s.ticket, nil
}

func (s *stubTicketService) Transfer(_ context.Context, in app.TransferInput) (domain.Ticket, error) {
	s.transfer = in
	if s.err != nil {
		return domain.Ticket{}, s.err
	}
	return s.ticket, nil
}
