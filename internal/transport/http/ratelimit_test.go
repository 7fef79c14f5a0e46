package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimit_PerClient(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(1, 2)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	handler := RateLimit(limiter, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/reservations", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("10.0.0.1:5000"); code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i, code)
		}
	}
	if code := send("10.0.0.1:5001"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once burst is spent, got %d", code)
	}
	if code := send("10.0.0.2:5000"); code != http.StatusCreated {
		t.Fatalf("expected other client to pass, got %d", code)
	}

	now = now.Add(time.Second)
	if code := send("10.0.0.1:5000"); code != http.StatusCreated {
		t.Fatalf("expected token to refill, got %d", code)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {})
	if h := RateLimit(NewRateLimiter(0, 1), next); h == nil {
		t.Fatalf("expected handler")
	}
	if h := RateLimit(nil, next); h == nil {
		t.Fatalf("expected handler")
	}
}

func TestClientKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		forwarded string
		remote    string
		want      string
	}{
		{name: "remote addr", remote: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "forwarded first hop", forwarded: "203.0.113.5, 10.0.0.1", remote: "10.0.0.1:80", want: "203.0.113.5"},
		{name: "no port", remote: "192.0.2.9", want: "192.0.2.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientKey(req); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
