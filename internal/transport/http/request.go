package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	idempotencyHeader = "Idempotency-Key"
	organizerHeader   = "X-Organizer-ID"
	maxBodyBytes      = 1 << 20
)

// decodeJSON reads a strict JSON body into v and answers 400 itself when
// the body is malformed.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return false
	}
	return true
}

// pathParams matches path against a pattern such as
// "orders/{}/cancel" and returns the wildcard segments.
func pathParams(path, pattern string) ([]string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	want := strings.Split(pattern, "/")
	if len(parts) != len(want) {
		return nil, false
	}
	var params []string
	for i, p := range want {
		if p == "{}" {
			if parts[i] == "" {
				return nil, false
			}
			params = append(params, parts[i])
			continue
		}
		if parts[i] != p {
			return nil, false
		}
	}
	return params, true
}

func organizerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(organizerHeader))
	if id == "" {
		writeError(w, http.StatusBadRequest, codeOrganizerRequired, organizerHeader+" header required")
		return "", false
	}
	return id, true
}

func parseOptionalTime(w http.ResponseWriter, field, v string) (*time.Time, bool) {
	if v == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidTimestamp, "invalid "+field+" format")
		return nil, false
	}
	return &t, true
}

func parseMoney(w http.ResponseWriter, field, v string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidMoney, "invalid "+field)
		return decimal.Decimal{}, false
	}
	return d, true
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
