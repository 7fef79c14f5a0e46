// Package gateway talks to the Paystack transaction API.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
)

const defaultBaseURL = "https://api.paystack.co"

type Config struct {
	BaseURL     string
	SecretKey   string
	CallbackURL string
	Timeout     time.Duration
	// BreakerFailures is the number of consecutive transient failures that
	// open the breaker.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Paystack implements payment initialisation, verification and webhook
// authentication. Calls go through a circuit breaker that only counts
// transport failures and 5xx answers.
type Paystack struct {
	baseURL     string
	secret      string
	callbackURL string
	hc          *http.Client
	cb          *gobreaker.CircuitBreaker
	logger      *slog.Logger
}

func NewPaystack(cfg Config, logger *slog.Logger) *Paystack {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Paystack{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		secret:      cfg.SecretKey,
		callbackURL: cfg.CallbackURL,
		hc:          &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
	}
	p.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "paystack",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, domain.ErrUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return p
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency,omitempty"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type transactionData struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

func (d transactionData) result() domain.PaymentResult {
	return domain.PaymentResult{
		Reference: d.Reference,
		Outcome:   outcome(d.Status),
		Amount:    fromMinor(d.Amount),
		Currency:  strings.ToUpper(d.Currency),
	}
}

// Initialize opens a transaction for req.Reference and returns the hosted
// checkout URL.
func (p *Paystack) Initialize(ctx context.Context, req domain.PaymentRequest) (domain.PaymentSession, error) {
	body := initializeRequest{
		Email:       req.Email,
		Amount:      toMinor(req.Amount),
		Currency:    req.Currency,
		Reference:   req.Reference,
		CallbackURL: p.callbackURL,
		Metadata:    req.Metadata,
	}
	var data initializeData
	if err := p.call(ctx, "initialize", http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		return domain.PaymentSession{}, err
	}
	ref := data.Reference
	if ref == "" {
		ref = req.Reference
	}
	return domain.PaymentSession{Reference: ref, AuthorizationURL: data.AuthorizationURL}, nil
}

// Verify asks the gateway for the current state of reference.
func (p *Paystack) Verify(ctx context.Context, reference string) (domain.PaymentResult, error) {
	var data transactionData
	path := "/transaction/verify/" + url.PathEscape(reference)
	if err := p.call(ctx, "verify", http.MethodGet, path, nil, &data); err != nil {
		return domain.PaymentResult{}, err
	}
	if data.Reference == "" {
		data.Reference = reference
	}
	return data.result(), nil
}

type webhookPayload struct {
	Event string          `json:"event"`
	Data  transactionData `json:"data"`
}

// ParseWebhook checks the HMAC-SHA512 signature of body and decodes it.
// Events other than charges decode with an empty outcome.
func (p *Paystack) ParseWebhook(body []byte, signature string) (domain.WebhookEvent, error) {
	if !p.validSignature(body, signature) {
		return domain.WebhookEvent{}, domain.ErrInvalidSignature
	}
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.WebhookEvent{}, fmt.Errorf("decode webhook: %w", domain.ErrValidation)
	}
	event := domain.WebhookEvent{Type: payload.Event}
	if strings.HasPrefix(payload.Event, "charge.") {
		event.Result = payload.Data.result()
	}
	return event, nil
}

// Sign returns the signature Paystack would send for body.
func (p *Paystack) Sign(body []byte) string {
	mac := hmac.New(sha512.New, []byte(p.secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (p *Paystack) validSignature(body []byte, signature string) bool {
	if p.secret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(p.secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func (p *Paystack) call(ctx context.Context, op, method, path string, in, out any) error {
	_, err := p.cb.Execute(func() (interface{}, error) {
		return nil, p.do(ctx, op, method, path, in, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("paystack %s: %w", op, domain.ErrGatewayUnavailable)
	}
	return err
}

func (p *Paystack) do(ctx context.Context, op, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("paystack %s: encode: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("paystack %s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secret)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := p.hc.Do(req)
	if err != nil {
		return fmt.Errorf("paystack %s: %w: %w", op, domain.ErrGatewayUnavailable, unavailable(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("paystack %s: read body: %w: %w", op, domain.ErrGatewayUnavailable, unavailable(err))
	}
	p.logger.Debug("paystack call", "op", op, "status", resp.StatusCode, "duration", time.Since(start))

	var env envelope
	_ = json.Unmarshal(raw, &env)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("paystack %s: %s: %w", op, env.Message, domain.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("paystack %s: status %d: %w: %w", op, resp.StatusCode, domain.ErrGatewayUnavailable, domain.ErrUnavailable)
	case resp.StatusCode >= 400:
		if strings.Contains(strings.ToLower(env.Message), "not found") {
			return fmt.Errorf("paystack %s: %s: %w", op, env.Message, domain.ErrNotFound)
		}
		return fmt.Errorf("paystack %s: status %d: %s: %w", op, resp.StatusCode, env.Message, domain.ErrPaymentGateway)
	}

	if !env.Status {
		return fmt.Errorf("paystack %s: %s: %w", op, env.Message, domain.ErrPaymentGateway)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("paystack %s: decode data: %w", op, domain.ErrPaymentGateway)
		}
	}
	return nil
}

func unavailable(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
}

func outcome(status string) domain.PaymentOutcome {
	switch strings.ToLower(status) {
	case "success":
		return domain.PaymentSucceeded
	case "failed", "reversed":
		return domain.PaymentFailed
	case "abandoned":
		return domain.PaymentAbandoned
	default:
		return domain.PaymentPending
	}
}

// Amounts cross the wire in the currency's minor unit (kobo for NGN).
func toMinor(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func fromMinor(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}
