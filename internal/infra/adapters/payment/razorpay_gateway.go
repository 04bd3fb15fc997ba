// File: internal/infra/adapters/payment/razorpay_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"propertyhub-payments/internal/domain/ports/adapter"
	"propertyhub-payments/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*RazorpayGateway)(nil)

// APIError is a non-2xx reply from the gateway.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway http %d: %s %s", e.StatusCode, e.Code, e.Description)
}

// clientSide errors are the caller's fault and must not trip the breaker.
func (e *APIError) clientSide() bool { return e.StatusCode >= 400 && e.StatusCode < 500 }

type RazorpayOptions struct {
	BaseURL         string
	KeyID           string
	KeySecret       string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// RazorpayGateway implements adapter.PaymentGateway against the Razorpay REST API
// using basic auth. Calls go through a circuit breaker and carry a bounded timeout.
type RazorpayGateway struct {
	baseURL   string
	keyID     string
	keySecret string
	timeout   time.Duration
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[[]byte]
}

func NewRazorpayGateway(opts RazorpayOptions) (*RazorpayGateway, error) {
	if opts.KeyID == "" || opts.KeySecret == "" {
		return nil, errors.New("gateway key id/secret empty")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.razorpay.com"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 30 * time.Second
	}
	failures := opts.BreakerFailures
	settings := gobreaker.Settings{
		Name:        "razorpay",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			return err == nil || (errors.As(err, &apiErr) && apiErr.clientSide())
		},
		OnStateChange: func(_ string, _ gobreaker.State, to gobreaker.State) {
			metrics.SetGatewayBreakerState(int(to))
		},
	}
	return &RazorpayGateway{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		keyID:     opts.KeyID,
		keySecret: opts.KeySecret,
		timeout:   opts.Timeout,
		client:    &http.Client{Timeout: opts.Timeout},
		breaker:   gobreaker.NewCircuitBreaker[[]byte](settings),
	}, nil
}

func (g *RazorpayGateway) Mode() string  { return "live" }
func (g *RazorpayGateway) KeyID() string { return g.keyID }

// CreateOrder calls POST /v1/orders.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receiptID string) (adapter.Order, error) {
	payload := map[string]any{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receiptID,
	}
	body, err := g.post(ctx, "create_order", "/v1/orders", payload)
	if err != nil {
		return adapter.Order{}, err
	}
	var out struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return adapter.Order{}, fmt.Errorf("decode order: %w", err)
	}
	if out.ID == "" {
		return adapter.Order{}, errors.New("gateway returned an order without id")
	}
	return adapter.Order{ID: out.ID, Amount: out.Amount, Currency: out.Currency, Status: out.Status}, nil
}

// Refund calls POST /v1/payments/{id}/refund.
func (g *RazorpayGateway) Refund(ctx context.Context, gatewayPaymentID string, amountMinor int64, notes map[string]string) (adapter.RefundResult, error) {
	payload := map[string]any{"amount": amountMinor}
	if len(notes) > 0 {
		payload["notes"] = notes
	}
	body, err := g.post(ctx, "refund", "/v1/payments/"+gatewayPaymentID+"/refund", payload)
	if err != nil {
		return adapter.RefundResult{}, err
	}
	var out struct {
		ID        string `json:"id"`
		Amount    int64  `json:"amount"`
		Status    string `json:"status"`
		CreatedAt int64  `json:"created_at"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return adapter.RefundResult{}, fmt.Errorf("decode refund: %w", err)
	}
	res := adapter.RefundResult{ID: out.ID, Amount: out.Amount, Status: out.Status}
	if out.CreatedAt > 0 {
		res.RefundTime = time.Unix(out.CreatedAt, 0).UTC()
	}
	return res, nil
}

func (g *RazorpayGateway) post(ctx context.Context, op, path string, payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	body, err := g.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.SetBasicAuth(g.keyID, g.keySecret)

		resp, err := g.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &APIError{StatusCode: resp.StatusCode}
			var e struct {
				Error struct {
					Code        string `json:"code"`
					Description string `json:"description"`
				} `json:"error"`
			}
			if json.Unmarshal(raw, &e) == nil {
				apiErr.Code = e.Error.Code
				apiErr.Description = e.Error.Description
			}
			return nil, apiErr
		}
		return raw, nil
	})
	result := "ok"
	if err != nil {
		result = "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "breaker_open"
		}
	}
	metrics.ObserveGatewayCall(op, result, start)
	return body, err
}
