// Package stripe talks to the Stripe REST API and verifies its webhooks.
package stripe

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"shopfront-backend/internal/infrastructure/metrics"
	"shopfront-backend/internal/payment"
	"shopfront-backend/pkg/logger"
)

const maxAttempts = 3

type Config struct {
	APIURL          string
	SecretKey       string
	WebhookSecret   string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Client implements payment.Provider.
type Client struct {
	baseURL       string
	secretKey     string
	webhookSecret string
	httpClient    *http.Client
	breaker       *gobreaker.CircuitBreaker[[]byte]
	backoff       time.Duration
	now           func() time.Time
}

var _ payment.Provider = (*Client)(nil)

func NewClient(cfg Config) *Client {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "stripe",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// card declines and validation errors say nothing about processor health
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			return err == nil || (errors.As(err, &apiErr) && !apiErr.retryable())
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})

	return &Client{
		baseURL:       strings.TrimRight(cfg.APIURL, "/"),
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		breaker:       breaker,
		backoff:       time.Second,
		now:           time.Now,
	}
}

// APIError is an error response returned by the API.
type APIError struct {
	StatusCode int    `json:"-"`
	Type       string `json:"type"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return "stripe: status " + strconv.Itoa(e.StatusCode)
	}
	return "stripe: " + e.Message
}

func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// do sends one API call through the breaker, retrying transient failures.
func (c *Client) do(ctx context.Context, op, method, path string, form url.Values, idempotencyKey string) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		var lastErr error
		for i := 0; i < maxAttempts; i++ {
			if i > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(time.Duration(i) * c.backoff):
				}
			}
			b, err := c.send(ctx, method, path, form, idempotencyKey)
			if err == nil {
				return b, nil
			}
			lastErr = err
			var apiErr *APIError
			if errors.As(err, &apiErr) && !apiErr.retryable() {
				break
			}
		}
		return nil, lastErr
	})

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "rejected"
		}
	}
	metrics.ProcessorCallsTotal.WithLabelValues(op, outcome).Inc()
	return body, err
}

func (c *Client) send(ctx context.Context, method, path string, form url.Values, idempotencyKey string) ([]byte, error) {
	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "stripe request failed")
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return b, nil
	}

	var envelope struct {
		Error APIError `json:"error"`
	}
	_ = json.Unmarshal(b, &envelope)
	envelope.Error.StatusCode = resp.StatusCode
	return nil, &envelope.Error
}

func setMetadata(form url.Values, prefix string, md map[string]string) {
	for k, v := range md {
		form.Set(prefix+"["+k+"]", v)
	}
}

type sessionResponse struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentIntent string `json:"payment_intent"`
	AmountTotal   int64  `json:"amount_total"`
	Currency      string `json:"currency"`
}

func (c *Client) CreateCheckoutSession(ctx context.Context, p payment.SessionParams) (*payment.Session, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", p.Currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(p.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", p.Description)
	setMetadata(form, "metadata", p.Metadata)
	setMetadata(form, "payment_intent_data[metadata]", p.Metadata)

	b, err := c.do(ctx, "create_session", http.MethodPost, "/v1/checkout/sessions", form, p.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	var s sessionResponse
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, errors.Wrap(err, "decode checkout session")
	}
	return &payment.Session{
		ID:              s.ID,
		URL:             s.URL,
		PaymentIntentID: s.PaymentIntent,
		AmountTotal:     s.AmountTotal,
		Currency:        s.Currency,
	}, nil
}

type intentResponse struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	ClientSecret     string `json:"client_secret"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	ReceiptEmail     string `json:"receipt_email"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

func (r *intentResponse) toIntent() *payment.Intent {
	pi := &payment.Intent{
		ID:           r.ID,
		Status:       r.Status,
		ClientSecret: r.ClientSecret,
		Amount:       r.Amount,
		Currency:     r.Currency,
		ReceiptEmail: r.ReceiptEmail,
	}
	if r.LastPaymentError != nil {
		pi.FailureMessage = r.LastPaymentError.Message
	}
	return pi
}

func (c *Client) decodeIntent(b []byte) (*payment.Intent, error) {
	var r intentResponse
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, errors.Wrap(err, "decode payment intent")
	}
	return r.toIntent(), nil
}

func (c *Client) CreatePaymentIntent(ctx context.Context, p payment.IntentParams) (*payment.Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(p.Amount, 10))
	form.Set("currency", p.Currency)
	form.Set("automatic_payment_methods[enabled]", "true")
	setMetadata(form, "metadata", p.Metadata)

	b, err := c.do(ctx, "create_intent", http.MethodPost, "/v1/payment_intents", form, p.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	return c.decodeIntent(b)
}

func (c *Client) RetrievePaymentIntent(ctx context.Context, id string) (*payment.Intent, error) {
	b, err := c.do(ctx, "retrieve_intent", http.MethodGet, "/v1/payment_intents/"+url.PathEscape(id), nil, "")
	if err != nil {
		return nil, err
	}
	return c.decodeIntent(b)
}

func (c *Client) Refund(ctx context.Context, intentID, idempotencyKey string) (*payment.Refund, error) {
	form := url.Values{}
	form.Set("payment_intent", intentID)

	b, err := c.do(ctx, "refund", http.MethodPost, "/v1/refunds", form, idempotencyKey)
	if err != nil {
		return nil, err
	}
	var r payment.Refund
	if err := json.Unmarshal(b, &struct {
		ID     *string `json:"id"`
		Status *string `json:"status"`
		Amount *int64  `json:"amount"`
	}{&r.ID, &r.Status, &r.Amount}); err != nil {
		return nil, errors.Wrap(err, "decode refund")
	}
	return &r, nil
}
