package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/goccy/go-json"

	"shopfront-backend/internal/payment"
)

// SignatureTolerance bounds the age of a signed webhook timestamp.
const SignatureTolerance = 5 * time.Minute

type eventEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID               string            `json:"id"`
			Object           string            `json:"object"`
			PaymentIntent    string            `json:"payment_intent"`
			Status           string            `json:"status"`
			Metadata         map[string]string `json:"metadata"`
			LastPaymentError *struct {
				Message string `json:"message"`
			} `json:"last_payment_error"`
		} `json:"object"`
	} `json:"data"`
}

// ParseWebhook checks the Stripe-Signature header against payload and decodes the event.
func (c *Client) ParseWebhook(payload []byte, signature string) (*payment.WebhookEvent, error) {
	if err := verifySignature(payload, signature, c.webhookSecret, c.now()); err != nil {
		return nil, err
	}

	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, errors.Wrap(err, "decode webhook event")
	}

	obj := env.Data.Object
	ev := &payment.WebhookEvent{
		ID:              env.ID,
		Type:            env.Type,
		ObjectID:        obj.ID,
		PaymentIntentID: obj.PaymentIntent,
		Status:          obj.Status,
		Metadata:        obj.Metadata,
	}
	if obj.Object == "payment_intent" {
		ev.PaymentIntentID = obj.ID
	}
	if obj.LastPaymentError != nil {
		ev.FailureMessage = obj.LastPaymentError.Message
	}
	return ev, nil
}

// verifySignature validates a "t=<unix>,v1=<hex>" header. Any matching v1
// entry is accepted.
func verifySignature(payload []byte, header, secret string, now time.Time) error {
	var (
		timestamp  string
		signatures []string
	)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			signatures = append(signatures, v)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return errors.Wrap(payment.ErrInvalidSignature, "malformed header")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return errors.Wrap(payment.ErrInvalidSignature, "bad timestamp")
	}
	if age := now.Sub(time.Unix(ts, 0)); age > SignatureTolerance || age < -SignatureTolerance {
		return errors.Wrap(payment.ErrInvalidSignature, "timestamp outside tolerance")
	}

	expected := computeSignature(timestamp, payload, secret)
	for _, sig := range signatures {
		raw, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(raw, expected) {
			return nil
		}
	}
	return payment.ErrInvalidSignature
}

func computeSignature(timestamp string, payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

// SignHeader builds a Stripe-Signature header for payload. Used by tests and
// local tooling that replays events.
func SignHeader(payload []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return "t=" + ts + ",v1=" + hex.EncodeToString(computeSignature(ts, payload, secret))
}
