package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	paymentdomain "github.com/openvenue/gatepass/internal/payment/domain"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "razorpay"
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		return nil, paymentdomain.ErrInvalidSignature
	}
	return &Adapter{webhookSecret: secret}, nil
}

type Adapter struct {
	webhookSecret string
}

// Verify checks X-Razorpay-Signature against an HMAC-SHA256 of the raw
// request body. The signature is computed over the exact bytes received,
// before any JSON parsing. An absent header is a malformed request, not
// a failed verification.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	signature := strings.TrimSpace(headers.Get("X-Razorpay-Signature"))
	if signature == "" {
		return paymentdomain.ErrMissingSignature
	}

	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) Parse(ctx context.Context, payload []byte, headers http.Header) (*paymentdomain.PaymentEvent, error) {
	var event razorpayEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	eventID := strings.TrimSpace(headers.Get("X-Razorpay-Event-Id"))
	if eventID == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	switch strings.TrimSpace(event.Event) {
	case "payment.captured", "order.paid":
		return a.parsePayment(event, eventID, payload, paymentdomain.EventTypePaymentSucceeded)
	case "payment.failed":
		return a.parsePayment(event, eventID, payload, paymentdomain.EventTypePaymentFailed)
	case "payment.authorized":
		return a.parsePayment(event, eventID, payload, paymentdomain.EventTypePaymentAuthorized)
	default:
		// Dispute, downtime, QR and payment-link notifications carry no
		// settlement signal for us.
		return nil, paymentdomain.ErrEventIgnored
	}
}

type razorpayEvent struct {
	Event     string               `json:"event"`
	CreatedAt int64                `json:"created_at"`
	Payload   razorpayEventPayload `json:"payload"`
}

type razorpayEventPayload struct {
	Payment *razorpayEntityWrapper `json:"payment"`
	Order   *razorpayOrderWrapper  `json:"order"`
}

type razorpayEntityWrapper struct {
	Entity razorpayPayment `json:"entity"`
}

type razorpayOrderWrapper struct {
	Entity razorpayOrder `json:"entity"`
}

type razorpayPayment struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	Method           string `json:"method"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	CreatedAt        int64  `json:"created_at"`
}

type razorpayOrder struct {
	ID         string `json:"id"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	Currency   string `json:"currency"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"created_at"`
}

func (a *Adapter) parsePayment(event razorpayEvent, eventID string, payload []byte, eventType string) (*paymentdomain.PaymentEvent, error) {
	out := &paymentdomain.PaymentEvent{
		Provider:        "razorpay",
		ProviderEventID: eventID,
		Type:            eventType,
		OccurredAt:      timestamp(event.CreatedAt),
		RawPayload:      payload,
	}

	if event.Payload.Payment != nil {
		payment := event.Payload.Payment.Entity
		out.ProviderPaymentID = strings.TrimSpace(payment.ID)
		out.ProviderOrderID = strings.TrimSpace(payment.OrderID)
		out.Amount = payment.Amount
		out.Currency = strings.ToUpper(strings.TrimSpace(payment.Currency))
		out.Method = strings.TrimSpace(payment.Method)
		out.FailureCode = strings.TrimSpace(payment.ErrorCode)
		out.FailureReason = strings.TrimSpace(payment.ErrorDescription)
		if payment.CreatedAt != 0 {
			out.OccurredAt = timestamp(payment.CreatedAt)
		}
	}

	// order.paid events may omit the payment entity.
	if out.ProviderOrderID == "" && event.Payload.Order != nil {
		order := event.Payload.Order.Entity
		out.ProviderOrderID = strings.TrimSpace(order.ID)
		if out.Amount == 0 {
			out.Amount = order.AmountPaid
			if out.Amount == 0 {
				out.Amount = order.Amount
			}
		}
		if out.Currency == "" {
			out.Currency = strings.ToUpper(strings.TrimSpace(order.Currency))
		}
	}

	if out.ProviderOrderID == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}
	return out, nil
}

func timestamp(value int64) time.Time {
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}
