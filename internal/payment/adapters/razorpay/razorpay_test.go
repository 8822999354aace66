package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"testing"

	paymentdomain "github.com/openvenue/gatepass/internal/payment/domain"
)

const testSecret = "whsec_test"

func newAdapter(t *testing.T) paymentdomain.PaymentAdapter {
	t.Helper()
	adapter, err := NewFactory().NewAdapter(paymentdomain.AdapterConfig{
		Provider:      "razorpay",
		WebhookSecret: testSecret,
	})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return adapter
}

func sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	adapter := newAdapter(t)
	payload := []byte(`{"event":"payment.captured","payload":{}}`)

	headers := http.Header{}
	headers.Set("X-Razorpay-Signature", sign(payload))
	if err := adapter.Verify(context.Background(), payload, headers); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
}

func TestVerifyCoversExactBytes(t *testing.T) {
	adapter := newAdapter(t)
	payload := []byte(`{"event":"payment.captured","payload":{}}`)

	headers := http.Header{}
	headers.Set("X-Razorpay-Signature", sign(payload))

	// Same JSON document, different bytes.
	tampered := []byte(`{"event":"payment.captured","payload":{} }`)
	err := adapter.Verify(context.Background(), tampered, headers)
	if !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyMissingSignature(t *testing.T) {
	adapter := newAdapter(t)

	// Absent header is a malformed request, distinct from a signature
	// that fails verification.
	err := adapter.Verify(context.Background(), []byte(`{}`), http.Header{})
	if !errors.Is(err, paymentdomain.ErrMissingSignature) {
		t.Fatalf("err = %v, want ErrMissingSignature", err)
	}
	if errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatal("missing header must not map to the mismatch sentinel")
	}
}

func TestFactoryRequiresSecret(t *testing.T) {
	_, err := NewFactory().NewAdapter(paymentdomain.AdapterConfig{Provider: "razorpay"})
	if !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestParsePaymentCaptured(t *testing.T) {
	adapter := newAdapter(t)
	payload := []byte(`{
		"event": "payment.captured",
		"created_at": 1700000000,
		"payload": {
			"payment": {
				"entity": {
					"id": "pay_abc",
					"order_id": "order_abc",
					"amount": 150000,
					"currency": "INR",
					"status": "captured",
					"method": "upi",
					"created_at": 1700000001
				}
			}
		}
	}`)

	headers := http.Header{}
	headers.Set("X-Razorpay-Event-Id", "evt_abc")

	event, err := adapter.Parse(context.Background(), payload, headers)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Type != paymentdomain.EventTypePaymentSucceeded {
		t.Fatalf("type = %s, want %s", event.Type, paymentdomain.EventTypePaymentSucceeded)
	}
	if event.ProviderEventID != "evt_abc" {
		t.Fatalf("event id = %s", event.ProviderEventID)
	}
	if event.ProviderOrderID != "order_abc" || event.ProviderPaymentID != "pay_abc" {
		t.Fatalf("ids = %s/%s", event.ProviderOrderID, event.ProviderPaymentID)
	}
	if event.Amount != 150000 || event.Currency != "INR" || event.Method != "upi" {
		t.Fatalf("unexpected amount/currency/method: %d %s %s", event.Amount, event.Currency, event.Method)
	}
	if event.OccurredAt.Unix() != 1700000001 {
		t.Fatalf("occurred_at = %v", event.OccurredAt)
	}
}

func TestParsePaymentFailed(t *testing.T) {
	adapter := newAdapter(t)
	payload := []byte(`{
		"event": "payment.failed",
		"payload": {
			"payment": {
				"entity": {
					"id": "pay_abc",
					"order_id": "order_abc",
					"amount": 150000,
					"currency": "INR",
					"status": "failed",
					"error_code": "BAD_REQUEST_ERROR",
					"error_description": "Payment declined by bank"
				}
			}
		}
	}`)

	headers := http.Header{}
	headers.Set("X-Razorpay-Event-Id", "evt_abc")

	event, err := adapter.Parse(context.Background(), payload, headers)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Type != paymentdomain.EventTypePaymentFailed {
		t.Fatalf("type = %s", event.Type)
	}
	if event.FailureCode != "BAD_REQUEST_ERROR" || event.FailureReason != "Payment declined by bank" {
		t.Fatalf("failure = %s/%s", event.FailureCode, event.FailureReason)
	}
}

func TestParseOrderPaidWithoutPaymentEntity(t *testing.T) {
	adapter := newAdapter(t)
	payload := []byte(`{
		"event": "order.paid",
		"payload": {
			"order": {
				"entity": {
					"id": "order_abc",
					"amount": 150000,
					"amount_paid": 150000,
					"currency": "INR",
					"status": "paid"
				}
			}
		}
	}`)

	headers := http.Header{}
	headers.Set("X-Razorpay-Event-Id", "evt_abc")

	event, err := adapter.Parse(context.Background(), payload, headers)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Type != paymentdomain.EventTypePaymentSucceeded {
		t.Fatalf("type = %s", event.Type)
	}
	if event.ProviderOrderID != "order_abc" {
		t.Fatalf("order id = %s", event.ProviderOrderID)
	}
	if event.Amount != 150000 {
		t.Fatalf("amount = %d", event.Amount)
	}
}

func TestParseIgnoredEvents(t *testing.T) {
	adapter := newAdapter(t)
	headers := http.Header{}
	headers.Set("X-Razorpay-Event-Id", "evt_abc")

	for _, eventType := range []string{
		"payment.dispute.created",
		"payment.downtime.started",
		"refund.processed",
		"invoice.paid",
	} {
		payload := []byte(`{"event":"` + eventType + `","payload":{}}`)
		_, err := adapter.Parse(context.Background(), payload, headers)
		if !errors.Is(err, paymentdomain.ErrEventIgnored) {
			t.Fatalf("%s: err = %v, want ErrEventIgnored", eventType, err)
		}
	}
}

func TestParseMissingEventID(t *testing.T) {
	adapter := newAdapter(t)
	payload := []byte(`{"event":"payment.captured","payload":{}}`)
	_, err := adapter.Parse(context.Background(), payload, http.Header{})
	if !errors.Is(err, paymentdomain.ErrInvalidEvent) {
		t.Fatalf("err = %v, want ErrInvalidEvent", err)
	}
}

func TestParseMissingOrderID(t *testing.T) {
	adapter := newAdapter(t)
	payload := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_abc"}}}}`)
	headers := http.Header{}
	headers.Set("X-Razorpay-Event-Id", "evt_abc")
	_, err := adapter.Parse(context.Background(), payload, headers)
	if !errors.Is(err, paymentdomain.ErrInvalidEvent) {
		t.Fatalf("err = %v, want ErrInvalidEvent", err)
	}
}
