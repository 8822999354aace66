package domain

import (
	"context"
	"net/http"
)

// AdapterConfig carries the provider credentials an adapter needs to
// verify and parse webhooks.
type AdapterConfig struct {
	Provider      string
	WebhookSecret string
}

// PaymentAdapter verifies and parses one provider's webhook payloads.
type PaymentAdapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte, headers http.Header) (*PaymentEvent, error)
}

// AdapterFactory builds adapters for a single provider.
type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (PaymentAdapter, error)
}
