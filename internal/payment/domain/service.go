package domain

import (
	"context"
	"net/http"
)

// WebhookService ingests raw provider webhooks.
type WebhookService interface {
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
}

// Gateway talks to the provider's REST API.
type Gateway interface {
	// CreateOrder registers an order with the provider and returns the
	// provider's order identifier.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*ProviderOrder, error)

	// FetchOrderPayments lists the payment attempts the provider has
	// recorded against an order.
	FetchOrderPayments(ctx context.Context, providerOrderID string) ([]ProviderPayment, error)
}

type CreateOrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

type ProviderOrder struct {
	ID       string
	Amount   int64
	Currency string
	Status   string
}

type ProviderPayment struct {
	ID          string
	OrderID     string
	Status      string
	Amount      int64
	Currency    string
	Method      string
	ErrorCode   string
	ErrorReason string
	CreatedAt   int64
}
