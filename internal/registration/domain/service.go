package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// Create validates the intake request, reserves nothing, creates a
	// provider order and stores the registration as pending_payment.
	Create(ctx context.Context, req CreateRequest) (*CreateResponse, error)

	Get(ctx context.Context, id snowflake.ID) (*StatusResponse, error)
	GetByReference(ctx context.Context, referenceCode string) (*StatusResponse, error)

	// Verify reconciles the registration's latest order against the
	// provider. It is the client-side fallback for lost webhooks.
	Verify(ctx context.Context, id snowflake.ID) (*StatusResponse, error)
}

type CreateRequest struct {
	EventID       string         `json:"event_id"`
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	Phone         string         `json:"phone"`
	Tickets       int            `json:"tickets"`
	TicketDetails []TicketHolder `json:"ticket_details"`
}

// CreateResponse carries everything a browser needs to open the
// provider checkout.
type CreateResponse struct {
	Registration    *Registration `json:"registration"`
	ProviderOrderID string        `json:"provider_order_id"`
	CheckoutKeyID   string        `json:"checkout_key_id"`
	Amount          int64         `json:"amount"`
	Currency        string        `json:"currency"`
}

type StatusResponse struct {
	Registration *Registration `json:"registration"`
	Payments     []PaymentView `json:"payments"`
}

// PaymentView is the registration-facing projection of a payment
// attempt, without provider payload internals.
type PaymentView struct {
	ProviderOrderID   string `json:"provider_order_id"`
	ProviderPaymentID string `json:"provider_payment_id,omitempty"`
	Status            string `json:"status"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	Method            string `json:"method,omitempty"`
	FailureCode       string `json:"failure_code,omitempty"`
	FailureReason     string `json:"failure_reason,omitempty"`
}
