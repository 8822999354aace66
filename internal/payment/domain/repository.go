package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertWebhookEvent(ctx context.Context, db *gorm.DB, event *WebhookEventRecord) (bool, error)
	FindWebhookEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*WebhookEventRecord, error)

	// MarkWebhookEventProcessed stamps the event after its side effects
	// committed. An event in the ledger without this stamp is eligible
	// for reprocessing on redelivery.
	MarkWebhookEventProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error

	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByProviderOrderID(ctx context.Context, db *gorm.DB, providerOrderID string) (*Payment, error)
	FindByRegistration(ctx context.Context, db *gorm.DB, registrationID snowflake.ID) ([]Payment, error)

	// MarkSucceeded settles the payment for the given provider order.
	// The write is conditional: it only applies when the payment is
	// still settleable and no sibling payment for the same registration
	// has already succeeded. It reports whether this caller won.
	MarkSucceeded(ctx context.Context, db *gorm.DB, providerOrderID string, providerPaymentID, method string, settledAt time.Time) (bool, error)

	// MarkAuthorized annotates an initiated payment; it never moves a
	// payment out of a settled state.
	MarkAuthorized(ctx context.Context, db *gorm.DB, providerOrderID string, providerPaymentID string) (bool, error)

	// MarkFailed records a failure, leaving settled payments untouched.
	MarkFailed(ctx context.Context, db *gorm.DB, providerOrderID string, providerPaymentID, failureCode, failureReason string) (bool, error)

	// MarkRefunded flips a succeeded payment to refunded.
	MarkRefunded(ctx context.Context, db *gorm.DB, providerOrderID string) (bool, error)
}
