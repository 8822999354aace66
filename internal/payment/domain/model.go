package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status is the lifecycle of a payment attempt. A payment reaches
// succeeded at most once; succeeded and refunded are terminal.
type Status string

const (
	StatusInitiated  Status = "initiated"
	StatusAuthorized Status = "authorized"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
)

// Payment is one provider order created for a registration. A
// registration may accumulate several payments through retries, but at
// most one of them ever becomes succeeded.
type Payment struct {
	ID             snowflake.ID `json:"id,string" gorm:"primaryKey"`
	RegistrationID snowflake.ID `json:"registration_id,string" gorm:"not null;index"`

	Provider          string  `json:"provider" gorm:"type:text;not null"`
	ProviderOrderID   string  `json:"provider_order_id" gorm:"column:provider_order_id;type:text;not null;uniqueIndex"`
	ProviderPaymentID *string `json:"provider_payment_id,omitempty" gorm:"column:provider_payment_id;type:text"`

	Amount   int64  `json:"amount" gorm:"not null"`
	Currency string `json:"currency" gorm:"type:text;not null"`

	Status Status  `json:"status" gorm:"type:text;not null;default:initiated"`
	Method *string `json:"method,omitempty" gorm:"type:text"`

	FailureCode   *string `json:"failure_code,omitempty" gorm:"column:failure_code;type:text"`
	FailureReason *string `json:"failure_reason,omitempty" gorm:"column:failure_reason;type:text"`

	Payload   datatypes.JSON `json:"payload,omitempty" gorm:"type:jsonb"`
	SettledAt *time.Time     `json:"settled_at,omitempty" gorm:"column:settled_at"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

// WebhookEventRecord is the dedup ledger of inbound provider events.
// The unique (provider, provider_event_id) pair makes redelivered
// webhooks observable, and ProcessedAt records whether the event's
// side effects actually completed. A redelivery of an event whose
// processing failed mid-way reprocesses instead of short-circuiting.
type WebhookEventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty" gorm:"column:processed_at"`
}

func (WebhookEventRecord) TableName() string { return "webhook_events" }

const (
	EventTypePaymentSucceeded  = "payment_succeeded"
	EventTypePaymentFailed     = "payment_failed"
	EventTypePaymentAuthorized = "payment_authorized"
)

// PaymentEvent is the canonical payment event parsed by adapters. Every
// settlement path (webhook, verify poll, operator confirm) produces one
// of these and feeds it through the same processing pipeline.
type PaymentEvent struct {
	Provider          string
	ProviderEventID   string
	ProviderPaymentID string
	ProviderOrderID   string
	Type              string
	Amount            int64
	Currency          string
	Method            string
	FailureCode       string
	FailureReason     string
	OccurredAt        time.Time
	RawPayload        []byte
}
