package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/openvenue/gatepass/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertWebhookEvent(ctx context.Context, db *gorm.DB, event *domain.WebhookEventRecord) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO webhook_events (
			id, provider, provider_event_id, event_type, payload, received_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, provider_event_id) DO NOTHING`,
		event.ID,
		event.Provider,
		event.ProviderEventID,
		event.EventType,
		event.Payload,
		event.ReceivedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindWebhookEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*domain.WebhookEventRecord, error) {
	var item domain.WebhookEventRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, provider_event_id, event_type, payload, received_at, processed_at
		 FROM webhook_events
		 WHERE provider = ? AND provider_event_id = ?
		 LIMIT 1`,
		provider,
		providerEventID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) MarkWebhookEventProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE webhook_events SET processed_at = ? WHERE id = ?`,
		processedAt,
		id,
	).Error
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (
			id, registration_id, provider, provider_order_id, provider_payment_id,
			amount, currency, status, method, failure_code, failure_reason,
			payload, settled_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.RegistrationID,
		payment.Provider,
		payment.ProviderOrderID,
		payment.ProviderPaymentID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.Method,
		payment.FailureCode,
		payment.FailureReason,
		payment.Payload,
		payment.SettledAt,
		payment.CreatedAt,
		payment.UpdatedAt,
	).Error
}

func (r *repo) FindByProviderOrderID(ctx context.Context, db *gorm.DB, providerOrderID string) (*domain.Payment, error) {
	var item domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM payments WHERE provider_order_id = ? LIMIT 1`,
		providerOrderID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByRegistration(ctx context.Context, db *gorm.DB, registrationID snowflake.ID) ([]domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM payments WHERE registration_id = ? ORDER BY created_at ASC`,
		registrationID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// MarkSucceeded is the single settlement write. The status guard stops
// double settlement of the same order; the NOT EXISTS guard stops two
// different orders settling the same registration. Whichever caller
// sees RowsAffected == 1 owns the follow-up side effects.
func (r *repo) MarkSucceeded(ctx context.Context, db *gorm.DB, providerOrderID string, providerPaymentID, method string, settledAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = 'succeeded',
			 provider_payment_id = ?,
			 method = ?,
			 failure_code = NULL,
			 failure_reason = NULL,
			 settled_at = ?,
			 updated_at = ?
		 WHERE provider_order_id = ?
		   AND status IN ('initiated', 'authorized', 'failed')
		   AND NOT EXISTS (
				SELECT 1 FROM payments AS other
				WHERE other.registration_id = payments.registration_id
				  AND other.status = 'succeeded'
		   )`,
		providerPaymentID,
		method,
		settledAt,
		settledAt,
		providerOrderID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkAuthorized(ctx context.Context, db *gorm.DB, providerOrderID string, providerPaymentID string) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = 'authorized',
			 provider_payment_id = ?,
			 updated_at = CURRENT_TIMESTAMP
		 WHERE provider_order_id = ? AND status = 'initiated'`,
		providerPaymentID,
		providerOrderID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, providerOrderID string, providerPaymentID, failureCode, failureReason string) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = 'failed',
			 provider_payment_id = ?,
			 failure_code = ?,
			 failure_reason = ?,
			 updated_at = CURRENT_TIMESTAMP
		 WHERE provider_order_id = ? AND status IN ('initiated', 'authorized')`,
		providerPaymentID,
		failureCode,
		failureReason,
		providerOrderID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkRefunded(ctx context.Context, db *gorm.DB, providerOrderID string) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = 'refunded',
			 updated_at = CURRENT_TIMESTAMP
		 WHERE provider_order_id = ? AND status = 'succeeded'`,
		providerOrderID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
