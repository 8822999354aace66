package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/openvenue/gatepass/internal/registration/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, reg *domain.Registration) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO registrations (
			id, reference_code, event_id, name, email, phone,
			tickets, ticket_details, amount, currency, status,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reg.ID,
		reg.ReferenceCode,
		reg.EventID,
		reg.Name,
		reg.Email,
		reg.Phone,
		reg.Tickets,
		reg.TicketDetails,
		reg.Amount,
		reg.Currency,
		reg.Status,
		reg.CreatedAt,
		reg.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Registration, error) {
	var item domain.Registration
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM registrations WHERE id = ? LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByReference(ctx context.Context, db *gorm.DB, referenceCode string) (*domain.Registration, error) {
	var item domain.Registration
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM registrations WHERE reference_code = ? LIMIT 1`,
		referenceCode,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE registrations
		 SET status = 'paid', updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status NOT IN ('paid', 'refunded')`,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE registrations
		 SET status = 'failed', updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = 'pending_payment'`,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkRefunded(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE registrations
		 SET status = 'refunded', updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = 'paid'`,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
