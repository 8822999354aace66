package repository

import (
	"context"
	"strconv"

	"github.com/bwmarrin/snowflake"
	eventdomain "github.com/openvenue/gatepass/internal/event/domain"
	"github.com/openvenue/gatepass/pkg/db/pagination"
	"gorm.io/gorm"
)

type repository struct{}

func NewRepository() eventdomain.Repository {
	return &repository{}
}

func (r *repository) Create(ctx context.Context, db *gorm.DB, event *eventdomain.Event) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO events (
			id, slug, name, description, venue, starts_at,
			price_amount, currency, seats_total, seats_available, status,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Slug,
		event.Name,
		event.Description,
		event.Venue,
		event.StartsAt,
		event.PriceAmount,
		event.Currency,
		event.SeatsTotal,
		event.SeatsAvailable,
		event.Status,
		event.CreatedAt,
		event.UpdatedAt,
	).Error
}

func (r *repository) Update(ctx context.Context, db *gorm.DB, event *eventdomain.Event) error {
	return db.WithContext(ctx).Exec(
		`UPDATE events
		 SET name = ?, description = ?, venue = ?, starts_at = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		event.Name,
		event.Description,
		event.Venue,
		event.StartsAt,
		event.Status,
		event.UpdatedAt,
		event.ID,
	).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*eventdomain.Event, error) {
	var event eventdomain.Event
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM events WHERE id = ?`,
		id,
	).Scan(&event).Error
	if err != nil {
		return nil, err
	}
	if event.ID == 0 {
		return nil, nil
	}
	return &event, nil
}

func (r *repository) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*eventdomain.Event, error) {
	var event eventdomain.Event
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM events WHERE slug = ?`,
		slug,
	).Scan(&event).Error
	if err != nil {
		return nil, err
	}
	if event.ID == 0 {
		return nil, nil
	}
	return &event, nil
}

func (r *repository) List(ctx context.Context, db *gorm.DB, filter eventdomain.ListFilter, page pagination.Pagination) ([]*eventdomain.Event, *pagination.PageInfo, error) {
	stmt := db.WithContext(ctx).Model(&eventdomain.Event{})

	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}

	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, nil, err
		}
		if cursor.ID != "" {
			stmt = stmt.Where("id < ?", cursor.ID)
		}
	}

	limit := page.PageSize
	if limit < 1 {
		limit = 20
	}

	var events []*eventdomain.Event
	if err := stmt.Order("id DESC").Limit(limit + 1).Find(&events).Error; err != nil {
		return nil, nil, err
	}

	pageInfo := pagination.BuildCursorPageInfo(events, int32(limit), func(e *eventdomain.Event) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: strconv.FormatInt(int64(e.ID), 10)})
		return token
	})
	if pageInfo.HasMore {
		events = events[:limit]
	}

	return events, pageInfo, nil
}

func (r *repository) DecrementSeats(ctx context.Context, db *gorm.DB, id snowflake.ID, seats int) (bool, error) {
	if seats < 1 {
		return false, eventdomain.ErrInvalidSeats
	}

	res := db.WithContext(ctx).Exec(
		`UPDATE events
		 SET seats_available = seats_available - ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND seats_available >= ?`,
		seats,
		id,
		seats,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) RestoreSeats(ctx context.Context, db *gorm.DB, id snowflake.ID, seats int) (bool, error) {
	if seats < 1 {
		return false, eventdomain.ErrInvalidSeats
	}

	res := db.WithContext(ctx).Exec(
		`UPDATE events
		 SET seats_available = CASE
			WHEN seats_available + ? > seats_total THEN seats_total
			ELSE seats_available + ?
		 END,
		 updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		seats,
		seats,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
