package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/openvenue/gatepass/pkg/db/pagination"
	"gorm.io/gorm"
)

// Repository persists events. Methods accept the *gorm.DB handle so
// callers can pass a transaction where one is in flight.
type Repository interface {
	Create(ctx context.Context, db *gorm.DB, event *Event) error
	Update(ctx context.Context, db *gorm.DB, event *Event) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Event, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Event, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*Event, *pagination.PageInfo, error)

	// DecrementSeats atomically subtracts seats from seats_available,
	// refusing to go below zero. It reports whether the decrement was
	// applied.
	DecrementSeats(ctx context.Context, db *gorm.DB, id snowflake.ID, seats int) (bool, error)

	// RestoreSeats adds seats back, capped at seats_total.
	RestoreSeats(ctx context.Context, db *gorm.DB, id snowflake.ID, seats int) (bool, error)
}

type ListFilter struct {
	Status Status
}
