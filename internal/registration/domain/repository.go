package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, reg *Registration) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Registration, error)
	FindByReference(ctx context.Context, db *gorm.DB, referenceCode string) (*Registration, error)

	// MarkPaid flips the registration to paid unless it already is, or
	// was refunded. Reporting true means this caller owns the one-time
	// side effects of confirmation (seat decrement, notification).
	MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)

	// MarkFailed records a failed attempt. Pending registrations only;
	// a paid registration never regresses.
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)

	// MarkRefunded flips a paid registration to refunded.
	MarkRefunded(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
}
