package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status represents the lifecycle of an event listing.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusClosed    Status = "closed"
)

// Event is a ticketed occasion with a fixed seat inventory.
//
// SeatsAvailable is the single authoritative inventory counter. It is
// only ever changed through conditional UPDATEs; application code never
// computes a new value and writes it back.
type Event struct {
	ID   snowflake.ID `gorm:"primaryKey" json:"id,string"`
	Slug string       `gorm:"type:text;not null;uniqueIndex" json:"slug"`
	Name string       `gorm:"type:text;not null" json:"name"`

	Description string    `gorm:"type:text;not null" json:"description"`
	Venue       string    `gorm:"type:text;not null" json:"venue"`
	StartsAt    time.Time `gorm:"column:starts_at;not null" json:"starts_at"`

	// PriceAmount is the per-ticket price in the currency's smallest
	// unit (paise for INR).
	PriceAmount int64  `gorm:"column:price_amount;not null" json:"price_amount"`
	Currency    string `gorm:"type:text;not null;default:INR" json:"currency"`

	SeatsTotal     int `gorm:"column:seats_total;not null" json:"seats_total"`
	SeatsAvailable int `gorm:"column:seats_available;not null" json:"seats_available"`

	Status Status `gorm:"type:text;not null;default:published" json:"status"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Event) TableName() string { return "events" }

func (e *Event) Validate() error {
	if e.Name == "" {
		return ErrInvalidName
	}
	if e.StartsAt.IsZero() {
		return ErrInvalidSchedule
	}
	if e.PriceAmount < 0 {
		return ErrInvalidPrice
	}
	if e.SeatsTotal < 1 || e.SeatsAvailable < 0 || e.SeatsAvailable > e.SeatsTotal {
		return ErrInvalidSeats
	}
	return nil
}
