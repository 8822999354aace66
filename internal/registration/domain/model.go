package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status is the registration lifecycle. The paid transition happens
// exactly once per registration, no matter how many payment attempts or
// duplicate provider events arrive.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPaid           Status = "paid"
	StatusFailed         Status = "failed"
	StatusRefunded       Status = "refunded"
)

// TicketHolder is one attendee on a multi-ticket registration.
type TicketHolder struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Registration is a request for seats on an event. The seat inventory
// itself lives on the event row; a registration only holds the count.
type Registration struct {
	ID            snowflake.ID `json:"id,string" gorm:"primaryKey"`
	ReferenceCode string       `json:"reference_code" gorm:"column:reference_code;type:text;not null;uniqueIndex"`
	EventID       snowflake.ID `json:"event_id,string" gorm:"not null;index"`

	Name  string `json:"name" gorm:"type:text;not null"`
	Email string `json:"email" gorm:"type:text;not null"`
	Phone string `json:"phone" gorm:"type:text;not null"`

	Tickets       int            `json:"tickets" gorm:"not null"`
	TicketDetails datatypes.JSON `json:"ticket_details" gorm:"column:ticket_details;type:jsonb"`

	Amount   int64  `json:"amount" gorm:"not null"`
	Currency string `json:"currency" gorm:"type:text;not null"`

	Status Status `json:"status" gorm:"type:text;not null;default:pending_payment"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (Registration) TableName() string { return "registrations" }
