package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/openvenue/gatepass/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Event, error)
	Get(ctx context.Context, id snowflake.ID) (*Event, error)
	GetBySlug(ctx context.Context, slug string) (*Event, error)
	List(ctx context.Context, req ListRequest) ([]*Event, *pagination.PageInfo, error)

	// SetActive publishes or closes a listing. A closed event stops
	// taking registrations; settled registrations are untouched.
	SetActive(ctx context.Context, id snowflake.ID, active bool) (*Event, error)
}

type CreateRequest struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Venue       string    `json:"venue"`
	StartsAt    time.Time `json:"starts_at"`
	PriceAmount int64     `json:"price_amount"`
	Currency    string    `json:"currency"`
	SeatsTotal  int       `json:"seats_total"`
}

type ListRequest struct {
	Status Status `form:"status"`
	pagination.Pagination
}
