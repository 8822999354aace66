package domain

import "errors"

var (
	ErrNotFound        = errors.New("event_not_found")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidSchedule = errors.New("invalid_schedule")
	ErrInvalidPrice    = errors.New("invalid_price")
	ErrInvalidSeats    = errors.New("invalid_seats")
	ErrSoldOut         = errors.New("sold_out")
	ErrNotPublished    = errors.New("event_not_published")
)
