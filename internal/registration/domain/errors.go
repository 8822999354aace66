package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("registration_not_found")
	ErrEventNotFound   = errors.New("event_not_found")
	ErrSoldOut         = errors.New("sold_out")
	ErrAlreadySettled  = errors.New("registration_already_settled")
	ErrNotRefundable   = errors.New("registration_not_refundable")
	ErrInvalidID       = errors.New("invalid_id")
)

// FieldError names one offending request field. Intake validation
// collects every failure instead of stopping at the first one.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for _, fe := range v {
		fields = append(fields, fe.Field)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(fields, ", "))
}
