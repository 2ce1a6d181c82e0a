package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusCanceled  = "canceled"
	PaymentStatusFailed    = "failed"
)

// PaymentStatusTerminal reports whether the status permits no further transitions.
func PaymentStatusTerminal(status string) bool {
	switch status {
	case PaymentStatusSucceeded, PaymentStatusCanceled, PaymentStatusFailed:
		return true
	}
	return false
}

type Payment struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UserID    uuid.UUID
	CourseID  uuid.UUID

	// Payment id assigned by the external gateway, unique
	GatewayID string

	Amount   decimal.Decimal
	Currency string
	Status   string
	PaidAt   *time.Time

	// Hosted checkout page the user is redirected to
	CheckoutURL string

	// Opaque gateway metadata, stored as json
	Metadata map[string]string
}
