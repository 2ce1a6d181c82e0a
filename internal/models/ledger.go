package models

import (
	"time"

	"github.com/google/uuid"
)

// Reason codes for coin operations
const (
	ReasonRegistration     = "registration"
	ReasonTrackSelection   = "track_selection"
	ReasonRegConfirmation  = "registration_confirmation"
	ReasonPurchaseRefund   = "purchase_refund"
)

// LedgerEntry is an immutable record of one coin credit or debit.
// Amount is signed: positive for credits, negative for debits.
type LedgerEntry struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	UserID      uuid.UUID
	Amount      int64
	Reason      string
	Description string
}
