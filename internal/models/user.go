package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TrackPersonal = "personal"
	TrackBusiness = "business"
)

type User struct {
	ID         uuid.UUID
	CreatedAt  time.Time
	TelegramID int64
	Username   string

	// Track chosen in the funnel, nil until the user picks one
	Track *string

	// Cached coin balance, mutated only together with a ledger entry
	CoinBalance int64
}
