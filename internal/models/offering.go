package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Webinar struct {
	ID       uuid.UUID
	StartsAt time.Time
	Topic    string
	Link     string
}

type Course struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	Name        string
	StartsAt    time.Time
	Price       decimal.Decimal
	Description string
	Link        string
	Active      bool
}
