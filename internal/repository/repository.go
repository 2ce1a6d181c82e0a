package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dkovalev/coinfunnel/internal/models"
)

// User repository interface
type UserRepo interface {
	// Return user with the telegram id, creating the record on first contact
	// created reports whether a new row was inserted
	GetOrCreateUser(ctx context.Context, telegramID int64, username string) (user models.User, created bool, err error)

	// Get user by telegram id or internal id
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByTelegramID(ctx context.Context, telegramID int64) (models.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)

	// Set funnel track for the user
	// firstChoice reports whether the user had no track before this call
	SetTrack(ctx context.Context, userID uuid.UUID, track string) (user models.User, firstChoice bool, err error)
}

// Ledger repository interface
// UpdateBalance and CreateEntry must be called inside one transaction (Storage.InTx),
// a balance change without its entry breaks the ledger sum invariant
type LedgerRepo interface {
	// Apply signed delta to the user's cached balance and return the new value
	// Must return apperrors.ErrUserNotFound if user absent and
	// apperrors.ErrBalanceInsufficient if the delta would drive balance negative
	UpdateBalance(ctx context.Context, userID uuid.UUID, delta int64) (int64, error)

	// Append immutable ledger entry
	CreateEntry(ctx context.Context, userID uuid.UUID, amount int64, reason string, description string) (models.LedgerEntry, error)

	// List user entries newest first, at most limit rows
	ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]models.LedgerEntry, error)

	// Sum of all entry amounts for the user, the authoritative balance
	SumEntries(ctx context.Context, userID uuid.UUID) (int64, error)
}

type CreateCourseParams struct {
	Name        string
	StartsAt    time.Time
	Price       string
	Description string
	Link        string
	Active      bool
}

// Offerings catalog: webinars and paid courses, read-mostly
type OfferingRepo interface {
	CreateWebinar(ctx context.Context, startsAt time.Time, topic string, link string) (models.Webinar, error)

	// Soonest webinar that starts after the given moment
	// If none scheduled must return apperrors.ErrWebinarNotFound
	NextWebinar(ctx context.Context, after time.Time) (models.Webinar, error)

	GetWebinar(ctx context.Context, webinarID uuid.UUID) (models.Webinar, error)

	CreateCourse(ctx context.Context, arg CreateCourseParams) (models.Course, error)

	// The single purchasable course: active and future dated, soonest start wins
	// If none must return apperrors.ErrCourseNotFound
	ActiveCourse(ctx context.Context, after time.Time) (models.Course, error)

	GetCourse(ctx context.Context, courseID uuid.UUID) (models.Course, error)
}

// Enrollment registry: unique (user, offering) memberships
// Enrolling an already enrolled pair is a no-op with created=false, not an error
type EnrollmentRepo interface {
	EnrollWebinar(ctx context.Context, userID uuid.UUID, webinarID uuid.UUID) (created bool, err error)
	EnrollCourse(ctx context.Context, userID uuid.UUID, courseID uuid.UUID) (created bool, err error)

	IsEnrolledWebinar(ctx context.Context, userID uuid.UUID, webinarID uuid.UUID) (bool, error)
	IsEnrolledCourse(ctx context.Context, userID uuid.UUID, courseID uuid.UUID) (bool, error)
}

type CreatePaymentParams struct {
	UserID      uuid.UUID
	CourseID    uuid.UUID
	GatewayID   string
	Amount      string
	Currency    string
	CheckoutURL string
	Metadata    map[string]string
}

// Payment repository interface
type PaymentRepo interface {
	// Insert payment in pending status
	// Must return apperrors.ErrPaymentInProgress when a pending payment
	// for the same (user, course) already exists
	CreatePayment(ctx context.Context, arg CreatePaymentParams) (models.Payment, error)

	// Get payment by the gateway assigned id
	// forUpdate locks the row for the rest of the transaction
	// If not found must return apperrors.ErrPaymentNotFound
	GetByGatewayID(ctx context.Context, gatewayID string, forUpdate bool) (models.Payment, error)

	// Pending payment for the pair if one exists, apperrors.ErrPaymentNotFound otherwise
	GetPending(ctx context.Context, userID uuid.UUID, courseID uuid.UUID) (models.Payment, error)

	// Whether any payment for the pair reached succeeded
	HasSucceeded(ctx context.Context, userID uuid.UUID, courseID uuid.UUID) (bool, error)

	// Move payment to the given status, stamping paidAt if provided
	SetStatus(ctx context.Context, paymentID uuid.UUID, status string, paidAt *time.Time) (models.Payment, error)
}

// Storage aggregates entity repositories over one connection or transaction
type Storage interface {
	User() UserRepo
	Ledger() LedgerRepo
	Offering() OfferingRepo
	Enrollment() EnrollmentRepo
	Payment() PaymentRepo

	// Run fn within a database transaction
	// Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
