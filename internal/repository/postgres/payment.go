package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dkovalev/coinfunnel/internal/apperrors"
	"github.com/dkovalev/coinfunnel/internal/models"
	"github.com/dkovalev/coinfunnel/internal/repository"
)

type PaymentRepo struct {
	DB DBTX
}

const createPayment = `-- name: CreatePayment
INSERT INTO payments (id, user_id, course_id, gateway_payment_id, amount, currency, checkout_url, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, created_at, user_id, course_id, gateway_payment_id, amount, currency, status, paid_at, checkout_url, metadata
`

func (r *PaymentRepo) CreatePayment(ctx context.Context, arg repository.CreatePaymentParams) (models.Payment, error) {
	metadata := arg.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	rows, _ := r.DB.Query(ctx, createPayment,
		uuid.New(), arg.UserID, arg.CourseID, arg.GatewayID, arg.Amount, arg.Currency, arg.CheckoutURL, metadata,
	)
	payment, err := pgx.CollectOneRow(rows, rowToPayment)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == "payments_pending_uniq" {
			// Concurrent initiation won the race for this (user, course)
			return payment, apperrors.ErrPaymentInProgress
		}

		return payment, fmt.Errorf("db error: %w", err)
	}

	return payment, nil
}

const getByGatewayID = `-- name: GetByGatewayID
SELECT id, created_at, user_id, course_id, gateway_payment_id, amount, currency, status, paid_at, checkout_url, metadata FROM payments
WHERE gateway_payment_id = $1
`

func (r *PaymentRepo) GetByGatewayID(ctx context.Context, gatewayID string, forUpdate bool) (models.Payment, error) {
	query := getByGatewayID
	if forUpdate {
		query += "FOR UPDATE\n"
	}

	rows, _ := r.DB.Query(ctx, query, gatewayID)
	payment, err := pgx.CollectOneRow(rows, rowToPayment)

	switch {
	case err == nil:
		return payment, nil
	case errors.Is(err, pgx.ErrNoRows):
		return payment, apperrors.ErrPaymentNotFound
	default:
		return payment, fmt.Errorf("db error: %w", err)
	}
}

const getPending = `-- name: GetPending
SELECT id, created_at, user_id, course_id, gateway_payment_id, amount, currency, status, paid_at, checkout_url, metadata FROM payments
WHERE user_id = $1 AND course_id = $2 AND status = 'pending'
`

func (r *PaymentRepo) GetPending(ctx context.Context, userID uuid.UUID, courseID uuid.UUID) (models.Payment, error) {
	rows, _ := r.DB.Query(ctx, getPending, userID, courseID)
	payment, err := pgx.CollectOneRow(rows, rowToPayment)

	switch {
	case err == nil:
		return payment, nil
	case errors.Is(err, pgx.ErrNoRows):
		return payment, apperrors.ErrPaymentNotFound
	default:
		return payment, fmt.Errorf("db error: %w", err)
	}
}

const hasSucceeded = `-- name: HasSucceeded
SELECT EXISTS (
	SELECT 1 FROM payments
	WHERE user_id = $1 AND course_id = $2 AND status = 'succeeded'
)
`

func (r *PaymentRepo) HasSucceeded(ctx context.Context, userID uuid.UUID, courseID uuid.UUID) (bool, error) {
	var paid bool

	err := r.DB.QueryRow(ctx, hasSucceeded, userID, courseID).Scan(&paid)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return paid, nil
}

const setStatus = `-- name: SetStatus
UPDATE payments
SET status = $2, paid_at = COALESCE($3, paid_at)
WHERE id = $1
RETURNING id, created_at, user_id, course_id, gateway_payment_id, amount, currency, status, paid_at, checkout_url, metadata
`

func (r *PaymentRepo) SetStatus(ctx context.Context, paymentID uuid.UUID, status string, paidAt *time.Time) (models.Payment, error) {
	rows, _ := r.DB.Query(ctx, setStatus, paymentID, status, paidAt)
	payment, err := pgx.CollectOneRow(rows, rowToPayment)

	switch {
	case err == nil:
		return payment, nil
	case errors.Is(err, pgx.ErrNoRows):
		return payment, apperrors.ErrPaymentNotFound
	default:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == "payments_succeeded_uniq" {
			return payment, apperrors.ErrPaymentAlreadyPaid
		}
		return payment, fmt.Errorf("db error: %w", err)
	}
}

func rowToPayment(row pgx.CollectableRow) (models.Payment, error) {
	var p models.Payment
	err := row.Scan(
		&p.ID, &p.CreatedAt, &p.UserID, &p.CourseID, &p.GatewayID,
		&p.Amount, &p.Currency, &p.Status, &p.PaidAt, &p.CheckoutURL, &p.Metadata,
	)
	return p, err
}
