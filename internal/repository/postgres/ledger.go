package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dkovalev/coinfunnel/internal/apperrors"
	"github.com/dkovalev/coinfunnel/internal/models"
)

type LedgerRepo struct {
	DB DBTX
}

// The conditional update takes a row lock on the user, so concurrent
// balance changes for one user serialize here
const updateBalance = `-- name: UpdateBalance
UPDATE users
SET coin_balance = coin_balance + $2
WHERE id = $1
RETURNING coin_balance
`

func (r *LedgerRepo) UpdateBalance(ctx context.Context, userID uuid.UUID, delta int64) (int64, error) {
	var balance int64

	err := r.DB.QueryRow(ctx, updateBalance, userID, delta).Scan(&balance)

	switch {
	case err == nil:
		return balance, nil
	case errors.Is(err, pgx.ErrNoRows):
		return 0, apperrors.ErrUserNotFound
	default:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation {
			// coin_balance >= 0 check rejected the debit
			return 0, apperrors.ErrBalanceInsufficient
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
}

const createEntry = `-- name: CreateEntry
INSERT INTO ledger_entries (id, user_id, amount, reason, description)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, user_id, amount, reason, description
`

func (r *LedgerRepo) CreateEntry(ctx context.Context, userID uuid.UUID, amount int64, reason string, description string) (models.LedgerEntry, error) {
	// Time ordered ids keep entries sortable even when created_at collides
	// inside one transaction
	id, err := uuid.NewV7()
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("uuid error: %w", err)
	}

	rows, _ := r.DB.Query(ctx, createEntry, id, userID, amount, reason, description)
	entry, err := pgx.CollectOneRow(rows, rowToEntry)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return entry, apperrors.ErrUserNotFound
		}

		return entry, fmt.Errorf("db error: %w", err)
	}

	return entry, nil
}

const listEntries = `-- name: ListEntries
SELECT id, created_at, user_id, amount, reason, description FROM ledger_entries
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`

func (r *LedgerRepo) ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]models.LedgerEntry, error) {
	rows, _ := r.DB.Query(ctx, listEntries, userID, limit)
	entries, err := pgx.CollectRows(rows, rowToEntry)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return entries, nil
}

const sumEntries = `-- name: SumEntries
SELECT COALESCE(SUM(amount), 0) FROM ledger_entries
WHERE user_id = $1
`

func (r *LedgerRepo) SumEntries(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sum int64

	err := r.DB.QueryRow(ctx, sumEntries, userID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return sum, nil
}

func rowToEntry(row pgx.CollectableRow) (models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := row.Scan(&e.ID, &e.CreatedAt, &e.UserID, &e.Amount, &e.Reason, &e.Description)
	return e, err
}
