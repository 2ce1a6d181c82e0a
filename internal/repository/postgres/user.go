package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dkovalev/coinfunnel/internal/apperrors"
	"github.com/dkovalev/coinfunnel/internal/models"
)

type UserRepo struct {
	DB DBTX
}

// Create user on first contact or return the existing one as is
const getOrCreateUser = `-- name: GetOrCreateUser
WITH new_user AS (
	INSERT INTO users (id, telegram_id, username)
	VALUES ($1, $2, $3)
	ON CONFLICT (telegram_id) DO NOTHING
	RETURNING id, created_at, telegram_id, username, track, coin_balance
)
SELECT id, created_at, telegram_id, username, track, coin_balance, true AS created FROM new_user
UNION ALL
SELECT id, created_at, telegram_id, username, track, coin_balance, false FROM users WHERE telegram_id = $2
LIMIT 1
`

func (r *UserRepo) GetOrCreateUser(ctx context.Context, telegramID int64, username string) (models.User, bool, error) {
	var created bool

	rows, _ := r.DB.Query(ctx, getOrCreateUser, uuid.New(), telegramID, username)
	user, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.User, error) {
		var u models.User
		err := row.Scan(&u.ID, &u.CreatedAt, &u.TelegramID, &u.Username, &u.Track, &u.CoinBalance, &created)
		return u, err
	})

	// Conflict with a concurrent insert whose row the statement snapshot
	// does not see yet: a fresh select resolves it
	if errors.Is(err, pgx.ErrNoRows) {
		user, err = r.GetUserByTelegramID(ctx, telegramID)
		return user, false, err
	}
	if err != nil {
		return user, false, fmt.Errorf("db error: %w", err)
	}

	return user, created, nil
}

const getUserByTelegramID = `-- name: GetUserByTelegramID
SELECT id, created_at, telegram_id, username, track, coin_balance FROM users
WHERE telegram_id = $1
`

func (r *UserRepo) GetUserByTelegramID(ctx context.Context, telegramID int64) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByTelegramID, telegramID)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

const getUserByID = `-- name: GetUserByID
SELECT id, created_at, telegram_id, username, track, coin_balance FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, userID)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

// Set funnel track and report whether it is the very first choice
const setTrack = `-- name: SetTrack
UPDATE users u
SET track = $2
FROM (SELECT track AS prev_track FROM users WHERE id = $1 FOR UPDATE) prev
WHERE u.id = $1
RETURNING u.id, u.created_at, u.telegram_id, u.username, u.track, u.coin_balance, prev.prev_track
`

func (r *UserRepo) SetTrack(ctx context.Context, userID uuid.UUID, track string) (models.User, bool, error) {
	var prevTrack *string

	rows, _ := r.DB.Query(ctx, setTrack, userID, track)
	user, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.User, error) {
		var u models.User
		err := row.Scan(&u.ID, &u.CreatedAt, &u.TelegramID, &u.Username, &u.Track, &u.CoinBalance, &prevTrack)
		return u, err
	})

	switch {
	case err == nil:
		return user, prevTrack == nil, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, false, apperrors.ErrUserNotFound
	default:
		return user, false, fmt.Errorf("db error: %w", err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.CreatedAt, &u.TelegramID, &u.Username, &u.Track, &u.CoinBalance)
	return u, err
}
