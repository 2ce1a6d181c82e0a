package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dkovalev/coinfunnel/internal/apperrors"
	"github.com/dkovalev/coinfunnel/internal/models"
	"github.com/dkovalev/coinfunnel/internal/repository"
)

// Most callers want a short recent slice of the operation log
const defaultHistoryLimit = 50

type LedgerService struct {
	storage repository.Storage
}

func NewService(storage repository.Storage) *LedgerService {
	return &LedgerService{storage: storage}
}

// Credit adds coins to the user and records the operation.
// Entry insert and balance update commit or fail together.
func (s *LedgerService) Credit(ctx context.Context, userID uuid.UUID, amount int64, reason string, description string) (int64, error) {
	amount = abs(amount)

	var balance int64
	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		var err error

		balance, err = store.Ledger().UpdateBalance(ctx, userID, amount)
		if err != nil {
			return err
		}

		_, err = store.Ledger().CreateEntry(ctx, userID, amount, reason, description)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("credit failed. Err: %w", err)
	}

	return balance, nil
}

// Debit removes coins from the user and records the operation.
// Returns apperrors.ErrBalanceInsufficient without any state change
// when the user holds fewer coins than requested.
func (s *LedgerService) Debit(ctx context.Context, userID uuid.UUID, amount int64, reason string, description string) (int64, error) {
	amount = abs(amount)

	var balance int64
	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		var err error

		balance, err = store.Ledger().UpdateBalance(ctx, userID, -amount)
		if err != nil {
			return err
		}

		_, err = store.Ledger().CreateEntry(ctx, userID, -amount, reason, description)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("debit failed. Err: %w", err)
	}

	return balance, nil
}

func (s *LedgerService) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	user, err := s.storage.User().GetUserByID(ctx, userID)
	if err != nil {
		return 0, err
	}

	return user.CoinBalance, nil
}

// BalanceByTelegram resolves the platform id and returns the cached balance
func (s *LedgerService) BalanceByTelegram(ctx context.Context, telegramID int64) (int64, error) {
	user, err := s.storage.User().GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return 0, err
	}

	return user.CoinBalance, nil
}

// HistoryByTelegram resolves the platform id and returns the operation log
func (s *LedgerService) HistoryByTelegram(ctx context.Context, telegramID int64, limit int) ([]models.LedgerEntry, error) {
	user, err := s.storage.User().GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	return s.History(ctx, user.ID, limit)
}

// History returns user operations newest first, at most limit entries
func (s *LedgerService) History(ctx context.Context, userID uuid.UUID, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	return s.storage.Ledger().ListEntries(ctx, userID, limit)
}

// VerifyBalance recomputes the ledger sum and compares it to the cached balance.
// A mismatch means an implementation bug, it is reported and never corrected here:
// the append-only log stays authoritative and recovery is an administrative action.
func (s *LedgerService) VerifyBalance(ctx context.Context, userID uuid.UUID) error {
	return s.storage.InTx(ctx, func(store repository.Storage) error {
		user, err := store.User().GetUserByID(ctx, userID)
		if err != nil {
			return err
		}

		sum, err := store.Ledger().SumEntries(ctx, userID)
		if err != nil {
			return err
		}

		if sum != user.CoinBalance {
			return fmt.Errorf("user %s: cached %d, ledger sum %d: %w", userID, user.CoinBalance, sum, apperrors.ErrBalanceMismatch)
		}

		return nil
	})
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
