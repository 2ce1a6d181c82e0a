package postgres

import (
	"context"
	"fmt"

	"github.com/dkovalev/coinfunnel/internal/repository"
)

type Storage struct {
	db DBTX
}

func NewStorage(db DBTX) repository.Storage {
	return &Storage{db: db}
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{DB: s.db}
}

func (s *Storage) Ledger() repository.LedgerRepo {
	return &LedgerRepo{DB: s.db}
}

func (s *Storage) Offering() repository.OfferingRepo {
	return &OfferingRepo{DB: s.db}
}

func (s *Storage) Enrollment() repository.EnrollmentRepo {
	return &EnrollmentRepo{DB: s.db}
}

func (s *Storage) Payment() repository.PaymentRepo {
	return &PaymentRepo{DB: s.db}
}

func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db tx error: %w", err)
	}

	defer func() {
		switch err {
		case nil:
			err = tx.Commit(ctx)
		default:
			_ = tx.Rollback(ctx)
		}
	}()

	err = fn(NewStorage(tx))

	return err
}
