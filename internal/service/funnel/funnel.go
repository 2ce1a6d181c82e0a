package funnel

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dkovalev/coinfunnel/internal/models"
	"github.com/dkovalev/coinfunnel/internal/repository"
	"github.com/dkovalev/coinfunnel/internal/service/ledger"
)

// Coin rewards for funnel milestones
const (
	CoinsFirstContact        = 100
	CoinsTrackChosen         = 50
	CoinsAttendanceConfirmed = 100
)

type FunnelService struct {
	storage repository.Storage
}

func NewService(storage repository.Storage) *FunnelService {
	return &FunnelService{storage: storage}
}

type ContactResult struct {
	User    models.User
	Created bool
	Balance int64
}

// OnFirstContact creates the user lazily and rewards the first contact.
// Repeated contacts return the existing user without extra coins.
func (s *FunnelService) OnFirstContact(ctx context.Context, telegramID int64, username string) (ContactResult, error) {
	var res ContactResult

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		user, created, err := store.User().GetOrCreateUser(ctx, telegramID, username)
		if err != nil {
			return err
		}

		res = ContactResult{User: user, Created: created, Balance: user.CoinBalance}
		if !created {
			return nil
		}

		balance, err := ledger.NewService(store).Credit(
			ctx, user.ID, CoinsFirstContact,
			models.ReasonRegistration, "Welcome bonus on first contact",
		)
		if err != nil {
			return err
		}

		res.Balance = balance
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("first contact failed. Err: %w", err)
	}

	return res, nil
}

type TrackResult struct {
	User        models.User
	FirstChoice bool
	Balance     int64
}

// OnTrackChosen stores the chosen track and rewards the first selection only,
// switching tracks later grants nothing
func (s *FunnelService) OnTrackChosen(ctx context.Context, telegramID int64, track string) (TrackResult, error) {
	var res TrackResult

	if track != models.TrackPersonal && track != models.TrackBusiness {
		return res, fmt.Errorf("unknown track: %q", track)
	}

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		user, err := store.User().GetUserByTelegramID(ctx, telegramID)
		if err != nil {
			return err
		}

		user, firstChoice, err := store.User().SetTrack(ctx, user.ID, track)
		if err != nil {
			return err
		}

		res = TrackResult{User: user, FirstChoice: firstChoice, Balance: user.CoinBalance}
		if !firstChoice {
			return nil
		}

		balance, err := ledger.NewService(store).Credit(
			ctx, user.ID, CoinsTrackChosen,
			models.ReasonTrackSelection, "Bonus for choosing the "+track+" track",
		)
		if err != nil {
			return err
		}

		res.Balance = balance
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("track selection failed. Err: %w", err)
	}

	return res, nil
}

type AttendanceResult struct {
	Enrolled bool
	Balance  int64
}

// OnAttendanceConfirmed enrolls the user to the webinar and rewards the confirmation.
// Confirming twice keeps a single registration and grants coins once.
func (s *FunnelService) OnAttendanceConfirmed(ctx context.Context, telegramID int64, webinarID uuid.UUID) (AttendanceResult, error) {
	var res AttendanceResult

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		user, err := store.User().GetUserByTelegramID(ctx, telegramID)
		if err != nil {
			return err
		}

		created, err := store.Enrollment().EnrollWebinar(ctx, user.ID, webinarID)
		if err != nil {
			return err
		}

		res = AttendanceResult{Enrolled: created, Balance: user.CoinBalance}
		if !created {
			return nil
		}

		balance, err := ledger.NewService(store).Credit(
			ctx, user.ID, CoinsAttendanceConfirmed,
			models.ReasonRegConfirmation, "Bonus for confirming webinar attendance",
		)
		if err != nil {
			return err
		}

		res.Balance = balance
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("attendance confirmation failed. Err: %w", err)
	}

	return res, nil
}

// NextWebinar returns the soonest upcoming webinar
func (s *FunnelService) NextWebinar(ctx context.Context) (models.Webinar, error) {
	return s.storage.Offering().NextWebinar(ctx, time.Now())
}
