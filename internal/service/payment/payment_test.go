package payment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/dkovalev/coinfunnel/internal/apperrors"
	"github.com/dkovalev/coinfunnel/internal/logger"
	"github.com/dkovalev/coinfunnel/internal/models"
	"github.com/dkovalev/coinfunnel/internal/repository"
	"github.com/dkovalev/coinfunnel/internal/repository/postgres"
	"github.com/dkovalev/coinfunnel/internal/service/payment/gateway"
	"github.com/dkovalev/coinfunnel/internal/testutil"
)

// Gateway stub accepting every payment with a fresh id
type fakeGateway struct {
	calls atomic.Int64
	fail  error
}

func (g *fakeGateway) CreatePayment(_ context.Context, _ string, req gateway.CreatePaymentRequest) (gateway.Payment, error) {
	g.calls.Add(1)
	if g.fail != nil {
		return gateway.Payment{}, g.fail
	}

	id := uuid.NewString()
	return gateway.Payment{
		ID:     id,
		Status: "pending",
		Confirmation: gateway.Confirmation{
			Type:            "redirect",
			ConfirmationURL: "https://checkout.test/" + id,
		},
		Metadata: req.Metadata,
	}, nil
}

func TestPaymentService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	cfg := Config{ReturnURL: "https://t.me/test_bot", DefaultCustomerEmail: "billing@test.local"}

	type fixture struct {
		svc     *PaymentService
		gw      *fakeGateway
		storage repository.Storage
		user    models.User
		course  models.Course
	}

	setup := func(t *testing.T, storage repository.Storage, telegramID int64) fixture {
		t.Helper()

		user, _, err := storage.User().GetOrCreateUser(t.Context(), telegramID, "buyer")
		require.NoError(t, err)

		course, err := storage.Offering().CreateCourse(t.Context(), repository.CreateCourseParams{
			Name:     "Full AI course",
			StartsAt: time.Now().Add(7 * 24 * time.Hour),
			Price:    "4990.00",
			Active:   true,
		})
		require.NoError(t, err)

		gw := &fakeGateway{}
		return fixture{
			svc:     NewService(cfg, storage, gw, logger.NewNoOpLogger()),
			gw:      gw,
			storage: storage,
			user:    user,
			course:  course,
		}
	}

	withTx := func(t *testing.T, fn func(f fixture)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			fn(setup(t, postgres.NewStorage(tx), 100500))
		})
	}

	t.Run("InitiatePurchase", func(t *testing.T) {
		t.Run("creates pending payment with checkout link", func(t *testing.T) {
			withTx(t, func(f fixture) {
				payment, err := f.svc.InitiatePurchase(t.Context(), f.user.TelegramID)

				require.NoError(t, err)
				require.Equal(t, models.PaymentStatusPending, payment.Status)
				require.NotEmpty(t, payment.CheckoutURL)
				require.Equal(t, f.course.ID, payment.CourseID)
				require.Equal(t, "4990.00", payment.Amount.StringFixed(2))
				require.Equal(t, int64(1), f.gw.calls.Load())
			})
		})

		t.Run("repeat returns the same checkout without a gateway call", func(t *testing.T) {
			withTx(t, func(f fixture) {
				first, err := f.svc.InitiatePurchase(t.Context(), f.user.TelegramID)
				require.NoError(t, err)

				second, err := f.svc.InitiatePurchase(t.Context(), f.user.TelegramID)

				require.NoError(t, err)
				require.Equal(t, first.ID, second.ID)
				require.Equal(t, first.CheckoutURL, second.CheckoutURL)
				require.Equal(t, int64(1), f.gw.calls.Load(), "existing checkout must be reused")
			})
		})

		t.Run("unknown user", func(t *testing.T) {
			withTx(t, func(f fixture) {
				_, err := f.svc.InitiatePurchase(t.Context(), 404404)
				require.ErrorIs(t, err, apperrors.ErrUserNotFound)
			})
		})

		t.Run("no active course", func(t *testing.T) {
			testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
				storage := postgres.NewStorage(tx)
				user, _, err := storage.User().GetOrCreateUser(t.Context(), 100500, "buyer")
				require.NoError(t, err)

				svc := NewService(cfg, storage, &fakeGateway{}, logger.NewNoOpLogger())
				_, err = svc.InitiatePurchase(t.Context(), user.TelegramID)

				require.ErrorIs(t, err, apperrors.ErrCourseNotFound)
			})
		})

		t.Run("already enrolled", func(t *testing.T) {
			withTx(t, func(f fixture) {
				_, err := f.storage.Enrollment().EnrollCourse(t.Context(), f.user.ID, f.course.ID)
				require.NoError(t, err)

				_, err = f.svc.InitiatePurchase(t.Context(), f.user.TelegramID)

				require.ErrorIs(t, err, apperrors.ErrAlreadyEnrolled)
				require.Zero(t, f.gw.calls.Load())
			})
		})

		t.Run("gateway failure leaves no local row", func(t *testing.T) {
			withTx(t, func(f fixture) {
				f.gw.fail = errors.New("gateway: 503 Service Unavailable")

				_, err := f.svc.InitiatePurchase(t.Context(), f.user.TelegramID)
				require.ErrorIs(t, err, apperrors.ErrGatewayFailed)

				_, err = f.storage.Payment().GetPending(t.Context(), f.user.ID, f.course.ID)
				require.ErrorIs(t, err, apperrors.ErrPaymentNotFound, "failed initiation must not persist a payment")

				// The user simply retries once the gateway recovers
				f.gw.fail = nil
				_, err = f.svc.InitiatePurchase(t.Context(), f.user.TelegramID)
				require.NoError(t, err)
			})
		})
	})

	t.Run("Reconcile", func(t *testing.T) {
		t.Run("success flips status and enrolls", func(t *testing.T) {
			withTx(t, func(f fixture) {
				payment, err := f.svc.InitiatePurchase(t.Context(), f.user.TelegramID)
				require.NoError(t, err)

				done, err := f.svc.Reconcile(t.Context(), payment.GatewayID, models.PaymentStatusSucceeded)

				require.NoError(t, err)
				require.Equal(t, models.PaymentStatusSucceeded, done.Status)
				require.NotNil(t, done.PaidAt)

				enrolled, err := f.storage.Enrollment().IsEnrolledCourse(t.Context(), f.user.ID, f.course.ID)
				require.NoError(t, err)
				require.True(t, enrolled, "successful payment must enroll in the same transaction")
			})
		})

		t.Run("cancellation does not enroll", func(t *testing.T) {
			withTx(t, func(f fixture) {
				payment, err := f.svc.InitiatePurchase(t.Context(), f.user.TelegramID)
				require.NoError(t, err)

				done, err := f.svc.Reconcile(t.Context(), payment.GatewayID, models.PaymentStatusCanceled)

				require.NoError(t, err)
				require.Equal(t, models.PaymentStatusCanceled, done.Status)
				require.Nil(t, done.PaidAt)

				enrolled, err := f.storage.Enrollment().IsEnrolledCourse(t.Context(), f.user.ID, f.course.ID)
				require.NoError(t, err)
				require.False(t, enrolled)
			})
		})

		t.Run("replayed webhook is a no-op", func(t *testing.T) {
			withTx(t, func(f fixture) {
				payment, err := f.svc.InitiatePurchase(t.Context(), f.user.TelegramID)
				require.NoError(t, err)

				first, err := f.svc.Reconcile(t.Context(), payment.GatewayID, models.PaymentStatusSucceeded)
				require.NoError(t, err)

				replayed, err := f.svc.Reconcile(t.Context(), payment.GatewayID, models.PaymentStatusSucceeded)

				require.ErrorIs(t, err, apperrors.ErrPaymentAlreadyTerminal)
				require.Equal(t, first.ID, replayed.ID)
				require.Equal(t, models.PaymentStatusSucceeded, replayed.Status)

				// A late contradictory status must not rewrite history
				_, err = f.svc.Reconcile(t.Context(), payment.GatewayID, models.PaymentStatusCanceled)
				require.ErrorIs(t, err, apperrors.ErrPaymentAlreadyTerminal)
			})
		})

		t.Run("non terminal status rejected", func(t *testing.T) {
			withTx(t, func(f fixture) {
				_, err := f.svc.Reconcile(t.Context(), "whatever", "waiting_for_capture")
				require.ErrorIs(t, err, apperrors.ErrPaymentStatusInvalid)
			})
		})

		t.Run("unknown gateway id", func(t *testing.T) {
			withTx(t, func(f fixture) {
				_, err := f.svc.Reconcile(t.Context(), "missing", models.PaymentStatusCanceled)
				require.ErrorIs(t, err, apperrors.ErrPaymentNotFound)
			})
		})

		t.Run("purchase after success reports already paid", func(t *testing.T) {
			withTx(t, func(f fixture) {
				payment, err := f.svc.InitiatePurchase(t.Context(), f.user.TelegramID)
				require.NoError(t, err)
				_, err = f.svc.Reconcile(t.Context(), payment.GatewayID, models.PaymentStatusSucceeded)
				require.NoError(t, err)

				_, err = f.svc.InitiatePurchase(t.Context(), f.user.TelegramID)
				require.ErrorIs(t, err, apperrors.ErrAlreadyEnrolled)
			})
		})
	})

	// Runs against the pool, rows stay behind, ids are unique to this test
	t.Run("concurrent initiations share one pending payment", func(t *testing.T) {
		f := setup(t, postgres.NewStorage(pg.Pool), 777002)

		const workers = 6
		var wg sync.WaitGroup
		payments := make([]models.Payment, workers)
		errs := make([]error, workers)

		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				payments[i], errs[i] = f.svc.InitiatePurchase(t.Context(), f.user.TelegramID)
			}()
		}
		wg.Wait()

		for i := range workers {
			require.NoError(t, errs[i])
			require.Equal(t, payments[0].ID, payments[i].ID, "every caller must end up with the same pending payment")
		}

		pending, err := f.storage.Payment().GetPending(t.Context(), f.user.ID, f.course.ID)
		require.NoError(t, err)
		require.Equal(t, payments[0].ID, pending.ID)
	})
}
