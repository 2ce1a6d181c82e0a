package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dkovalev/coinfunnel/internal/apperrors"
	"github.com/dkovalev/coinfunnel/internal/logger"
	"github.com/dkovalev/coinfunnel/internal/models"
	"github.com/dkovalev/coinfunnel/internal/repository"
	"github.com/dkovalev/coinfunnel/internal/service/payment/gateway"
)

// Receipt constants required by the gateway for educational services
const (
	vatCodeNone        = 1
	paymentSubject     = "service"
	paymentModePrepaid = "full_prepayment"
)

type paymentGateway interface {
	CreatePayment(ctx context.Context, idempotenceKey string, req gateway.CreatePaymentRequest) (gateway.Payment, error)
}

type Config struct {
	// Where the gateway redirects the user after checkout
	ReturnURL string

	// Receipt requires a customer contact, used when the user has none
	DefaultCustomerEmail string

	Currency string
}

type PaymentService struct {
	cfg     Config
	storage repository.Storage
	gateway paymentGateway
	logger  logger.Logger
}

func NewService(cfg Config, storage repository.Storage, gw paymentGateway, l logger.Logger) *PaymentService {
	if cfg.Currency == "" {
		cfg.Currency = "RUB"
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &PaymentService{
		cfg:     cfg,
		storage: storage,
		gateway: gw,
		logger:  l,
	}
}

// InitiatePurchase starts a checkout for the single active course.
//
// The gateway round trip deliberately happens outside any database
// transaction: the pending row is written only after the gateway accepted
// the payment, and the partial unique index on pending payments resolves
// concurrent initiations for the same user and course.
func (s *PaymentService) InitiatePurchase(ctx context.Context, telegramID int64) (models.Payment, error) {
	var payment models.Payment

	user, err := s.storage.User().GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return payment, err
	}

	course, err := s.storage.Offering().ActiveCourse(ctx, time.Now())
	if err != nil {
		return payment, err
	}

	enrolled, err := s.storage.Enrollment().IsEnrolledCourse(ctx, user.ID, course.ID)
	if err != nil {
		return payment, err
	}
	if enrolled {
		return payment, apperrors.ErrAlreadyEnrolled
	}

	paid, err := s.storage.Payment().HasSucceeded(ctx, user.ID, course.ID)
	if err != nil {
		return payment, err
	}
	if paid {
		return payment, apperrors.ErrPaymentAlreadyPaid
	}

	// A live checkout already exists, hand out the same link again
	pending, err := s.storage.Payment().GetPending(ctx, user.ID, course.ID)
	switch {
	case err == nil:
		return pending, nil
	case !errors.Is(err, apperrors.ErrPaymentNotFound):
		return payment, err
	}

	idempotenceKey := uuid.New().String()
	created, err := s.gateway.CreatePayment(ctx, idempotenceKey, s.buildRequest(user, course))
	if err != nil {
		// No local row exists, the user may simply retry
		return payment, fmt.Errorf("%w: %v", apperrors.ErrGatewayFailed, err)
	}

	payment, err = s.storage.Payment().CreatePayment(ctx, repository.CreatePaymentParams{
		UserID:      user.ID,
		CourseID:    course.ID,
		GatewayID:   created.ID,
		Amount:      course.Price.StringFixed(2),
		Currency:    s.cfg.Currency,
		CheckoutURL: created.Confirmation.ConfirmationURL,
		Metadata:    created.Metadata,
	})

	if errors.Is(err, apperrors.ErrPaymentInProgress) {
		// Lost the race to a concurrent initiation, its checkout link wins.
		// Our gateway payment stays unpaid and expires on the gateway side.
		s.logger.Warn("Duplicate purchase initiation", "telegram_id", telegramID, "course_id", course.ID, "orphaned_gateway_id", created.ID)

		pending, pendingErr := s.storage.Payment().GetPending(ctx, user.ID, course.ID)
		if pendingErr != nil {
			return payment, apperrors.ErrPaymentInProgress
		}
		return pending, nil
	}
	if err != nil {
		return payment, err
	}

	return payment, nil
}

// Reconcile applies a terminal gateway status to the local payment.
//
// Safe to replay: a payment already in a terminal status is reported with
// apperrors.ErrPaymentAlreadyTerminal and left untouched. On success the
// status flip and the course enrollment commit in one transaction.
func (s *PaymentService) Reconcile(ctx context.Context, gatewayID string, status string) (models.Payment, error) {
	var payment models.Payment

	if !models.PaymentStatusTerminal(status) {
		return payment, fmt.Errorf("status %q: %w", status, apperrors.ErrPaymentStatusInvalid)
	}

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		p, err := store.Payment().GetByGatewayID(ctx, gatewayID, true)
		if err != nil {
			return err
		}

		if models.PaymentStatusTerminal(p.Status) {
			payment = p
			return apperrors.ErrPaymentAlreadyTerminal
		}

		var paidAt *time.Time
		if status == models.PaymentStatusSucceeded {
			now := time.Now()
			paidAt = &now
		}

		payment, err = store.Payment().SetStatus(ctx, p.ID, status, paidAt)
		if err != nil {
			return err
		}

		if status != models.PaymentStatusSucceeded {
			return nil
		}

		_, err = store.Enrollment().EnrollCourse(ctx, p.UserID, p.CourseID)
		return err
	})
	if err != nil {
		return payment, err
	}

	s.logger.Info("Payment reconciled", "gateway_id", gatewayID, "status", status)
	return payment, nil
}

func (s *PaymentService) buildRequest(user models.User, course models.Course) gateway.CreatePaymentRequest {
	amount := gateway.Amount{
		Value:    course.Price.StringFixed(2),
		Currency: s.cfg.Currency,
	}

	email := s.cfg.DefaultCustomerEmail
	if email == "" {
		email = "user_" + strconv.FormatInt(user.TelegramID, 10) + "@telegram.local"
	}

	return gateway.CreatePaymentRequest{
		Amount:      amount,
		Capture:     true,
		Description: "Course payment: " + course.Name,
		Confirmation: gateway.Confirmation{
			Type:      "redirect",
			ReturnURL: s.cfg.ReturnURL,
		},
		Receipt: gateway.Receipt{
			Customer: gateway.Customer{Email: email},
			Items: []gateway.ReceiptItem{
				{
					Description:    course.Name,
					Quantity:       "1.00",
					Amount:         amount,
					VATCode:        vatCodeNone,
					PaymentSubject: paymentSubject,
					PaymentMode:    paymentModePrepaid,
				},
			},
		},
		Metadata: map[string]string{
			"user_id":     user.ID.String(),
			"telegram_id": strconv.FormatInt(user.TelegramID, 10),
			"course_id":   course.ID.String(),
			"course_name": course.Name,
		},
	}
}
