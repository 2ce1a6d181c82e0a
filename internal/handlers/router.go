package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/dkovalev/coinfunnel/internal/handlers/middleware"
	"github.com/dkovalev/coinfunnel/internal/logger"
	"github.com/dkovalev/coinfunnel/internal/models"
	"github.com/dkovalev/coinfunnel/internal/service/funnel"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	funnelService funnelService,
	ledgerService ledgerService,
	paymentService paymentService,
	logger logger.Logger,
) http.Handler {
	api := http.NewServeMux()

	api.Handle("POST /funnel/contact", handleFirstContact(funnelService, logger))
	api.Handle("POST /funnel/track", handleTrackChosen(funnelService, logger))
	api.Handle("POST /funnel/attendance", handleAttendanceConfirmed(funnelService, logger))
	api.Handle("GET /funnel/next-webinar", handleNextWebinar(funnelService, logger))

	api.Handle("GET /users/{telegramID}/balance", handleUserBalance(ledgerService, logger))
	api.Handle("GET /users/{telegramID}/history", handleUserHistory(ledgerService, logger))

	api.Handle("POST /purchases", handleInitiatePurchase(paymentService, logger))
	api.Handle("POST /payments/webhook", handlePaymentWebhook(paymentService, logger))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))

	return chain(root,
		middleware.LoggerMiddleware(logger),
	)
}

type funnelService interface {
	// Create user lazily on first contact, rewarding creation only
	OnFirstContact(ctx context.Context, telegramID int64, username string) (funnel.ContactResult, error)

	// Store the chosen track, rewarding the first selection only
	// Has to return apperrors.ErrUserNotFound for unknown users
	OnTrackChosen(ctx context.Context, telegramID int64, track string) (funnel.TrackResult, error)

	// Enroll to webinar idempotently, rewarding a new enrollment only
	// Has to return apperrors.ErrWebinarNotFound for unknown webinars
	OnAttendanceConfirmed(ctx context.Context, telegramID int64, webinarID uuid.UUID) (funnel.AttendanceResult, error)

	// Soonest upcoming webinar or apperrors.ErrWebinarNotFound
	NextWebinar(ctx context.Context) (models.Webinar, error)
}

type ledgerService interface {
	BalanceByTelegram(ctx context.Context, telegramID int64) (int64, error)
	HistoryByTelegram(ctx context.Context, telegramID int64, limit int) ([]models.LedgerEntry, error)
}

type paymentService interface {
	// Start checkout for the active course
	// Conflict outcomes: apperrors.ErrAlreadyEnrolled, ErrPaymentAlreadyPaid,
	// ErrPaymentInProgress, ErrCourseNotFound, ErrGatewayFailed
	InitiatePurchase(ctx context.Context, telegramID int64) (models.Payment, error)

	// Apply a terminal gateway status, replay safe
	Reconcile(ctx context.Context, gatewayID string, status string) (models.Payment, error)
}
