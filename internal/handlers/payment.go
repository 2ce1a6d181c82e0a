package handlers

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/dkovalev/coinfunnel/internal/apperrors"
	"github.com/dkovalev/coinfunnel/internal/handlers/render"
	"github.com/dkovalev/coinfunnel/internal/logger"
)

func handleInitiatePurchase(paymentService paymentService, l logger.Logger) http.Handler {
	type request struct {
		TelegramID int64 `json:"telegram_id" validate:"required"`
	}

	type response struct {
		PaymentID   string          `json:"payment_id"`
		CheckoutURL string          `json:"checkout_url"`
		Amount      decimal.Decimal `json:"amount"`
		Currency    string          `json:"currency"`
		Status      string          `json:"status"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		payment, err := paymentService.InitiatePurchase(r.Context(), req.TelegramID)

		switch {
		case err == nil:
			render.JSONWithStatus(w, response{
				PaymentID:   payment.GatewayID,
				CheckoutURL: payment.CheckoutURL,
				Amount:      payment.Amount,
				Currency:    payment.Currency,
				Status:      payment.Status,
			}, http.StatusCreated)
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrCourseNotFound):
			render.ServiceError(w, "No course is open for purchase right now", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrAlreadyEnrolled):
			render.ServiceError(w, "You are already enrolled in this course", http.StatusConflict)
		case errors.Is(err, apperrors.ErrPaymentAlreadyPaid):
			render.ServiceError(w, "This course is already paid", http.StatusConflict)
		case errors.Is(err, apperrors.ErrPaymentInProgress):
			render.ServiceError(w, "A payment for this course is already in progress", http.StatusConflict)
		case errors.Is(err, apperrors.ErrGatewayFailed):
			l.Warn("Payment gateway failed", "error", err)
			render.ServiceError(w, "Payment service is unavailable, please try again", http.StatusBadGateway)
		default:
			l.Error("Failed to initiate purchase", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// handlePaymentWebhook accepts gateway notifications.
// The gateway delivers at least once, so replays and unknown payments
// are acknowledged with 200 to stop redelivery.
func handlePaymentWebhook(paymentService paymentService, l logger.Logger) http.Handler {
	type object struct {
		ID     string `json:"id" validate:"required"`
		Status string `json:"status" validate:"required"`
	}

	type request struct {
		Event  string `json:"event"`
		Object object `json:"object" validate:"required"`
	}

	type response struct {
		Result string `json:"result"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		_, err = paymentService.Reconcile(r.Context(), req.Object.ID, req.Object.Status)

		switch {
		case err == nil:
			render.JSON(w, response{Result: "applied"})
		case errors.Is(err, apperrors.ErrPaymentAlreadyTerminal):
			render.JSON(w, response{Result: "already_processed"})
		case errors.Is(err, apperrors.ErrPaymentNotFound):
			// Infrastructure event, not a user action: log and drop
			l.Warn("Webhook for unknown payment", "gateway_id", req.Object.ID, "status", req.Object.Status)
			render.JSON(w, response{Result: "ignored"})
		case errors.Is(err, apperrors.ErrPaymentStatusInvalid):
			render.ServiceError(w, "Unknown payment status", http.StatusBadRequest)
		default:
			l.Error("Failed to reconcile payment", "error", err, "gateway_id", req.Object.ID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
