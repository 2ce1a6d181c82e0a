package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dkovalev/coinfunnel/internal/apperrors"
	"github.com/dkovalev/coinfunnel/internal/handlers/render"
	"github.com/dkovalev/coinfunnel/internal/logger"
)

func handleUserBalance(ledgerService ledgerService, l logger.Logger) http.Handler {
	type response struct {
		Balance int64 `json:"balance"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		telegramID, err := strconv.ParseInt(r.PathValue("telegramID"), 10, 64)
		if err != nil {
			render.ServiceError(w, "Invalid telegram id", http.StatusBadRequest)
			return
		}

		balance, err := ledgerService.BalanceByTelegram(r.Context(), telegramID)

		switch {
		case err == nil:
			render.JSON(w, response{Balance: balance})
		case errors.Is(err, apperrors.ErrUserNotFound):
			// Unknown user renders as a zero balance
			render.JSON(w, response{Balance: 0})
		default:
			l.Error("Failed to get balance", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleUserHistory(ledgerService ledgerService, l logger.Logger) http.Handler {
	type entry struct {
		Amount      int64     `json:"amount"`
		Reason      string    `json:"reason"`
		Description string    `json:"description,omitempty"`
		CreatedAt   time.Time `json:"created_at"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		telegramID, err := strconv.ParseInt(r.PathValue("telegramID"), 10, 64)
		if err != nil {
			render.ServiceError(w, "Invalid telegram id", http.StatusBadRequest)
			return
		}

		// limit is optional, service applies the default
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		entries, err := ledgerService.HistoryByTelegram(r.Context(), telegramID, limit)

		switch {
		case err == nil:
			history := make([]entry, 0, len(entries))
			for _, e := range entries {
				history = append(history, entry{
					Amount:      e.Amount,
					Reason:      e.Reason,
					Description: e.Description,
					CreatedAt:   e.CreatedAt,
				})
			}
			render.JSON(w, history)
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		default:
			l.Error("Failed to get history", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
