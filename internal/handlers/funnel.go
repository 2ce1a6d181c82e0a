package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dkovalev/coinfunnel/internal/apperrors"
	"github.com/dkovalev/coinfunnel/internal/handlers/render"
	"github.com/dkovalev/coinfunnel/internal/logger"
)

func handleFirstContact(funnelService funnelService, l logger.Logger) http.Handler {
	type request struct {
		TelegramID int64  `json:"telegram_id" validate:"required"`
		Username   string `json:"username"`
	}

	type response struct {
		TelegramID int64  `json:"telegram_id"`
		Created    bool   `json:"created"`
		Track      *string `json:"track"`
		Balance    int64  `json:"balance"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		res, err := funnelService.OnFirstContact(r.Context(), req.TelegramID, req.Username)

		switch err {
		case nil:
			render.JSON(w, response{
				TelegramID: res.User.TelegramID,
				Created:    res.Created,
				Track:      res.User.Track,
				Balance:    res.Balance,
			})
		default:
			l.Error("Failed to handle first contact", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleTrackChosen(funnelService funnelService, l logger.Logger) http.Handler {
	type request struct {
		TelegramID int64  `json:"telegram_id" validate:"required"`
		Track      string `json:"track" validate:"required,oneof=personal business"`
	}

	type response struct {
		Track       string `json:"track"`
		FirstChoice bool   `json:"first_choice"`
		Balance     int64  `json:"balance"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		res, err := funnelService.OnTrackChosen(r.Context(), req.TelegramID, req.Track)

		switch {
		case err == nil:
			render.JSON(w, response{Track: req.Track, FirstChoice: res.FirstChoice, Balance: res.Balance})
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		default:
			l.Error("Failed to set track", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleAttendanceConfirmed(funnelService funnelService, l logger.Logger) http.Handler {
	type request struct {
		TelegramID int64     `json:"telegram_id" validate:"required"`
		WebinarID  uuid.UUID `json:"webinar_id" validate:"required"`
	}

	type response struct {
		Enrolled bool  `json:"enrolled"`
		Balance  int64 `json:"balance"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		res, err := funnelService.OnAttendanceConfirmed(r.Context(), req.TelegramID, req.WebinarID)

		switch {
		case err == nil:
			render.JSON(w, response{Enrolled: res.Enrolled, Balance: res.Balance})
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrWebinarNotFound):
			render.ServiceError(w, "Webinar not found", http.StatusNotFound)
		default:
			l.Error("Failed to confirm attendance", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleNextWebinar(funnelService funnelService, l logger.Logger) http.Handler {
	type response struct {
		ID       uuid.UUID `json:"id"`
		StartsAt time.Time `json:"starts_at"`
		Topic    string    `json:"topic"`
		Link     string    `json:"link,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		webinar, err := funnelService.NextWebinar(r.Context())

		switch {
		case err == nil:
			render.JSON(w, response{ID: webinar.ID, StartsAt: webinar.StartsAt, Topic: webinar.Topic, Link: webinar.Link})
		case errors.Is(err, apperrors.ErrWebinarNotFound):
			w.WriteHeader(http.StatusNoContent)
		default:
			l.Error("Failed to get next webinar", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
