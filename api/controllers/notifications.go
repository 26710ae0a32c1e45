package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/neurocare-backend/api/responses"
	"github.com/angelmondragon/neurocare-backend/api/validators"
	"github.com/angelmondragon/neurocare-backend/internal/notifications"
	pkgerrors "github.com/angelmondragon/neurocare-backend/pkg/errors"
	"github.com/angelmondragon/neurocare-backend/pkg/logger"
	"github.com/angelmondragon/neurocare-backend/pkg/pagination"
)

// ListNotifications returns a page of the session feed, newest first.
func ListNotifications(provider SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		unreadOnly, err := validators.ParseQueryBool(r, "unreadOnly")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		s, ok := resolveSession(w, r, provider, logg)
		if !ok {
			return
		}

		resp, err := s.Feed.List(r.Context(), notifications.ListParams{
			Limit:      limit,
			Cursor:     strings.TrimSpace(r.URL.Query().Get("cursor")),
			UnreadOnly: unreadOnly,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeSessionResult(w, http.StatusOK, s, resp)
	}
}

func MarkNotificationRead(provider SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		notificationID, err := uuid.Parse(chi.URLParam(r, "notificationID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification id"))
			return
		}
		s, ok := resolveSession(w, r, provider, logg)
		if !ok {
			return
		}
		if err := s.Feed.MarkRead(r.Context(), notificationID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"read": true})
	}
}

func MarkAllNotificationsRead(provider SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := resolveSession(w, r, provider, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, map[string]int{"updated": s.Feed.MarkAllRead(r.Context())})
	}
}
