package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/neurocare-backend/api/responses"
	"github.com/angelmondragon/neurocare-backend/internal/orders"
	"github.com/angelmondragon/neurocare-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/neurocare-backend/pkg/errors"
	"github.com/angelmondragon/neurocare-backend/pkg/logger"
)

type orderListResponse struct {
	Orders   []orders.Order `json:"orders"`
	Degraded bool           `json:"degraded"`
}

// OrderList returns the session history newest first, optionally filtered by ?status=.
func OrderList(provider SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := resolveSession(w, r, provider, logg)
		if !ok {
			return
		}

		list := s.Orders.Orders()
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filtered := make([]orders.Order, 0, len(list))
			for _, o := range list {
				if o.Status == status {
					filtered = append(filtered, o)
				}
			}
			list = filtered
		}
		if list == nil {
			list = []orders.Order{}
		}
		writeSessionResult(w, http.StatusOK, s, orderListResponse{Orders: list, Degraded: s.Orders.Degraded()})
	}
}

func OrderDetail(provider SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := resolveSession(w, r, provider, logg)
		if !ok {
			return
		}
		order, err := s.Orders.Get(chi.URLParam(r, "orderID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeSessionResult(w, http.StatusOK, s, order)
	}
}

// OrderCancel cancels a Processing or Out for Delivery order.
func OrderCancel(provider SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := resolveSession(w, r, provider, logg)
		if !ok {
			return
		}
		order, err := s.Orders.Cancel(r.Context(), chi.URLParam(r, "orderID"))
		if order == nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		warning, err := degradedWarning(err)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeSessionResult(w, http.StatusOK, s, order, warningsOf(warning)...)
	}
}
