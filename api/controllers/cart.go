package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/neurocare-backend/api/responses"
	"github.com/angelmondragon/neurocare-backend/api/validators"
	"github.com/angelmondragon/neurocare-backend/internal/cart"
	"github.com/angelmondragon/neurocare-backend/internal/products"
	"github.com/angelmondragon/neurocare-backend/internal/sessions"
	pkgerrors "github.com/angelmondragon/neurocare-backend/pkg/errors"
	"github.com/angelmondragon/neurocare-backend/pkg/logger"
)

type addCartItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type cartLineResponse struct {
	Product  products.Product `json:"product"`
	Quantity int              `json:"quantity"`
	Subtotal string           `json:"subtotal"`
}

type cartResponse struct {
	Items    []cartLineResponse `json:"items"`
	Count    int                `json:"count"`
	Total    string             `json:"total"`
	Degraded bool               `json:"degraded"`
}

func newCartResponse(store *cart.Store) cartResponse {
	lines := store.Lines()
	items := make([]cartLineResponse, 0, len(lines))
	for _, line := range lines {
		items = append(items, cartLineResponse{
			Product:  line.Product,
			Quantity: line.Quantity,
			Subtotal: line.Subtotal().StringFixed(2),
		})
	}
	return cartResponse{
		Items:    items,
		Count:    store.Count(),
		Total:    store.Total().StringFixed(2),
		Degraded: store.Degraded(),
	}
}

func CartFetch(provider SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := resolveSession(w, r, provider, logg)
		if !ok {
			return
		}
		writeSessionResult(w, http.StatusOK, s, newCartResponse(s.Cart))
	}
}

// CartAddItem adds one unit of a catalog product.
func CartAddItem(provider SessionProvider, catalog products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if catalog == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		var payload addCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := catalog.Get(r.Context(), payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		mutateCart(w, r, provider, logg, func(s *sessions.Session) error {
			return s.Cart.AddToCart(r.Context(), product)
		})
	}
}

// CartUpdateItem sets a line quantity; zero or less removes the line.
func CartUpdateItem(provider SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload updateCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID := chi.URLParam(r, "productID")
		mutateCart(w, r, provider, logg, func(s *sessions.Session) error {
			return s.Cart.UpdateQuantity(r.Context(), productID, *payload.Quantity)
		})
	}
}

func CartRemoveItem(provider SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID := chi.URLParam(r, "productID")
		mutateCart(w, r, provider, logg, func(s *sessions.Session) error {
			return s.Cart.RemoveFromCart(r.Context(), productID)
		})
	}
}

func CartClear(provider SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mutateCart(w, r, provider, logg, func(s *sessions.Session) error {
			return s.Cart.ClearCart(r.Context())
		})
	}
}

// mutateCart applies fn and answers with the resulting cart. A failed storage write keeps the
// change in memory, so it is reported as a warning rather than an error.
func mutateCart(w http.ResponseWriter, r *http.Request, provider SessionProvider, logg *logger.Logger, fn func(*sessions.Session) error) {
	s, ok := resolveSession(w, r, provider, logg)
	if !ok {
		return
	}
	warning, err := degradedWarning(fn(s))
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	writeSessionResult(w, http.StatusOK, s, newCartResponse(s.Cart), warningsOf(warning)...)
}
