package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/neurocare-backend/api/responses"
	"github.com/angelmondragon/neurocare-backend/internal/products"
	"github.com/angelmondragon/neurocare-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/neurocare-backend/pkg/errors"
	"github.com/angelmondragon/neurocare-backend/pkg/logger"
)

// ProductList returns the catalog, optionally filtered by ?category=.
func ProductList(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		category := strings.TrimSpace(r.URL.Query().Get("category"))
		if category != "" {
			parsed, err := enums.ParseProductCategory(category)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
				return
			}
			category = parsed.String()
		}
		responses.WriteSuccess(w, svc.List(r.Context(), category))
	}
}

func ProductDetail(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		product, err := svc.Get(r.Context(), chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}
