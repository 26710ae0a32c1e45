package controllers

import (
	"net/http"

	"github.com/angelmondragon/neurocare-backend/api/responses"
	"github.com/angelmondragon/neurocare-backend/api/validators"
	"github.com/angelmondragon/neurocare-backend/internal/checkout"
	"github.com/angelmondragon/neurocare-backend/pkg/logger"
)

// Checkout pays for the session cart and records the order. The request context bounds the
// simulated payment and confirmation waits.
func Checkout(provider SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Submit normalizes the form (card number spacing) before validating it
		var payload checkout.SubmitInput
		if err := validators.DecodeJSON(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		s, ok := resolveSession(w, r, provider, logg)
		if !ok {
			return
		}

		result, err := s.Checkout.Submit(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeSessionResult(w, http.StatusCreated, s, result, result.Warnings...)
	}
}
