package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/neurocare-backend/api/middleware"
	"github.com/angelmondragon/neurocare-backend/api/responses"
	"github.com/angelmondragon/neurocare-backend/internal/sessions"
	pkgerrors "github.com/angelmondragon/neurocare-backend/pkg/errors"
	"github.com/angelmondragon/neurocare-backend/pkg/logger"
)

// SessionProvider hands out the live session for a session id.
type SessionProvider interface {
	Get(ctx context.Context, sessionID string) (*sessions.Session, error)
	Close(ctx context.Context, sessionID string) bool
}

func resolveSession(w http.ResponseWriter, r *http.Request, provider SessionProvider, logg *logger.Logger) (*sessions.Session, bool) {
	if provider == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session registry unavailable"))
		return nil, false
	}
	sessionID := middleware.SessionIDFromContext(r.Context())
	if sessionID == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "session id missing"))
		return nil, false
	}
	s, err := provider.Get(r.Context(), sessionID)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	return s, true
}

// writeSessionResult writes data along with pending session notices and any extra warnings.
func writeSessionResult(w http.ResponseWriter, status int, s *sessions.Session, data any, extra ...string) {
	warnings := append(s.TakeWarnings(), extra...)
	responses.WriteSuccessWarnings(w, status, data, warnings)
}

// degradedWarning turns a storage write failure into a notice; any other error is returned.
func degradedWarning(err error) (string, error) {
	if err == nil {
		return "", nil
	}
	if pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		return pkgerrors.As(err).Message(), nil
	}
	return "", err
}

func warningsOf(msgs ...string) []string {
	var out []string
	for _, m := range msgs {
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}

// SessionEnd tears the caller's session down. Persisted state survives.
func SessionEnd(provider SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if provider == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session registry unavailable"))
			return
		}
		sessionID := middleware.SessionIDFromContext(r.Context())
		if !provider.Close(r.Context(), sessionID) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "session not found"))
			return
		}
		responses.WriteNoContent(w)
	}
}
