package controllers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/angelmondragon/neurocare-backend/api/responses"
	"github.com/angelmondragon/neurocare-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/neurocare-backend/pkg/errors"
	"github.com/angelmondragon/neurocare-backend/pkg/logger"
	"github.com/angelmondragon/neurocare-backend/pkg/storage"
)

const (
	envHeader    = "X-NeuroCare-Env"
	readyTimeout = 2 * time.Second
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency; one failure makes the service unready.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks map[string]storage.Pinger) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		status := map[string]string{}
		var failed error
		for _, name := range names {
			if err := checks[name].Ping(ctx); err != nil {
				status[name] = "down"
				if failed == nil {
					failed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable")
				}
				continue
			}
			status[name] = "up"
		}
		if failed != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.As(failed).WithDetails(status))
			return
		}
		status["status"] = "ready"
		responses.WriteSuccess(w, status)
	}
}
