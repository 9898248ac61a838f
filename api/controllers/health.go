package controllers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/lxlibrary/lx-backend/api/responses"
	"github.com/lxlibrary/lx-backend/pkg/config"
	pkgerrors "github.com/lxlibrary/lx-backend/pkg/errors"
	"github.com/lxlibrary/lx-backend/pkg/logger"
)

const (
	envHeader           = "X-LX-Env"
	readinessCheckLimit = 2 * time.Second
)

// Pinger is a dependency that can report its own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every named dependency. Nil entries are skipped, which
// is how memory storage mode reports ready without a database or redis.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		names := make([]string, 0, len(deps))
		for name := range deps {
			names = append(names, name)
		}
		sort.Strings(names)

		checks := map[string]string{}
		failed := false
		for _, name := range names {
			dep := deps[name]
			if dep == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(r.Context(), readinessCheckLimit)
			err := dep.Ping(ctx)
			cancel()
			if err != nil {
				failed = true
				checks[name] = "down"
				if logg != nil {
					logg.Warn(logg.WithFields(r.Context(), map[string]any{"dependency": name, "error": err.Error()}), "health.dependency_down")
				}
				continue
			}
			checks[name] = "ok"
		}

		if failed {
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeDependency, "not ready").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
