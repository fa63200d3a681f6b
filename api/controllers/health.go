package controllers

import (
	"context"
	"net/http"

	"github.com/acari-app/acari-backend/api/responses"
	"github.com/acari-app/acari-backend/pkg/config"
	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
	"github.com/acari-app/acari-backend/pkg/logger"
)

const envHeader = "X-Acari-Env"

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency and fails on the first unreachable one.
func HealthReady(cfg *config.Config, deps map[string]Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unreachable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}

type runtimeConfig struct {
	BackendURL string `json:"backendUrl"`
	PublicKey  string `json:"publicKey"`
}

// RuntimeConfig serves the browser client's bootstrap settings at /config.json.
func RuntimeConfig(cfg config.PublicConfig) http.HandlerFunc {
	payload := runtimeConfig{BackendURL: cfg.BackendURL, PublicKey: cfg.PublicKey}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		responses.WriteRaw(w, http.StatusOK, payload)
	}
}
