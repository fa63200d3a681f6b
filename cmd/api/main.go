package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/acari-app/acari-backend/api/routes"
	"github.com/acari-app/acari-backend/pkg/bootstrap"
	"github.com/acari-app/acari-backend/pkg/env"
	"github.com/acari-app/acari-backend/pkg/metrics"
)

const shutdownGrace = 20 * time.Second

func main() {
	bootstrap.Main("api", run)
}

func run(ctx context.Context, rt *bootstrap.Runtime) error {
	dbClient, err := rt.Database(ctx)
	if err != nil {
		return err
	}
	redisClient, err := rt.Redis(ctx)
	if err != nil {
		return err
	}
	deps, err := buildDependencies(ctx, rt.Config, rt.Logger, dbClient, redisClient)
	if err != nil {
		return fmt.Errorf("wire dependencies: %w", err)
	}

	// PORT is set by the hosting platform and wins over ACARI_APP_PORT.
	port := env.First("PORT")
	if port == "" {
		port = rt.Config.App.Port
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           routes.NewRouter(rt.Config, rt.Logger, deps),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	if addr := rt.Config.App.MetricsAddr; addr != "" {
		go metrics.Serve(ctx, rt.Logger, addr)
	}

	serveErr := make(chan error, 1)
	go func() {
		rt.Logger.Info(rt.Logger.WithField(ctx, "addr", server.Addr), "api.listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	rt.Logger.Info(shutdownCtx, "api.draining")
	return server.Shutdown(shutdownCtx)
}
