package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/acari-app/acari-backend/internal/cron"
	"github.com/acari-app/acari-backend/pkg/bootstrap"
	"github.com/acari-app/acari-backend/pkg/metrics"
)

func main() {
	bootstrap.Main("cron-worker", run)
}

func run(ctx context.Context, rt *bootstrap.Runtime) error {
	cfg, logg := rt.Config, rt.Logger

	dbClient, err := rt.Database(ctx)
	if err != nil {
		return err
	}
	redisClient, err := rt.Redis(ctx)
	if err != nil {
		return err
	}
	jobs, err := buildJobs(ctx, cfg, logg, dbClient)
	if err != nil {
		return err
	}

	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+env), cfg.Cron.LockTTL)
	if err != nil {
		return err
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Schedule: cfg.Cron.Schedule,
	})
	if err != nil {
		return err
	}

	if cfg.Cron.MetricsAddr != "" {
		go metrics.Serve(ctx, logg, cfg.Cron.MetricsAddr)
	}
	logg.Info(logg.WithField(ctx, "schedule", cfg.Cron.Schedule), "cron.worker.start")
	return service.Run(ctx)
}
