package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/acari-app/acari-backend/pkg/bootstrap"
	"github.com/acari-app/acari-backend/pkg/metrics"
	"github.com/acari-app/acari-backend/pkg/outbox"
	"github.com/acari-app/acari-backend/pkg/outbox/registry"
	"github.com/acari-app/acari-backend/pkg/pubsub"
)

func main() {
	bootstrap.Main("outbox-publisher", run)
}

func run(ctx context.Context, rt *bootstrap.Runtime) error {
	cfg := rt.Config

	dbClient, err := rt.Database(ctx)
	if err != nil {
		return err
	}
	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, rt.Logger)
	if err != nil {
		return err
	}
	rt.Defer("pubsub", pubsubClient)

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return err
	}
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        rt.Logger,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return err
	}

	if cfg.Outbox.MetricsAddr != "" {
		go metrics.Serve(ctx, rt.Logger, cfg.Outbox.MetricsAddr)
	}
	rt.Logger.Info(rt.Logger.WithFields(ctx, map[string]any{
		"billingTopic": cfg.PubSub.BillingTopic,
		"assetsTopic":  cfg.PubSub.AssetsTopic,
	}), "outbox.publisher.start")
	return service.Run(ctx)
}
