package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/acari-app/acari-backend/internal/billing"
	"github.com/acari-app/acari-backend/internal/cron"
	"github.com/acari-app/acari-backend/internal/emails"
	"github.com/acari-app/acari-backend/internal/reminders"
	"github.com/acari-app/acari-backend/internal/subscriptions"
	"github.com/acari-app/acari-backend/internal/users"
	"github.com/acari-app/acari-backend/pkg/config"
	"github.com/acari-app/acari-backend/pkg/db"
	"github.com/acari-app/acari-backend/pkg/logger"
	"github.com/acari-app/acari-backend/pkg/metrics"
	"github.com/acari-app/acari-backend/pkg/outbox"
	"github.com/acari-app/acari-backend/pkg/sendgrid"
	pkgstripe "github.com/acari-app/acari-backend/pkg/stripe"
)

// buildJobs wires the grace reminder scan, grace expiry and outbox retention jobs.
func buildJobs(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client) ([]cron.Job, error) {
	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)

	mailer, err := sendgrid.New(cfg.Sendgrid, logg)
	if err != nil {
		return nil, fmt.Errorf("sendgrid: %w", err)
	}
	emailService, err := emails.NewService(mailer, emails.Options{
		AdminEmail:      cfg.Signup.AdminEmail,
		AppURL:          cfg.Signup.AppURL,
		BillingURL:      cfg.Reminders.BillingURL,
		SupportEmail:    cfg.Reminders.SupportMail,
		BillingFromName: cfg.Reminders.FromName,
	}, logg)
	if err != nil {
		return nil, fmt.Errorf("emails: %w", err)
	}

	reminderRepo := reminders.NewRepository(dbClient.DB())
	processor, err := reminders.NewProcessor(reminders.ProcessorParams{
		DB:      dbClient,
		Repo:    reminderRepo,
		Sender:  emailService,
		Outbox:  outboxService,
		Metrics: metrics.NewReminderMetrics(prometheus.DefaultRegisterer),
		Logger:  logg,
	})
	if err != nil {
		return nil, fmt.Errorf("reminder processor: %w", err)
	}
	reminderService, err := reminders.NewService(reminders.ServiceParams{
		Repo:      reminderRepo,
		Roles:     users.NewRepository(dbClient.DB()),
		Processor: processor,
		Logger:    logg,
	})
	if err != nil {
		return nil, fmt.Errorf("reminders: %w", err)
	}
	reminderJob, err := cron.NewGraceReminderJob(cron.GraceReminderJobParams{
		Logger:  logg,
		Scanner: reminderService,
	})
	if err != nil {
		return nil, err
	}

	stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return nil, fmt.Errorf("stripe: %w", err)
	}
	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		BillingRepo:       billing.NewRepository(dbClient.DB()),
		Stripe:            pkgstripe.NewSubscriptionAPI(stripeClient),
		Outbox:            outboxService,
		TransactionRunner: dbClient,
		Logger:            logg,
		CancelOnExpiry:    cfg.Cron.GraceExpiryCancel,
	})
	if err != nil {
		return nil, fmt.Errorf("subscriptions: %w", err)
	}
	expiryJob, err := cron.NewGraceExpiryJob(cron.GraceExpiryJobParams{
		Logger:  logg,
		Expirer: subscriptionService,
	})
	if err != nil {
		return nil, err
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:       logg,
		DB:           dbClient,
		Repository:   outboxRepo,
		DeadLetters:  outbox.NewDLQRepository(dbClient.DB()),
		Retention:    cfg.Cron.OutboxRetention,
		DLQRetention: cfg.Cron.DLQRetention,
		MinAttempts:  cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}

	return []cron.Job{reminderJob, expiryJob, retentionJob}, nil
}
