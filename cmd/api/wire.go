package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/acari-app/acari-backend/api/controllers"
	"github.com/acari-app/acari-backend/api/routes"
	"github.com/acari-app/acari-backend/internal/assets"
	"github.com/acari-app/acari-backend/internal/auth"
	"github.com/acari-app/acari-backend/internal/billing"
	"github.com/acari-app/acari-backend/internal/blog"
	"github.com/acari-app/acari-backend/internal/businesses"
	"github.com/acari-app/acari-backend/internal/emails"
	"github.com/acari-app/acari-backend/internal/generators"
	"github.com/acari-app/acari-backend/internal/qrcodes"
	"github.com/acari-app/acari-backend/internal/reminders"
	"github.com/acari-app/acari-backend/internal/signupcodes"
	"github.com/acari-app/acari-backend/internal/subscriptions"
	"github.com/acari-app/acari-backend/internal/templates"
	"github.com/acari-app/acari-backend/internal/users"
	stripewebhook "github.com/acari-app/acari-backend/internal/webhooks/stripe"
	"github.com/acari-app/acari-backend/pkg/auth/session"
	"github.com/acari-app/acari-backend/pkg/config"
	"github.com/acari-app/acari-backend/pkg/db"
	"github.com/acari-app/acari-backend/pkg/domains"
	"github.com/acari-app/acari-backend/pkg/genai"
	"github.com/acari-app/acari-backend/pkg/logger"
	"github.com/acari-app/acari-backend/pkg/metrics"
	"github.com/acari-app/acari-backend/pkg/outbox"
	"github.com/acari-app/acari-backend/pkg/redis"
	"github.com/acari-app/acari-backend/pkg/sendgrid"
	"github.com/acari-app/acari-backend/pkg/storage/gcs"
	pkgstripe "github.com/acari-app/acari-backend/pkg/stripe"
)

const stripeEventTTL = 7 * 24 * time.Hour

// buildDependencies constructs every service the router serves. Stripe and
// SendGrid are required; GenAI, GCS and the domain provider are optional and
// their routes answer with an error when left unconfigured.
func buildDependencies(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Dependencies, error) {
	deps := routes.Dependencies{
		Pingers: map[string]controllers.Pinger{
			"postgres": dbClient,
			"redis":    redisClient,
		},
		Redis: redisClient,
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return deps, fmt.Errorf("session manager: %w", err)
	}
	deps.Sessions = sessionManager

	userRepo := users.NewRepository(dbClient.DB())
	deps.Admins = userRepo
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	deps.DeadLetters = outbox.NewDLQRepository(dbClient.DB())

	mailer, err := sendgrid.New(cfg.Sendgrid, logg)
	if err != nil {
		return deps, fmt.Errorf("sendgrid: %w", err)
	}
	emailService, err := emails.NewService(mailer, emails.Options{
		AdminEmail:      cfg.Signup.AdminEmail,
		AppURL:          cfg.Signup.AppURL,
		BillingURL:      cfg.Reminders.BillingURL,
		SupportEmail:    cfg.Reminders.SupportMail,
		BillingFromName: cfg.Reminders.FromName,
	}, logg)
	if err != nil {
		return deps, fmt.Errorf("emails: %w", err)
	}
	deps.Mailer = emailService

	codes, err := signupcodes.NewService(signupcodes.ServiceParams{
		Store:    redisClient,
		Sender:   emailService,
		Logger:   logg,
		TTL:      cfg.Signup.CodeTTL,
		Cooldown: cfg.Signup.Cooldown,
	})
	if err != nil {
		return deps, fmt.Errorf("signup codes: %w", err)
	}
	deps.SignupCodes = codes

	authService, err := auth.NewService(auth.ServiceParams{
		TxRunner: dbClient,
		UserRepoFactory: func(tx *gorm.DB) auth.UserRepository {
			return userRepo.WithTx(tx)
		},
		Outbox:            outboxService,
		SessionManager:    sessionManager,
		SignupCodes:       codes,
		Notifier:          emailService,
		JWTConfig:         cfg.JWT,
		PasswordConfig:    cfg.Password,
		RequireSignupCode: cfg.Signup.RequireCode,
		Logger:            logg,
	})
	if err != nil {
		return deps, fmt.Errorf("auth: %w", err)
	}
	deps.Auth = authService

	stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return deps, fmt.Errorf("stripe: %w", err)
	}
	deps.StripeVerifier = stripeClient

	billingRepo := billing.NewRepository(dbClient.DB())
	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		BillingRepo:       billingRepo,
		Stripe:            pkgstripe.NewSubscriptionAPI(stripeClient),
		Outbox:            outboxService,
		TransactionRunner: dbClient,
		Logger:            logg,
		CancelOnExpiry:    cfg.Cron.GraceExpiryCancel,
	})
	if err != nil {
		return deps, fmt.Errorf("subscriptions: %w", err)
	}
	deps.Subscriptions = subscriptionService

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		BillingRepo:       billingRepo,
		TransactionRunner: dbClient,
		Outbox:            outboxService,
		Logger:            logg,
		GracePeriod:       cfg.Billing.GracePeriod,
	})
	if err != nil {
		return deps, fmt.Errorf("stripe webhooks: %w", err)
	}
	deps.StripeWebhooks = webhookService

	ledger, err := stripewebhook.NewEventLedger(redisClient, stripeEventTTL, "stripe-webhook")
	if err != nil {
		return deps, fmt.Errorf("stripe event ledger: %w", err)
	}
	deps.StripeEvents = ledger

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
		return deps, fmt.Errorf("reminder processor: %w", err)
	}
	reminderService, err := reminders.NewService(reminders.ServiceParams{
		Repo:      reminderRepo,
		Roles:     userRepo,
		Processor: processor,
		Logger:    logg,
	})
	if err != nil {
		return deps, fmt.Errorf("reminders: %w", err)
	}
	deps.Reminders = reminderService

	templateService, err := templates.NewService(templates.ServiceParams{
		Repo:   templates.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		return deps, fmt.Errorf("templates: %w", err)
	}
	deps.Templates = templateService

	blogService, err := blog.NewService(blog.ServiceParams{
		Repo:   blog.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		return deps, fmt.Errorf("blog: %w", err)
	}
	deps.Blog = blogService

	businessService, err := businesses.NewService(businesses.ServiceParams{
		Repo:   businesses.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		return deps, fmt.Errorf("businesses: %w", err)
	}
	deps.Businesses = businessService

	assetParams := assets.ServiceParams{
		Repo:   assets.NewRepository(dbClient.DB()),
		Tx:     dbClient,
		Outbox: outboxService,
		Logger: logg,
	}
	storage, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Warn(ctx, fmt.Sprintf("gcs unavailable, generators and qr codes disabled: %v", err))
	} else {
		assetParams.Storage = storage
		deps.Pingers["gcs"] = storage
	}
	assetService, err := assets.NewService(assetParams)
	if err != nil {
		return deps, fmt.Errorf("assets: %w", err)
	}
	deps.Assets = assetService

	if storage != nil {
		qrService, err := qrcodes.NewService(qrcodes.ServiceParams{
			Storage: storage,
			Assets:  assetService,
			Logger:  logg,
		})
		if err != nil {
			return deps, fmt.Errorf("qr codes: %w", err)
		}
		deps.QRCodes = qrService

		genaiClient, err := genai.NewClient(ctx, cfg.GenAI, logg)
		if err != nil {
			logg.Warn(ctx, fmt.Sprintf("genai unavailable, generators disabled: %v", err))
		} else {
			generatorService, err := generators.NewService(generators.ServiceParams{
				Text:    genaiClient,
				Images:  genaiClient,
				Storage: storage,
				Assets:  assetService,
				Logger:  logg,
			})
			if err != nil {
				return deps, fmt.Errorf("generators: %w", err)
			}
			deps.Generators = generatorService
		}
	}

	domainClient, err := domains.NewClient(cfg.Domains)
	if err != nil {
		logg.Warn(ctx, fmt.Sprintf("domain provider unavailable: %v", err))
	} else {
		deps.Domains = domainClient
	}

	return deps, nil
}
