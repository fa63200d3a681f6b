package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/acari-app/acari-backend/api/controllers"
	webhookcontrollers "github.com/acari-app/acari-backend/api/controllers/webhooks"
	"github.com/acari-app/acari-backend/api/middleware"
	"github.com/acari-app/acari-backend/internal/assets"
	"github.com/acari-app/acari-backend/internal/auth"
	"github.com/acari-app/acari-backend/internal/blog"
	"github.com/acari-app/acari-backend/internal/businesses"
	"github.com/acari-app/acari-backend/internal/emails"
	"github.com/acari-app/acari-backend/internal/signupcodes"
	"github.com/acari-app/acari-backend/internal/subscriptions"
	"github.com/acari-app/acari-backend/internal/templates"
	"github.com/acari-app/acari-backend/pkg/auth/session"
	"github.com/acari-app/acari-backend/pkg/config"
	"github.com/acari-app/acari-backend/pkg/domains"
	"github.com/acari-app/acari-backend/pkg/logger"
	pkgredis "github.com/acari-app/acari-backend/pkg/redis"
)

// RedisStore is the Redis surface the HTTP middleware needs.
type RedisStore interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type SignupCodes interface {
	Send(ctx context.Context, email string) (*signupcodes.SendResult, error)
}

type Mailer interface {
	SendWelcome(ctx context.Context, w emails.Welcome) error
	SendAdminNotification(ctx context.Context, n emails.AdminNotification) error
}

type DomainChecker interface {
	Check(ctx context.Context, domain string) (*domains.Availability, error)
}

// Dependencies carries everything NewRouter mounts. Nil services produce
// handlers that answer with an internal error instead of panicking.
type Dependencies struct {
	Pingers        map[string]controllers.Pinger
	Redis          RedisStore
	Sessions       session.Checker
	Admins         middleware.AdminChecker
	Auth           auth.Service
	SignupCodes    SignupCodes
	Mailer         Mailer
	Subscriptions  subscriptions.Service
	Generators     controllers.GeneratorService
	Assets         assets.Service
	QRCodes        controllers.QRCodeService
	Templates      templates.Service
	Blog           blog.Service
	Businesses     businesses.Service
	Domains        DomainChecker
	Reminders      controllers.ReminderService
	StripeWebhooks webhookcontrollers.StripeWebhookService
	StripeVerifier webhookcontrollers.StripeEventVerifier
	StripeEvents   webhookcontrollers.StripeEventLedger
	DeadLetters    controllers.DeadLetterLister
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	authn := middleware.Auth(cfg.JWT, deps.Sessions, logg)
	idempotency := middleware.Idempotency(deps.Redis, logg)

	r.Get("/config.json", controllers.RuntimeConfig(cfg.Public))

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.Pingers, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhooks, deps.StripeVerifier, deps.StripeEvents, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, deps.Redis, logg), idempotency).Post("/register", controllers.AuthRegister(deps.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, deps.Redis, logg)).Post("/signup-code", controllers.SignupCodeSend(deps.SignupCodes, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
		r.With(authn).Post("/logout", controllers.AuthLogout(deps.Auth, logg))
	})

	// Public catalog reads.
	r.Route("/api/v1/templates", func(r chi.Router) {
		r.Get("/", controllers.TemplateList(deps.Templates, logg))
		r.Get("/{slug}", controllers.TemplateGet(deps.Templates, logg))
	})
	r.Route("/api/v1/blog", func(r chi.Router) {
		r.Get("/", controllers.BlogList(deps.Blog, logg))
		r.Get("/{slug}", controllers.BlogGet(deps.Blog, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authn)
		r.Use(idempotency)

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", controllers.SubscriptionGet(deps.Subscriptions, logg))
			r.Post("/update", controllers.SubscriptionUpdate(deps.Subscriptions, logg))
			r.Post("/cancel", controllers.SubscriptionCancel(deps.Subscriptions, logg))
		})

		r.Route("/generators", func(r chi.Router) {
			r.Use(middleware.RateLimit("generators", cfg.GenAI.RateLimit, cfg.GenAI.RateWindow, deps.Redis, logg))
			r.Post("/business-plan", controllers.GenerateBusinessPlan(deps.Generators, logg))
			r.Post("/website-content", controllers.GenerateWebsiteContent(deps.Generators, logg))
			r.Post("/logos", controllers.GenerateLogos(deps.Generators, logg))
		})

		r.Route("/assets", func(r chi.Router) {
			r.Get("/", controllers.AssetList(deps.Assets, logg))
			r.Get("/{assetId}", controllers.AssetGet(deps.Assets, logg))
			r.Delete("/{assetId}", controllers.AssetDelete(deps.Assets, logg))
		})

		r.Route("/qrcodes", func(r chi.Router) {
			r.Post("/", controllers.QRCodeCreate(deps.QRCodes, logg))
			r.Post("/preview", controllers.QRCodePreview(deps.QRCodes, logg))
		})

		r.Route("/businesses", func(r chi.Router) {
			r.Get("/", controllers.BusinessList(deps.Businesses, logg))
			r.Post("/", controllers.BusinessCreate(deps.Businesses, logg))
			r.Get("/{businessId}", controllers.BusinessGet(deps.Businesses, logg))
			r.Patch("/{businessId}", controllers.BusinessUpdate(deps.Businesses, logg))
			r.Delete("/{businessId}", controllers.BusinessDelete(deps.Businesses, logg))
		})

		r.Get("/domains/check", controllers.DomainCheck(deps.Domains, logg))
		r.Post("/emails/welcome", controllers.SendWelcomeEmail(deps.Mailer, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(authn)
		r.Use(middleware.RequireAdmin(deps.Admins, logg))
		r.Use(idempotency)

		r.Route("/payment-failures", func(r chi.Router) {
			r.Get("/", controllers.AdminListPaymentFailures(deps.Reminders, logg))
			r.Post("/{failureId}/remind", controllers.AdminSendPaymentReminder(deps.Reminders, logg))
		})

		r.Post("/notifications", controllers.AdminSendNotification(deps.Mailer, logg))
		r.Get("/outbox/dead-letters", controllers.AdminListDeadLetters(deps.DeadLetters, logg))

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", controllers.AdminTemplateList(deps.Templates, logg))
			r.Post("/", controllers.AdminTemplateCreate(deps.Templates, logg))
			r.Post("/import", controllers.AdminTemplateImport(deps.Templates, logg))
			r.Get("/{templateId}", controllers.AdminTemplateGet(deps.Templates, logg))
			r.Patch("/{templateId}", controllers.AdminTemplateUpdate(deps.Templates, logg))
			r.Delete("/{templateId}", controllers.AdminTemplateDelete(deps.Templates, logg))
		})

		r.Route("/blog", func(r chi.Router) {
			r.Get("/", controllers.AdminBlogList(deps.Blog, logg))
			r.Post("/", controllers.AdminBlogCreate(deps.Blog, logg))
			r.Get("/{postId}", controllers.AdminBlogGet(deps.Blog, logg))
			r.Patch("/{postId}", controllers.AdminBlogUpdate(deps.Blog, logg))
			r.Delete("/{postId}", controllers.AdminBlogDelete(deps.Blog, logg))
		})
	})

	return r
}
