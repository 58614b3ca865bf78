package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/payguard/internal/apps"
	"github.com/congo-pay/payguard/internal/assetlinks"
	"github.com/congo-pay/payguard/internal/authorize"
	"github.com/congo-pay/payguard/internal/config"
	"github.com/congo-pay/payguard/internal/logging"
	"github.com/congo-pay/payguard/internal/metrics"
	"github.com/congo-pay/payguard/internal/middleware"
	"github.com/congo-pay/payguard/internal/notification"
	"github.com/congo-pay/payguard/internal/session"
	"github.com/congo-pay/payguard/internal/trust"
)

const idempotencyTTL = 24 * time.Hour

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// Registry receives application metrics. A fresh registry is used when nil.
	Registry *prometheus.Registry
	// Submitter signs approved transactions. Defaults to authorize.FakeSubmitter.
	Submitter authorize.Submitter
	// CertificateSource overrides the app registry as the source of signing
	// certificates.
	CertificateSource assetlinks.CertificateSource
	// Loader overrides the HTTP asset links loader.
	Loader assetlinks.Loader
}

// Runtime holds components that outlive route wiring and need shutdown.
type Runtime struct {
	Sessions *session.Manager
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (*Runtime, error) {
	if !d.Cfg.IsDevelopment() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	// Services
	trustMetrics := metrics.New(d.Registry)

	var appRepo apps.Repository
	if d.DB != nil {
		pgRepo := apps.NewPostgresRepository(d.DB)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure apps schema: %w", err)
		}
		appRepo = pgRepo
	} else {
		appRepo = apps.NewMemoryRepository()
	}

	certs := d.CertificateSource
	if certs == nil {
		certs = apps.NewCertificateSource(appRepo)
	}
	loader := d.Loader
	if loader == nil {
		loader = assetlinks.NewHTTPLoader(
			assetlinks.WithLoadTimeout(d.Cfg.VerifyTimeout),
			assetlinks.WithLoaderLogger(d.Logger),
		)
	}
	verifier := assetlinks.NewCachedVerifier(
		assetlinks.NewAppVerifier(certs, loader, d.Logger),
		d.Cache, d.Cfg.VerifyCacheTTL, d.Logger,
	)
	appSvc := apps.NewService(appRepo, verifier, d.Logger)

	resolver, err := trust.NewResolver(d.Cfg.SelfIdentity, verifier,
		trust.WithLogger(d.Logger),
		trust.WithMetrics(trustMetrics),
		trust.WithMaxConcurrentVerifications(int64(d.Cfg.MaxVerifications)),
	)
	if err != nil {
		return nil, err
	}

	notifier := notification.Multi{notification.NewLoggerNotifier(d.Logger)}
	if d.Cache != nil {
		notifier = append(notifier, notification.NewRedisNotifier(d.Cache, ""))
	}
	sessions := session.NewManager(resolver, authorize.NewService(d.Submitter, d.Logger),
		session.WithTTL(d.Cfg.SessionTTL),
		session.WithNotifier(notifier),
		session.WithLogger(d.Logger),
		session.WithMetrics(trustMetrics),
	)

	// Health and metrics
	RegisterHealthRoutes(app, d, sessions)
	RegisterMetricsRoute(app, d.Registry)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c.UserContext()),
			"self":       d.Cfg.SelfIdentity,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterResolutionRoutes(api,
		session.NewHandler(sessions),
		middleware.ResolutionRateLimit(d.Cache, d.Cfg.ResolutionRateLimit, d.Logger),
		middleware.Idempotency(d.Cache, idempotencyTTL, d.Logger),
	)
	RegisterAppRoutes(api, apps.NewHandler(appSvc))

	return &Runtime{Sessions: sessions}, nil
}
