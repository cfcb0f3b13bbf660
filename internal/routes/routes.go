package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/vizion-pay/vizion_core/internal/config"
	"github.com/vizion-pay/vizion_core/internal/ledger"
	"github.com/vizion-pay/vizion_core/internal/middleware"
	"github.com/vizion-pay/vizion_core/internal/payments"
	"github.com/vizion-pay/vizion_core/internal/provider"
	"github.com/vizion-pay/vizion_core/internal/settlement"
	"github.com/vizion-pay/vizion_core/internal/token"
	"github.com/vizion-pay/vizion_core/internal/transaction"
	"github.com/vizion-pay/vizion_core/internal/wallet"
	"github.com/vizion-pay/vizion_core/internal/webhook"
	"github.com/vizion-pay/vizion_core/internal/withdrawal"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Runtime holds the background components routes.Setup starts wiring for.
// The server owns their lifecycle.
type Runtime struct {
	Settlement *settlement.Runner
	Dispatcher *webhook.Dispatcher
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (*Runtime, error) {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	// Repositories: Postgres when a pool is present, in-memory in dev.
	var (
		txnRepo        transaction.Repository
		walletRepo     wallet.Repository
		tokenRepo      token.Repository
		endpointRepo   webhook.Repository
		withdrawalRepo withdrawal.Repository
		ledgerBackend  ledger.Ledger
	)
	if d.DB != nil {
		txnRepo = transaction.NewPostgresRepository(d.DB)
		walletRepo = wallet.NewPostgresRepository(d.DB)
		tokenRepo = token.NewPostgresRepository(d.DB)
		endpointRepo = webhook.NewPostgresRepository(d.DB)
		withdrawalRepo = withdrawal.NewPostgresRepository(d.DB)
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
	} else {
		txnRepo = transaction.NewMemoryRepository()
		walletRepo = wallet.NewMemoryRepository()
		tokenRepo = token.NewMemoryRepository()
		endpointRepo = webhook.NewMemoryRepository()
		withdrawalRepo = withdrawal.NewMemoryRepository()
		ledgerBackend = ledger.NewInMemory(walletRepo, txnRepo)
	}

	// Services
	dispatcher := webhook.NewDispatcher(endpointRepo, d.Logger, d.Cfg.WebhookTimeout, d.Cfg.WebhookAttempts, d.Cfg.WebhookBackoff)
	walletSvc := wallet.NewService(walletRepo)
	tokenSvc := token.NewService(tokenRepo, d.Logger)
	webhookSvc := webhook.NewService(endpointRepo)
	orchestrator := payments.NewService(payments.Options{
		SupportedCurrencies: d.Cfg.SupportedCurrencies,
		FeePct:              d.Cfg.FeePct,
		PlatformFeePct:      d.Cfg.PlatformFeePct,
		ProviderTimeout:     d.Cfg.ProviderTimeout,
	}, txnRepo, walletRepo, ledgerBackend, provider.DefaultRouter(), dispatcher, d.Logger)
	withdrawalSvc := withdrawal.NewService(withdrawalRepo, walletRepo, orchestrator, d.Cfg.PlatformOwnerID, d.Logger)

	// Handlers
	paymentHandler := payments.NewHandler(orchestrator)
	walletHandler := wallet.NewHandler(walletSvc)
	tokenHandler := token.NewHandler(tokenSvc)
	webhookHandler := webhook.NewHandler(webhookSvc)
	withdrawalHandler := withdrawal.NewHandler(withdrawalSvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Token bootstrap sits behind the admin key, outside bearer auth.
	RegisterTokenRoutes(api, tokenHandler, middleware.AdminKey(d.Cfg.AdminKey))

	// Without Redis (dev only) unsafe requests run without replay protection.
	idem := func(c *fiber.Ctx) error { return c.Next() }
	if d.Cache != nil {
		idem = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}
	rateLimiter := middleware.PaymentRateLimit(d.Cache, d.Cfg.PaymentsPerMinute)

	RegisterPaymentRoutes(api, paymentHandler, tokenSvc, idem, rateLimiter)
	RegisterWalletRoutes(api, walletHandler, tokenSvc, idem)
	RegisterWebhookRoutes(api, webhookHandler, tokenSvc)
	RegisterWithdrawalRoutes(api, withdrawalHandler, tokenSvc, idem)

	runner := settlement.NewRunner(walletRepo, ledgerBackend, d.Cfg.SettlementInterval, d.Logger)
	return &Runtime{Settlement: runner, Dispatcher: dispatcher}, nil
}
