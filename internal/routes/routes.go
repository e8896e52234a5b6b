// Package routes wires the handlers onto the fiber app.
package routes

import (
	"time"

	"ocru/internal/handlers"
	"ocru/internal/middleware"
	"ocru/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Handlers groups everything SetupRoutes mounts.
type Handlers struct {
	Payment *handlers.PaymentHandler
	Billing *handlers.BillingHandler
	Rates   *handlers.RateHandler
	Health  *handlers.HealthHandler
	Auth    *middleware.AuthMiddleware
	// CronSecret guards POST /api/cron/sync-rates.
	CronSecret string
	// Metrics serves /metrics when set.
	Metrics fiber.Handler
}

func perIPLimiter(max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "Too many requests. Please try again later.",
			})
		},
	})
}

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, h Handlers) {
	app.Get("/health", h.Health.Check)
	if h.Metrics != nil {
		app.Get("/metrics", h.Metrics)
	}

	payment := app.Group("/payment")
	payment.Post("/deposit", perIPLimiter(10, time.Minute), h.Auth.Handler, h.Payment.CreateDeposit)
	payment.Get("/status/:id", h.Auth.Handler, h.Payment.GetStatus)

	hooks := payment.Group("/webhook", perIPLimiter(120, time.Minute))
	hooks.Post("/payos", h.Payment.Webhook(models.ProviderPayOS))
	hooks.Post("/sepay", h.Payment.Webhook(models.ProviderSePay))
	hooks.Post("/lemon-squeezy", h.Payment.Webhook(models.ProviderLemonSqueezy))
	hooks.Post("/stripe", h.Payment.Webhook(models.ProviderStripe))

	api := app.Group("/api")
	api.Get("/exchange-rate", h.Rates.ExchangeRate)
	api.Post("/cron/sync-rates", middleware.CronSecret(h.CronSecret), h.Rates.SyncRates)

	billing := api.Group("/billing", h.Auth.Handler)
	billing.Get("/wallet", h.Billing.Wallet)
	billing.Get("/packages", h.Billing.Packages)
	billing.Post("/purchase", perIPLimiter(10, time.Minute), h.Billing.Purchase)
	billing.Post("/consume", h.Billing.Consume)
	billing.Put("/payg", h.Billing.SetPayg)
	billing.Get("/transactions", h.Billing.Transactions)
	billing.Get("/usage", h.Billing.Usage)
}
