package routes

import (
	"net/http/httptest"
	"testing"

	"ocru/internal/handlers"
	"ocru/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := fiber.New()
	SetupRoutes(app, Handlers{
		Payment: handlers.NewPaymentHandler(nil, nil, nil, nil),
		Billing: handlers.NewBillingHandler(nil, nil, nil, nil, nil),
		Rates:   handlers.NewRateHandler(nil, nil),
		Health:  handlers.NewHealthHandler(nil),
		Auth:    middleware.NewAuthMiddleware("secret", nil),
	})

	tests := []struct {
		method, path string
		status       int
	}{
		{"GET", "/health", fiber.StatusOK},
		{"POST", "/payment/deposit", fiber.StatusUnauthorized},
		{"GET", "/payment/status/abc", fiber.StatusUnauthorized},
		{"GET", "/api/billing/wallet", fiber.StatusUnauthorized},
		{"POST", "/api/billing/consume", fiber.StatusUnauthorized},
		{"POST", "/api/cron/sync-rates", fiber.StatusServiceUnavailable},
		{"GET", "/metrics", fiber.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(tt.method, tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
