package handlers

import (
	"strings"

	"ocru/internal/models"
	"ocru/internal/services/currency"
	"ocru/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type RateHandler struct {
	rates  currency.Service
	logger *zap.Logger
}

func NewRateHandler(rates currency.Service, logger *zap.Logger) *RateHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateHandler{rates: rates, logger: logger.Named("rates")}
}

// ExchangeRate answers GET /api/exchange-rate?from=USD&to=VND&amount=10.
// Without from/to it lists every latest USD rate.
func (h *RateHandler) ExchangeRate(c *fiber.Ctx) error {
	from := strings.ToUpper(c.Query("from", models.BaseCurrency))
	to := strings.ToUpper(c.Query("to"))
	if to == "" {
		rates, err := h.rates.LatestRates(c.UserContext())
		if err != nil {
			return writeError(c, h.logger, err)
		}
		return response.Success(c, rates)
	}

	rate, err := h.rates.Rate(c.UserContext(), from, to)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	out := fiber.Map{"from": from, "to": to, "rate": rate}

	if raw := c.Query("amount"); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return response.BadRequest(c, "amount must be a number")
		}
		converted, err := h.rates.Convert(c.UserContext(), amount, from, to)
		if err != nil {
			return writeError(c, h.logger, err)
		}
		out["amount"] = amount
		out["converted"] = converted
	}
	return response.Success(c, out)
}

// SyncRates triggers a refresh outside the schedule.
func (h *RateHandler) SyncRates(c *fiber.Ctx) error {
	n, err := h.rates.Refresh(c.UserContext())
	if err != nil {
		h.logger.Error("manual rate sync failed", zap.Error(err))
		return response.Error(c, fiber.StatusBadGateway, "rate sync failed")
	}
	return response.Success(c, fiber.Map{"updated": n})
}
