package handlers

import (
	"errors"

	"ocru/internal/services/currency"
	"ocru/internal/services/gateway"
	"ocru/internal/services/ledger"
	"ocru/internal/services/usage"
	"ocru/internal/utils/response"
	"ocru/internal/validation"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// writeError maps service errors onto HTTP statuses. Anything unrecognised
// is logged and reported as a bare 500.
func writeError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	var (
		fieldErrs validation.Errors
		ledgerErr *ledger.ValidationError
		usageErr  *usage.ValidationError
	)
	switch {
	case errors.As(err, &fieldErrs):
		return response.ValidationError(c, fieldErrs)
	case errors.As(err, &ledgerErr):
		return response.ValidationError(c, map[string]string{ledgerErr.Field: ledgerErr.Message})
	case errors.As(err, &usageErr):
		return response.ValidationError(c, map[string]string{usageErr.Field: usageErr.Message})

	case errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, ledger.ErrPackageNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, ledger.ErrInvalidPromoCode),
		errors.Is(err, ledger.ErrCurrencyNotFound),
		errors.Is(err, usage.ErrUnknownFeature):
		return response.BadRequest(c, err.Error())

	case errors.Is(err, usage.ErrInsufficientBalance):
		return response.Error(c, fiber.StatusPaymentRequired, err.Error())
	case errors.Is(err, currency.ErrRateNotFound):
		return response.Error(c, fiber.StatusServiceUnavailable, "exchange rate not available yet, try again later")

	case errors.Is(err, gateway.ErrProviderMisconfigured):
		logger.Error("payment provider misconfigured", zap.String("path", c.Path()))
		return response.ServerError(c, "payment provider misconfigured")
	case errors.Is(err, gateway.ErrProviderRequestFailed):
		logger.Warn("payment provider request failed", zap.String("path", c.Path()), zap.Error(err))
		return response.Error(c, fiber.StatusBadGateway, "payment provider unavailable")
	}

	logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return response.ServerError(c, "internal server error")
}
