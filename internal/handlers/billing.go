package handlers

import (
	"ocru/internal/models"
	"ocru/internal/services/currency"
	"ocru/internal/services/ledger"
	"ocru/internal/services/usage"
	"ocru/internal/utils"
	"ocru/internal/utils/response"
	"ocru/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultPageSize = 20

type BillingHandler struct {
	ledger    ledger.Service
	usage     usage.Service
	rates     currency.Service
	providers []string
	logger    *zap.Logger
}

func NewBillingHandler(l ledger.Service, u usage.Service, rates currency.Service, providers []string, logger *zap.Logger) *BillingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingHandler{ledger: l, usage: u, rates: rates, providers: providers, logger: logger.Named("billing")}
}

type walletView struct {
	Currency       string `json:"currency"`
	MinorUnits     int32  `json:"minor_units"`
	Balance        int64  `json:"balance"`
	TotalDeposited int64  `json:"total_deposited"`
	TotalSpent     int64  `json:"total_spent"`
}

type walletResponse struct {
	Wallets  []walletView    `json:"wallets"`
	TotalUSD decimal.Decimal `json:"total_usd"`
	Tokens   *usage.Summary  `json:"tokens"`
}

// Wallet returns balances per currency, their USD total and the usable
// token packages.
func (h *BillingHandler) Wallet(c *fiber.Ctx) error {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}
	ctx, userID := c.UserContext(), claims.UserIdentity()

	wallets, err := h.ledger.Wallets(ctx, userID)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	total, err := h.rates.AggregateUSD(ctx, userID)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	tokens, err := h.usage.Summary(ctx, userID)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	views := make([]walletView, 0, len(wallets))
	for _, w := range wallets {
		v := walletView{Balance: w.Balance, TotalDeposited: w.TotalDeposited, TotalSpent: w.TotalSpent}
		if w.Currency != nil {
			v.Currency = w.Currency.Code
			v.MinorUnits = w.Currency.MinorUnits
		}
		views = append(views, v)
	}
	return response.Success(c, walletResponse{Wallets: views, TotalUSD: total, Tokens: tokens})
}

func (h *BillingHandler) Packages(c *fiber.Ctx) error {
	packages, err := h.ledger.Packages(c.UserContext())
	if err != nil {
		return writeError(c, h.logger, err)
	}
	if packages == nil {
		packages = []models.TokenPackage{}
	}
	return response.Success(c, packages)
}

// Purchase starts a token package checkout.
func (h *BillingHandler) Purchase(c *fiber.Ctx) error {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	var input validation.PurchaseRequest
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request format")
	}
	if err := input.Validate(h.providers); err != nil {
		return writeError(c, h.logger, err)
	}

	res, err := h.ledger.CreatePendingPackagePurchase(c.UserContext(), ledger.PurchaseInput{
		UserID:      claims.UserIdentity(),
		Email:       claims.Email,
		PackageSlug: input.Package,
		Provider:    input.Provider,
		PromoCode:   input.PromoCode,
		IPAddress:   c.IP(),
	})
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return response.Created(c, newDepositResponse(res))
}

func (h *BillingHandler) Consume(c *fiber.Ctx) error {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	var input validation.ConsumeRequest
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request format")
	}
	if err := input.Validate(); err != nil {
		return writeError(c, h.logger, err)
	}

	res, err := h.usage.Consume(c.UserContext(), usage.ConsumeInput{
		UserID:       claims.UserIdentity(),
		Feature:      input.Feature,
		InputTokens:  input.InputTokens,
		OutputTokens: input.OutputTokens,
		InputMeta:    input.InputMeta,
		OutputMeta:   input.OutputMeta,
		IPAddress:    c.IP(),
		UserAgent:    c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return response.Success(c, res)
}

func (h *BillingHandler) SetPayg(c *fiber.Ctx) error {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	var input validation.PaygRequest
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request format")
	}
	if err := input.Validate(); err != nil {
		return writeError(c, h.logger, err)
	}

	if err := h.usage.SetPaygEnabled(c.UserContext(), claims.UserIdentity(), *input.Enabled); err != nil {
		return writeError(c, h.logger, err)
	}
	return response.Success(c, fiber.Map{"payg_enabled": *input.Enabled})
}

func (h *BillingHandler) Transactions(c *fiber.Ctx) error {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	page := utils.GetPagination(c, 1, defaultPageSize)
	txs, total, err := h.ledger.History(c.UserContext(), claims.UserIdentity(), page.Limit, page.Offset)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	page.SetTotal(total)
	return response.Success(c, utils.NewPaginatedResponse(txs, page))
}

func (h *BillingHandler) Usage(c *fiber.Ctx) error {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	page := utils.GetPagination(c, 1, defaultPageSize)
	logs, total, err := h.usage.History(c.UserContext(), claims.UserIdentity(), page.Limit, page.Offset)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	if logs == nil {
		logs = []models.UsageLog{}
	}
	page.SetTotal(total)
	return response.Success(c, utils.NewPaginatedResponse(logs, page))
}
