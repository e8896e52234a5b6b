package handlers

import (
	"errors"
	"net/http"
	"time"

	"ocru/internal/services/gateway"
	"ocru/internal/services/ledger"
	"ocru/internal/services/webhook"
	"ocru/internal/utils"
	"ocru/internal/utils/response"
	"ocru/internal/validation"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	ledger    ledger.Service
	webhooks  webhook.Service
	providers []string
	logger    *zap.Logger
}

func NewPaymentHandler(l ledger.Service, webhooks webhook.Service, providers []string, logger *zap.Logger) *PaymentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentHandler{ledger: l, webhooks: webhooks, providers: providers, logger: logger.Named("payment")}
}

type depositResponse struct {
	TransactionID string                 `json:"transaction_id"`
	Status        string                 `json:"status"`
	Amount        int64                  `json:"amount"`
	Currency      string                 `json:"currency"`
	Provider      string                 `json:"provider"`
	PaymentURL    string                 `json:"payment_url,omitempty"`
	Details       map[string]interface{} `json:"details,omitempty"`
}

// CreateDeposit starts a wallet top-up.
func (h *PaymentHandler) CreateDeposit(c *fiber.Ctx) error {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	var input validation.DepositRequest
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request format")
	}
	if err := input.Validate(h.providers); err != nil {
		return writeError(c, h.logger, err)
	}

	res, err := h.ledger.CreatePendingDeposit(c.UserContext(), ledger.DepositInput{
		UserID:    claims.UserIdentity(),
		Email:     claims.Email,
		Amount:    input.Amount,
		Currency:  input.Currency,
		Provider:  input.Provider,
		IPAddress: c.IP(),
	})
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return response.Created(c, newDepositResponse(res))
}

func newDepositResponse(res *ledger.PendingResult) depositResponse {
	tx := res.Transaction
	return depositResponse{
		TransactionID: tx.ID,
		Status:        tx.Status,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Provider:      tx.ProviderName(),
		PaymentURL:    tx.PaymentURL,
		Details:       res.Checkout.Extra,
	}
}

type statusResponse struct {
	TransactionID string     `json:"transaction_id"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	Provider      string     `json:"provider,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// GetStatus is polled by the client while the payer completes the checkout.
func (h *PaymentHandler) GetStatus(c *fiber.Ctx) error {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return response.Unauthorized(c, "invalid claims")
	}

	tx, err := h.ledger.GetStatus(c.UserContext(), c.Params("id"), claims.UserIdentity())
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return response.Success(c, statusResponse{
		TransactionID: tx.ID,
		Type:          tx.Type,
		Status:        tx.Status,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Provider:      tx.ProviderName(),
		CreatedAt:     tx.CreatedAt,
		CompletedAt:   tx.CompletedAt,
	})
}

// Webhook returns the endpoint for one provider. Once the call is
// authenticated it is always acknowledged so the provider stops retrying.
func (h *PaymentHandler) Webhook(provider string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		headers := make(http.Header)
		for k, vs := range c.GetReqHeaders() {
			for _, v := range vs {
				headers.Add(k, v)
			}
		}

		_, err := h.webhooks.Ingest(c.UserContext(), provider, gateway.WebhookRequest{
			Body:    append([]byte(nil), c.Body()...),
			Headers: headers,
			IP:      c.IP(),
		})
		switch {
		case err == nil:
			return response.Ack(c)
		case errors.Is(err, gateway.ErrVerificationFailed):
			return response.Unauthorized(c, "invalid signature")
		case errors.Is(err, gateway.ErrInvalidPayload):
			return response.BadRequest(c, "missing required fields")
		case errors.Is(err, gateway.ErrProviderMisconfigured):
			return response.ServerError(c, "misconfigured")
		case errors.Is(err, gateway.ErrUnknownProvider):
			return response.NotFound(c, "unknown provider")
		}
		h.logger.Error("webhook ingestion failed", zap.String("provider", provider), zap.Error(err))
		return response.Ack(c)
	}
}
