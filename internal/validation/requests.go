package validation

import (
	"context"

	"ocru/internal/models"
)

// DepositRequest is the body of POST /payment/deposit.
type DepositRequest struct {
	Amount   int64  `json:"amount" validate:"gt=0"`
	Currency string `json:"currency" validate:"omitempty,max=8"`
	Provider string `json:"provider" validate:"required,provider"`
}

func (r DepositRequest) Validate(providers []string) error {
	return check(withProviders(providers), r)
}

// PurchaseRequest is the body of POST /api/billing/purchase.
type PurchaseRequest struct {
	Package   string `json:"package" validate:"required,max=64"`
	Provider  string `json:"provider" validate:"required,provider"`
	PromoCode string `json:"promo_code" validate:"max=32"`
}

func (r PurchaseRequest) Validate(providers []string) error {
	return check(withProviders(providers), r)
}

// ConsumeRequest is the body of POST /api/billing/consume. At least one
// of the token counts must be positive.
type ConsumeRequest struct {
	Feature      string      `json:"feature" validate:"required,max=64"`
	InputTokens  int64       `json:"input_tokens" validate:"gte=0"`
	OutputTokens int64       `json:"output_tokens" validate:"gte=0"`
	InputMeta    models.JSON `json:"input_meta"`
	OutputMeta   models.JSON `json:"output_meta"`
}

func (r ConsumeRequest) Validate() error {
	return check(context.Background(), r)
}

// PaygRequest is the body of PUT /api/billing/payg.
type PaygRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

func (r PaygRequest) Validate() error {
	return check(context.Background(), r)
}

func withProviders(providers []string) context.Context {
	return context.WithValue(context.Background(), providersKey{}, providers)
}
