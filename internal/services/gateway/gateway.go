// Package gateway integrates the external payment providers. Each adapter
// creates a provider checkout and authenticates the provider's webhook.
package gateway

import (
	"context"
	"net/http"

	"ocru/internal/models"
)

// Adapter is one payment provider.
type Adapter interface {
	// Provider returns the provider code stored on transactions.
	Provider() string
	// Currency is the currency the provider charges in.
	Currency() string
	// MinAmount is the smallest accepted amount in minor units.
	MinAmount() int64
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	// Verify authenticates an inbound webhook and decodes it. It returns
	// ErrVerificationFailed for bad credentials and ErrProviderMisconfigured
	// when the secret needed to check them is absent.
	Verify(ctx context.Context, req WebhookRequest) (*Notification, error)
}

// CheckoutRequest carries the server-generated transaction id so providers
// that echo custom data can return it in their webhook.
type CheckoutRequest struct {
	TransactionID string
	UserID        string
	Email         string
	Amount        int64
	Description   string
}

type Checkout struct {
	URL            string
	CorrelationKey string
	// MatchKey is set by providers matched on normalized free text.
	MatchKey string
	Extra    map[string]interface{}
	Raw      models.JSON
}

type WebhookRequest struct {
	Body    []byte
	Headers http.Header
	IP      string
}

// Outcome is what a verified notification asks the ledger to do.
type Outcome string

const (
	OutcomePaid    Outcome = "paid"
	OutcomeFailed  Outcome = "failed"
	OutcomeIgnored Outcome = "ignored"
	OutcomeInvalid Outcome = "invalid"
)

// Notification is a verified, decoded webhook.
type Notification struct {
	Provider  string
	EventType string
	Outcome   Outcome
	// CorrelationKey is matched against the stored provider reference.
	CorrelationKey string
	// MatchKey is matched against the stored normalized memo.
	MatchKey string
	// TransactionID is present when the provider echoes our custom data.
	TransactionID string
	// UserID allows creating the transaction from the webhook when the
	// checkout response was lost.
	UserID       string
	Amount       int64
	Currency     string
	GatewayTxnID string
	// RequireAmountMatch makes the ingester compare Amount with the stored
	// amount before settling.
	RequireAmountMatch bool
	// Recoverable marks paid notifications that may create a missing
	// transaction.
	Recoverable bool
	Raw         models.JSON
}
