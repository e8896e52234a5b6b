package ledger

import (
	"time"

	"ocru/internal/models"
	"ocru/internal/services/gateway"
)

// DepositInput asks for a top-up through one provider. Currency may be left
// empty, in which case the provider's currency is used.
type DepositInput struct {
	UserID    string
	Email     string
	Amount    int64
	Currency  string
	Provider  string
	IPAddress string
}

// PurchaseInput asks for a token package through one provider.
type PurchaseInput struct {
	UserID      string
	Email       string
	PackageSlug string
	Provider    string
	PromoCode   string
	IPAddress   string
}

// PendingResult is the stored transaction plus what the client needs to pay.
type PendingResult struct {
	Transaction *models.Transaction
	Checkout    *gateway.Checkout
}

// Config tunes the ledger.
type Config struct {
	WalletCacheTTL time.Duration
}
