package ledger

import (
	"context"

	"ocru/internal/models"
	"ocru/internal/services/gateway"

	"github.com/shopspring/decimal"
)

// Service owns transactions and wallets.
type Service interface {
	CreatePendingDeposit(ctx context.Context, in DepositInput) (*PendingResult, error)
	CreatePendingPackagePurchase(ctx context.Context, in PurchaseInput) (*PendingResult, error)

	// Settle marks a pending transaction paid and credits it in one
	// database transaction. It returns false when the transaction was
	// already terminal.
	Settle(ctx context.Context, transactionID string, gatewayResponse models.JSON, gatewayTxnID string) (bool, error)
	// Fail marks a pending transaction failed. It returns false when the
	// transaction was already terminal.
	Fail(ctx context.Context, transactionID string, gatewayResponse models.JSON) (bool, error)

	GetStatus(ctx context.Context, transactionID, userID string) (*models.Transaction, error)
	History(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, int64, error)
	Wallets(ctx context.Context, userID string) ([]models.Wallet, error)
	Packages(ctx context.Context) ([]models.TokenPackage, error)

	// FindForNotification maps a verified webhook to a stored transaction.
	FindForNotification(ctx context.Context, n *gateway.Notification) (*models.Transaction, error)
	// RecoverDeposit creates the pending deposit a paid webhook refers to
	// when the checkout response never reached us.
	RecoverDeposit(ctx context.Context, n *gateway.Notification) (*models.Transaction, error)
}

// Converter prices packages in the provider's currency.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}
