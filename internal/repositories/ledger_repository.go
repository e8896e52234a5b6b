package repositories

import (
	"context"
	"time"

	"ocru/internal/models"
)

// LedgerRepository covers transactions, wallets and the catalogue rows the
// ledger reads while creating or settling them.
type LedgerRepository interface {
	// Transactions
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	GetTransactionForUpdate(ctx context.Context, id string) (*models.Transaction, error)
	GetUserTransaction(ctx context.Context, id, userID string) (*models.Transaction, error)
	FindByProviderRef(ctx context.Context, provider, ref string) (*models.Transaction, error)
	FindByMatchKey(ctx context.Context, provider, matchKey string) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, fields map[string]interface{}) error
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, int64, error)
	ExpirePending(ctx context.Context, cutoff time.Time) (int64, error)

	// Wallets
	GetCurrencyByCode(ctx context.Context, code string) (*models.Currency, error)
	CreditWallet(ctx context.Context, userID, currencyID string, amount int64) error
	ListWallets(ctx context.Context, userID string) ([]models.Wallet, error)

	// Catalogue
	GetActivePackage(ctx context.Context, slug string) (*models.TokenPackage, error)
	GetPackage(ctx context.Context, id string) (*models.TokenPackage, error)
	ListActivePackages(ctx context.Context) ([]models.TokenPackage, error)
	GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error)
	CreateTokenBalance(ctx context.Context, balance *models.TokenBalance) error

	// ExecuteInTransaction runs fn against a repository bound to one
	// database transaction. Returning an error rolls everything back.
	ExecuteInTransaction(ctx context.Context, fn func(LedgerRepository) error) error
}
