package repositories

import (
	"context"
	"time"

	"ocru/internal/models"
)

// UsageRepository backs token consumption and the billing settings.
type UsageRepository interface {
	GetBillingSettings(ctx context.Context, userID string) (*models.BillingSettings, error)
	SetPaygEnabled(ctx context.Context, userID string, enabled bool) error

	// LockUsableTokenBalance returns the oldest non-exhausted, unexpired
	// balance holding at least in input and out output tokens, row-locked.
	LockUsableTokenBalance(ctx context.Context, userID string, in, out int64, now time.Time) (*models.TokenBalance, error)
	DeductTokens(ctx context.Context, balance *models.TokenBalance, in, out int64) error
	ListActiveTokenBalances(ctx context.Context, userID string, now time.Time) ([]models.TokenBalance, error)

	GetFeatureRate(ctx context.Context, feature string) (*models.FeatureRate, error)
	GetCurrencyByCode(ctx context.Context, code string) (*models.Currency, error)
	LockWallet(ctx context.Context, userID, currencyID string) (*models.Wallet, error)
	DebitWallet(ctx context.Context, walletID string, amount int64) error

	CreateUsageLog(ctx context.Context, log *models.UsageLog) error
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	ListUsage(ctx context.Context, userID string, limit, offset int) ([]models.UsageLog, int64, error)

	ExecuteInTransaction(ctx context.Context, fn func(UsageRepository) error) error
}
