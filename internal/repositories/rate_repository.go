package repositories

import (
	"context"

	"ocru/internal/models"
)

// RateRepository stores the append-only USD rate history.
type RateRepository interface {
	GetLatestRate(ctx context.Context, toCode string) (*models.ConversionRate, error)
	ListLatestRates(ctx context.Context) ([]models.ConversionRate, error)
	RateHistory(ctx context.Context, toCode string) ([]models.ConversionRate, error)
	// ReplaceLatest demotes the current latest row of every code in rates
	// and inserts the new rows, all in one database transaction.
	ReplaceLatest(ctx context.Context, rates []models.ConversionRate) error
	ListCurrencies(ctx context.Context) ([]models.Currency, error)
	GetCurrencyByCode(ctx context.Context, code string) (*models.Currency, error)
	ListWallets(ctx context.Context, userID string) ([]models.Wallet, error)
}
