package repositories

import (
	"context"
	"errors"
	"fmt"

	"ocru/internal/models"

	"gorm.io/gorm"
)

type rateRepository struct {
	db *gorm.DB
}

func NewRateRepository(db *gorm.DB) RateRepository {
	return &rateRepository{db: db}
}

func (r *rateRepository) GetLatestRate(ctx context.Context, toCode string) (*models.ConversionRate, error) {
	var rate models.ConversionRate
	err := r.db.WithContext(ctx).
		Where("from_code = ? AND to_code = ? AND is_latest = ?", models.BaseCurrency, toCode, true).
		Order("created_at DESC").
		First(&rate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRateNotFound
		}
		return nil, fmt.Errorf("failed to get rate: %w", err)
	}
	return &rate, nil
}

func (r *rateRepository) ListLatestRates(ctx context.Context) ([]models.ConversionRate, error) {
	var rates []models.ConversionRate
	err := r.db.WithContext(ctx).
		Where("is_latest = ?", true).
		Order("to_code ASC").
		Find(&rates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list rates: %w", err)
	}
	return rates, nil
}

func (r *rateRepository) RateHistory(ctx context.Context, toCode string) ([]models.ConversionRate, error) {
	var rates []models.ConversionRate
	err := r.db.WithContext(ctx).
		Where("to_code = ?", toCode).
		Order("created_at ASC").
		Find(&rates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get rate history: %w", err)
	}
	return rates, nil
}

func (r *rateRepository) ReplaceLatest(ctx context.Context, rates []models.ConversionRate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rates {
			rate := rates[i]
			rate.IsLatest = true
			if rate.FromCode == "" {
				rate.FromCode = models.BaseCurrency
			}
			err := tx.Model(&models.ConversionRate{}).
				Where("from_code = ? AND to_code = ? AND is_latest = ?", rate.FromCode, rate.ToCode, true).
				Update("is_latest", false).Error
			if err != nil {
				return fmt.Errorf("failed to demote rate %s: %w", rate.ToCode, err)
			}
			if err := tx.Create(&rate).Error; err != nil {
				return fmt.Errorf("failed to insert rate %s: %w", rate.ToCode, err)
			}
		}
		return nil
	})
}

func (r *rateRepository) ListCurrencies(ctx context.Context) ([]models.Currency, error) {
	var currencies []models.Currency
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&currencies).Error; err != nil {
		return nil, fmt.Errorf("failed to list currencies: %w", err)
	}
	return currencies, nil
}

func (r *rateRepository) GetCurrencyByCode(ctx context.Context, code string) (*models.Currency, error) {
	return getCurrencyByCode(r.db.WithContext(ctx), code)
}

func (r *rateRepository) ListWallets(ctx context.Context, userID string) ([]models.Wallet, error) {
	var wallets []models.Wallet
	err := r.db.WithContext(ctx).Preload("Currency").Where("user_id = ?", userID).Find(&wallets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	return wallets, nil
}
