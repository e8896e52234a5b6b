package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ocru/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type usageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &usageRepository{db: db}
}

// GetBillingSettings returns a disabled default when the user has no row.
func (r *usageRepository) GetBillingSettings(ctx context.Context, userID string) (*models.BillingSettings, error) {
	var s models.BillingSettings
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.BillingSettings{UserID: userID}, nil
		}
		return nil, fmt.Errorf("failed to get billing settings: %w", err)
	}
	return &s, nil
}

func (r *usageRepository) SetPaygEnabled(ctx context.Context, userID string, enabled bool) error {
	s := models.BillingSettings{UserID: userID, PaygEnabled: enabled}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payg_enabled", "updated_at"}),
	}).Create(&s).Error
	if err != nil {
		return fmt.Errorf("failed to save billing settings: %w", err)
	}
	return nil
}

func (r *usageRepository) LockUsableTokenBalance(ctx context.Context, userID string, in, out int64, now time.Time) (*models.TokenBalance, error) {
	var b models.TokenBalance
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND is_exhausted = ?", userID, false).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Where("input_tokens_remaining >= ? AND output_tokens_remaining >= ?", in, out).
		Order("created_at ASC").
		First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenBalanceNotFound
		}
		return nil, fmt.Errorf("failed to get token balance: %w", err)
	}
	return &b, nil
}

func (r *usageRepository) DeductTokens(ctx context.Context, balance *models.TokenBalance, in, out int64) error {
	remainingIn := balance.InputTokensRemaining - in
	remainingOut := balance.OutputTokensRemaining - out
	if remainingIn < 0 || remainingOut < 0 {
		return ErrTokenBalanceNotFound
	}
	err := r.db.WithContext(ctx).Model(&models.TokenBalance{}).
		Where("id = ?", balance.ID).
		Updates(map[string]interface{}{
			"input_tokens_remaining":  remainingIn,
			"output_tokens_remaining": remainingOut,
			"is_exhausted":            remainingIn == 0 && remainingOut == 0,
			"updated_at":              time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to deduct tokens: %w", err)
	}
	balance.InputTokensRemaining = remainingIn
	balance.OutputTokensRemaining = remainingOut
	balance.IsExhausted = remainingIn == 0 && remainingOut == 0
	return nil
}

func (r *usageRepository) ListActiveTokenBalances(ctx context.Context, userID string, now time.Time) ([]models.TokenBalance, error) {
	var balances []models.TokenBalance
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_exhausted = ?", userID, false).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Order("created_at ASC").
		Find(&balances).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list token balances: %w", err)
	}
	return balances, nil
}

func (r *usageRepository) GetFeatureRate(ctx context.Context, feature string) (*models.FeatureRate, error) {
	var rate models.FeatureRate
	if err := r.db.WithContext(ctx).Where("feature = ?", feature).First(&rate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFeatureRateNotFound
		}
		return nil, fmt.Errorf("failed to get feature rate: %w", err)
	}
	return &rate, nil
}

func (r *usageRepository) GetCurrencyByCode(ctx context.Context, code string) (*models.Currency, error) {
	return getCurrencyByCode(r.db.WithContext(ctx), code)
}

func (r *usageRepository) LockWallet(ctx context.Context, userID, currencyID string) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND currency_id = ?", userID, currencyID).
		First(&w).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &w, nil
}

// DebitWallet only succeeds while the balance covers amount.
func (r *usageRepository) DebitWallet(ctx context.Context, walletID string, amount int64) error {
	result := r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("id = ? AND balance >= ?", walletID, amount).
		Updates(map[string]interface{}{
			"balance":     gorm.Expr("balance - ?", amount),
			"total_spent": gorm.Expr("total_spent + ?", amount),
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to debit wallet: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

func (r *usageRepository) CreateUsageLog(ctx context.Context, log *models.UsageLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to create usage log: %w", err)
	}
	return nil
}

func (r *usageRepository) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *usageRepository) ListUsage(ctx context.Context, userID string, limit, offset int) ([]models.UsageLog, int64, error) {
	var (
		logs  []models.UsageLog
		total int64
	)
	q := r.db.WithContext(ctx).Model(&models.UsageLog{}).Where("user_id = ?", userID).Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count usage: %w", err)
	}
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list usage: %w", err)
	}
	return logs, total, nil
}

func (r *usageRepository) ExecuteInTransaction(ctx context.Context, fn func(UsageRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&usageRepository{db: tx})
	})
}
