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

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{
		db: db,
	}
}

func (r *ledgerRepository) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *ledgerRepository) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	return r.firstTransaction(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *ledgerRepository) GetTransactionForUpdate(ctx context.Context, id string) (*models.Transaction, error) {
	return r.firstTransaction(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *ledgerRepository) GetUserTransaction(ctx context.Context, id, userID string) (*models.Transaction, error) {
	return r.firstTransaction(r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID))
}

func (r *ledgerRepository) FindByProviderRef(ctx context.Context, provider, ref string) (*models.Transaction, error) {
	return r.firstTransaction(r.db.WithContext(ctx).Where("provider = ? AND provider_ref = ?", provider, ref))
}

// FindByMatchKey prefers a pending row and otherwise returns the newest one,
// so a replayed transfer still finds the transaction it already settled.
func (r *ledgerRepository) FindByMatchKey(ctx context.Context, provider, matchKey string) (*models.Transaction, error) {
	return r.firstTransaction(r.db.WithContext(ctx).
		Where("provider = ? AND match_key = ?", provider, matchKey).
		Order("CASE WHEN status = '"+models.TransactionStatusPending+"' THEN 0 ELSE 1 END").
		Order("created_at DESC"))
}

func (r *ledgerRepository) firstTransaction(q *gorm.DB) (*models.Transaction, error) {
	var tx models.Transaction
	if err := q.First(&tx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

func (r *ledgerRepository) UpdateTransaction(ctx context.Context, id string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Transaction{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update transaction: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *ledgerRepository) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, int64, error) {
	var (
		txs   []models.Transaction
		total int64
	)
	q := r.db.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", userID).Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&txs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, total, nil
}

// ExpirePending is one conditional UPDATE so it cannot race a settlement.
func (r *ledgerRepository) ExpirePending(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("status = ? AND created_at < ?", models.TransactionStatusPending, cutoff).
		Updates(map[string]interface{}{
			"status":     models.TransactionStatusExpired,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to expire pending transactions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *ledgerRepository) GetCurrencyByCode(ctx context.Context, code string) (*models.Currency, error) {
	return getCurrencyByCode(r.db.WithContext(ctx), code)
}

func getCurrencyByCode(db *gorm.DB, code string) (*models.Currency, error) {
	var c models.Currency
	if err := db.Where("code = ?", code).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCurrencyNotFound
		}
		return nil, fmt.Errorf("failed to get currency: %w", err)
	}
	return &c, nil
}

// CreditWallet creates the wallet on first credit and then increments it.
// Both statements must run inside the caller's transaction.
func (r *ledgerRepository) CreditWallet(ctx context.Context, userID, currencyID string, amount int64) error {
	db := r.db.WithContext(ctx)
	wallet := models.Wallet{UserID: userID, CurrencyID: currencyID}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "currency_id"}},
		DoNothing: true,
	}).Create(&wallet).Error
	if err != nil {
		return fmt.Errorf("failed to upsert wallet: %w", err)
	}

	result := db.Model(&models.Wallet{}).
		Where("user_id = ? AND currency_id = ?", userID, currencyID).
		Updates(map[string]interface{}{
			"balance":         gorm.Expr("balance + ?", amount),
			"total_deposited": gorm.Expr("total_deposited + ?", amount),
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to credit wallet: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func (r *ledgerRepository) ListWallets(ctx context.Context, userID string) ([]models.Wallet, error) {
	var wallets []models.Wallet
	err := r.db.WithContext(ctx).
		Preload("Currency").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&wallets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	return wallets, nil
}

func (r *ledgerRepository) GetActivePackage(ctx context.Context, slug string) (*models.TokenPackage, error) {
	return r.firstPackage(r.db.WithContext(ctx).Where("slug = ? AND is_active = ?", slug, true))
}

func (r *ledgerRepository) GetPackage(ctx context.Context, id string) (*models.TokenPackage, error) {
	return r.firstPackage(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *ledgerRepository) firstPackage(q *gorm.DB) (*models.TokenPackage, error) {
	var pkg models.TokenPackage
	if err := q.First(&pkg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("failed to get package: %w", err)
	}
	return &pkg, nil
}

func (r *ledgerRepository) ListActivePackages(ctx context.Context) ([]models.TokenPackage, error) {
	var pkgs []models.TokenPackage
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("sort_order ASC").Find(&pkgs).Error; err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	return pkgs, nil
}

func (r *ledgerRepository) GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&promo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromoCodeNotFound
		}
		return nil, fmt.Errorf("failed to get promo code: %w", err)
	}
	return &promo, nil
}

func (r *ledgerRepository) CreateTokenBalance(ctx context.Context, balance *models.TokenBalance) error {
	if err := r.db.WithContext(ctx).Create(balance).Error; err != nil {
		return fmt.Errorf("failed to create token balance: %w", err)
	}
	return nil
}

func (r *ledgerRepository) ExecuteInTransaction(ctx context.Context, fn func(LedgerRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ledgerRepository{db: tx})
	})
}
