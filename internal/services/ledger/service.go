package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ocru/internal/metrics"
	"ocru/internal/models"
	"ocru/internal/repositories"
	"ocru/internal/repositories/cache"
	"ocru/internal/services/gateway"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultWalletCacheTTL = 5 * time.Minute
	depositCheckoutMemo   = "Nap tien OCR"
)

type service struct {
	repo      repositories.LedgerRepository
	gateways  *gateway.Registry
	converter Converter
	cache     cache.Cache
	metrics   metrics.MetricsCollector
	log       *zap.Logger
	config    Config
	now       func() time.Time
}

// NewService creates the ledger service
func NewService(
	repo repositories.LedgerRepository,
	gateways *gateway.Registry,
	converter Converter,
	c cache.Cache,
	m metrics.MetricsCollector,
	log *zap.Logger,
	config Config,
) Service {
	if repo == nil {
		panic("repo is required")
	}
	if gateways == nil {
		panic("gateway registry is required")
	}
	if converter == nil {
		panic("converter is required")
	}
	if c == nil {
		c = cache.NewMemoryCache()
	}
	if m == nil {
		m = metrics.NoopMetricsCollector{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if config.WalletCacheTTL == 0 {
		config.WalletCacheTTL = defaultWalletCacheTTL
	}

	return &service{
		repo:      repo,
		gateways:  gateways,
		converter: converter,
		cache:     c,
		metrics:   m,
		log:       log.Named("ledger"),
		config:    config,
		now:       time.Now,
	}
}

func (s *service) adapter(provider string) (gateway.Adapter, error) {
	a, err := s.gateways.Get(provider)
	if err != nil {
		return nil, newValidationError("provider", "must be one of %s", strings.Join(s.gateways.Providers(), ", "))
	}
	return a, nil
}

func (s *service) currency(ctx context.Context, code string) (*models.Currency, error) {
	c, err := s.repo.GetCurrencyByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repositories.ErrCurrencyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCurrencyNotFound, code)
		}
		return nil, err
	}
	return c, nil
}

func (s *service) CreatePendingDeposit(ctx context.Context, in DepositInput) (*PendingResult, error) {
	if in.UserID == "" {
		return nil, newValidationError("user_id", "is required")
	}
	adapter, err := s.adapter(in.Provider)
	if err != nil {
		return nil, err
	}
	if in.Currency != "" && !strings.EqualFold(in.Currency, adapter.Currency()) {
		return nil, newValidationError("currency", "%s only accepts %s", adapter.Provider(), adapter.Currency())
	}
	if in.Amount < adapter.MinAmount() {
		return nil, newValidationError("amount", "%s requires at least %d %s", adapter.Provider(), adapter.MinAmount(), adapter.Currency())
	}
	if _, err := s.currency(ctx, adapter.Currency()); err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		Type:        models.TransactionTypeDeposit,
		Status:      models.TransactionStatusPending,
		Amount:      in.Amount,
		Currency:    adapter.Currency(),
		Description: fmt.Sprintf("Deposit %d %s via %s", in.Amount, adapter.Currency(), adapter.Provider()),
		IPAddress:   in.IPAddress,
	}
	return s.createPending(ctx, adapter, tx, in.Email, depositCheckoutMemo)
}

func (s *service) CreatePendingPackagePurchase(ctx context.Context, in PurchaseInput) (*PendingResult, error) {
	if in.UserID == "" {
		return nil, newValidationError("user_id", "is required")
	}
	if in.PackageSlug == "" {
		return nil, newValidationError("package", "is required")
	}
	adapter, err := s.adapter(in.Provider)
	if err != nil {
		return nil, err
	}

	pkg, err := s.repo.GetActivePackage(ctx, in.PackageSlug)
	if err != nil {
		if errors.Is(err, repositories.ErrPackageNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, in.PackageSlug)
		}
		return nil, err
	}

	priceCents := pkg.PriceCents
	var promoID *string
	if in.PromoCode != "" {
		promo, err := s.validPromo(ctx, in.PromoCode)
		if err != nil {
			return nil, err
		}
		priceCents = applyDiscount(priceCents, promo.DiscountPercent)
		promoID = &promo.ID
	}

	cur, err := s.currency(ctx, adapter.Currency())
	if err != nil {
		return nil, err
	}
	amount, err := s.priceIn(ctx, priceCents, cur)
	if err != nil {
		return nil, err
	}
	if amount < adapter.MinAmount() {
		return nil, newValidationError("amount", "%s requires at least %d %s", adapter.Provider(), adapter.MinAmount(), adapter.Currency())
	}

	tx := &models.Transaction{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		Type:        models.TransactionTypePackagePurchase,
		Status:      models.TransactionStatusPending,
		Amount:      amount,
		Currency:    cur.Code,
		PackageID:   &pkg.ID,
		PromoCodeID: promoID,
		Description: fmt.Sprintf("Purchase %s ($%s)", pkg.Name, decimal.New(priceCents, -2).StringFixed(2)),
		IPAddress:   in.IPAddress,
	}
	return s.createPending(ctx, adapter, tx, in.Email, pkg.Name)
}

func (s *service) validPromo(ctx context.Context, code string) (*models.PromoCode, error) {
	promo, err := s.repo.GetPromoCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		if errors.Is(err, repositories.ErrPromoCodeNotFound) {
			return nil, ErrInvalidPromoCode
		}
		return nil, err
	}
	if !promo.IsActive || (promo.ExpiresAt != nil && !promo.ExpiresAt.After(s.now())) {
		return nil, ErrInvalidPromoCode
	}
	return promo, nil
}

func applyDiscount(cents int64, percent int) int64 {
	if percent <= 0 {
		return cents
	}
	if percent >= 100 {
		return 0
	}
	return decimal.NewFromInt(cents).
		Mul(decimal.NewFromInt(int64(100 - percent))).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

// priceIn converts USD cents into minor units of cur.
func (s *service) priceIn(ctx context.Context, usdCents int64, cur *models.Currency) (int64, error) {
	if cur.Code == models.BaseCurrency {
		return usdCents, nil
	}
	converted, err := s.converter.Convert(ctx, decimal.New(usdCents, -2), models.BaseCurrency, cur.Code)
	if err != nil {
		return 0, fmt.Errorf("failed to price package in %s: %w", cur.Code, err)
	}
	return converted.Shift(cur.MinorUnits).Round(0).IntPart(), nil
}

func (s *service) createPending(ctx context.Context, adapter gateway.Adapter, tx *models.Transaction, email, memo string) (*PendingResult, error) {
	checkout, err := adapter.CreateCheckout(ctx, gateway.CheckoutRequest{
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Email:         email,
		Amount:        tx.Amount,
		Description:   memo,
	})
	if err != nil {
		s.log.Error("checkout creation failed",
			zap.String("provider", adapter.Provider()),
			zap.String("user_id", tx.UserID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create %s checkout: %w", adapter.Provider(), err)
	}

	provider := adapter.Provider()
	tx.Provider = &provider
	if checkout.CorrelationKey != "" {
		ref := checkout.CorrelationKey
		tx.ProviderRef = &ref
	}
	if checkout.MatchKey != "" {
		key := checkout.MatchKey
		tx.MatchKey = &key
	}
	tx.PaymentURL = checkout.URL
	tx.GatewayResponse = checkout.Raw

	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		existing := s.recoveredRow(ctx, tx)
		if existing == nil {
			return nil, err
		}
		s.log.Warn("pending transaction already recovered from webhook",
			zap.String("transaction_id", existing.ID),
			zap.String("provider", provider),
			zap.String("status", existing.Status))
		return &PendingResult{Transaction: existing, Checkout: checkout}, nil
	}

	s.log.Info("pending transaction created",
		zap.String("transaction_id", tx.ID),
		zap.String("type", tx.Type),
		zap.String("provider", provider),
		zap.Int64("amount", tx.Amount),
		zap.String("currency", tx.Currency))
	return &PendingResult{Transaction: tx, Checkout: checkout}, nil
}

// recoveredRow returns the row a paid webhook created for tx before tx
// itself could be inserted, matched by id or by provider reference.
func (s *service) recoveredRow(ctx context.Context, tx *models.Transaction) *models.Transaction {
	existing, err := s.repo.GetTransaction(ctx, tx.ID)
	if err != nil && tx.ProviderRef != nil {
		existing, err = s.repo.FindByProviderRef(ctx, tx.ProviderName(), *tx.ProviderRef)
	}
	if err != nil || existing.UserID != tx.UserID || existing.ProviderName() != tx.ProviderName() {
		return nil
	}
	return existing
}

func (s *service) Settle(ctx context.Context, transactionID string, gatewayResponse models.JSON, gatewayTxnID string) (bool, error) {
	var (
		settled bool
		tx      *models.Transaction
	)
	err := s.repo.ExecuteInTransaction(ctx, func(repo repositories.LedgerRepository) error {
		t, err := repo.GetTransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		tx = t
		if t.IsTerminal() {
			return nil
		}

		now := s.now()
		status := models.TransactionStatusPaid
		if t.ProviderName() == models.ProviderSePay {
			status = models.TransactionStatusSuccess
		}
		fields := map[string]interface{}{
			"status":       status,
			"completed_at": now,
			"updated_at":   now,
		}
		if gatewayResponse != nil {
			fields["gateway_response"] = gatewayResponse
		}
		if gatewayTxnID != "" {
			fields["gateway_txn_id"] = gatewayTxnID
		}
		if err := repo.UpdateTransaction(ctx, t.ID, fields); err != nil {
			return err
		}

		if t.Type == models.TransactionTypePackagePurchase {
			if err := s.grantPackage(ctx, repo, t, now); err != nil {
				return err
			}
		} else {
			cur, err := repo.GetCurrencyByCode(ctx, t.Currency)
			if err != nil {
				return err
			}
			if err := repo.CreditWallet(ctx, t.UserID, cur.ID, t.Amount); err != nil {
				return err
			}
		}

		t.Status = status
		t.CompletedAt = &now
		settled = true
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return false, ErrNotFound
		}
		s.log.Error("settlement rolled back", zap.String("transaction_id", transactionID), zap.Error(err))
		return false, fmt.Errorf("failed to settle transaction: %w", err)
	}

	s.metrics.RecordSettlement(tx.ProviderName(), tx.Type, settled)
	if !settled {
		s.log.Info("settlement skipped, transaction already terminal",
			zap.String("transaction_id", tx.ID), zap.String("status", tx.Status))
		return false, nil
	}

	s.invalidateWallets(ctx, tx.UserID)
	s.log.Info("transaction settled",
		zap.String("transaction_id", tx.ID),
		zap.String("user_id", tx.UserID),
		zap.String("type", tx.Type),
		zap.Int64("amount", tx.Amount),
		zap.String("currency", tx.Currency))
	return true, nil
}

func (s *service) grantPackage(ctx context.Context, repo repositories.LedgerRepository, t *models.Transaction, now time.Time) error {
	if t.PackageID == nil {
		return fmt.Errorf("package purchase %s has no package", t.ID)
	}
	pkg, err := repo.GetPackage(ctx, *t.PackageID)
	if err != nil {
		return err
	}
	balance := &models.TokenBalance{
		UserID:                t.UserID,
		PackageID:             pkg.ID,
		TransactionID:         &t.ID,
		InputTokensRemaining:  pkg.InputTokens,
		OutputTokensRemaining: pkg.OutputTokens,
	}
	if pkg.ValidityDays > 0 {
		expires := now.AddDate(0, 0, pkg.ValidityDays)
		balance.ExpiresAt = &expires
	}
	return repo.CreateTokenBalance(ctx, balance)
}

func (s *service) Fail(ctx context.Context, transactionID string, gatewayResponse models.JSON) (bool, error) {
	var failed bool
	err := s.repo.ExecuteInTransaction(ctx, func(repo repositories.LedgerRepository) error {
		t, err := repo.GetTransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if t.IsTerminal() {
			return nil
		}
		fields := map[string]interface{}{
			"status":     models.TransactionStatusFailed,
			"updated_at": s.now(),
		}
		if gatewayResponse != nil {
			fields["gateway_response"] = gatewayResponse
		}
		if err := repo.UpdateTransaction(ctx, t.ID, fields); err != nil {
			return err
		}
		failed = true
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("failed to mark transaction failed: %w", err)
	}
	if failed {
		s.log.Info("transaction failed", zap.String("transaction_id", transactionID))
	}
	return failed, nil
}

func (s *service) GetStatus(ctx context.Context, transactionID, userID string) (*models.Transaction, error) {
	tx, err := s.repo.GetUserTransaction(ctx, transactionID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return tx, nil
}

func (s *service) History(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, int64, error) {
	return s.repo.ListTransactions(ctx, userID, limit, offset)
}

func (s *service) Wallets(ctx context.Context, userID string) ([]models.Wallet, error) {
	var wallets []models.Wallet
	found, err := s.cache.Get(ctx, cache.WalletsKey(userID), &wallets)
	if err != nil {
		s.log.Warn("wallet cache read failed", zap.String("user_id", userID), zap.Error(err))
	}
	if found {
		return wallets, nil
	}

	wallets, err = s.repo.ListWallets(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetWithTTL(ctx, cache.WalletsKey(userID), wallets, s.config.WalletCacheTTL); err != nil {
		s.log.Warn("wallet cache write failed", zap.String("user_id", userID), zap.Error(err))
	}
	return wallets, nil
}

func (s *service) invalidateWallets(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, cache.WalletsKey(userID)); err != nil {
		s.log.Warn("wallet cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *service) Packages(ctx context.Context) ([]models.TokenPackage, error) {
	return s.repo.ListActivePackages(ctx)
}

func (s *service) FindForNotification(ctx context.Context, n *gateway.Notification) (*models.Transaction, error) {
	if n.TransactionID != "" {
		tx, err := s.repo.GetTransaction(ctx, n.TransactionID)
		switch {
		case err == nil && tx.ProviderName() == n.Provider:
			return tx, nil
		case err != nil && !errors.Is(err, repositories.ErrTransactionNotFound):
			return nil, err
		}
	}

	var (
		tx  *models.Transaction
		err error
	)
	switch {
	case n.MatchKey != "":
		tx, err = s.repo.FindByMatchKey(ctx, n.Provider, n.MatchKey)
	case n.CorrelationKey != "":
		tx, err = s.repo.FindByProviderRef(ctx, n.Provider, n.CorrelationKey)
	default:
		return nil, ErrNotFound
	}
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return tx, nil
}

func (s *service) RecoverDeposit(ctx context.Context, n *gateway.Notification) (*models.Transaction, error) {
	if n.UserID == "" || n.CorrelationKey == "" || n.Amount <= 0 {
		return nil, newValidationError("notification", "cannot recover a deposit without user, reference and amount")
	}
	if _, err := s.currency(ctx, n.Currency); err != nil {
		return nil, err
	}

	provider, ref := n.Provider, n.CorrelationKey
	tx := &models.Transaction{
		ID:          recoveredID(n.TransactionID),
		UserID:      n.UserID,
		Type:        models.TransactionTypeDeposit,
		Status:      models.TransactionStatusPending,
		Amount:      n.Amount,
		Currency:    n.Currency,
		Provider:    &provider,
		ProviderRef: &ref,
		Description: fmt.Sprintf("Deposit %d %s via %s (recovered from webhook)", n.Amount, n.Currency, provider),
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		// A concurrent delivery or the checkout itself got there first.
		if existing := s.recoveredRow(ctx, tx); existing != nil {
			return existing, nil
		}
		return nil, err
	}
	s.log.Warn("deposit recovered from webhook",
		zap.String("transaction_id", tx.ID),
		zap.String("provider", provider),
		zap.String("provider_ref", ref),
		zap.String("user_id", n.UserID))
	return tx, nil
}

// recoveredID keeps the id the checkout was created under so the late
// insert of that checkout collides with the recovered row.
func recoveredID(echoed string) string {
	if id, err := uuid.Parse(echoed); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
