package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"ocru/internal/models"
	"ocru/internal/repositories"
	"ocru/internal/repositories/cache"
	"ocru/internal/repositories/repotest"
	"ocru/internal/services/gateway"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubAdapter struct {
	provider string
	currency string
	min      int64
	requests []gateway.CheckoutRequest
	err      error
	// onCheckout runs after the provider accepted the checkout.
	onCheckout func(req gateway.CheckoutRequest)
}

func (a *stubAdapter) Provider() string { return a.provider }
func (a *stubAdapter) Currency() string { return a.currency }
func (a *stubAdapter) MinAmount() int64 { return a.min }

func (a *stubAdapter) CreateCheckout(_ context.Context, req gateway.CheckoutRequest) (*gateway.Checkout, error) {
	if a.err != nil {
		return nil, a.err
	}
	a.requests = append(a.requests, req)
	if a.onCheckout != nil {
		a.onCheckout(req)
	}
	return &gateway.Checkout{
		URL:            "https://pay.example/" + req.TransactionID,
		CorrelationKey: "ref-" + req.TransactionID,
		MatchKey:       "OCR" + req.UserID,
		Raw:            models.JSON{"amount": req.Amount},
	}, nil
}

func (a *stubAdapter) Verify(context.Context, gateway.WebhookRequest) (*gateway.Notification, error) {
	return nil, errors.New("not used")
}

type fixedConverter struct{ rate decimal.Decimal }

func (c fixedConverter) Convert(_ context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	return amount.Mul(c.rate), nil
}

// failingCredit lets everything through except the wallet credit.
type failingCredit struct {
	repositories.LedgerRepository
}

func (f failingCredit) CreditWallet(context.Context, string, string, int64) error {
	return errors.New("disk full")
}

func (f failingCredit) ExecuteInTransaction(ctx context.Context, fn func(repositories.LedgerRepository) error) error {
	return f.LedgerRepository.ExecuteInTransaction(ctx, func(tx repositories.LedgerRepository) error {
		return fn(failingCredit{tx})
	})
}

type fixture struct {
	db         *gorm.DB
	repo       repositories.LedgerRepository
	svc        *service
	sepay      *stubAdapter
	lemon      *stubAdapter
	currencies map[string]*models.Currency
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := repotest.Open(t)
	currencies := repotest.SeedCurrencies(t, db)
	repo := repositories.NewLedgerRepository(db)
	sepay := &stubAdapter{provider: models.ProviderSePay, currency: "VND", min: 2000}
	lemon := &stubAdapter{provider: models.ProviderLemonSqueezy, currency: "USD", min: 100}
	svc := NewService(repo, gateway.NewRegistry(sepay, lemon), fixedConverter{rate: decimal.NewFromInt(25000)},
		cache.NewMemoryCache(), nil, nil, Config{}).(*service)
	return &fixture{db: db, repo: repo, svc: svc, sepay: sepay, lemon: lemon, currencies: currencies}
}

func (f *fixture) seedPackage(t *testing.T, slug string, priceCents int64, validityDays int) *models.TokenPackage {
	t.Helper()
	pkg := &models.TokenPackage{Slug: slug, Name: "Starter", PriceCents: priceCents, InputTokens: 100000, OutputTokens: 50000, ValidityDays: validityDays, IsActive: true}
	require.NoError(t, f.db.Create(pkg).Error)
	return pkg
}

func TestCreatePendingDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreatePendingDeposit(ctx, DepositInput{UserID: "user-1", Amount: 50000, Provider: "sepay", IPAddress: "10.0.0.1"})
	require.NoError(t, err)

	tx := res.Transaction
	assert.Equal(t, models.TransactionStatusPending, tx.Status)
	assert.Equal(t, models.TransactionTypeDeposit, tx.Type)
	assert.Equal(t, "VND", tx.Currency)
	assert.Equal(t, models.ProviderSePay, tx.ProviderName())
	require.NotNil(t, tx.ProviderRef)
	assert.Equal(t, "ref-"+tx.ID, *tx.ProviderRef)
	require.NotNil(t, tx.MatchKey)
	assert.Equal(t, "OCRuser-1", *tx.MatchKey)
	assert.Equal(t, "https://pay.example/"+tx.ID, tx.PaymentURL)

	require.Len(t, f.sepay.requests, 1)
	assert.Equal(t, tx.ID, f.sepay.requests[0].TransactionID)

	stored, err := f.repo.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), stored.Amount)
}

func TestCreatePendingDepositValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    DepositInput
		field string
	}{
		{"unknown provider", DepositInput{UserID: "u", Amount: 5000, Provider: "paypal"}, "provider"},
		{"below minimum", DepositInput{UserID: "u", Amount: 1000, Provider: "SEPAY"}, "amount"},
		{"wrong currency", DepositInput{UserID: "u", Amount: 5000, Provider: "SEPAY", Currency: "USD"}, "currency"},
		{"missing user", DepositInput{Amount: 5000, Provider: "SEPAY"}, "user_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreatePendingDeposit(ctx, tt.in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
	assert.Empty(t, f.sepay.requests)
}

func TestCreatePendingDepositCheckoutFailureStoresNothing(t *testing.T) {
	f := newFixture(t)
	f.lemon.err = gateway.ErrProviderRequestFailed

	_, err := f.svc.CreatePendingDeposit(context.Background(), DepositInput{UserID: "u", Amount: 500, Provider: "LEMON_SQUEEZY"})
	assert.ErrorIs(t, err, gateway.ErrProviderRequestFailed)

	var count int64
	require.NoError(t, f.db.Model(&models.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSettleDepositIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreatePendingDeposit(ctx, DepositInput{UserID: "user-1", Amount: 50000, Provider: "SEPAY"})
	require.NoError(t, err)

	settled, err := f.svc.Settle(ctx, res.Transaction.ID, models.JSON{"id": 1}, "bank-1")
	require.NoError(t, err)
	assert.True(t, settled)

	settled, err = f.svc.Settle(ctx, res.Transaction.ID, models.JSON{"id": 1}, "bank-1")
	require.NoError(t, err)
	assert.False(t, settled)

	wallets, err := f.svc.Wallets(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, int64(50000), wallets[0].Balance)

	tx, err := f.svc.GetStatus(ctx, res.Transaction.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusSuccess, tx.Status)
	assert.Equal(t, "bank-1", tx.GatewayTxnID)
	assert.NotNil(t, tx.CompletedAt)
}

func TestSettleRollsBackWhenCreditFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreatePendingDeposit(ctx, DepositInput{UserID: "user-1", Amount: 500, Provider: "LEMON_SQUEEZY"})
	require.NoError(t, err)

	broken := NewService(failingCredit{f.repo}, f.svc.gateways, f.svc.converter, cache.NewMemoryCache(), nil, nil, Config{})
	settled, err := broken.Settle(ctx, res.Transaction.ID, nil, "")
	require.Error(t, err)
	assert.False(t, settled)

	tx, err := f.repo.GetTransaction(ctx, res.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, tx.Status)
	assert.Nil(t, tx.CompletedAt)

	wallets, err := f.repo.ListWallets(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, wallets)
}

func TestSettleUnknownTransaction(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Settle(context.Background(), "00000000-0000-0000-0000-000000000000", nil, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSettleInvalidatesCachedWallets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wallets, err := f.svc.Wallets(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, wallets)

	res, err := f.svc.CreatePendingDeposit(ctx, DepositInput{UserID: "user-1", Amount: 700, Provider: "LEMON_SQUEEZY"})
	require.NoError(t, err)
	_, err = f.svc.Settle(ctx, res.Transaction.ID, nil, "")
	require.NoError(t, err)

	wallets, err = f.svc.Wallets(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, int64(700), wallets[0].Balance)
}

func TestPackagePurchaseGrantsTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }
	pkg := f.seedPackage(t, "starter", 1000, 30)

	res, err := f.svc.CreatePendingPackagePurchase(ctx, PurchaseInput{UserID: "user-1", PackageSlug: "starter", Provider: "LEMON_SQUEEZY"})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), res.Transaction.Amount)
	assert.Equal(t, "USD", res.Transaction.Currency)
	require.NotNil(t, res.Transaction.PackageID)
	assert.Equal(t, pkg.ID, *res.Transaction.PackageID)

	settled, err := f.svc.Settle(ctx, res.Transaction.ID, nil, "order-9")
	require.NoError(t, err)
	require.True(t, settled)

	var balances []models.TokenBalance
	require.NoError(t, f.db.Where("user_id = ?", "user-1").Find(&balances).Error)
	require.Len(t, balances, 1)
	assert.Equal(t, int64(100000), balances[0].InputTokensRemaining)
	assert.Equal(t, int64(50000), balances[0].OutputTokensRemaining)
	require.NotNil(t, balances[0].ExpiresAt)
	assert.True(t, balances[0].ExpiresAt.Equal(now.AddDate(0, 0, 30)))

	tx, err := f.repo.GetTransaction(ctx, res.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPaid, tx.Status)

	wallets, err := f.repo.ListWallets(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, wallets, "package purchases never touch wallets")
}

func TestPackagePurchaseConvertsAndDiscounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPackage(t, "starter", 1000, 0)
	require.NoError(t, f.db.Create(&models.PromoCode{Code: "LAUNCH20", DiscountPercent: 20, IsActive: true}).Error)

	res, err := f.svc.CreatePendingPackagePurchase(ctx, PurchaseInput{UserID: "user-1", PackageSlug: "starter", Provider: "SEPAY", PromoCode: "launch20"})
	require.NoError(t, err)

	// $8.00 at 25,000 VND per USD
	assert.Equal(t, int64(200000), res.Transaction.Amount)
	assert.Equal(t, "VND", res.Transaction.Currency)
	assert.NotNil(t, res.Transaction.PromoCodeID)
}

func TestPackagePurchaseRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPackage(t, "starter", 1000, 0)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, f.db.Create(&models.PromoCode{Code: "OLD", DiscountPercent: 10, IsActive: true, ExpiresAt: &past}).Error)

	_, err := f.svc.CreatePendingPackagePurchase(ctx, PurchaseInput{UserID: "u", PackageSlug: "missing", Provider: "SEPAY"})
	assert.ErrorIs(t, err, ErrPackageNotFound)

	_, err = f.svc.CreatePendingPackagePurchase(ctx, PurchaseInput{UserID: "u", PackageSlug: "starter", Provider: "SEPAY", PromoCode: "OLD"})
	assert.ErrorIs(t, err, ErrInvalidPromoCode)

	_, err = f.svc.CreatePendingPackagePurchase(ctx, PurchaseInput{UserID: "u", PackageSlug: "starter", Provider: "SEPAY", PromoCode: "NOPE"})
	assert.ErrorIs(t, err, ErrInvalidPromoCode)
}

func TestFailKeepsWalletUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreatePendingDeposit(ctx, DepositInput{UserID: "user-1", Amount: 500, Provider: "LEMON_SQUEEZY"})
	require.NoError(t, err)

	failed, err := f.svc.Fail(ctx, res.Transaction.ID, nil)
	require.NoError(t, err)
	assert.True(t, failed)

	settled, err := f.svc.Settle(ctx, res.Transaction.ID, nil, "")
	require.NoError(t, err)
	assert.False(t, settled)

	wallets, err := f.repo.ListWallets(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, wallets)
}

func TestGetStatusIsScopedToOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreatePendingDeposit(ctx, DepositInput{UserID: "user-1", Amount: 500, Provider: "LEMON_SQUEEZY"})
	require.NoError(t, err)

	_, err = f.svc.GetStatus(ctx, res.Transaction.ID, "user-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindForNotification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreatePendingDeposit(ctx, DepositInput{UserID: "user-1", Amount: 500, Provider: "LEMON_SQUEEZY"})
	require.NoError(t, err)
	id := res.Transaction.ID

	tx, err := f.svc.FindForNotification(ctx, &gateway.Notification{Provider: models.ProviderLemonSqueezy, TransactionID: id})
	require.NoError(t, err)
	assert.Equal(t, id, tx.ID)

	tx, err = f.svc.FindForNotification(ctx, &gateway.Notification{Provider: models.ProviderLemonSqueezy, CorrelationKey: "ref-" + id})
	require.NoError(t, err)
	assert.Equal(t, id, tx.ID)

	_, err = f.svc.FindForNotification(ctx, &gateway.Notification{Provider: models.ProviderSePay, TransactionID: id})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecoverDepositReusesExistingReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := &gateway.Notification{
		Provider:       models.ProviderLemonSqueezy,
		CorrelationKey: "order-42",
		UserID:         "user-1",
		Amount:         1500,
		Currency:       "USD",
	}

	first, err := f.svc.RecoverDeposit(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, first.Status)

	second, err := f.svc.RecoverDeposit(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestRecoverDepositKeepsEchoedTransactionID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := "6f1c2b9e-3d4a-4c7e-9b21-5a8f0e7d6c11"

	tx, err := f.svc.RecoverDeposit(ctx, &gateway.Notification{
		Provider:       models.ProviderLemonSqueezy,
		CorrelationKey: "order-43",
		TransactionID:  id,
		UserID:         "user-1",
		Amount:         500,
		Currency:       "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, id, tx.ID)

	tx, err = f.svc.RecoverDeposit(ctx, &gateway.Notification{
		Provider:       models.ProviderLemonSqueezy,
		CorrelationKey: "order-44",
		TransactionID:  "not-a-uuid",
		UserID:         "user-1",
		Amount:         500,
		Currency:       "USD",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "not-a-uuid", tx.ID)
}

func TestCreatePendingDepositAdoptsRowSettledByEarlyWebhook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The paid webhook lands while the checkout call is still in flight.
	f.lemon.onCheckout = func(req gateway.CheckoutRequest) {
		n := &gateway.Notification{
			Provider:       models.ProviderLemonSqueezy,
			CorrelationKey: "order-9",
			TransactionID:  req.TransactionID,
			UserID:         req.UserID,
			Amount:         req.Amount,
			Currency:       "USD",
		}
		tx, err := f.svc.RecoverDeposit(ctx, n)
		require.NoError(t, err)
		settled, err := f.svc.Settle(ctx, tx.ID, nil, "order-9")
		require.NoError(t, err)
		require.True(t, settled)
	}

	res, err := f.svc.CreatePendingDeposit(ctx, DepositInput{UserID: "user-1", Amount: 500, Provider: models.ProviderLemonSqueezy})
	require.NoError(t, err)
	require.Len(t, f.lemon.requests, 1)
	assert.Equal(t, f.lemon.requests[0].TransactionID, res.Transaction.ID)
	assert.Equal(t, models.TransactionStatusPaid, res.Transaction.Status)

	settled, err := f.svc.Settle(ctx, res.Transaction.ID, nil, "order-9")
	require.NoError(t, err)
	assert.False(t, settled)

	wallets, err := f.repo.ListWallets(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, int64(500), wallets[0].Balance)

	var count int64
	require.NoError(t, f.db.Model(&models.Transaction{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
