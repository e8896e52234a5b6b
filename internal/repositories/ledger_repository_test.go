package repositories_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ocru/internal/models"
	"ocru/internal/repositories"
	"ocru/internal/repositories/repotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestCreditWalletCreatesThenIncrements(t *testing.T) {
	ctx := context.Background()
	db := repotest.Open(t)
	currencies := repotest.SeedCurrencies(t, db)
	repo := repositories.NewLedgerRepository(db)

	require.NoError(t, repo.CreditWallet(ctx, "user-1", currencies["VND"].ID, 50000))
	require.NoError(t, repo.CreditWallet(ctx, "user-1", currencies["VND"].ID, 20000))

	wallets, err := repo.ListWallets(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, int64(70000), wallets[0].Balance)
	assert.Equal(t, int64(70000), wallets[0].TotalDeposited)
	require.NotNil(t, wallets[0].Currency)
	assert.Equal(t, "VND", wallets[0].Currency.Code)
}

func TestExecuteInTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	db := repotest.Open(t)
	currencies := repotest.SeedCurrencies(t, db)
	repo := repositories.NewLedgerRepository(db)

	boom := errors.New("boom")
	err := repo.ExecuteInTransaction(ctx, func(tx repositories.LedgerRepository) error {
		if err := tx.CreditWallet(ctx, "user-1", currencies["USD"].ID, 500); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	wallets, err := repo.ListWallets(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, wallets)
}

func TestExpirePendingOnlyTouchesStalePending(t *testing.T) {
	ctx := context.Background()
	db := repotest.Open(t)
	repo := repositories.NewLedgerRepository(db)
	now := time.Now()

	stale := &models.Transaction{UserID: "u", Type: models.TransactionTypeDeposit, Status: models.TransactionStatusPending, Amount: 1, Currency: "VND", CreatedAt: now.Add(-20 * time.Minute)}
	fresh := &models.Transaction{UserID: "u", Type: models.TransactionTypeDeposit, Status: models.TransactionStatusPending, Amount: 1, Currency: "VND", CreatedAt: now.Add(-5 * time.Minute)}
	paid := &models.Transaction{UserID: "u", Type: models.TransactionTypeDeposit, Status: models.TransactionStatusPaid, Amount: 1, Currency: "VND", CreatedAt: now.Add(-time.Hour)}
	for _, tx := range []*models.Transaction{stale, fresh, paid} {
		require.NoError(t, repo.CreateTransaction(ctx, tx))
	}

	n, err := repo.ExpirePending(ctx, now.Add(-15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetTransaction(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusExpired, got.Status)

	got, err = repo.GetTransaction(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, got.Status)

	got, err = repo.GetTransaction(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPaid, got.Status)
}

func TestFindByMatchKeyPrefersPending(t *testing.T) {
	ctx := context.Background()
	db := repotest.Open(t)
	repo := repositories.NewLedgerRepository(db)
	provider := models.ProviderSePay

	old := &models.Transaction{UserID: "u", Type: models.TransactionTypeDeposit, Status: models.TransactionStatusSuccess, Amount: 1, Currency: "VND",
		Provider: strPtr(provider), ProviderRef: strPtr("OCR-u-AAAA1111"), MatchKey: strPtr("OCRUAAAA1111")}
	require.NoError(t, repo.CreateTransaction(ctx, old))

	got, err := repo.FindByMatchKey(ctx, provider, "OCRUAAAA1111")
	require.NoError(t, err)
	assert.Equal(t, old.ID, got.ID)

	_, err = repo.FindByMatchKey(ctx, provider, "OCRUZZZZ")
	assert.ErrorIs(t, err, repositories.ErrTransactionNotFound)
}

func TestProviderRefUniquePerProvider(t *testing.T) {
	ctx := context.Background()
	db := repotest.Open(t)
	repo := repositories.NewLedgerRepository(db)

	first := &models.Transaction{UserID: "u", Type: models.TransactionTypeDeposit, Status: models.TransactionStatusPending, Amount: 1, Currency: "VND",
		Provider: strPtr(models.ProviderPayOS), ProviderRef: strPtr("12345678")}
	dup := &models.Transaction{UserID: "u", Type: models.TransactionTypeDeposit, Status: models.TransactionStatusPending, Amount: 1, Currency: "VND",
		Provider: strPtr(models.ProviderPayOS), ProviderRef: strPtr("12345678")}
	other := &models.Transaction{UserID: "u", Type: models.TransactionTypeDeposit, Status: models.TransactionStatusPending, Amount: 1, Currency: "USD",
		Provider: strPtr(models.ProviderStripe), ProviderRef: strPtr("12345678")}

	require.NoError(t, repo.CreateTransaction(ctx, first))
	assert.Error(t, repo.CreateTransaction(ctx, dup))
	assert.NoError(t, repo.CreateTransaction(ctx, other))
}

func TestListTransactionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := repotest.Open(t)
	repo := repositories.NewLedgerRepository(db)
	now := time.Now()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.CreateTransaction(ctx, &models.Transaction{
			UserID: "u", Type: models.TransactionTypeDeposit, Status: models.TransactionStatusPending,
			Amount: int64(i + 1), Currency: "VND", CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.CreateTransaction(ctx, &models.Transaction{
		UserID: "someone-else", Type: models.TransactionTypeDeposit, Status: models.TransactionStatusPending, Amount: 9, Currency: "VND",
	}))

	txs, total, err := repo.ListTransactions(ctx, "u", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(3), txs[0].Amount)
	assert.Equal(t, int64(2), txs[1].Amount)
}
