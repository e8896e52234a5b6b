package handlers

import (
	"context"

	"ocru/internal/models"
	"ocru/internal/services/gateway"
	"ocru/internal/services/ledger"
	"ocru/internal/services/usage"
	"ocru/internal/services/webhook"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type mockLedger struct{ mock.Mock }

func (m *mockLedger) CreatePendingDeposit(ctx context.Context, in ledger.DepositInput) (*ledger.PendingResult, error) {
	args := m.Called(ctx, in)
	res, _ := args.Get(0).(*ledger.PendingResult)
	return res, args.Error(1)
}

func (m *mockLedger) CreatePendingPackagePurchase(ctx context.Context, in ledger.PurchaseInput) (*ledger.PendingResult, error) {
	args := m.Called(ctx, in)
	res, _ := args.Get(0).(*ledger.PendingResult)
	return res, args.Error(1)
}

func (m *mockLedger) Settle(ctx context.Context, id string, resp models.JSON, gatewayTxnID string) (bool, error) {
	args := m.Called(ctx, id, resp, gatewayTxnID)
	return args.Bool(0), args.Error(1)
}

func (m *mockLedger) Fail(ctx context.Context, id string, resp models.JSON) (bool, error) {
	args := m.Called(ctx, id, resp)
	return args.Bool(0), args.Error(1)
}

func (m *mockLedger) GetStatus(ctx context.Context, id, userID string) (*models.Transaction, error) {
	args := m.Called(ctx, id, userID)
	tx, _ := args.Get(0).(*models.Transaction)
	return tx, args.Error(1)
}

func (m *mockLedger) History(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	txs, _ := args.Get(0).([]models.Transaction)
	return txs, args.Get(1).(int64), args.Error(2)
}

func (m *mockLedger) Wallets(ctx context.Context, userID string) ([]models.Wallet, error) {
	args := m.Called(ctx, userID)
	w, _ := args.Get(0).([]models.Wallet)
	return w, args.Error(1)
}

func (m *mockLedger) Packages(ctx context.Context) ([]models.TokenPackage, error) {
	args := m.Called(ctx)
	p, _ := args.Get(0).([]models.TokenPackage)
	return p, args.Error(1)
}

func (m *mockLedger) FindForNotification(ctx context.Context, n *gateway.Notification) (*models.Transaction, error) {
	args := m.Called(ctx, n)
	tx, _ := args.Get(0).(*models.Transaction)
	return tx, args.Error(1)
}

func (m *mockLedger) RecoverDeposit(ctx context.Context, n *gateway.Notification) (*models.Transaction, error) {
	args := m.Called(ctx, n)
	tx, _ := args.Get(0).(*models.Transaction)
	return tx, args.Error(1)
}

type mockWebhooks struct{ mock.Mock }

func (m *mockWebhooks) Ingest(ctx context.Context, provider string, req gateway.WebhookRequest) (*webhook.Result, error) {
	args := m.Called(ctx, provider, req)
	res, _ := args.Get(0).(*webhook.Result)
	return res, args.Error(1)
}

type mockUsage struct{ mock.Mock }

func (m *mockUsage) Consume(ctx context.Context, in usage.ConsumeInput) (*usage.Result, error) {
	args := m.Called(ctx, in)
	res, _ := args.Get(0).(*usage.Result)
	return res, args.Error(1)
}

func (m *mockUsage) Summary(ctx context.Context, userID string) (*usage.Summary, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).(*usage.Summary)
	return s, args.Error(1)
}

func (m *mockUsage) SetPaygEnabled(ctx context.Context, userID string, enabled bool) error {
	return m.Called(ctx, userID, enabled).Error(0)
}

func (m *mockUsage) History(ctx context.Context, userID string, limit, offset int) ([]models.UsageLog, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	logs, _ := args.Get(0).([]models.UsageLog)
	return logs, args.Get(1).(int64), args.Error(2)
}

type mockRates struct{ mock.Mock }

func (m *mockRates) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockRates) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	args := m.Called(ctx, amount, from, to)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockRates) AggregateUSD(ctx context.Context, userID string) (decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockRates) LatestRates(ctx context.Context) ([]models.ConversionRate, error) {
	args := m.Called(ctx)
	r, _ := args.Get(0).([]models.ConversionRate)
	return r, args.Error(1)
}

func (m *mockRates) History(ctx context.Context, code string) ([]models.ConversionRate, error) {
	args := m.Called(ctx, code)
	r, _ := args.Get(0).([]models.ConversionRate)
	return r, args.Error(1)
}

func (m *mockRates) Refresh(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
