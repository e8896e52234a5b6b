// Package usage charges token consumption against package balances and,
// when enabled, the user's USD wallet.
package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ocru/internal/metrics"
	"ocru/internal/models"
	"ocru/internal/repositories"
	"ocru/internal/repositories/cache"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var tokensPerRateUnit = decimal.NewFromInt(1000)

type Service interface {
	// Consume charges one feature call. Package balances are used first,
	// oldest first; pay-as-you-go only when the user enabled it.
	Consume(ctx context.Context, in ConsumeInput) (*Result, error)
	Summary(ctx context.Context, userID string) (*Summary, error)
	SetPaygEnabled(ctx context.Context, userID string, enabled bool) error
	History(ctx context.Context, userID string, limit, offset int) ([]models.UsageLog, int64, error)
}

type service struct {
	repo    repositories.UsageRepository
	cache   cache.Cache
	metrics metrics.MetricsCollector
	log     *zap.Logger
	now     func() time.Time
}

func NewService(repo repositories.UsageRepository, c cache.Cache, m metrics.MetricsCollector, log *zap.Logger) Service {
	if repo == nil {
		panic("repo is required")
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
	return &service{
		repo:    repo,
		cache:   c,
		metrics: m,
		log:     log.Named("usage"),
		now:     time.Now,
	}
}

// PaygCost prices a call in whole USD cents, rounding up.
func PaygCost(rate *models.FeatureRate, in, out int64) int64 {
	raw := decimal.NewFromInt(in).Mul(rate.InputRate).
		Add(decimal.NewFromInt(out).Mul(rate.OutputRate))
	return raw.Div(tokensPerRateUnit).Ceil().IntPart()
}

func validate(in ConsumeInput) error {
	switch {
	case in.UserID == "":
		return &ValidationError{Field: "user_id", Message: "is required"}
	case in.Feature == "":
		return &ValidationError{Field: "feature", Message: "is required"}
	case in.InputTokens < 0 || in.OutputTokens < 0:
		return &ValidationError{Field: "tokens", Message: "must not be negative"}
	case in.InputTokens == 0 && in.OutputTokens == 0:
		return &ValidationError{Field: "tokens", Message: "nothing to consume"}
	}
	return nil
}

func (s *service) Consume(ctx context.Context, in ConsumeInput) (*Result, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	var result *Result
	err := s.repo.ExecuteInTransaction(ctx, func(repo repositories.UsageRepository) error {
		r, err := s.fromPackage(ctx, repo, in)
		if err != nil || r != nil {
			result = r
			return err
		}
		r, err = s.fromWallet(ctx, repo, in)
		result = r
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			s.metrics.RecordInsufficientBalance(in.Feature)
			s.log.Info("consumption refused",
				zap.String("user_id", in.UserID),
				zap.String("feature", in.Feature),
				zap.Int64("input_tokens", in.InputTokens),
				zap.Int64("output_tokens", in.OutputTokens))
			return &Result{Source: SourceInsufficient}, err
		}
		return nil, err
	}

	if result.Source == models.UsageSourcePAYG {
		if err := s.cache.Delete(ctx, cache.WalletsKey(in.UserID)); err != nil {
			s.log.Warn("wallet cache invalidation failed", zap.String("user_id", in.UserID), zap.Error(err))
		}
	}
	s.metrics.RecordConsumption(in.Feature, result.Source, result.CostCents)
	return result, nil
}

func (s *service) fromPackage(ctx context.Context, repo repositories.UsageRepository, in ConsumeInput) (*Result, error) {
	balance, err := repo.LockUsableTokenBalance(ctx, in.UserID, in.InputTokens, in.OutputTokens, s.now())
	if err != nil {
		if errors.Is(err, repositories.ErrTokenBalanceNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := repo.DeductTokens(ctx, balance, in.InputTokens, in.OutputTokens); err != nil {
		return nil, err
	}
	if err := repo.CreateUsageLog(ctx, s.usageLog(in, models.UsageSourcePackage, &balance.ID, 0)); err != nil {
		return nil, err
	}
	return &Result{Success: true, Source: models.UsageSourcePackage, BalanceID: balance.ID}, nil
}

func (s *service) fromWallet(ctx context.Context, repo repositories.UsageRepository, in ConsumeInput) (*Result, error) {
	settings, err := repo.GetBillingSettings(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !settings.PaygEnabled {
		return nil, ErrInsufficientBalance
	}

	rate, err := repo.GetFeatureRate(ctx, in.Feature)
	if err != nil {
		if errors.Is(err, repositories.ErrFeatureRateNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFeature, in.Feature)
		}
		return nil, err
	}
	cost := PaygCost(rate, in.InputTokens, in.OutputTokens)

	usd, err := repo.GetCurrencyByCode(ctx, models.BaseCurrency)
	if err != nil {
		return nil, err
	}
	wallet, err := repo.LockWallet(ctx, in.UserID, usd.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, ErrInsufficientBalance
		}
		return nil, err
	}
	if wallet.Balance < cost {
		return nil, ErrInsufficientBalance
	}
	if err := repo.DebitWallet(ctx, wallet.ID, cost); err != nil {
		if errors.Is(err, repositories.ErrInsufficientFunds) {
			return nil, ErrInsufficientBalance
		}
		return nil, err
	}

	now := s.now()
	err = repo.CreateTransaction(ctx, &models.Transaction{
		UserID:      in.UserID,
		Type:        models.TransactionTypeConsume,
		Status:      models.TransactionStatusSuccess,
		Amount:      cost,
		Currency:    models.BaseCurrency,
		Description: fmt.Sprintf("%s: %d input / %d output tokens", in.Feature, in.InputTokens, in.OutputTokens),
		IPAddress:   in.IPAddress,
		CompletedAt: &now,
	})
	if err != nil {
		return nil, err
	}
	if err := repo.CreateUsageLog(ctx, s.usageLog(in, models.UsageSourcePAYG, nil, cost)); err != nil {
		return nil, err
	}
	return &Result{Success: true, Source: models.UsageSourcePAYG, CostCents: cost}, nil
}

func (s *service) usageLog(in ConsumeInput, source string, balanceID *string, cost int64) *models.UsageLog {
	return &models.UsageLog{
		UserID:         in.UserID,
		Feature:        in.Feature,
		InputTokens:    in.InputTokens,
		OutputTokens:   in.OutputTokens,
		Source:         source,
		TokenBalanceID: balanceID,
		CostCents:      cost,
		InputMeta:      in.InputMeta,
		OutputMeta:     in.OutputMeta,
		IPAddress:      in.IPAddress,
		UserAgent:      in.UserAgent,
	}
}

func (s *service) Summary(ctx context.Context, userID string) (*Summary, error) {
	settings, err := s.repo.GetBillingSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	balances, err := s.repo.ListActiveTokenBalances(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	out := &Summary{PaygEnabled: settings.PaygEnabled, TokenBalances: balances}
	for _, b := range balances {
		out.InputRemaining += b.InputTokensRemaining
		out.OutputRemaining += b.OutputTokensRemaining
	}
	return out, nil
}

func (s *service) SetPaygEnabled(ctx context.Context, userID string, enabled bool) error {
	if err := s.repo.SetPaygEnabled(ctx, userID, enabled); err != nil {
		return err
	}
	s.log.Info("pay-as-you-go updated", zap.String("user_id", userID), zap.Bool("enabled", enabled))
	return nil
}

func (s *service) History(ctx context.Context, userID string, limit, offset int) ([]models.UsageLog, int64, error) {
	return s.repo.ListUsage(ctx, userID, limit, offset)
}
