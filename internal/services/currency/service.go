// Package currency converts between currencies through USD and keeps the
// rate history up to date.
package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ocru/internal/metrics"
	"ocru/internal/models"
	"ocru/internal/repositories"
	"ocru/internal/repositories/cache"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultBaseURL  = "https://v6.exchangerate-api.com"
	defaultRateTTL  = 10 * time.Minute
	rateSource      = "exchangerate-api"
	maxRateResponse = 1 << 20
)

// Service converts amounts and refreshes rates.
type Service interface {
	// Rate returns how many units of to one unit of from buys.
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
	// AggregateUSD sums every wallet of userID in USD. Wallets whose rate is
	// missing or zero contribute nothing.
	AggregateUSD(ctx context.Context, userID string) (decimal.Decimal, error)
	LatestRates(ctx context.Context) ([]models.ConversionRate, error)
	History(ctx context.Context, code string) ([]models.ConversionRate, error)
	// Refresh fetches fresh USD rates for every known currency and stores
	// them. On failure the stored rates are left untouched.
	Refresh(ctx context.Context) (int, error)
}

type Config struct {
	APIKey  string
	BaseURL string
	RateTTL time.Duration
}

type service struct {
	repo    repositories.RateRepository
	client  *http.Client
	cache   cache.Cache
	metrics metrics.MetricsCollector
	log     *zap.Logger
	config  Config
}

func NewService(repo repositories.RateRepository, client *http.Client, c cache.Cache, m metrics.MetricsCollector, log *zap.Logger, config Config) Service {
	if repo == nil {
		panic("repo is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
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
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.RateTTL == 0 {
		config.RateTTL = defaultRateTTL
	}
	return &service{
		repo:    repo,
		client:  client,
		cache:   c,
		metrics: m,
		log:     log.Named("currency"),
		config:  config,
	}
}

// usdRate returns the latest USD->code rate, through the cache.
func (s *service) usdRate(ctx context.Context, code string) (decimal.Decimal, error) {
	code = strings.ToUpper(code)
	if code == models.BaseCurrency {
		return decimal.NewFromInt(1), nil
	}

	key := cache.LatestRateKey(code)
	var cached string
	if found, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.log.Warn("rate cache read failed", zap.String("code", code), zap.Error(err))
	} else if found {
		if rate, err := decimal.NewFromString(cached); err == nil {
			return rate, nil
		}
	}

	row, err := s.repo.GetLatestRate(ctx, code)
	if err != nil {
		if errors.Is(err, repositories.ErrRateNotFound) {
			return decimal.Zero, fmt.Errorf("%w: USD->%s", ErrRateNotFound, code)
		}
		return decimal.Zero, err
	}
	if !row.Rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: USD->%s is %s", ErrRateNotFound, code, row.Rate)
	}
	if err := s.cache.SetWithTTL(ctx, key, row.Rate.String(), s.config.RateTTL); err != nil {
		s.log.Warn("rate cache write failed", zap.String("code", code), zap.Error(err))
	}
	return row.Rate, nil
}

func (s *service) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if strings.EqualFold(from, to) {
		return decimal.NewFromInt(1), nil
	}
	fromRate, err := s.usdRate(ctx, from)
	if err != nil {
		return decimal.Zero, err
	}
	toRate, err := s.usdRate(ctx, to)
	if err != nil {
		return decimal.Zero, err
	}
	return toRate.DivRound(fromRate, 12), nil
}

func (s *service) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if strings.EqualFold(from, to) {
		return amount, nil
	}
	fromRate, err := s.usdRate(ctx, from)
	if err != nil {
		return decimal.Zero, err
	}
	toRate, err := s.usdRate(ctx, to)
	if err != nil {
		return decimal.Zero, err
	}
	// Multiply first so USD->X stays exact.
	return amount.Mul(toRate).DivRound(fromRate, 12), nil
}

func (s *service) AggregateUSD(ctx context.Context, userID string) (decimal.Decimal, error) {
	wallets, err := s.repo.ListWallets(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, w := range wallets {
		if w.Currency == nil || w.Balance == 0 {
			continue
		}
		major := decimal.New(w.Balance, -w.Currency.MinorUnits)
		if w.Currency.Code == models.BaseCurrency {
			total = total.Add(major)
			continue
		}
		rate, err := s.usdRate(ctx, w.Currency.Code)
		if err != nil {
			if errors.Is(err, ErrRateNotFound) {
				continue
			}
			return decimal.Zero, err
		}
		total = total.Add(major.DivRound(rate, 8))
	}
	return total.Round(2), nil
}

func (s *service) LatestRates(ctx context.Context) ([]models.ConversionRate, error) {
	return s.repo.ListLatestRates(ctx)
}

func (s *service) History(ctx context.Context, code string) ([]models.ConversionRate, error) {
	return s.repo.RateHistory(ctx, strings.ToUpper(code))
}

type latestResponse struct {
	Result          string                     `json:"result"`
	ErrorType       string                     `json:"error-type"`
	BaseCode        string                     `json:"base_code"`
	ConversionRates map[string]decimal.Decimal `json:"conversion_rates"`
}

func (s *service) Refresh(ctx context.Context) (updated int, err error) {
	defer func() { s.metrics.RecordRateRefresh(err == nil, updated) }()

	if s.config.APIKey == "" {
		return 0, ErrNotConfigured
	}

	currencies, err := s.repo.ListCurrencies(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	latest, err := s.fetchLatest(ctx)
	if err != nil {
		s.log.Error("rate fetch failed", zap.Error(err))
		return 0, err
	}

	rows := make([]models.ConversionRate, 0, len(currencies))
	var keys []string
	for _, c := range currencies {
		if c.Code == models.BaseCurrency {
			continue
		}
		rate, ok := latest.ConversionRates[c.Code]
		if !ok || !rate.IsPositive() {
			s.log.Warn("no usable rate in response", zap.String("code", c.Code))
			continue
		}
		rows = append(rows, models.ConversionRate{
			FromCode: models.BaseCurrency,
			ToCode:   c.Code,
			Rate:     rate,
			Source:   rateSource,
		})
		keys = append(keys, cache.LatestRateKey(c.Code))
	}
	if len(rows) == 0 {
		return 0, nil
	}

	if err := s.repo.ReplaceLatest(ctx, rows); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.log.Warn("rate cache invalidation failed", zap.Error(err))
	}

	s.log.Info("exchange rates refreshed", zap.Int("updated", len(rows)))
	return len(rows), nil
}

func (s *service) fetchLatest(ctx context.Context) (*latestResponse, error) {
	url := fmt.Sprintf("%s/v6/%s/latest/%s", strings.TrimRight(s.config.BaseURL, "/"), s.config.APIKey, models.BaseCurrency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRateResponse))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrRefreshFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrRefreshFailed, resp.StatusCode)
	}

	var out latestResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrRefreshFailed, err)
	}
	if out.Result != "success" {
		return nil, fmt.Errorf("%w: api result %q %s", ErrRefreshFailed, out.Result, out.ErrorType)
	}
	return &out, nil
}
