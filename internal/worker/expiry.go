package worker

import (
	"context"
	"fmt"
	"time"

	"ocru/internal/metrics"

	"go.uber.org/zap"
)

// PendingExpirer is the single statement the scanner needs.
type PendingExpirer interface {
	ExpirePending(ctx context.Context, cutoff time.Time) (int64, error)
}

// ExpiryScanner marks pending transactions older than ttl as expired.
type ExpiryScanner struct {
	repo    PendingExpirer
	ttl     time.Duration
	metrics metrics.MetricsCollector
	logger  *zap.Logger
	now     func() time.Time
}

func NewExpiryScanner(repo PendingExpirer, ttl time.Duration, m metrics.MetricsCollector, logger *zap.Logger) *ExpiryScanner {
	if m == nil {
		m = metrics.NoopMetricsCollector{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpiryScanner{repo: repo, ttl: ttl, metrics: m, logger: logger, now: time.Now}
}

func (s *ExpiryScanner) Name() string { return "pending-expiry" }

func (s *ExpiryScanner) Run(ctx context.Context) error {
	_, err := s.Scan(ctx)
	return err
}

// Scan expires everything still pending past the cutoff and returns how many
// rows changed.
func (s *ExpiryScanner) Scan(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.ttl)
	n, err := s.repo.ExpirePending(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire pending transactions: %w", err)
	}
	s.metrics.RecordExpired(n)
	if n > 0 {
		s.logger.Info("expired pending transactions", zap.Int64("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}
