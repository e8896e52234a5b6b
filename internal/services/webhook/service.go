// Package webhook ingests provider notifications: every call is logged,
// verified by its adapter, matched to a transaction and settled.
package webhook

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"ocru/internal/metrics"
	"ocru/internal/models"
	"ocru/internal/repositories"
	"ocru/internal/services/gateway"
	"ocru/internal/services/ledger"

	"go.uber.org/zap"
)

// maxLoggedPayload bounds the audit copy of a body.
const maxLoggedPayload = 64 << 10

// Result is the final state of one inbound call.
type Result struct {
	LogID         string
	Status        string
	TransactionID string
}

type Service interface {
	// Ingest returns an error only for calls that must not be acknowledged:
	// gateway.ErrVerificationFailed, gateway.ErrInvalidPayload,
	// gateway.ErrProviderMisconfigured and gateway.ErrUnknownProvider.
	// Every other outcome, internal failures included, is a Result.
	Ingest(ctx context.Context, provider string, req gateway.WebhookRequest) (*Result, error)
}

type service struct {
	gateways *gateway.Registry
	ledger   ledger.Service
	logs     repositories.WebhookLogRepository
	metrics  metrics.MetricsCollector
	log      *zap.Logger
}

func NewService(gateways *gateway.Registry, l ledger.Service, logs repositories.WebhookLogRepository, m metrics.MetricsCollector, log *zap.Logger) Service {
	if gateways == nil || l == nil || logs == nil {
		panic("webhook service requires gateways, ledger and log repository")
	}
	if m == nil {
		m = metrics.NoopMetricsCollector{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &service{gateways: gateways, ledger: l, logs: logs, metrics: m, log: log.Named("webhook")}
}

func (s *service) Ingest(ctx context.Context, provider string, req gateway.WebhookRequest) (*Result, error) {
	adapter, err := s.gateways.Get(provider)
	if err != nil {
		return nil, err
	}
	provider = adapter.Provider()

	entry := &models.WebhookLog{
		Provider:  provider,
		Payload:   auditPayload(req.Body),
		Status:    models.WebhookStatusReceived,
		IPAddress: req.IP,
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		// Processing still goes ahead; the provider would only retry.
		s.log.Error("failed to write webhook log", zap.String("provider", provider), zap.Error(err))
	}

	res := &Result{LogID: entry.ID}
	logger := s.log.With(zap.String("provider", provider), zap.String("webhook_log_id", entry.ID))

	n, err := adapter.Verify(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrProviderMisconfigured):
			logger.Error("webhook secret not configured")
			s.finish(ctx, res, models.WebhookStatusError, provider)
		case errors.Is(err, gateway.ErrVerificationFailed):
			logger.Warn("webhook authentication failed", zap.String("ip", req.IP))
			s.finish(ctx, res, models.WebhookStatusRejected, provider)
		default:
			logger.Warn("webhook payload rejected", zap.Error(err))
			s.finish(ctx, res, models.WebhookStatusInvalid, provider)
		}
		return res, err
	}
	logger = logger.With(zap.String("event", n.EventType))

	status := s.process(ctx, n, res, logger)
	s.finish(ctx, res, status, provider)
	return res, nil
}

func (s *service) process(ctx context.Context, n *gateway.Notification, res *Result, logger *zap.Logger) string {
	switch n.Outcome {
	case gateway.OutcomeIgnored:
		return models.WebhookStatusIgnored
	case gateway.OutcomeInvalid:
		logger.Warn("webhook missing required fields")
		return models.WebhookStatusInvalid
	}

	if n.MatchKey != "" && !strings.HasPrefix(n.MatchKey, gateway.MemoPrefix) {
		logger.Info("memo does not carry our prefix", zap.String("memo", n.MatchKey))
		return models.WebhookStatusNoMatch
	}

	tx, err := s.ledger.FindForNotification(ctx, n)
	if errors.Is(err, ledger.ErrNotFound) && n.Outcome == gateway.OutcomePaid && n.Recoverable {
		tx, err = s.ledger.RecoverDeposit(ctx, n)
	}
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			logger.Warn("no transaction for notification",
				zap.String("correlation_key", n.CorrelationKey),
				zap.String("match_key", n.MatchKey))
			return models.WebhookStatusNoMatch
		}
		logger.Error("transaction lookup failed", zap.Error(err))
		return models.WebhookStatusError
	}
	res.TransactionID = tx.ID
	logger = logger.With(zap.String("transaction_id", tx.ID))

	if tx.IsTerminal() {
		logger.Info("notification for terminal transaction", zap.String("status", tx.Status))
		return models.WebhookStatusDuplicate
	}

	if n.Outcome == gateway.OutcomeFailed {
		if _, err := s.ledger.Fail(ctx, tx.ID, n.Raw); err != nil {
			logger.Error("failed to mark transaction failed", zap.Error(err))
			return models.WebhookStatusError
		}
		return models.WebhookStatusProcessed
	}

	if n.RequireAmountMatch && n.Amount != tx.Amount {
		logger.Warn("amount mismatch",
			zap.Int64("expected", tx.Amount),
			zap.Int64("received", n.Amount))
		return models.WebhookStatusAmountMismatch
	}

	settled, err := s.ledger.Settle(ctx, tx.ID, n.Raw, n.GatewayTxnID)
	if err != nil {
		logger.Error("settlement failed", zap.Error(err))
		return models.WebhookStatusError
	}
	if !settled {
		return models.WebhookStatusDuplicate
	}
	return models.WebhookStatusProcessed
}

func (s *service) finish(ctx context.Context, res *Result, status, provider string) {
	res.Status = status
	s.metrics.RecordWebhook(provider, status)
	if res.LogID == "" {
		return
	}
	var matched *string
	if res.TransactionID != "" {
		matched = &res.TransactionID
	}
	if err := s.logs.UpdateStatus(ctx, res.LogID, status, matched); err != nil {
		s.log.Error("failed to update webhook log", zap.String("webhook_log_id", res.LogID), zap.Error(err))
	}
}

// auditPayload bounds body to maxLoggedPayload bytes without splitting a
// rune, and drops what postgres text columns reject: invalid UTF-8 and NUL.
func auditPayload(body []byte) string {
	if len(body) > maxLoggedPayload {
		cut := maxLoggedPayload
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}
	return strings.ReplaceAll(strings.ToValidUTF8(string(body), "\uFFFD"), "\x00", "")
}
