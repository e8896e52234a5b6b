package repositories

import (
	"context"
	"fmt"
	"time"

	"ocru/internal/models"

	"gorm.io/gorm"
)

type WebhookLogRepository interface {
	Create(ctx context.Context, log *models.WebhookLog) error
	UpdateStatus(ctx context.Context, id, status string, matchedTxID *string) error
}

type webhookLogRepository struct {
	db *gorm.DB
}

func NewWebhookLogRepository(db *gorm.DB) WebhookLogRepository {
	return &webhookLogRepository{db: db}
}

func (r *webhookLogRepository) Create(ctx context.Context, log *models.WebhookLog) error {
	if log.Status == "" {
		log.Status = models.WebhookStatusReceived
	}
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to create webhook log: %w", err)
	}
	return nil
}

func (r *webhookLogRepository) UpdateStatus(ctx context.Context, id, status string, matchedTxID *string) error {
	fields := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if matchedTxID != nil {
		fields["matched_transaction_id"] = *matchedTxID
	}
	err := r.db.WithContext(ctx).Model(&models.WebhookLog{}).Where("id = ?", id).Updates(fields).Error
	if err != nil {
		return fmt.Errorf("failed to update webhook log: %w", err)
	}
	return nil
}
