package repository

import (
	"context"

	"hotelbooking/internal/domain"

	"gorm.io/gorm"
)

type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

func (r *WebhookEventRepository) Exists(ctx context.Context, eventID string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&domain.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Count(&cnt).Error
	return cnt > 0, err
}

// Create fails with a ConflictError when the event id was already recorded.
func (r *WebhookEventRepository) Create(ctx context.Context, e *domain.WebhookEvent) error {
	err := r.db.WithContext(ctx).Create(e).Error
	return uniqueConflict(err, "webhook event already recorded")
}
