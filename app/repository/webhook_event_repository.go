package repository

import (
	"time"

	"github.com/fndlabs/foundation/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a webhook event ledger repository.
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// CreateIfNotExists inserts the event unless a row for the same
// (provider, provider_event_id) already exists. Returns whether a new row was
// created plus the stored row either way, so duplicate deliveries can be
// acknowledged without reprocessing.
func (r *webhookEventRepository) CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *webhookEventRepository) GetByID(id uint) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := r.db.First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// MarkProcessing covers both the first attempt (pending) and a redelivery of
// a previously failed event.
func (r *webhookEventRepository) MarkProcessing(id uint) error {
	return r.db.Model(&models.WebhookEvent{}).
		Where("id = ? AND status IN ?", id, []string{models.WebhookStatusPending, models.WebhookStatusFailed}).
		Update("status", models.WebhookStatusProcessing).Error
}

// MarkProcessed is an idempotent no-op when the event is already processed.
func (r *webhookEventRepository) MarkProcessed(id uint) error {
	now := time.Now()
	return r.db.Model(&models.WebhookEvent{}).
		Where("id = ? AND status <> ?", id, models.WebhookStatusProcessed).
		Updates(map[string]interface{}{
			"status":        models.WebhookStatusProcessed,
			"processed_at":  &now,
			"error_message": "",
		}).Error
}

// MarkFailed records the latest processing error. A processed event is never
// downgraded back to failed.
func (r *webhookEventRepository) MarkFailed(id uint, errorMessage string) error {
	return r.db.Model(&models.WebhookEvent{}).
		Where("id = ? AND status <> ?", id, models.WebhookStatusProcessed).
		Updates(map[string]interface{}{
			"status":        models.WebhookStatusFailed,
			"error_message": errorMessage,
		}).Error
}
