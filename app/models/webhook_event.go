package models

import "time"

const (
	WebhookStatusPending    = "pending"
	WebhookStatusProcessing = "processing"
	WebhookStatusProcessed  = "processed"
	WebhookStatusFailed     = "failed"
)

// WebhookEvent is the durable audit record for every inbound provider event,
// with deduplication metadata for idempotent processing. Rows are append-only;
// the status reflects the outcome of the last processing attempt.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	AccountID       *uint      `gorm:"default:null;index" json:"account_id,omitempty"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_webhook_events_provider_event,unique,priority:1;index" json:"provider"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;default:'';index:ux_webhook_events_provider_event,unique,priority:2" json:"provider_event_id"`
	EventName       string     `gorm:"type:varchar(100);not null;index" json:"event_name"`
	Status          string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	ErrorMessage    string     `gorm:"type:text" json:"error_message"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
