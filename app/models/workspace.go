package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	WorkspaceStatusActive   = "active"
	WorkspaceStatusArchived = "archived"

	OnboardingPending    = "pending"
	OnboardingInProgress = "in_progress"
	OnboardingCompleted  = "completed"
	OnboardingSkipped    = "skipped"
)

// Workspace is the operational unit under an Account. Every new Account gets
// exactly one default workspace during provisioning.
type Workspace struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	AccountID        uint           `gorm:"not null;index" json:"account_id" validate:"required"`
	Name             string         `gorm:"type:varchar(200);not null" json:"name" validate:"required,min=1,max=200"`
	Status           string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active archived"`
	OnboardingStatus string         `gorm:"type:varchar(50);default:'pending'" json:"onboarding_status" validate:"oneof=pending in_progress completed skipped"`
	ArchivedAt       *time.Time     `gorm:"type:timestamp;default:null" json:"archived_at,omitempty"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (w *Workspace) Validate() error {
	v := validator.New()

	return v.Struct(w)
}
