package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	AccountStatusActive   = "active"
	AccountStatusInactive = "inactive"
)

// Account is the tenant root. Workspaces and Users hang off it via AccountID.
// Accounts are only ever created by the provisioning flow, never by
// reconciliation directly.
type Account struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	Name              string         `gorm:"type:varchar(200);not null" json:"name" validate:"required,min=1,max=200"`
	BillingCustomerID *string        `gorm:"type:varchar(191);default:null;index" json:"billing_customer_id,omitempty"`
	Status            string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive"`
	CreatedAt         time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

func (a *Account) Validate() error {
	v := validator.New()

	return v.Struct(a)
}
