package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	RoleOwner      = "owner"
	RoleAdmin      = "admin"
	RoleMember     = "member"
	RoleSuperAdmin = "super_admin"

	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusDisabled = "disabled"
)

// User is the local identity record. Credentials and email verification live
// in the external identity provider; AuthUserID is the join key between the
// provider's identity and this row. The unique indexes on AuthUserID and
// Email are the race-safety mechanism for concurrent provisioning - a
// duplicate create must fail at the database, not be prevented by locks.
type User struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	AccountID  uint           `gorm:"not null;index" json:"account_id" validate:"required"`
	AuthUserID *string        `gorm:"type:varchar(64);uniqueIndex:ux_users_auth_user_id;default:null" json:"auth_user_id,omitempty"`
	FullName   string         `gorm:"type:varchar(150);not null" json:"full_name" validate:"required,min=1,max=150"`
	Email      string         `gorm:"uniqueIndex:ux_users_email;type:varchar(200) CHARACTER SET utf8 COLLATE utf8_bin;not null" json:"email" validate:"required,email,min=5,max=200"`
	Role       string         `gorm:"type:varchar(50);default:'member'" json:"role" validate:"oneof=owner admin member super_admin"`
	Status     string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// IsActive reports whether the user may authenticate.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// IsSuperAdmin reports whether the user carries the elevated role.
func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}
