package models

import "time"

// WorkspaceUser links a User to a Workspace with a workspace-scoped role.
// Pure relation: it has no lifecycle beyond its parents.
type WorkspaceUser struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	WorkspaceID uint      `gorm:"not null;index:ux_workspace_users_workspace_user,unique,priority:1" json:"workspace_id"`
	UserID      uint      `gorm:"not null;index:ux_workspace_users_workspace_user,unique,priority:2" json:"user_id"`
	Role        string    `gorm:"type:varchar(50);default:'member'" json:"role"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
