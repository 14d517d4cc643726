package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/fndlabs/foundation/app/models"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateAuthUserID signals that another caller already provisioned
	// this external identity. Callers treat this as "already provisioned".
	ErrDuplicateAuthUserID = errors.New("auth user id already provisioned")
	// ErrDuplicateEmail signals that the email is already bound to a user.
	ErrDuplicateEmail = errors.New("email already in use")
)

const mysqlDuplicateEntry = 1062

type tenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository creates the transactional tenant aggregate repository.
func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &tenantRepository{db: db}
}

// CreateTenant creates the full aggregate inside one transaction. The unique
// indexes on users.auth_user_id and users.email are what makes concurrent
// provisioning of the same identity safe: the loser of the race fails here
// with a translated duplicate error and the transaction rolls back all rows.
func (r *tenantRepository) CreateTenant(
	ctx context.Context,
	account *models.Account,
	workspace *models.Workspace,
	user *models.User,
	workspaceUser *models.WorkspaceUser,
) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := account.Validate(); err != nil {
			return err
		}
		if err := tx.Create(account).Error; err != nil {
			return err
		}

		workspace.AccountID = account.ID
		if err := workspace.Validate(); err != nil {
			return err
		}
		if err := tx.Create(workspace).Error; err != nil {
			return err
		}

		user.AccountID = account.ID
		if err := user.Validate(); err != nil {
			return err
		}
		if err := tx.Create(user).Error; err != nil {
			return err
		}

		workspaceUser.WorkspaceID = workspace.ID
		workspaceUser.UserID = user.ID
		return tx.Create(workspaceUser).Error
	})
	return translateDuplicateError(err)
}

func translateDuplicateError(err error) error {
	if err == nil {
		return nil
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
		msg := mysqlErr.Message
		switch {
		case strings.Contains(msg, "ux_users_auth_user_id"):
			return ErrDuplicateAuthUserID
		case strings.Contains(msg, "ux_users_email"):
			return ErrDuplicateEmail
		}
	}
	return err
}
