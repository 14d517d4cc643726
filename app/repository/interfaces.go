package repository

import (
	"context"

	"github.com/fndlabs/foundation/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations.
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByAuthUserID(authUserID string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// AccountRepository defines the interface for account-related operations.
type AccountRepository interface {
	GetByID(id uint) (*models.Account, error)
	GetByBillingCustomerID(customerID string) (*models.Account, error)
	SetBillingCustomerID(id uint, customerID string) error
	Update(account *models.Account) error
}

// TenantRepository creates the Account -> Workspace -> User -> WorkspaceUser
// aggregate in a single transaction. Either all four rows exist afterwards or
// none do. Duplicate-key failures are translated to ErrDuplicateAuthUserID /
// ErrDuplicateEmail so callers can distinguish the idempotent-retry race from
// a real storage fault.
type TenantRepository interface {
	CreateTenant(ctx context.Context, account *models.Account, workspace *models.Workspace, user *models.User, workspaceUser *models.WorkspaceUser) error
}

// WebhookEventRepository defines the interface for the webhook event ledger.
// Rows are append-only; only the status fields are ever updated.
type WebhookEventRepository interface {
	CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	GetByID(id uint) (*models.WebhookEvent, error)
	MarkProcessing(id uint) error
	MarkProcessed(id uint) error
	MarkFailed(id uint, errorMessage string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Account      AccountRepository
	Tenant       TenantRepository
	WebhookEvent WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Account:      NewAccountRepository(db),
		Tenant:       NewTenantRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
	}
}
