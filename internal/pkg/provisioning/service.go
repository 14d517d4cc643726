package provisioning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/fndlabs/foundation/app/models"
	"github.com/fndlabs/foundation/app/repository"
	"github.com/fndlabs/foundation/internal/pkg/config"
	"github.com/fndlabs/foundation/internal/pkg/dispatch"
)

var (
	// ErrEmailConflict means the email is already bound to a different
	// external identity. Never auto-resolved; an operator has to look.
	ErrEmailConflict = errors.New("email already in use by a different identity")
	// ErrProvisioningFailed wraps storage faults inside the atomic
	// aggregate creation. Retriable: the caller should answer failure so
	// the provider redelivers.
	ErrProvisioningFailed = errors.New("tenant provisioning failed")
)

const defaultWorkspaceName = "My Workspace"

// Result reports the outcome of a provisioning call.
type Result struct {
	UserID    uint
	AccountID uint
	Created   bool
}

// Service creates the Account -> Workspace -> User -> WorkspaceUser aggregate
// for a new external identity, idempotent on the identity's id. Both the
// webhook path and the reconciliation loop funnel through Provision.
type Service struct {
	users     repository.UserRepository
	tenants   repository.TenantRepository
	publisher dispatch.EventPublisher
	cfg       *config.Config
}

// NewService creates a provisioning service from injected dependencies.
func NewService(users repository.UserRepository, tenants repository.TenantRepository, publisher dispatch.EventPublisher, cfg *config.Config) *Service {
	return &Service{
		users:     users,
		tenants:   tenants,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Provision ensures a local tenant exists for the given external identity.
//
// The fast path returns the existing user (webhook redelivery, reconciliation
// overlap). The check is not race-free on its own; the unique index on
// users.auth_user_id closes the race, and losing that race is reported as
// Created=false, not as an error.
func (s *Service) Provision(ctx context.Context, authUserID, email, fullName string) (*Result, error) {
	authUserID = strings.TrimSpace(authUserID)
	email = strings.TrimSpace(email)
	fullName = strings.TrimSpace(fullName)
	if authUserID == "" || email == "" {
		return nil, fmt.Errorf("%w: auth user id and email are required", ErrProvisioningFailed)
	}
	if fullName == "" {
		fullName, _, _ = strings.Cut(email, "@")
	}

	// Idempotency fast path.
	existing, err := s.users.GetByAuthUserID(authUserID)
	if err == nil {
		return &Result{UserID: existing.ID, AccountID: existing.AccountID, Created: false}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
	}

	// Email bound to someone else means manual tampering or a conflicting
	// identity; refuse to resolve silently.
	if _, err := s.users.GetByEmail(email); err == nil {
		return nil, ErrEmailConflict
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
	}

	role := models.RoleOwner
	if s.cfg.IsSuperAdminEmail(email) {
		role = models.RoleSuperAdmin
		log.Infof("[Provisioning] Creating super admin user for %s", email)
	}

	account := &models.Account{
		Name:   accountName(fullName),
		Status: models.AccountStatusActive,
	}
	workspace := &models.Workspace{
		Name:             defaultWorkspaceName,
		Status:           models.WorkspaceStatusActive,
		OnboardingStatus: models.OnboardingPending,
	}
	user := &models.User{
		AuthUserID: &authUserID,
		FullName:   fullName,
		Email:      email,
		Role:       role,
		Status:     models.StatusActive,
	}
	workspaceUser := &models.WorkspaceUser{
		Role: models.RoleOwner,
	}

	if err := s.tenants.CreateTenant(ctx, account, workspace, user, workspaceUser); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateAuthUserID):
			// Lost the race against a concurrent provision of the same
			// identity. The winner's rows are the tenant.
			winner, lookupErr := s.users.GetByAuthUserID(authUserID)
			if lookupErr != nil {
				return nil, fmt.Errorf("%w: %v", ErrProvisioningFailed, lookupErr)
			}
			return &Result{UserID: winner.ID, AccountID: winner.AccountID, Created: false}, nil
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, ErrEmailConflict
		default:
			return nil, fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
		}
	}

	log.Infof("[Provisioning] Provisioned tenant: account=%d workspace=%d user=%d authUserID=%s",
		account.ID, workspace.ID, user.ID, authUserID)

	if err := s.publisher.Publish(ctx, dispatch.AccountCreatedEvent{
		AccountID:    account.ID,
		WorkspaceID:  workspace.ID,
		UserID:       user.ID,
		AuthUserID:   authUserID,
		UserFullName: fullName,
		UserEmail:    email,
	}); err != nil {
		// The aggregate is committed; only the side-effect submission
		// failed. Surfacing it makes the provider redeliver, which hits
		// the idempotency fast path and is harmless.
		return nil, err
	}

	return &Result{UserID: user.ID, AccountID: account.ID, Created: true}, nil
}

func accountName(fullName string) string {
	if fullName == "" {
		return "New Account"
	}
	return fullName + "'s Account"
}
