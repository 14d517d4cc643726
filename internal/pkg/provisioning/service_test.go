package provisioning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fndlabs/foundation/app/models"
	"github.com/fndlabs/foundation/app/repository"
	"github.com/fndlabs/foundation/internal/pkg/config"
	"github.com/fndlabs/foundation/internal/pkg/dispatch"
)

type fakeUserRepo struct {
	byAuthID map[string]*models.User
	byEmail  map[string]*models.User
	err      error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byAuthID: make(map[string]*models.User),
		byEmail:  make(map[string]*models.User),
	}
}

func (f *fakeUserRepo) add(u *models.User) {
	if u.AuthUserID != nil {
		f.byAuthID[*u.AuthUserID] = u
	}
	f.byEmail[u.Email] = u
}

func (f *fakeUserRepo) Create(user *models.User) error { return errors.New("not implemented") }
func (f *fakeUserRepo) GetByID(id uint) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeUserRepo) GetByAuthUserID(authUserID string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.byAuthID[authUserID]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeUserRepo) GetByEmail(email string) (*models.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeUserRepo) Update(user *models.User) error { return nil }

func (f *fakeUserRepo) List(o, l int) ([]models.User, error) { return nil, nil }

func (f *fakeUserRepo) Count() (int64, error) { return 0, nil }

type fakeTenantRepo struct {
	err     error
	onCall  func(f *fakeTenantRepo)
	calls   int
	created *models.User
}

func (f *fakeTenantRepo) CreateTenant(ctx context.Context, account *models.Account, workspace *models.Workspace, user *models.User, wu *models.WorkspaceUser) error {
	f.calls++
	if f.onCall != nil {
		f.onCall(f)
	}
	if f.err != nil {
		return f.err
	}
	account.ID = 10
	workspace.ID = 20
	workspace.AccountID = account.ID
	user.ID = 30
	user.AccountID = account.ID
	wu.WorkspaceID = workspace.ID
	wu.UserID = user.ID
	f.created = user
	return nil
}

type fakePublisher struct {
	events []dispatch.Event
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, event dispatch.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) PublishBatch(ctx context.Context, events []dispatch.Event) error {
	f.events = append(f.events, events...)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{SuperAdminEmail: "root@example.com"}
}

func TestProvisionCreatesAggregate(t *testing.T) {
	users := newFakeUserRepo()
	tenants := &fakeTenantRepo{}
	pub := &fakePublisher{}
	svc := NewService(users, tenants, pub, testConfig())

	res, err := svc.Provision(context.Background(), "auth-1", "maria@example.com", "Maria Silva")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, uint(30), res.UserID)
	assert.Equal(t, uint(10), res.AccountID)
	assert.Equal(t, 1, tenants.calls)

	require.NotNil(t, tenants.created)
	assert.Equal(t, models.RoleOwner, tenants.created.Role)
	assert.Equal(t, models.StatusActive, tenants.created.Status)

	require.Len(t, pub.events, 1)
	evt, ok := pub.events[0].(dispatch.AccountCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, "auth-1", evt.AuthUserID)
	assert.Equal(t, "maria@example.com", evt.UserEmail)
}

func TestProvisionIsIdempotent(t *testing.T) {
	users := newFakeUserRepo()
	authID := "auth-1"
	users.add(&models.User{ID: 30, AccountID: 10, AuthUserID: &authID, Email: "maria@example.com"})
	tenants := &fakeTenantRepo{}
	pub := &fakePublisher{}
	svc := NewService(users, tenants, pub, testConfig())

	res, err := svc.Provision(context.Background(), "auth-1", "maria@example.com", "Maria Silva")
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, uint(30), res.UserID)
	assert.Equal(t, uint(10), res.AccountID)
	assert.Equal(t, 0, tenants.calls, "fast path must not touch storage")
	assert.Empty(t, pub.events, "no event on redelivery")
}

func TestProvisionEmailConflict(t *testing.T) {
	users := newFakeUserRepo()
	otherAuth := "auth-other"
	users.add(&models.User{ID: 7, AuthUserID: &otherAuth, Email: "maria@example.com"})
	svc := NewService(users, &fakeTenantRepo{}, &fakePublisher{}, testConfig())

	_, err := svc.Provision(context.Background(), "auth-1", "maria@example.com", "Maria Silva")
	require.ErrorIs(t, err, ErrEmailConflict)
}

func TestProvisionSuperAdminRole(t *testing.T) {
	users := newFakeUserRepo()
	tenants := &fakeTenantRepo{}
	svc := NewService(users, tenants, &fakePublisher{}, testConfig())

	_, err := svc.Provision(context.Background(), "auth-1", "ROOT@example.com", "Root User")
	require.NoError(t, err)
	require.NotNil(t, tenants.created)
	assert.Equal(t, models.RoleSuperAdmin, tenants.created.Role)
}

func TestProvisionDuplicateRaceReturnsWinner(t *testing.T) {
	users := newFakeUserRepo()
	tenants := &fakeTenantRepo{err: repository.ErrDuplicateAuthUserID}
	// Simulate the concurrent winner committing before our insert failed.
	tenants.onCall = func(f *fakeTenantRepo) {
		authID := "auth-1"
		users.add(&models.User{ID: 99, AccountID: 55, AuthUserID: &authID, Email: "maria@example.com"})
	}
	pub := &fakePublisher{}
	svc := NewService(users, tenants, pub, testConfig())

	res, err := svc.Provision(context.Background(), "auth-1", "maria@example.com", "Maria Silva")
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, uint(99), res.UserID)
	assert.Equal(t, uint(55), res.AccountID)
	assert.Empty(t, pub.events)
}

func TestProvisionDuplicateEmailFromStorage(t *testing.T) {
	users := newFakeUserRepo()
	tenants := &fakeTenantRepo{err: repository.ErrDuplicateEmail}
	svc := NewService(users, tenants, &fakePublisher{}, testConfig())

	_, err := svc.Provision(context.Background(), "auth-1", "maria@example.com", "Maria Silva")
	require.ErrorIs(t, err, ErrEmailConflict)
}

func TestProvisionStorageFault(t *testing.T) {
	users := newFakeUserRepo()
	tenants := &fakeTenantRepo{err: errors.New("connection reset")}
	svc := NewService(users, tenants, &fakePublisher{}, testConfig())

	_, err := svc.Provision(context.Background(), "auth-1", "maria@example.com", "Maria Silva")
	require.ErrorIs(t, err, ErrProvisioningFailed)
}

func TestProvisionRejectsEmptyIdentity(t *testing.T) {
	svc := NewService(newFakeUserRepo(), &fakeTenantRepo{}, &fakePublisher{}, testConfig())

	_, err := svc.Provision(context.Background(), "", "maria@example.com", "Maria")
	require.ErrorIs(t, err, ErrProvisioningFailed)

	_, err = svc.Provision(context.Background(), "auth-1", "", "Maria")
	require.ErrorIs(t, err, ErrProvisioningFailed)
}

func TestProvisionMissingFullNameFallsBackToEmail(t *testing.T) {
	users := newFakeUserRepo()
	tenants := &fakeTenantRepo{}
	svc := NewService(users, tenants, &fakePublisher{}, testConfig())

	_, err := svc.Provision(context.Background(), "auth-1", "maria@example.com", "")
	require.NoError(t, err)
	require.NotNil(t, tenants.created)
	assert.Equal(t, "maria", tenants.created.FullName)
}
