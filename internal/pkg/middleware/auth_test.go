package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fndlabs/foundation/app/models"
	"github.com/fndlabs/foundation/internal/pkg/config"
	"github.com/fndlabs/foundation/internal/pkg/usercontext"
)

const testJWTSecret = "test-jwt-secret"

type fakeUserRepo struct {
	users   map[string]*models.User
	updated []*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) Create(user *models.User) error { return nil }

func (f *fakeUserRepo) GetByID(id uint) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) GetByAuthUserID(authUserID string) (*models.User, error) {
	if u, ok := f.users[authUserID]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) GetByEmail(email string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) Update(user *models.User) error {
	f.updated = append(f.updated, user)
	return nil
}

func (f *fakeUserRepo) List(o, l int) ([]models.User, error) { return nil, nil }

func (f *fakeUserRepo) Count() (int64, error) { return 0, nil }

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newTestApp(users *fakeUserRepo) *fiber.App {
	cfg := &config.Config{SuperAdminEmail: "root@example.com"}
	cfg.Supabase.JWTSecret = testJWTSecret
	app := fiber.New()
	app.Get("/me", RequireUser(users, cfg), func(c *fiber.Ctx) error {
		return c.JSON(usercontext.GetUserContext(c))
	})
	return app
}

func TestRequireUserAcceptsValidToken(t *testing.T) {
	users := newFakeUserRepo()
	authID := "auth-1"
	users.users[authID] = &models.User{
		ID: 1, AccountID: 7, AuthUserID: &authID,
		Email: "maria@example.com", Role: models.RoleOwner, Status: models.StatusActive,
	}
	app := newTestApp(users)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testJWTSecret, authID))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireUserRejectsMissingToken(t *testing.T) {
	app := newTestApp(newFakeUserRepo())

	resp, err := app.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireUserRejectsBadSignature(t *testing.T) {
	users := newFakeUserRepo()
	authID := "auth-1"
	users.users[authID] = &models.User{ID: 1, AuthUserID: &authID, Status: models.StatusActive}
	app := newTestApp(users)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "wrong-secret", authID))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireUserRejectsUnknownSubject(t *testing.T) {
	app := newTestApp(newFakeUserRepo())

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testJWTSecret, "auth-nobody"))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireUserRejectsInactiveUser(t *testing.T) {
	users := newFakeUserRepo()
	authID := "auth-1"
	users.users[authID] = &models.User{
		ID: 1, AuthUserID: &authID, Email: "maria@example.com",
		Role: models.RoleOwner, Status: models.StatusDisabled,
	}
	app := newTestApp(users)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testJWTSecret, authID))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestRequireUserElevatesSuperAdmin(t *testing.T) {
	users := newFakeUserRepo()
	authID := "auth-1"
	users.users[authID] = &models.User{
		ID: 1, AuthUserID: &authID, Email: "ROOT@example.com",
		Role: models.RoleOwner, Status: models.StatusActive,
	}
	app := newTestApp(users)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testJWTSecret, authID))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Len(t, users.updated, 1)
	assert.Equal(t, models.RoleSuperAdmin, users.updated[0].Role)

	// Second request: already elevated, no second update.
	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testJWTSecret, authID))
	_, err = app.Test(req)
	require.NoError(t, err)
	assert.Len(t, users.updated, 1)
}
