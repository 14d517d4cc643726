package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"

	"github.com/fndlabs/foundation/app/models"
	"github.com/fndlabs/foundation/app/repository"
	"github.com/fndlabs/foundation/internal/pkg/config"
	"github.com/fndlabs/foundation/internal/pkg/usercontext"
)

// RequireUser authenticates requests carrying the identity provider's bearer
// token. The token is the provider's HS256 access token; its subject is the
// auth user id we key local users on.
func RequireUser(users repository.UserRepository, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearerToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing bearer token"})
		}

		authUserID, err := verifyAccessToken(token, cfg.Supabase.JWTSecret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid token"})
		}

		user, err := users.GetByAuthUserID(authUserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Unknown user"})
			}
			log.Errorf("[Auth] User lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "User verification failed"})
		}

		if !user.IsActive() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "User inactive"})
		}

		// Re-check the super-admin binding on every request so a config
		// change takes effect without re-provisioning. Idempotent.
		if cfg.IsSuperAdminEmail(user.Email) && !user.IsSuperAdmin() {
			user.Role = models.RoleSuperAdmin
			if err := users.Update(user); err != nil {
				log.Errorf("[Auth] Failed to elevate super admin %s: %v", user.Email, err)
			} else {
				log.Infof("[Auth] Elevated %s to super admin", user.Email)
			}
		}

		usercontext.SetUserContext(c, usercontext.UserContext{
			UserID:       user.ID,
			AccountID:    user.AccountID,
			AuthUserID:   authUserID,
			Email:        user.Email,
			FullName:     user.FullName,
			Role:         user.Role,
			IsLoggedIn:   true,
			IsSuperAdmin: user.IsSuperAdmin(),
		})

		return c.Next()
	}
}

func extractBearerToken(c *fiber.Ctx) string {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if header == "" {
		return ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func verifyAccessToken(token, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("SUPABASE_JWT_SECRET is not configured")
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}
