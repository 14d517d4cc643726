package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fndlabs/foundation/internal/pkg/database"
	"github.com/fndlabs/foundation/internal/pkg/usercontext"
)

// HandleHealth reports liveness plus database reachability.
func HandleHealth(c *fiber.Ctx) error {
	dbStatus := "ok"
	status := fiber.StatusOK
	if err := database.Ping(); err != nil {
		dbStatus = "unavailable"
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"status":   "ok",
		"database": dbStatus,
	})
}

// HandleMe returns the authenticated user's context. Sits behind the auth
// middleware; everything it needs is already on the request.
func HandleMe(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	return c.JSON(userCtx)
}
