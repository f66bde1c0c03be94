package middlewares

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"github.com/safatanc/gsalt-rewards/internal/app/models"
	"github.com/safatanc/gsalt-rewards/internal/app/pkg"
	"github.com/safatanc/gsalt-rewards/internal/app/services"
)

const (
	LocalConnectUser = "connect_user"
	LocalUserID      = "user_id"
)

type AuthMiddleware struct {
	connectService *services.ConnectService
}

func NewAuthMiddleware(connectService *services.ConnectService) *AuthMiddleware {
	return &AuthMiddleware{connectService: connectService}
}

// AuthConnect resolves the bearer token against Connect and stores the user
// in the request locals.
func (m *AuthMiddleware) AuthConnect(c *fiber.Ctx) error {
	token := c.Get("Authorization")
	if token == "" {
		return pkg.ErrorResponse(c, errors.NewUnauthorizedError())
	}

	token = strings.TrimPrefix(token, "Bearer ")

	connectUser, err := m.connectService.GetCurrentUser(token)
	if err != nil {
		return pkg.ErrorResponse(c, errors.NewUnauthorizedError(err.Error()))
	}

	c.Locals(LocalConnectUser, connectUser)
	c.Locals(LocalUserID, connectUser.ID)

	return c.Next()
}

// RequireAdmin must run after AuthConnect.
func (m *AuthMiddleware) RequireAdmin(c *fiber.Ctx) error {
	user := CurrentUser(c)
	if user == nil {
		return pkg.ErrorResponse(c, errors.NewUnauthorizedError("User is not authenticated"))
	}
	if !user.IsAdmin() {
		return pkg.ErrorResponse(c, errors.NewForbiddenError("Administrator role required"))
	}

	return c.Next()
}

func CurrentUser(c *fiber.Ctx) *models.ConnectUser {
	user, _ := c.Locals(LocalConnectUser).(*models.ConnectUser)
	return user
}

// CurrentUserID returns the authenticated user id, or nil outside AuthConnect.
func CurrentUserID(c *fiber.Ctx) *uuid.UUID {
	user := CurrentUser(c)
	if user == nil {
		return nil
	}
	id := user.ID
	return &id
}
