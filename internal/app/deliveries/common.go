package deliveries

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"github.com/safatanc/gsalt-rewards/internal/app/middlewares"
	"github.com/safatanc/gsalt-rewards/internal/app/models"
)

func paginationFromQuery(c *fiber.Ctx) *models.PaginationRequest {
	return &models.PaginationRequest{
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", 10),
	}
}

// optionalQuery returns nil when the query parameter is absent.
func optionalQuery[T ~string](c *fiber.Ctx, key string) *T {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	v := T(raw)
	return &v
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return errors.NewBadRequestError("Invalid request body")
	}
	return nil
}

func currentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	id := middlewares.CurrentUserID(c)
	if id == nil {
		return uuid.Nil, errors.NewUnauthorizedError("User is not authenticated")
	}
	return *id, nil
}
