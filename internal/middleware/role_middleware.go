package middleware

import (
	"fmt"
	"slices"

	"mercado/internal/apperror"
	"mercado/internal/models"

	"github.com/gofiber/fiber/v2"
)

// RequireRole allows the request through only when the authenticated user
// holds one of roles. It must run after AuthRequired.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return apperror.Internal("precondition failed: no authenticated user", nil)
		}
		if !user.Role.Valid() {
			return apperror.Internal(fmt.Sprintf("user %s has an invalid role", user.ID), nil)
		}
		if !slices.Contains(roles, user.Role) {
			return apperror.Authorization("you do not have permission to perform this action", map[string]any{
				"roles_requeridos": roles,
				"tu_rol":           user.Role,
			})
		}
		return c.Next()
	}
}
