package middleware

import (
	"context"
	"strings"

	"mercado/internal/apperror"
	"mercado/internal/metrics"
	"mercado/internal/models"
	"mercado/internal/services"

	"github.com/gofiber/fiber/v2"
)

const (
	localUser   = "user"
	localClaims = "claims"
)

// Authenticator resolves a bearer token to the current user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, *services.Claims, error)
}

// AuthRequired is a Fiber middleware to check for a valid JWT token. The
// authenticated user is stored in the context for subsequent handlers.
func AuthRequired(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			metrics.AuthFailure(metrics.ReasonMissingHeader)
			return apperror.Authentication("authorization header is required")
		}

		// Expected format: "Bearer <token>"
		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || scheme != "Bearer" || strings.TrimSpace(token) == "" {
			metrics.AuthFailure(metrics.ReasonBadScheme)
			return apperror.Authentication("authorization header format must be 'Bearer <token>'")
		}

		user, claims, err := auth.Authenticate(c.UserContext(), strings.TrimSpace(token))
		if err != nil {
			return err
		}

		c.Locals(localUser, user)
		c.Locals(localClaims, claims)
		return c.Next()
	}
}

// CurrentUser returns the user stored by AuthRequired, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(localUser).(*models.User)
	return user
}

// CurrentClaims returns the token claims stored by AuthRequired, or nil.
func CurrentClaims(c *fiber.Ctx) *services.Claims {
	claims, _ := c.Locals(localClaims).(*services.Claims)
	return claims
}
