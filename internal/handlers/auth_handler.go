package handlers

import (
	"mercado/internal/middleware"
	"mercado/internal/services"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
	requireAuth fiber.Handler
	throttle    fiber.Handler
}

// NewAuthHandler creates a new AuthHandler. throttle limits login and
// recovery attempts and may be nil.
func NewAuthHandler(authService *services.AuthService, requireAuth, throttle fiber.Handler) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		requireAuth: requireAuth,
		throttle:    throttle,
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/registro", h.HandleRegister)
	authRoutes.Post("/login", h.throttled(h.HandleLogin)...)
	authRoutes.Post("/recuperar", h.throttled(h.HandleRequestPasswordReset)...)
	authRoutes.Post("/restablecer", h.throttled(h.HandleResetPassword)...)
	authRoutes.Get("/perfil", h.requireAuth, h.HandleProfile)
	authRoutes.Post("/logout", h.requireAuth, h.HandleLogout)
}

func (h *AuthHandler) throttled(handler fiber.Handler) []fiber.Handler {
	if h.throttle == nil {
		return []fiber.Handler{handler}
	}
	return []fiber.Handler{h.throttle, handler}
}

// HandleRegister handles new user registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req services.RegisterInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	session, err := h.authService.Register(c.UserContext(), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "user registered successfully", sessionPayload(session))
}

// HandleLogin handles user login and issues a JWT token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req services.LoginInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	session, err := h.authService.Login(c.UserContext(), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "login successful", sessionPayload(session))
}

// HandleProfile returns the authenticated user.
func (h *AuthHandler) HandleProfile(c *fiber.Ctx) error {
	return respond(c, fiber.StatusOK, "", fiber.Map{"usuario": middleware.CurrentUser(c)})
}

// HandleLogout revokes the presented token.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	if err := h.authService.Logout(c.UserContext(), middleware.CurrentClaims(c)); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "logged out", nil)
}

// HandleRequestPasswordReset sends a recovery code. The response is the same
// whether or not the email is registered.
func (h *AuthHandler) HandleRequestPasswordReset(c *fiber.Ctx) error {
	var req services.PasswordResetRequestInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if err := h.authService.RequestPasswordReset(c.UserContext(), req); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "if the email is registered, a recovery code has been sent", nil)
}

// HandleResetPassword sets a new password using a recovery code.
func (h *AuthHandler) HandleResetPassword(c *fiber.Ctx) error {
	var req services.PasswordResetInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if err := h.authService.ResetPassword(c.UserContext(), req); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "password updated", nil)
}

func sessionPayload(s *services.Session) fiber.Map {
	return fiber.Map{"usuario": s.User, "token": s.Token, "expira": s.ExpiresAt}
}
