package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"mercado/internal/apperror"
	"mercado/internal/handlers"
	"mercado/internal/middleware"
	"mercado/internal/models"
	"mercado/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, token string) (*models.User, *services.Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.User), args.Get(1).(*services.Claims), args.Error(2)
}

func newApp(chain ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	app.Get("/", chain...)
	return app
}

var errorHandler = handlers.ErrorHandler(zap.NewNop(), false)

func call(t *testing.T, app *fiber.App, header string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func whoami(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	return c.JSON(fiber.Map{"id": user.ID, "jti": middleware.CurrentClaims(c).ID})
}

func TestAuthRequired(t *testing.T) {
	auth := new(MockAuthenticator)
	app := newApp(middleware.AuthRequired(auth), whoami)

	user := &models.User{ID: "user-1", Role: models.RoleBuyer}
	claims := &services.Claims{}
	claims.ID = "jti-1"
	auth.On("Authenticate", mock.Anything, "good-token").Return(user, claims, nil)
	auth.On("Authenticate", mock.Anything, "bad-token").Return(nil, nil, apperror.Authentication("invalid token"))

	status, body := call(t, app, "Bearer good-token")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "user-1", body["id"])
	assert.Equal(t, "jti-1", body["jti"])

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"missing header", "", "authorization header is required"},
		{"wrong scheme", "Basic dXNlcjpwYXNz", "authorization header format must be 'Bearer <token>'"},
		{"lowercase scheme", "bearer good-token", "authorization header format must be 'Bearer <token>'"},
		{"empty token", "Bearer ", "authorization header format must be 'Bearer <token>'"},
		{"rejected token", "Bearer bad-token", "invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, app, tt.header)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, true, body["error"])
			assert.Equal(t, tt.message, body["mensaje"])
		})
	}
	auth.AssertNumberOfCalls(t, "Authenticate", 2)
}

func TestRequireRole(t *testing.T) {
	as := func(user *models.User) fiber.Handler {
		auth := new(MockAuthenticator)
		auth.On("Authenticate", mock.Anything, "token").Return(user, &services.Claims{}, nil)
		return middleware.AuthRequired(auth)
	}
	ok := func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) }
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	for _, role := range []models.Role{models.RoleBuyer, models.RoleSeller} {
		t.Run(string(role), func(t *testing.T) {
			app := newApp(as(&models.User{ID: "u", Role: role}), adminOnly, ok)
			status, body := call(t, app, "Bearer token")
			assert.Equal(t, http.StatusForbidden, status)
			assert.Equal(t, []any{"admin"}, body["roles_requeridos"])
			assert.Equal(t, string(role), body["tu_rol"])
		})
	}

	t.Run("admin", func(t *testing.T) {
		app := newApp(as(&models.User{ID: "u", Role: models.RoleAdmin}), adminOnly, ok)
		status, body := call(t, app, "Bearer token")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, body["ok"])
	})

	t.Run("any of several roles", func(t *testing.T) {
		app := newApp(as(&models.User{ID: "u", Role: models.RoleSeller}), middleware.RequireRole(models.RoleSeller, models.RoleAdmin), ok)
		status, _ := call(t, app, "Bearer token")
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("without authentication", func(t *testing.T) {
		app := newApp(adminOnly, ok)
		status, body := call(t, app, "")
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, "internal server error", body["mensaje"])
	})

	t.Run("corrupt role", func(t *testing.T) {
		app := newApp(as(&models.User{ID: "u", Role: "root"}), adminOnly, ok)
		status, _ := call(t, app, "Bearer token")
		assert.Equal(t, http.StatusInternalServerError, status)
	})
}
