package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mercado/internal/apperror"
	"mercado/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func send(t *testing.T, app *fiber.App, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestErrorHandler_InternalMessages(t *testing.T) {
	failing := func(c *fiber.Ctx) error {
		return apperror.Internal("database exploded", errors.New("connection reset"))
	}

	t.Run("hidden in production", func(t *testing.T) {
		core, logs := observer.New(zapcore.ErrorLevel)
		app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.New(core), false)})
		app.Post("/", failing)

		status, body := send(t, app, "{}")
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, genericInternalMessage, body["mensaje"])
		require.Equal(t, 1, logs.Len())
		assert.Contains(t, logs.All()[0].ContextMap()["error"], "connection reset")
	})

	t.Run("shown in development", func(t *testing.T) {
		app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop(), true)})
		app.Post("/", failing)

		_, body := send(t, app, "{}")
		assert.Equal(t, "database exploded", body["mensaje"])
	})

	t.Run("unclassified errors are internal", func(t *testing.T) {
		app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop(), false)})
		app.Post("/", func(c *fiber.Ctx) error { return errors.New("boom") })

		status, body := send(t, app, "{}")
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, true, body["error"])
	})
}

func TestBindJSON(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop(), false)})
	app.Post("/", func(c *fiber.Ctx) error {
		var in services.CreateOrderInput
		if err := bindJSON(c, &in); err != nil {
			return err
		}
		return respond(c, fiber.StatusCreated, "ok", fiber.Map{"items": len(in.Items)})
	})

	status, body := send(t, app, `{"items":[{"producto_id":"p1","cantidad":1,"precio_unitario":2.5}],"total":2.5}`)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, false, body["error"])
	assert.Equal(t, "ok", body["mensaje"])
	assert.Equal(t, float64(1), body["items"])

	status, body = send(t, app, `{"items":[{"producto_id":"","cantidad":0}],"total":0}`)
	assert.Equal(t, http.StatusBadRequest, status)
	var fields []string
	for _, e := range body["errores"].([]any) {
		fields = append(fields, e.(map[string]any)["campo"].(string))
	}
	assert.ElementsMatch(t, []string{"items[0].producto_id", "items[0].cantidad"}, fields)

	status, body = send(t, app, `{"items": "nope"`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid request body", body["mensaje"])
}
