package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"mercado/internal/app"
	"mercado/internal/config"
	"mercado/internal/repositories"
	"mercado/internal/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/logger"
)

type capturePublisher struct {
	mu     sync.Mutex
	bodies map[string][]byte
}

func (p *capturePublisher) Publish(routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bodies[routingKey] = body
	return nil
}

func (p *capturePublisher) last(routingKey string) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bodies[routingKey]
}

type testEnv struct {
	server *app.Server
	pub    *capturePublisher
}

// setupApp builds the full application on in-memory SQLite with revocation
// backed by miniredis.
func setupApp(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Env:          "test",
		Database:     config.DatabaseConfig{Driver: "sqlite", DSN: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())},
		JWT:          config.JWTConfig{Secret: "test_jwt_secret", Expiry: time.Hour, Issuer: "marketplace-api", Audience: "marketplace-users"},
		ResetCodeTTL: time.Hour,
		BcryptCost:   bcrypt.MinCost,
	}

	db, err := repositories.OpenDatabase(cfg.Database, logger.Silent)
	require.NoError(t, err)
	require.NoError(t, repositories.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	pub := &capturePublisher{bodies: map[string][]byte{}}
	server := app.New(cfg, db, zap.NewNop(), app.Options{
		Revocations: repositories.NewRedisRevocationStore(client, cfg.JWT.Expiry),
		Publisher:   pub,
	})
	return &testEnv{server: server, pub: pub}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.server.App.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (e *testEnv) register(t *testing.T, name, role string) (token, id string) {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/auth/registro", "", map[string]any{
		"nombre":   name,
		"email":    name + "@example.com",
		"password": "password123",
		"rol":      role,
	})
	require.Equal(t, http.StatusCreated, status, body)
	return body["token"].(string), body["usuario"].(map[string]any)["id"].(string)
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	_, err := e.server.Users.Create(context.Background(), services.CreateUserInput{
		Name: "Root", Email: "root@example.com", Password: "password123", Role: "admin",
	})
	require.NoError(t, err)
	status, body := e.do(t, http.MethodPost, "/auth/login", "", map[string]any{
		"email": "root@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, status, body)
	return body["token"].(string)
}

func TestAuthFlow(t *testing.T) {
	env := setupApp(t)

	token, id := env.register(t, "ana", "")

	status, body := env.do(t, http.MethodGet, "/auth/perfil", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["error"])
	profile := body["usuario"].(map[string]any)
	assert.Equal(t, id, profile["id"])
	assert.Equal(t, "comprador", profile["rol"])
	assert.NotContains(t, profile, "password")

	status, body = env.do(t, http.MethodPost, "/auth/login", "", map[string]any{"email": "ana@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, true, body["error"])

	status, _ = env.do(t, http.MethodPost, "/auth/registro", "", map[string]any{
		"nombre": "ana", "email": "ana@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, status)

	t.Run("missing header", func(t *testing.T) {
		status, body := env.do(t, http.MethodGet, "/auth/perfil", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, true, body["error"])
	})

	t.Run("wrong scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/perfil", nil)
		req.Header.Set("Authorization", "Token "+token)
		resp, err := env.server.App.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("garbage token", func(t *testing.T) {
		status, _ := env.do(t, http.MethodGet, "/auth/perfil", "not.a.token", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("logout revokes the token", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPost, "/auth/logout", token, nil)
		assert.Equal(t, http.StatusOK, status)
		status, _ = env.do(t, http.MethodGet, "/auth/perfil", token, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})
}

func TestRegisterValidation(t *testing.T) {
	env := setupApp(t)

	status, body := env.do(t, http.MethodPost, "/auth/registro", "", map[string]any{
		"nombre": "x", "email": "not-an-email", "password": "123", "rol": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	fields := map[string]bool{}
	for _, e := range body["errores"].([]any) {
		fields[e.(map[string]any)["campo"].(string)] = true
	}
	assert.Equal(t, map[string]bool{"nombre": true, "email": true, "password": true, "rol": true}, fields)
}

func TestDeletedUserLosesAccess(t *testing.T) {
	env := setupApp(t)
	admin := env.adminToken(t)
	token, id := env.register(t, "leaving", "vendedor")

	status, _ := env.do(t, http.MethodDelete, "/api/usuarios/"+id, admin, nil)
	require.Equal(t, http.StatusOK, status)

	status, body := env.do(t, http.MethodGet, "/auth/perfil", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "user no longer exists", body["mensaje"])
}

func TestRoleGuard(t *testing.T) {
	env := setupApp(t)
	admin := env.adminToken(t)
	buyer, _ := env.register(t, "buyer", "comprador")
	seller, _ := env.register(t, "seller", "vendedor")

	category := map[string]any{"nombre": "Hogar", "descripcion": "Cosas de casa"}

	for name, token := range map[string]string{"comprador": buyer, "vendedor": seller} {
		status, body := env.do(t, http.MethodPost, "/api/categorias", token, category)
		assert.Equal(t, http.StatusForbidden, status, name)
		assert.Equal(t, []any{"admin"}, body["roles_requeridos"], name)
		assert.Equal(t, name, body["tu_rol"])
	}

	status, body := env.do(t, http.MethodPost, "/api/categorias", admin, category)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Hogar", body["categoria"].(map[string]any)["nombre"])

	status, _ = env.do(t, http.MethodGet, "/api/usuarios", seller, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, body = env.do(t, http.MethodGet, "/api/usuarios?rol=vendedor", admin, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["metadata"].(map[string]any)["total"])
}

func TestProductListing(t *testing.T) {
	env := setupApp(t)
	admin := env.adminToken(t)
	seller, sellerID := env.register(t, "seller", "vendedor")
	other, _ := env.register(t, "other", "vendedor")

	_, body := env.do(t, http.MethodPost, "/api/categorias", admin, map[string]any{"nombre": "Luz", "descripcion": "Lamparas"})
	categoryID := body["categoria"].(map[string]any)["id"].(string)

	for i, price := range []float64{5, 15, 25, 35} {
		status, body := env.do(t, http.MethodPost, "/api/productos", seller, map[string]any{
			"nombre":       fmt.Sprintf("Lampara %d", i),
			"descripcion":  "Lampara de escritorio",
			"precio":       price,
			"stock":        10,
			"categoria_id": categoryID,
		})
		require.Equal(t, http.StatusCreated, status, body)
		assert.Equal(t, sellerID, body["producto"].(map[string]any)["vendedor_id"])
	}

	status, body := env.do(t, http.MethodPost, "/api/productos", seller, map[string]any{
		"nombre": "Huérfano", "descripcion": "Sin categoria", "precio": 1, "categoria_id": "missing",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "categoria_id", body["errores"].([]any)[0].(map[string]any)["campo"])

	status, body = env.do(t, http.MethodGet, "/api/productos?min=10&max=30&orden=precio:desc&limite=1", "", nil)
	require.Equal(t, http.StatusOK, status)
	products := body["productos"].([]any)
	require.Len(t, products, 1)
	assert.Equal(t, float64(25), products[0].(map[string]any)["precio"])
	assert.Equal(t, map[string]any{
		"total":           float64(2),
		"pagina_actual":   float64(1),
		"paginas_totales": float64(2),
		"limite":          float64(1),
	}, body["metadata"])

	status, _ = env.do(t, http.MethodGet, "/api/productos?orden=password:asc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodGet, "/api/productos?pagina=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	productID := products[0].(map[string]any)["id"].(string)
	status, _ = env.do(t, http.MethodPut, "/api/productos/"+productID, other, map[string]any{"stock": 1})
	assert.Equal(t, http.StatusForbidden, status)
	status, body = env.do(t, http.MethodPut, "/api/productos/"+productID, seller, map[string]any{"stock": 1})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["producto"].(map[string]any)["stock"])
}

func TestOrderLifecycle(t *testing.T) {
	env := setupApp(t)
	admin := env.adminToken(t)
	seller, _ := env.register(t, "seller", "vendedor")
	buyer, _ := env.register(t, "buyer", "comprador")
	stranger, _ := env.register(t, "stranger", "comprador")

	_, body := env.do(t, http.MethodPost, "/api/categorias", admin, map[string]any{"nombre": "Luz", "descripcion": "Lamparas"})
	categoryID := body["categoria"].(map[string]any)["id"].(string)
	_, body = env.do(t, http.MethodPost, "/api/productos", seller, map[string]any{
		"nombre": "Lampara", "descripcion": "Escritorio", "precio": 12.5, "stock": 3, "categoria_id": categoryID,
	})
	productID := body["producto"].(map[string]any)["id"].(string)

	newOrder := map[string]any{
		"items":           []any{map[string]any{"producto_id": productID, "cantidad": 2, "precio_unitario": 12.5}},
		"total":           25,
		"direccion_envio": "Calle 1",
	}

	status, _ := env.do(t, http.MethodPost, "/api/ordenes", seller, newOrder)
	assert.Equal(t, http.StatusForbidden, status, "only buyers place orders")

	status, body = env.do(t, http.MethodPost, "/api/ordenes", buyer, map[string]any{
		"items": newOrder["items"], "total": 30,
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.do(t, http.MethodPost, "/api/ordenes", buyer, newOrder)
	require.Equal(t, http.StatusCreated, status, body)
	order := body["orden"].(map[string]any)
	orderID := order["id"].(string)
	assert.Equal(t, "pendiente", order["estado"])
	assert.Equal(t, float64(25), order["total"])
	assert.NotNil(t, env.pub.last(services.EventOrderCreated))

	status, _ = env.do(t, http.MethodGet, "/api/ordenes/"+orderID, stranger, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.do(t, http.MethodPut, "/api/ordenes/"+orderID, buyer, map[string]any{"total": 1})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.do(t, http.MethodPut, "/api/ordenes/"+orderID, buyer, map[string]any{"notas": "Tocar timbre"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Tocar timbre", body["orden"].(map[string]any)["notas"])

	status, _ = env.do(t, http.MethodPatch, "/api/ordenes/"+orderID+"/estado", buyer, map[string]any{"estado": "confirmada"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = env.do(t, http.MethodPatch, "/api/ordenes/"+orderID+"/estado", seller, map[string]any{"estado": "confirmada"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "confirmada", body["orden"].(map[string]any)["estado"])

	status, body = env.do(t, http.MethodPatch, "/api/ordenes/anular/"+orderID, buyer, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, true, body["error"])

	status, _ = env.do(t, http.MethodPut, "/api/ordenes/"+orderID, buyer, map[string]any{"notas": "tarde"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.do(t, http.MethodGet, "/api/ordenes?estado=confirmada", buyer, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["ordenes"], 1)

	status, body = env.do(t, http.MethodGet, "/api/ordenes", stranger, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["ordenes"], 0)
}

func TestCancelOrder(t *testing.T) {
	env := setupApp(t)
	admin := env.adminToken(t)
	seller, _ := env.register(t, "seller", "vendedor")
	buyer, _ := env.register(t, "buyer", "comprador")

	_, body := env.do(t, http.MethodPost, "/api/categorias", admin, map[string]any{"nombre": "Luz", "descripcion": "Lamparas"})
	categoryID := body["categoria"].(map[string]any)["id"].(string)
	_, body = env.do(t, http.MethodPost, "/api/productos", seller, map[string]any{
		"nombre": "Lampara", "descripcion": "Escritorio", "precio": 10, "categoria_id": categoryID,
	})
	productID := body["producto"].(map[string]any)["id"].(string)
	_, body = env.do(t, http.MethodPost, "/api/ordenes", buyer, map[string]any{
		"items": []any{map[string]any{"producto_id": productID, "cantidad": 1, "precio_unitario": 10}},
		"total": 10,
	})
	orderID := body["orden"].(map[string]any)["id"].(string)

	status, body := env.do(t, http.MethodPatch, "/api/ordenes/anular/"+orderID, buyer, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "cancelada", body["orden"].(map[string]any)["estado"])

	status, _ = env.do(t, http.MethodPatch, "/api/ordenes/anular/"+orderID, buyer, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPatch, "/api/ordenes/"+orderID+"/estado", admin, map[string]any{"estado": "confirmada"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestPasswordReset(t *testing.T) {
	env := setupApp(t)
	env.register(t, "ana", "")

	status, _ := env.do(t, http.MethodPost, "/auth/recuperar", "", map[string]any{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusOK, status, "unknown emails look the same")
	assert.Nil(t, env.pub.last(services.EventPasswordResetRequested))

	status, _ = env.do(t, http.MethodPost, "/auth/recuperar", "", map[string]any{"email": "ana@example.com"})
	require.Equal(t, http.StatusOK, status)

	var event struct {
		Code string `json:"codigo"`
	}
	require.NoError(t, json.Unmarshal(env.pub.last(services.EventPasswordResetRequested), &event))
	require.Len(t, event.Code, 6)

	status, _ = env.do(t, http.MethodPost, "/auth/restablecer", "", map[string]any{
		"email": "ana@example.com", "codigo": "12345", "password": "new-password",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := env.do(t, http.MethodPost, "/auth/restablecer", "", map[string]any{
		"email": "ana@example.com", "codigo": event.Code, "password": "new-password",
	})
	require.Equal(t, http.StatusOK, status, body)

	status, _ = env.do(t, http.MethodPost, "/auth/restablecer", "", map[string]any{
		"email": "ana@example.com", "codigo": event.Code, "password": "another-password",
	})
	assert.Equal(t, http.StatusBadRequest, status, "codes are single use")

	status, _ = env.do(t, http.MethodPost, "/auth/login", "", map[string]any{"email": "ana@example.com", "password": "password123"})
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = env.do(t, http.MethodPost, "/auth/login", "", map[string]any{"email": "ana@example.com", "password": "new-password"})
	assert.Equal(t, http.StatusOK, status)
}

func TestHealthAndUnknownRoute(t *testing.T) {
	env := setupApp(t)

	status, body := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	status, body = env.do(t, http.MethodGet, "/api/nada", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, true, body["error"])
}
