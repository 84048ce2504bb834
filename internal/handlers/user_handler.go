package handlers

import (
	"mercado/internal/middleware"
	"mercado/internal/models"
	"mercado/internal/query"
	"mercado/internal/services"

	"github.com/gofiber/fiber/v2"
)

// UserHandler exposes account administration to administrators.
type UserHandler struct {
	service     *services.UserService
	requireAuth fiber.Handler
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service *services.UserService, requireAuth fiber.Handler) *UserHandler {
	return &UserHandler{service: service, requireAuth: requireAuth}
}

// RegisterRoutes registers the user routes.
func (h *UserHandler) RegisterRoutes(router fiber.Router) {
	userRoutes := router.Group("/usuarios", h.requireAuth, middleware.RequireRole(models.RoleAdmin))
	userRoutes.Get("/", h.HandleList)
	userRoutes.Post("/", h.HandleCreate)
	userRoutes.Get("/:id", h.HandleGet)
	userRoutes.Put("/:id", h.HandleUpdate)
	userRoutes.Delete("/:id", h.HandleDelete)
}

func (h *UserHandler) HandleList(c *fiber.Ctx) error {
	page, err := h.service.List(c.UserContext(), query.Values(c.Queries()))
	if err != nil {
		return err
	}
	return respondPage(c, "usuarios", page)
}

func (h *UserHandler) HandleGet(c *fiber.Ctx) error {
	user, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", fiber.Map{"usuario": user})
}

func (h *UserHandler) HandleCreate(c *fiber.Ctx) error {
	var req services.CreateUserInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	user, err := h.service.Create(c.UserContext(), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "user created", fiber.Map{"usuario": user})
}

func (h *UserHandler) HandleUpdate(c *fiber.Ctx) error {
	var req services.UpdateUserInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	user, err := h.service.Update(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "user updated", fiber.Map{"usuario": user})
}

func (h *UserHandler) HandleDelete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "user deleted", nil)
}
