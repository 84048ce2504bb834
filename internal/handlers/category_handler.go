package handlers

import (
	"mercado/internal/middleware"
	"mercado/internal/models"
	"mercado/internal/query"
	"mercado/internal/services"

	"github.com/gofiber/fiber/v2"
)

// CategoryHandler handles HTTP requests for categories.
type CategoryHandler struct {
	service     *services.CategoryService
	requireAuth fiber.Handler
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(service *services.CategoryService, requireAuth fiber.Handler) *CategoryHandler {
	return &CategoryHandler{service: service, requireAuth: requireAuth}
}

// RegisterRoutes registers the category routes. Reads are public, writes
// are reserved to administrators.
func (h *CategoryHandler) RegisterRoutes(router fiber.Router) {
	categoryRoutes := router.Group("/categorias")
	categoryRoutes.Get("/", h.HandleList)
	categoryRoutes.Get("/:id", h.HandleGet)

	admins := middleware.RequireRole(models.RoleAdmin)
	categoryRoutes.Post("/", h.requireAuth, admins, h.HandleCreate)
	categoryRoutes.Put("/:id", h.requireAuth, admins, h.HandleUpdate)
	categoryRoutes.Delete("/:id", h.requireAuth, admins, h.HandleDelete)
}

func (h *CategoryHandler) HandleList(c *fiber.Ctx) error {
	page, err := h.service.List(c.UserContext(), query.Values(c.Queries()))
	if err != nil {
		return err
	}
	return respondPage(c, "categorias", page)
}

func (h *CategoryHandler) HandleGet(c *fiber.Ctx) error {
	category, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", fiber.Map{"categoria": category})
}

func (h *CategoryHandler) HandleCreate(c *fiber.Ctx) error {
	var req services.CategoryInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	category, err := h.service.Create(c.UserContext(), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "category created", fiber.Map{"categoria": category})
}

func (h *CategoryHandler) HandleUpdate(c *fiber.Ctx) error {
	var req services.CategoryPatchInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	category, err := h.service.Update(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "category updated", fiber.Map{"categoria": category})
}

func (h *CategoryHandler) HandleDelete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "category deleted", nil)
}
