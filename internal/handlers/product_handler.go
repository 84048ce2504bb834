package handlers

import (
	"mercado/internal/middleware"
	"mercado/internal/models"
	"mercado/internal/query"
	"mercado/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	service     *services.ProductService
	requireAuth fiber.Handler
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, requireAuth fiber.Handler) *ProductHandler {
	return &ProductHandler{service: service, requireAuth: requireAuth}
}

// RegisterRoutes registers the product routes. Reads are public.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/productos")
	productRoutes.Get("/", h.HandleList)
	productRoutes.Get("/:id", h.HandleGet)

	sellers := middleware.RequireRole(models.RoleSeller, models.RoleAdmin)
	productRoutes.Post("/", h.requireAuth, sellers, h.HandleCreate)
	productRoutes.Put("/:id", h.requireAuth, sellers, h.HandleUpdate)
	productRoutes.Delete("/:id", h.requireAuth, sellers, h.HandleDelete)
}

func (h *ProductHandler) HandleList(c *fiber.Ctx) error {
	page, err := h.service.List(c.UserContext(), query.Values(c.Queries()))
	if err != nil {
		return err
	}
	return respondPage(c, "productos", page)
}

func (h *ProductHandler) HandleGet(c *fiber.Ctx) error {
	product, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", fiber.Map{"producto": product})
}

func (h *ProductHandler) HandleCreate(c *fiber.Ctx) error {
	var req services.ProductInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	product, err := h.service.Create(c.UserContext(), middleware.CurrentUser(c), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "product created", fiber.Map{"producto": product})
}

func (h *ProductHandler) HandleUpdate(c *fiber.Ctx) error {
	var req services.ProductPatchInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	product, err := h.service.Update(c.UserContext(), middleware.CurrentUser(c), c.Params("id"), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "product updated", fiber.Map{"producto": product})
}

func (h *ProductHandler) HandleDelete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), middleware.CurrentUser(c), c.Params("id")); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "product deleted", nil)
}
