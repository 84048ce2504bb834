package handlers

import (
	"mercado/internal/middleware"
	"mercado/internal/models"
	"mercado/internal/query"
	"mercado/internal/services"

	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service     *services.OrderService
	requireAuth fiber.Handler
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, requireAuth fiber.Handler) *OrderHandler {
	return &OrderHandler{service: service, requireAuth: requireAuth}
}

// RegisterRoutes registers the order routes. Every route requires a token.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/ordenes", h.requireAuth)
	orderRoutes.Get("/", h.HandleList)
	orderRoutes.Get("/:id", h.HandleGet)
	orderRoutes.Post("/", middleware.RequireRole(models.RoleBuyer), h.HandleCreate)
	orderRoutes.Put("/:id", h.HandleUpdate)
	orderRoutes.Patch("/anular/:id", h.HandleCancel)
	orderRoutes.Patch("/:id/estado", middleware.RequireRole(models.RoleSeller, models.RoleAdmin), h.HandleAdvance)
}

// HandleList lists the caller's orders, or every order for administrators.
func (h *OrderHandler) HandleList(c *fiber.Ctx) error {
	page, err := h.service.List(c.UserContext(), middleware.CurrentUser(c), query.Values(c.Queries()))
	if err != nil {
		return err
	}
	return respondPage(c, "ordenes", page)
}

func (h *OrderHandler) HandleGet(c *fiber.Ctx) error {
	order, err := h.service.Get(c.UserContext(), middleware.CurrentUser(c), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", fiber.Map{"orden": order})
}

func (h *OrderHandler) HandleCreate(c *fiber.Ctx) error {
	var req services.CreateOrderInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	order, err := h.service.Create(c.UserContext(), middleware.CurrentUser(c), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "order created", fiber.Map{"orden": order})
}

// HandleUpdate changes address, notes or status of a pending order.
func (h *OrderHandler) HandleUpdate(c *fiber.Ctx) error {
	var req services.UpdateOrderInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	order, err := h.service.Update(c.UserContext(), middleware.CurrentUser(c), c.Params("id"), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "order updated", fiber.Map{"orden": order})
}

func (h *OrderHandler) HandleCancel(c *fiber.Ctx) error {
	order, err := h.service.Cancel(c.UserContext(), middleware.CurrentUser(c), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "order cancelled", fiber.Map{"orden": order})
}

// HandleAdvance moves an order forward: confirmada, enviada, entregada.
func (h *OrderHandler) HandleAdvance(c *fiber.Ctx) error {
	var req services.AdvanceOrderInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	order, err := h.service.Advance(c.UserContext(), middleware.CurrentUser(c), c.Params("id"), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "order status updated", fiber.Map{"orden": order})
}
