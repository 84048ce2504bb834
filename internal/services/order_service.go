package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"mercado/internal/apperror"
	"mercado/internal/metrics"
	"mercado/internal/models"
	"mercado/internal/query"
	"mercado/internal/repositories"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderItemInput is one line of a new order.
type OrderItemInput struct {
	ProductID string           `json:"producto_id" validate:"required"`
	Quantity  int              `json:"cantidad" validate:"required,min=1"`
	UnitPrice decimal.Decimal  `json:"precio_unitario"`
	Subtotal  *decimal.Decimal `json:"subtotal"` // computed when absent
}

// CreateOrderInput is the payload of a new order.
type CreateOrderInput struct {
	Items           []OrderItemInput `json:"items" validate:"required,min=1,dive"`
	Total           *decimal.Decimal `json:"total"`
	ShippingAddress string           `json:"direccion_envio" validate:"max=500"`
	Notes           string           `json:"notas" validate:"max=1000"`
}

// UpdateOrderInput changes a pending order. Items and Total are only
// captured to reject them.
type UpdateOrderInput struct {
	Status          *string         `json:"estado"`
	ShippingAddress *string         `json:"direccion_envio" validate:"omitempty,max=500"`
	Notes           *string         `json:"notas" validate:"omitempty,max=1000"`
	Items           json.RawMessage `json:"items,omitempty"`
	Total           json.RawMessage `json:"total,omitempty"`
}

// AdvanceOrderInput moves an order forward in its lifecycle.
type AdvanceOrderInput struct {
	Status string `json:"estado" validate:"required"`
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	events      emitter
	log         *zap.Logger
}

// NewOrderService creates a new OrderService. pub may be nil.
func NewOrderService(orderRepo repositories.OrderRepository, productRepo repositories.ProductRepository, pub EventPublisher, log *zap.Logger) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		events:      emitter{pub: pub, log: log},
		log:         log,
	}
}

// List returns one page of orders. Non-administrators only see orders they placed.
func (s *OrderService) List(ctx context.Context, actor *models.User, raw query.Values) (*Page[models.Order], error) {
	spec, err := query.Parse(raw, orderSchema)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin {
		spec.Filter.Where("buyer_id", actor.ID)
	}
	orders, total, err := s.orderRepo.List(ctx, spec)
	if err != nil {
		return nil, apperror.Internal("failed to list orders", err)
	}
	return &Page[models.Order]{Items: orders, Total: total, Pagination: spec.Page}, nil
}

// Get returns an order visible to actor.
func (s *OrderService) Get(ctx context.Context, actor *models.User, id string) (*models.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(actor, order); err != nil {
		return nil, err
	}
	return order, nil
}

// Create validates the line items and total and stores a pending order.
func (s *OrderService) Create(ctx context.Context, buyer *models.User, in CreateOrderInput) (*models.Order, error) {
	var fields []apperror.FieldError
	if len(in.Items) == 0 {
		fields = append(fields, apperror.FieldError{Field: "items", Message: "at least one item is required"})
	}

	items := make([]models.OrderItem, 0, len(in.Items))
	sum := decimal.Zero
	for i, it := range in.Items {
		prefix := fmt.Sprintf("items[%d]", i)
		if it.Quantity < 1 {
			fields = append(fields, apperror.FieldError{Field: prefix + ".cantidad", Message: "must be at least 1"})
			continue
		}
		if msg := models.CheckAmount(it.UnitPrice); msg != "" {
			fields = append(fields, apperror.FieldError{Field: prefix + ".precio_unitario", Message: msg})
			continue
		}
		expected := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		if it.Subtotal != nil && !it.Subtotal.Equal(expected) {
			fields = append(fields, apperror.FieldError{
				Field:   prefix + ".subtotal",
				Message: fmt.Sprintf("must equal cantidad x precio_unitario (%s)", expected),
			})
			continue
		}
		if msg := models.CheckAmount(expected); msg != "" {
			fields = append(fields, apperror.FieldError{Field: prefix + ".subtotal", Message: msg})
			continue
		}
		sum = sum.Add(expected)
		items = append(items, models.OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  expected,
		})
	}

	switch {
	case in.Total == nil:
		fields = append(fields, apperror.FieldError{Field: "total", Message: "is required"})
	case models.CheckAmount(*in.Total) != "":
		fields = append(fields, apperror.FieldError{Field: "total", Message: models.CheckAmount(*in.Total)})
	case len(fields) == 0 && !in.Total.Equal(sum):
		fields = append(fields, apperror.FieldError{
			Field:   "total",
			Message: fmt.Sprintf("must equal the sum of item subtotals (%s)", sum),
		})
	}
	if len(fields) > 0 {
		return nil, apperror.Validation("invalid order", fields...)
	}

	for _, it := range items {
		if _, err := s.productRepo.GetByID(ctx, it.ProductID); err != nil {
			return nil, notFoundOr(err, fmt.Sprintf("product %s not found", it.ProductID), "failed to check product")
		}
	}

	order := &models.Order{
		BuyerID:         buyer.ID,
		Items:           items,
		Total:           sum,
		Status:          models.StatusPending,
		ShippingAddress: in.ShippingAddress,
		Notes:           in.Notes,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, apperror.Internal("failed to create order", err)
	}

	s.log.Info("order created", zap.String("order_id", order.ID), zap.String("buyer_id", buyer.ID), zap.String("total", sum.String()))
	s.events.emit(EventOrderCreated, orderEvent(order, ""))
	return order, nil
}

// Update changes address, notes or status of a pending order owned by actor.
func (s *OrderService) Update(ctx context.Context, actor *models.User, id string, in UpdateOrderInput) (*models.Order, error) {
	if len(in.Items) > 0 || len(in.Total) > 0 {
		return nil, apperror.Validation("items and total cannot be changed after creation")
	}

	patch := repositories.OrderPatch{ShippingAddress: in.ShippingAddress, Notes: in.Notes}
	if in.Status != nil {
		status, err := models.ParseOrderStatus(*in.Status)
		if err != nil {
			return nil, apperror.Validation("invalid order status", apperror.FieldError{Field: "estado", Message: err.Error()})
		}
		if status != models.StatusPending && !models.StatusPending.CanTransitionTo(status) {
			return nil, apperror.InvalidTransition(fmt.Sprintf("cannot move a pending order to %s", status))
		}
		if status != models.StatusPending {
			patch.Status = &status
		}
	}

	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(actor, order); err != nil {
		return nil, err
	}
	if !order.Status.IsMutable() {
		return nil, s.writeError(order, repositories.ErrPreconditionFailed, "update")
	}

	updated, err := s.orderRepo.UpdatePending(ctx, id, patch)
	if err != nil {
		return nil, s.writeError(updated, err, "update")
	}

	s.log.Info("order updated", zap.String("order_id", id), zap.String("actor_id", actor.ID))
	if patch.Status != nil {
		metrics.OrderTransition(string(models.StatusPending), string(*patch.Status))
	}
	s.events.emit(EventOrderUpdated, orderEvent(updated, models.StatusPending))
	return updated, nil
}

// Cancel moves a pending order owned by actor to cancelled.
func (s *OrderService) Cancel(ctx context.Context, actor *models.User, id string) (*models.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(actor, order); err != nil {
		return nil, err
	}
	if !order.Status.IsMutable() {
		return nil, s.writeError(order, repositories.ErrPreconditionFailed, "cancel")
	}

	cancelled, err := s.orderRepo.TransitionStatus(ctx, id, models.StatusPending, models.StatusCancelled)
	if err != nil {
		return nil, s.writeError(cancelled, err, "cancel")
	}

	s.log.Info("order cancelled", zap.String("order_id", id), zap.String("actor_id", actor.ID))
	metrics.OrderTransition(string(models.StatusPending), string(models.StatusCancelled))
	s.events.emit(EventOrderCancelled, orderEvent(cancelled, models.StatusPending))
	return cancelled, nil
}

// Advance performs a forward lifecycle transition. Sellers may only advance
// orders containing at least one of their products.
func (s *OrderService) Advance(ctx context.Context, actor *models.User, id string, in AdvanceOrderInput) (*models.Order, error) {
	to, err := models.ParseOrderStatus(in.Status)
	if err != nil {
		return nil, apperror.Validation("invalid order status", apperror.FieldError{Field: "estado", Message: err.Error()})
	}
	if to == models.StatusCancelled {
		return nil, apperror.InvalidTransition("use the cancel operation to cancel an order")
	}

	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleSeller:
		productIDs := make([]string, len(order.Items))
		for i, it := range order.Items {
			productIDs[i] = it.ProductID
		}
		owns, err := s.productRepo.SellerOwnsAny(ctx, actor.ID, productIDs)
		if err != nil {
			return nil, apperror.Internal("failed to check product ownership", err)
		}
		if !owns {
			return nil, apperror.Authorization("order does not contain your products", nil)
		}
	default:
		return nil, apperror.Authorization("only sellers and administrators can advance orders", nil)
	}

	from := order.Status
	if from.IsTerminal() {
		return nil, apperror.InvalidTransition(fmt.Sprintf("order is already %s", from))
	}
	if !from.CanTransitionTo(to) {
		return nil, apperror.InvalidTransition(fmt.Sprintf("cannot move an order from %s to %s", from, to))
	}

	advanced, err := s.orderRepo.TransitionStatus(ctx, id, from, to)
	if err != nil {
		return nil, s.writeError(advanced, err, "advance")
	}

	s.log.Info("order status changed",
		zap.String("order_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor_id", actor.ID))
	metrics.OrderTransition(string(from), string(to))
	s.events.emit(EventOrderStatusChanged, orderEvent(advanced, from))
	return advanced, nil
}

func (s *OrderService) load(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "order not found", "failed to get order")
	}
	return order, nil
}

// writeError maps a failed conditional write. current is the order as
// re-read after the write, when available.
func (s *OrderService) writeError(current *models.Order, err error, op string) error {
	switch {
	case errors.Is(err, repositories.ErrPreconditionFailed):
		if current != nil {
			return apperror.InvalidTransition(fmt.Sprintf("cannot %s order in status %s", op, current.Status))
		}
		return apperror.InvalidTransition(fmt.Sprintf("cannot %s order", op))
	case errors.Is(err, repositories.ErrNotFound):
		return apperror.NotFound("order not found")
	default:
		return apperror.Internal(fmt.Sprintf("failed to %s order", op), err)
	}
}

func checkOwner(actor *models.User, order *models.Order) error {
	if actor.Role == models.RoleAdmin || order.BuyerID == actor.ID {
		return nil
	}
	return apperror.Authorization("you do not have access to this order", nil)
}

func orderEvent(order *models.Order, previous models.OrderStatus) map[string]any {
	event := map[string]any{
		"id":           order.ID,
		"comprador_id": order.BuyerID,
		"estado":       order.Status,
		"total":        order.Total,
		"items":        order.Items,
	}
	if previous != "" {
		event["estado_anterior"] = previous
	}
	return event
}
