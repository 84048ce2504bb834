package repositories

import (
	"context"
	"fmt"

	"mercado/internal/models"
	"mercado/internal/query"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderPatch lists the order fields a buyer may change while the order is
// pending. Nil fields are left untouched.
type OrderPatch struct {
	ShippingAddress *string
	Notes           *string
	Status          *models.OrderStatus
}

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, spec query.Spec) ([]models.Order, int64, error)
	// UpdatePending applies patch only if the order is still pending.
	UpdatePending(ctx context.Context, id string, patch OrderPatch) (*models.Order, error)
	// TransitionStatus moves the order from one status to another only if
	// it is currently in from.
	TransitionStatus(ctx context.Context, id string, from, to models.OrderStatus) (*models.Order, error)
}

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// Create stores the order and its items in a single transaction.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		order.Items[i].Position = i
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(order).Error
	})
	if err != nil {
		return fmt.Errorf("failed to create order: %w", translate(err))
	}
	return nil
}

// GetByID retrieves an order with its items.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items", preloadItems).First(&order, "id = ?", id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, translate(err))
	}
	return &order, nil
}

// List returns one page of orders matching spec and the total match count.
func (r *GORMOrderRepository) List(ctx context.Context, spec query.Spec) ([]models.Order, int64, error) {
	db := r.db.WithContext(ctx)

	var total int64
	if err := spec.Filter.Apply(db.Model(&models.Order{})).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	orders := []models.Order{}
	if err := spec.Apply(db.Model(&models.Order{})).Preload("Items", preloadItems).Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

// UpdatePending applies patch with a single conditional UPDATE so that a
// concurrent transition out of pending wins cleanly.
func (r *GORMOrderRepository) UpdatePending(ctx context.Context, id string, patch OrderPatch) (*models.Order, error) {
	updates := map[string]any{"updated_at": r.db.NowFunc()}
	if patch.ShippingAddress != nil {
		updates["shipping_address"] = *patch.ShippingAddress
	}
	if patch.Notes != nil {
		updates["notes"] = *patch.Notes
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	return r.conditionalUpdate(ctx, id, models.StatusPending, updates)
}

// TransitionStatus moves the order from one status to another.
func (r *GORMOrderRepository) TransitionStatus(ctx context.Context, id string, from, to models.OrderStatus) (*models.Order, error) {
	return r.conditionalUpdate(ctx, id, from, map[string]any{
		"status":     to,
		"updated_at": r.db.NowFunc(),
	})
}

func (r *GORMOrderRepository) conditionalUpdate(ctx context.Context, id string, from models.OrderStatus, updates map[string]any) (*models.Order, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update order %s: %w", id, res.Error)
	}

	order, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return order, fmt.Errorf("order %s is %s, expected %s: %w", id, order.Status, from, ErrPreconditionFailed)
	}
	return order, nil
}
