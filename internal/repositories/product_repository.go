package repositories

import (
	"context"

	"mercado/internal/models"
	"mercado/internal/query"

	"github.com/shopspring/decimal"
)

// ProductPatch lists the product fields to change. Nil fields are left untouched.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	ImageURL    *string
	CategoryID  *string
}

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context, spec query.Spec) ([]models.Product, int64, error)
	Update(ctx context.Context, id string, patch ProductPatch) (*models.Product, error)
	Delete(ctx context.Context, id string) error
	// SellerOwnsAny reports whether any of productIDs belongs to sellerID.
	SellerOwnsAny(ctx context.Context, sellerID string, productIDs []string) (bool, error)
}
