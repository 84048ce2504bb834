package services

import (
	"context"
	"errors"

	"mercado/internal/apperror"
	"mercado/internal/models"
	"mercado/internal/query"
	"mercado/internal/repositories"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductInput creates a product.
type ProductInput struct {
	Name        string          `json:"nombre" validate:"required,min=2,max=150"`
	Description string          `json:"descripcion" validate:"required,max=2000"`
	Price       decimal.Decimal `json:"precio"`
	Stock       int             `json:"stock" validate:"min=0"`
	ImageURL    string          `json:"imagen_url" validate:"omitempty,url,max=500"`
	CategoryID  string          `json:"categoria_id" validate:"required"`
	SellerID    string          `json:"vendedor_id"` // honored for administrators only
}

// ProductPatchInput changes a product. Absent fields are left untouched.
type ProductPatchInput struct {
	Name        *string          `json:"nombre" validate:"omitempty,min=2,max=150"`
	Description *string          `json:"descripcion" validate:"omitempty,max=2000"`
	Price       *decimal.Decimal `json:"precio"`
	Stock       *int             `json:"stock" validate:"omitempty,min=0"`
	ImageURL    *string          `json:"imagen_url" validate:"omitempty,url,max=500"`
	CategoryID  *string          `json:"categoria_id" validate:"omitempty,min=1"`
}

// ProductService handles business logic related to products.
type ProductService struct {
	productRepo  repositories.ProductRepository
	categoryRepo repositories.CategoryRepository
	log          *zap.Logger
}

// NewProductService creates a new ProductService.
func NewProductService(productRepo repositories.ProductRepository, categoryRepo repositories.CategoryRepository, log *zap.Logger) *ProductService {
	return &ProductService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		log:          log,
	}
}

// List returns one page of products. Listing is public.
func (s *ProductService) List(ctx context.Context, raw query.Values) (*Page[models.Product], error) {
	spec, err := query.Parse(raw, productSchema)
	if err != nil {
		return nil, err
	}
	products, total, err := s.productRepo.List(ctx, spec)
	if err != nil {
		return nil, apperror.Internal("failed to list products", err)
	}
	return &Page[models.Product]{Items: products, Total: total, Pagination: spec.Page}, nil
}

// Get retrieves a single product by its ID.
func (s *ProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "product not found", "failed to get product")
	}
	return product, nil
}

// Create publishes a product owned by actor, or by in.SellerID when actor is an administrator.
func (s *ProductService) Create(ctx context.Context, actor *models.User, in ProductInput) (*models.Product, error) {
	if msg := models.CheckAmount(in.Price); msg != "" {
		return nil, apperror.Validation("invalid product", apperror.FieldError{Field: "precio", Message: msg})
	}
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	sellerID := actor.ID
	if actor.Role == models.RoleAdmin && in.SellerID != "" {
		sellerID = in.SellerID
	}

	product := &models.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		ImageURL:    in.ImageURL,
		SellerID:    sellerID,
		CategoryID:  in.CategoryID,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, apperror.Internal("failed to create product", err)
	}
	s.log.Info("product created", zap.String("product_id", product.ID), zap.String("seller_id", sellerID))
	return product, nil
}

// Update changes a product. Sellers may only change their own products.
func (s *ProductService) Update(ctx context.Context, actor *models.User, id string, in ProductPatchInput) (*models.Product, error) {
	if _, err := s.authorize(ctx, actor, id); err != nil {
		return nil, err
	}
	if in.Price != nil {
		if msg := models.CheckAmount(*in.Price); msg != "" {
			return nil, apperror.Validation("invalid product", apperror.FieldError{Field: "precio", Message: msg})
		}
	}
	if in.CategoryID != nil {
		if err := s.checkCategory(ctx, *in.CategoryID); err != nil {
			return nil, err
		}
	}

	product, err := s.productRepo.Update(ctx, id, repositories.ProductPatch{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		ImageURL:    in.ImageURL,
		CategoryID:  in.CategoryID,
	})
	if err != nil {
		return nil, notFoundOr(err, "product not found", "failed to update product")
	}
	return product, nil
}

// Delete removes a product. Sellers may only delete their own products.
func (s *ProductService) Delete(ctx context.Context, actor *models.User, id string) error {
	if _, err := s.authorize(ctx, actor, id); err != nil {
		return err
	}
	if err := s.productRepo.Delete(ctx, id); err != nil {
		return notFoundOr(err, "product not found", "failed to delete product")
	}
	s.log.Info("product deleted", zap.String("product_id", id), zap.String("actor_id", actor.ID))
	return nil
}

func (s *ProductService) authorize(ctx context.Context, actor *models.User, id string) (*models.Product, error) {
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && product.SellerID != actor.ID {
		return nil, apperror.Authorization("you can only modify your own products", nil)
	}
	return product, nil
}

func (s *ProductService) checkCategory(ctx context.Context, id string) error {
	_, err := s.categoryRepo.GetByID(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return apperror.Validation("invalid product", apperror.FieldError{Field: "categoria_id", Message: "category does not exist"})
	default:
		return apperror.Internal("failed to check category", err)
	}
}
