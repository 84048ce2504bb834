package services

import (
	"context"

	"mercado/internal/apperror"
	"mercado/internal/models"
	"mercado/internal/query"
	"mercado/internal/repositories"

	"go.uber.org/zap"
)

// CategoryInput creates a category.
type CategoryInput struct {
	Name        string `json:"nombre" validate:"required,min=2,max=50"`
	Description string `json:"descripcion" validate:"required,max=500"`
	IconURL     string `json:"imagen_icono" validate:"omitempty,url,max=500"`
}

// CategoryPatchInput changes a category. Absent fields are left untouched.
type CategoryPatchInput struct {
	Name        *string `json:"nombre" validate:"omitempty,min=2,max=50"`
	Description *string `json:"descripcion" validate:"omitempty,max=500"`
	IconURL     *string `json:"imagen_icono" validate:"omitempty,url,max=500"`
}

// CategoryService handles business logic related to categories.
type CategoryService struct {
	categoryRepo repositories.CategoryRepository
	log          *zap.Logger
}

// NewCategoryService creates a new CategoryService.
func NewCategoryService(categoryRepo repositories.CategoryRepository, log *zap.Logger) *CategoryService {
	return &CategoryService{categoryRepo: categoryRepo, log: log}
}

func (s *CategoryService) List(ctx context.Context, raw query.Values) (*Page[models.Category], error) {
	spec, err := query.Parse(raw, categorySchema)
	if err != nil {
		return nil, err
	}
	categories, total, err := s.categoryRepo.List(ctx, spec)
	if err != nil {
		return nil, apperror.Internal("failed to list categories", err)
	}
	return &Page[models.Category]{Items: categories, Total: total, Pagination: spec.Page}, nil
}

func (s *CategoryService) Get(ctx context.Context, id string) (*models.Category, error) {
	category, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "category not found", "failed to get category")
	}
	return category, nil
}

func (s *CategoryService) Create(ctx context.Context, in CategoryInput) (*models.Category, error) {
	category := &models.Category{Name: in.Name, Description: in.Description, IconURL: in.IconURL}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, apperror.Internal("failed to create category", err)
	}
	s.log.Info("category created", zap.String("category_id", category.ID))
	return category, nil
}

func (s *CategoryService) Update(ctx context.Context, id string, in CategoryPatchInput) (*models.Category, error) {
	category, err := s.categoryRepo.Update(ctx, id, repositories.CategoryPatch{
		Name:        in.Name,
		Description: in.Description,
		IconURL:     in.IconURL,
	})
	if err != nil {
		return nil, notFoundOr(err, "category not found", "failed to update category")
	}
	return category, nil
}

func (s *CategoryService) Delete(ctx context.Context, id string) error {
	if err := s.categoryRepo.Delete(ctx, id); err != nil {
		return notFoundOr(err, "category not found", "failed to delete category")
	}
	return nil
}
