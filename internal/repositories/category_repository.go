package repositories

import (
	"context"
	"fmt"

	"mercado/internal/models"
	"mercado/internal/query"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CategoryPatch lists the category fields to change. Nil fields are left untouched.
type CategoryPatch struct {
	Name        *string
	Description *string
	IconURL     *string
}

// CategoryRepository defines the interface for category data access.
type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) error
	GetByID(ctx context.Context, id string) (*models.Category, error)
	List(ctx context.Context, spec query.Spec) ([]models.Category, int64, error)
	Update(ctx context.Context, id string, patch CategoryPatch) (*models.Category, error)
	Delete(ctx context.Context, id string) error
}

// GORMCategoryRepository is a GORM implementation of CategoryRepository.
type GORMCategoryRepository struct {
	db *gorm.DB
}

// NewGORMCategoryRepository creates a new instance of GORMCategoryRepository.
func NewGORMCategoryRepository(db *gorm.DB) *GORMCategoryRepository {
	return &GORMCategoryRepository{db: db}
}

func (r *GORMCategoryRepository) Create(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		return fmt.Errorf("failed to create category: %w", translate(err))
	}
	return nil
}

func (r *GORMCategoryRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to get category by ID %s: %w", id, translate(err))
	}
	return &category, nil
}

func (r *GORMCategoryRepository) List(ctx context.Context, spec query.Spec) ([]models.Category, int64, error) {
	db := r.db.WithContext(ctx)

	var total int64
	if err := spec.Filter.Apply(db.Model(&models.Category{})).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count categories: %w", err)
	}

	categories := []models.Category{}
	if err := spec.Apply(db.Model(&models.Category{})).Find(&categories).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, total, nil
}

func (r *GORMCategoryRepository) Update(ctx context.Context, id string, patch CategoryPatch) (*models.Category, error) {
	updates := map[string]any{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.IconURL != nil {
		updates["icon_url"] = *patch.IconURL
	}
	if len(updates) == 0 {
		return r.GetByID(ctx, id)
	}

	res := r.db.WithContext(ctx).Model(&models.Category{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update category %s: %w", id, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("failed to update category %s: %w", id, ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

func (r *GORMCategoryRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Category{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete category %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to delete category %s: %w", id, ErrNotFound)
	}
	return nil
}
