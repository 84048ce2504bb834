package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mercado/internal/models"
	"mercado/internal/query"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create creates a new user in the database. Emails are stored lowercased.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = normalizeEmail(user.Email)
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", translate(err))
	}
	return nil
}

// GetByEmail retrieves a user by their email from the database.
func (r *GORMUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", normalizeEmail(email)).Error; err != nil {
		return nil, fmt.Errorf("failed to get user by email %s: %w", email, translate(err))
	}
	return &user, nil
}

// GetByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to get user by ID %s: %w", id, translate(err))
	}
	return &user, nil
}

// List returns one page of users matching spec and the total match count.
func (r *GORMUserRepository) List(ctx context.Context, spec query.Spec) ([]models.User, int64, error) {
	db := r.db.WithContext(ctx)

	var total int64
	if err := spec.Filter.Apply(db.Model(&models.User{})).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	users := []models.User{}
	if err := spec.Apply(db.Model(&models.User{})).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// Update applies patch to the user and returns the stored result.
func (r *GORMUserRepository) Update(ctx context.Context, id string, patch UserPatch) (*models.User, error) {
	updates := map[string]any{"updated_at": r.db.NowFunc()}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Email != nil {
		updates["email"] = normalizeEmail(*patch.Email)
	}
	if patch.Role != nil {
		updates["role"] = *patch.Role
	}
	if patch.Password != nil {
		updates["password"] = *patch.Password
	}

	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update user %s: %w", id, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("failed to update user %s: %w", id, ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

// Delete removes a user by their ID.
func (r *GORMUserRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete user %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to delete user %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetResetCode stores a hashed recovery code, replacing any previous one.
func (r *GORMUserRepository) SetResetCode(ctx context.Context, id, codeHash string, expires time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]any{
		"reset_code":    codeHash,
		"reset_expires": expires.UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to store reset code for user %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to store reset code for user %s: %w", id, ErrNotFound)
	}
	return nil
}

// ResetPassword sets a new password hash and clears the recovery code, but
// only while codeHash is still the stored code.
func (r *GORMUserRepository) ResetPassword(ctx context.Context, id, codeHash, passwordHash string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND reset_code = ?", id, codeHash).
		Updates(map[string]any{
			"password":      passwordHash,
			"reset_code":    gorm.Expr("NULL"),
			"reset_expires": gorm.Expr("NULL"),
			"updated_at":    r.db.NowFunc(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to reset password for user %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to reset password for user %s: %w", id, ErrPreconditionFailed)
	}
	return nil
}

// ClearExpiredResetCodes removes recovery codes that expired before now.
func (r *GORMUserRepository) ClearExpiredResetCodes(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("reset_expires IS NOT NULL AND reset_expires <= ?", now.UTC()).
		Updates(map[string]any{
			"reset_code":    gorm.Expr("NULL"),
			"reset_expires": gorm.Expr("NULL"),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to clear expired reset codes: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
