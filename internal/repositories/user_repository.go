package repositories

import (
	"context"
	"time"

	"mercado/internal/models"
	"mercado/internal/query"
)

// UserPatch lists the user fields to change. Nil fields are left untouched.
type UserPatch struct {
	Name     *string
	Email    *string
	Role     *models.Role
	Password *string // bcrypt hash
}

// IsEmpty reports whether the patch changes nothing.
func (p UserPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Role == nil && p.Password == nil
}

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, spec query.Spec) ([]models.User, int64, error)
	Update(ctx context.Context, id string, patch UserPatch) (*models.User, error)
	Delete(ctx context.Context, id string) error
	SetResetCode(ctx context.Context, id, codeHash string, expires time.Time) error
	ResetPassword(ctx context.Context, id, codeHash, passwordHash string) error
	ClearExpiredResetCodes(ctx context.Context, now time.Time) (int64, error)
}
