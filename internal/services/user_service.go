package services

import (
	"context"
	"errors"

	"mercado/internal/apperror"
	"mercado/internal/models"
	"mercado/internal/query"
	"mercado/internal/repositories"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// CreateUserInput is an administrator-created account.
type CreateUserInput struct {
	Name     string `json:"nombre" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"rol" validate:"required,oneof=comprador vendedor admin"`
}

// UpdateUserInput changes an account. Absent fields are left untouched.
type UpdateUserInput struct {
	Name     *string `json:"nombre" validate:"omitempty,min=2,max=100"`
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Password *string `json:"password" validate:"omitempty,min=6,max=72"`
	Role     *string `json:"rol" validate:"omitempty,oneof=comprador vendedor admin"`
}

// UserService handles account administration.
type UserService struct {
	userRepo   repositories.UserRepository
	log        *zap.Logger
	bcryptCost int
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repositories.UserRepository, log *zap.Logger, bcryptCost int) *UserService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{userRepo: userRepo, log: log, bcryptCost: bcryptCost}
}

// List returns one page of users.
func (s *UserService) List(ctx context.Context, raw query.Values) (*Page[models.User], error) {
	spec, err := query.Parse(raw, userSchema)
	if err != nil {
		return nil, err
	}
	users, total, err := s.userRepo.List(ctx, spec)
	if err != nil {
		return nil, apperror.Internal("failed to list users", err)
	}
	return &Page[models.User]{Items: users, Total: total, Pagination: spec.Page}, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user not found", "failed to get user")
	}
	return user, nil
}

// Create adds an account with any role.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*models.User, error) {
	role, err := models.ParseRole(in.Role)
	if err != nil {
		return nil, apperror.Validation("invalid role", apperror.FieldError{Field: "rol", Message: err.Error()})
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, apperror.Internal("failed to hash password", err)
	}

	user := &models.User{Name: in.Name, Email: in.Email, Password: string(hash), Role: role}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperror.Conflict("email already registered")
		}
		return nil, apperror.Internal("failed to create user", err)
	}
	s.log.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(role)))
	return user, nil
}

// Update changes an account.
func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (*models.User, error) {
	patch := repositories.UserPatch{Name: in.Name, Email: in.Email}
	if in.Role != nil {
		role, err := models.ParseRole(*in.Role)
		if err != nil {
			return nil, apperror.Validation("invalid role", apperror.FieldError{Field: "rol", Message: err.Error()})
		}
		patch.Role = &role
	}
	if in.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), s.bcryptCost)
		if err != nil {
			return nil, apperror.Internal("failed to hash password", err)
		}
		hashed := string(hash)
		patch.Password = &hashed
	}
	if patch.IsEmpty() {
		return nil, apperror.Validation("no fields to update")
	}

	user, err := s.userRepo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperror.Conflict("email already registered")
		}
		return nil, notFoundOr(err, "user not found", "failed to update user")
	}
	return user, nil
}

// Delete removes an account.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.userRepo.Delete(ctx, id); err != nil {
		return notFoundOr(err, "user not found", "failed to delete user")
	}
	s.log.Info("user deleted", zap.String("user_id", id))
	return nil
}

// notFoundOr maps repositories.ErrNotFound to a NotFound error and anything
// else to an Internal error.
func notFoundOr(err error, notFound, internal string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apperror.NotFound(notFound)
	}
	return apperror.Internal(internal, err)
}
