package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"mercado/internal/apperror"
	"mercado/internal/metrics"
	"mercado/internal/models"
	"mercado/internal/repositories"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultResetCodeTTL = time.Hour
	resetCodeDigits     = 6
)

// RegisterInput is the payload of a self-registration.
type RegisterInput struct {
	Name     string `json:"nombre" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"rol" validate:"omitempty,oneof=comprador vendedor"`
}

// LoginInput is the payload of a login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// PasswordResetRequestInput asks for a recovery code.
type PasswordResetRequestInput struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetInput sets a new password using a recovery code.
type PasswordResetInput struct {
	Email    string `json:"email" validate:"required,email"`
	Code     string `json:"codigo" validate:"required,len=6,numeric"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// Session is the result of a successful registration or login.
type Session struct {
	User      *models.User `json:"usuario"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expira"`
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo    repositories.UserRepository
	tokens      *TokenService
	revocations repositories.RevocationStore
	events      emitter
	log         *zap.Logger
	bcryptCost  int
	resetTTL    time.Duration
	now         func() time.Time
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithRevocationStore enables logout and password-reset token revocation.
func WithRevocationStore(store repositories.RevocationStore) AuthOption {
	return func(s *AuthService) { s.revocations = store }
}

// WithAuthEvents sets the publisher for recovery code delivery.
func WithAuthEvents(pub EventPublisher) AuthOption {
	return func(s *AuthService) { s.events.pub = pub }
}

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) { s.bcryptCost = cost }
}

// WithResetCodeTTL sets how long a recovery code stays valid.
func WithResetCodeTTL(ttl time.Duration) AuthOption {
	return func(s *AuthService) { s.resetTTL = ttl }
}

// WithAuthClock replaces the wall clock.
func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, tokens *TokenService, log *zap.Logger, opts ...AuthOption) *AuthService {
	s := &AuthService{
		userRepo:   userRepo,
		tokens:     tokens,
		log:        log,
		bcryptCost: bcrypt.DefaultCost,
		resetTTL:   defaultResetCodeTTL,
		now:        time.Now,
	}
	s.events.log = log
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a buyer or seller account and logs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	role := models.RoleBuyer
	if in.Role != "" {
		parsed, err := models.ParseRole(in.Role)
		if err != nil || parsed == models.RoleAdmin {
			return nil, apperror.Validation("invalid role",
				apperror.FieldError{Field: "rol", Message: "must be comprador or vendedor"})
		}
		role = parsed
	}

	if _, err := s.userRepo.GetByEmail(ctx, in.Email); err == nil {
		return nil, apperror.Conflict("email already registered")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, apperror.Internal("failed to check email", err)
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Name: in.Name, Email: in.Email, Password: hash, Role: role}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperror.Conflict("email already registered")
		}
		return nil, apperror.Internal("failed to register user", err)
	}

	s.log.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return s.session(user)
}

// Login checks credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	user, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			metrics.AuthFailure(metrics.ReasonBadPassword)
			return nil, apperror.Authentication("invalid credentials")
		}
		return nil, apperror.Internal("failed to look up user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		metrics.AuthFailure(metrics.ReasonBadPassword)
		return nil, apperror.Authentication("invalid credentials")
	}
	return s.session(user)
}

func (s *AuthService) session(user *models.User) (*Session, error) {
	token, expires, err := s.tokens.Issue(user)
	if err != nil {
		return nil, apperror.Internal("failed to issue token", err)
	}
	return &Session{User: user, Token: token, ExpiresAt: expires}, nil
}

// Authenticate resolves a bearer token to the current user. The user is
// always reloaded from the store; role and email in the token are not trusted.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, *Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		metrics.AuthFailure(metrics.ReasonInvalidToken)
		return nil, nil, err
	}

	if s.revocations != nil {
		if err := s.checkRevoked(ctx, claims); err != nil {
			return nil, nil, err
		}
	}

	user, err := s.userRepo.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			metrics.AuthFailure(metrics.ReasonUnknownUser)
			return nil, nil, apperror.Authentication("user no longer exists")
		}
		return nil, nil, apperror.Internal("failed to load user", err)
	}
	return user, claims, nil
}

func (s *AuthService) checkRevoked(ctx context.Context, claims *Claims) error {
	if claims.ID != "" {
		revoked, err := s.revocations.IsTokenRevoked(ctx, claims.ID)
		if err != nil {
			return apperror.Internal("failed to check token revocation", err)
		}
		if revoked {
			metrics.AuthFailure(metrics.ReasonRevoked)
			return apperror.Authentication("token revoked")
		}
	}

	cutoff, err := s.revocations.UserRevokedAt(ctx, claims.Subject)
	if err != nil {
		return apperror.Internal("failed to check token revocation", err)
	}
	if !cutoff.IsZero() && claims.IssuedAt != nil && claims.IssuedAt.Time.Before(cutoff) {
		metrics.AuthFailure(metrics.ReasonRevoked)
		return apperror.Authentication("token revoked")
	}
	return nil
}

// Logout revokes the presented token until it would have expired anyway.
// Without a revocation store it is a no-op.
func (s *AuthService) Logout(ctx context.Context, claims *Claims) error {
	if s.revocations == nil || claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if err := s.revocations.RevokeToken(ctx, claims.ID, ttl); err != nil {
		return apperror.Internal("failed to revoke token", err)
	}
	return nil
}

// RequestPasswordReset stores a hashed six digit recovery code and publishes
// it for delivery. Unknown emails succeed silently so that callers cannot
// probe which accounts exist.
func (s *AuthService) RequestPasswordReset(ctx context.Context, in PasswordResetRequestInput) error {
	user, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		return apperror.Internal("failed to look up user", err)
	}

	code, err := generateResetCode()
	if err != nil {
		return apperror.Internal("failed to generate recovery code", err)
	}
	hash, err := s.hash(code)
	if err != nil {
		return err
	}

	expires := s.now().Add(s.resetTTL)
	if err := s.userRepo.SetResetCode(ctx, user.ID, hash, expires); err != nil {
		return apperror.Internal("failed to store recovery code", err)
	}

	if s.events.pub == nil {
		s.log.Warn("no event publisher configured, recovery code not delivered", zap.String("user_id", user.ID))
	}
	s.events.emit(EventPasswordResetRequested, map[string]any{
		"usuario_id": user.ID,
		"email":      user.Email,
		"nombre":     user.Name,
		"codigo":     code,
		"expira":     expires,
	})
	return nil
}

// ResetPassword replaces the password when the recovery code matches and is
// still valid. Every token issued before the reset is revoked.
func (s *AuthService) ResetPassword(ctx context.Context, in PasswordResetInput) error {
	invalid := apperror.Validation("invalid or expired recovery code")

	user, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return invalid
		}
		return apperror.Internal("failed to look up user", err)
	}

	now := s.now()
	if !user.HasPendingReset(now) {
		return invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.ResetCode), []byte(in.Code)); err != nil {
		return invalid
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return err
	}
	if err := s.userRepo.ResetPassword(ctx, user.ID, *user.ResetCode, hash); err != nil {
		if errors.Is(err, repositories.ErrPreconditionFailed) {
			return invalid
		}
		return apperror.Internal("failed to reset password", err)
	}

	if s.revocations != nil {
		// Tokens carry second precision.
		if err := s.revocations.RevokeUserTokens(ctx, user.ID, now.Truncate(time.Second)); err != nil {
			s.log.Error("failed to revoke tokens after password reset", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	s.log.Info("password reset", zap.String("user_id", user.ID))
	return nil
}

func (s *AuthService) hash(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), s.bcryptCost)
	if err != nil {
		return "", apperror.Internal("failed to hash password", err)
	}
	return string(hashed), nil
}

func generateResetCode() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", resetCodeDigits, n.Int64()), nil
}
