package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const minPasswordLength = 8

// AccountService manages user accounts and issues access tokens.
type AccountService struct {
	users      repository.UserRepository
	policy     auth.Policy
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
	now        func() time.Time
}

// AccountDependencies encapsulates requirements for the account service.
type AccountDependencies struct {
	UserRepo repository.UserRepository
	Policy   auth.Policy
	Tokens   *auth.TokenManager
	Logger   *zap.Logger
	Clock    func() time.Time
}

// AccountInput carries the fields needed to create an account.
type AccountInput struct {
	Name     string
	Email    string
	Password string
}

// IssuedToken is a signed access token for an account.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// NewAccountService builds the service.
func NewAccountService(cfg config.Config, deps AccountDependencies) *AccountService {
	svc := &AccountService{
		users:      deps.UserRepo,
		policy:     deps.Policy,
		tokenMgr:   deps.Tokens,
		bcryptCost: cfg.Auth.BcryptCost,
		logger:     deps.Logger,
		now:        deps.Clock,
	}
	if svc.policy == nil {
		svc.policy = auth.NewRolePolicy()
	}
	if svc.tokenMgr == nil {
		svc.tokenMgr = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// ProvisionTechnician creates a technician account. Only admins may call it.
func (s *AccountService) ProvisionTechnician(ctx context.Context, actor *domain.User, input AccountInput) (*domain.User, error) {
	if err := s.policy.Authorize(actor, auth.OpProvisionTechnician, nil); err != nil {
		return nil, err
	}
	user, err := s.CreateAccount(ctx, input, domain.RoleTechnician)
	if err != nil {
		return nil, err
	}
	s.logger.Info("technician provisioned", zap.String("user_id", user.ID), zap.String("by", actor.ID))
	return user, nil
}

// ListTechnicians returns all technician accounts ordered by name.
func (s *AccountService) ListTechnicians(ctx context.Context, actor *domain.User) ([]domain.User, error) {
	if err := s.policy.Authorize(actor, auth.OpListTechnicians, nil); err != nil {
		return nil, err
	}
	users, err := s.users.ListByRole(ctx, domain.RoleTechnician)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

// CreateAccount validates input, hashes the password and stores the account with role.
func (s *AccountService) CreateAccount(ctx context.Context, input AccountInput, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidationError("email is invalid", map[string]any{"field": "email"})
	}
	if len(input.Password) < minPasswordLength {
		return nil, apperrors.NewValidationError("password must be at least 8 characters", map[string]any{"field": "password"})
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return user, nil
}

// EnsureAdmin creates the bootstrap administrator unless an account with that email
// already exists. It reports whether an account was created.
func (s *AccountService) EnsureAdmin(ctx context.Context, cfg config.AdminConfig) (bool, error) {
	if !cfg.Enabled() {
		return false, nil
	}
	email := strings.ToLower(strings.TrimSpace(cfg.Email))
	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, apperrors.NewStoreUnavailable(err)
	}
	user, err := s.CreateAccount(ctx, AccountInput{Name: cfg.Name, Email: email, Password: cfg.Password}, domain.RoleAdmin)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeConflict) {
			return false, nil
		}
		return false, err
	}
	s.logger.Info("bootstrap admin created", zap.String("user_id", user.ID), zap.String("email", user.Email))
	return true, nil
}

// IssueToken verifies credentials and signs an access token.
func (s *AccountService) IssueToken(ctx context.Context, email, password string) (*IssuedToken, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &IssuedToken{Token: token, ExpiresAt: exp, User: user}, nil
}
