// Package auth handles account registration, password login and the
// session tokens that guard the rest of the API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Priya8975/forge-storefront/internal/domain"
	"github.com/Priya8975/forge-storefront/internal/store"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const passwordCost = 10

var (
	ErrUserExists      = errors.New("user already exists")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidPassword = errors.New("invalid password")
)

// ValidationError wraps a request that failed field validation.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

type UserRepository interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Service struct {
	users    UserRepository
	tokens   *TokenService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewService(users UserRepository, tokens *TokenService, logger *zap.Logger) *Service {
	return &Service{
		users:    users,
		tokens:   tokens,
		validate: validator.New(),
		logger:   logger,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Struct(req); err != nil {
		return nil, &ValidationError{Err: err}
	}

	_, err := s.users.GetUserByEmail(ctx, req.Email)
	if err == nil {
		return nil, ErrUserExists
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), passwordCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u := &domain.User{Name: req.Name, Email: req.Email, PasswordHash: string(hash)}
	if err := s.users.CreateUser(ctx, u); err != nil {
		// A concurrent registration can still win the unique index.
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", u.ID))
	return u, nil
}

// Login checks the password and returns a signed session token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (string, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validate.Struct(req); err != nil {
		return "", &ValidationError{Err: err}
	}

	u, err := s.users.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("login with invalid password", zap.String("user_id", u.ID))
		return "", ErrInvalidPassword
	}

	return s.tokens.Generate(u)
}

func (s *Service) Profile(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	return u, nil
}

// Tokens exposes the token service for request middleware.
func (s *Service) Tokens() *TokenService {
	return s.tokens
}
