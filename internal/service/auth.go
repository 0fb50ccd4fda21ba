package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tuanvumaihuynh/storefront/internal/apperr"
	"github.com/tuanvumaihuynh/storefront/internal/auth"
	"github.com/tuanvumaihuynh/storefront/internal/model"
	"github.com/tuanvumaihuynh/storefront/internal/repository"
)

type Credentials struct {
	Email    string
	Password string
}

// TokenIssuer signs session tokens for an authenticated identity.
type TokenIssuer interface {
	Issue(id auth.Identity) (string, error)
}

type AuthService interface {
	// Signup registers a new user and returns a session token for it.
	Signup(ctx context.Context, creds Credentials) (string, error)
	// Login checks the credentials and returns a session token.
	Login(ctx context.Context, creds Credentials) (string, error)
}

type authService struct {
	queryTimeout time.Duration
	userRepo     repository.UserRepository
	issuer       TokenIssuer
	now          func() time.Time
}

func NewAuthService(queryTimeout time.Duration, userRepo repository.UserRepository, issuer TokenIssuer) AuthService {
	return &authService{
		queryTimeout: queryTimeout,
		userRepo:     userRepo,
		issuer:       issuer,
		now:          time.Now,
	}
}

func (s *authService) Signup(ctx context.Context, creds Credentials) (string, error) {
	hash, err := auth.HashPassword(creds.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return "", apperr.ValidationErr.
				WithMsg(fmt.Sprintf("Password must be at most %d bytes", auth.MaxPasswordBytes)).
				WrapParent(err)
		}
		return "", err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid v7: %w", err)
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	user := model.User{
		ID:           id,
		Email:        normalizeEmail(creds.Email),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		return "", fmt.Errorf("user repository create user: %w", apperr.FromStorage(err))
	}

	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, creds Credentials) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.userRepo.GetUserByEmail(ctx, normalizeEmail(creds.Email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", apperr.InvalidCredentialsErr.WrapParent(err)
		}
		return "", fmt.Errorf("user repository get user by email: %w", apperr.FromStorage(err))
	}

	if err := auth.ComparePassword(user.PasswordHash, creds.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return "", apperr.InvalidCredentialsErr.WrapParent(err)
		}
		return "", err
	}

	return s.issue(user)
}

func (s *authService) issue(user model.User) (string, error) {
	token, err := s.issuer.Issue(auth.Identity{
		Subject: user.ID.String(),
		Email:   user.Email,
	})
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

func (s *authService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
