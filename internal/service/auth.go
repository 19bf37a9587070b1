package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tallyapp/tally-server/internal/auth"
	"github.com/tallyapp/tally-server/internal/domain"
	domainerrors "github.com/tallyapp/tally-server/internal/errors"
	"github.com/tallyapp/tally-server/internal/id"
	"github.com/tallyapp/tally-server/internal/ratelimit"
	"github.com/tallyapp/tally-server/internal/store"
	"github.com/tallyapp/tally-server/internal/validation"
)

// validate is a shared validator instance for request validation.
var validate = validation.New()

// AuthService handles registration, login, and token verification.
type AuthService struct {
	store        *store.Store
	tokenService *auth.TokenService
	loginLimiter *ratelimit.KeyedRateLimiter
	logger       *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	st *store.Store,
	tokenService *auth.TokenService,
	loginLimiter *ratelimit.KeyedRateLimiter,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		store:        st,
		tokenService: tokenService,
		loginLimiter: loginLimiter,
		logger:       logger,
	}
}

// RegisterRequest contains user registration data.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=1024"`
	DisplayName string `json:"display_name" validate:"required,max=100"`
}

// LoginRequest contains user credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries the opaque refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthResponse contains authentication tokens and user data.
type AuthResponse struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

// Register creates a new user account with a profile and signs it in.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID, err := id.Generate("user")
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	user := &domain.User{
		Email:        req.Email,
		PasswordHash: passwordHash,
		DisplayName:  req.DisplayName,
		LastLoginAt:  time.Now(),
	}
	user.ID = userID
	user.InitTimestamps()

	if err := s.store.Users.Create(ctx, user.ID, user); err != nil {
		if errors.Is(err, store.ErrIndexConflict) {
			return nil, domainerrors.AlreadyExists("a user with this email already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	profile := &domain.Profile{
		UserID:     user.ID,
		AvatarType: domain.AvatarAuto,
	}
	profile.ID = user.ID
	profile.InitTimestamps()
	if err := s.store.Profiles.Create(ctx, user.ID, profile); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}

	s.logger.Info("User registered", "user_id", user.ID)

	return s.issueTokens(ctx, user)
}

// Login verifies credentials and issues a token pair. Attempts are rate
// limited per email so credential stuffing gets slow fast.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	if !s.loginLimiter.Allow(req.Email) {
		return nil, domainerrors.Unauthorized("too many login attempts, try again shortly")
	}

	user, err := s.store.Users.GetByIndex(ctx, "email", req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Same answer as a bad password; don't reveal which half failed.
			return nil, domainerrors.Unauthorized("invalid email or password")
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}

	ok, err := auth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, domainerrors.Unauthorized("invalid email or password")
	}

	user.LastLoginAt = time.Now()
	user.Touch()
	if err := s.store.Users.Update(ctx, user.ID, user); err != nil {
		s.logger.Warn("Failed to record login time", "user_id", user.ID, "error", err)
	}

	s.logger.Info("User logged in", "user_id", user.ID)

	return s.issueTokens(ctx, user)
}

// Refresh exchanges a valid refresh token for a fresh token pair.
// The old refresh token is revoked; refresh tokens are single use.
func (s *AuthService) Refresh(ctx context.Context, req RefreshRequest) (*AuthResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	hash := auth.HashRefreshToken(req.RefreshToken)
	stored, err := s.store.RefreshTokens.GetByIndex(ctx, "hash", hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.Unauthorized("invalid refresh token")
		}
		return nil, fmt.Errorf("look up refresh token: %w", err)
	}

	if stored.IsExpired() {
		_ = s.store.RefreshTokens.Delete(ctx, stored.ID)
		return nil, domainerrors.Unauthorized("refresh token expired")
	}

	user, err := s.store.Users.Get(ctx, stored.UserID)
	if err != nil {
		return nil, domainerrors.Unauthorized("invalid refresh token")
	}

	if err := s.store.RefreshTokens.Delete(ctx, stored.ID); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}

	return s.issueTokens(ctx, user)
}

// Logout revokes the given refresh token. Unknown tokens are a no-op.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	hash := auth.HashRefreshToken(refreshToken)
	stored, err := s.store.RefreshTokens.GetByIndex(ctx, "hash", hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("look up refresh token: %w", err)
	}
	return s.store.RefreshTokens.Delete(ctx, stored.ID)
}

// VerifyAccessToken validates a PASETO access token and returns the
// user ID it was issued to.
func (s *AuthService) VerifyAccessToken(_ context.Context, token string) (string, error) {
	claims, err := s.tokenService.VerifyAccessToken(token)
	if err != nil {
		return "", domainerrors.Unauthorized("invalid or expired token")
	}
	return claims.UserID, nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *domain.User) (*AuthResponse, error) {
	accessToken, err := s.tokenService.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshToken, err := s.tokenService.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	tokenID, err := id.Generate("refresh")
	if err != nil {
		return nil, fmt.Errorf("generate refresh token ID: %w", err)
	}

	stored := &domain.RefreshToken{
		UserID:    user.ID,
		TokenHash: auth.HashRefreshToken(refreshToken),
		ExpiresAt: time.Now().Add(s.tokenService.RefreshTokenDuration()),
	}
	stored.ID = tokenID
	stored.InitTimestamps()

	if err := s.store.RefreshTokens.Create(ctx, stored.ID, stored); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(s.tokenService.AccessTokenDuration()),
	}, nil
}
