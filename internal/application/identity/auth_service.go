// Package identity implements registration, login and token lifecycle.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/subtrack/backend/internal/domain/identity"
	"github.com/subtrack/backend/internal/domain/shared"
	"github.com/subtrack/backend/internal/infrastructure/auth"
	"github.com/subtrack/backend/internal/infrastructure/logger"
)

// AuthService handles authentication operations
type AuthService struct {
	userRepo   identity.UserRepository
	hasher     identity.PasswordHasher
	jwtService *auth.JWTService
	blacklist  auth.TokenBlacklist
	publisher  shared.EventPublisher
	clock      shared.Clock
	logger     *zap.Logger
}

// NewAuthService creates a new authentication service. publisher may be nil.
func NewAuthService(
	userRepo identity.UserRepository,
	hasher identity.PasswordHasher,
	jwtService *auth.JWTService,
	blacklist auth.TokenBlacklist,
	publisher shared.EventPublisher,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		hasher:     hasher,
		jwtService: jwtService,
		blacklist:  blacklist,
		publisher:  publisher,
		clock:      shared.SystemClock(),
		logger:     logger,
	}
}

// SetClock overrides the wall clock used for new users and token TTLs
func (s *AuthService) SetClock(c shared.Clock) {
	s.clock = c
}

// Register creates an account and signs it in
func (s *AuthService) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	log := logger.Enrich(ctx, s.logger)

	normalized, err := identity.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := identity.ValidatePassword(password); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if exists {
		log.Info("Registration with taken email", zap.String("email", normalized))
		return nil, shared.NewDomainError(shared.CodeAlreadyExists, "An account with this email already exists")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return nil, err
	}

	user, err := identity.NewUser(normalized, hash, s.clock)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.Save(ctx, user); err != nil {
		return nil, err
	}
	s.publish(ctx, user)

	tokens, err := s.jwtService.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		log.Error("Failed to generate token pair", zap.Error(err))
		return nil, err
	}

	log.Info("User registered", zap.String("user_id", user.ID.String()))
	return &AuthResult{User: ToUserDTO(user), Tokens: toTokensDTO(tokens)}, nil
}

// Login verifies credentials and issues a token pair
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	log := logger.Enrich(ctx, s.logger)

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			log.Warn("Login for unknown email")
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		log.Warn("Invalid password attempt", zap.String("user_id", user.ID.String()))
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive() {
		log.Warn("Login attempt for deactivated account", zap.String("user_id", user.ID.String()))
		return nil, shared.ErrAccountDisabled
	}

	tokens, err := s.jwtService.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		log.Error("Failed to generate token pair", zap.Error(err))
		return nil, err
	}

	log.Info("User logged in", zap.String("user_id", user.ID.String()))
	return &AuthResult{User: ToUserDTO(user), Tokens: toTokensDTO(tokens)}, nil
}

// Refresh exchanges a refresh token for a new pair. The presented refresh
// token is claimed atomically, so of two concurrent refreshes with the same
// token only one gets a pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokensDTO, error) {
	log := logger.Enrich(ctx, s.logger)

	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		log.Warn("Refresh token validation failed", zap.Error(err))
		return nil, shared.NewDomainError(shared.CodeUnauthorized, "Invalid or expired refresh token")
	}

	userID, err := claims.GetUserUUID()
	if err != nil {
		return nil, shared.NewDomainError(shared.CodeUnauthorized, "Invalid user in refresh token")
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError(shared.CodeUnauthorized, "User no longer exists")
		}
		return nil, err
	}
	if !user.IsActive() {
		return nil, shared.ErrAccountDisabled
	}

	claimed, err := s.blacklist.Claim(ctx, claims.ID, s.revocationTTL(claims))
	if err != nil {
		log.Error("Failed to claim refresh token", zap.String("jti", claims.ID), zap.Error(err))
		return nil, err
	}
	if !claimed {
		log.Warn("Refresh token replayed", zap.String("user_id", user.ID.String()))
		return nil, shared.NewDomainError(shared.CodeUnauthorized, auth.ErrTokenBlacklisted.Error())
	}

	tokens, err := s.jwtService.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		log.Error("Failed to generate token pair", zap.Error(err))
		return nil, err
	}

	log.Info("Token refreshed", zap.String("user_id", user.ID.String()))
	dto := toTokensDTO(tokens)
	return &dto, nil
}

// Logout revokes the access token and, when given, the refresh token of
// the same session, each until it would have expired anyway. An empty
// refreshToken revokes only the access token.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	claims, err := s.jwtService.ValidateAccessToken(accessToken)
	if err != nil {
		return shared.NewDomainError(shared.CodeUnauthorized, "Invalid or expired access token")
	}

	var refreshClaims *auth.Claims
	if refreshToken != "" {
		refreshClaims, err = s.jwtService.ValidateRefreshToken(refreshToken)
		if err != nil {
			return shared.NewDomainError(shared.CodeUnauthorized, "Invalid or expired refresh token")
		}
		if refreshClaims.UserID != claims.UserID {
			return shared.NewDomainError(shared.CodeUnauthorized, "Refresh token belongs to another user")
		}
	}

	if err := s.revoke(ctx, claims); err != nil {
		return err
	}
	if refreshClaims != nil {
		if err := s.revoke(ctx, refreshClaims); err != nil {
			return err
		}
	}

	logger.Enrich(ctx, s.logger).Info("User logged out",
		zap.String("user_id", claims.UserID),
		zap.Bool("refresh_revoked", refreshClaims != nil),
	)
	return nil
}

// Me returns the account behind userID
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	dto := ToUserDTO(user)
	return &dto, nil
}

// revocationTTL keeps a blacklist entry a little past the token's expiry
func (s *AuthService) revocationTTL(claims *auth.Claims) time.Duration {
	return claims.RemainingTTL(s.clock.Now()) + time.Second
}

func (s *AuthService) revoke(ctx context.Context, claims *auth.Claims) error {
	if err := s.blacklist.AddToBlacklist(ctx, claims.ID, s.revocationTTL(claims)); err != nil {
		logger.Enrich(ctx, s.logger).Error("Failed to revoke token",
			zap.String("jti", claims.ID), zap.Error(err))
		return err
	}
	return nil
}

func (s *AuthService) publish(ctx context.Context, user *identity.User) {
	events := user.GetDomainEvents()
	user.ClearDomainEvents()
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		logger.Enrich(ctx, s.logger).Error("Failed to publish user events", zap.Error(err))
	}
}
