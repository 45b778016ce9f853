package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/subtrack/backend/internal/domain/identity"
	"github.com/subtrack/backend/internal/infrastructure/auth"
)

// UserDTO is the public view of an account
type UserDTO struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// TokensDTO is an issued access/refresh token pair
type TokensDTO struct {
	AccessToken           string    `json:"accessToken"`
	RefreshToken          string    `json:"refreshToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
	TokenType             string    `json:"tokenType"`
}

// AuthResult is returned by Register and Login
type AuthResult struct {
	User   UserDTO   `json:"user"`
	Tokens TokensDTO `json:"tokens"`
}

// ToUserDTO converts a domain user to its DTO
func ToUserDTO(u *identity.User) UserDTO {
	return UserDTO{
		ID:        u.ID,
		Email:     u.Email,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}

func toTokensDTO(p *auth.TokenPair) TokensDTO {
	return TokensDTO{
		AccessToken:           p.AccessToken,
		RefreshToken:          p.RefreshToken,
		AccessTokenExpiresAt:  p.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: p.RefreshTokenExpiresAt,
		TokenType:             p.TokenType,
	}
}
