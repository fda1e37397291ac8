package auth

import "github.com/chemicheck/chemicheck/internal/domain/entities"

// AuthResponse represents the authentication response with tokens
type AuthResponse struct {
	AccessToken  string               `json:"access_token"`
	RefreshToken string               `json:"refresh_token"`
	ExpiresIn    int64                `json:"expires_in"` // seconds
	TokenType    string               `json:"token_type"` // "Bearer"
	User         *entities.PublicUser `json:"user"`
}

// RefreshTokenResponse represents the response after refreshing tokens
type RefreshTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}
