// Package auth issues and validates the JWT bearer tokens the API uses.
// Sign-in is a demo-profile login: the client supplies a name and email
// and gets a ready-to-use account, mirroring an onboarding flow without a
// password store.
package auth

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/chemicheck/chemicheck/errors"
	"github.com/chemicheck/chemicheck/internal/domain/entities"
	"github.com/chemicheck/chemicheck/internal/domain/repositories"
	"github.com/chemicheck/chemicheck/pkg/jwt"
)

// TokenPair is the issued credential set.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Service handles login, token refresh and token validation.
type Service interface {
	DemoLogin(ctx context.Context, name, email string) (*entities.User, *TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	ValidateAccessToken(ctx context.Context, token string) (*entities.User, error)
}

type service struct {
	users      repositories.UserRepository
	jwtManager *jwt.Manager
	logger     *zap.Logger
}

// NewService constructs the auth service
func NewService(users repositories.UserRepository, jwtManager *jwt.Manager, logger *zap.Logger) Service {
	return &service{
		users:      users,
		jwtManager: jwtManager,
		logger:     logger,
	}
}

// DemoLogin finds or creates the demo profile for the email and issues
// tokens for it.
func (s *service) DemoLogin(ctx context.Context, name, email string) (*entities.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	user, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		user.UpdateLastLogin()
		if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
			s.logger.Warn("failed to record login time",
				zap.String("user_id", user.ID.String()),
				zap.Error(err))
		}

	case stderrors.Is(err, entities.ErrUserNotFound):
		user = entities.NewUser(email, name)
		if err := user.Validate(); err != nil {
			return nil, nil, apperrors.ErrInvalidArgument(err.Error())
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, nil, apperrors.ErrInternal(err)
		}
		s.logger.Info("demo profile created",
			zap.String("user_id", user.ID.String()),
			zap.String("email", email))

	default:
		return nil, nil, apperrors.ErrInternal(err)
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, apperrors.ErrInternal(err)
	}
	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a new token pair.
func (s *service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.ErrInvalidRefreshToken()
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if stderrors.Is(err, entities.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidRefreshToken()
		}
		return nil, apperrors.ErrInternal(err)
	}
	if !user.IsActive {
		return nil, apperrors.ErrInvalidRefreshToken()
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		return nil, apperrors.ErrInternal(err)
	}
	return pair, nil
}

// ValidateAccessToken resolves an access token to its active user.
func (s *service) ValidateAccessToken(ctx context.Context, token string) (*entities.User, error) {
	claims, err := s.jwtManager.ValidateAccessToken(token)
	if err != nil {
		return nil, apperrors.ErrInvalidToken()
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if stderrors.Is(err, entities.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidToken()
		}
		return nil, apperrors.ErrInternal(err)
	}
	if !user.IsActive {
		return nil, apperrors.ErrInvalidToken()
	}
	return user, nil
}

func (s *service) issueTokens(user *entities.User) (*TokenPair, error) {
	access, err := s.jwtManager.GenerateAccessToken(user.ID, user.Email, "user")
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwtManager.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.jwtManager.GetAccessExpiry() / time.Second),
	}, nil
}
