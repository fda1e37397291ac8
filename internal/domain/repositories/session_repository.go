package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/chemicheck/chemicheck/internal/domain/entities"
)

// SessionRepository defines the interface for conversation session data access
type SessionRepository interface {
	// Create creates a new session
	Create(ctx context.Context, session *entities.Session) error

	// FindByID finds a session by ID
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Session, error)

	// FindByUserID finds sessions for a user, newest first
	FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.Session, error)

	// Update updates a session
	Update(ctx context.Context, session *entities.Session) error

	// UpdatePhase updates only the session phase
	UpdatePhase(ctx context.Context, sessionID uuid.UUID, phase entities.SessionPhase) error

	// Delete deletes a session
	Delete(ctx context.Context, id uuid.UUID) error
}
