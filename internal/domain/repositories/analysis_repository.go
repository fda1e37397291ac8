package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/chemicheck/chemicheck/internal/domain/entities"
)

// AnalysisJobRepository defines persistence operations for analysis jobs
type AnalysisJobRepository interface {
	// Create creates a new analysis job
	Create(ctx context.Context, job *entities.AnalysisJob) error

	// FindByID finds a job by ID
	FindByID(ctx context.Context, id uuid.UUID) (*entities.AnalysisJob, error)

	// FindLatestBySessionID finds the newest job for a session
	FindLatestBySessionID(ctx context.Context, sessionID uuid.UUID) (*entities.AnalysisJob, error)

	// Update updates a job
	Update(ctx context.Context, job *entities.AnalysisJob) error

	// ListPending returns pending/retrying jobs ready for a worker
	ListPending(ctx context.Context, limit int) ([]*entities.AnalysisJob, error)

	// Claim atomically moves a pending/retrying job to processing,
	// reporting whether this caller won the claim
	Claim(ctx context.Context, jobID uuid.UUID) (bool, error)
}

// ConversationRecordRepository defines persistence for conversation history
type ConversationRecordRepository interface {
	// Create creates a new conversation record
	Create(ctx context.Context, record *entities.ConversationRecord) error

	// FindByID finds a record by ID
	FindByID(ctx context.Context, id uuid.UUID) (*entities.ConversationRecord, error)

	// FindBySessionID finds the record created for a session
	FindBySessionID(ctx context.Context, sessionID uuid.UUID) (*entities.ConversationRecord, error)

	// Update updates a record
	Update(ctx context.Context, record *entities.ConversationRecord) error

	// ListByUserID lists a user's records, newest first
	ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.ConversationRecord, error)

	// CountByUserID counts a user's records
	CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error)

	// Delete deletes a record
	Delete(ctx context.Context, id uuid.UUID) error

	// StatsByUserID computes aggregate stats over a user's records
	StatsByUserID(ctx context.Context, userID uuid.UUID) (*entities.UserStats, error)
}
