package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chemicheck/chemicheck/internal/domain/entities"
)

// AnalysisJobRepository handles analysis job data operations
type AnalysisJobRepository struct {
	db *gorm.DB
}

// NewAnalysisJobRepository creates a new analysis job repository
func NewAnalysisJobRepository(db *gorm.DB) *AnalysisJobRepository {
	return &AnalysisJobRepository{db: db}
}

// Create creates a new analysis job
func (r *AnalysisJobRepository) Create(ctx context.Context, job *entities.AnalysisJob) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create analysis job: %w", err)
	}
	return nil
}

// FindByID retrieves an analysis job by ID
func (r *AnalysisJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.AnalysisJob, error) {
	var job entities.AnalysisJob
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entities.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to find analysis job: %w", err)
	}
	return &job, nil
}

// FindLatestBySessionID retrieves the newest job for a session
func (r *AnalysisJobRepository) FindLatestBySessionID(ctx context.Context, sessionID uuid.UUID) (*entities.AnalysisJob, error) {
	var job entities.AnalysisJob
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entities.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to find analysis job for session: %w", err)
	}
	return &job, nil
}

// Update updates an analysis job
func (r *AnalysisJobRepository) Update(ctx context.Context, job *entities.AnalysisJob) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}
	if err := r.db.WithContext(ctx).Save(job).Error; err != nil {
		return fmt.Errorf("failed to update analysis job: %w", err)
	}
	return nil
}

// Claim atomically moves a pending or retrying job to processing. Only one
// of several competing workers sees RowsAffected > 0.
func (r *AnalysisJobRepository) Claim(ctx context.Context, jobID uuid.UUID) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&entities.AnalysisJob{}).
		Where("id = ? AND status IN ?", jobID, []entities.AnalysisJobStatus{
			entities.AnalysisJobStatusPending,
			entities.AnalysisJobStatusRetrying,
		}).
		Updates(map[string]interface{}{
			"status":     entities.AnalysisJobStatusProcessing,
			"started_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim analysis job: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListPending retrieves pending or retrying jobs, oldest first
func (r *AnalysisJobRepository) ListPending(ctx context.Context, limit int) ([]*entities.AnalysisJob, error) {
	if limit == 0 {
		limit = 100
	}
	var jobs []*entities.AnalysisJob
	if err := r.db.WithContext(ctx).
		Where("status IN ?", []entities.AnalysisJobStatus{
			entities.AnalysisJobStatusPending,
			entities.AnalysisJobStatusRetrying,
		}).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	return jobs, nil
}
