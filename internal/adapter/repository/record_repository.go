package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chemicheck/chemicheck/internal/domain/entities"
)

// ConversationRecordRepository handles conversation history persistence
type ConversationRecordRepository struct {
	db *gorm.DB
}

// NewConversationRecordRepository creates a new conversation record repository
func NewConversationRecordRepository(db *gorm.DB) *ConversationRecordRepository {
	return &ConversationRecordRepository{db: db}
}

// Create creates a new conversation record
func (r *ConversationRecordRepository) Create(ctx context.Context, record *entities.ConversationRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to create conversation record: %w", err)
	}
	return nil
}

// FindByID finds a record by ID
func (r *ConversationRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.ConversationRecord, error) {
	var record entities.ConversationRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entities.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to find conversation record: %w", err)
	}
	return &record, nil
}

// FindBySessionID finds the record created for a session
func (r *ConversationRecordRepository) FindBySessionID(ctx context.Context, sessionID uuid.UUID) (*entities.ConversationRecord, error) {
	var record entities.ConversationRecord
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entities.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to find record for session: %w", err)
	}
	return &record, nil
}

// Update updates a record
func (r *ConversationRecordRepository) Update(ctx context.Context, record *entities.ConversationRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	if err := r.db.WithContext(ctx).Save(record).Error; err != nil {
		return fmt.Errorf("failed to update conversation record: %w", err)
	}
	return nil
}

// ListByUserID lists a user's records, newest first
func (r *ConversationRecordRepository) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.ConversationRecord, error) {
	var records []*entities.ConversationRecord
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list conversation records: %w", err)
	}
	return records, nil
}

// CountByUserID counts a user's records
func (r *ConversationRecordRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&entities.ConversationRecord{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count conversation records: %w", err)
	}
	return total, nil
}

// Delete deletes a record
func (r *ConversationRecordRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&entities.ConversationRecord{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete conversation record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return entities.ErrRecordNotFound
	}
	return nil
}

// StatsByUserID computes aggregate stats over a user's completed records
func (r *ConversationRecordRepository) StatsByUserID(ctx context.Context, userID uuid.UUID) (*entities.UserStats, error) {
	var row struct {
		Total         int
		AvgScore      float64
		BestScore     int
		TotalDuration int
	}
	if err := r.db.WithContext(ctx).
		Model(&entities.ConversationRecord{}).
		Select("COUNT(*) AS total, COALESCE(AVG(match_score), 0) AS avg_score, COALESCE(MAX(match_score), 0) AS best_score, COALESCE(SUM(duration_seconds), 0) AS total_duration").
		Where("user_id = ? AND status = ?", userID, entities.RecordStatusCompleted).
		Scan(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to compute user stats: %w", err)
	}
	return &entities.UserStats{
		TotalConversations: row.Total,
		AverageMatchScore:  row.AvgScore,
		BestMatchScore:     row.BestScore,
		TotalDuration:      row.TotalDuration,
	}, nil
}
