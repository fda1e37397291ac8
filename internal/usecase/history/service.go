// Package history serves the persisted conversation records and the
// aggregate statistics derived from them.
package history

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/chemicheck/chemicheck/errors"
	"github.com/chemicheck/chemicheck/internal/domain/entities"
	"github.com/chemicheck/chemicheck/internal/domain/repositories"
)

// Service defines conversation-history methods
type Service interface {
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.ConversationRecord, int64, error)
	Get(ctx context.Context, userID, recordID uuid.UUID) (*entities.ConversationRecord, error)
	Delete(ctx context.Context, userID, recordID uuid.UUID) error
	Stats(ctx context.Context, userID uuid.UUID) (*entities.UserStats, error)
}

type service struct {
	records repositories.ConversationRecordRepository
	logger  *zap.Logger
}

// NewService constructs the history service
func NewService(records repositories.ConversationRecordRepository, logger *zap.Logger) Service {
	return &service{records: records, logger: logger}
}

// List returns the user's conversation records, newest first, together
// with the total record count for pagination.
func (s *service) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.ConversationRecord, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	records, err := s.records.ListByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.ErrInternal(err)
	}
	total, err := s.records.CountByUserID(ctx, userID)
	if err != nil {
		return nil, 0, apperrors.ErrInternal(err)
	}
	return records, total, nil
}

// Get returns one record owned by the user.
func (s *service) Get(ctx context.Context, userID, recordID uuid.UUID) (*entities.ConversationRecord, error) {
	record, err := s.ownedRecord(ctx, userID, recordID)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Delete removes a record owned by the user.
func (s *service) Delete(ctx context.Context, userID, recordID uuid.UUID) error {
	if _, err := s.ownedRecord(ctx, userID, recordID); err != nil {
		return err
	}
	if err := s.records.Delete(ctx, recordID); err != nil {
		if stderrors.Is(err, entities.ErrRecordNotFound) {
			return apperrors.ErrRecordNotFound(recordID.String())
		}
		return apperrors.ErrInternal(err)
	}

	s.logger.Info("conversation record deleted",
		zap.String("record_id", recordID.String()),
		zap.String("user_id", userID.String()))
	return nil
}

// Stats aggregates the user's completed conversations.
func (s *service) Stats(ctx context.Context, userID uuid.UUID) (*entities.UserStats, error) {
	stats, err := s.records.StatsByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.ErrInternal(err)
	}
	return stats, nil
}

func (s *service) ownedRecord(ctx context.Context, userID, recordID uuid.UUID) (*entities.ConversationRecord, error) {
	record, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		if stderrors.Is(err, entities.ErrRecordNotFound) {
			return nil, apperrors.ErrRecordNotFound(recordID.String())
		}
		return nil, apperrors.ErrInternal(err)
	}
	if record.UserID != userID {
		return nil, apperrors.ErrForbidden("record belongs to another user")
	}
	return record, nil
}
