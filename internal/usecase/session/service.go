// Package session manages the analysis session lifecycle: creation,
// recording upload and handing a session over to the analysis pipeline.
package session

import (
	"context"
	stderrors "errors"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/chemicheck/chemicheck/errors"
	"github.com/chemicheck/chemicheck/internal/domain/entities"
	"github.com/chemicheck/chemicheck/internal/domain/repositories"
	"github.com/chemicheck/chemicheck/internal/usecase/analysis"
	"github.com/chemicheck/chemicheck/internal/usecase/transcription"
)

const recordingURLExpiry = 24 * time.Hour

// RecordingStore is the object-storage surface the session service needs.
// *storage.MinIOClient satisfies it; tests substitute fakes.
type RecordingStore interface {
	UploadRecording(ctx context.Context, sessionID string, reader io.Reader, size int64, contentType string) (string, error)
	RecordingURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// Service defines session lifecycle methods
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, partnerName *string, partnerAge *int) (*entities.Session, error)
	Get(ctx context.Context, userID, sessionID uuid.UUID) (*entities.Session, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.Session, error)
	UploadRecording(ctx context.Context, userID, sessionID uuid.UUID, reader io.Reader, size int64, contentType string, durationSeconds int) (*entities.Session, error)
	StartAnalysis(ctx context.Context, userID, sessionID uuid.UUID, input entities.AnalysisInput) (*entities.AnalysisJob, error)
}

type service struct {
	sessions    repositories.SessionRepository
	store       RecordingStore
	analyzer    analysis.Service
	transcriber transcription.Service // nil when transcription is disabled
	logger      *zap.Logger
}

// NewService constructs the session service
func NewService(
	sessions repositories.SessionRepository,
	store RecordingStore,
	analyzer analysis.Service,
	transcriber transcription.Service,
	logger *zap.Logger,
) Service {
	return &service{
		sessions:    sessions,
		store:       store,
		analyzer:    analyzer,
		transcriber: transcriber,
		logger:      logger,
	}
}

// Create opens a new idle session for the user.
func (s *service) Create(ctx context.Context, userID uuid.UUID, partnerName *string, partnerAge *int) (*entities.Session, error) {
	session := entities.NewSession(userID, partnerName, partnerAge)
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, apperrors.ErrInternal(err)
	}

	s.logger.Info("session created",
		zap.String("session_id", session.ID.String()),
		zap.String("user_id", userID.String()))
	return session, nil
}

// Get returns a session owned by the user.
func (s *service) Get(ctx context.Context, userID, sessionID uuid.UUID) (*entities.Session, error) {
	return s.ownedSession(ctx, userID, sessionID)
}

// List returns the user's sessions, newest first.
func (s *service) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.Session, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	sessions, err := s.sessions.FindByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperrors.ErrInternal(err)
	}
	return sessions, nil
}

// UploadRecording stores the audio blob and attaches its URL to the
// session. The object-storage write is retried with exponential backoff.
func (s *service) UploadRecording(ctx context.Context, userID, sessionID uuid.UUID, reader io.Reader, size int64, contentType string, durationSeconds int) (*entities.Session, error) {
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.CanUploadRecording() {
		return nil, apperrors.ErrSessionInvalidState(
			sessionID.String(), string(session.Phase), string(entities.SessionPhaseIdle))
	}

	// Retrying a multi-read body needs a rewindable reader; buffer small
	// uploads, stream large ones once.
	var objectName string
	uploadFn := func() error {
		name, err := s.store.UploadRecording(ctx, sessionID.String(), reader, size, contentType)
		if err != nil {
			return err
		}
		objectName = name
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 20 * time.Second

	if seeker, ok := reader.(io.Seeker); ok {
		rewindFn := func() error {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return backoff.Permanent(err)
			}
			return uploadFn()
		}
		err = backoff.Retry(rewindFn, backoff.WithContext(bo, ctx))
	} else {
		err = uploadFn()
	}
	if err != nil {
		return nil, apperrors.ErrRecordingUploadFailed(sessionID.String(), err)
	}

	url, err := s.store.RecordingURL(ctx, objectName, recordingURLExpiry)
	if err != nil {
		return nil, apperrors.ErrStorageFailed("presign recording", err)
	}

	session.AttachRecording(url, durationSeconds)
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, apperrors.ErrInternal(err)
	}

	s.logger.Info("recording uploaded",
		zap.String("session_id", sessionID.String()),
		zap.String("object", objectName),
		zap.Int64("size_bytes", size))
	return session, nil
}

// StartAnalysis queues the analysis pipeline for a session. When the
// caller supplies no transcript segments, the stored recording is
// transcribed server-side first.
func (s *service) StartAnalysis(ctx context.Context, userID, sessionID uuid.UUID, input entities.AnalysisInput) (*entities.AnalysisJob, error) {
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	if len(input.Segments) == 0 {
		if s.transcriber == nil {
			return nil, apperrors.ErrMissingSegments()
		}
		if session.RecordingURL == nil || *session.RecordingURL == "" {
			return nil, apperrors.ErrRecordingNotFound(sessionID.String())
		}

		segments, err := s.transcriber.Transcribe(ctx, *session.RecordingURL)
		if err != nil {
			return nil, apperrors.ErrTranscriptionFailed(err)
		}
		input.Segments = segments
		s.logger.Info("recording transcribed for analysis",
			zap.String("session_id", sessionID.String()),
			zap.Int("segments", len(segments)))
	}

	return s.analyzer.Enqueue(ctx, sessionID, input)
}

func (s *service) ownedSession(ctx context.Context, userID, sessionID uuid.UUID) (*entities.Session, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if stderrors.Is(err, entities.ErrSessionNotFound) {
			return nil, apperrors.ErrSessionNotFound(sessionID.String())
		}
		return nil, apperrors.ErrInternal(err)
	}
	if session.UserID != userID {
		return nil, apperrors.ErrForbidden("session belongs to another user")
	}
	return session, nil
}
