// Package analysis orchestrates the conversation analysis pipeline: the
// provider calls, the local match-score computation, the demo fallback, and
// the background workers that execute queued analysis jobs.
package analysis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/chemicheck/chemicheck/errors"
	"github.com/chemicheck/chemicheck/internal/domain/entities"
	"github.com/chemicheck/chemicheck/internal/domain/repositories"
	"github.com/chemicheck/chemicheck/internal/infrastructure/cache"
	"github.com/chemicheck/chemicheck/internal/usecase/scoring"
	"github.com/chemicheck/chemicheck/pkg/jobcontext"
	"github.com/chemicheck/chemicheck/pkg/llm"
)

const (
	lockKeyPrefix   = "analysis:lock:"
	resultKeyPrefix = "analysis:result:"

	lockTTL   = 10 * time.Minute
	resultTTL = 24 * time.Hour
)

// Analyzer is the provider surface the pipeline needs. *Provider satisfies
// it; tests substitute fakes.
type Analyzer interface {
	AnalyzeEmotion(ctx context.Context, segments []entities.TranscriptSegment, prosody entities.ProsodySummary) (entities.EmotionAnalysis, error)
	AnalyzeConversation(ctx context.Context, segments []entities.TranscriptSegment, stats ConversationStats) (entities.ConversationAnalysis, error)
	GenerateFeedback(ctx context.Context, emotion entities.EmotionAnalysis, conversation entities.ConversationAnalysis, match entities.MatchScore) (entities.Feedback, error)
}

// Service defines analysis orchestration methods
type Service interface {
	Enqueue(ctx context.Context, sessionID uuid.UUID, input entities.AnalysisInput) (*entities.AnalysisJob, error)
	GetOutcome(ctx context.Context, sessionID uuid.UUID) (*entities.AnalysisOutcome, error)
	StartWorkerPool(ctx context.Context, workerCount int) error
	StopWorkerPool() error
}

type service struct {
	sessions repositories.SessionRepository
	jobs     repositories.AnalysisJobRepository
	records  repositories.ConversationRecordRepository
	provider Analyzer
	store    cache.Store
	logger   *zap.Logger

	pollInterval time.Duration

	workerStopChan      chan struct{}
	workerWg            sync.WaitGroup
	isWorkerPoolRunning bool
	workerMutex         sync.Mutex
}

// NewService constructs the analysis service
func NewService(
	sessions repositories.SessionRepository,
	jobs repositories.AnalysisJobRepository,
	records repositories.ConversationRecordRepository,
	provider Analyzer,
	store cache.Store,
	logger *zap.Logger,
) Service {
	return &service{
		sessions:     sessions,
		jobs:         jobs,
		records:      records,
		provider:     provider,
		store:        store,
		logger:       logger,
		pollInterval: 5 * time.Second,
	}
}

// Enqueue validates the session, takes the duplicate-analysis guard and
// queues an analysis job for the worker pool.
func (s *service) Enqueue(ctx context.Context, sessionID uuid.UUID, input entities.AnalysisInput) (*entities.AnalysisJob, error) {
	if len(input.Segments) == 0 {
		return nil, apperrors.ErrMissingSegments()
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if stderrors.Is(err, entities.ErrSessionNotFound) {
			return nil, apperrors.ErrSessionNotFound(sessionID.String())
		}
		return nil, apperrors.ErrInternal(err)
	}
	if !session.CanAnalyze() {
		return nil, apperrors.ErrSessionInvalidState(
			sessionID.String(), string(session.Phase), string(entities.SessionPhaseRecording))
	}

	// One analysis at a time per session. A cache outage degrades to
	// accepting the job rather than blocking everyone.
	acquired, err := s.store.SetNX(ctx, lockKeyPrefix+sessionID.String(), "1", lockTTL)
	if err != nil {
		s.logger.Warn("duplicate-analysis guard unavailable",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
	} else if !acquired {
		return nil, apperrors.ErrSessionAlreadyAnalyzing(sessionID.String())
	}

	job := entities.NewAnalysisJob(sessionID, input)
	if err := s.jobs.Create(ctx, job); err != nil {
		s.releaseLock(ctx, sessionID)
		return nil, apperrors.ErrInternal(err)
	}

	session.MarkProcessing()
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, apperrors.ErrInternal(err)
	}

	s.logger.Info("analysis job enqueued",
		zap.String("job_id", job.ID.String()),
		zap.String("session_id", sessionID.String()),
		zap.Int("segments", len(input.Segments)),
		zap.Int("prosody_samples", len(input.Prosody)))

	return job, nil
}

// GetOutcome returns the analysis outcome for a session, from cache when
// possible and rebuilt from the persisted record otherwise.
func (s *service) GetOutcome(ctx context.Context, sessionID uuid.UUID) (*entities.AnalysisOutcome, error) {
	key := resultKeyPrefix + sessionID.String()
	if cached, ok, err := s.store.Get(ctx, key); err == nil && ok {
		var outcome entities.AnalysisOutcome
		if err := json.Unmarshal([]byte(cached), &outcome); err == nil {
			return &outcome, nil
		}
		// A corrupt cache entry falls through to the record.
		s.releaseKey(ctx, key)
	}

	record, err := s.records.FindBySessionID(ctx, sessionID)
	if err != nil {
		if stderrors.Is(err, entities.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound("analysis result")
		}
		return nil, apperrors.ErrInternal(err)
	}

	outcome := outcomeFromRecord(record)
	if encoded, err := json.Marshal(outcome); err == nil {
		_ = s.store.Set(ctx, key, string(encoded), resultTTL)
	}
	return outcome, nil
}

// runPipeline executes the four-stage analysis. Emotion and conversation
// are independent and run concurrently; scoring and feedback depend on
// their results and run after. A provider failure that is not a caller
// cancellation degrades to the demo outcome instead of surfacing an error.
func (s *service) runPipeline(ctx context.Context, input entities.AnalysisInput, durationSeconds int) (entities.AnalysisOutcome, error) {
	prosody := scoring.SummarizeProsody(input.Prosody)
	stats := conversationStats(input.Segments, durationSeconds)

	var (
		emotion      entities.EmotionAnalysis
		conversation entities.ConversationAnalysis
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		emotion, err = s.provider.AnalyzeEmotion(gctx, input.Segments, prosody)
		return err
	})
	g.Go(func() error {
		var err error
		conversation, err = s.provider.AnalyzeConversation(gctx, input.Segments, stats)
		return err
	})
	if err := g.Wait(); err != nil {
		return s.fallbackOrFail(err)
	}

	// The score is computed locally from the documented formula, never
	// taken from the provider.
	match := scoring.ComputeMatchScore(emotion, conversation, prosody)

	feedback, err := s.provider.GenerateFeedback(ctx, emotion, conversation, match)
	if err != nil {
		return s.fallbackOrFail(err)
	}

	return entities.AnalysisOutcome{
		Source:       entities.ResultSourceLive,
		Emotion:      emotion,
		Conversation: conversation,
		Match:        match,
		Feedback:     feedback,
	}, nil
}

// fallbackOrFail substitutes the demo outcome for provider failures.
// Cancellations propagate: a user who aborted must not receive demo data.
func (s *service) fallbackOrFail(err error) (entities.AnalysisOutcome, error) {
	var apiErr *llm.APIError
	if stderrors.As(err, &apiErr) && apiErr.Kind == llm.KindCancelled {
		return entities.AnalysisOutcome{}, err
	}
	if stderrors.Is(err, context.Canceled) {
		return entities.AnalysisOutcome{}, err
	}

	s.logger.Warn("analysis provider failed, substituting demo results",
		zap.Error(err))
	return scoring.DemoOutcome(), nil
}

// execute runs one claimed job end to end: pipeline, persistence, session
// and job state transitions, cache update and lock release.
func (s *service) execute(ctx context.Context, job *entities.AnalysisJob) error {
	session, err := s.sessions.FindByID(ctx, job.SessionID)
	if err != nil {
		return fmt.Errorf("failed to load session for job: %w", err)
	}

	outcome, err := s.runPipeline(ctx, job.Input, session.DurationSeconds)
	if err != nil {
		return err
	}

	if err := s.persistOutcome(ctx, session, outcome); err != nil {
		return err
	}

	session.MarkDone()
	if err := s.sessions.Update(ctx, session); err != nil {
		return fmt.Errorf("failed to mark session done: %w", err)
	}

	job.MarkAsCompleted(outcome.Source)
	if err := s.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	s.releaseLock(ctx, session.ID)

	s.logger.Info("analysis completed",
		zap.String("job_id", job.ID.String()),
		zap.String("session_id", session.ID.String()),
		zap.String("source", string(outcome.Source)),
		zap.Int("score", outcome.Match.Score))

	return nil
}

// persistOutcome writes the conversation-history record and caches the full
// outcome for result reads.
func (s *service) persistOutcome(ctx context.Context, session *entities.Session, outcome entities.AnalysisOutcome) error {
	record, err := s.buildRecord(session, outcome)
	if err != nil {
		return err
	}

	existing, err := s.records.FindBySessionID(ctx, session.ID)
	switch {
	case err == nil:
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		if err := s.records.Update(ctx, record); err != nil {
			return fmt.Errorf("failed to update conversation record: %w", err)
		}
	case stderrors.Is(err, entities.ErrRecordNotFound):
		if err := s.records.Create(ctx, record); err != nil {
			return fmt.Errorf("failed to create conversation record: %w", err)
		}
	default:
		return fmt.Errorf("failed to look up conversation record: %w", err)
	}

	encoded, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to encode outcome: %w", err)
	}
	if err := s.store.Set(ctx, resultKeyPrefix+session.ID.String(), string(encoded), resultTTL); err != nil {
		// The record is the source of truth; a cache miss only costs a
		// rebuild on the next read.
		s.logger.Warn("failed to cache analysis outcome",
			zap.String("session_id", session.ID.String()),
			zap.Error(err))
	}
	return nil
}

func (s *service) buildRecord(session *entities.Session, outcome entities.AnalysisOutcome) (*entities.ConversationRecord, error) {
	breakdown, err := json.Marshal(outcome.Match.Breakdown)
	if err != nil {
		return nil, fmt.Errorf("failed to encode breakdown: %w", err)
	}
	highlights, err := json.Marshal(outcome.Conversation.Highlights)
	if err != nil {
		return nil, fmt.Errorf("failed to encode highlights: %w", err)
	}
	tips, err := json.Marshal(outcome.Feedback.Tips)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tips: %w", err)
	}

	partnerName := "Unknown"
	if session.PartnerName != nil {
		partnerName = *session.PartnerName
	}

	return &entities.ConversationRecord{
		ID:              uuid.New(),
		UserID:          session.UserID,
		SessionID:       session.ID,
		PartnerName:     partnerName,
		PartnerAge:      session.PartnerAge,
		DurationSeconds: session.DurationSeconds,
		Status:          entities.RecordStatusCompleted,
		MatchScore:      outcome.Match.Score,
		Breakdown:       breakdown,
		Summary:         outcome.Feedback.Summary,
		Highlights:      highlights,
		Tips:            tips,
		Source:          outcome.Source,
	}, nil
}

// StartWorkerPool starts background workers that execute queued jobs
func (s *service) StartWorkerPool(ctx context.Context, workerCount int) error {
	s.workerMutex.Lock()
	defer s.workerMutex.Unlock()

	if s.isWorkerPoolRunning {
		return fmt.Errorf("worker pool already running")
	}

	s.isWorkerPoolRunning = true
	s.workerStopChan = make(chan struct{})

	s.logger.Info("starting analysis worker pool",
		zap.Int("worker_count", workerCount))

	for i := 0; i < workerCount; i++ {
		s.workerWg.Add(1)
		go s.worker(ctx, i)
	}
	return nil
}

// StopWorkerPool gracefully stops all worker goroutines
func (s *service) StopWorkerPool() error {
	s.workerMutex.Lock()
	defer s.workerMutex.Unlock()

	if !s.isWorkerPoolRunning {
		return fmt.Errorf("worker pool not running")
	}

	s.logger.Info("stopping analysis worker pool")
	close(s.workerStopChan)
	s.workerWg.Wait()
	s.isWorkerPoolRunning = false
	s.logger.Info("analysis worker pool stopped")
	return nil
}

// worker polls for queued jobs and executes them
func (s *service) worker(parentCtx context.Context, workerID int) {
	defer s.workerWg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.logger.Info("analysis worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-s.workerStopChan:
			s.logger.Info("analysis worker stopping", zap.Int("worker_id", workerID))
			return
		case <-parentCtx.Done():
			return

		case <-ticker.C:
			jobs, err := s.jobs.ListPending(parentCtx, 10)
			if err != nil {
				s.logger.Error("failed to poll analysis jobs",
					zap.Int("worker_id", workerID),
					zap.Error(err))
				continue
			}
			if len(jobs) == 0 {
				continue
			}

			job := jobs[0]
			claimed, err := s.jobs.Claim(parentCtx, job.ID)
			if err != nil {
				s.logger.Error("failed to claim analysis job",
					zap.String("job_id", job.ID.String()),
					zap.Error(err))
				continue
			}
			if !claimed {
				continue
			}

			s.logger.Info("worker claimed analysis job",
				zap.Int("worker_id", workerID),
				zap.String("job_id", job.ID.String()),
				zap.String("session_id", job.SessionID.String()))

			jobCtx, cancel := jobcontext.JobBegin(parentCtx, job.ID, "analysis", workerID)
			err = jobcontext.JobEnd(jobCtx, func(ctx context.Context) error {
				return s.execute(ctx, job)
			})
			cancel()

			if err != nil {
				s.failJob(parentCtx, job, err)
			}
		}
	}
}

// failJob records a terminal job failure and moves the session to error
func (s *service) failJob(ctx context.Context, job *entities.AnalysisJob, cause error) {
	s.logger.Error("analysis job failed",
		zap.String("job_id", job.ID.String()),
		zap.String("session_id", job.SessionID.String()),
		zap.Error(cause))

	job.MarkAsFailed(cause.Error())
	if err := s.jobs.Update(ctx, job); err != nil {
		s.logger.Error("failed to persist job failure", zap.Error(err))
	}

	if session, err := s.sessions.FindByID(ctx, job.SessionID); err == nil {
		session.MarkError(cause.Error())
		if err := s.sessions.Update(ctx, session); err != nil {
			s.logger.Error("failed to persist session error", zap.Error(err))
		}
	}

	s.releaseLock(ctx, job.SessionID)
}

func (s *service) releaseLock(ctx context.Context, sessionID uuid.UUID) {
	s.releaseKey(ctx, lockKeyPrefix+sessionID.String())
}

func (s *service) releaseKey(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete cache key",
			zap.String("key", key),
			zap.Error(err))
	}
}

// conversationStats derives transcript shape hints for the conversation
// analysis prompt.
func conversationStats(segments []entities.TranscriptSegment, durationSeconds int) ConversationStats {
	total := 0
	for _, seg := range segments {
		total += len(seg.Text)
	}
	avg := 0.0
	if len(segments) > 0 {
		avg = float64(total) / float64(len(segments))
	}
	return ConversationStats{
		SegmentCount:     len(segments),
		AvgSegmentLength: avg,
		DurationSeconds:  durationSeconds,
	}
}

// outcomeFromRecord rebuilds an outcome from the persisted record. The raw
// emotion analysis is not stored, so only the cached outcome carries it.
func outcomeFromRecord(record *entities.ConversationRecord) *entities.AnalysisOutcome {
	outcome := &entities.AnalysisOutcome{
		Source: record.Source,
		Match: entities.MatchScore{
			Score: record.MatchScore,
		},
		Feedback: entities.Feedback{
			Summary: record.Summary,
		},
	}
	_ = json.Unmarshal(record.Breakdown, &outcome.Match.Breakdown)
	_ = json.Unmarshal(record.Highlights, &outcome.Conversation.Highlights)
	_ = json.Unmarshal(record.Tips, &outcome.Feedback.Tips)
	return outcome
}
