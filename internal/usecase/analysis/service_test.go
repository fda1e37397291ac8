package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/chemicheck/chemicheck/errors"
	"github.com/chemicheck/chemicheck/internal/domain/entities"
	"github.com/chemicheck/chemicheck/internal/infrastructure/cache"
	"github.com/chemicheck/chemicheck/internal/usecase/scoring"
	"github.com/chemicheck/chemicheck/pkg/llm"
)

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*entities.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uuid.UUID]*entities.Session)}
}

func (r *fakeSessionRepo) Create(_ context.Context, s *entities.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return nil
}

func (r *fakeSessionRepo) FindByID(_ context.Context, id uuid.UUID) (*entities.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, entities.ErrSessionNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSessionRepo) FindByUserID(_ context.Context, userID uuid.UUID, _, _ int) ([]*entities.Session, error) {
	return nil, nil
}

func (r *fakeSessionRepo) Update(_ context.Context, s *entities.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return nil
}

func (r *fakeSessionRepo) UpdatePhase(_ context.Context, id uuid.UUID, phase entities.SessionPhase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Phase = phase
	}
	return nil
}

func (r *fakeSessionRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*entities.AnalysisJob
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[uuid.UUID]*entities.AnalysisJob)}
}

func (r *fakeJobRepo) Create(_ context.Context, j *entities.AnalysisJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.ID] = j
	return nil
}

func (r *fakeJobRepo) FindByID(_ context.Context, id uuid.UUID) (*entities.AnalysisJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, entities.ErrJobNotFound
	}
	return j, nil
}

func (r *fakeJobRepo) FindLatestBySessionID(_ context.Context, sessionID uuid.UUID) (*entities.AnalysisJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.SessionID == sessionID {
			return j, nil
		}
	}
	return nil, entities.ErrJobNotFound
}

func (r *fakeJobRepo) Update(_ context.Context, j *entities.AnalysisJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.ID] = j
	return nil
}

func (r *fakeJobRepo) ListPending(_ context.Context, _ int) ([]*entities.AnalysisJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.AnalysisJob
	for _, j := range r.jobs {
		if j.Status == entities.AnalysisJobStatusPending || j.Status == entities.AnalysisJobStatusRetrying {
			out = append(out, j)
		}
	}
	return out, nil
}

func (r *fakeJobRepo) Claim(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return false, nil
	}
	if j.Status != entities.AnalysisJobStatusPending && j.Status != entities.AnalysisJobStatusRetrying {
		return false, nil
	}
	j.Status = entities.AnalysisJobStatusProcessing
	return true, nil
}

type fakeRecordRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*entities.ConversationRecord
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{records: make(map[uuid.UUID]*entities.ConversationRecord)}
}

func (r *fakeRecordRepo) Create(_ context.Context, rec *entities.ConversationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = rec
	return nil
}

func (r *fakeRecordRepo) FindByID(_ context.Context, id uuid.UUID) (*entities.ConversationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, entities.ErrRecordNotFound
	}
	return rec, nil
}

func (r *fakeRecordRepo) FindBySessionID(_ context.Context, sessionID uuid.UUID) (*entities.ConversationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.SessionID == sessionID {
			return rec, nil
		}
	}
	return nil, entities.ErrRecordNotFound
}

func (r *fakeRecordRepo) Update(_ context.Context, rec *entities.ConversationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = rec
	return nil
}

func (r *fakeRecordRepo) ListByUserID(_ context.Context, userID uuid.UUID, _, _ int) ([]*entities.ConversationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.ConversationRecord
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeRecordRepo) CountByUserID(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, rec := range r.records {
		if rec.UserID == userID {
			total++
		}
	}
	return total, nil
}

func (r *fakeRecordRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	return nil
}

func (r *fakeRecordRepo) StatsByUserID(_ context.Context, _ uuid.UUID) (*entities.UserStats, error) {
	return &entities.UserStats{}, nil
}

// fakeAnalyzer returns canned results, optionally failing chosen stages.
type fakeAnalyzer struct {
	emotion      entities.EmotionAnalysis
	conversation entities.ConversationAnalysis
	feedback     entities.Feedback

	emotionErr  error
	feedbackErr error
}

func (f *fakeAnalyzer) AnalyzeEmotion(_ context.Context, _ []entities.TranscriptSegment, _ entities.ProsodySummary) (entities.EmotionAnalysis, error) {
	if f.emotionErr != nil {
		return entities.EmotionAnalysis{}, f.emotionErr
	}
	return f.emotion, nil
}

func (f *fakeAnalyzer) AnalyzeConversation(_ context.Context, _ []entities.TranscriptSegment, _ ConversationStats) (entities.ConversationAnalysis, error) {
	return f.conversation, nil
}

func (f *fakeAnalyzer) GenerateFeedback(_ context.Context, _ entities.EmotionAnalysis, _ entities.ConversationAnalysis, _ entities.MatchScore) (entities.Feedback, error) {
	if f.feedbackErr != nil {
		return entities.Feedback{}, f.feedbackErr
	}
	return f.feedback, nil
}

func healthyAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{
		emotion: entities.EmotionAnalysis{Valence: 0.4, Arousal: 0.6},
		conversation: entities.ConversationAnalysis{
			Rapport:           0.75,
			TurnTakingBalance: 0.45,
			Empathy:           0.65,
			RedFlags:          []string{},
			Highlights:        []string{"shared interests"},
		},
		feedback: entities.Feedback{
			Summary: "A warm, curious conversation.",
			Tips:    []string{"a", "b", "c"},
		},
	}
}

func testInput() entities.AnalysisInput {
	return entities.AnalysisInput{
		Segments: []entities.TranscriptSegment{
			{T0: 0, T1: 2, Text: "hi there", Speaker: entities.SpeakerMe},
			{T0: 2, T1: 5, Text: "hello!", Speaker: entities.SpeakerPartner},
		},
		Prosody: []entities.ProsodySample{
			{T: 0, RMS: 0.3},
			{T: 1, RMS: 0.3},
		},
	}
}

func newTestService(analyzer Analyzer) (*service, *fakeSessionRepo, *fakeJobRepo, *fakeRecordRepo) {
	sessions := newFakeSessionRepo()
	jobs := newFakeJobRepo()
	records := newFakeRecordRepo()
	svc := NewService(sessions, jobs, records, analyzer, cache.NewMemoryStore(), zap.NewNop()).(*service)
	return svc, sessions, jobs, records
}

func seedSession(t *testing.T, repo *fakeSessionRepo) *entities.Session {
	t.Helper()
	name := "Alex"
	session := entities.NewSession(uuid.New(), &name, nil)
	session.DurationSeconds = 300
	if err := repo.Create(context.Background(), session); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return session
}

func TestExecute_LiveOutcome(t *testing.T) {
	svc, sessions, jobs, records := newTestService(healthyAnalyzer())
	session := seedSession(t, sessions)

	job := entities.NewAnalysisJob(session.ID, testInput())
	if err := jobs.Create(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	if err := svc.execute(context.Background(), job); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	record, err := records.FindBySessionID(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
	if record.Source != entities.ResultSourceLive {
		t.Fatalf("expected live source, got %s", record.Source)
	}

	// Score must come from the local formula, not the provider.
	prosody := scoring.SummarizeProsody(testInput().Prosody)
	analyzer := healthyAnalyzer()
	want := scoring.ComputeMatchScore(analyzer.emotion, analyzer.conversation, prosody)
	if record.MatchScore != want.Score {
		t.Fatalf("expected locally computed score %d, got %d", want.Score, record.MatchScore)
	}

	updated, _ := sessions.FindByID(context.Background(), session.ID)
	if updated.Phase != entities.SessionPhaseDone {
		t.Fatalf("expected done phase, got %s", updated.Phase)
	}
	if job.Status != entities.AnalysisJobStatusCompleted {
		t.Fatalf("expected completed job, got %s", job.Status)
	}
	if job.ResultSource == nil || *job.ResultSource != entities.ResultSourceLive {
		t.Fatal("job must record live provenance")
	}
}

func TestExecute_ProviderFailureFallsBackToDemo(t *testing.T) {
	analyzer := healthyAnalyzer()
	analyzer.emotionErr = &llm.APIError{Kind: llm.KindNetwork, Message: "connection refused"}

	svc, sessions, jobs, records := newTestService(analyzer)
	session := seedSession(t, sessions)

	job := entities.NewAnalysisJob(session.ID, testInput())
	jobs.Create(context.Background(), job)

	if err := svc.execute(context.Background(), job); err != nil {
		t.Fatalf("fallback path must not surface an error: %v", err)
	}

	record, err := records.FindBySessionID(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
	if record.Source != entities.ResultSourceFallback {
		t.Fatalf("expected fallback source, got %s", record.Source)
	}
	if record.MatchScore != scoring.DemoScore().Score {
		t.Fatalf("expected demo score %d, got %d", scoring.DemoScore().Score, record.MatchScore)
	}

	updated, _ := sessions.FindByID(context.Background(), session.ID)
	if updated.Phase != entities.SessionPhaseDone {
		t.Fatalf("fallback still completes the session, got %s", updated.Phase)
	}
}

func TestExecute_FeedbackFailureFallsBackToDemo(t *testing.T) {
	analyzer := healthyAnalyzer()
	analyzer.feedbackErr = &llm.APIError{Kind: llm.KindTimeout, Message: "request timed out"}

	svc, sessions, jobs, records := newTestService(analyzer)
	session := seedSession(t, sessions)

	job := entities.NewAnalysisJob(session.ID, testInput())
	jobs.Create(context.Background(), job)

	if err := svc.execute(context.Background(), job); err != nil {
		t.Fatalf("fallback path must not surface an error: %v", err)
	}
	record, _ := records.FindBySessionID(context.Background(), session.ID)
	if record == nil || record.Source != entities.ResultSourceFallback {
		t.Fatal("expected persisted fallback record")
	}
}

func TestExecute_CancellationSkipsFallback(t *testing.T) {
	analyzer := healthyAnalyzer()
	analyzer.emotionErr = &llm.APIError{Kind: llm.KindCancelled, Message: "request cancelled"}

	svc, sessions, jobs, records := newTestService(analyzer)
	session := seedSession(t, sessions)

	job := entities.NewAnalysisJob(session.ID, testInput())
	jobs.Create(context.Background(), job)

	err := svc.execute(context.Background(), job)
	if err == nil {
		t.Fatal("cancellation must propagate, not fall back")
	}
	var apiErr *llm.APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != llm.KindCancelled {
		t.Fatalf("expected cancelled error, got %v", err)
	}

	if _, err := records.FindBySessionID(context.Background(), session.ID); !errors.Is(err, entities.ErrRecordNotFound) {
		t.Fatal("cancelled analysis must not persist demo data")
	}
}

func TestEnqueue_RequiresSegments(t *testing.T) {
	svc, sessions, _, _ := newTestService(healthyAnalyzer())
	session := seedSession(t, sessions)

	_, err := svc.Enqueue(context.Background(), session.ID, entities.AnalysisInput{})
	var appErr apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrorCode_MISSING_SEGMENTS {
		t.Fatalf("expected missing-segments error, got %v", err)
	}
}

func TestEnqueue_DuplicateGuard(t *testing.T) {
	svc, sessions, _, _ := newTestService(healthyAnalyzer())
	session := seedSession(t, sessions)

	if _, err := svc.Enqueue(context.Background(), session.ID, testInput()); err != nil {
		t.Fatalf("first enqueue failed: %v", err)
	}

	_, err := svc.Enqueue(context.Background(), session.ID, testInput())
	var appErr apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrorCode_SESSION_ALREADY_ANALYZING {
		t.Fatalf("expected duplicate-analysis rejection, got %v", err)
	}
}

func TestEnqueue_UnknownSession(t *testing.T) {
	svc, _, _, _ := newTestService(healthyAnalyzer())

	_, err := svc.Enqueue(context.Background(), uuid.New(), testInput())
	var appErr apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrorCode_SESSION_NOT_FOUND {
		t.Fatalf("expected session-not-found, got %v", err)
	}
}

func TestGetOutcome_CacheThenRecordRebuild(t *testing.T) {
	svc, sessions, jobs, _ := newTestService(healthyAnalyzer())
	session := seedSession(t, sessions)

	job := entities.NewAnalysisJob(session.ID, testInput())
	jobs.Create(context.Background(), job)
	if err := svc.execute(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	cached, err := svc.GetOutcome(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("cached read failed: %v", err)
	}
	if cached.Source != entities.ResultSourceLive {
		t.Fatalf("expected live outcome, got %s", cached.Source)
	}
	if cached.Emotion.Valence != 0.4 {
		t.Fatal("cached outcome must carry the full emotion analysis")
	}

	// Drop the cache entry; the outcome must rebuild from the record.
	svc.releaseKey(context.Background(), resultKeyPrefix+session.ID.String())
	rebuilt, err := svc.GetOutcome(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("rebuild read failed: %v", err)
	}
	if rebuilt.Match.Score != cached.Match.Score {
		t.Fatalf("rebuild score mismatch: %d vs %d", rebuilt.Match.Score, cached.Match.Score)
	}
	if len(rebuilt.Feedback.Tips) != len(cached.Feedback.Tips) {
		t.Fatal("rebuild must restore tips")
	}
}

func TestGetOutcome_NoResult(t *testing.T) {
	svc, sessions, _, _ := newTestService(healthyAnalyzer())
	session := seedSession(t, sessions)

	_, err := svc.GetOutcome(context.Background(), session.ID)
	var appErr apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrorCode_NOT_FOUND {
		t.Fatalf("expected not-found, got %v", err)
	}
}
