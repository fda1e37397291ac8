package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/chemicheck/chemicheck/errors"
	"github.com/chemicheck/chemicheck/internal/domain/entities"
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
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.Session
	for _, s := range r.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
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

type fakeStore struct {
	failures int
	uploads  int
}

func (s *fakeStore) UploadRecording(_ context.Context, sessionID string, _ io.Reader, _ int64, _ string) (string, error) {
	s.uploads++
	if s.uploads <= s.failures {
		return "", fmt.Errorf("connection reset")
	}
	return "recordings/" + sessionID + "/1.wav", nil
}

func (s *fakeStore) RecordingURL(_ context.Context, objectName string, _ time.Duration) (string, error) {
	return "https://storage.test/" + objectName, nil
}

type fakeAnalyzerService struct {
	lastInput entities.AnalysisInput
}

func (f *fakeAnalyzerService) Enqueue(_ context.Context, sessionID uuid.UUID, input entities.AnalysisInput) (*entities.AnalysisJob, error) {
	f.lastInput = input
	return entities.NewAnalysisJob(sessionID, input), nil
}

func (f *fakeAnalyzerService) GetOutcome(context.Context, uuid.UUID) (*entities.AnalysisOutcome, error) {
	return nil, apperrors.ErrNotFound("analysis result")
}

func (f *fakeAnalyzerService) StartWorkerPool(context.Context, int) error { return nil }
func (f *fakeAnalyzerService) StopWorkerPool() error                     { return nil }

type fakeTranscriber struct {
	segments []entities.TranscriptSegment
	err      error
	calls    int
}

func (f *fakeTranscriber) Transcribe(context.Context, string) ([]entities.TranscriptSegment, error) {
	f.calls++
	return f.segments, f.err
}

func TestCreateAndGet(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewService(repo, &fakeStore{}, &fakeAnalyzerService{}, nil, zap.NewNop())
	userID := uuid.New()

	name := "Sam"
	created, err := svc.Create(context.Background(), userID, &name, nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.Phase != entities.SessionPhaseIdle {
		t.Fatalf("expected idle phase, got %s", created.Phase)
	}

	got, err := svc.Get(context.Background(), userID, created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.PartnerName == nil || *got.PartnerName != "Sam" {
		t.Fatal("partner name lost")
	}

	// Another user must not see the session.
	_, err = svc.Get(context.Background(), uuid.New(), created.ID)
	var appErr apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrorCode_FORBIDDEN {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestUploadRecording(t *testing.T) {
	repo := newFakeSessionRepo()
	store := &fakeStore{}
	svc := NewService(repo, store, &fakeAnalyzerService{}, nil, zap.NewNop())
	userID := uuid.New()

	created, _ := svc.Create(context.Background(), userID, nil, nil)

	body := bytes.NewReader([]byte("audio-bytes"))
	updated, err := svc.UploadRecording(context.Background(), userID, created.ID, body, int64(body.Len()), "audio/wav", 180)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if updated.RecordingURL == nil || *updated.RecordingURL == "" {
		t.Fatal("recording URL not attached")
	}
	if updated.DurationSeconds != 180 {
		t.Fatalf("expected duration 180, got %d", updated.DurationSeconds)
	}
	if updated.Phase != entities.SessionPhaseRecording {
		t.Fatalf("expected recording phase, got %s", updated.Phase)
	}
}

func TestUploadRecording_RetriesSeekableBody(t *testing.T) {
	repo := newFakeSessionRepo()
	store := &fakeStore{failures: 1}
	svc := NewService(repo, store, &fakeAnalyzerService{}, nil, zap.NewNop())
	userID := uuid.New()

	created, _ := svc.Create(context.Background(), userID, nil, nil)

	body := bytes.NewReader([]byte("audio-bytes"))
	if _, err := svc.UploadRecording(context.Background(), userID, created.ID, body, int64(body.Len()), "audio/wav", 60); err != nil {
		t.Fatalf("upload should succeed on retry: %v", err)
	}
	if store.uploads != 2 {
		t.Fatalf("expected 2 upload attempts, got %d", store.uploads)
	}
}

func TestUploadRecording_RejectsWrongPhase(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewService(repo, &fakeStore{}, &fakeAnalyzerService{}, nil, zap.NewNop())
	userID := uuid.New()

	created, _ := svc.Create(context.Background(), userID, nil, nil)
	created.MarkProcessing()
	repo.Update(context.Background(), created)

	body := bytes.NewReader([]byte("audio"))
	_, err := svc.UploadRecording(context.Background(), userID, created.ID, body, 5, "audio/wav", 10)
	var appErr apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrorCode_SESSION_INVALID_STATE {
		t.Fatalf("expected invalid-state rejection, got %v", err)
	}
}

func TestStartAnalysis_WithSegments(t *testing.T) {
	repo := newFakeSessionRepo()
	analyzer := &fakeAnalyzerService{}
	svc := NewService(repo, &fakeStore{}, analyzer, nil, zap.NewNop())
	userID := uuid.New()

	created, _ := svc.Create(context.Background(), userID, nil, nil)

	input := entities.AnalysisInput{
		Segments: []entities.TranscriptSegment{{Text: "hi", Speaker: entities.SpeakerMe}},
	}
	job, err := svc.StartAnalysis(context.Background(), userID, created.ID, input)
	if err != nil {
		t.Fatalf("start analysis failed: %v", err)
	}
	if job.SessionID != created.ID {
		t.Fatal("job bound to wrong session")
	}
}

func TestStartAnalysis_TranscribesWhenNoSegments(t *testing.T) {
	repo := newFakeSessionRepo()
	analyzer := &fakeAnalyzerService{}
	transcriber := &fakeTranscriber{
		segments: []entities.TranscriptSegment{
			{Text: "hello", Speaker: entities.SpeakerMe},
			{Text: "hi!", Speaker: entities.SpeakerPartner},
		},
	}
	svc := NewService(repo, &fakeStore{}, analyzer, transcriber, zap.NewNop())
	userID := uuid.New()

	created, _ := svc.Create(context.Background(), userID, nil, nil)
	body := bytes.NewReader([]byte("audio"))
	if _, err := svc.UploadRecording(context.Background(), userID, created.ID, body, 5, "audio/wav", 60); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.StartAnalysis(context.Background(), userID, created.ID, entities.AnalysisInput{}); err != nil {
		t.Fatalf("start analysis failed: %v", err)
	}
	if transcriber.calls != 1 {
		t.Fatalf("expected one transcription call, got %d", transcriber.calls)
	}
	if len(analyzer.lastInput.Segments) != 2 {
		t.Fatalf("expected transcribed segments to reach the queue, got %d", len(analyzer.lastInput.Segments))
	}
}

func TestStartAnalysis_NoSegmentsNoTranscriber(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewService(repo, &fakeStore{}, &fakeAnalyzerService{}, nil, zap.NewNop())
	userID := uuid.New()

	created, _ := svc.Create(context.Background(), userID, nil, nil)

	_, err := svc.StartAnalysis(context.Background(), userID, created.ID, entities.AnalysisInput{})
	var appErr apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrorCode_MISSING_SEGMENTS {
		t.Fatalf("expected missing-segments error, got %v", err)
	}
}

func TestStartAnalysis_NoRecordingToTranscribe(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewService(repo, &fakeStore{}, &fakeAnalyzerService{}, &fakeTranscriber{}, zap.NewNop())
	userID := uuid.New()

	created, _ := svc.Create(context.Background(), userID, nil, nil)

	_, err := svc.StartAnalysis(context.Background(), userID, created.ID, entities.AnalysisInput{})
	var appErr apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrorCode_RECORDING_NOT_FOUND {
		t.Fatalf("expected recording-not-found, got %v", err)
	}
}
