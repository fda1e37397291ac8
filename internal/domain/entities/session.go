package entities

import (
	"time"

	"github.com/google/uuid"
)

// SessionPhase represents where a conversation session is in its lifecycle
type SessionPhase string

const (
	SessionPhaseIdle       SessionPhase = "idle"       // Created, nothing captured yet
	SessionPhaseRecording  SessionPhase = "recording"  // Recording upload in progress
	SessionPhaseProcessing SessionPhase = "processing" // Analysis pipeline running
	SessionPhaseDone       SessionPhase = "done"       // Results available
	SessionPhaseError      SessionPhase = "error"      // Analysis failed permanently
)

// Session represents one recorded conversation being analyzed
type Session struct {
	ID     uuid.UUID    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID uuid.UUID    `json:"user_id" gorm:"type:uuid;not null;index"`
	Phase  SessionPhase `json:"phase" gorm:"type:varchar(20);not null;default:'idle';index"`

	// Partner details supplied at creation (both optional)
	PartnerName *string `json:"partner_name,omitempty" gorm:"type:varchar(255)"`
	PartnerAge  *int    `json:"partner_age,omitempty" gorm:"type:integer"`

	// Recording
	RecordingURL    *string `json:"recording_url,omitempty" gorm:"type:text"`
	DurationSeconds int     `json:"duration_seconds" gorm:"type:integer;default:0"`

	StartedAt   *time.Time `json:"started_at,omitempty" gorm:"type:timestamp"`
	CompletedAt *time.Time `json:"completed_at,omitempty" gorm:"type:timestamp"`
	LastError   *string    `json:"last_error,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// NewSession creates a session in the idle phase
func NewSession(userID uuid.UUID, partnerName *string, partnerAge *int) *Session {
	now := time.Now()
	return &Session{
		ID:          uuid.New(),
		UserID:      userID,
		Phase:       SessionPhaseIdle,
		PartnerName: partnerName,
		PartnerAge:  partnerAge,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CanUploadRecording checks if the session accepts a recording upload
func (s *Session) CanUploadRecording() bool {
	return s.Phase == SessionPhaseIdle || s.Phase == SessionPhaseRecording
}

// CanAnalyze checks if the session can enter the analysis pipeline
func (s *Session) CanAnalyze() bool {
	switch s.Phase {
	case SessionPhaseIdle, SessionPhaseRecording, SessionPhaseError:
		return true
	}
	return false
}

// MarkRecording moves the session into the recording phase
func (s *Session) MarkRecording() {
	now := time.Now()
	s.Phase = SessionPhaseRecording
	if s.StartedAt == nil {
		s.StartedAt = &now
	}
	s.UpdatedAt = now
}

// AttachRecording stores the uploaded recording location and duration
func (s *Session) AttachRecording(url string, durationSeconds int) {
	s.RecordingURL = &url
	s.DurationSeconds = durationSeconds
	s.UpdatedAt = time.Now()
}

// MarkProcessing moves the session into the analysis phase
func (s *Session) MarkProcessing() {
	s.Phase = SessionPhaseProcessing
	s.LastError = nil
	s.UpdatedAt = time.Now()
}

// MarkDone completes the session
func (s *Session) MarkDone() {
	now := time.Now()
	s.Phase = SessionPhaseDone
	s.CompletedAt = &now
	s.UpdatedAt = now
}

// MarkError records a terminal failure
func (s *Session) MarkError(errMsg string) {
	s.Phase = SessionPhaseError
	s.LastError = &errMsg
	s.UpdatedAt = time.Now()
}

// TableName specifies the table name for GORM
func (Session) TableName() string {
	return "sessions"
}
