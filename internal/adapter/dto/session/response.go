package session

import (
	"time"

	"github.com/chemicheck/chemicheck/internal/domain/entities"
)

// SessionResponse is the API shape of a session.
type SessionResponse struct {
	ID              string     `json:"id"`
	Phase           string     `json:"phase"`
	PartnerName     *string    `json:"partner_name,omitempty"`
	PartnerAge      *int       `json:"partner_age,omitempty"`
	RecordingURL    *string    `json:"recording_url,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	LastError       *string    `json:"last_error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// FromEntity maps a session entity to its response shape.
func FromEntity(s *entities.Session) *SessionResponse {
	return &SessionResponse{
		ID:              s.ID.String(),
		Phase:           string(s.Phase),
		PartnerName:     s.PartnerName,
		PartnerAge:      s.PartnerAge,
		RecordingURL:    s.RecordingURL,
		DurationSeconds: s.DurationSeconds,
		StartedAt:       s.StartedAt,
		CompletedAt:     s.CompletedAt,
		LastError:       s.LastError,
		CreatedAt:       s.CreatedAt,
	}
}

// AnalyzeAcceptedResponse acknowledges a queued analysis job.
type AnalyzeAcceptedResponse struct {
	JobID     string `json:"job_id"`
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}
