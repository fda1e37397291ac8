package history

import (
	"encoding/json"
	"time"

	"github.com/chemicheck/chemicheck/internal/domain/entities"
)

// RecordResponse is the API shape of a conversation record.
type RecordResponse struct {
	ID              string          `json:"id"`
	SessionID       string          `json:"session_id"`
	PartnerName     string          `json:"partner_name"`
	PartnerAge      *int            `json:"partner_age,omitempty"`
	DurationSeconds int             `json:"duration_seconds"`
	Status          string          `json:"status"`
	MatchScore      int             `json:"match_score"`
	Breakdown       json.RawMessage `json:"breakdown,omitempty"`
	Summary         string          `json:"summary,omitempty"`
	Highlights      json.RawMessage `json:"highlights,omitempty"`
	Tips            json.RawMessage `json:"tips,omitempty"`
	Source          string          `json:"source"`
	CreatedAt       time.Time       `json:"created_at"`
}

// FromEntity maps a record entity to its response shape.
func FromEntity(r *entities.ConversationRecord) *RecordResponse {
	return &RecordResponse{
		ID:              r.ID.String(),
		SessionID:       r.SessionID.String(),
		PartnerName:     r.PartnerName,
		PartnerAge:      r.PartnerAge,
		DurationSeconds: r.DurationSeconds,
		Status:          string(r.Status),
		MatchScore:      r.MatchScore,
		Breakdown:       json.RawMessage(r.Breakdown),
		Summary:         r.Summary,
		Highlights:      json.RawMessage(r.Highlights),
		Tips:            json.RawMessage(r.Tips),
		Source:          string(r.Source),
		CreatedAt:       r.CreatedAt,
	}
}

// FromEntities maps a record list.
func FromEntities(records []*entities.ConversationRecord) []*RecordResponse {
	out := make([]*RecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, FromEntity(r))
	}
	return out
}

// StatsResponse is the aggregate view of a user's conversations.
type StatsResponse struct {
	TotalConversations int     `json:"total_conversations"`
	AverageMatchScore  float64 `json:"average_match_score"`
	BestMatchScore     int     `json:"best_match_score"`
	TotalDuration      int     `json:"total_duration_seconds"`
}
