package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RecordStatus represents the state of a conversation-history record
type RecordStatus string

const (
	RecordStatusCompleted RecordStatus = "completed"
	RecordStatusOngoing   RecordStatus = "ongoing"
	RecordStatusCancelled RecordStatus = "cancelled"
)

// ConversationRecord is a long-lived history entry created when a session's
// analysis completes. Score fields are copied from the session outcome and
// never recomputed.
type ConversationRecord struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	SessionID uuid.UUID `json:"session_id" gorm:"type:uuid;not null;uniqueIndex"`

	PartnerName     string       `json:"partner_name" gorm:"type:varchar(255);not null"`
	PartnerAge      *int         `json:"partner_age,omitempty" gorm:"type:integer"`
	DurationSeconds int          `json:"duration_seconds" gorm:"type:integer;not null;default:0"`
	Status          RecordStatus `json:"status" gorm:"type:varchar(20);not null;default:'completed'"`

	// Analysis outcome
	MatchScore int            `json:"match_score" gorm:"type:integer;not null"`
	Breakdown  datatypes.JSON `json:"breakdown" gorm:"type:jsonb;default:'{}'"`
	Summary    string         `json:"summary" gorm:"type:text"`
	Highlights datatypes.JSON `json:"highlights" gorm:"type:jsonb;default:'[]'"`
	Tips       datatypes.JSON `json:"tips" gorm:"type:jsonb;default:'[]'"`
	Source     ResultSource   `json:"source" gorm:"type:varchar(20);not null;default:'live'"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (ConversationRecord) TableName() string {
	return "conversation_records"
}
