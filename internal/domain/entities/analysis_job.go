package entities

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AnalysisJobStatus represents the status of an analysis job
type AnalysisJobStatus string

const (
	AnalysisJobStatusPending    AnalysisJobStatus = "pending"    // Waiting for a worker
	AnalysisJobStatusProcessing AnalysisJobStatus = "processing" // Pipeline running
	AnalysisJobStatusCompleted  AnalysisJobStatus = "completed"  // Outcome persisted
	AnalysisJobStatusFailed     AnalysisJobStatus = "failed"     // Pipeline failed
	AnalysisJobStatusRetrying   AnalysisJobStatus = "retrying"   // Retrying after failure
	AnalysisJobStatusCancelled  AnalysisJobStatus = "cancelled"  // Job was cancelled
)

// AnalysisInput is the client-captured material the pipeline consumes
type AnalysisInput struct {
	Segments []TranscriptSegment `json:"segments"`
	Prosody  []ProsodySample     `json:"prosody"`
}

// Scan implements sql.Scanner interface for GORM
func (i *AnalysisInput) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, &i)
}

// Value implements driver.Valuer interface for GORM
func (i AnalysisInput) Value() (driver.Value, error) {
	return json.Marshal(i)
}

// AnalysisJob represents one queued run of the analysis pipeline for a session
type AnalysisJob struct {
	ID        uuid.UUID         `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SessionID uuid.UUID         `json:"session_id" gorm:"type:uuid;not null;index"`
	Status    AnalysisJobStatus `json:"status" gorm:"type:varchar(50);not null;index;default:'pending'"`

	Input AnalysisInput `json:"input" gorm:"type:jsonb;serializer:json"`

	// Processing details
	StartedAt   *time.Time `json:"started_at,omitempty" gorm:"type:timestamp"`
	CompletedAt *time.Time `json:"completed_at,omitempty" gorm:"type:timestamp"`
	RetryCount  int        `json:"retry_count" gorm:"type:integer;default:0"`
	MaxRetries  int        `json:"max_retries" gorm:"type:integer;default:3"`
	LastError   *string    `json:"last_error,omitempty" gorm:"type:text"`

	// Result provenance, set when the job completes
	ResultSource *ResultSource `json:"result_source,omitempty" gorm:"type:varchar(20)"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// NewAnalysisJob creates a pending analysis job
func NewAnalysisJob(sessionID uuid.UUID, input AnalysisInput) *AnalysisJob {
	now := time.Now()
	return &AnalysisJob{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Status:     AnalysisJobStatusPending,
		Input:      input,
		MaxRetries: 3,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsRetryable checks if job can be retried
func (j *AnalysisJob) IsRetryable() bool {
	return j.RetryCount < j.MaxRetries && j.Status == AnalysisJobStatusFailed
}

// MarkAsProcessing marks job as being processed
func (j *AnalysisJob) MarkAsProcessing() {
	j.Status = AnalysisJobStatusProcessing
	now := time.Now()
	if j.StartedAt == nil {
		j.StartedAt = &now
	}
	j.UpdatedAt = now
}

// MarkAsCompleted marks job as completed with its result provenance
func (j *AnalysisJob) MarkAsCompleted(source ResultSource) {
	j.Status = AnalysisJobStatusCompleted
	j.ResultSource = &source
	now := time.Now()
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkAsFailed marks job as failed with error message
func (j *AnalysisJob) MarkAsFailed(errMsg string) {
	j.Status = AnalysisJobStatusFailed
	j.LastError = &errMsg
	j.UpdatedAt = time.Now()
}

// IncrementRetry increments retry count and marks for retry
func (j *AnalysisJob) IncrementRetry(errMsg string) {
	j.RetryCount++
	j.Status = AnalysisJobStatusRetrying
	j.LastError = &errMsg
	j.UpdatedAt = time.Now()
}

// MarkAsCancelled marks job as cancelled
func (j *AnalysisJob) MarkAsCancelled() {
	j.Status = AnalysisJobStatusCancelled
	now := time.Now()
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// TableName specifies the table name for GORM
func (AnalysisJob) TableName() string {
	return "analysis_jobs"
}
