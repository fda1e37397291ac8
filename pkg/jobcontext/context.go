// Package jobcontext carries per-job metadata through a worker execution
// and retries transient failures with exponential backoff.
package jobcontext

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const (
	keyJobID        contextKey = "job_id"
	keyJobType      contextKey = "job_type"
	keyWorkerID     contextKey = "worker_id"
	keyRetryAttempt contextKey = "retry_attempt"
	keyJobStartTime contextKey = "job_start_time"
	keyMaxRetries   contextKey = "max_retries"
)

const (
	jobTimeout        = 5 * time.Minute
	defaultMaxRetries = 3
	retryBaseDelay    = 5 * time.Second
)

// Metadata holds the execution metadata of one claimed job.
type Metadata struct {
	JobID        uuid.UUID
	JobType      string
	WorkerID     int
	RetryAttempt int
	MaxRetries   int
	StartTime    time.Time
}

// JobBegin derives a bounded context carrying the job's metadata. Every
// job gets a hard timeout so a hung provider call cannot pin a worker.
func JobBegin(parentCtx context.Context, jobID uuid.UUID, jobType string, workerID int) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parentCtx, jobTimeout)

	ctx = context.WithValue(ctx, keyJobID, jobID)
	ctx = context.WithValue(ctx, keyJobType, jobType)
	ctx = context.WithValue(ctx, keyWorkerID, workerID)
	ctx = context.WithValue(ctx, keyRetryAttempt, 0)
	ctx = context.WithValue(ctx, keyMaxRetries, defaultMaxRetries)
	ctx = context.WithValue(ctx, keyJobStartTime, time.Now())

	return ctx, cancel
}

// JobEnd runs the job function, retrying transient failures until the
// retry budget is spent. Panics are converted to errors so one bad job
// cannot kill a worker.
func JobEnd(ctx context.Context, jobFunc func(context.Context) error) error {
	var (
		err        error
		maxRetries = MaxRetries(ctx)
		attempt    = RetryAttempt(ctx)
	)

	for attempt < maxRetries {
		ctx = setRetryAttempt(ctx, attempt)

		func(ctx context.Context) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("panic recovered: %v", p)
				}
			}()

			if ctx.Err() != nil {
				err = fmt.Errorf("context cancelled before job execution: %w", ctx.Err())
				return
			}
			err = jobFunc(ctx)
		}(ctx)

		if err == nil {
			return nil
		}
		if !IsRetryableError(err) {
			return fmt.Errorf("non-retryable error: %w", err)
		}

		attempt++
		if attempt >= maxRetries {
			return fmt.Errorf("max retries (%d) exceeded: %w", maxRetries, err)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
		time.Sleep(CalculateBackoff(attempt, retryBaseDelay))
	}

	return fmt.Errorf("job failed after %d attempts: %w", maxRetries, err)
}

// JobID extracts the job ID from context.
func JobID(ctx context.Context) (uuid.UUID, bool) {
	jobID, ok := ctx.Value(keyJobID).(uuid.UUID)
	return jobID, ok
}

// JobType extracts the job type from context.
func JobType(ctx context.Context) (string, bool) {
	jobType, ok := ctx.Value(keyJobType).(string)
	return jobType, ok
}

// WorkerID extracts the worker ID from context, -1 when absent.
func WorkerID(ctx context.Context) int {
	workerID, ok := ctx.Value(keyWorkerID).(int)
	if !ok {
		return -1
	}
	return workerID
}

// RetryAttempt extracts the current retry attempt from context.
func RetryAttempt(ctx context.Context) int {
	attempt, ok := ctx.Value(keyRetryAttempt).(int)
	if !ok {
		return 0
	}
	return attempt
}

func setRetryAttempt(ctx context.Context, attempt int) context.Context {
	return context.WithValue(ctx, keyRetryAttempt, attempt)
}

// MaxRetries extracts the retry budget from context.
func MaxRetries(ctx context.Context) int {
	maxRetries, ok := ctx.Value(keyMaxRetries).(int)
	if !ok {
		return defaultMaxRetries
	}
	return maxRetries
}

// StartTime extracts the job start time from context.
func StartTime(ctx context.Context) (time.Time, bool) {
	startTime, ok := ctx.Value(keyJobStartTime).(time.Time)
	return startTime, ok
}

// JobMetadata assembles the full metadata snapshot for logging.
func JobMetadata(ctx context.Context) *Metadata {
	jobID, _ := JobID(ctx)
	jobType, _ := JobType(ctx)
	startTime, _ := StartTime(ctx)

	return &Metadata{
		JobID:        jobID,
		JobType:      jobType,
		WorkerID:     WorkerID(ctx),
		RetryAttempt: RetryAttempt(ctx),
		MaxRetries:   MaxRetries(ctx),
		StartTime:    startTime,
	}
}

// IsRetryableError reports whether an error is worth another attempt:
// network faults, timeouts, Postgres lock conflicts, rate limits and
// upstream 5xx responses.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "context deadline exceeded") ||
		strings.Contains(errStr, "context canceled") {
		return true
	}

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "network unreachable") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "i/o timeout") {
		return true
	}

	// Postgres serialization_failure / deadlock_detected
	if strings.Contains(errStr, "deadlock") ||
		strings.Contains(errStr, "40001") ||
		strings.Contains(errStr, "40p01") {
		return true
	}

	if strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429") {
		return true
	}

	if strings.Contains(errStr, "status 5") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "bad gateway") {
		return true
	}

	return false
}

// CalculateBackoff returns 2^attempt * baseDelay capped at one minute.
func CalculateBackoff(attempt int, baseDelay time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	backoff := time.Duration(1<<uint(attempt)) * baseDelay
	if backoff > time.Minute {
		backoff = time.Minute
	}
	return backoff
}
