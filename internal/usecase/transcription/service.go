// Package transcription turns a session's stored recording into transcript
// segments when the client did not supply its own. Transcription runs
// through AssemblyAI with speaker diarization; the diarized speakers are
// mapped onto the me/partner roles the analysis pipeline expects.
package transcription

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/chemicheck/chemicheck/internal/domain/entities"
	"github.com/chemicheck/chemicheck/pkg/config"
)

const (
	pollInterval = 3 * time.Second
	pollTimeout  = 5 * time.Minute

	// At most this many recordings stream to AssemblyAI at once.
	maxConcurrentUploads = 2
)

// Service transcribes a recording URL into transcript segments.
type Service interface {
	Transcribe(ctx context.Context, recordingURL string) ([]entities.TranscriptSegment, error)
}

type service struct {
	client          *aai.Client
	httpClient      *http.Client
	logger          *zap.Logger
	uploadSemaphore chan struct{}
}

// NewService constructs the transcription service. Returns nil when
// transcription is disabled so callers can treat it as optional.
func NewService(cfg *config.AssemblyConfig, logger *zap.Logger) Service {
	if cfg == nil || !cfg.Enabled || cfg.APIKey == "" {
		return nil
	}
	return &service{
		client:          aai.NewClient(cfg.APIKey),
		httpClient:      &http.Client{Timeout: 2 * time.Minute},
		logger:          logger,
		uploadSemaphore: make(chan struct{}, maxConcurrentUploads),
	}
}

// Transcribe streams the recording to AssemblyAI, waits for the diarized
// transcript and maps it to segments.
func (s *service) Transcribe(ctx context.Context, recordingURL string) ([]entities.TranscriptSegment, error) {
	if recordingURL == "" {
		return nil, fmt.Errorf("recording URL is required")
	}

	// Acquire an upload slot; blocks when too many transcriptions run.
	select {
	case s.uploadSemaphore <- struct{}{}:
		defer func() { <-s.uploadSemaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var transcriptID string
	submitFn := func() error {
		cleanURL := strings.TrimSpace(recordingURL)

		resp, err := s.httpClient.Get(cleanURL)
		if err != nil {
			return fmt.Errorf("failed to download recording: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("recording storage returned status %d", resp.StatusCode)
		}

		uploadURL, err := s.client.Upload(ctx, resp.Body)
		if err != nil {
			return fmt.Errorf("failed to upload to AssemblyAI: %w", err)
		}

		params := &aai.TranscriptOptionalParams{
			SpeakerLabels:     aai.Bool(true),
			LanguageDetection: aai.Bool(true),
		}
		transcript, err := s.client.Transcripts.TranscribeFromURL(ctx, uploadURL, params)
		if err != nil {
			return fmt.Errorf("failed to submit transcription: %w", err)
		}
		if transcript.ID != nil {
			transcriptID = *transcript.ID
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(submitFn, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	if transcriptID == "" {
		return nil, fmt.Errorf("assemblyai returned no transcript id")
	}

	s.logger.Info("transcription submitted",
		zap.String("transcript_id", transcriptID))

	transcript, err := s.waitForTranscript(ctx, transcriptID)
	if err != nil {
		return nil, err
	}

	segments := segmentsFromTranscript(transcript)
	if len(segments) == 0 {
		return nil, fmt.Errorf("transcript %s contains no utterances", transcriptID)
	}

	s.logger.Info("transcription completed",
		zap.String("transcript_id", transcriptID),
		zap.Int("segments", len(segments)))

	return segments, nil
}

// waitForTranscript polls AssemblyAI until the transcript finishes.
func (s *service) waitForTranscript(ctx context.Context, transcriptID string) (*aai.Transcript, error) {
	deadline := time.NewTimer(pollTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("transcript %s did not finish within %s", transcriptID, pollTimeout)

		case <-ticker.C:
			transcript, err := s.client.Transcripts.Get(ctx, transcriptID)
			if err != nil {
				// Could be a transient API error; keep polling.
				s.logger.Warn("failed to poll transcript",
					zap.String("transcript_id", transcriptID),
					zap.Error(err))
				continue
			}

			switch transcript.Status {
			case aai.TranscriptStatusCompleted:
				return &transcript, nil
			case aai.TranscriptStatusError:
				msg := "transcription failed"
				if transcript.Error != nil {
					msg = *transcript.Error
				}
				return nil, fmt.Errorf("assemblyai: %s", msg)
			case aai.TranscriptStatusQueued, aai.TranscriptStatusProcessing:
				continue
			default:
				s.logger.Warn("unknown transcript status",
					zap.String("transcript_id", transcriptID),
					zap.String("status", string(transcript.Status)))
			}
		}
	}
}

// segmentsFromTranscript maps diarized utterances to transcript segments.
// The speaker of the first utterance is treated as the session owner; every
// other diarized speaker becomes the partner.
func segmentsFromTranscript(transcript *aai.Transcript) []entities.TranscriptSegment {
	if transcript == nil || len(transcript.Utterances) == 0 {
		return nil
	}

	var ownerLabel string
	segments := make([]entities.TranscriptSegment, 0, len(transcript.Utterances))
	for _, u := range transcript.Utterances {
		if u.Text == nil || strings.TrimSpace(*u.Text) == "" {
			continue
		}

		label := ""
		if u.Speaker != nil {
			label = *u.Speaker
		}
		if ownerLabel == "" {
			ownerLabel = label
		}
		speaker := entities.SpeakerPartner
		if label == ownerLabel {
			speaker = entities.SpeakerMe
		}

		seg := entities.TranscriptSegment{
			Text:    strings.TrimSpace(*u.Text),
			Speaker: speaker,
		}
		if u.Start != nil {
			seg.T0 = float64(*u.Start) / 1000
		}
		if u.End != nil {
			seg.T1 = float64(*u.End) / 1000
		}
		segments = append(segments, seg)
	}
	return segments
}
