package handler

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "github.com/chemicheck/chemicheck/errors"
	sessiondto "github.com/chemicheck/chemicheck/internal/adapter/dto/session"
	"github.com/chemicheck/chemicheck/internal/domain/entities"
	"github.com/chemicheck/chemicheck/internal/infrastructure/http/middleware"
	"github.com/chemicheck/chemicheck/internal/usecase/analysis"
	"github.com/chemicheck/chemicheck/internal/usecase/session"
)

// maxRecordingBytes bounds one uploaded audio blob (100 MiB).
const maxRecordingBytes = 100 << 20

// Session handles session lifecycle HTTP requests
type Session struct {
	sessionService  session.Service
	analysisService analysis.Service
	logger          *zap.Logger
}

// NewSession creates a new session handler
func NewSession(sessionService session.Service, analysisService analysis.Service, logger *zap.Logger) *Session {
	return &Session{
		sessionService:  sessionService,
		analysisService: analysisService,
		logger:          logger,
	}
}

// Create opens a new analysis session
// POST /v1/sessions
func (h *Session) Create(c echo.Context) error {
	userID, err := authedUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	var req sessiondto.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument(err.Error()))
	}

	created, err := h.sessionService.Create(c.Request().Context(), userID, req.PartnerName, req.PartnerAge)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleCreated(h.logger, c, sessiondto.FromEntity(created))
}

// Get returns one session
// GET /v1/sessions/:id
func (h *Session) Get(c echo.Context) error {
	userID, err := authedUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("invalid session id"))
	}

	found, err := h.sessionService.Get(c.Request().Context(), userID, sessionID)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, sessiondto.FromEntity(found))
}

// UploadRecording attaches an audio recording to a session
// POST /v1/sessions/:id/recording (multipart: "recording" file, optional "duration_seconds")
func (h *Session) UploadRecording(c echo.Context) error {
	userID, err := authedUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("invalid session id"))
	}

	fileHeader, err := c.FormFile("recording")
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("recording file is required"))
	}
	if fileHeader.Size <= 0 || fileHeader.Size > maxRecordingBytes {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("recording size out of range"))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInternal(err))
	}
	defer file.Close()

	durationSeconds := 0
	if v := c.FormValue("duration_seconds"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return HandleError(h.logger, c, apperrors.ErrInvalidArgument("invalid duration_seconds"))
		}
		durationSeconds = parsed
	}

	updated, err := h.sessionService.UploadRecording(
		c.Request().Context(), userID, sessionID,
		file, fileHeader.Size, fileHeader.Header.Get("Content-Type"), durationSeconds)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, sessiondto.FromEntity(updated))
}

// Analyze queues the analysis pipeline for a session
// POST /v1/sessions/:id/analyze
func (h *Session) Analyze(c echo.Context) error {
	userID, err := authedUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("invalid session id"))
	}

	var req sessiondto.AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument(err.Error()))
	}

	job, err := h.sessionService.StartAnalysis(c.Request().Context(), userID, sessionID, analysisInput(&req))
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleAccepted(h.logger, c, &sessiondto.AnalyzeAcceptedResponse{
		JobID:     job.ID.String(),
		SessionID: job.SessionID.String(),
		Status:    string(job.Status),
	})
}

// Result returns the analysis outcome for a session
// GET /v1/sessions/:id/result
func (h *Session) Result(c echo.Context) error {
	userID, err := authedUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("invalid session id"))
	}

	// Ownership check before touching the result cache.
	if _, err := h.sessionService.Get(c.Request().Context(), userID, sessionID); err != nil {
		return HandleError(h.logger, c, err)
	}

	outcome, err := h.analysisService.GetOutcome(c.Request().Context(), sessionID)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, outcome)
}

func analysisInput(req *sessiondto.AnalyzeRequest) entities.AnalysisInput {
	input := entities.AnalysisInput{
		Segments: make([]entities.TranscriptSegment, 0, len(req.Segments)),
		Prosody:  make([]entities.ProsodySample, 0, len(req.Prosody)),
	}
	for _, s := range req.Segments {
		input.Segments = append(input.Segments, entities.TranscriptSegment{
			T0:      s.T0,
			T1:      s.T1,
			Text:    s.Text,
			Speaker: entities.Speaker(s.Speaker),
		})
	}
	for _, p := range req.Prosody {
		input.Prosody = append(input.Prosody, entities.ProsodySample{
			T:     p.T,
			RMS:   p.RMS,
			Pitch: p.Pitch,
		})
	}
	return input
}

func authedUserID(c echo.Context) (uuid.UUID, error) {
	userID, ok := c.Get(middleware.UserIDContextKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, apperrors.ErrUnauthenticated()
	}
	return userID, nil
}
