package handler

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "github.com/chemicheck/chemicheck/errors"
	"github.com/chemicheck/chemicheck/internal/adapter/dto/common"
	historydto "github.com/chemicheck/chemicheck/internal/adapter/dto/history"
	"github.com/chemicheck/chemicheck/internal/usecase/history"
)

// History handles conversation-history HTTP requests
type History struct {
	historyService history.Service
	logger         *zap.Logger
}

// NewHistory creates a new history handler
func NewHistory(historyService history.Service, logger *zap.Logger) *History {
	return &History{
		historyService: historyService,
		logger:         logger,
	}
}

// List returns the user's conversation records
// GET /v1/history?limit=&offset=
func (h *History) List(c echo.Context) error {
	userID, err := authedUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	limit := queryInt(c, "limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	records, total, err := h.historyService.List(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, common.NewListResponse(historydto.FromEntities(records), limit, offset, total))
}

// Get returns one conversation record
// GET /v1/history/:id
func (h *History) Get(c echo.Context) error {
	userID, err := authedUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("invalid record id"))
	}

	record, err := h.historyService.Get(c.Request().Context(), userID, recordID)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, historydto.FromEntity(record))
}

// Delete removes one conversation record
// DELETE /v1/history/:id
func (h *History) Delete(c echo.Context) error {
	userID, err := authedUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("invalid record id"))
	}

	if err := h.historyService.Delete(c.Request().Context(), userID, recordID); err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, map[string]string{"id": recordID.String()})
}

// Stats returns the user's aggregate conversation statistics
// GET /v1/me/stats
func (h *History) Stats(c echo.Context) error {
	userID, err := authedUserID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	stats, err := h.historyService.Stats(c.Request().Context(), userID)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, &historydto.StatsResponse{
		TotalConversations: stats.TotalConversations,
		AverageMatchScore:  stats.AverageMatchScore,
		BestMatchScore:     stats.BestMatchScore,
		TotalDuration:      stats.TotalDuration,
	})
}

func queryInt(c echo.Context, key string, defaultValue int) int {
	v := c.QueryParam(key)
	if v == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return parsed
}
