package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/chemicheck/chemicheck/internal/infrastructure/http/middleware"
	"github.com/chemicheck/chemicheck/internal/usecase/auth"
	"github.com/chemicheck/chemicheck/pkg/config"
	"github.com/chemicheck/chemicheck/pkg/llm"
)

// Router holds all handlers
type Router struct {
	cfg            *config.Config
	authService    auth.Service
	authHandler    *Auth
	sessionHandler *Session
	historyHandler *History
	breakerState   func() llm.BreakerState
}

// NewRouter creates a new router with all handlers
func NewRouter(
	cfg *config.Config,
	authService auth.Service,
	authHandler *Auth,
	sessionHandler *Session,
	historyHandler *History,
	breakerState func() llm.BreakerState,
) *Router {
	return &Router{
		cfg:            cfg,
		authService:    authService,
		authHandler:    authHandler,
		sessionHandler: sessionHandler,
		historyHandler: historyHandler,
		breakerState:   breakerState,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	e.GET("/health", rt.healthCheck)

	v1 := e.Group("/v1")

	rt.setupAuthRoutes(v1)

	protected := v1.Group("", middleware.EchoAuth(rt.authService))
	rt.setupSessionRoutes(protected)
	rt.setupHistoryRoutes(protected)
}

func (rt *Router) setupAuthRoutes(g *echo.Group) {
	authGroup := g.Group("/auth")
	authGroup.POST("/demo", rt.authHandler.DemoLogin)
	authGroup.POST("/refresh", rt.authHandler.RefreshToken)
	authGroup.GET("/me", rt.authHandler.Me, middleware.EchoAuth(rt.authService))
}

func (rt *Router) setupSessionRoutes(g *echo.Group) {
	sessions := g.Group("/sessions")
	sessions.POST("", rt.sessionHandler.Create)
	sessions.GET("/:id", rt.sessionHandler.Get)
	sessions.POST("/:id/recording", rt.sessionHandler.UploadRecording)
	sessions.POST("/:id/analyze", rt.sessionHandler.Analyze)
	sessions.GET("/:id/result", rt.sessionHandler.Result)
}

func (rt *Router) setupHistoryRoutes(g *echo.Group) {
	historyGroup := g.Group("/history")
	historyGroup.GET("", rt.historyHandler.List)
	historyGroup.GET("/:id", rt.historyHandler.Get)
	historyGroup.DELETE("/:id", rt.historyHandler.Delete)

	g.GET("/me/stats", rt.historyHandler.Stats)
}

// healthCheck reports service status with the analysis breaker state
func (rt *Router) healthCheck(c echo.Context) error {
	breaker := "unknown"
	if rt.breakerState != nil {
		breaker = rt.breakerState().String()
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":           "ok",
		"time":             time.Now().UTC().Format(time.RFC3339),
		"environment":      rt.cfg.Server.Environment,
		"analysis_breaker": breaker,
	})
}
