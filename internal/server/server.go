package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"taskboard/internal/models"
	"taskboard/internal/storage"
)

// Store is the persistence surface the HTTP handlers depend on.
type Store interface {
	ListBoards(ctx context.Context) ([]models.Board, error)
	GetBoard(ctx context.Context, id int64) (models.Board, error)
	CreateBoard(ctx context.Context, b models.Board) (models.Board, error)
	UpdateBoard(ctx context.Context, id int64, patch models.BoardPatch) (models.Board, error)
	DeleteBoard(ctx context.Context, id int64) error

	ListTasks(ctx context.Context, filter storage.TaskFilter) ([]models.Task, error)
	GetTask(ctx context.Context, id int64) (models.Task, error)
	CreateTask(ctx context.Context, t models.Task) (models.Task, error)
	UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) (models.Task, error)
	DeleteTask(ctx context.Context, id int64) error

	Ping(ctx context.Context) error
}

// Options tune the optional parts of the HTTP stack.
type Options struct {
	// StaticDir holds the built frontend; empty means API only.
	StaticDir string
	// AllowOrigins lists CORS origins; empty disables CORS handling.
	AllowOrigins []string
	// RateLimit is the sustained request rate per client ip; zero disables limiting.
	RateLimit rate.Limit
	RateBurst int
}

// Server provides HTTP handlers for the task board backend.
type Server struct {
	engine    *gin.Engine
	store     Store
	logger    *slog.Logger
	staticDir string
	now       func() time.Time
}

// New constructs the HTTP server with routes and middleware configured.
func New(store Store, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(recovery(logger))
	router.Use(requestID())
	router.Use(accessLog(logger))
	if len(opts.AllowOrigins) > 0 {
		router.Use(corsMiddleware(opts.AllowOrigins))
	}

	srv := &Server{
		engine:    router,
		store:     store,
		logger:    logger,
		staticDir: opts.StaticDir,
		now:       func() time.Time { return time.Now().UTC() },
	}

	srv.registerRoutes(opts)
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API and static handlers together.
func (s *Server) registerRoutes(opts Options) {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/ready", s.handleReady)

	api := s.engine.Group("/api")
	if opts.RateLimit > 0 {
		api.Use(rateLimiter(opts.RateLimit, opts.RateBurst))
	}
	{
		api.GET("/healthz", s.handleHealth)

		boards := api.Group("/boards")
		{
			boards.GET("", s.handleListBoards)
			boards.POST("", s.handleCreateBoard)
			boards.GET("/:id", s.handleGetBoard)
			boards.PUT("/:id", s.handleUpdateBoard)
			boards.DELETE("/:id", s.handleDeleteBoard)
		}

		tasks := api.Group("/tasks")
		{
			tasks.GET("", s.handleListTasks)
			tasks.POST("", s.handleCreateTask)
			tasks.GET("/:id", s.handleGetTask)
			tasks.PUT("/:id", s.handleUpdateTask)
			tasks.DELETE("/:id", s.handleDeleteTask)
		}

		api.GET("/analytics", s.handleAnalytics)
		api.GET("/export", s.handleExport)
	}

	s.mountStatic()
}

// parseID converts a path parameter to a positive int64, answering 400 otherwise.
func (s *Server) parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := parsePositiveInt(raw)
	if err != nil {
		s.respondError(c, models.NewErrorf(models.ErrorCodeInvalidArgument, "invalid %s %q: must be a positive integer", name, raw))
		return 0, false
	}
	return id, true
}

func parsePositiveInt(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("not positive: %d", id)
	}
	return id, nil
}

// bindJSON decodes the request body, reporting every decode failure as an invalid argument.
func bindJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		var ierr *models.Error
		if errors.As(err, &ierr) {
			return err
		}
		return models.NewErrorf(models.ErrorCodeInvalidArgument, "invalid request body: %v", err)
	}
	return nil
}

// respondError maps coded errors to status codes. Unexpected failures are
// logged with their full chain and answered with a generic message.
func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	var ierr *models.Error
	if errors.As(err, &ierr) {
		switch ierr.Code() {
		case models.ErrorCodeNotFound:
			status = http.StatusNotFound
			msg = ierr.Message()
		case models.ErrorCodeInvalidArgument:
			status = http.StatusBadRequest
			msg = ierr.Message()
		}
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("path", c.FullPath()),
			slog.String("request_id", c.GetString(requestIDKey)),
			slog.String("error", err.Error()))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// respondSuccess writes payload as JSON, or only the status when payload is nil.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
