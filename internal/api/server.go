package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"gatecheck/internal/api/handlers"
	"gatecheck/internal/api/validator"
	"gatecheck/internal/config"
	"gatecheck/internal/tasks"
	console "gatecheck/internal/utils/logger"
)

type Server struct {
	echo       *echo.Echo
	config     *config.Config
	taskClient *tasks.TaskClient
}

var log = console.New("API-Server")

// NewServer wires the verification endpoint. The verify route sits on the
// proxy hot path, so the middleware stack stays lean: no gzip, no CORS, no
// body rewriting.
func NewServer(cfg *config.Config, verifier handlers.VerifyService, taskClient *tasks.TaskClient) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Validator = validator.NewValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: 10 * time.Second,
	}))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(1000))))

	e.HTTPErrorHandler = customHTTPErrorHandler

	s := &Server{
		echo:       e,
		config:     cfg,
		taskClient: taskClient,
	}

	s.registerRoutes(verifier)
	return s
}

func (s *Server) registerRoutes(verifier handlers.VerifyService) {
	s.echo.GET("/health", s.healthCheck)

	api := s.echo.Group("/api/v1")

	verifyHandler := handlers.NewVerifyHandler(verifier, s.config.App.Version)
	api.POST("/gateway/verify-session", verifyHandler.Verify)
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Health check endpoint
func (s *Server) healthCheck(c echo.Context) error {
	redisStatus := "up"
	if s.taskClient != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := s.taskClient.Ping(ctx); err != nil {
			redisStatus = "down"
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"redis":   redisStatus,
		"version": s.config.App.Version,
		"time":    time.Now().Format(time.RFC3339),
	})
}

// Custom HTTP error handler
func customHTTPErrorHandler(err error, c echo.Context) {
	var (
		code    = http.StatusInternalServerError
		message interface{}
	)

	switch e := err.(type) {
	case *echo.HTTPError:
		code = e.Code
		message = e.Message
	case validator.ValidationErrors:
		code = http.StatusBadRequest
		message = formatValidationErrors(e)
	default:
		message = http.StatusText(code)
	}

	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, map[string]interface{}{
				"error": message,
				"code":  code,
				"time":  time.Now().Format(time.RFC3339),
			})
		}
		if err != nil {
			log.Error("Failed to write error response", err)
		}
	}
}

// formatValidationErrors formats validation errors into a map
func formatValidationErrors(errors validator.ValidationErrors) map[string]string {
	errMap := make(map[string]string)
	for _, err := range errors {
		field := err.Field()
		tag := err.Tag()
		param := err.Param()

		switch tag {
		case "required":
			errMap[field] = fmt.Sprintf("%s is required", field)
		case "url":
			errMap[field] = fmt.Sprintf("%s must be a valid URL", field)
		case "min":
			errMap[field] = fmt.Sprintf("%s must be at least %s", field, param)
		case "max":
			errMap[field] = fmt.Sprintf("%s must be at most %s", field, param)
		case "oneof":
			errMap[field] = fmt.Sprintf("%s must be one of [%s]", field, param)
		case "http_scheme":
			errMap[field] = fmt.Sprintf("%s must be either 'http' or 'https'", field)
		default:
			errMap[field] = fmt.Sprintf("%s failed validation: %s", field, tag)
		}
	}
	return errMap
}
