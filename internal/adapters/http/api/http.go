// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	service "github.com/okian/rollcall/internal/app"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	StatsProvider

	Enroll(ctx context.Context, req service.EnrollRequest) (model.EnrollResult, error)
	Recognize(ctx context.Context, image []byte) (model.RecognizeResult, error)
	CheckRegistration(ctx context.Context, roll string) (service.Registration, error)
	Today(ctx context.Context) ([]model.AttendanceEvent, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler       *HealthHandler
	statsHandler        *StatsHandler
	registerHandler     *RegisterHandler
	recognizeHandler    *RecognizeHandler
	registrationHandler *RegistrationHandler
	reportHandler       *ReportHandler
	corsOrigins         []string
	log                 logger.Logger
}

// ServerOption applies a configuration option to the Server.
type ServerOption func(*Server)

// WithCORSOrigins restricts cross-origin requests. "*" allows any origin.
func WithCORSOrigins(origins []string) ServerOption {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler:       NewHealthHandler(),
		statsHandler:        NewStatsHandler(deps),
		registerHandler:     NewRegisterHandler(deps),
		recognizeHandler:    NewRecognizeHandler(deps),
		registrationHandler: NewRegistrationHandler(deps),
		reportHandler:       NewReportHandler(deps),
		corsOrigins:         []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get()
	}
	return s
}

// Handler builds the gin engine with middleware and every route attached.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), MetricsMiddleware(), cors.New(s.corsConfig()))
	s.Register(r)
	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "not_found", errors.New("route not found"))
	})
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r gin.IRouter) {
	r.GET("/healthz", s.healthHandler.HandleHealth)
	r.GET("/test", s.healthHandler.HandleTest)
	r.GET("/stats", s.statsHandler.HandleStats)
	r.POST("/register", s.registerHandler.HandleRegister)
	r.POST("/recognize", s.recognizeHandler.HandleRecognize)
	r.POST("/check-registration", s.registrationHandler.HandleCheck)
	r.GET("/attendance_report", s.reportHandler.HandleReport)
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	for _, o := range s.corsOrigins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = s.corsOrigins
	return cfg
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug(c.Request.Context(), "http request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)),
		)
	}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

func writeError(c *gin.Context, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, errorResponse{Code: code, Error: msg})
}

// statusFor maps a service error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
