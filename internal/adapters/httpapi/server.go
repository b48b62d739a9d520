// Package httpapi exposes the assessment service over HTTP with echo.
package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/nats-io/nuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bnema/grader/internal/application"
	"github.com/bnema/grader/internal/domain"
	"github.com/bnema/grader/internal/observability"
)

const (
	SessionHeader = "X-Grader-Session"
	SessionCookie = "grader_session"

	defaultBodyLimit = "8M"

	// multipartOverheadKB covers the launch id, password and boundary parts
	// sent alongside the file.
	multipartOverheadKB = 64
)

type Assessor interface {
	Assess(ctx context.Context, cmd application.AssessCommand) (application.AssessmentResult, error)
}

// SessionOpener registers launch contexts handed over by the launch layer.
type SessionOpener interface {
	Open(ctx context.Context, launch domain.LaunchContext) (domain.LaunchContext, error)
}

type Server struct {
	e          *echo.Echo
	log        logr.Logger
	assessor   Assessor
	sessions   SessionOpener
	adminToken string
	bodyLimit  string
}

type Option func(*Server) error

func WithLogger(log logr.Logger) Option {
	return func(s *Server) error {
		s.log = log
		return nil
	}
}

// WithAdminToken enables POST /sessions for callers presenting token as a
// bearer credential.
func WithAdminToken(token string) Option {
	return func(s *Server) error {
		s.adminToken = token
		return nil
	}
}

func WithBodyLimit(limit string) Option {
	return func(s *Server) error {
		if limit == "" {
			return errors.New("body limit is empty")
		}
		s.bodyLimit = limit
		return nil
	}
}

// BodyLimitForUpload sizes the delivery body limit for uploads of up to
// maxUploadKB.
func BodyLimitForUpload(maxUploadKB int) string {
	if maxUploadKB <= 0 {
		return defaultBodyLimit
	}
	return fmt.Sprintf("%dK", maxUploadKB+multipartOverheadKB)
}

func New(assessor Assessor, sessions SessionOpener, opts ...Option) (*Server, error) {
	if assessor == nil {
		return nil, errors.New("http server requires an assessor")
	}

	s := &Server{
		log:       logr.Discard(),
		assessor:  assessor,
		sessions:  sessions,
		bodyLimit: defaultBodyLimit,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.log = s.log.WithName("http")

	s.e = echo.New()
	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.Logger.SetLevel(log.INFO)

	s.e.Use(middleware.Recover())
	s.e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: nuid.Next}))
	s.e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.log.V(1).Info("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "id", v.RequestID)
			return nil
		},
	}))

	s.e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, "OK")
	})
	s.e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(observability.Registry, promhttp.HandlerOpts{})))
	s.e.POST("/deliveries", s.handleDelivery, middleware.BodyLimit(s.bodyLimit))

	if s.adminToken != "" && s.sessions != nil {
		s.e.POST("/sessions", s.handleOpenSession, middleware.KeyAuth(s.validAdminToken))
	} else {
		s.log.Info("session registration disabled, no admin token configured")
	}

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.e
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.log.Info("listening", "addr", addr)
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", addr, err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}
	return s.e.Shutdown(ctx)
}

func (s *Server) validAdminToken(key string, _ echo.Context) (bool, error) {
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.adminToken)) == 1, nil
}
