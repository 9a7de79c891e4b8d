// Package server exposes the analysis engine over HTTP with Echo.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/linuxmatters/jivebeat/internal/analysis"
	"github.com/linuxmatters/jivebeat/internal/config"
	"github.com/linuxmatters/jivebeat/internal/logging"
)

// Multipart framing allowance on top of MaxUploadBytes
const bodySlack = 64 * 1024

// Options configures a Server.
type Options struct {
	UploadDir      string  // Temporary directory created when empty
	MaxUploadBytes int64   // Defaults to config.MaxUploadBytes
	RateLimit      float64 // Requests per second per client IP; 0 disables
}

// Server serves the HTTP API. Uploaded files live in UploadDir until their
// analysis finishes (synchronous) or their task is deleted (asynchronous).
type Server struct {
	engine *analysis.Engine
	opts   Options
	log    logging.Logger
	echo   *echo.Echo
	tasks  *taskStore
	start  time.Time

	ownsUploadDir bool

	// Background tasks are cancelled through ctx on Shutdown
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds the router. A nil engine is allowed; analysis routes then fail
// with 503.
func New(engine *analysis.Engine, opts Options, log logging.Logger) (*Server, error) {
	if log == nil {
		log = &logging.NoOpLogger{}
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = config.MaxUploadBytes
	}

	owns := false
	if opts.UploadDir == "" {
		dir, err := os.MkdirTemp("", "jivebeat-uploads-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create upload directory: %w", err)
		}
		opts.UploadDir = dir
		owns = true
	} else if err := os.MkdirAll(opts.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		engine:        engine,
		opts:          opts,
		log:           log.WithFields(logging.Fields{"component": "server"}),
		tasks:         newTaskStore(),
		start:         time.Now(),
		ownsUploadDir: owns,
		ctx:           ctx,
		cancel:        cancel,
	}
	s.echo = s.routes()
	return s, nil
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := logging.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.Round(time.Millisecond),
			}
			if v.Error != nil {
				s.log.Warn("request failed", fields, logging.Fields{"error": v.Error.Error()})
				return nil
			}
			s.log.Debug("request", fields)
			return nil
		},
	}))
	e.Use(middleware.CORS())
	if s.opts.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(s.opts.RateLimit))))
	}

	// Routes
	e.GET("/", s.index)
	e.GET("/health", s.health)
	e.GET("/status", s.status)
	e.GET("/formats", s.formats)

	limit := middleware.BodyLimit(fmt.Sprintf("%dB", s.opts.MaxUploadBytes+bodySlack))
	e.POST("/analyze", s.analyze, limit)
	e.POST("/tasks", s.createTask, limit)
	e.GET("/tasks", s.listTasks)
	e.GET("/tasks/:id", s.getTask)
	e.GET("/tasks/:id/result", s.taskResult)
	e.DELETE("/tasks/:id", s.deleteTask)

	return e
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.log.Info("listening", logging.Fields{"addr": addr, "upload_dir": s.opts.UploadDir})
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, cancels running tasks and waits for
// them, then removes the upload directory if the server created it.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}

	if s.ownsUploadDir {
		if rmErr := os.RemoveAll(s.opts.UploadDir); rmErr != nil {
			err = errors.Join(err, rmErr)
		}
	}
	return err
}
