package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-slobs/internal/audit"
	"github.com/nerrad567/gray-logic-slobs/internal/bridges/slobs"
	"github.com/nerrad567/gray-logic-slobs/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-slobs/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// SceneService is the part of the Streamlabs connector the API drives.
// *slobs.Connector satisfies it.
type SceneService interface {
	IsConnected() bool
	CurrentScene() string
	Scene(name string) (slobs.Scene, bool)
	Scenes() []slobs.Scene
	Stats() slobs.ConnectorStats
	SetCurrentScene(ctx context.Context, name string) (string, error)
	SetSourceVisibility(ctx context.Context, scene, source string, visible bool) (int, error)
	FlipSourceX(ctx context.Context, scene, source string) (int, error)
	FlipSourceY(ctx context.Context, scene, source string) (int, error)
	RotateSource(ctx context.Context, scene, source string, degrees float64) (int, error)
}

// HealthChecker is any dependency that can report its own health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Scenes  SceneService
	Audit   audit.Repository         // optional; commands are not audited without it
	Checks  map[string]HealthChecker // optional; reported by /health
	Version string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware and the audit writer.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	scenes    SceneService
	auditRepo audit.Repository
	auditCh   chan *audit.Entry
	auditDone chan struct{}
	checks    map[string]HealthChecker
	version   string
	server    *http.Server
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Scenes == nil {
		return nil, fmt.Errorf("scene service is required")
	}

	s := &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		scenes:    deps.Scenes,
		auditRepo: deps.Audit,
		checks:    deps.Checks,
		version:   deps.Version,
	}
	if s.auditRepo != nil {
		s.auditCh = make(chan *audit.Entry, auditChanSize)
	}
	return s, nil
}

// Handler returns the router without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It starts the audit writer and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.auditCh != nil {
		s.auditDone = make(chan struct{})
		go func() {
			defer close(s.auditDone)
			s.drainAuditLog(srvCtx)
		}()
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then
// flushes any queued audit entries.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)

	if s.cancel != nil {
		s.cancel()
	}
	if s.auditDone != nil {
		<-s.auditDone
	}

	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
